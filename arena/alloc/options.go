package alloc

// Config tunes a Heap. A nil *Config selects defaults.
type Config struct {
	// ChunkSize overrides the extension granularity recorded in the
	// arena's superblock for this session. Malloc grows the arena by at
	// least this many bytes at a time. 0 keeps the recorded value. The
	// override is not written back to the superblock, so different
	// sessions may grow the same image with different granularity.
	ChunkSize int64

	// Checked enables paranoid validation: Free and Payload verify that
	// the footer of the referenced block matches its header before
	// proceeding. Costs one extra tag read per call and catches most
	// overruns into the boundary tags.
	Checked bool
}

// DefaultConfig is the configuration used when New receives a nil *Config.
var DefaultConfig = Config{}

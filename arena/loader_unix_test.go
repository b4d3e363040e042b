//go:build linux || darwin

package arena

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

// Behavior only the mmap loader provides: write-through persistence and
// on-disk truncation. The fallback loader works on a private copy instead.

func TestOpen_TruncatesSlackOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slack.heap")
	writeMinimalImage(t, path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 100))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(format.HeaderSize+format.BootstrapSize), st.Size())
}

func TestMmap_WritesReachDiskWithoutFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.heap")
	writeMinimalImage(t, path)

	a, err := Open(path)
	require.NoError(t, err)

	// Stamp the pad word through the mapping and close without any
	// explicit flush.
	copy(a.Bytes()[format.HeaderSize:], "mark")
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "mark", string(data[format.HeaderSize:format.HeaderSize+4]))
}

func TestAppend_ExtendsFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.heap")
	require.NoError(t, Create(path, nil))

	a, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, a.Append(format.DefaultChunkSize))
	require.NoError(t, a.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(format.HeaderSize+format.DefaultChunkSize), st.Size())
}

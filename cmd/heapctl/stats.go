package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/format"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <image>",
		Short: "Show detailed heap statistics",
		Long: `The stats command shows detailed statistics about a heap image including
superblock state, space accounting, block counts, and a block size
distribution.

Example:
  heapctl stats scratch.heap
  heapctl stats scratch.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
	return cmd
}

type heapStat struct {
	FilePath  string `json:"file_path"`
	FileSize  int64  `json:"file_size"`
	HeapSize  int64  `json:"heap_size"`
	ChunkSize int64  `json:"chunk_size"`

	Sequence   uint32    `json:"sequence"`
	Clean      bool      `json:"clean"`
	ChecksumOK bool      `json:"checksum_ok"`
	LastWrite  time.Time `json:"last_write"`

	Blocks      int   `json:"blocks"`
	FreeBlocks  int   `json:"free_blocks"`
	FreeBytes   int64 `json:"free_bytes"`
	InUseBytes  int64 `json:"in_use_bytes"`
	LargestFree int64 `json:"largest_free"`

	BlocksBySize map[string]int `json:"blocks_by_size"`
}

func runStats(args []string) error {
	path := args[0]

	printVerbose("Opening image: %s\n", path)

	a, h, _, err := openHeap(path)
	if err != nil {
		return err
	}
	defer a.Close()

	super := a.Super()
	hs := h.Stats()

	out := heapStat{
		FilePath:     path,
		FileSize:     a.Size(),
		HeapSize:     hs.HeapSize,
		ChunkSize:    h.ChunkSize(),
		Sequence:     super.Sequence1(),
		Clean:        super.IsClean(),
		ChecksumOK:   super.ChecksumOK(),
		LastWrite:    time.Unix(0, super.TimestampNanos()),
		FreeBlocks:   hs.FreeBlocks,
		FreeBytes:    hs.FreeBytes,
		InUseBytes:   hs.InUseBytes,
		LargestFree:  hs.LargestFree,
		BlocksBySize: make(map[string]int),
	}

	it, err := a.Blocks()
	if err != nil {
		return fmt.Errorf("failed to walk blocks: %w", err)
	}
	for {
		bl, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to walk blocks: %w", err)
		}
		// Skip the sentinel frame
		if bl.Size == 0 || bl.Offset == format.PrologueHeaderOffset {
			continue
		}
		out.Blocks++
		out.BlocksBySize[sizeBucket(bl.Size)]++
	}

	// Output as JSON if requested
	if jsonOut {
		return printJSON(out)
	}

	// Text output
	printInfo("\nHeap Statistics: %s\n", path)
	printInfo("%s\n\n", strings.Repeat("=", 40))

	printInfo("File Information:\n")
	printInfo("  Path: %s\n", path)
	printInfo("  Size: %s (%s bytes)\n", formatBytes(out.FileSize), formatNumber(out.FileSize))
	printInfo("  Last Write: %s\n\n", out.LastWrite.Format("2006-01-02 15:04:05"))

	printInfo("Superblock:\n")
	if out.Clean {
		printInfo("  Sequence: %d (clean)\n", out.Sequence)
	} else {
		printInfo("  Sequence: %d (update in flight)\n", out.Sequence)
	}
	if out.ChecksumOK {
		printInfo("  Checksum: ok\n")
	} else {
		printInfo("  Checksum: MISMATCH\n")
	}
	printInfo("  Chunk Size: %s\n\n", formatBytes(out.ChunkSize))

	printInfo("Heap Region:\n")
	printInfo("  Formatted: %s\n", formatBytes(out.HeapSize))
	printInfo("  In Use: %s\n", formatBytes(out.InUseBytes))
	printInfo("  Free: %s in %s block(s), largest %s\n",
		formatBytes(out.FreeBytes), formatNumber(int64(out.FreeBlocks)), formatBytes(out.LargestFree))
	printInfo("  Total Blocks: %s\n\n", formatNumber(int64(out.Blocks)))

	if len(out.BlocksBySize) > 0 {
		printInfo("Blocks by Size:\n")
		order := []string{"<64", "64-256", "256-1K", ">1K"}
		for _, bucket := range order {
			if count, ok := out.BlocksBySize[bucket]; ok {
				percentage := float64(count) * 100.0 / float64(out.Blocks)
				printInfo("  %s bytes: %s (%.1f%%)\n",
					bucket, formatNumber(int64(count)), percentage)
			}
		}
	}

	return nil
}

func sizeBucket(size int64) string {
	switch {
	case size < 64:
		return "<64"
	case size < 256:
		return "64-256"
	case size < 1024:
		return "256-1K"
	default:
		return ">1K"
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	// Add commas
	var result strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

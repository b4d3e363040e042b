//go:build linux || darwin

package main

import (
	"testing"
)

func TestDumpCommand(t *testing.T) {
	// Reset flags
	quiet = false
	verbose = false
	jsonOut = false

	args := []string{makeTestImage(t)}

	output, err := captureOutput(t, func() error {
		return runDump(args)
	})
	if err != nil {
		t.Fatalf("runDump() error = %v", err)
	}

	assertContains(t, output, []string{
		"Formatted: 4128 bytes of 8224",
		"(clean)",
		"OFFSET",
		"STATE",
		"prolog",
		"epilog",
		"alloc",
		"free",
		"heapctl test pay",
		"next=0x",
		"4 blocks, 2 free (3888 bytes), 2 allocated (208 bytes)",
	})
	assertNotContains(t, output, []string{"in flight"})
}

func TestDumpCommandMissingFile(t *testing.T) {
	quiet = true
	verbose = false
	jsonOut = false

	_, err := captureOutput(t, func() error {
		return runDump([]string{"/nonexistent/heap.img"})
	})
	if err == nil {
		t.Error("runDump() on a missing file should fail")
	}
}

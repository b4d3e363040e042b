package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/arena/dirty"
)

// makeTestImage creates a formatted heap image with a few live allocations
// and one free gap, flushed to disk.
func makeTestImage(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.heap")
	if err := arena.Create(path, nil); err != nil {
		t.Fatalf("failed to create image: %v", err)
	}

	a, h, dt, err := openHeap(path)
	if err != nil {
		t.Fatalf("failed to open image: %v", err)
	}
	defer a.Close()

	var refs []int64
	for _, size := range []int64{100, 200, 50} {
		ref, payload, err := h.Malloc(size)
		if err != nil {
			t.Fatalf("failed to populate image: %v", err)
		}
		copy(payload, "heapctl test payload")
		refs = append(refs, ref)
	}
	if err := h.Free(refs[1]); err != nil {
		t.Fatalf("failed to punch free gap: %v", err)
	}

	ctx := context.Background()
	if err := dt.FlushData(ctx); err != nil {
		t.Fatalf("failed to flush data pages: %v", err)
	}
	if err := dt.FlushHeaderAndMeta(ctx, dirty.FlushAuto); err != nil {
		t.Fatalf("failed to seal header: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	// Save original stdout
	origStdout := os.Stdout

	// Create a pipe to capture output
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	// Redirect stdout to pipe
	os.Stdout = w

	// Run function
	fnErr := fn()

	// Close write end and restore stdout
	w.Close()
	os.Stdout = origStdout

	// Read captured output
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

// assertNotContains checks that output doesn't contain unwanted strings
func assertNotContains(t *testing.T, output string, unwanted []string) {
	t.Helper()
	for _, dont := range unwanted {
		if strings.Contains(output, dont) {
			t.Errorf("output contains unwanted string %q\nGot: %s", dont, output)
		}
	}
}

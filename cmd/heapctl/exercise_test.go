package main

import (
	"path/filepath"
	"testing"

	"github.com/joshuapare/heapkit/arena"
)

func TestExerciseCommand(t *testing.T) {
	tests := []struct {
		name        string
		ops         int
		maxSize     int64
		keep        int
		wantJSON    bool
		wantContain []string
	}{
		{
			name:    "text run",
			ops:     200,
			maxSize: 256,
			keep:    32,
			wantContain: []string{
				"operations (seed 7)",
				"Allocations:",
				"Frees:",
				"Extensions:",
				"Heap size:",
				"Live:",
				"Free:",
			},
		},
		{
			name:        "json stats",
			ops:         50,
			maxSize:     128,
			keep:        16,
			wantJSON:    true,
			wantContain: []string{"AllocCalls", "FreeCalls", "HeapSize", "LargestFree"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags
			quiet = false
			verbose = false
			jsonOut = tt.wantJSON
			exOps = tt.ops
			exSeed = 7
			exMaxSize = tt.maxSize
			exKeep = tt.keep

			path := filepath.Join(t.TempDir(), "exercise.heap")
			if err := arena.Create(path, nil); err != nil {
				t.Fatalf("failed to create image: %v", err)
			}

			output, err := captureOutput(t, func() error {
				return runExercise([]string{path})
			})
			if err != nil {
				t.Errorf("runExercise() error = %v", err)
				return
			}

			if tt.wantJSON {
				assertJSON(t, output)
			}

			assertContains(t, output, tt.wantContain)
		})
	}
}

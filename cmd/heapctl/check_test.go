package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		summary     bool
		quietRun    bool
		wantErr     bool
		wantJSON    bool
		wantContain []string
	}{
		{
			name:        "text report",
			format:      "text",
			wantContain: []string{"Heap Image Check Report", "SUMMARY", "Critical: 0", "No issues found"},
		},
		{
			name:        "summary only",
			format:      "text",
			summary:     true,
			wantContain: []string{"Check Summary for", "Critical:  0", "Errors:    0"},
		},
		{
			name:        "compact",
			format:      "compact",
			wantContain: []string{"No issues found."},
		},
		{
			// quiet suppresses the trailing verdict line, leaving pure JSON
			name:        "json report",
			format:      "json",
			quietRun:    true,
			wantJSON:    true,
			wantContain: []string{"file_size", "summary", "diagnostics"},
		},
		{
			name:    "unknown format",
			format:  "yaml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags
			quiet = tt.quietRun
			verbose = false
			jsonOut = false
			checkFormat = tt.format
			checkSummary = tt.summary
			checkOutputFile = ""

			args := []string{makeTestImage(t)}

			output, err := captureOutput(t, func() error {
				return runCheck(nil, args)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runCheck() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantJSON {
				assertJSON(t, output)
			}

			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestCheckCommandWritesReportFile(t *testing.T) {
	quiet = false
	verbose = false
	jsonOut = false
	checkFormat = "text"
	checkSummary = false
	checkOutputFile = filepath.Join(t.TempDir(), "report.txt")

	args := []string{makeTestImage(t)}

	output, err := captureOutput(t, func() error {
		return runCheck(nil, args)
	})
	if err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}

	assertContains(t, output, []string{"Report written to:"})

	data, err := os.ReadFile(checkOutputFile)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	if !strings.Contains(string(data), "SUMMARY") {
		t.Errorf("report file missing summary section:\n%s", data)
	}
}

func TestCheckCommandMissingFile(t *testing.T) {
	quiet = true
	verbose = false
	jsonOut = false
	checkFormat = "text"
	checkSummary = false
	checkOutputFile = ""

	_, err := captureOutput(t, func() error {
		return runCheck(nil, []string{"/nonexistent/heap.img"})
	})
	if err == nil {
		t.Error("runCheck() on a missing file should fail")
	}
	if !strings.Contains(err.Error(), "image not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

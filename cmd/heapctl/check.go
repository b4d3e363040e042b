package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/arena/alloc"
)

var (
	checkFormat     string
	checkOutputFile string
	checkSummary    bool
)

var checkCmd = &cobra.Command{
	Use:   "check <image>",
	Short: "Run a consistency check on a heap image",
	Long: `Performs a complete consistency scan of a heap image, checking for:
  - Superblock integrity (checksum, sequence numbers)
  - Structural integrity (sentinel frame, boundary tags, block tiling)
  - Missed coalescing (adjacent free blocks)
  - Free list consistency (membership, mirrored links, cycles)

Every issue is reported with its exact byte offset in the file.`,
	Example: `  # Scan an image and show a text report
  heapctl check scratch.heap

  # Output JSON for programmatic analysis
  heapctl check --format json scratch.heap

  # Compact format for grep
  heapctl check --format compact corrupt.heap

  # Save report to file
  heapctl check --output report.txt scratch.heap`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text",
		"Output format: text, json, compact")
	checkCmd.Flags().StringVarP(&checkOutputFile, "output", "o", "",
		"Write report to file instead of stdout")
	checkCmd.Flags().BoolVarP(&checkSummary, "summary", "s", false,
		"Show only summary (no detailed diagnostics)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("image not found: %s", path)
	}

	a, err := arena.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer a.Close()

	// Attach for the full check, free list included. Images too damaged to
	// attach still get the tag-level scan.
	var report *alloc.Report
	if h, herr := alloc.New(a, nil, nil); herr == nil {
		report = h.Check()
	} else {
		printVerbose("Allocator refused the image (%v); running tag-level scan\n", herr)
		report = alloc.CheckImage(a)
	}

	var output string
	switch checkFormat {
	case "json":
		output, err = report.FormatJSON()
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}

	case "compact":
		output = report.FormatTextCompact()

	case "text":
		if checkSummary {
			output = formatSummaryOnly(report)
		} else {
			output = report.FormatText()
		}

	default:
		return fmt.Errorf("unknown format: %s (use: text, json, compact)", checkFormat)
	}

	// Write output
	if checkOutputFile != "" {
		if err := os.WriteFile(checkOutputFile, []byte(output), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		printInfo("Report written to: %s\n", checkOutputFile)
	} else {
		fmt.Print(output)
	}

	// Exit code based on severity
	switch {
	case report.Summary.Critical > 0:
		printInfo("\nCRITICAL issues found\n")
		os.Exit(2)
	case report.HasErrors():
		printInfo("\nErrors found\n")
		os.Exit(1)
	case report.Summary.Warnings > 0:
		printInfo("\nWarnings found (non-critical)\n")
	default:
		printInfo("\nNo issues found\n")
	}

	return nil
}

func formatSummaryOnly(report *alloc.Report) string {
	output := fmt.Sprintf("Check Summary for %s\n", report.Path)
	output += fmt.Sprintf("File size: %d bytes\n", report.FileSize)
	output += fmt.Sprintf("Blocks: %d (%d free)\n", report.Blocks, report.FreeBlocks)
	output += fmt.Sprintf("Scan time: %v\n\n", report.ScanTime)
	output += fmt.Sprintf("Critical:  %d\n", report.Summary.Critical)
	output += fmt.Sprintf("Errors:    %d\n", report.Summary.Errors)
	output += fmt.Sprintf("Warnings:  %d\n", report.Summary.Warnings)
	output += fmt.Sprintf("Info:      %d\n", report.Summary.Info)
	return output
}

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult represents a current run measured against a baseline run.
type ComparisonResult struct {
	Name           string
	CurrentNs      float64
	BaselineNs     float64
	Speedup        float64
	CurrentMem     int64
	BaselineMem    int64
	CurrentAllocs  int64
	BaselineAllocs int64
	CurrentOnly    bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"File with current benchmark output (stdin if not specified)",
	)
	baselineFile = flag.String(
		"baseline",
		"",
		"File with baseline benchmark output to compare against (optional)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	// Read current benchmark output
	var scanner *bufio.Scanner
	var inputF *os.File
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		inputF = f
		scanner = bufio.NewScanner(f)
	} else {
		scanner = bufio.NewScanner(os.Stdin)
	}

	// Parse benchmarks
	current := parseBenchmarks(scanner)

	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(current))
	}

	// Parse baseline run when given
	var baseline []BenchmarkResult
	if *baselineFile != "" {
		f, err := os.Open(*baselineFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening baseline file: %v\n", err)
			if inputF != nil {
				inputF.Close()
			}
			os.Exit(1)
		}
		baseline = parseBenchmarks(bufio.NewScanner(f))
		f.Close()

		if !*quiet {
			fmt.Fprintf(os.Stderr, "Parsed %d baseline results\n", len(baseline))
		}
	}

	// Generate comparisons and the markdown report
	comparisons := generateComparisons(current, baseline)
	report := generateMarkdownReport(comparisons, len(baseline) > 0)

	// Write output
	if *outputFile != "" {
		err := os.WriteFile(*outputFile, []byte(report), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			if inputF != nil {
				inputF.Close()
			}
			os.Exit(1)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
		}
	} else {
		fmt.Fprint(os.Stdout, report)
	}

	// Close input file if opened
	if inputF != nil {
		inputF.Close()
	}
}

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	// Regex to parse benchmark output lines
	// Benchmark_Malloc_SmallBlocks-8    10000    12450 ns/op    4096 B/op    8 allocs/op
	benchmarkRegex := regexp.MustCompile(
		`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+(?:B|MB)/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Try to parse as JSON (from -json flag)
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		// Parse benchmark line
		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		name := normalizeBenchName(matches[1])
		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)

		var bytesPerOp int64
		var allocsPerOp int64

		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		results = append(results, BenchmarkResult{
			Name:        name,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return results
}

// normalizeBenchName strips the GOMAXPROCS suffix so the same benchmark
// matches across runs on different machines.
// Benchmark_Malloc_SmallBlocks-8 -> Benchmark_Malloc_SmallBlocks
func normalizeBenchName(name string) string {
	dashIdx := strings.LastIndex(name, "-")
	if dashIdx > 0 {
		if _, err := strconv.Atoi(name[dashIdx+1:]); err == nil {
			return name[:dashIdx]
		}
	}
	return name
}

func generateComparisons(current, baseline []BenchmarkResult) []ComparisonResult {
	baselineByName := make(map[string]BenchmarkResult, len(baseline))
	for _, result := range baseline {
		baselineByName[result.Name] = result
	}

	var comparisons []ComparisonResult

	for _, result := range current {
		base, hasBaseline := baselineByName[result.Name]

		if hasBaseline {
			// Speedup > 1.0 means the current run got faster
			speedup := base.NsPerOp / result.NsPerOp

			comparisons = append(comparisons, ComparisonResult{
				Name:           result.Name,
				CurrentNs:      result.NsPerOp,
				BaselineNs:     base.NsPerOp,
				Speedup:        speedup,
				CurrentMem:     result.BytesPerOp,
				BaselineMem:    base.BytesPerOp,
				CurrentAllocs:  result.AllocsPerOp,
				BaselineAllocs: base.AllocsPerOp,
				CurrentOnly:    false,
			})
		} else {
			// New benchmark with no baseline to compare against
			comparisons = append(comparisons, ComparisonResult{
				Name:          result.Name,
				CurrentNs:     result.NsPerOp,
				CurrentMem:    result.BytesPerOp,
				CurrentAllocs: result.AllocsPerOp,
				CurrentOnly:   true,
			})
		}
	}

	// Sort by name for stable reports
	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].Name < comparisons[j].Name
	})

	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, haveBaseline bool) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	if !haveBaseline {
		// Single-run report
		sb.WriteString("## Results\n\n")
		sb.WriteString("| Benchmark | ns/op | Memory (B/op) | Allocs |\n")
		sb.WriteString("|-----------|-------|---------------|--------|\n")
		for _, comp := range comparisons {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				comp.Name,
				formatNumber(comp.CurrentNs),
				formatBytes(comp.CurrentMem),
				formatNumber(float64(comp.CurrentAllocs)),
			))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	// Summary statistics
	faster := 0
	slower := 0
	currentOnly := 0
	totalSpeedup := 0.0

	for _, comp := range comparisons {
		if comp.CurrentOnly {
			currentOnly++
		} else {
			if comp.Speedup > 1.0 {
				faster++
			} else if comp.Speedup < 1.0 {
				slower++
			}
			totalSpeedup += comp.Speedup
		}
	}

	comparableCount := len(comparisons) - currentOnly
	avgSpeedup := 0.0
	if comparableCount > 0 {
		avgSpeedup = totalSpeedup / float64(comparableCount)
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total benchmarks**: %d\n", len(comparisons)))
	sb.WriteString(fmt.Sprintf("- **Comparable** (present in both runs): %d\n", comparableCount))
	if comparableCount > 0 {
		sb.WriteString(
			fmt.Sprintf(
				"  - faster than baseline: %d (%.1f%%)\n",
				faster,
				float64(faster)/float64(comparableCount)*100,
			),
		)
		sb.WriteString(
			fmt.Sprintf(
				"  - slower than baseline: %d (%.1f%%)\n",
				slower,
				float64(slower)/float64(comparableCount)*100,
			),
		)
		sb.WriteString(fmt.Sprintf("  - Average speedup: **%.2fx**\n", avgSpeedup))
	}
	sb.WriteString(fmt.Sprintf("- **New benchmarks** (no baseline): %d\n", currentOnly))
	sb.WriteString("\n")

	// Detailed results table
	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString(
		"| Benchmark | current (ns/op) | baseline (ns/op) | Speedup | Memory (B/op) | Allocs |\n",
	)
	sb.WriteString(
		"|-----------|-----------------|------------------|---------|---------------|--------|\n",
	)

	for _, comp := range comparisons {
		if comp.CurrentOnly {
			sb.WriteString(fmt.Sprintf("| %s | %s | *N/A* | *new* | %s | %s |\n",
				comp.Name,
				formatNumber(comp.CurrentNs),
				formatBytes(comp.CurrentMem),
				formatNumber(float64(comp.CurrentAllocs)),
			))
			continue
		}

		indicator := "✓"
		speedupStyle := "**"
		if comp.Speedup < 1.0 {
			indicator = "✗"
			speedupStyle = ""
		}

		memIndicator := ""
		if comp.CurrentMem < comp.BaselineMem {
			memIndicator = " ✓"
		} else if comp.CurrentMem > comp.BaselineMem {
			memIndicator = " ✗"
		}

		allocIndicator := ""
		if comp.CurrentAllocs < comp.BaselineAllocs {
			allocIndicator = " ✓"
		} else if comp.CurrentAllocs > comp.BaselineAllocs {
			allocIndicator = " ✗"
		}

		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s%.2fx%s %s | %s vs %s%s | %s vs %s%s |\n",
			comp.Name,
			formatNumber(comp.CurrentNs),
			formatNumber(comp.BaselineNs),
			speedupStyle,
			comp.Speedup,
			speedupStyle,
			indicator,
			formatBytes(comp.CurrentMem),
			formatBytes(comp.BaselineMem),
			memIndicator,
			formatNumber(float64(comp.CurrentAllocs)),
			formatNumber(float64(comp.BaselineAllocs)),
			allocIndicator,
		))
	}

	sb.WriteString("\n")

	// Category summaries
	sb.WriteString("## Performance by Category\n\n")

	categories := categorizeOperations(comparisons)
	for _, category := range []string{"Allocation", "Allocate/Free", "Churn", "Flush Tracking", "Other"} {
		comps := categories[category]
		if len(comps) == 0 {
			continue
		}

		avgSpeed := 0.0
		count := 0
		for _, comp := range comps {
			if !comp.CurrentOnly {
				avgSpeed += comp.Speedup
				count++
			}
		}

		if count > 0 {
			avgSpeed /= float64(count)
			status := "✓"
			if avgSpeed < 1.0 {
				status = "✗"
			}
			sb.WriteString(fmt.Sprintf("- %s **%s**: %.2fx average speedup %s\n",
				status, category, avgSpeed, status))
		} else {
			sb.WriteString(fmt.Sprintf("- **%s**: new benchmarks only\n", category))
		}
	}

	sb.WriteString("\n")

	// Notes
	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **Speedup > 1.0**: current run is faster ✓\n")
	sb.WriteString("- **Speedup < 1.0**: baseline was faster ✗\n")
	sb.WriteString("- **Memory comparison**: Lower is better\n")
	sb.WriteString("- **Allocations**: Fewer is better\n")

	return sb.String()
}

func categorizeOperations(comparisons []ComparisonResult) map[string][]ComparisonResult {
	categories := map[string][]ComparisonResult{
		"Allocation":     {},
		"Allocate/Free":  {},
		"Churn":          {},
		"Flush Tracking": {},
		"Other":          {},
	}

	for _, comp := range comparisons {
		name := strings.ToLower(comp.Name)

		switch {
		case strings.Contains(name, "dirty") || strings.Contains(name, "flush") ||
			strings.Contains(name, "coalesce_"):
			categories["Flush Tracking"] = append(categories["Flush Tracking"], comp)
		case strings.Contains(name, "churn"):
			categories["Churn"] = append(categories["Churn"], comp)
		case strings.Contains(name, "free"):
			categories["Allocate/Free"] = append(categories["Allocate/Free"], comp)
		case strings.Contains(name, "malloc"):
			categories["Allocation"] = append(categories["Allocation"], comp)
		default:
			categories["Other"] = append(categories["Other"], comp)
		}
	}

	return categories
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}

func formatBytes(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(b)/(1024*1024))
	} else if b >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(b)/1024)
	}
	return fmt.Sprintf("%dB", b)
}

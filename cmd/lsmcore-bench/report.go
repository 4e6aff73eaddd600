package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult stores the results of a benchmark
type BenchmarkResult struct {
	BenchmarkType string
	NumKeys       int
	ValueSize     int
	Mode          string
	Operations    int
	Duration      float64
	Throughput    float64
	Latency       float64 // microseconds per operation
	HitRate       float64 // read benchmarks
	EntriesPerSec float64 // scan and run benchmarks
	ReadRatio     float64 // mixed benchmarks
	WriteRatio    float64 // mixed benchmarks
	Timestamp     time.Time
}

// FormatResult renders a result for the terminal
func FormatResult(r BenchmarkResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s Benchmark Results:", r.BenchmarkType)
	fmt.Fprintf(&sb, "\n  Key Mode: %s", r.Mode)
	fmt.Fprintf(&sb, "\n  Operations: %d", r.Operations)
	fmt.Fprintf(&sb, "\n  Time: %.2f seconds", r.Duration)
	fmt.Fprintf(&sb, "\n  Throughput: %.2f ops/sec", r.Throughput)
	fmt.Fprintf(&sb, "\n  Latency: %.3f µs/op", r.Latency)
	if r.HitRate > 0 {
		fmt.Fprintf(&sb, "\n  Hit Rate: %.2f%%", r.HitRate*100)
	}
	if r.EntriesPerSec > 0 {
		fmt.Fprintf(&sb, "\n  Entries: %.2f entries/sec", r.EntriesPerSec)
	}
	if r.ReadRatio > 0 {
		fmt.Fprintf(&sb, "\n  Read/Write: %.0f%%/%.0f%%", r.ReadRatio*100, r.WriteRatio*100)
	}
	return sb.String()
}

// FormatStats renders the engine statistics sorted by name
func FormatStats(stats map[string]interface{}) string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("\nEngine Statistics:")
	for _, name := range names {
		fmt.Fprintf(&sb, "\n  %s: %v", name, stats[name])
	}
	return sb.String()
}

// SaveResultCSV saves benchmark results to a CSV file
func SaveResultCSV(results []BenchmarkResult, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Timestamp", "BenchmarkType", "NumKeys", "ValueSize", "Mode",
		"Operations", "Duration", "Throughput", "Latency", "HitRate",
		"EntriesPerSec", "ReadRatio", "WriteRatio",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Timestamp.Format(time.RFC3339),
			r.BenchmarkType,
			strconv.Itoa(r.NumKeys),
			strconv.Itoa(r.ValueSize),
			r.Mode,
			strconv.Itoa(r.Operations),
			fmt.Sprintf("%.2f", r.Duration),
			fmt.Sprintf("%.2f", r.Throughput),
			fmt.Sprintf("%.3f", r.Latency),
			fmt.Sprintf("%.2f", r.HitRate),
			fmt.Sprintf("%.2f", r.EntriesPerSec),
			fmt.Sprintf("%.1f", r.ReadRatio),
			fmt.Sprintf("%.1f", r.WriteRatio),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

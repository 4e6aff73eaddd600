package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveResultCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	results := []BenchmarkResult{
		{BenchmarkType: "write", NumKeys: 10, ValueSize: 8, Mode: "Random", Operations: 100, Duration: 1, Throughput: 100, Timestamp: time.Now()},
		{BenchmarkType: "read", NumKeys: 10, ValueSize: 8, Mode: "Random", Operations: 50, Duration: 1, HitRate: 0.5, Timestamp: time.Now()},
	}

	if err := SaveResultCSV(results, path); err != nil {
		t.Fatalf("SaveResultCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open results: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse results: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d records", len(records))
	}
	if records[1][1] != "write" || records[2][9] != "0.50" {
		t.Errorf("Unexpected rows: %v", records[1:])
	}
}

func TestFormatStatsIsSorted(t *testing.T) {
	out := FormatStats(map[string]interface{}{"zeta": 1, "alpha": 2})
	if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
		t.Errorf("Expected sorted statistics, got %q", out)
	}
}

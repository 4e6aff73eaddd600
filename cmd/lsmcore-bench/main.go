package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/KevoDB/lsmcore/pkg/common/log"
	"github.com/KevoDB/lsmcore/pkg/config"
	"github.com/KevoDB/lsmcore/pkg/engine"
	"github.com/KevoDB/lsmcore/pkg/sstable"
	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultValueSize = 100
	defaultKeyCount  = 100000
)

var (
	benchmarkType = flag.String("type", "all", "Benchmarks to run, comma separated (write, random-write, read, scan, range-scan, build-run, mixed, or all)")
	duration      = flag.Duration("duration", 5*time.Second, "Duration of each timed benchmark")
	numKeys       = flag.Int("keys", defaultKeyCount, "Number of keys to use")
	valueSize     = flag.Int("value-size", defaultValueSize, "Size of values in bytes")
	sequential    = flag.Bool("sequential", false, "Use sequential keys instead of random")
	scanSize      = flag.Int("scan-size", 100, "Number of entries read per range scan")
	configFile    = flag.String("config", "", "JSON configuration file (defaults plus LSMCORE_* overrides when empty)")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while benchmarking")
	cpuProfile    = flag.String("cpu-profile", "", "Write CPU profile to file")
	memProfile    = flag.String("mem-profile", "", "Write memory profile to file")
	resultsFile   = flag.String("results", "", "CSV file to write results to (in addition to stdout)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := log.NewStandardLogger(log.WithLevel(cfg.Level()))

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		// runs are only measured, never kept
		engine.WithFlushHandler(func(runs []*sstable.Run) error { return nil }),
	}
	if *metricsAddr != "" {
		tel, err := serveMetrics(cfg, *metricsAddr, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start metrics endpoint: %v\n", err)
			os.Exit(1)
		}
		defer tel.Shutdown(context.Background())
		opts = append(opts, engine.WithTelemetry(tel))
	}

	e, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create engine: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	fmt.Printf("Benchmark Report (%s)\n", time.Now().Format(time.RFC3339))
	fmt.Printf("Keys: %d, Value Size: %d bytes, Duration: %s, Mode: %s\n",
		*numKeys, *valueSize, *duration, keyMode())

	b := newBench(e, *numKeys, *valueSize, *scanSize, *duration, *sequential)

	var results []BenchmarkResult
	for _, typ := range strings.Split(*benchmarkType, ",") {
		switch strings.ToLower(strings.TrimSpace(typ)) {
		case "write":
			results = append(results, b.runWrite())
		case "random-write":
			results = append(results, b.runRandomWrite())
		case "read":
			results = append(results, b.runRead())
		case "scan":
			results = append(results, b.runScan())
		case "range-scan":
			results = append(results, b.runRangeScan())
		case "build-run":
			results = append(results, b.runBuildRun())
		case "mixed":
			results = append(results, b.runMixed())
		case "all":
			results = append(results,
				b.runWrite(), b.runRandomWrite(), b.runRead(),
				b.runScan(), b.runRangeScan(), b.runBuildRun(), b.runMixed())
		default:
			fmt.Fprintf(os.Stderr, "Unknown benchmark type: %s\n", typ)
			os.Exit(1)
		}
	}

	for _, r := range results {
		fmt.Println(FormatResult(r))
	}
	fmt.Println(FormatStats(e.Stats()))

	if *resultsFile != "" {
		if err := SaveResultCSV(results, *resultsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write results to file: %v\n", err)
		}
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.LoadJSON(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.NewDefaultConfig()
		cfg.LoadFromEnv()
	}
	return cfg, cfg.Validate()
}

// serveMetrics builds a telemetry provider with the Prometheus exporter and
// serves its registry on addr
func serveMetrics(cfg *config.Config, addr string, logger log.Logger) (telemetry.Telemetry, error) {
	telCfg := cfg.Telemetry
	telCfg.Enabled = true
	if !telCfg.HasExporter(telemetry.ExporterPrometheus) {
		telCfg.Exporters = append(telCfg.Exporters, telemetry.ExporterPrometheus)
	}

	tel, err := telemetry.New(telCfg)
	if err != nil {
		return nil, err
	}
	provider, ok := tel.(*telemetry.TelemetryProvider)
	if !ok {
		return nil, errors.New("telemetry provider has no registry")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.Registry(), promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics endpoint stopped: %v", err)
		}
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	return tel, nil
}

func keyMode() string {
	if *sequential {
		return "Sequential"
	}
	return "Random"
}

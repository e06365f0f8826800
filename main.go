package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/n0madic/go-tgi-worker/internal/bench"
	"github.com/n0madic/go-tgi-worker/internal/config"
	"github.com/n0madic/go-tgi-worker/internal/logwatch"
	"github.com/n0madic/go-tgi-worker/internal/metrics"
	"github.com/n0madic/go-tgi-worker/internal/payload"
	"github.com/n0madic/go-tgi-worker/internal/schema"
	"github.com/n0madic/go-tgi-worker/internal/server"
	"github.com/n0madic/go-tgi-worker/internal/upstream"
)

const usage = "Commands: serve, bench, schema"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go-tgi-worker <command> [flags]")
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe(os.Args[2:]))
	case "bench":
		os.Exit(cmdBench(os.Args[2:]))
	case "schema":
		os.Exit(cmdSchema(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadVersions builds the registry, adds versions from schemaFile and picks
// the active one.
func loadVersions(schemaFile, active string) (*payload.Registry, *payload.Version, error) {
	reg, err := payload.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	if schemaFile != "" {
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read schema file: %w", err)
		}
		if err := reg.LoadYAML(data); err != nil {
			return nil, nil, fmt.Errorf("schema file %s: %w", schemaFile, err)
		}
	}
	v, err := reg.Lookup(active)
	if err != nil {
		return nil, nil, err
	}
	return reg, v, nil
}

func logRules(cfg *config.ServerConfig) ([]logwatch.Rule, error) {
	rules := make([]logwatch.Rule, 0, len(cfg.LogActions))
	for _, la := range cfg.LogActions {
		action, err := logwatch.ParseAction(la.Action)
		if err != nil {
			return nil, err
		}
		rules = append(rules, logwatch.Rule{Action: action, Match: la.Match})
	}
	return rules, nil
}

func cmdServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := config.DefaultFromEnv()
	configPath := config.ConfigFile()

	fs.StringVar(&configPath, "config", configPath, "YAML config file")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Dump inbound and backend HTTP traffic to stderr")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "URL reported to the autoscaler")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "Model server base URL")
	fs.IntVar(&cfg.BackendTimeout, "backend-timeout", cfg.BackendTimeout, "Backend request timeout in seconds")
	fs.StringVar(&cfg.SchemaVersion, "schema-version", cfg.SchemaVersion, "Active payload version")
	fs.StringVar(&cfg.SchemaFile, "schema-file", cfg.SchemaFile, "YAML file with extra payload versions")
	fs.StringVar(&cfg.ModelLog, "model-log", cfg.ModelLog, "Model server log file to watch")
	fs.IntVar(&cfg.BenchmarkRuns, "benchmark-runs", cfg.BenchmarkRuns, "Benchmark requests sent once the model is loaded")
	fs.IntVar(&cfg.BenchmarkWords, "benchmark-words", cfg.BenchmarkWords, "Generation bound of the benchmark request")
	fs.Parse(args)

	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		// Flags win over the file.
		fs.Parse(args)
	}
	setupLogging(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	reg, version, err := loadVersions(cfg.SchemaFile, cfg.SchemaVersion)
	if err != nil {
		slog.Error("failed to load payload versions", "error", err)
		return 1
	}
	rules, err := logRules(cfg)
	if err != nil {
		slog.Error("invalid log action", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon := metrics.New(cfg.ReportedURL())
	client := upstream.NewClient(cfg.BackendChatURL(), cfg.BackendToken, time.Duration(cfg.BackendTimeout)*time.Second, cfg.Verbose)
	client.Debug = cfg.Debug

	runner := &bench.Runner{
		Version: version,
		Backend: client,
		Monitor: mon,
		Runs:    cfg.BenchmarkRuns,
		Bound:   float64(cfg.BenchmarkWords),
	}
	var benchOnce sync.Once
	startBenchmark := func() {
		if cfg.BenchmarkRuns == 0 {
			return
		}
		benchOnce.Do(func() {
			go func() {
				if _, err := runner.Run(ctx); err != nil {
					slog.Error("benchmark failed", "error", err)
				}
			}()
		})
	}

	deps := server.Deps{Registry: reg, Version: version, Backend: client, Monitor: mon}
	if cfg.ModelLog != "" {
		var watcher *logwatch.Watcher
		watcher = logwatch.New(cfg.ModelLog, rules, func(ev logwatch.Event) {
			switch ev.Action {
			case logwatch.ActionModelLoaded:
				mon.SetLoadTime(watcher.State().LoadTime)
				startBenchmark()
			case logwatch.ActionModelError:
				mon.SetError(ev.Line)
			}
		})
		deps.Readiness = watcher
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("model log watcher stopped", "path", cfg.ModelLog, "error", err)
			}
		}()
	} else {
		slog.Info("no model log configured; backend assumed ready, benchmark skipped")
	}

	srv := server.New(cfg, deps)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("worker starting",
		"addr", cfg.Addr(),
		"backend", cfg.BackendChatURL(),
		"version", version.Name(),
		"worker_id", mon.ID(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

func cmdBench(args []string) int {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	url := fs.String("url", "http://127.0.0.1:3000", "Worker base URL")
	apiKey := fs.String("api-key", os.Getenv("OPENAI_API_KEY"), "API key sent to the worker")
	versionName := fs.String("version", schema.DefaultVersion, "Payload version to send")
	schemaFile := fs.String("schema-file", "", "YAML file with extra payload versions")
	n := fs.Int("n", 10, "Number of requests")
	concurrency := fs.Int("c", 2, "Requests in flight")
	timeout := fs.Duration("timeout", 5*time.Minute, "Per-request timeout")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	fs.Parse(args)
	setupLogging(*verbose)

	_, version, err := loadVersions(*schemaFile, *versionName)
	if err != nil {
		slog.Error("failed to load payload versions", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := bench.NewSDKDriver(*url, *apiKey, version, *timeout)
	sum, _, err := driver.Drive(ctx, *n, *concurrency)
	if err != nil {
		slog.Error("bench interrupted", "error", err)
		return 1
	}

	fmt.Printf("requests:   %d (%d failed)\n", sum.Requests, sum.Failures)
	fmt.Printf("elapsed:    %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Printf("latency:    mean %s, p50 %s, max %s\n",
		sum.Mean.Round(time.Millisecond), sum.P50.Round(time.Millisecond), sum.Max.Round(time.Millisecond))
	if secs := sum.Elapsed.Seconds(); secs > 0 && sum.Tokens > 0 {
		fmt.Printf("throughput: %.1f tokens/s\n", float64(sum.Tokens)/secs)
	}
	if sum.Failures > 0 {
		return 1
	}
	return 0
}

func cmdSchema(args []string) int {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	versionName := fs.String("version", schema.DefaultVersion, "Payload version to export")
	schemaFile := fs.String("schema-file", "", "YAML file with extra payload versions")
	list := fs.Bool("list", false, "List known versions")
	fs.Parse(args)

	reg, version, err := loadVersions(*schemaFile, *versionName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *list {
		for _, name := range reg.Names() {
			fmt.Println(name)
		}
		return 0
	}

	data, err := json.MarshalIndent(schema.OpenAPI(version.Schema), "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

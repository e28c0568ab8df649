// # cmd/symtree/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"symtree/internal/core/app"
	"symtree/internal/core/config"
	"symtree/internal/core/ports"
	"symtree/internal/shared/observability"
	"symtree/internal/shared/util"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: ./symtree.toml, then ./symtree.example.toml)")
	once       = flag.Bool("once", false, "Run single scan and exit")
	lookup     = flag.String("lookup", "", "Print stored symbols matching a plain or qualified name and exit")
	importers  = flag.String("importers", "", "Print stored files importing a module and exit")
	runs       = flag.Int("runs", 0, "List the N most recent stored runs and exit")
	prune      = flag.Int("prune", 0, "Keep only the N most recent stored runs and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("symtree v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to resolve working directory", "error", err)
		os.Exit(1)
	}

	cfg, loadedFrom, err := loadConfig(*configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.ScanPaths = flag.Args()
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve paths", "error", err)
		os.Exit(1)
	}
	slog.Debug("configuration loaded", "file", loadedFrom, "project_root", paths.ProjectRoot, "scan_paths", paths.ScanPaths)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *lookup != "" || *importers != "" || *runs > 0 || *prune > 0 {
		q := storeQuery{Lookup: *lookup, Importers: *importers, Runs: *runs, Prune: *prune}
		if err := runStoreQuery(ctx, os.Stdout, cfg, paths, q); err != nil {
			slog.Error("store query failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.Exit(run(ctx, cfg, paths, loadedFrom))
}

func run(ctx context.Context, cfg *config.Config, paths config.ResolvedPaths, loadedFrom string) int {
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(cctx); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		health := app.NewHealthService(a)
		srv := observability.NewServer(addr)
		srv.SetHealthCheck(func(ctx context.Context) any { return health.Check(ctx) })
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(sctx)
		}()
	}

	result, err := a.RunScan(ctx)
	if err != nil {
		slog.Error("scan failed", "error", err)
		return 1
	}
	fmt.Print(formatScanResult(result, a.Snapshot().Failures))
	slog.Debug("scan complete", "heap_mb", util.HeapAllocMB(), "duration", result.Duration)

	if *once {
		return 0
	}

	a.SetUpdateHandler(func(u ports.WatchUpdate) {
		fmt.Print(formatWatchUpdate(u))
	})
	if err := a.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	if loadedFrom != "" {
		cw := config.NewWatcher(loadedFrom, func(next *config.Config) {
			a.SetWatchDebounce(next.Watch.Debounce)
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bids-indexer/internal/entities"
	"bids-indexer/internal/handlers"
	"bids-indexer/internal/indexer"
	"bids-indexer/internal/logging"
	"bids-indexer/internal/memory"
	"bids-indexer/internal/metrics"
	"bids-indexer/internal/middleware"
	"bids-indexer/internal/schema"
	"bids-indexer/internal/startup"
	"bids-indexer/internal/storage"
	"bids-indexer/internal/table"

	"github.com/gorilla/mux"
)

// runServe is the long-running service: an initial index in the
// background, periodic and change-triggered re-indexing, and an HTTP
// API, all configured from environment variables.
func runServe() {
	startTime := time.Now()

	// Configure GOMEMLIMIT before anything allocates in earnest
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(startup.MemoryConfig{
		Configured:     memResult.Configured,
		Source:         memResult.Source,
		ContainerLimit: memResult.ContainerLimit,
		GoMemLimit:     memResult.GoMemLimit,
		Ratio:          memResult.Ratio,
	})

	ix, err := schema.Load(config.SchemaFile)
	if err != nil {
		startup.LogFatal("Schema error: %v", err)
	}
	source := "built-in rules"
	if config.SchemaFile != "" {
		source = config.SchemaFile
	}
	startup.LogSchemaInit(source, len(ix.Canonical()), len(ix.Datatypes()))

	storage.SetObserver(metrics.NewStorageObserver())

	// Open and close a sink once now so a bad output path fails the
	// boot instead of the first run half an hour in.
	newSink := sinkFactory(config, ix)
	sinkStart := time.Now()
	probe, err := newSink(context.Background())
	if err != nil {
		startup.LogFatal("Output error: %v", err)
	}
	if err := probe.Close(); err != nil {
		startup.LogFatal("Output error: %v", err)
	}
	startup.LogSinkInit(config.OutputFormat, config.OutputPath, time.Since(sinkStart))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	startup.LogIndexerInit(config.IndexInterval, config.PollInterval, config.Workers)
	idx := indexer.New(entities.NewParser(ix), newSink, indexer.Options{
		Roots:        config.Roots,
		Manifest:     config.ManifestPath,
		Workers:      config.Workers,
		Subjects:     config.Subjects,
		Exclude:      config.Exclude,
		ExcludeDirs:  config.ExcludeDirs,
		Incremental:  config.Incremental,
		Prune:        config.Prune,
		BatchSize:    config.BatchSize,
		Interval:     config.IndexInterval,
		PollInterval: config.PollInterval,
		Monitor:      monitor,
	})

	// Runs started over the API are tied to this context, not to the
	// request that triggered them.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	idx.Start(runCtx)
	startup.LogIndexerStarted()

	// Gauges on /metrics refresh from the last completed run.
	collector := metrics.NewCollector(idx, time.Minute)
	collector.Start()

	h := handlers.New(runCtx, idx, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Metrics(middleware.DefaultMetricsConfig())(
			middleware.Logger(loggingConfig)(router)))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, cancelRuns, collector, monitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// sinkFactory builds the sink constructor for the configured output.
// Parquet parts are append-only, so each parquet run starts by
// clearing the previous parts and rebuilds the whole table; sqlite
// converges in place through upserts.
func sinkFactory(config *startup.Config, ix *schema.Index) indexer.SinkFactory {
	if config.OutputFormat == "parquet" {
		return func(_ context.Context) (table.Sink, error) {
			if err := table.ClearParts(config.OutputPath); err != nil {
				return nil, err
			}
			return table.NewParquetSink(config.OutputPath, ix, table.DefaultPartSize)
		}
	}
	return func(ctx context.Context) (table.Sink, error) {
		return table.NewSQLiteSink(ctx, config.OutputPath, ix)
	}
}

// setupRouter wires the HTTP routes. Health endpoints sit at the root
// where load balancers and kubelets expect them; everything else lives
// under /api.
func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/index", h.TriggerIndex).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

// handleShutdown runs the graceful shutdown sequence on SIGINT or
// SIGTERM: stop starting new work first, then drain the HTTP servers.
func handleShutdown(srv, metricsSrv *http.Server, cancelRuns context.CancelFunc, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping indexer")
	cancelRuns()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
		startup.LogShutdownStepComplete("Metrics server stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("HTTP server shutdown error: %v", err)
	}
	startup.LogShutdownComplete()
}

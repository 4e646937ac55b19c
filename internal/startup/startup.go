package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"bids-indexer/internal/logging"
	"bids-indexer/internal/table"
	"bids-indexer/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all serve-mode configuration
type Config struct {
	Roots           []string
	OutputDir       string
	OutputFormat    string
	SchemaFile      string
	Port            string
	MetricsPort     string
	IndexInterval   time.Duration
	PollInterval    time.Duration
	Workers         int
	BatchSize       int
	Subjects        []string
	Exclude         []string
	ExcludeDirs     []string
	Incremental     bool
	Prune           bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	OutputPath   string
	ManifestPath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	roots := getEnvList("INDEX_ROOTS", "/data")
	outputDir := getEnv("OUTPUT_DIR", "/index")
	outputFormat := strings.ToLower(getEnv("OUTPUT_FORMAT", "sqlite"))
	schemaFile := getEnv("SCHEMA_FILE", "")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	indexIntervalStr := getEnv("INDEX_INTERVAL", "30m")
	pollIntervalStr := getEnv("POLL_INTERVAL", "30s")
	numWorkers := workers.ForMixed(0)
	batchSize := getEnvInt("BATCH_SIZE", 500)
	subjects := getEnvList("INDEX_SUBJECTS", "")
	exclude := getEnvList("INDEX_EXCLUDE", "")
	excludeDirs := getEnvList("EXCLUDE_DIRS", "")
	incremental := getEnvBool("INCREMENTAL", true)
	prune := getEnvBool("PRUNE", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  INDEX_ROOTS:       %s", strings.Join(roots, ", "))
	logging.Info("  OUTPUT_DIR:        %s", outputDir)
	logging.Info("  OUTPUT_FORMAT:     %s", outputFormat)
	if schemaFile != "" {
		logging.Info("  SCHEMA_FILE:       %s", schemaFile)
	} else {
		logging.Info("  SCHEMA_FILE:       (built-in rules)")
	}
	logging.Info("  PORT:              %s", port)
	logging.Info("  METRICS_PORT:      %s", metricsPort)
	logging.Info("  METRICS_ENABLED:   %v", metricsEnabled)
	logging.Info("  INDEX_INTERVAL:    %s", indexIntervalStr)
	logging.Info("  POLL_INTERVAL:     %s", pollIntervalStr)
	logging.Info("  INDEX_WORKERS:     %d", numWorkers)
	logging.Info("  BATCH_SIZE:        %d", batchSize)
	logging.Info("  INDEX_SUBJECTS:    %s", strings.Join(subjects, ", "))
	logging.Info("  INDEX_EXCLUDE:     %s", strings.Join(exclude, ", "))
	logging.Info("  EXCLUDE_DIRS:      %s", strings.Join(excludeDirs, ", "))
	logging.Info("  INCREMENTAL:       %v", incremental)
	logging.Info("  PRUNE:             %v", prune)
	logging.Info("  LOG_HEALTH_CHECKS: %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	switch outputFormat {
	case "sqlite", "parquet":
	default:
		return nil, fmt.Errorf("invalid OUTPUT_FORMAT %q (expected sqlite or parquet)", outputFormat)
	}

	if prune && !incremental {
		return nil, fmt.Errorf("PRUNE requires INCREMENTAL=true")
	}
	if prune && outputFormat == "parquet" {
		return nil, fmt.Errorf("PRUNE is not supported with parquet output")
	}
	if incremental && outputFormat == "parquet" {
		// Parquet parts are append-only; skipping unchanged files would
		// leave updated keys duplicated across old and new parts. Every
		// parquet run rebuilds the full table instead.
		logging.Warn("  INCREMENTAL is not supported with parquet output, running full rebuilds")
		incremental = false
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("INDEX_ROOTS must name at least one data root")
	}

	indexInterval, err := time.ParseDuration(indexIntervalStr)
	if err != nil {
		logging.Warn("  Invalid INDEX_INTERVAL, using default: 30m")
		indexInterval = 30 * time.Minute
	}

	pollInterval, err := time.ParseDuration(pollIntervalStr)
	if err != nil {
		logging.Warn("  Invalid POLL_INTERVAL, using default: 30s")
		pollInterval = 30 * time.Second
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", outputDir)

	for i, root := range roots {
		if strings.HasPrefix(root, "s3://") {
			logging.Info("  Data root (remote): %s", root)
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %s: %w", root, err)
		}
		roots[i] = abs
		logging.Info("  Data root (absolute): %s", abs)

		// A missing root is only a warning here; the run itself records
		// it as a failure without aborting the other roots.
		if err := checkRoot(abs); err != nil {
			logging.Warn("  Data root issue: %v", err)
		}
	}

	outputName := "index.db"
	if outputFormat == "parquet" {
		outputName = "index.parquet"
	}

	config := &Config{
		Roots:           roots,
		OutputDir:       outputDir,
		OutputFormat:    outputFormat,
		SchemaFile:      schemaFile,
		Port:            port,
		MetricsPort:     metricsPort,
		IndexInterval:   indexInterval,
		PollInterval:    pollInterval,
		Workers:         numWorkers,
		BatchSize:       batchSize,
		Subjects:        subjects,
		Exclude:         exclude,
		ExcludeDirs:     excludeDirs,
		Incremental:     incremental,
		Prune:           prune,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		OutputPath:      filepath.Join(outputDir, outputName),
		ManifestPath:    filepath.Join(outputDir, table.ManifestName),
	}

	// Ensure the output directory exists (required for the index and manifest)
	if err := ensureDirectory(outputDir, "output"); err != nil {
		return nil, fmt.Errorf("output directory error: %w", err)
	}

	logging.Debug("  Testing output directory write access...")
	if err := testWriteAccess(outputDir); err != nil {
		return nil, fmt.Errorf("output directory is not writable (required for the index): %w", err)
	}
	logging.Info("  [OK] Output directory is writable")

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Output:      ENABLED (%s, required)", outputFormat)
	logging.Info("    Incremental: %s", enabledString(incremental))
	logging.Info("    Pruning:     %s", enabledString(prune))
	logging.Info("    Metrics:     %s", enabledString(metricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// MemoryConfig describes the GOMEMLIMIT configuration applied at startup
type MemoryConfig struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// LogMemoryConfig logs how the Go memory limit was derived
func LogMemoryConfig(mc MemoryConfig) {
	if !mc.Configured {
		logging.Debug("  GOMEMLIMIT not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}

	switch mc.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:        %s (explicit)", formatBytesStartup(mc.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  GOMEMLIMIT:        %s (%.0f%% of %s container limit)",
			formatBytesStartup(mc.GoMemLimit),
			mc.Ratio*100,
			formatBytesStartup(mc.ContainerLimit))
	}
}

// LogSchemaInit logs entity schema initialization
func LogSchemaInit(source string, entities, datatypes int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCHEMA INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Rules:     %s", source)
	logging.Info("  Entities:  %d", entities)
	logging.Info("  Datatypes: %d", datatypes)
}

// LogSinkInit logs index output initialization
func LogSinkInit(format, path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OUTPUT INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Format: %s", format)
	logging.Info("  Path:   %s", path)
	logging.Info("  [OK] Output ready in %v", duration)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval, pollInterval time.Duration, numWorkers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Index interval: %v", interval)
	logging.Info("  Poll interval:  %v", pollInterval)
	logging.Info("  Workers:        %d", numWorkers)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    API:           http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  ________  _____      _           __
   / __ )/  _/ __ \/ ___/     (_)___  ____/ /__  _  _____  ___
  / __  |/ // / / /\__ \     / / __ \/ __  / _ \| |/_/ _ \/ __|
 / /_/ // // /_/ /___/ /    / / / / / /_/ /  __/>  </  __/ |
/_____/___/_____//____/    /_/_/ /_/\__,_/\___/_/|_|\___/|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// checkRoot verifies a local data root exists. Roots are read-only
// input, so a missing one is reported rather than created.
func checkRoot(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				}
			}
			logging.Debug("    Contents: %d entries, %d directories (top level)", len(entries), dirCount)
		}
	}

	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

// formatBytesStartup formats a byte count for log output. Kept local so
// the startup package does not depend on internal/memory.
func formatBytesStartup(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma-separated environment variable, trimming
// whitespace and dropping empty elements.
func getEnvList(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

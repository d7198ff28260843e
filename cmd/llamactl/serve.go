package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamactl/internal/common/fsutil"
	"llamactl/internal/config"
	"llamactl/internal/diagnose"
	"llamactl/internal/httpapi"
	"llamactl/internal/registry"
	"llamactl/internal/settings"
	"llamactl/internal/supervisor"
	"llamactl/internal/telemetry"
)

type serveOptions struct {
	addr              string
	modelsDir         string
	llamaBin          string
	cacheDir          string
	slotsDir          string
	settingsFile      string
	telemetryInterval int
	gpuCards          string
	corsEnabled       bool
	corsOrigins       string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane HTTP server",
	}
	opts := registerServeFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, root, opts)
	}
	return cmd
}

func registerServeFlags(cmd *cobra.Command) *serveOptions {
	opts := &serveOptions{}
	fl := cmd.Flags()
	fl.StringVar(&opts.addr, "addr", "", "HTTP listen address (defaults LLAMACTL_ADDR or :5000)")
	fl.StringVar(&opts.modelsDir, "models-dir", "", "Directory scanned for *.gguf files (defaults LLAMACTL_MODELS_DIR or ~/models)")
	fl.StringVar(&opts.llamaBin, "llama-bin", "", "llama-server executable (defaults LLAMACTL_LLAMA_BIN or /usr/local/bin/llama-server)")
	fl.StringVar(&opts.cacheDir, "cache-dir", "", "Worker cache directory cleared on stop (defaults LLAMACTL_CACHE_DIR or ~/.cache/llama)")
	fl.StringVar(&opts.slotsDir, "slots-dir", "", "Worker slot save path (defaults LLAMACTL_SLOTS_DIR or /tmp/llama_slots)")
	fl.StringVar(&opts.settingsFile, "settings-file", "", "Persisted launch defaults file (defaults LLAMACTL_SETTINGS_FILE or ~/.llamactl_settings.json)")
	fl.IntVar(&opts.telemetryInterval, "telemetry-interval", 0, "Seconds between GPU samples (0 = built-in default)")
	fl.StringVar(&opts.gpuCards, "gpu-cards", "", `Cards to sample as "card:name:vulkan_id" CSV, e.g. "card1:RX 470:1,card2:RX 6600:0" (empty = PCI auto-discovery)`)
	fl.BoolVar(&opts.corsEnabled, "cors", false, "Enable CORS on the HTTP API")
	fl.StringVar(&opts.corsOrigins, "cors-origins", "", "Allowed CORS origins CSV")
	return opts
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	logger, err := newLogger(root.logLevel)
	if err != nil {
		return err
	}

	var file config.Config
	if root.configPath != "" {
		file, err = config.Load(root.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cfg, err := resolveServeConfig(cmd.Flags().Changed, opts, file)
	if err != nil {
		return err
	}

	if cfg.ModelsDir, err = fsutil.ExpandHome(cfg.ModelsDir); err != nil {
		return err
	}
	logger.Info().Str("models_dir", cfg.ModelsDir).Str("llama_bin", cfg.LlamaBin).Msg("starting llamactl")
	if !fsutil.PathExists(cfg.ModelsDir) {
		logger.Warn().Str("dir", cfg.ModelsDir).Msg("models directory does not exist, creating it")
	}
	if _, err := fsutil.EnsureDir(cfg.ModelsDir); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	if _, err := exec.LookPath(cfg.LlamaBin); err != nil {
		// Not fatal: start requests fail with a clear status until the
		// binary shows up.
		logger.Error().Str("bin", cfg.LlamaBin).Msg("llama-server executable not found")
	}

	reg, err := registry.Watch(cfg.ModelsDir, logger)
	if err != nil {
		return fmt.Errorf("watch models dir: %w", err)
	}
	defer reg.Close()

	store := settings.NewStore(cfg.SettingsFile, logger)

	devices := make([]telemetry.DeviceConfig, 0, len(cfg.GPUCards))
	for _, c := range cfg.GPUCards {
		devices = append(devices, telemetry.DeviceConfig{Card: c.Card, Name: c.Name, VulkanID: c.VulkanID})
	}
	if len(devices) == 0 {
		devices = telemetry.Discover(logger)
	}

	workerName := filepath.Base(cfg.LlamaBin)
	probeCard := ""
	if len(devices) > 0 {
		probeCard = devices[0].Card
	}
	runner := diagnose.NewRunner(workerName, probeCard, logger)

	cache := telemetry.NewCache(telemetry.CacheConfig{
		Reader:    telemetry.NewReader(devices),
		Interval:  time.Duration(cfg.TelemetryIntervalSeconds) * time.Second,
		Diagnoser: runner,
		Logger:    logger,
	})
	cache.Start()
	defer cache.Stop()

	sup := supervisor.New(supervisor.SupervisorConfig{
		LlamaBin:   cfg.LlamaBin,
		ModelDir:   cfg.ModelsDir,
		CacheDir:   cfg.CacheDir,
		SlotsDir:   cfg.SlotsDir,
		WorkerName: workerName,
		Publisher:  logPublisher{log: logger},
		Logger:     logger,
	})
	defer sup.Close()

	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(httpapi.Deps{
		Worker:    sup,
		Telemetry: cache,
		Diagnoser: runner,
		Catalog:   reg,
		Settings:  store,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Cancel the base context first so in-flight diagnosis scans stop
	// blocking the drain.
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// resolveServeConfig applies the precedence explicit flag > environment >
// config file > built-in default, field by field. changed reports whether a
// flag was set on the command line.
func resolveServeConfig(changed func(name string) bool, opts *serveOptions, file config.Config) (config.Config, error) {
	def := defaultServeConfig()
	cfg := config.Config{
		Addr:                     pickString(changed("addr"), opts.addr, "LLAMACTL_ADDR", file.Addr, def.Addr),
		ModelsDir:                pickString(changed("models-dir"), opts.modelsDir, "LLAMACTL_MODELS_DIR", file.ModelsDir, def.ModelsDir),
		LlamaBin:                 pickString(changed("llama-bin"), opts.llamaBin, "LLAMACTL_LLAMA_BIN", file.LlamaBin, def.LlamaBin),
		CacheDir:                 pickString(changed("cache-dir"), opts.cacheDir, "LLAMACTL_CACHE_DIR", file.CacheDir, def.CacheDir),
		SlotsDir:                 pickString(changed("slots-dir"), opts.slotsDir, "LLAMACTL_SLOTS_DIR", file.SlotsDir, def.SlotsDir),
		SettingsFile:             pickString(changed("settings-file"), opts.settingsFile, "LLAMACTL_SETTINGS_FILE", file.SettingsFile, def.SettingsFile),
		TelemetryIntervalSeconds: pickInt(changed("telemetry-interval"), opts.telemetryInterval, "LLAMACTL_TELEMETRY_INTERVAL", file.TelemetryIntervalSeconds, 0),
		GPUCards:                 file.GPUCards,
		CORS:                     file.CORS,
	}
	if s := pickString(changed("gpu-cards"), opts.gpuCards, "LLAMACTL_GPU_CARDS", "", ""); s != "" {
		cards, err := parseGPUCards(s)
		if err != nil {
			return cfg, err
		}
		cfg.GPUCards = cards
	}
	if changed("cors") {
		cfg.CORS.Enabled = opts.corsEnabled
	}
	if s := pickString(changed("cors-origins"), opts.corsOrigins, "LLAMACTL_CORS_ORIGINS", "", ""); s != "" {
		cfg.CORS.AllowedOrigins = splitCSV(s)
	}
	if cfg.CORS.Enabled {
		if len(cfg.CORS.AllowedMethods) == 0 {
			cfg.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		}
		if len(cfg.CORS.AllowedHeaders) == 0 {
			cfg.CORS.AllowedHeaders = []string{"Accept", "Content-Type", "X-Log-Level"}
		}
	}
	return cfg, nil
}

func defaultServeConfig() config.Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return config.Config{
		Addr:         ":5000",
		ModelsDir:    filepath.Join(home, "models"),
		LlamaBin:     "/usr/local/bin/llama-server",
		CacheDir:     filepath.Join(home, ".cache", "llama"),
		SlotsDir:     filepath.Join(os.TempDir(), "llama_slots"),
		SettingsFile: filepath.Join(home, ".llamactl_settings.json"),
	}
}

func pickString(flagSet bool, flagVal, envKey, fileVal, def string) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func pickInt(flagSet bool, flagVal int, envKey string, fileVal, def int) int {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if fileVal != 0 {
		return fileVal
	}
	return def
}

// parseGPUCards parses a "card:name:vulkan_id" CSV, e.g.
// "card1:RX 470:1,card2:RX 6600:0".
func parseGPUCards(s string) ([]config.GPUCard, error) {
	var out []config.GPUCard
	for _, item := range splitCSV(s) {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad gpu card %q, want card:name:vulkan_id", item)
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("bad vulkan id in %q: %w", item, err)
		}
		out = append(out, config.GPUCard{
			Card:     strings.TrimSpace(parts[0]),
			Name:     strings.TrimSpace(parts[1]),
			VulkanID: id,
		})
	}
	return out, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl), nil
}

// logPublisher forwards supervisor lifecycle events to the process log.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(e supervisor.Event) {
	ev := p.log.Info().Str("event", e.Name)
	if e.Model != "" {
		ev = ev.Str("model", e.Model)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("worker lifecycle")
}

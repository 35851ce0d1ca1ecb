package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatereg/registry/internal/adapter/inbound/httpapi"
	"github.com/gatereg/registry/internal/adapter/outbound/embeddings"
	"github.com/gatereg/registry/internal/adapter/outbound/filestore"
	"github.com/gatereg/registry/internal/adapter/outbound/identity"
	"github.com/gatereg/registry/internal/adapter/outbound/memory"
	"github.com/gatereg/registry/internal/adapter/outbound/scanarchive"
	"github.com/gatereg/registry/internal/adapter/outbound/scanner"
	"github.com/gatereg/registry/internal/adapter/outbound/vectorindex"
	"github.com/gatereg/registry/internal/config"
	identitydomain "github.com/gatereg/registry/internal/domain/identity"
	"github.com/gatereg/registry/internal/domain/ratelimit"
	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/service"
	"github.com/gatereg/registry/internal/tracing"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Control API server",
	Long: `Start the gatereg Control API: registration, discovery, hybrid
search, and security scan orchestration for MCP servers and A2A agents.

Examples:
  # Start with config file settings
  gatereg serve

  # Start with a specific config file
  gatereg --config /path/to/gatereg.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, relaxed identity)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("gatereg stopped")
	return nil
}

// run wires every collaborator together and blocks until ctx is
// cancelled or the transport fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	serverStore := filestore.New[*registry.Server](cfg.Storage.ServersDir, ".json", "enable_state.json", logger)
	if err := serverStore.Load(); err != nil {
		return fmt.Errorf("load server store: %w", err)
	}
	agentStore := filestore.New[*registry.Agent](cfg.Storage.AgentsDir, "_agent.json", "agent_enable_state.json", logger)
	if err := agentStore.Load(); err != nil {
		return fmt.Errorf("load agent store: %w", err)
	}

	embedClient, closeEmbed, err := embeddings.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("build embeddings client: %w", err)
	}
	defer func() {
		if err := closeEmbed(); err != nil {
			logger.Warn("error closing embeddings client", "error", err)
		}
	}()

	indexPath := cfg.Storage.ServersDir + "/service_index.faiss"
	metaPath := cfg.Storage.ServersDir + "/service_index_metadata.json"
	index, err := vectorindex.New(indexPath, metaPath, embedClient, logger)
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}

	scanRunner := scanner.New(cfg.ScannerBinaryPath)
	archive := scanarchive.New(cfg.Storage.ScansRoot)
	scanLimiter := memory.NewRateLimiter()
	scanLimiter.StartCleanup(ctx)

	orchestrator := service.NewOrchestrator(
		service.OrchestratorConfig{
			Server:           toKindScanConfig(cfg.Security),
			Agent:            toKindScanConfig(cfg.AgentSecurity),
			MaxConcurrency:   maxOf(cfg.Security.MaxConcurrency, cfg.AgentSecurity.MaxConcurrency),
			PerRequesterRate: ratelimit.RateLimitConfig{Rate: cfg.Security.PerRequesterRatePerMinute, Burst: cfg.Security.PerRequesterRatePerMinute, Period: time.Minute},
		},
		scanRunner, archive, serverStore, agentStore, index, scanLimiter, logger,
	)

	servers := service.NewServerRegistry(serverStore, serverStore, index, orchestrator, logger)
	agents := service.NewAgentRegistry(agentStore, agentStore, index, orchestrator, logger)
	search := service.NewSearchService(index, serverStore, agentStore)
	catalog := service.NewCatalogService(serverStore)
	health := service.NewHealthService(time.Duration(cfg.HealthCheckTimeoutSeconds) * time.Second)

	var decoder identitydomain.Decoder
	if cfg.DevMode {
		decoder = identity.DevDecoder{}
	} else {
		decoder = identity.ClaimsDecoder{}
	}

	handler := httpapi.NewHandler(servers, agents, search, catalog, health, orchestrator, archive, nil, logger)
	transport := httpapi.NewTransport(handler, decoder, httpapi.WithAddr(cfg.Server.HTTPAddr), httpapi.WithLogger(logger))

	logger.Info("gatereg starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"servers", mustCount(serverStore.List(ctx)),
		"agents", mustCount(agentStore.List(ctx)),
	)

	return transport.Start(ctx)
}

func toKindScanConfig(c config.ScanConfig) service.KindScanConfig {
	return service.KindScanConfig{
		Enabled:               c.Enabled,
		ScanOnRegistration:    c.ScanOnRegistration,
		BlockUnsafe:           c.BlockUnsafe,
		Analyzers:             splitAnalyzers(c.Analyzers),
		ScanTimeoutSeconds:    c.ScanTimeoutSeconds,
		LLMAPIKey:             c.LLMAPIKey,
		AddSecurityPendingTag: c.AddSecurityPendingTag,
	}
}

func splitAnalyzers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mustCount[T any](list []T, err error) int {
	if err != nil {
		return 0
	}
	return len(list)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

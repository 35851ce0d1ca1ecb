package httpapi

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatereg/registry/internal/domain/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transport is the Control API's HTTP server: it owns the route table,
// the middleware chain, and the listener lifecycle.
type Transport struct {
	handler  *Handler
	decoder  identity.Decoder
	addr     string
	certFile string
	keyFile  string
	logger   *slog.Logger
	registry *prometheus.Registry
	server   *http.Server
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithTLS enables TLS with the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(t *Transport) { t.certFile, t.keyFile = certFile, keyFile }
}

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// NewTransport wires a Transport around handler and decoder.
func NewTransport(handler *Handler, decoder identity.Decoder, opts ...Option) *Transport {
	t := &Transport{
		handler: handler,
		decoder: decoder,
		addr:    "127.0.0.1:8080",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) routes() http.Handler {
	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleLiveness)
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry}))

	mux.HandleFunc("GET /v0.1/servers", t.handler.handleListCatalog)
	mux.HandleFunc("GET /v0.1/servers/{name}/versions", t.handler.handleListCatalogVersions)
	mux.HandleFunc("GET /v0.1/servers/{name}/versions/{version}", t.handler.handleGetCatalogVersion)

	mux.HandleFunc("GET /.well-known/agents/{path...}", dispatchBySuffix(
		notFound,
		suffixRoute{"health", t.handler.handleWellKnownAgentHealth},
	))

	api := http.NewServeMux()
	api.HandleFunc("POST /api/servers/register", t.handler.handleRegisterServer)
	api.HandleFunc("POST /api/servers/toggle", t.handler.handleToggleServer)
	api.HandleFunc("GET /api/servers", t.handler.handleListServers)
	api.HandleFunc("GET /api/servers/{path...}", dispatchBySuffix(
		t.handler.handleGetServer,
		suffixRoute{"rating", t.handler.handleGetServerRating},
		suffixRoute{"security-scan", t.handler.handleSecurityScan},
	))
	api.HandleFunc("POST /api/servers/{path...}", dispatchBySuffix(
		notFound,
		suffixRoute{"groups/add", t.handler.handleAddToGroups},
		suffixRoute{"groups/remove", t.handler.handleRemoveFromGroups},
		suffixRoute{"rate", t.handler.handleRateServer},
		suffixRoute{"rescan", t.handler.handleRescanServer},
	))
	api.HandleFunc("PUT /api/servers/{path...}", t.handler.handleUpdateServer)
	api.HandleFunc("DELETE /api/servers/{path...}", t.handler.handleDeleteServer)

	api.HandleFunc("POST /api/agents/register", t.handler.handleRegisterAgent)
	api.HandleFunc("POST /api/agents/discover/semantic", t.handler.handleDiscoverSemantic)
	api.HandleFunc("POST /api/agents/discover", t.handler.handleDiscoverBySkills)
	api.HandleFunc("GET /api/agents", t.handler.handleListAgents)
	api.HandleFunc("GET /api/agents/{path...}", dispatchBySuffix(
		t.handler.handleGetAgent,
		suffixRoute{"rating", t.handler.handleGetAgentRating},
		suffixRoute{"security-scan", t.handler.handleAgentSecurityScan},
		suffixRoute{"health", t.handler.handleAgentHealth},
	))
	api.HandleFunc("POST /api/agents/{path...}", dispatchBySuffix(
		notFound,
		suffixRoute{"rate", t.handler.handleRateAgent},
		suffixRoute{"toggle", t.handler.handleToggleAgent},
		suffixRoute{"rescan", t.handler.handleRescanAgent},
	))
	api.HandleFunc("PUT /api/agents/{path...}", t.handler.handleUpdateAgent)
	api.HandleFunc("DELETE /api/agents/{path...}", t.handler.handleDeleteAgent)

	api.HandleFunc("GET /api/search", t.handler.handleSearch)

	mux.Handle("/api/", chain(api, requireAuth(t.decoder, t.logger)))

	return mux
}

// Start begins accepting HTTP connections, blocking until ctx is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.registry = prometheus.NewRegistry()
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.handler.metrics = NewMetrics(t.registry)

	handler := chain(t.routes(), requestLogMiddleware(t.logger, t.handler.metrics), requestIDMiddleware(t.logger))

	t.server = &http.Server{Addr: t.addr, Handler: handler}
	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("HTTP server shutdown complete")
	return nil
}

package scimgateway

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/arimatsu/scimcore/auth"
	"github.com/arimatsu/scimcore/config"
	"github.com/arimatsu/scimcore/plugin"
	"github.com/arimatsu/scimcore/scim"
)

// discardLogger returns a no-op logger that discards all output
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Gateway wires a plugin.Registry of resource handlers into a scim.Router
// behind the logging/auth middleware chain. It accepts any number of
// resource handlers registered via RegisterHandler, one per SCIM
// endpoint.
type Gateway struct {
	config   *config.Config
	registry *plugin.Registry
	router   *scim.Router
	handler  http.Handler
	logger   *slog.Logger
}

// New creates a new Gateway instance
func New(cfg *config.Config) *Gateway {
	return &Gateway{
		config:   cfg,
		registry: plugin.NewRegistry(),
		logger:   discardLogger(), // Default to no-op logger
	}
}

// NewWithDefaults creates a new Gateway with default valid configuration
func NewWithDefaults() *Gateway {
	return New(config.DefaultConfig())
}

// RegisterHandler registers a resource handler for its EndpointName(),
// optionally guarded by authenticator (nil means the endpoint carries no
// authentication). Callers build the Authenticator themselves (e.g. via
// plugin.BuildAuthenticator) and pass it directly; a handler's identity
// is its endpoint, not a configured tenant name.
func (g *Gateway) RegisterHandler(h scim.ResourceHandler, authenticator auth.Authenticator) {
	g.registry.Register(h, authenticator)
}

// SetLogger sets the optional logger for the gateway.
// Pass nil to disable logging (default behavior).
// The logger receives the gateway's own startup messages (Info) and
// errors, and one entry per HTTP request from LoggingMiddleware (Info,
// Warn for 4xx, Error for 5xx).
func (g *Gateway) SetLogger(logger *slog.Logger) {
	if logger == nil {
		g.logger = discardLogger()
	} else {
		g.logger = logger
	}
}

// Initialize initializes the gateway. It must be called before Handler;
// Start calls it itself when it has not run yet.
func (g *Gateway) Initialize() error {
	// Validate configuration first
	if err := g.config.Validate(); err != nil {
		g.logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("invalid configuration: %w", err)
	}

	endpoints := g.registry.Handlers.Endpoints()
	if len(endpoints) == 0 {
		err := fmt.Errorf("no resource handlers registered: at least one handler must be registered via RegisterHandler() before initialization")
		g.logger.Error("handler registration validation failed", "error", err)
		return err
	}

	for _, ep := range endpoints {
		if h, ok := g.registry.Handlers.Lookup(ep); ok {
			if s, ok := h.(interface{ SetReplaceCreatesOnMissingPath(bool) }); ok {
				s.SetReplaceCreatesOnMissingPath(g.config.ReplaceOnMissingPathCreates)
			}
		}
	}

	g.logger.Info("initializing SCIM gateway",
		"base_url", g.config.Gateway.BaseURL,
		"port", g.config.Gateway.Port,
		"tls_enabled", g.config.Gateway.TLS != nil && g.config.Gateway.TLS.Enabled,
	)

	g.router = scim.NewRouter(
		g.config.Gateway.BaseURL,
		g.registry.Handlers,
		config.ToSCIM(g.config.ResourceTypes),
		g.config.Limits(),
		g.logger,
	)

	// Setup handler with middleware chain
	var handler http.Handler = g.router

	// Add request logging middleware
	handler = LoggingMiddleware(g.logger)(handler)

	// Add per-endpoint authentication middleware
	handler = plugin.PerEndpointAuthMiddleware(g.registry)(handler)

	g.handler = handler

	g.logger.Info("gateway initialized successfully",
		"endpoints", endpoints,
		"endpoint_count", len(endpoints),
	)

	return nil
}

// Handler returns the HTTP handler for the gateway.
// Returns an error if the gateway has not been initialized.
func (g *Gateway) Handler() (http.Handler, error) {
	if g.handler == nil {
		return nil, fmt.Errorf("gateway not initialized - call Initialize() first")
	}
	return g.handler, nil
}

// Start starts the gateway HTTP server (blocking)
func (g *Gateway) Start() error {
	if g.handler == nil {
		if err := g.Initialize(); err != nil {
			g.logger.Error("failed to initialize gateway", "error", err)
			return err
		}
	}

	if g.config.Gateway.Port == 0 {
		return fmt.Errorf("port is required for standalone mode - use Handler() for embedded mode")
	}

	addr := fmt.Sprintf(":%d", g.config.Gateway.Port)

	if g.config.Gateway.TLS != nil && g.config.Gateway.TLS.Enabled {
		g.logger.Info("starting SCIM gateway with TLS",
			"addr", addr,
			"cert_file", g.config.Gateway.TLS.CertFile,
		)
		err := http.ListenAndServeTLS(
			addr,
			g.config.Gateway.TLS.CertFile,
			g.config.Gateway.TLS.KeyFile,
			g.handler,
		)
		if err != nil {
			g.logger.Error("gateway server stopped", "error", err)
		}
		return err
	}

	g.logger.Info("starting SCIM gateway", "addr", addr)
	err := http.ListenAndServe(addr, g.handler)
	if err != nil {
		g.logger.Error("gateway server stopped", "error", err)
	}
	return err
}

// Config returns the gateway configuration
func (g *Gateway) Config() *config.Config {
	return g.config
}

// Registry returns the handler/authenticator registry.
func (g *Gateway) Registry() *plugin.Registry {
	return g.registry
}

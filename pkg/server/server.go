// Package server provides the public entry point for initializing the
// studyhall AI service.
//
// Usage:
//
//	cfg, _ := config.Load()
//	srv, err := server.New(ctx, cfg)
//	defer srv.Close(ctx)
//	http.ListenAndServe(":4000", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/studyhall/internal/api"
	"github.com/agentoven/studyhall/internal/api/handlers"
	"github.com/agentoven/studyhall/internal/api/middleware"
	"github.com/agentoven/studyhall/internal/auth"
	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/internal/config"
	"github.com/agentoven/studyhall/internal/contextbuilder"
	"github.com/agentoven/studyhall/internal/gateway"
	"github.com/agentoven/studyhall/internal/metrics"
	"github.com/agentoven/studyhall/internal/orchestrator"
	"github.com/agentoven/studyhall/internal/retrieval"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/internal/telemetry"
	"github.com/agentoven/studyhall/internal/tools"
	"github.com/agentoven/studyhall/pkg/contracts"
)

// Server holds the initialized AI service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store shared by the orchestrator, retriever and tools.
	Store store.Store

	// Orchestrator runs chat turns. Exposed for embedding without HTTP.
	Orchestrator *orchestrator.Orchestrator

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc telemetry.Shutdown
}

// New initializes every component from cfg and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	if cfg.Database.SeedFile != "" {
		if err := store.LoadSeed(ctx, dataStore, cfg.Database.SeedFile); err != nil {
			_ = dataStore.Close()
			_ = shutdown(ctx)
			return nil, fmt.Errorf("load seed: %w", err)
		}
	}

	var m *metrics.Metrics
	if cfg.Telemetry.MetricsEnabled {
		m = metrics.New()
		log.Info().Msg("✅ Prometheus metrics enabled")
	}

	agents, err := catalog.Open(cfg.Chat.AgentCatalog)
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, err
	}
	log.Info().Int("agents", agents.Count()).Str("file", cfg.Chat.AgentCatalog).Msg("✅ Agent catalog loaded")

	gw := gateway.New(newDriver(cfg.Model), gateway.Settings{
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		Timeout:     cfg.Model.Timeout,
	}, m)
	if gw.Configured() {
		log.Info().Str("provider", gw.Provider()).Msg("✅ Model gateway initialized")
	} else {
		log.Warn().Str("provider", gw.Provider()).Msg("Model gateway has no API key; chat turns will fail")
	}

	retriever, err := retrieval.New(cfg.Retrieval.Strategy, dataStore, cfg.Retrieval.MinKeywordLen)
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, err
	}
	log.Info().Str("strategy", retriever.Name()).Msg("✅ Retriever initialized")

	counterModel := cfg.Model.Name
	if counterModel == "" {
		counterModel = gw.DefaultModel()
	}
	builder := contextbuilder.New(dataStore, retriever, contextbuilder.NewTokenCounter(counterModel))

	toolCatalog, err := tools.NewCatalog(agents.ToolBindings())
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	executor := tools.NewExecutor(toolCatalog, dataStore, gw, m)
	log.Info().Int("tools", len(toolCatalog.All())).Msg("✅ Tool executor initialized")

	orch := orchestrator.New(agents, dataStore, builder, gw, executor,
		orchestrator.WithHistoryWindow(cfg.Chat.HistoryWindow),
		orchestrator.WithMetrics(m),
	)
	log.Info().Msg("✅ Orchestrator initialized")

	chain, err := newAuthChain(cfg.Auth)
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	h := handlers.New(orch, agents, toolCatalog, dataStore, cfg.Version)
	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}
	router := api.NewRouter(h, middleware.NewAuthMiddleware(chain), metricsHandler)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Orchestrator: orch,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Close flushes telemetry and releases the store.
func (s *Server) Close(ctx context.Context) error {
	return errors.Join(s.ShutdownFunc(ctx), s.Store.Close())
}

// backingStore is a Store that can also be seeded.
type backingStore interface {
	store.Store
	store.ContentWriter
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (backingStore, error) {
	if cfg.Driver == "memory" {
		log.Info().Msg("✅ In-memory store initialized")
		return store.NewMemoryStore(), nil
	}

	s, err := store.OpenSQL(cfg.Driver, cfg.URL, cfg.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	log.Info().Str("driver", cfg.Driver).Msg("✅ SQL store initialized")
	return s, nil
}

func newDriver(cfg config.ModelConfig) contracts.ProviderDriver {
	if cfg.Provider == "anthropic" {
		return gateway.NewAnthropicDriver(cfg.AnthropicKey, cfg.AnthropicURL, cfg.MaxRetries)
	}
	return gateway.NewOpenAIDriver(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.MaxRetries)
}

func newAuthChain(cfg config.AuthConfig) (*auth.ProviderChain, error) {
	dev, err := auth.NewDevProvider(cfg.DevIdentity)
	if err != nil {
		return nil, fmt.Errorf("AUTH_DEV_IDENTITY: %w", err)
	}
	chain := auth.NewProviderChain(auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer), dev)
	if !dev.Enabled() && cfg.JWTSecret == "" {
		log.Warn().Msg("No auth provider enabled; every /api/v1/ai request will be rejected")
	}
	return chain, nil
}

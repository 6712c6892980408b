// Package app assembles the question-answering service from its parts.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/urbanatlas/askcity/internal/agent"
	"github.com/urbanatlas/askcity/internal/cache"
	"github.com/urbanatlas/askcity/internal/config"
	"github.com/urbanatlas/askcity/internal/conversation"
	"github.com/urbanatlas/askcity/internal/db"
	"github.com/urbanatlas/askcity/internal/httpapi"
	"github.com/urbanatlas/askcity/internal/logging"
	"github.com/urbanatlas/askcity/internal/observability"
	"github.com/urbanatlas/askcity/internal/precompiled"
	"github.com/urbanatlas/askcity/internal/query"
	"github.com/urbanatlas/askcity/internal/validate"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Resolver *query.Router
	Metrics  *observability.Metrics
	Store    *cache.Store
	Executor db.Executor

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	executor, err := db.NewExecutor(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	rules, err := loadRules(cfg)
	if err != nil {
		_ = executor.Close()
		return nil, fmt.Errorf("validation rules init failed: %w", err)
	}

	library, err := loadLibrary(cfg, rules)
	if err != nil {
		_ = executor.Close()
		return nil, fmt.Errorf("template library init failed: %w", err)
	}

	ag, err := agent.New(ctx, agent.Config{
		Mode:         cfg.AgentMode,
		HTTPURL:      cfg.AgentHTTPURL,
		Timeout:      cfg.AgentTimeout,
		RetryBackoff: cfg.AgentRetryBackoff,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		_ = executor.Close()
		return nil, fmt.Errorf("agent init failed: %w", err)
	}

	var store *cache.Store
	if cfg.CacheEnabled {
		store = cache.NewStore(cfg.CacheMaxEntries, cfg.CacheTTL)
	}

	assembler := conversation.NewAssembler(cfg.ConversationWindow, cfg.TranscriptMaxChars)
	resolver := query.New(query.Config{
		CacheEnabled:       cfg.CacheEnabled,
		CacheTTL:           cfg.CacheTTL,
		PrecompiledEnabled: cfg.PrecompiledEnabled,
		ValidationEnabled:  cfg.ValidationEnabled,
		WindowSize:         cfg.ConversationWindow,
		AgentTimeout:       cfg.AgentTimeout,
		DatabaseTimeout:    cfg.DatabaseTimeout,
	}, assembler, store, library, validate.New(rules), ag, executor, metrics,
		logging.Component(log, "query"))

	api := httpapi.New(cfg, resolver, store, library, executor, metrics,
		logging.Component(log, "httpapi"))

	log.Info().
		Str("agent_mode", cfg.AgentMode).
		Bool("cache", cfg.CacheEnabled).
		Bool("precompiled", cfg.PrecompiledEnabled).
		Bool("validation", cfg.ValidationEnabled).
		Int("templates", library.Len()).
		Msg("pipeline assembled")

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Resolver: resolver,
		Metrics:  metrics,
		Store:    store,
		Executor: executor,
		Cleanup: func() error {
			return executor.Close()
		},
	}, nil
}

func loadRules(cfg config.Config) (*validate.Rules, error) {
	if cfg.RulesPath != "" {
		return validate.LoadFile(cfg.RulesPath)
	}
	return validate.LoadDefault()
}

func loadLibrary(cfg config.Config, rules *validate.Rules) (*precompiled.Library, error) {
	if cfg.TemplatesPath != "" {
		return precompiled.LoadFile(cfg.TemplatesPath, rules.DistrictNames())
	}
	return precompiled.LoadDefault(rules.DistrictNames())
}

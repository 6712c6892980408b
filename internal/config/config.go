package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the question-answering service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	LogLevel  string
	LogPretty bool

	CacheEnabled    bool
	CacheMaxEntries int
	CacheTTL        time.Duration

	ConversationWindow int
	TranscriptMaxChars int

	PrecompiledEnabled bool
	ValidationEnabled  bool

	AgentMode         string
	AgentHTTPURL      string
	AgentTimeout      time.Duration
	AgentRetryBackoff time.Duration
	GeminiAPIKey      string
	GeminiModel       string

	DatabaseURL     string
	SQLitePath      string
	DatabaseTimeout time.Duration

	// Optional YAML overrides for the embedded template/rule corpora.
	TemplatesPath string
	RulesPath     string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "askcity"),
		AllowAnyOrigin:     false,
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogPretty:          false,
		CacheEnabled:       true,
		CacheMaxEntries:    1000,
		CacheTTL:           time.Hour,
		ConversationWindow: 6,
		TranscriptMaxChars: 4096,
		PrecompiledEnabled: true,
		ValidationEnabled:  true,
		AgentMode:          envOrDefault("AGENT_MODE", "auto"),
		AgentHTTPURL:       stringsTrimSpace("AGENT_HTTP_URL"),
		AgentTimeout:       60 * time.Second,
		AgentRetryBackoff:  500 * time.Millisecond,
		GeminiAPIKey:       stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:        envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		SQLitePath:         stringsTrimSpace("SQLITE_PATH"),
		DatabaseTimeout:    30 * time.Second,
		TemplatesPath:      stringsTrimSpace("TEMPLATES_PATH"),
		RulesPath:          stringsTrimSpace("RULES_PATH"),
		ShutdownTimeout:    15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogPretty, err = boolFromEnv("LOG_PRETTY", cfg.LogPretty)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheEnabled, err = boolFromEnv("CACHE_ENABLED", cfg.CacheEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheMaxEntries, err = intFromEnv("CACHE_MAX_ENTRIES", cfg.CacheMaxEntries)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ConversationWindow, err = intFromEnv("CONVERSATION_WINDOW", cfg.ConversationWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscriptMaxChars, err = intFromEnv("TRANSCRIPT_MAX_CHARS", cfg.TranscriptMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.PrecompiledEnabled, err = boolFromEnv("PRECOMPILED_ENABLED", cfg.PrecompiledEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.ValidationEnabled, err = boolFromEnv("VALIDATION_ENABLED", cfg.ValidationEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentTimeout, err = durationFromEnv("AGENT_TIMEOUT", cfg.AgentTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentRetryBackoff, err = durationFromEnv("AGENT_RETRY_BACKOFF", cfg.AgentRetryBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.DatabaseTimeout, err = durationFromEnv("DATABASE_TIMEOUT", cfg.DatabaseTimeout)
	if err != nil {
		return Config{}, err
	}

	// agent.New lowercases its mode; accept the same spellings here.
	cfg.AgentMode = strings.ToLower(cfg.AgentMode)
	switch cfg.AgentMode {
	case "auto", "mock", "http", "gemini":
	default:
		return Config{}, fmt.Errorf("AGENT_MODE must be one of auto, mock, http, gemini")
	}
	if cfg.CacheMaxEntries <= 0 {
		return Config{}, fmt.Errorf("CACHE_MAX_ENTRIES must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be positive")
	}
	if cfg.ConversationWindow < 0 {
		return Config{}, fmt.Errorf("CONVERSATION_WINDOW must be >= 0")
	}
	if cfg.TranscriptMaxChars < 256 {
		return Config{}, fmt.Errorf("TRANSCRIPT_MAX_CHARS must be at least 256")
	}
	if cfg.AgentTimeout < time.Second {
		return Config{}, fmt.Errorf("AGENT_TIMEOUT must be at least 1s")
	}
	if cfg.DatabaseTimeout < time.Second {
		return Config{}, fmt.Errorf("DATABASE_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

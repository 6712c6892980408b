package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

// exampleQuestions is the curated list served to clients that want a quick
// demo of what the service can answer.
var exampleQuestions = []string{
	"¿Cuál es la población de Barcelona?",
	"¿Cuántos distritos tiene Barcelona?",
	"¿Cuál es la población de Eixample?",
	"¿Cuántas escuelas hay en Gràcia?",
	"Compara la población de Sarrià-Sant Gervasi y Nou Barris",
	"What is the population density of Barcelona?",
	"Show me the districts with the highest population",
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"examples": exampleQuestions,
		"count":    len(exampleQuestions),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	stats := s.store.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"enabled":          s.cfg.CacheEnabled,
		"stats":            stats,
		"hit_rate_percent": round1(stats.HitRate * 100),
		"template_count":   s.templateCount(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	cleared := 0
	if s.store != nil {
		cleared = s.store.Len()
		s.store.Clear()
		s.metrics.SetCacheEntries(0)
	}
	s.log.Info().Int("cleared", cleared).Msg("answer cache cleared")
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("cache cleared, %d entries removed", cleared),
		"cleared": cleared,
	})
}

// handleConfig exposes the non-secret runtime settings for operators.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"version":              serviceVersion,
		"cache_enabled":        s.cfg.CacheEnabled,
		"cache_max_entries":    s.cfg.CacheMaxEntries,
		"cache_ttl_seconds":    s.cfg.CacheTTL.Seconds(),
		"conversation_window":  s.cfg.ConversationWindow,
		"transcript_max_chars": s.cfg.TranscriptMaxChars,
		"precompiled_enabled":  s.cfg.PrecompiledEnabled,
		"validation_enabled":   s.cfg.ValidationEnabled,
		"agent_mode":           s.cfg.AgentMode,
		"agent_timeout":        s.cfg.AgentTimeout.String(),
		"database_timeout":     s.cfg.DatabaseTimeout.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dbReady := true
	if err := s.executor.Ping(r.Context()); err != nil {
		dbReady = false
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"service":        serviceName,
		"version":        serviceVersion,
		"uptime_seconds": round1(time.Since(s.startedAt).Seconds()),
		"components": map[string]any{
			"cache_enabled":       s.cfg.CacheEnabled,
			"cache_entries":       s.cacheLen(),
			"precompiled_enabled": s.cfg.PrecompiledEnabled,
			"template_count":      s.templateCount(),
			"validation_enabled":  s.cfg.ValidationEnabled,
			"agent_mode":          s.cfg.AgentMode,
			"database_ready":      dbReady,
		},
		"latency": s.metrics.SnapshotStages(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

func (s *Server) templateCount() int {
	if s.library == nil {
		return 0
	}
	return s.library.Len()
}

func (s *Server) cacheLen() int {
	if s.store == nil {
		return 0
	}
	return s.store.Len()
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

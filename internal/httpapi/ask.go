package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/urbanatlas/askcity/internal/query"
)

const maxAskBodyBytes = 1 << 20

// askResponse mirrors the resolution for HTTP callers. ExecutionTime is in
// seconds. On failure Success is false and Error carries a caller-safe
// message; Answer may still hold a degraded refusal.
type askResponse struct {
	Success       bool     `json:"success"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Source        string   `json:"source,omitempty"`
	Cached        bool     `json:"cached"`
	ExecutionTime float64  `json:"execution_time"`
	RequestID     string   `json:"request_id"`
	Warnings      []string `json:"validation_warnings,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
	Error         string   `json:"error,omitempty"`
	ErrorKind     string   `json:"error_kind,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req query.Request
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	requestID := uuid.NewString()
	log := s.log.With().Str("request_id", requestID).Logger()

	res, err := s.resolver.Resolve(r.Context(), req)
	resp := askResponse{
		Success:       err == nil,
		Question:      res.Question,
		Answer:        res.Answer,
		Source:        res.Source,
		Cached:        res.Cached,
		ExecutionTime: res.ExecutionTime.Seconds(),
		RequestID:     requestID,
		Warnings:      res.Warnings,
		Suggestions:   res.Suggestions,
	}
	if err != nil {
		kind, _ := query.KindOf(err)
		resp.Error = query.FriendlyMessage(err)
		resp.ErrorKind = string(kind)
		log.Warn().Err(err).Str("kind", string(kind)).Str("source", res.Source).
			Dur("execution_time", res.ExecutionTime).Msg("ask failed")
		respondJSON(w, statusForKind(kind), resp)
		return
	}

	log.Info().Str("source", res.Source).Bool("cached", res.Cached).
		Dur("execution_time", res.ExecutionTime).Msg("ask resolved")
	respondJSON(w, http.StatusOK, resp)
}

// statusForKind maps resolution failures onto HTTP status codes. Validation
// rejections are a successful degraded reply, not a server fault.
func statusForKind(kind query.Kind) int {
	switch kind {
	case query.KindValidationRejected:
		return http.StatusOK
	case query.KindAgentError:
		return http.StatusBadGateway
	case query.KindDBError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

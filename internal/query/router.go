// Package query routes each question through the three resolution paths:
// exact-match answer cache, precompiled SQL templates, and the language-model
// agent, validating every answer before it is released or cached.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/urbanatlas/askcity/internal/agent"
	"github.com/urbanatlas/askcity/internal/cache"
	"github.com/urbanatlas/askcity/internal/conversation"
	"github.com/urbanatlas/askcity/internal/db"
	"github.com/urbanatlas/askcity/internal/observability"
	"github.com/urbanatlas/askcity/internal/precompiled"
	"github.com/urbanatlas/askcity/internal/validate"
)

// Resolution sources.
const (
	SourceCache       = "cache"
	SourcePrecompiled = "precompiled"
	SourceAgent       = "agent"
)

// Pipeline stage names, in order. Also used for websocket status frames and
// the latency window.
const (
	StageContextAssembled   = "context_assembled"
	StageCacheChecked       = "cache_checked"
	StagePrecompiledChecked = "precompiled_checked"
	StageAgentInvoked       = "agent_invoked"
	StageValidated          = "validated"
)

// Request is one question with its caller-supplied context. The server holds
// no session state; history arrives with every request.
type Request struct {
	Question string              `json:"question"`
	GeoScope string              `json:"geo_scope,omitempty"`
	History  []conversation.Turn `json:"conversation_history,omitempty"`
}

// Resolution is a successfully resolved answer.
type Resolution struct {
	Question      string        `json:"question"`
	Answer        string        `json:"answer"`
	Source        string        `json:"source"`
	SQL           string        `json:"sql,omitempty"`
	Cached        bool          `json:"cached"`
	ExecutionTime time.Duration `json:"execution_time"`
	Warnings      []string      `json:"warnings,omitempty"`
	Suggestions   []string      `json:"suggestions,omitempty"`
}

// StageObserver is notified as the pipeline passes each stage. Observers run
// inline on the resolving goroutine; keep them cheap.
type StageObserver func(stage string)

// AnswerCache is the cache surface the router needs. Errors degrade the
// request to a cache-less resolution, never fail it.
type AnswerCache interface {
	Get(key string) (cache.Answer, bool, error)
	Put(key string, value cache.Answer, ttl time.Duration) error
	Len() int
}

// storeCache adapts the concrete in-process store, which cannot fail.
type storeCache struct {
	store *cache.Store
}

func (c storeCache) Get(key string) (cache.Answer, bool, error) {
	v, ok := c.store.Get(key)
	return v, ok, nil
}

func (c storeCache) Put(key string, value cache.Answer, ttl time.Duration) error {
	c.store.Put(key, value, ttl)
	return nil
}

func (c storeCache) Len() int { return c.store.Len() }

// Config carries the router's tuning knobs, taken from the process config.
type Config struct {
	CacheEnabled       bool
	CacheTTL           time.Duration
	PrecompiledEnabled bool
	ValidationEnabled  bool
	WindowSize         int
	AgentTimeout       time.Duration
	DatabaseTimeout    time.Duration
}

// Router composes the resolution pipeline. Stateless per request; the only
// shared mutable state is the answer cache.
type Router struct {
	cfg       Config
	assembler *conversation.Assembler
	cache     AnswerCache
	library   *precompiled.Library
	validator *validate.Validator
	agent     agent.Agent
	executor  db.Executor
	metrics   *observability.Metrics
	log       zerolog.Logger

	flight singleflight.Group
	now    func() time.Time
}

// New wires the pipeline. library and validator may be nil when their paths
// are disabled; agent and executor are required collaborators.
func New(cfg Config, assembler *conversation.Assembler, store *cache.Store, library *precompiled.Library,
	validator *validate.Validator, ag agent.Agent, executor db.Executor,
	metrics *observability.Metrics, log zerolog.Logger) *Router {
	r := &Router{
		cfg:       cfg,
		assembler: assembler,
		library:   library,
		validator: validator,
		agent:     ag,
		executor:  executor,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
	if store != nil {
		r.cache = storeCache{store: store}
	}
	return r
}

// SetCache swaps the cache backend. Used by tests to inject failing caches.
func (r *Router) SetCache(c AnswerCache) { r.cache = c }

// Resolve answers one question. On error the returned Resolution still
// carries the question and a caller-safe degraded answer where one applies.
func (r *Router) Resolve(ctx context.Context, req Request) (Resolution, error) {
	return r.ResolveObserved(ctx, req, nil)
}

// ResolveObserved is Resolve with per-stage notifications.
//
// Ordering is load-bearing: cache before precompiled before agent keeps
// typical latency bounded (cache << precompiled << agent).
func (r *Router) ResolveObserved(ctx context.Context, req Request, observe StageObserver) (Resolution, error) {
	start := r.now()
	stageStart := start
	pass := func(stage string) {
		now := r.now()
		r.metrics.ObserveStage(stage, now.Sub(stageStart))
		stageStart = now
		if observe != nil {
			observe(stage)
		}
	}

	window := conversation.WindowFrom(req.History, r.cfg.WindowSize)
	resolved, transcript := r.assembler.Assemble(req.Question, window, req.GeoScope)
	pass(StageContextAssembled)

	key := cache.DeriveKey(resolved, req.GeoScope)
	if r.cacheEnabled() {
		if answer, ok := r.cacheGet(key); ok {
			pass(StageCacheChecked)
			res := Resolution{
				Question:      req.Question,
				Answer:        answer.Text,
				Source:        SourceCache,
				Cached:        true,
				ExecutionTime: r.now().Sub(start),
			}
			r.metrics.ObserveResolution(SourceCache, "ok", res.ExecutionTime)
			return res, nil
		}
	}
	pass(StageCacheChecked)

	// Concurrent identical questions share one computation; duplicates wait
	// for the leader's result instead of invoking the agent twice.
	type flightResult struct {
		res Resolution
		err error
	}
	v, _, _ := r.flight.Do(key, func() (any, error) {
		res, err := r.resolveMiss(ctx, req, resolved, transcript, key, pass)
		return flightResult{res: res, err: err}, nil
	})
	fr := v.(flightResult)

	fr.res.Question = req.Question
	fr.res.ExecutionTime = r.now().Sub(start)
	outcome := "ok"
	if fr.err != nil {
		outcome = "error"
		if kind, ok := KindOf(fr.err); ok {
			outcome = string(kind)
		}
	}
	r.metrics.ObserveResolution(fr.res.Source, outcome, fr.res.ExecutionTime)
	r.metrics.ObserveStage("resolve_total", fr.res.ExecutionTime)
	return fr.res, fr.err
}

// resolveMiss runs the precompiled and agent paths after a cache miss.
func (r *Router) resolveMiss(ctx context.Context, req Request, resolved, transcript, key string, pass StageObserver) (Resolution, error) {
	correction := ""

	if r.library != nil && r.cfg.PrecompiledEnabled {
		res, handled, err := r.tryPrecompiled(ctx, resolved, key)
		pass(StagePrecompiledChecked)
		if err != nil {
			return Resolution{Source: SourcePrecompiled}, err
		}
		if handled {
			if res.Source != "" {
				pass(StageValidated)
				return res, nil
			}
			// Matched but rejected by validation; the agent gets one chance
			// with a corrective instruction.
			correction = res.Answer
		}
	} else {
		pass(StagePrecompiledChecked)
	}

	return r.resolveViaAgent(ctx, resolved, transcript, key, correction, pass)
}

// tryPrecompiled returns (resolution, handled, err). handled with an empty
// Source means the template answer was rejected; the resolution's Answer
// then carries the corrective instruction for the agent retry.
func (r *Router) tryPrecompiled(ctx context.Context, resolved, key string) (Resolution, bool, error) {
	m, ok := r.library.Match(resolved)
	if !ok {
		return Resolution{}, false, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.DatabaseTimeout)
	defer cancel()
	rows, err := r.executor.Execute(execCtx, m.Template.SQL, m.Args...)
	if err != nil {
		return Resolution{}, true, &Error{Kind: KindDBError, Err: fmt.Errorf("execute template %s: %w", m.Template.ID, err)}
	}

	answer, err := precompiled.FormatAnswer(m, rows)
	if err != nil {
		if errors.Is(err, precompiled.ErrNoRows) {
			// The template matched but the data is not there. Not an error;
			// the agent may still know how to answer.
			r.log.Debug().Str("template", m.Template.ID).Msg("template returned no rows, falling through to agent")
			return Resolution{}, false, nil
		}
		return Resolution{}, true, &Error{Kind: KindDBError, Err: err}
	}

	verdict := r.validate(validate.Candidate{
		Question: resolved,
		Answer:   answer,
		SQL:      m.Template.SQL,
		Rows:     rows,
		Params:   m.Params,
	})
	if !verdict.Accepted {
		r.metrics.ObserveValidationRejection(string(verdict.Reason))
		r.log.Warn().Str("template", m.Template.ID).Str("reason", string(verdict.Reason)).
			Str("detail", verdict.Detail).Msg("precompiled answer rejected")
		return Resolution{Answer: correctiveInstruction(verdict)}, true, nil
	}

	r.cachePut(key, cache.Answer{Text: answer, Source: SourcePrecompiled})
	return Resolution{
		Answer:   answer,
		Source:   SourcePrecompiled,
		SQL:      m.Template.SQL,
		Warnings: verdict.Warnings,
	}, true, nil
}

// resolveViaAgent delegates to the agent, validates, and retries exactly once
// with a corrective instruction when the validator rejects.
func (r *Router) resolveViaAgent(ctx context.Context, resolved, transcript, key, correction string, pass StageObserver) (Resolution, error) {
	question := resolved
	if correction != "" {
		question = resolved + "\n" + correction
	}

	answer, err := r.askAgent(ctx, question, transcript)
	pass(StageAgentInvoked)
	if err != nil {
		return Resolution{Source: SourceAgent}, err
	}

	verdict := r.validate(validate.Candidate{
		Question: resolved,
		Answer:   answer.Answer,
		SQL:      answer.SQL,
	})
	pass(StageValidated)
	if !verdict.Accepted {
		r.metrics.ObserveValidationRejection(string(verdict.Reason))
		r.log.Warn().Str("reason", string(verdict.Reason)).Str("detail", verdict.Detail).
			Msg("agent answer rejected")

		if correction == "" {
			retryAnswer, retryErr := r.askAgent(ctx, resolved+"\n"+correctiveInstruction(verdict), transcript)
			pass(StageAgentInvoked)
			if retryErr == nil {
				retryVerdict := r.validate(validate.Candidate{
					Question: resolved,
					Answer:   retryAnswer.Answer,
					SQL:      retryAnswer.SQL,
				})
				pass(StageValidated)
				if retryVerdict.Accepted {
					r.cachePut(key, cache.Answer{Text: retryAnswer.Answer, Source: SourceAgent})
					return Resolution{
						Answer:   retryAnswer.Answer,
						Source:   SourceAgent,
						SQL:      retryAnswer.SQL,
						Warnings: retryVerdict.Warnings,
					}, nil
				}
				r.metrics.ObserveValidationRejection(string(retryVerdict.Reason))
				verdict = retryVerdict
			}
		}

		// Degraded outcome: an explicit refusal, never a fabricated number,
		// and never a cache entry.
		return Resolution{
				Answer:      degradedAnswer,
				Source:      SourceAgent,
				Suggestions: verdict.Suggestions,
			}, &Error{
				Kind:   KindValidationRejected,
				Reason: string(verdict.Reason),
				Err:    errors.New(verdict.Detail),
			}
	}

	r.cachePut(key, cache.Answer{Text: answer.Answer, Source: SourceAgent})
	return Resolution{
		Answer:   answer.Answer,
		Source:   SourceAgent,
		SQL:      answer.SQL,
		Warnings: verdict.Warnings,
	}, nil
}

const degradedAnswer = "I don't have enough validated data to answer that reliably."

func (r *Router) askAgent(ctx context.Context, question, transcript string) (agent.Answer, error) {
	askCtx, cancel := context.WithTimeout(ctx, r.cfg.AgentTimeout)
	defer cancel()

	answer, err := r.agent.Ask(askCtx, question, transcript)
	if err != nil {
		reason := "tool_error"
		var ae *agent.Error
		if errors.As(err, &ae) {
			reason = string(ae.Kind)
		} else if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.metrics.ObserveAgentFailure(reason)
		return agent.Answer{}, wrapAgentErr(err, reason)
	}
	return answer, nil
}

// validate runs the validator when enabled; with validation off every
// candidate is accepted as-is.
func (r *Router) validate(c validate.Candidate) validate.Verdict {
	if r.validator == nil || !r.cfg.ValidationEnabled {
		return validate.Verdict{Accepted: true}
	}
	return r.validator.Validate(c)
}

func (r *Router) cacheEnabled() bool {
	return r.cache != nil && r.cfg.CacheEnabled
}

func (r *Router) cacheGet(key string) (cache.Answer, bool) {
	answer, ok, err := r.cache.Get(key)
	if err != nil {
		// Cache trouble never fails the request; skip and continue.
		r.metrics.ObserveCacheLookup("error")
		r.log.Warn().Err(&Error{Kind: KindCacheError, Err: err}).Msg("cache lookup failed, skipping cache")
		return cache.Answer{}, false
	}
	if ok {
		r.metrics.ObserveCacheLookup("hit")
	} else {
		r.metrics.ObserveCacheLookup("miss")
	}
	return answer, ok
}

// cachePut stores an accepted answer. Rejected and degraded answers never
// reach here, so a bad result cannot poison the cache for its TTL.
func (r *Router) cachePut(key string, value cache.Answer) {
	if !r.cacheEnabled() {
		return
	}
	if err := r.cache.Put(key, value, r.cfg.CacheTTL); err != nil {
		r.log.Warn().Err(&Error{Kind: KindCacheError, Err: err}).Msg("cache store failed, answer not cached")
		return
	}
	r.metrics.SetCacheEntries(r.cache.Len())
}

// correctiveInstruction names the rejection for the agent's retry attempt.
func correctiveInstruction(v validate.Verdict) string {
	var b strings.Builder
	b.WriteString("Correction: your previous answer was rejected (")
	b.WriteString(string(v.Reason))
	if v.Detail != "" {
		b.WriteString(": ")
		b.WriteString(v.Detail)
	}
	b.WriteString("). ")
	switch v.Reason {
	case validate.ReasonUnsafeQuery:
		b.WriteString("Use a read-only SELECT statement only.")
	case validate.ReasonUnknownEntity:
		b.WriteString("Use only known geographic names.")
		if len(v.Suggestions) > 0 {
			b.WriteString(" Did you mean: ")
			b.WriteString(strings.Join(v.Suggestions, ", "))
			b.WriteString("?")
		}
	default:
		b.WriteString("Answer only with values supported by the database.")
	}
	return b.String()
}

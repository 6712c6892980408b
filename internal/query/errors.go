package query

import "errors"

// Kind is the top-level error taxonomy for question resolution.
type Kind string

const (
	// KindCacheError marks a cache backend failure. The router recovers from
	// these locally; they surface only in logs, never to the caller.
	KindCacheError Kind = "cache_error"
	// KindAgentError marks an agent failure (parse_error, timeout,
	// tool_error in Reason).
	KindAgentError Kind = "agent_error"
	// KindValidationRejected marks an answer the validator refused after the
	// corrective retry (implausible_value, unknown_entity, unsafe_query in
	// Reason).
	KindValidationRejected Kind = "validation_rejected"
	// KindDBError marks a direct database failure on the precompiled path.
	KindDBError Kind = "db_error"
)

// Error is a classified resolution failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += "/" + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy kind from any error in a wrap chain.
func KindOf(err error) (Kind, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return "", false
}

// FriendlyMessage renders a non-technical message for the caller. The raw
// reason stays in the structured error for diagnostics.
func FriendlyMessage(err error) string {
	var qe *Error
	if !errors.As(err, &qe) {
		return "Sorry, something went wrong while answering your question. Please try again."
	}
	switch qe.Kind {
	case KindAgentError:
		if qe.Reason == "timeout" {
			return "Sorry, answering took too long. Please try again in a moment."
		}
		return "Sorry, I could not work out an answer to that question. Please try rephrasing it."
	case KindValidationRejected:
		return "I could not find enough validated data to answer that reliably, so I would rather not guess."
	case KindDBError:
		return "Sorry, the city database is not reachable right now. Please try again later."
	default:
		return "Sorry, something went wrong while answering your question. Please try again."
	}
}

func wrapAgentErr(err error, reason string) *Error {
	return &Error{Kind: KindAgentError, Reason: reason, Err: err}
}

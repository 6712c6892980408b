// Package conversation models the caller-supplied chat history and formats
// it into the bounded context the agent consumes. The server holds no
// session state; the window is rebuilt from request input on every call.
package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance. Immutable once created, appended-only.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Window is the ordered recent history for one conversation, oldest first,
// never holding more than its configured maximum number of turns.
type Window struct {
	turns []Turn
	max   int
}

// NewWindow creates an empty window bounded to max turns. A non-positive max
// yields a window that retains nothing.
func NewWindow(max int) *Window {
	if max < 0 {
		max = 0
	}
	return &Window{max: max}
}

// WindowFrom builds a window from caller-supplied history, keeping only the
// most recent max turns.
func WindowFrom(turns []Turn, max int) *Window {
	w := NewWindow(max)
	for _, t := range turns {
		w.Append(t)
	}
	return w
}

// Append adds a turn, evicting the oldest first when full.
func (w *Window) Append(t Turn) {
	if w.max == 0 {
		return
	}
	w.turns = append(w.turns, t)
	if len(w.turns) > w.max {
		w.turns = w.turns[len(w.turns)-w.max:]
	}
}

// Turns returns a copy of the window contents, oldest first.
func (w *Window) Turns() []Turn {
	if w == nil || len(w.turns) == 0 {
		return nil
	}
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Len reports the number of retained turns.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.turns)
}

// Package protocol defines the websocket message types for the ask stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urbanatlas/askcity/internal/conversation"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeAsk    MessageType = "ask"
	TypeStatus MessageType = "status"
	TypeAnswer MessageType = "answer"
	TypeError  MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Ask is the client's question frame. RequestID is echoed on every frame the
// server emits for this question so clients can interleave requests.
type Ask struct {
	Type      MessageType         `json:"type"`
	RequestID string              `json:"request_id"`
	Question  string              `json:"question"`
	GeoScope  string              `json:"geo_scope,omitempty"`
	History   []conversation.Turn `json:"conversation_history,omitempty"`
}

// Status reports the pipeline stage a question just passed.
type Status struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	Stage     string      `json:"stage"`
}

// Answer is the terminal success frame for one question.
type Answer struct {
	Type          MessageType `json:"type"`
	RequestID     string      `json:"request_id"`
	Question      string      `json:"question"`
	Answer        string      `json:"answer"`
	Source        string      `json:"source"`
	Cached        bool        `json:"cached"`
	ExecutionSecs float64     `json:"execution_time"`
	Warnings      []string    `json:"warnings,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
}

// ErrorEvent is the terminal failure frame for one question.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Detail    string      `json:"detail,omitempty"`
}

// ParseClientMessage decodes and validates an inbound client frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeAsk:
		var msg Ask
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Question == "" {
			return nil, errors.New("invalid ask: question is required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

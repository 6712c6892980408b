package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/urbanatlas/askcity/internal/protocol"
	"github.com/urbanatlas/askcity/internal/query"
)

const wsReadDeadline = 120 * time.Second

// handleAskWS serves the streaming ask protocol. Questions are handled one at
// a time per connection; the client sees each pipeline stage as a status
// frame before the terminal answer or error frame.
func (s *Server) handleAskWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.AddWSConnection(1)
	defer s.metrics.AddWSConnection(-1)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeFrame(conn, protocol.ErrorEvent{
				Type:    protocol.TypeError,
				Code:    "invalid_client_message",
				Message: "could not parse message",
				Detail:  err.Error(),
			})
			continue
		}

		ask, ok := parsed.(protocol.Ask)
		if !ok {
			continue
		}
		s.resolveOverWS(r, conn, ask)
	}
}

func (s *Server) resolveOverWS(r *http.Request, conn *websocket.Conn, ask protocol.Ask) {
	req := query.Request{
		Question: ask.Question,
		GeoScope: ask.GeoScope,
		History:  ask.History,
	}

	res, err := s.resolver.ResolveObserved(r.Context(), req, func(stage string) {
		s.writeFrame(conn, protocol.Status{
			Type:      protocol.TypeStatus,
			RequestID: ask.RequestID,
			Stage:     stage,
		})
	})
	if err != nil {
		kind, _ := query.KindOf(err)
		s.writeFrame(conn, protocol.ErrorEvent{
			Type:      protocol.TypeError,
			RequestID: ask.RequestID,
			Code:      string(kind),
			Message:   query.FriendlyMessage(err),
			Detail:    res.Answer,
		})
		return
	}

	s.writeFrame(conn, protocol.Answer{
		Type:          protocol.TypeAnswer,
		RequestID:     ask.RequestID,
		Question:      res.Question,
		Answer:        res.Answer,
		Source:        res.Source,
		Cached:        res.Cached,
		ExecutionSecs: res.ExecutionTime.Seconds(),
		Warnings:      res.Warnings,
		Suggestions:   res.Suggestions,
	})
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		s.log.Debug().Err(err).Msg("websocket write failed")
	}
}

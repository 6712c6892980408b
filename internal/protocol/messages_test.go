package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageAsk(t *testing.T) {
	raw := []byte(`{"type":"ask","request_id":"r1","question":"¿Cuántos distritos tiene Barcelona?","geo_scope":"Barcelona"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	ask, ok := msg.(Ask)
	if !ok {
		t.Fatalf("message type = %T, want Ask", msg)
	}
	if ask.RequestID != "r1" || ask.GeoScope != "Barcelona" {
		t.Fatalf("unexpected ask frame: %+v", ask)
	}
}

func TestParseClientMessageAskWithHistory(t *testing.T) {
	raw := []byte(`{"type":"ask","request_id":"r2","question":"¿Y el segundo?","conversation_history":[{"role":"user","content":"población por distrito"},{"role":"assistant","content":"Eixample primero"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	ask, ok := msg.(Ask)
	if !ok {
		t.Fatalf("message type = %T, want Ask", msg)
	}
	if len(ask.History) != 2 || ask.History[1].Content != "Eixample primero" {
		t.Fatalf("history not decoded: %+v", ask.History)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyQuestion(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"ask","request_id":"r3","question":""}`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func BenchmarkParseClientMessageAsk(b *testing.B) {
	raw := []byte(`{"type":"ask","request_id":"r1","question":"¿Cuál es la población de Eixample?"}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(Ask); !ok {
			b.Fatalf("message type = %T, want Ask", msg)
		}
	}
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/urbanatlas/askcity/internal/reliability"
)

func TestHTTPAgent_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpAskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Question == "" {
			t.Errorf("request question is empty")
		}
		_ = json.NewEncoder(w).Encode(httpAskResponse{
			SQL:    "SELECT 1",
			Answer: "The population of Eixample is 266,416 inhabitants.",
		})
	}))
	defer srv.Close()

	a := NewHTTPAgent(srv.URL, 5*time.Second)
	got, err := a.Ask(context.Background(), "población de Eixample", "User: hola")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.SQL != "SELECT 1" {
		t.Fatalf("Ask() sql = %q", got.SQL)
	}
}

func TestHTTPAgent_ServerErrorIsTransientToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewHTTPAgent(srv.URL, 5*time.Second)
	_, err := a.Ask(context.Background(), "q", "")
	if err == nil {
		t.Fatalf("Ask() expected error on 503")
	}
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindToolError {
		t.Fatalf("Ask() error = %v, want tool_error", err)
	}
	if !reliability.IsTransient(err) {
		t.Fatalf("503 should classify as transient")
	}
}

func TestHTTPAgent_BadRequestIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad question", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewHTTPAgent(srv.URL, 5*time.Second)
	_, err := a.Ask(context.Background(), "q", "")
	if err == nil {
		t.Fatalf("Ask() expected error on 400")
	}
	if reliability.IsTransient(err) {
		t.Fatalf("400 should not classify as transient")
	}
}

func TestHTTPAgent_MalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	a := NewHTTPAgent(srv.URL, 5*time.Second)
	_, err := a.Ask(context.Background(), "q", "")
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindParseError {
		t.Fatalf("Ask() error = %v, want parse_error", err)
	}
}

func TestHTTPAgent_EmptyAnswerIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(httpAskResponse{SQL: "SELECT 1"})
	}))
	defer srv.Close()

	a := NewHTTPAgent(srv.URL, 5*time.Second)
	_, err := a.Ask(context.Background(), "q", "")
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindParseError {
		t.Fatalf("Ask() error = %v, want parse_error", err)
	}
}

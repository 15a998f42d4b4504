package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth %q", got)
		}
		var req struct {
			Model       string    `json:"model"`
			Temperature float64   `json:"temperature"`
			Stream      bool      `json:"stream"`
			Messages    []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "test-model" || req.Stream || req.Temperature != 0.1 {
			t.Errorf("request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "test-model", 0.1)
	out, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "hello" {
		t.Fatalf("content %q", out)
	}
}

func TestOpenAIChat_MissingKey(t *testing.T) {
	p := NewOpenAIProvider("http://unused", "", "m", 0)
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestOpenAIStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		w.Write([]byte(": keepalive comment\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "test-model", 0)
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	var got strings.Builder
	for c := range chunks {
		got.WriteString(c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got.String() != "Hello" {
		t.Fatalf("streamed %q", got.String())
	}
}

func TestOpenAIStreamChat_StopsOnCancel(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 50; i++ {
		body.WriteString("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	}
	body.WriteString("data: [DONE]\n\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body.String()))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenAIProvider(srv.URL, "sk-test", "test-model", 0)
	chunks, errs := p.StreamChat(ctx, []Message{{Role: "user", Content: "hi"}})

	<-chunks // streaming has started
	cancel()

	// the goroutine must exit without the consumer draining chunks;
	// errs closes when it does
	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine did not stop after cancel")
	}
}

func TestOpenAIStreamChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "test-model", 0)
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	for range chunks {
	}
	if err := <-errs; err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" OpenAI ", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenAIProvider("http://x", "k", model, 0), nil
	})

	p, err := reg.Get(context.Background(), "openai", "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if op, ok := p.(*OpenAIProvider); !ok || op.Model != "m1" {
		t.Fatalf("provider %#v", p)
	}

	if _, err := reg.Get(context.Background(), "missing", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

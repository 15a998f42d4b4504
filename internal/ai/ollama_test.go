package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path %q", r.URL.Path)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"lo"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model", 0)
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

func TestOllamaStreamChat_StopsOnCancel(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 50; i++ {
		body.WriteString(`{"message":{"role":"assistant","content":"x"},"done":false}` + "\n")
	}
	body.WriteString(`{"message":{"role":"assistant","content":""},"done":true}` + "\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body.String()))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOllamaProvider(srv.URL, "test-model", 0)
	chunks, errs := p.StreamChat(ctx, []Message{{Role: "user", Content: "hi"}})

	<-chunks
	cancel()

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine did not stop after cancel")
	}
}

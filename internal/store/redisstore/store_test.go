package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestChatHashRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	fields := map[string]any{
		"id":        "c1",
		"title":     "hello",
		"userId":    "7",
		"createdAt": int64(1700000000000),
		"path":      "/chat/c1",
		"messages":  `[{"role":"user","content":"hi"}]`,
	}
	if err := s.SetChat(ctx, "c1", fields); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["title"] != "hello" || got["createdAt"] != "1700000000000" {
		t.Fatalf("hash %v", got)
	}

	// absent key yields an empty map, not an error
	empty, err := s.GetChat(ctx, "nope")
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty hash, got %v", empty)
	}
}

func TestListChatIDs_MostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.IndexChat(ctx, "7", "old", 1000); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := s.IndexChat(ctx, "7", "mid", 2000); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := s.IndexChat(ctx, "7", "new", 3000); err != nil {
		t.Fatalf("index: %v", err)
	}

	ids, err := s.ListChatIDs(ctx, "7")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Fatalf("ids %v", ids)
	}
}

func TestIndexChat_UpsertMovesScore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.IndexChat(ctx, "7", "a", 1000); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := s.IndexChat(ctx, "7", "b", 2000); err != nil {
		t.Fatalf("index: %v", err)
	}
	// a gets a newer turn
	if err := s.IndexChat(ctx, "7", "a", 3000); err != nil {
		t.Fatalf("index: %v", err)
	}

	ids, err := s.ListChatIDs(ctx, "7")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("ids %v", ids)
	}
}

func TestCaptchaLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCaptcha(ctx, "a@b.c", "123456", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	code, err := s.GetCaptcha(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if code != "123456" {
		t.Fatalf("code %q", code)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.GetCaptcha(ctx, "a@b.c"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after expiry, got %v", err)
	}

	if err := s.SetCaptcha(ctx, "a@b.c", "654321", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.DeleteCaptcha(ctx, "a@b.c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCaptcha(ctx, "a@b.c"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

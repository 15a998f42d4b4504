package chat

import (
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gopherchat/agent/internal/ai"
)

func TestNewRecord_GeneratesIDWhenEmpty(t *testing.T) {
	rec, err := NewRecord("", "7", []ai.Message{{Role: "user", Content: "hi"}}, "hello", time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if len(rec.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", rec.ID)
	}
	if rec.Path != "/chat/"+rec.ID {
		t.Fatalf("path %q", rec.Path)
	}
}

func TestNewRecord_KeepsGivenID(t *testing.T) {
	rec, err := NewRecord("abc123", "7", []ai.Message{{Role: "user", Content: "hi"}}, "hello", time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if rec.ID != "abc123" {
		t.Fatalf("id %q", rec.ID)
	}
	if rec.Path != "/chat/abc123" {
		t.Fatalf("path %q", rec.Path)
	}
}

func TestNewRecord_AppendsAssistantMessage(t *testing.T) {
	history := []ai.Message{
		{Role: "user", Content: "what is 2+2"},
		{Role: "assistant", Content: "let me check"},
		{Role: "user", Content: "please"},
	}
	rec, err := NewRecord("id1", "7", history, "4", time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if len(rec.Messages) != 4 {
		t.Fatalf("messages %d", len(rec.Messages))
	}
	last := rec.Messages[3]
	if last.Role != "assistant" || last.Content != "4" {
		t.Fatalf("last message %+v", last)
	}
	if rec.Title != "what is 2+2" {
		t.Fatalf("title %q", rec.Title)
	}
}

func TestNewRecord_TitleTruncation(t *testing.T) {
	long := strings.Repeat("é", 150)
	rec, err := NewRecord("id1", "7", []ai.Message{{Role: "user", Content: long}}, "a", time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if n := utf8.RuneCountInString(rec.Title); n != TitleMaxLen {
		t.Fatalf("title runes %d", n)
	}
	if !utf8.ValidString(rec.Title) {
		t.Fatalf("title is not valid utf-8")
	}
}

func TestNewRecord_CreatedAtMillis(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := NewRecord("id1", "7", []ai.Message{{Role: "user", Content: "x"}}, "a", now)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if rec.CreatedAt != now.UnixMilli() {
		t.Fatalf("createdAt %d", rec.CreatedAt)
	}
}

func TestRecordHashRoundTrip(t *testing.T) {
	rec, err := NewRecord("id9", "7", []ai.Message{{Role: "user", Content: "q"}}, "a", time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	fields, err := rec.Fields()
	if err != nil {
		t.Fatalf("fields: %v", err)
	}

	// the store hands back string values
	strFields := make(map[string]string, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			strFields[k] = val
		case int64:
			strFields[k] = strconv.FormatInt(val, 10)
		}
	}

	got, err := RecordFromHash(strFields)
	if err != nil {
		t.Fatalf("from hash: %v", err)
	}
	if got.ID != rec.ID || got.Title != rec.Title || got.UserID != rec.UserID || got.Path != rec.Path {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, rec)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "a" {
		t.Fatalf("messages %+v", got.Messages)
	}
}

func TestRecordFromHash_Missing(t *testing.T) {
	if _, err := RecordFromHash(nil); err == nil {
		t.Fatalf("expected error for empty hash")
	}
	if _, err := RecordFromHash(map[string]string{"title": "x"}); err == nil {
		t.Fatalf("expected error for hash without id")
	}
}

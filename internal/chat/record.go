// Package chat holds the durable conversation model: the persisted chat
// record written after each finished turn, and the async job pipeline.
package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gopherchat/agent/internal/ai"
	"github.com/gopherchat/agent/internal/common"
)

// TitleMaxLen bounds the derived conversation title.
const TitleMaxLen = 100

// Record is the durable snapshot of one full conversation at a point in
// time. Each finished turn writes a new snapshot under the same id,
// last write wins.
type Record struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	UserID    string       `json:"userId"`
	CreatedAt int64        `json:"createdAt"` // unix milliseconds
	Path      string       `json:"path"`
	Messages  []ai.Message `json:"messages"`
}

// NewRecord builds the snapshot for one finished turn. id may be empty,
// in which case a fresh ULID is generated. The stored message sequence
// is the original history plus the new assistant message.
func NewRecord(id, userID string, history []ai.Message, answer string, now time.Time) (*Record, error) {
	if id == "" {
		var err error
		id, err = common.NewULID()
		if err != nil {
			return nil, fmt.Errorf("chat: generate id: %w", err)
		}
	}

	title := ""
	if len(history) > 0 {
		title = truncateRunes(history[0].Content, TitleMaxLen)
	}

	msgs := make([]ai.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: "assistant", Content: answer})

	return &Record{
		ID:        id,
		Title:     title,
		UserID:    userID,
		CreatedAt: now.UnixMilli(),
		Path:      "/chat/" + id,
		Messages:  msgs,
	}, nil
}

// Fields renders the record as a flat hash for the store. Messages are
// embedded as a JSON array.
func (r *Record) Fields() (map[string]any, error) {
	msgs, err := json.Marshal(r.Messages)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        r.ID,
		"title":     r.Title,
		"userId":    r.UserID,
		"createdAt": r.CreatedAt,
		"path":      r.Path,
		"messages":  string(msgs),
	}, nil
}

// RecordFromHash rebuilds a record from its stored hash fields.
func RecordFromHash(fields map[string]string) (*Record, error) {
	if len(fields) == 0 || fields["id"] == "" {
		return nil, fmt.Errorf("chat: record not found")
	}
	createdAt, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("chat: bad createdAt: %w", err)
	}
	var msgs []ai.Message
	if raw := fields["messages"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			return nil, fmt.Errorf("chat: bad messages: %w", err)
		}
	}
	return &Record{
		ID:        fields["id"],
		Title:     fields["title"],
		UserID:    fields["userId"],
		CreatedAt: createdAt,
		Path:      fields["path"],
		Messages:  msgs,
	}, nil
}

// truncateRunes keeps the first n characters without splitting a rune.
// The reference behavior truncated blindly at 100 units; counting runes
// keeps multi-byte titles valid UTF-8.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

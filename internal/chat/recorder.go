package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/gopherchat/agent/internal/agent"
	"github.com/gopherchat/agent/internal/store/redisstore"
)

// Recorder persists finished turns. It implements agent.CompletionHandler
// and is registered on the executor at request setup; it never runs for
// failed loops.
type Recorder struct {
	store *redisstore.Store

	indexRetries int
	retryDelay   time.Duration
}

func NewRecorder(store *redisstore.Store) *Recorder {
	return &Recorder{store: store, indexRetries: 3, retryDelay: 50 * time.Millisecond}
}

// HandleCompletion writes the chat record then upserts the per-user
// recency index. The record write is idempotent by id; the index upsert
// is retried since losing it would orphan the record in listings.
func (r *Recorder) HandleCompletion(ctx context.Context, c agent.Completion) error {
	rec, err := NewRecord(c.ConversationID, c.UserID, c.Messages, c.Answer, time.Now())
	if err != nil {
		return err
	}

	fields, err := rec.Fields()
	if err != nil {
		return fmt.Errorf("chat: encode record: %w", err)
	}
	if err := r.store.SetChat(ctx, rec.ID, fields); err != nil {
		return fmt.Errorf("chat: record write: %w", err)
	}

	var indexErr error
	for attempt := 0; attempt < r.indexRetries; attempt++ {
		if indexErr = r.store.IndexChat(ctx, rec.UserID, rec.ID, rec.CreatedAt); indexErr == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * r.retryDelay)
	}
	return fmt.Errorf("chat: index upsert: %w", indexErr)
}

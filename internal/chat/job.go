package chat

import (
	"time"

	"github.com/gopherchat/agent/internal/ai"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued chat turn, processed by the worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID uint64 `gorm:"index;index:uniq_user_idempo,unique;not null"`

	// Payload is the original turn request (conversation id + messages)
	// as JSON, replayed by the worker.
	Payload string `gorm:"type:text;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded: the id of the written chat record.
	ChatID *string `gorm:"size:64;index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobPayload is the serialized form of Job.Payload.
type JobPayload struct {
	ConversationID string       `json:"id,omitempty"`
	Messages       []ai.Message `json:"messages"`
}

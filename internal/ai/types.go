package ai

import "context"

// Message is one chat message in provider wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

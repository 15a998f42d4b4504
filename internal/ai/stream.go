package ai

import "context"

// StreamProvider is implemented by providers that can deliver the model
// output incrementally. The reasoning loop requires it: action directives
// are parsed from the stream as they arrive.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

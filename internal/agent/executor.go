package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gopherchat/agent/internal/ai"
	"github.com/gopherchat/agent/internal/tools"
)

// StreamProvider is the model surface the loop requires: incremental
// output so partial text reaches the caller before the loop finishes.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error)
}

// Request is one chat turn. Messages holds the full external
// conversation in order; the last message is the current turn's input,
// everything before it is history.
type Request struct {
	ConversationID string
	UserID         string
	Messages       []ai.Message
}

// Completion describes one finished turn. It is handed to completion
// handlers as an immutable snapshot; handlers must not mutate Messages.
type Completion struct {
	ConversationID string
	UserID         string
	Messages       []ai.Message
	Answer         string
}

// CompletionHandler is notified after the loop reaches its final answer.
// It is never called for failed runs.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, c Completion) error
}

// Executor drives the think/act/observe loop for one request.
type Executor struct {
	provider      StreamProvider
	tools         *tools.Registry
	template      string
	maxIterations int
	handlers      []CompletionHandler
}

// NewExecutor builds a loop over the given provider and tool roster.
// An empty template selects DefaultSystemTemplate.
func NewExecutor(provider StreamProvider, roster *tools.Registry, template string, maxIterations int) *Executor {
	if template == "" {
		template = DefaultSystemTemplate
	}
	if maxIterations <= 0 {
		maxIterations = 15
	}
	return &Executor{
		provider:      provider,
		tools:         roster,
		template:      template,
		maxIterations: maxIterations,
	}
}

// OnCompletion registers a handler invoked when a run finishes with a
// final answer.
func (e *Executor) OnCompletion(h CompletionHandler) {
	e.handlers = append(e.handlers, h)
}

// Execute runs the loop. The returned event channel is the live trace,
// closed exactly once when the loop ends; the error channel reports a
// terminal failure, if any, and closes with the trace. Cancelling ctx
// stops production.
func (e *Executor) Execute(ctx context.Context, req Request) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if len(req.Messages) == 0 {
			errs <- fmt.Errorf("agent: empty conversation")
			return
		}

		history := make([]Message, 0, len(req.Messages)-1)
		for _, m := range req.Messages[:len(req.Messages)-1] {
			history = append(history, Normalize(m.Role, m.Content))
		}
		input := req.Messages[len(req.Messages)-1].Content

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		toolList := e.tools.Describe()
		toolNames := strings.Join(e.tools.Names(), ", ")

		var scratchpad strings.Builder
		for iter := 0; iter < e.maxIterations; iter++ {
			system := RenderSystem(e.template, toolList, toolNames, scratchpad.String())
			msgs := make([]ai.Message, 0, len(history)+2)
			msgs = append(msgs, ai.Message{Role: "system", Content: system})
			for _, h := range history {
				msgs = append(msgs, ai.Message{Role: h.ProviderRole(), Content: h.Content})
			}
			msgs = append(msgs, ai.Message{Role: "user", Content: input})

			chunks, perrs := e.provider.StreamChat(ctx, msgs)

			var output strings.Builder
			var streamer answerStreamer
			for c := range chunks {
				output.WriteString(c)
				if !emit(Event{Path: PathModelOutput, Op: OpAdd, Value: c}) {
					return
				}
				if text := streamer.Feed(c); text != "" {
					if !emit(Event{Path: PathOutputText, Op: OpAdd, Value: text}) {
						return
					}
				}
			}
			select {
			case err := <-perrs:
				if err != nil {
					errs <- err
					return
				}
			default:
			}

			act, err := ParseAction(output.String())
			if err != nil {
				errs <- err
				return
			}

			if act.Action == FinalAnswerAction {
				if rest := streamer.Flush(act.Input); rest != "" {
					if !emit(Event{Path: PathOutputText, Op: OpAdd, Value: rest}) {
						return
					}
				}
				if !emit(Event{Path: PathFinal, Op: OpAdd, Value: act.Input}) {
					return
				}
				e.complete(ctx, req, act.Input)
				return
			}

			obs := e.tools.Invoke(ctx, act.Action, act.Input)
			if !emit(Event{Path: PathToolOutput, Op: OpAdd, Value: obs}) {
				return
			}
			scratchpad.WriteString(output.String())
			scratchpad.WriteString("\nObservation: ")
			scratchpad.WriteString(obs)
			scratchpad.WriteString("\nThought: ")
		}

		errs <- ErrIterationLimit
	}()

	return events, errs
}

// complete notifies handlers. Persistence must survive a client that
// disconnects right after the answer finished, so cancellation is
// stripped from the context.
func (e *Executor) complete(ctx context.Context, req Request, answer string) {
	c := Completion{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Messages:       req.Messages,
		Answer:         answer,
	}
	ctx = context.WithoutCancel(ctx)
	for _, h := range e.handlers {
		if err := h.HandleCompletion(ctx, c); err != nil {
			log.Printf("completion handler failed conversation=%s user=%s err=%v",
				req.ConversationID, req.UserID, err)
		}
	}
}

package agent

import "strings"

// OutputText filters a live trace down to the client-visible answer
// fragments, forwarding each qualifying event as soon as it is observed.
// The returned channel closes when the trace is exhausted; fragments
// already forwarded are never retracted.
func OutputText(events <-chan Event) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Op == OpAdd && ev.Path == PathOutputText && ev.Value != "" {
				out <- ev.Value
			}
		}
	}()
	return out
}

// Collect drains a trace to completion and returns the final answer.
// Used by callers that do not stream, like the job worker.
func Collect(events <-chan Event, errs <-chan error) (string, error) {
	var final strings.Builder
	for ev := range events {
		if ev.Op == OpAdd && ev.Path == PathFinal {
			final.WriteString(ev.Value)
		}
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return final.String(), nil
}

package agent

import "errors"

var (
	// ErrStructuredOutput means the model's output contained no
	// well-formed action directive. The loop does not retry.
	ErrStructuredOutput = errors.New("agent: model output contained no parseable action")

	// ErrIterationLimit means the loop exceeded its cycle bound
	// without producing a final answer.
	ErrIterationLimit = errors.New("agent: iteration limit exceeded")
)

package agent

// Op describes how an event's value applies to the trace.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
)

// Trace event paths. The trace is consumed as a single forward pass;
// consumers filter by path.
const (
	// PathOutputText carries answer fragments meant for the client.
	PathOutputText = "/output"
	// PathModelOutput carries the raw model stream, including action
	// directives. Bookkeeping only, never shown to the client.
	PathModelOutput = "/model"
	// PathToolOutput carries the observation recorded after a tool call.
	PathToolOutput = "/tool"
	// PathFinal carries the complete final answer once parsed.
	PathFinal = "/final"
)

// Event is one unit of the loop's activity log. Events are strictly
// ordered by emission time.
type Event struct {
	Path  string
	Op    Op
	Value string
}

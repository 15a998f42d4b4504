// Package agent implements the think/act/observe reasoning loop and the
// trace stream it produces.
package agent

// Kind classifies a normalized conversation message.
type Kind int

const (
	KindHuman Kind = iota
	KindAssistant
	KindGeneric
)

// Message is the internal form of one conversation message. Generic
// messages keep the original role string they arrived with.
type Message struct {
	Kind    Kind
	Role    string
	Content string
}

// Normalize maps an external {role, content} pair to its internal
// variant. "user" becomes Human, "assistant" becomes Assistant, any
// other role becomes Generic carrying the original role. Content is
// preserved exactly.
func Normalize(role, content string) Message {
	switch role {
	case "user":
		return Message{Kind: KindHuman, Role: role, Content: content}
	case "assistant":
		return Message{Kind: KindAssistant, Role: role, Content: content}
	default:
		return Message{Kind: KindGeneric, Role: role, Content: content}
	}
}

// ProviderRole is the role string sent to the LLM provider.
func (m Message) ProviderRole() string {
	switch m.Kind {
	case KindHuman:
		return "user"
	case KindAssistant:
		return "assistant"
	default:
		return m.Role
	}
}

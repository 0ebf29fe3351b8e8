package llm

import "context"

// Roles used in Message.Role.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// Context is one generation request. Temperature is optional; a nil value
// leaves the provider default in place.
type Context struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// System returns the concatenated system messages.
func (c Context) System() string {
	var out string
	for _, m := range c.Messages {
		if m.Role != RoleSystem {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += m.Content
	}
	return out
}

// Turns returns the non-system messages in order.
func (c Context) Turns() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Model        string
	Usage        Usage
	FinishReason string
}

// LLMAdapter is a text generation provider. Implementations send exactly one
// request per Generate call and never retry.
type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

// Float returns a pointer to v, for optional settings such as Temperature.
func Float(v float64) *float64 { return &v }

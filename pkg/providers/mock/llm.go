package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/advocate/pkg/llm"
)

// LLMAdapter returns a canned response and records every call.
type LLMAdapter struct {
	cfg LLMConfig

	mu     sync.Mutex
	calls  int
	inputs []llm.Context
}

type LLMConfig struct {
	ResponseText string `mapstructure:"response_text"`
	// Err, when set, is returned instead of a response.
	Err error `mapstructure:"-"`
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	a.calls++
	a.inputs = append(a.inputs, input)
	a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	return llm.Response{Text: a.cfg.ResponseText, Model: "mock", FinishReason: "stop"}, nil
}

// Calls reports how many times Generate was invoked.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// LastInput returns the most recent request, if any.
func (a *LLMAdapter) LastInput() (llm.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inputs) == 0 {
		return llm.Context{}, false
	}
	return a.inputs[len(a.inputs)-1], true
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)

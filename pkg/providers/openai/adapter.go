package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	GroqBaseURL    = "https://api.groq.com/openai/v1"

	DefaultModel     = "gpt-4o-mini"
	DefaultGroqModel = "llama3-8b-8192"

	maxErrorBody = 4096
)

// Adapter talks to any OpenAI-compatible chat completions endpoint.
type Adapter struct {
	APIKey   string
	Model    string
	BaseURL  string
	Provider string
	Client   *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		APIKey:   apiKey,
		Model:    model,
		BaseURL:  DefaultBaseURL,
		Provider: "openai",
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// NewGroqAdapter targets Groq's OpenAI-compatible endpoint.
func NewGroqAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = DefaultGroqModel
	}
	a := NewAdapter(apiKey, model)
	a.BaseURL = GroqBaseURL
	a.Provider = "groq"
	return a
}

func (a *Adapter) Name() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "openai"
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, classifyTransport(a.Name(), err)
	}
	defer resp.Body.Close()
	if err := statusError(a.Name(), resp); err != nil {
		return llm.Response{}, err
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: decode response: %v", a.Name(), err)
	}
	return a.FromProviderFormat(payload)
}

// FromProviderFormat extracts the first choice's message content.
func (a *Adapter) FromProviderFormat(raw any) (llm.Response, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: invalid response", a.Name())
	}
	choices, _ := m["choices"].([]any)
	if len(choices) == 0 {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: response has no choices", a.Name())
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	content, ok := msg["content"].(string)
	if !ok {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: response missing message content", a.Name())
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: empty completion", a.Name())
	}
	resp := llm.Response{Text: content, Model: stringValue(m["model"])}
	if reason, _ := first["finish_reason"].(string); reason != "" {
		resp.FinishReason = reason
	}
	if usage, ok := m["usage"].(map[string]any); ok {
		resp.Usage = llm.Usage{
			PromptTokens:     intValue(usage["prompt_tokens"]),
			CompletionTokens: intValue(usage["completion_tokens"]),
			TotalTokens:      intValue(usage["total_tokens"]),
		}
	}
	return resp, nil
}

func (a *Adapter) buildRequest(input llm.Context) (*bytes.Buffer, error) {
	messages := make([]map[string]any, 0, len(input.Messages))
	for _, m := range input.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	req := map[string]any{
		"model":    a.Model,
		"stream":   false,
		"messages": messages,
	}
	if input.Temperature != nil {
		req["temperature"] = *input.Temperature
	}
	if input.MaxTokens > 0 {
		req["max_tokens"] = input.MaxTokens
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

// statusError maps a non-2xx response to a reasoned error. The provider's
// error body is kept for diagnosis; callers scrub secrets before display.
func statusError(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return errorsx.Wrap(resilience.RateLimitError{Provider: provider, Message: msg, RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}, errorsx.ReasonLLMRateLimit)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errorsx.Wrapf(errorsx.ReasonLLMAuth, "%s: authentication failed (status %d)", provider, resp.StatusCode)
	default:
		return errorsx.Wrapf(errorsx.ReasonLLMGenerate, "%s: API error (status %d): %s", provider, resp.StatusCode, msg)
	}
}

func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorsx.Wrap(fmt.Errorf("%s: request timed out: %w", provider, err), errorsx.ReasonLLMTimeout)
	}
	return errorsx.Wrap(fmt.Errorf("%s: http request: %w", provider, err), errorsx.ReasonLLMGenerate)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

var _ llm.LLMAdapter = (*Adapter)(nil)

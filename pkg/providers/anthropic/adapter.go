package anthropic

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
	DefaultEndpoint  = "https://api.anthropic.com/v1/messages"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultVersion   = "2023-06-01"
	DefaultMaxTokens = 1024
)

type Config struct {
	APIKey    string
	Endpoint  string
	Model     string
	Version   string
	MaxTokens int
	Timeout   time.Duration
}

// Adapter calls the Messages API. The system instruction is sent as the
// top-level system field, the remaining turns as messages.
type Adapter struct {
	cfg    Config
	Client *http.Client
}

func NewAdapter(cfg Config) *Adapter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Adapter{cfg: cfg, Client: &http.Client{Timeout: cfg.Timeout}}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body := map[string]any{
		"model":      a.cfg.Model,
		"max_tokens": a.cfg.MaxTokens,
	}
	if input.MaxTokens > 0 {
		body["max_tokens"] = input.MaxTokens
	}
	if sys := input.System(); sys != "" {
		body["system"] = sys
	}
	if input.Temperature != nil {
		body["temperature"] = *input.Temperature
	}
	turns := input.Turns()
	messages := make([]map[string]any, 0, len(turns))
	for _, m := range turns {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	body["messages"] = messages

	b, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", a.cfg.Version)

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Response{}, errorsx.Wrap(fmt.Errorf("anthropic: request timed out: %w", err), errorsx.ReasonLLMTimeout)
		}
		return llm.Response{}, errorsx.Wrap(fmt.Errorf("anthropic: http request: %w", err), errorsx.ReasonLLMGenerate)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		switch resp.StatusCode {
		case http.StatusTooManyRequests, 529:
			return llm.Response{}, errorsx.Wrap(resilience.RateLimitError{Provider: "anthropic", Message: msg, RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}, errorsx.ReasonLLMRateLimit)
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMAuth, "anthropic: authentication failed (status %d)", resp.StatusCode)
		default:
			return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMGenerate, "anthropic: API error (status %d): %s", resp.StatusCode, msg)
		}
	}

	var payload messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "anthropic: decode response: %v", err)
	}
	var sb strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return llm.Response{}, errorsx.Wrapf(errorsx.ReasonLLMMalformed, "anthropic: response has no text content")
	}
	return llm.Response{
		Text:         text,
		Model:        payload.Model,
		FinishReason: payload.StopReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.InputTokens,
			CompletionTokens: payload.Usage.OutputTokens,
			TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
		},
	}, nil
}

type messageResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

var _ llm.LLMAdapter = (*Adapter)(nil)

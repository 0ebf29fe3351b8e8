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

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultSpeechModel = "tts-1"
	DefaultSpeechVoice = "alloy"
)

// Speech synthesizes MP3 narration through the /audio/speech endpoint.
type Speech struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Client  *http.Client
}

func NewSpeech(apiKey string, cfg tts.Config) *Speech {
	s := &Speech{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Model:   cfg.Model,
		Voice:   cfg.Voice,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
	if s.Model == "" {
		s.Model = DefaultSpeechModel
	}
	if s.Voice == "" {
		s.Voice = DefaultSpeechVoice
	}
	return s
}

func (s *Speech) Name() string { return "openai_tts" }

func (s *Speech) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "%s: empty text", s.Name())
	}
	model, voice := s.Model, s.Voice
	if req.Model != "" {
		model = req.Model
	}
	if req.Voice != "" {
		voice = req.Voice
	}
	payload := map[string]any{
		"model":           model,
		"voice":           voice,
		"input":           text,
		"response_format": "mp3",
	}
	if req.Slow {
		payload["speed"] = 0.75
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.BaseURL, "/")+"/audio/speech", bytes.NewReader(b))
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tts.Audio{}, errorsx.Wrap(fmt.Errorf("%s: request timed out: %w", s.Name(), err), errorsx.ReasonTTSTimeout)
		}
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("%s: http request: %w", s.Name(), err), errorsx.ReasonTTSConnect)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return tts.Audio{}, errorsx.Wrap(resilience.RateLimitError{Provider: s.Name(), Message: msg, RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}, errorsx.ReasonTTSRateLimit)
		case http.StatusUnauthorized, http.StatusForbidden:
			return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSAuth, "%s: authentication failed (status %d)", s.Name(), resp.StatusCode)
		default:
			return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "%s: API error (status %d): %s", s.Name(), resp.StatusCode, msg)
		}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("%s: read audio: %w", s.Name(), err), errorsx.ReasonTTSSynthesize)
	}
	if len(audio) == 0 {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "%s: provider returned no audio", s.Name())
	}
	return tts.Audio{Bytes: audio, MIMEType: tts.MIMETypeMPEG}, nil
}

var _ tts.Synthesizer = (*Speech)(nil)

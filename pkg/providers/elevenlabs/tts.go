package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultBaseURL      = "wss://api.elevenlabs.io/v1"
	DefaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID      = "eleven_turbo_v2_5"
	DefaultOutputFormat = "mp3_44100_128"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
}

// ElevenLabsTTS synthesizes a whole narration over one stream-input
// websocket: the full text is sent, the stream is closed with an empty
// text message, and audio chunks are collected until isFinal.
type ElevenLabsTTS struct {
	cfg    Config
	dialer *websocket.Dialer
}

func New(cfg Config) *ElevenLabsTTS {
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 15 * time.Second},
	}
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs_tts" }

func (s *ElevenLabsTTS) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "elevenlabs: text is required")
	}
	if s.cfg.APIKey == "" {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSAuth, "elevenlabs: api key is required")
	}
	u, err := s.buildURL(req)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}

	slog.Debug("connecting to ElevenLabs",
		slog.String("voice_id", s.voice(req)),
		slog.String("output_format", s.cfg.OutputFormat))

	conn, resp, err := s.dialer.DialContext(ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		return tts.Audio{}, classifyDialError(ctx, resp, err)
	}
	defer conn.Close()

	// Unblock the reader when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	w := &writer{conn: conn}
	settings := map[string]any{
		"stability":        0.5,
		"similarity_boost": 0.8,
	}
	if req.Slow {
		settings["speed"] = 0.8
	}
	if err := w.send(map[string]any{"text": " ", "voice_settings": settings}); err != nil {
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("elevenlabs: send init: %w", err), errorsx.ReasonTTSConnect)
	}
	if err := w.send(map[string]any{"text": text + " ", "try_trigger_generation": true}); err != nil {
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("elevenlabs: send text: %w", err), errorsx.ReasonTTSConnect)
	}
	if err := w.send(map[string]any{"text": ""}); err != nil {
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("elevenlabs: send eos: %w", err), errorsx.ReasonTTSConnect)
	}

	var buf bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return tts.Audio{}, classifyContext(ctxErr)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSAuth, "elevenlabs: connection rejected: %v", err)
			}
			return tts.Audio{}, errorsx.Wrap(fmt.Errorf("elevenlabs: read: %w", err), errorsx.ReasonTTSConnect)
		}
		final, err := s.handleMessage(data, &buf)
		if err != nil {
			return tts.Audio{}, err
		}
		if final {
			break
		}
	}
	_ = w.close()

	if buf.Len() == 0 {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "elevenlabs: provider returned no audio")
	}
	slog.Debug("elevenlabs synthesis complete", slog.Int("size_bytes", buf.Len()))
	return tts.Audio{Bytes: buf.Bytes(), MIMEType: tts.MIMETypeMPEG}, nil
}

func (s *ElevenLabsTTS) voice(req tts.Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	return s.cfg.VoiceID
}

func (s *ElevenLabsTTS) buildURL(req tts.Request) (string, error) {
	base, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(s.voice(req)) + "/stream-input")
	if err != nil {
		return "", err
	}
	q := url.Values{}
	model := s.cfg.ModelID
	if req.Model != "" {
		model = req.Model
	}
	q.Set("model_id", model)
	q.Set("output_format", s.cfg.OutputFormat)
	if req.Language != "" {
		q.Set("language_code", req.Language)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// handleMessage appends any audio in data to buf and reports whether the
// provider marked the stream final.
func (s *ElevenLabsTTS) handleMessage(data []byte, buf *bytes.Buffer) (bool, error) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("tts websocket raw data", "data", string(data))
		return false, nil
	}
	if errMsg, ok := msg["error"].(string); ok && errMsg != "" {
		return false, classifyStreamError(errMsg, msg["message"])
	}
	audio, ok := msg["audio"].(string)
	if !ok {
		if a, ok := msg["audio_base_64"].(string); ok {
			audio = a
		}
	}
	if audio != "" {
		raw, err := base64.StdEncoding.DecodeString(audio)
		if err != nil {
			return false, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "elevenlabs: decode audio: %v", err)
		}
		buf.Write(raw)
		slog.Debug("tts audio chunk received", slog.Int("size_bytes", len(raw)))
	}
	final, _ := msg["isFinal"].(bool)
	return final, nil
}

func classifyStreamError(code string, detail any) error {
	text := code
	if d, ok := detail.(string); ok && d != "" {
		text = code + ": " + d
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "quota") || strings.Contains(lower, "rate") || strings.Contains(lower, "too_many"):
		return errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: text}, errorsx.ReasonTTSRateLimit)
	case strings.Contains(lower, "auth") || strings.Contains(lower, "api_key") || strings.Contains(lower, "unauthorized"):
		return errorsx.Wrapf(errorsx.ReasonTTSAuth, "elevenlabs: %s", text)
	default:
		return errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "elevenlabs: %s", text)
	}
}

func classifyDialError(ctx context.Context, resp *http.Response, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return classifyContext(ctxErr)
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			slog.Error("ElevenLabs rate limit exceeded", slog.String("status", resp.Status))
			return errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status, RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}, errorsx.ReasonTTSRateLimit)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errorsx.Wrapf(errorsx.ReasonTTSAuth, "elevenlabs: authentication failed (status %d)", resp.StatusCode)
		}
	}
	slog.Error("failed to connect to ElevenLabs", slog.String("error", err.Error()))
	return errorsx.Wrap(fmt.Errorf("elevenlabs: dial: %w", err), errorsx.ReasonTTSConnect)
}

func classifyContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorsx.Wrap(fmt.Errorf("elevenlabs: synthesis timed out: %w", err), errorsx.ReasonTTSTimeout)
	}
	return errorsx.Wrap(fmt.Errorf("elevenlabs: synthesis cancelled: %w", err), errorsx.ReasonTTSConnect)
}

type writer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *writer) send(payload map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

func (w *writer) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

var _ tts.Synthesizer = (*ElevenLabsTTS)(nil)

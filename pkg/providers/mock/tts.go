package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
)

type TTSConfig struct {
	// Audio is returned verbatim. When empty a 10-byte silent stub is used.
	Audio []byte `mapstructure:"-"`
	Err   error  `mapstructure:"-"`
}

// Synthesizer is a deterministic in-memory TTS provider that records calls.
type Synthesizer struct {
	cfg TTSConfig

	mu       sync.Mutex
	calls    int
	requests []tts.Request
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.Audio == nil {
		cfg.Audio = make([]byte, 10)
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return tts.Audio{}, err
	}
	if s.cfg.Err != nil {
		return tts.Audio{}, s.cfg.Err
	}
	if req.Text == "" {
		return tts.Audio{}, errors.New("mock_tts: text is required")
	}
	out := make([]byte, len(s.cfg.Audio))
	copy(out, s.cfg.Audio)
	return tts.Audio{Bytes: out, MIMEType: tts.MIMETypeMPEG}, nil
}

func (s *Synthesizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Synthesizer) Requests() []tts.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tts.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

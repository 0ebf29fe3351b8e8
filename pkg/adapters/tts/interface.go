package tts

import (
	"context"
	"strings"
)

// MIMETypeMPEG is the only audio format the pipeline hands to the presenter.
const MIMETypeMPEG = "audio/mpeg"

// Request carries the text and the provider-neutral voice options.
// Providers ignore options they cannot express.
type Request struct {
	Text     string
	Voice    string
	Model    string
	Language string
	Slow     bool
}

// Audio is a synthesized narration held in memory.
type Audio struct {
	Bytes    []byte
	MIMEType string
}

func (a Audio) Empty() bool { return len(a.Bytes) == 0 }

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize sends exactly one synthesis request and returns the audio.
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// Config contains vendor-agnostic TTS configuration shared by providers.
type Config struct {
	Voice    string `mapstructure:"voice"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	Slow     bool   `mapstructure:"slow"`
}

// Request builds a synthesis request for text using the configured options.
func (c Config) Request(text string) Request {
	lang := strings.TrimSpace(c.Language)
	if lang == "" {
		lang = "en"
	}
	return Request{
		Text:     text,
		Voice:    c.Voice,
		Model:    c.Model,
		Language: lang,
		Slow:     c.Slow,
	}
}

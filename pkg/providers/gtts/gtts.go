// Package gtts synthesizes speech through the Google Translate TTS endpoint.
// It needs no credential and returns MP3.
package gtts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultEndpoint = "https://translate.google.com/translate_tts"
	DefaultTLD      = "com"

	// MaxChunkRunes is the longest text the endpoint accepts per request.
	MaxChunkRunes = 100

	normalSpeed = "1"
	slowSpeed   = "0.24"
)

type Config struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

type Synthesizer struct {
	cfg    Config
	Client *http.Client
}

func New(cfg Config) *Synthesizer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{cfg: cfg, Client: &http.Client{Timeout: cfg.Timeout}}
}

func (s *Synthesizer) Name() string { return "gtts" }

// Synthesize splits long text into chunks, fetches each one in order and
// concatenates the MP3 frames.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	chunks := Chunk(req.Text, MaxChunkRunes)
	if len(chunks) == 0 {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "gtts: no text to speak")
	}
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	var out bytes.Buffer
	for i, chunk := range chunks {
		b, err := s.fetch(ctx, chunk, lang, req.Slow, i, len(chunks))
		if err != nil {
			return tts.Audio{}, err
		}
		out.Write(b)
	}
	if out.Len() == 0 {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "gtts: provider returned no audio")
	}
	return tts.Audio{Bytes: out.Bytes(), MIMEType: tts.MIMETypeMPEG}, nil
}

func (s *Synthesizer) fetch(ctx context.Context, text, lang string, slow bool, idx, total int) ([]byte, error) {
	speed := normalSpeed
	if slow {
		speed = slowSpeed
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", text)
	q.Set("tl", lang)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	httpReq.Header.Set("User-Agent", s.cfg.UserAgent)
	httpReq.Header.Set("Referer", "http://translate.google.com/")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errorsx.Wrap(fmt.Errorf("gtts: request timed out: %w", err), errorsx.ReasonTTSTimeout)
		}
		return nil, errorsx.Wrap(fmt.Errorf("gtts: http request: %w", err), errorsx.ReasonTTSConnect)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errorsx.Wrap(resilience.RateLimitError{Provider: "gtts", Message: resp.Status, RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}, errorsx.ReasonTTSRateLimit)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "gtts: chunk %d: unexpected status %d", idx, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("gtts: read chunk %d: %w", idx, err), errorsx.ReasonTTSSynthesize)
	}
	return b, nil
}

// Chunk splits text into pieces of at most limit runes. It prefers to cut
// after sentence punctuation, then at whitespace, and only splits a word
// when a single word exceeds limit.
func Chunk(text string, limit int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || limit <= 0 {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = appendChunk(chunks, string(runes))
			break
		}
		cut := cutPoint(runes[:limit+1], limit)
		chunks = appendChunk(chunks, string(runes[:cut]))
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	return chunks
}

func cutPoint(window []rune, limit int) int {
	punct, space := -1, -1
	for i := 0; i < limit; i++ {
		switch window[i] {
		case '.', '!', '?', ';', ':', ',':
			punct = i + 1
		case ' ':
			space = i
		}
	}
	// A space right after the window means the whole window is a clean cut.
	if window[limit] == ' ' {
		return limit
	}
	if punct > 0 {
		return punct
	}
	if space > 0 {
		return space
	}
	return limit
}

func appendChunk(chunks []string, c string) []string {
	c = strings.TrimSpace(c)
	if c == "" {
		return chunks
	}
	return append(chunks, c)
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

package gtts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
)

func TestChunkShortText(t *testing.T) {
	got := Chunk("  Patient   reports pain.  ", MaxChunkRunes)
	if len(got) != 1 || got[0] != "Patient reports pain." {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestChunkRespectsLimit(t *testing.T) {
	text := strings.Repeat("Severe pain disrupts sleep nightly. ", 10)
	chunks := Chunk(text, MaxChunkRunes)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > MaxChunkRunes {
			t.Fatalf("chunk exceeds limit (%d): %q", n, c)
		}
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("expected sentence boundary cut, got %q", c)
		}
	}
	if strings.Join(chunks, " ") != strings.TrimSpace(text) {
		t.Fatalf("chunks do not reassemble the text")
	}
}

func TestChunkSplitsLongWord(t *testing.T) {
	chunks := Chunk(strings.Repeat("a", 250), MaxChunkRunes)
	if len(chunks) != 3 || len(chunks[0]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected split: %d chunks", len(chunks))
	}
}

func TestChunkEmpty(t *testing.T) {
	if got := Chunk("   ", MaxChunkRunes); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

func TestSynthesizeConcatenatesChunks(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		queries = append(queries, q.Get("q"))
		mu.Unlock()
		if q.Get("client") != "tw-ob" || q.Get("ie") != "UTF-8" || q.Get("tl") != "en" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("ttsspeed") != slowSpeed {
			t.Errorf("expected slow speed, got %s", q.Get("ttsspeed"))
		}
		_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	text := strings.Repeat("Chronic pain limits mobility. ", 6)
	audio, err := s.Synthesize(context.Background(), tts.Request{Text: text, Slow: true})
	if err != nil {
		t.Fatalf("synthesize error: %v", err)
	}
	if string(audio.Bytes) != "[0][1]" {
		t.Fatalf("expected ordered concatenation, got %q", audio.Bytes)
	}
	if audio.MIMEType != tts.MIMETypeMPEG {
		t.Fatalf("unexpected mime %s", audio.MIMEType)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(queries))
	}
}

func TestSynthesizeStatusErrors(t *testing.T) {
	cases := map[int]errorsx.ReasonCode{
		http.StatusTooManyRequests:     errorsx.ReasonTTSRateLimit,
		http.StatusInternalServerError: errorsx.ReasonTTSSynthesize,
	}
	for status, reason := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		s := New(Config{Endpoint: srv.URL})
		_, err := s.Synthesize(context.Background(), tts.Request{Text: "hello"})
		srv.Close()
		if !errorsx.HasReason(err, reason) {
			t.Fatalf("status %d: expected %s, got %v", status, reason, err)
		}
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	s := New(Config{Endpoint: srv.URL})
	_, err := s.Synthesize(context.Background(), tts.Request{Text: "hello"})
	if !errorsx.HasReason(err, errorsx.ReasonTTSEmptyAudio) {
		t.Fatalf("expected empty audio reason, got %v", err)
	}
}

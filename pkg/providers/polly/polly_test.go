package polly

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	pollysdk "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
)

type fakePollyClient struct {
	out  *pollysdk.SynthesizeSpeechOutput
	err  error
	last *pollysdk.SynthesizeSpeechInput
}

func (f *fakePollyClient) SynthesizeSpeech(ctx context.Context, params *pollysdk.SynthesizeSpeechInput, optFns ...func(*pollysdk.Options)) (*pollysdk.SynthesizeSpeechOutput, error) {
	f.last = params
	return f.out, f.err
}

type fakeAPIError struct {
	code string
	msg  string
}

func (e fakeAPIError) Error() string                 { return e.code + ": " + e.msg }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultServer }

func audioStream(b string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(b)))
}

func TestSynthesizeReturnsMP3(t *testing.T) {
	client := &fakePollyClient{out: &pollysdk.SynthesizeSpeechOutput{AudioStream: audioStream("mp3-bytes")}}
	s := NewWithClient(Config{}, client)

	audio, err := s.Synthesize(context.Background(), tts.Request{Text: "Patient reports pain."})
	if err != nil {
		t.Fatalf("synthesize error: %v", err)
	}
	if string(audio.Bytes) != "mp3-bytes" || audio.MIMEType != tts.MIMETypeMPEG {
		t.Fatalf("unexpected audio %+v", audio)
	}
	if client.last.OutputFormat != pollytypes.OutputFormatMp3 {
		t.Fatalf("expected mp3 output format")
	}
	if client.last.VoiceId != pollytypes.VoiceId(DefaultVoice) || client.last.Engine != pollytypes.EngineNeural {
		t.Fatalf("expected default voice and engine")
	}
	if client.last.TextType != pollytypes.TextTypeText {
		t.Fatalf("expected plain text type")
	}
}

func TestSynthesizeSlowUsesSSML(t *testing.T) {
	client := &fakePollyClient{out: &pollysdk.SynthesizeSpeechOutput{AudioStream: audioStream("x")}}
	s := NewWithClient(Config{Engine: "standard"}, client)

	if _, err := s.Synthesize(context.Background(), tts.Request{Text: "Pain & fatigue", Slow: true}); err != nil {
		t.Fatalf("synthesize error: %v", err)
	}
	if client.last.TextType != pollytypes.TextTypeSsml {
		t.Fatalf("expected ssml text type")
	}
	if !strings.Contains(*client.last.Text, `<prosody rate="slow">Pain &amp; fatigue</prosody>`) {
		t.Fatalf("unexpected ssml %q", *client.last.Text)
	}
	if client.last.Engine != pollytypes.EngineStandard {
		t.Fatalf("expected standard engine")
	}
}

func TestSynthesizeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason errorsx.ReasonCode
	}{
		{"throttle", fakeAPIError{code: "ThrottlingException"}, errorsx.ReasonTTSRateLimit},
		{"auth", fakeAPIError{code: "UnrecognizedClientException"}, errorsx.ReasonTTSAuth},
		{"client", fakeAPIError{code: "TextLengthExceededException"}, errorsx.ReasonTTSSynthesize},
		{"timeout", context.DeadlineExceeded, errorsx.ReasonTTSTimeout},
		{"transport", io.ErrUnexpectedEOF, errorsx.ReasonTTSConnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWithClient(Config{}, &fakePollyClient{err: tt.err})
			_, err := s.Synthesize(context.Background(), tts.Request{Text: "hi"})
			if !errorsx.HasReason(err, tt.reason) {
				t.Fatalf("expected %s, got %v", tt.reason, err)
			}
		})
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	for _, out := range []*pollysdk.SynthesizeSpeechOutput{nil, {AudioStream: audioStream("")}} {
		s := NewWithClient(Config{}, &fakePollyClient{out: out})
		_, err := s.Synthesize(context.Background(), tts.Request{Text: "hi"})
		if !errorsx.HasReason(err, errorsx.ReasonTTSEmptyAudio) {
			t.Fatalf("expected empty audio reason, got %v", err)
		}
	}
}

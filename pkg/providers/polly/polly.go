package polly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultRegion = "us-east-1"
	DefaultVoice  = "Joanna"
	DefaultEngine = "neural"

	slowRate = "slow"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Profile string
}

// Synthesizer calls Amazon Polly with credentials from the AWS default
// chain. The client is created lazily on first use.
type Synthesizer struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func New(cfg Config) *Synthesizer {
	return NewWithClient(cfg, nil)
}

func NewWithClient(cfg Config, client synthClient) *Synthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = DefaultRegion
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = DefaultVoice
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = DefaultEngine
	}
	return &Synthesizer{client: client, cfg: cfg}
}

func (s *Synthesizer) Name() string { return "polly" }

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "polly: empty text")
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voice := s.cfg.VoiceID
	if req.Voice != "" {
		voice = req.Voice
	}
	input := &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	}
	if req.Slow {
		ssml := SSML(text, slowRate)
		input.Text = &ssml
		input.TextType = pollytypes.TextTypeSsml
	}

	output, err := client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return tts.Audio{}, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "polly: no audio stream")
	}
	defer output.AudioStream.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, output.AudioStream); err != nil {
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("polly: read audio: %w", err), errorsx.ReasonTTSSynthesize)
	}
	if buf.Len() == 0 {
		return tts.Audio{}, errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "polly: provider returned no audio")
	}
	return tts.Audio{Bytes: buf.Bytes(), MIMEType: tts.MIMETypeMPEG}, nil
}

// SSML wraps escaped text in a prosody element with the given rate.
func SSML(text, rate string) string {
	return `<speak><prosody rate="` + rate + `">` + html.EscapeString(text) + `</prosody></speak>`
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorsx.Wrap(fmt.Errorf("polly: request timed out: %w", err), errorsx.ReasonTTSTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return errorsx.Wrap(fmt.Errorf("polly: request cancelled: %w", err), errorsx.ReasonTTSConnect)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return errorsx.Wrap(resilience.RateLimitError{Provider: "polly", Message: apiErr.ErrorMessage()}, errorsx.ReasonTTSRateLimit)
		case "UnrecognizedClientException", "InvalidSignatureException", "AccessDeniedException", "ExpiredTokenException":
			return errorsx.Wrapf(errorsx.ReasonTTSAuth, "polly: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		default:
			return errorsx.Wrapf(errorsx.ReasonTTSSynthesize, "polly: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}
	return errorsx.Wrap(fmt.Errorf("polly: transport: %w", err), errorsx.ReasonTTSConnect)
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.cfg.Region)}
	if s.cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/credentials"
	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/metrics"
	"github.com/harunnryd/advocate/pkg/prompt"
	"github.com/harunnryd/advocate/pkg/redact"
	"github.com/harunnryd/advocate/pkg/resilience"
)

const (
	DefaultTextTimeout   = 45 * time.Second
	DefaultSpeechTimeout = 45 * time.Second

	tracerName = "github.com/harunnryd/advocate/pkg/pipeline"
)

// TextFactory builds a text generation client for one invocation from the
// resolved secret. The secret is empty when the stage needs no credential.
type TextFactory func(secret string) (llm.LLMAdapter, error)

// SpeechFactory builds a speech synthesis client for one invocation.
type SpeechFactory func(secret string) (tts.Synthesizer, error)

// TextStage configures the text generation step.
type TextStage struct {
	// Credential is the secret name the provider needs, or "" for none.
	Credential  string
	Build       TextFactory
	Temperature *float64
	MaxTokens   int
}

// SpeechStage configures the speech synthesis step.
type SpeechStage struct {
	Credential string
	Build      SpeechFactory
	Voice      tts.Config
}

type Options struct {
	Credentials credentials.Provider
	Text        TextStage
	Speech      SpeechStage
	Composer    prompt.Composer

	TextTimeout   time.Duration
	SpeechTimeout time.Duration

	Observer  metrics.Observer
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Listeners []StateListener
	NewRunID  func() string
}

// Pipeline runs Validator, Composer, Text Client and Speech Client in order
// and converts every failure into an Outcome. It holds no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.TextTimeout <= 0 {
		opts.TextTimeout = DefaultTextTimeout
	}
	if opts.SpeechTimeout <= 0 {
		opts.SpeechTimeout = DefaultSpeechTimeout
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{opts: opts, log: log.With("component", "pipeline")}
}

// Run executes one invocation. It never returns a Go error: validation,
// configuration and provider failures all come back as an Outcome.
func (p *Pipeline) Run(ctx context.Context, in intake.PatientIntake) Outcome {
	return p.run(ctx, p.opts.NewRunID(), in)
}

func (p *Pipeline) run(ctx context.Context, runID string, in intake.PatientIntake) Outcome {
	start := time.Now()
	ctx, span := p.opts.Tracer.Start(ctx, "report.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	fsm := newStateMachine(runID, p.opts.Listeners)
	out := p.execute(ctx, runID, fsm, in)
	out.RunID = runID
	out.Duration = time.Since(start)

	span.SetAttributes(attribute.String("outcome", string(out.Kind)))
	if !out.OK() {
		span.SetStatus(codes.Error, string(out.Reason))
	}
	p.opts.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventRunDone,
		Time:  time.Now(),
		Value: float64(out.Duration.Milliseconds()),
		Tags: map[string]string{
			"run_id":  runID,
			"outcome": string(out.Kind),
			"stage":   string(out.Stage),
			"reason":  reasonTag(out),
		},
	})
	p.logOutcome(out)
	return out
}

func (p *Pipeline) execute(ctx context.Context, runID string, fsm *stateMachine, in intake.PatientIntake) Outcome {
	_ = fsm.Transition(StateValidating, "trigger")

	if verr := in.Validate(); verr != nil {
		_ = fsm.Transition(StateFailed, verr.Error())
		return validationError(runID, verr.MissingFields)
	}
	creds, missing := credentials.Resolve(p.opts.Credentials, p.opts.Text.Credential, p.opts.Speech.Credential)
	if missing != nil {
		_ = fsm.Transition(StateFailed, missing.Error())
		return configurationError(runID, missing.Name)
	}
	secrets := creds.Values()

	_ = fsm.Transition(StateAwaitingTextGen, "validated")
	payload := p.opts.Composer.Compose(in)
	report, out, ok := p.generate(ctx, runID, payload, creds.Get(p.opts.Text.Credential), secrets)
	if !ok {
		_ = fsm.Transition(StateFailed, out.Cause)
		return out
	}

	_ = fsm.Transition(StateAwaitingSpeechGen, "report generated")
	audio, out, ok := p.synthesize(ctx, runID, report, creds.Get(p.opts.Speech.Credential), secrets)
	if !ok {
		out.ReportText = report
		_ = fsm.Transition(StateFailed, out.Cause)
		return out
	}

	_ = fsm.Transition(StateSucceeded, "audio synthesized")
	return success(runID, report, audio)
}

func (p *Pipeline) generate(ctx context.Context, runID string, payload prompt.Payload, secret string, secrets []string) (string, Outcome, bool) {
	if p.opts.Text.Build == nil {
		return "", providerError(runID, StageTextGen, "", "no text generation provider configured", errorsx.ReasonLLMGenerate), false
	}
	client, err := p.opts.Text.Build(secret)
	if err != nil {
		return "", providerError(runID, StageTextGen, "", redact.Secrets(err.Error(), secrets...), errorsx.ReasonLLMGenerate), false
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.TextTimeout)
	defer cancel()
	ctx, span := p.opts.Tracer.Start(ctx, "report.text_gen", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("provider", client.Name()),
	))
	defer span.End()

	start := time.Now()
	resp, err := client.Generate(ctx, llm.Context{
		Messages:    payload.Messages(),
		Temperature: p.opts.Text.Temperature,
		MaxTokens:   p.opts.Text.MaxTokens,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errorsx.Wrapf(errorsx.ReasonLLMMalformed, "%s: empty completion", client.Name())
	}
	reason := classify(ctx, err, errorsx.ReasonLLMGenerate, errorsx.ReasonLLMTimeout)
	p.recordStage(runID, StageTextGen, client.Name(), time.Since(start), err, reason)
	if err != nil {
		cause := redact.Secrets(err.Error(), secrets...)
		span.RecordError(errors.New(cause))
		span.SetStatus(codes.Error, string(reason))
		out := providerError(runID, StageTextGen, client.Name(), cause, reason)
		out.RetryAfter, _ = resilience.RetryAfter(err)
		return "", out, false
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	text := strings.TrimSpace(resp.Text)
	p.log.Debug("report_generated", "run_id", runID, "provider", client.Name(), "preview", redact.Text(preview(text)))
	return text, Outcome{}, true
}

func (p *Pipeline) synthesize(ctx context.Context, runID, text, secret string, secrets []string) (tts.Audio, Outcome, bool) {
	if p.opts.Speech.Build == nil {
		return tts.Audio{}, providerError(runID, StageSpeechGen, "", "no speech synthesis provider configured", errorsx.ReasonTTSSynthesize), false
	}
	client, err := p.opts.Speech.Build(secret)
	if err != nil {
		return tts.Audio{}, providerError(runID, StageSpeechGen, "", redact.Secrets(err.Error(), secrets...), errorsx.ReasonTTSSynthesize), false
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.SpeechTimeout)
	defer cancel()
	ctx, span := p.opts.Tracer.Start(ctx, "report.speech_gen", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("provider", client.Name()),
	))
	defer span.End()

	start := time.Now()
	audio, err := client.Synthesize(ctx, p.opts.Speech.Voice.Request(text))
	if err == nil && audio.Empty() {
		err = errorsx.Wrapf(errorsx.ReasonTTSEmptyAudio, "%s: provider returned no audio", client.Name())
	}
	reason := classify(ctx, err, errorsx.ReasonTTSSynthesize, errorsx.ReasonTTSTimeout)
	p.recordStage(runID, StageSpeechGen, client.Name(), time.Since(start), err, reason)
	if err != nil {
		cause := redact.Secrets(err.Error(), secrets...)
		span.RecordError(errors.New(cause))
		span.SetStatus(codes.Error, string(reason))
		out := providerError(runID, StageSpeechGen, client.Name(), cause, reason)
		out.RetryAfter, _ = resilience.RetryAfter(err)
		return tts.Audio{}, out, false
	}
	if audio.MIMEType == "" {
		audio.MIMEType = tts.MIMETypeMPEG
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio.Bytes)))
	return audio, Outcome{}, true
}

// classify picks the reason code for a stage error. A deadline hit by the
// stage timeout wins over whatever the provider reported.
func classify(ctx context.Context, err error, fallback, timeout errorsx.ReasonCode) errorsx.ReasonCode {
	if err == nil {
		return ""
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return timeout
	}
	if r := errorsx.Reason(err); r != errorsx.ReasonUnknown {
		return r
	}
	return fallback
}

func (p *Pipeline) recordStage(runID string, stage Stage, provider string, d time.Duration, err error, reason errorsx.ReasonCode) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.opts.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventStageDone,
		Time:  time.Now(),
		Value: float64(d.Microseconds()) / 1000,
		Tags: map[string]string{
			"run_id":   runID,
			"stage":    string(stage),
			"provider": provider,
			"status":   status,
			"reason":   string(reason),
		},
	})
	if err != nil && resilience.IsRateLimit(err) {
		p.opts.Observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventRateLimit,
			Time: time.Now(),
			Tags: map[string]string{"run_id": runID, "stage": string(stage), "provider": provider},
		})
	}
}

func (p *Pipeline) logOutcome(out Outcome) {
	switch out.Kind {
	case KindSuccess:
		p.log.Info("report_run_done",
			"run_id", out.RunID,
			"outcome", out.Kind,
			"audio_bytes", len(out.Audio.Bytes),
			"duration_ms", out.Duration.Milliseconds())
	case KindValidationError:
		p.log.Info("report_run_done",
			"run_id", out.RunID,
			"outcome", out.Kind,
			"missing_fields", out.MissingFields)
	case KindConfigurationError:
		p.log.Warn("report_run_done",
			"run_id", out.RunID,
			"outcome", out.Kind,
			"missing_credential", out.MissingCredential)
	default:
		p.log.Error("report_run_done",
			"run_id", out.RunID,
			"outcome", out.Kind,
			"stage", out.Stage,
			"provider", out.Provider,
			"reason", out.Reason,
			"cause", redact.Text(out.Cause),
			"duration_ms", out.Duration.Milliseconds())
	}
}

func reasonTag(out Outcome) string {
	if out.OK() {
		return ""
	}
	return string(out.Reason)
}

func preview(text string) string {
	const max = 80
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return fmt.Sprintf("%s...", string(r[:max]))
}

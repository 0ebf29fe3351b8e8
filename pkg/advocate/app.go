package advocate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/credentials"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/logging"
	"github.com/harunnryd/advocate/pkg/metrics"
	"github.com/harunnryd/advocate/pkg/observers"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/prompt"
	"github.com/harunnryd/advocate/pkg/redact"
	"github.com/harunnryd/advocate/pkg/resilience"
	"github.com/harunnryd/advocate/pkg/runner"
	"github.com/harunnryd/advocate/pkg/transports"
	"github.com/harunnryd/advocate/pkg/transports/web"
)

const metricsFlushTimeout = 5 * time.Second

// App wires configuration, providers, the pipeline and the web surface
// into one process lifecycle.
type App struct {
	cfg         Config
	pipeline    *pipeline.Pipeline
	registry    *pipeline.SessionRegistry
	transport   transports.Transport
	providers   *ProviderRegistry
	runner      *runner.LifecycleRunner
	asyncObs    *metrics.AsyncObserver
	metricsFile io.Closer
	log         *slog.Logger
}

type AppOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Credentials defaults to the config secrets backed by the environment.
	Credentials credentials.Provider
	// Transport defaults to the web transport. The factory receives the
	// session registry the transport triggers runs through.
	Transport func(cfg Config, registry *pipeline.SessionRegistry) transports.Transport
	Tracer    trace.Tracer
	Listeners []pipeline.StateListener
	Observers []metrics.Observer
	LogOutput io.Writer
}

func NewApp(opts AppOptions) (*App, error) {
	cfg := opts.Config
	logger := logging.InitLogger(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: opts.LogOutput,
	})
	redact.SetEnabled(cfg.Privacy.RedactPII)

	logger.Info("advocate_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"text_timeout", cfg.Pipeline.TextTimeout.String(),
		"speech_timeout", cfg.Pipeline.SpeechTimeout.String(),
	)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
		RegisterDefaults(providers)
	}
	text, err := providers.BuildTextStage(cfg.Vendors.LLM)
	if err != nil {
		return nil, err
	}
	speech, err := providers.BuildSpeechStage(cfg.Vendors.TTS)
	if err != nil {
		return nil, err
	}

	obsList := []metrics.Observer{
		observers.NewLatencyObserver(logger),
		observers.NewLoggerObserver(logger),
	}
	var metricsFile io.Closer
	if path := strings.TrimSpace(cfg.Observability.MetricsPath); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open metrics file: %w", err)
		}
		metricsFile = f
		obsList = append(obsList, metrics.NewJSONLObserver(f))
	}
	obsList = append(obsList, opts.Observers...)
	asyncObs := metrics.NewAsyncObserver(observers.NewMultiObserver(obsList...), cfg.Observability.MetricsBuffer)

	text.Build = withTextBreaker(text.Build, resilience.NewCircuitBreaker(cfg.Resilience.BreakerThreshold, cfg.Resilience.BreakerCooldown), asyncObs)
	speech.Build = withSpeechBreaker(speech.Build, resilience.NewCircuitBreaker(cfg.Resilience.BreakerThreshold, cfg.Resilience.BreakerCooldown), asyncObs)

	creds := opts.Credentials
	if creds == nil {
		creds = credentials.Chain{credentials.MapProvider(cfg.Secrets), credentials.EnvProvider{}}
	}

	p := pipeline.New(pipeline.Options{
		Credentials:   creds,
		Text:          text,
		Speech:        speech,
		Composer:      prompt.NewComposer(cfg.Prompt.SystemInstruction, cfg.Prompt.Persona, cfg.Prompt.Style),
		TextTimeout:   cfg.Pipeline.TextTimeout,
		SpeechTimeout: cfg.Pipeline.SpeechTimeout,
		Observer:      asyncObs,
		Tracer:        opts.Tracer,
		Logger:        logger,
		Listeners:     opts.Listeners,
	})
	registry := pipeline.NewSessionRegistry(p)

	var transport transports.Transport
	if opts.Transport != nil {
		transport = opts.Transport(cfg, registry)
	} else {
		transport = web.New(WebConfig(cfg), registry)
	}

	app := &App{
		cfg:         cfg,
		pipeline:    p,
		registry:    registry,
		transport:   transport,
		providers:   providers,
		asyncObs:    asyncObs,
		metricsFile: metricsFile,
		log:         logger,
	}
	app.runner = runner.NewLifecycleRunner(runner.DrainerFunc(app.drain), runner.Hooks{
		OnStart: app.onStart,
		OnStop:  app.onStop,
	}, cfg.Server.DrainTimeout+5*time.Second)
	return app, nil
}

// WebConfig maps the server section onto the web transport.
func WebConfig(cfg Config) web.Config {
	return web.Config{
		ServerAddr:              cfg.Server.Addr,
		Title:                   cfg.Server.Title,
		MaxBodyBytes:            cfg.Server.MaxBodyBytes,
		SessionIdleTTL:          cfg.Server.SessionIdleTTL,
		SweepInterval:           cfg.Server.SweepInterval,
		SecureCookie:            cfg.Server.SecureCookie,
		TextOnlyOnSpeechFailure: cfg.Pipeline.TextOnlyOnSpeechFailure,
	}
}

func withTextBreaker(build pipeline.TextFactory, breaker *resilience.CircuitBreaker, obs metrics.Observer) pipeline.TextFactory {
	if build == nil {
		return nil
	}
	return func(secret string) (llm.LLMAdapter, error) {
		inner, err := build(secret)
		if err != nil {
			return nil, err
		}
		a := llm.NewCircuitBreakerAdapter(inner, breaker)
		a.SetObserver(obs)
		return a, nil
	}
}

func withSpeechBreaker(build pipeline.SpeechFactory, breaker *resilience.CircuitBreaker, obs metrics.Observer) pipeline.SpeechFactory {
	if build == nil {
		return nil
	}
	return func(secret string) (tts.Synthesizer, error) {
		inner, err := build(secret)
		if err != nil {
			return nil, err
		}
		s := tts.NewCircuitBreakerSynthesizer(inner, breaker)
		s.SetObserver(obs)
		return s, nil
	}
}

// Start brings the transport up and runs the lifecycle in the background.
func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.transport.Start(ctx); err != nil {
		return err
	}
	go func() {
		_ = a.runner.Run(ctx)
	}()
	return nil
}

// Run is Start that blocks until ctx ends and the drain completes.
func (a *App) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.transport.Start(ctx); err != nil {
		return err
	}
	return a.runner.Run(ctx)
}

func (a *App) Stop() error {
	return a.runner.Stop()
}

func (a *App) drain() error {
	a.registry.SetDraining(true)
	if err := a.transport.Stop(); err != nil {
		a.log.Warn("transport_stop_failed", "transport", a.transport.Name(), "error", err.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.DrainTimeout)
	defer cancel()
	if !a.registry.WaitForIdle(ctx, 100*time.Millisecond) {
		a.log.Warn("drain_incomplete", "in_flight", a.registry.InFlight())
	}
	a.registry.CloseAll()
	return nil
}

func (a *App) onStart() {
	fields := []any{"message", "Advocate Ready", "transport", a.transport.Name()}
	if rr, ok := a.transport.(transports.ReadyReporter); ok {
		for k, v := range rr.ReadyFields() {
			fields = append(fields, k, v)
		}
	}
	a.log.Info("engine_ready", fields...)
}

func (a *App) onStop() {
	ctx, cancel := context.WithTimeout(context.Background(), metricsFlushTimeout)
	defer cancel()
	if err := a.asyncObs.Shutdown(ctx); err != nil {
		a.log.Warn("metrics_flush_incomplete", "error", err)
	}
	if a.metricsFile != nil {
		_ = a.metricsFile.Close()
	}
	a.log.Info("shutdown", "goroutines", runtime.NumGoroutine(), "sessions", a.registry.Count(), "metrics_dropped", a.asyncObs.Dropped())
}

func (a *App) ProviderRegistry() *ProviderRegistry {
	return a.providers
}

func (a *App) Transport() transports.Transport {
	return a.transport
}

func (a *App) Config() Config {
	return a.cfg
}

func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

func (a *App) Registry() *pipeline.SessionRegistry {
	return a.registry
}

func (a *App) Health() error {
	if a.transport == nil {
		return errors.New("missing transport")
	}
	if a.registry.Draining() {
		return errors.New("draining")
	}
	return nil
}

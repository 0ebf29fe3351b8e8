package advocate

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/advocate/pkg/credentials"
	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/presenter"
	"github.com/harunnryd/advocate/pkg/runner"
	"github.com/harunnryd/advocate/pkg/transports"
	mocktransport "github.com/harunnryd/advocate/pkg/transports/mock"
	"github.com/harunnryd/advocate/pkg/transports/web"
)

func init() { runner.BannerOutput = io.Discard }

type fakeTransport struct{}

func (fakeTransport) Name() string                { return "fake" }
func (fakeTransport) Start(context.Context) error { return nil }
func (fakeTransport) Stop() error                 { return nil }

func mockConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Vendors.LLM = VendorConfig{Provider: "mock", Settings: map[string]any{"response_text": "Patient reports severe pain."}}
	cfg.Vendors.TTS = VendorConfig{Provider: "mock"}
	cfg.Server.DrainTimeout = time.Second
	return cfg
}

func sampleIntake() intake.PatientIntake {
	return intake.PatientIntake{
		Pain:     intake.PainSevere,
		Duration: intake.DurationNew,
		Impacts:  []intake.Impact{intake.ImpactSleep},
		Goal:     intake.GoalReferral,
	}
}

func TestAppRunsReportThroughTransport(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Observability.MetricsPath = filepath.Join(t.TempDir(), "metrics.jsonl")
	var mt *mocktransport.Transport
	app, err := NewApp(AppOptions{
		Config:    cfg,
		LogOutput: io.Discard,
		Transport: func(_ Config, registry *pipeline.SessionRegistry) transports.Transport {
			mt = mocktransport.New(registry, presenter.Options{})
			return mt
		},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	if !mt.Push(mocktransport.Submission{SessionID: "s1", Intake: sampleIntake()}) {
		t.Fatal("push refused")
	}
	var res mocktransport.Result
	select {
	case res = <-mt.Sent():
	case <-time.After(2 * time.Second):
		t.Fatal("no result from transport")
	}
	if !res.Outcome.OK() {
		t.Fatalf("expected success, got %+v", res.Outcome)
	}
	if res.View.ReportText != "Patient reports severe pain." || !res.View.HasAudio() {
		t.Fatalf("unexpected view: %+v", res.View)
	}
	if len(res.Outcome.Audio.Bytes) != 10 {
		t.Fatalf("expected 10-byte audio, got %d", len(res.Outcome.Audio.Bytes))
	}

	if err := app.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if mt.Push(mocktransport.Submission{SessionID: "s1", Intake: sampleIntake()}) {
		t.Fatal("push accepted after drain")
	}
	if app.Health() == nil {
		t.Fatalf("expected unhealthy after drain")
	}
	raw, err := os.ReadFile(cfg.Observability.MetricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `"event":"report_run_done"`) {
		t.Fatalf("metrics file missing run event: %s", raw)
	}
}

func TestAppMissingCredentialSkipsProviders(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Vendors.LLM = VendorConfig{Provider: "groq"}
	app, err := NewApp(AppOptions{
		Config:      cfg,
		LogOutput:   io.Discard,
		Credentials: credentials.MapProvider{},
		Transport:   func(Config, *pipeline.SessionRegistry) transports.Transport { return fakeTransport{} },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Stop()

	out := app.Pipeline().Run(context.Background(), sampleIntake())
	if out.Kind != pipeline.KindConfigurationError || out.MissingCredential != SecretGroq {
		t.Fatalf("expected missing %s, got %+v", SecretGroq, out)
	}
}

func TestAppRejectsUnknownProvider(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Vendors.TTS = VendorConfig{Provider: "carrier-pigeon"}
	if _, err := NewApp(AppOptions{Config: cfg, LogOutput: io.Discard}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestAppServesWebTransport(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"
	app, err := NewApp(AppOptions{Config: cfg, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer app.Stop()

	wt, ok := app.Transport().(*web.Transport)
	if !ok {
		t.Fatalf("expected web transport, got %T", app.Transport())
	}
	addr, _ := wt.ReadyFields()["listen_addr"].(string)
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := app.Health(); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/presenter"
	"github.com/harunnryd/advocate/pkg/transports"
)

const SessionCookie = "advocate_session"

type Config struct {
	ServerAddr              string        `mapstructure:"server_addr"`
	Title                   string        `mapstructure:"title"`
	MaxBodyBytes            int64         `mapstructure:"max_body_bytes"`
	SessionIdleTTL          time.Duration `mapstructure:"session_idle_ttl"`
	SweepInterval           time.Duration `mapstructure:"sweep_interval"`
	SecureCookie            bool          `mapstructure:"secure_cookie"`
	TextOnlyOnSpeechFailure bool          `mapstructure:"-"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.Title == "" {
		c.Title = "Medical Advocate"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// Transport serves the intake form and the JSON report API.
type Transport struct {
	cfg      Config
	registry *pipeline.SessionRegistry
	server   *http.Server
	handler  http.Handler
	log      *slog.Logger

	mu       sync.Mutex
	addr     string
	stopOnce sync.Once
	stopCh   chan struct{}
	draining atomic.Bool
}

func New(cfg Config, registry *pipeline.SessionRegistry) *Transport {
	t := &Transport{
		cfg:      cfg.withDefaults(),
		registry: registry,
		log:      slog.Default().With("component", "web_transport"),
		stopCh:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", t.handleForm)
	mux.HandleFunc("POST /report", t.handleFormSubmit)
	mux.HandleFunc("POST /api/reports", t.handleAPIReport)
	mux.HandleFunc("GET /api/schema", t.handleSchema)
	mux.HandleFunc("GET /health", t.handleHealth)
	t.handler = mux
	return t
}

func (t *Transport) Name() string { return "web" }

// Handler exposes the routes without a listener.
func (t *Transport) Handler() http.Handler { return t.handler }

func (t *Transport) ReadyFields() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr := t.addr
	if addr == "" {
		addr = t.cfg.ServerAddr
	}
	return map[string]any{"listen_addr": addr, "form_url": "http://" + addr + "/"}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", t.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("web transport listen: %w", err)
	}
	t.mu.Lock()
	t.addr = ln.Addr().String()
	t.server = &http.Server{
		Handler:           t.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := t.server
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = t.Stop()
		case <-t.stopCh:
		}
	}()
	go t.sweepLoop()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("web_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Stop refuses new triggers and shuts the server down, letting runs in
// flight finish within a grace period.
func (t *Transport) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		t.draining.Store(true)
		close(t.stopCh)
		t.mu.Lock()
		srv := t.server
		t.mu.Unlock()
		if srv == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	})
	return err
}

func (t *Transport) sweepLoop() {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if n := t.registry.Sweep(t.cfg.SessionIdleTTL); n > 0 {
				t.log.Debug("sessions_swept", "removed", n, "remaining", t.registry.Count())
			}
		}
	}
}

func (t *Transport) handleForm(w http.ResponseWriter, r *http.Request) {
	t.renderPage(w, http.StatusOK, intake.FormValues{}, nil)
}

func (t *Transport) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, t.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := intake.FormValues{
		PainLevel:        r.PostForm.Get("pain_level"),
		Duration:         r.PostForm.Get("duration"),
		FunctionalImpact: r.PostForm["functional_impact"],
		Goal:             r.PostForm.Get("goal"),
	}
	in, err := intake.FromForm(form)
	if err != nil {
		view := badRequestView(err)
		t.renderPage(w, view.HTTPStatus, form, &view)
		return
	}
	view := t.trigger(w, r, in)
	t.renderPage(w, view.HTTPStatus, form, &view)
}

func (t *Transport) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, presenter.View{Status: presenter.StatusError, Category: "Unavailable", Message: "server is shutting down"})
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.cfg.MaxBodyBytes))
	if err != nil {
		view := badRequestView(err)
		writeJSON(w, view.HTTPStatus, view)
		return
	}
	in, err := intake.DecodeJSON(raw)
	if err != nil {
		view := badRequestView(err)
		writeJSON(w, view.HTTPStatus, view)
		return
	}
	view := t.trigger(w, r, in)
	writeJSON(w, view.HTTPStatus, view)
}

func (t *Transport) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(intake.Schema())
}

func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (t *Transport) trigger(w http.ResponseWriter, r *http.Request, in intake.PatientIntake) presenter.View {
	sess := t.sessionFor(w, r)
	out := sess.Trigger(r.Context(), in)
	view := presenter.Present(out, presenter.Options{TextOnlyOnSpeechFailure: t.cfg.TextOnlyOnSpeechFailure})
	if view.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(view.RetryAfterSeconds))
	}
	return view
}

// sessionFor returns the caller's session, issuing a cookie on first visit.
func (t *Transport) sessionFor(w http.ResponseWriter, r *http.Request) *pipeline.Session {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   t.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	sess, created := t.registry.GetOrCreate(id)
	if created {
		t.log.Debug("session_created", "session_id", id)
	}
	return sess
}

func (t *Transport) renderPage(w http.ResponseWriter, status int, form intake.FormValues, view *presenter.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := presenter.RenderHTML(w, presenter.NewPage(t.cfg.Title, form, view)); err != nil {
		t.log.Error("render_page_failed", "error", err.Error())
	}
}

func badRequestView(err error) presenter.View {
	return presenter.View{
		Status:     presenter.StatusError,
		Category:   "Invalid Request",
		Message:    err.Error(),
		HTTPStatus: http.StatusBadRequest,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)

package credentials

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestResolveFirstMissing(t *testing.T) {
	p := MapProvider{"GROQ_API_KEY": "gsk_1"}
	_, missing := Resolve(p, "GROQ_API_KEY", "ELEVENLABS_API_KEY", "OTHER")
	if missing == nil || missing.Name != "ELEVENLABS_API_KEY" {
		t.Fatalf("expected ELEVENLABS_API_KEY missing, got %v", missing)
	}
}

func TestResolveSkipsEmptyNames(t *testing.T) {
	set, missing := Resolve(MapProvider{"GROQ_API_KEY": "gsk_1"}, "GROQ_API_KEY", "")
	if missing != nil {
		t.Fatalf("unexpected missing %v", missing)
	}
	if set.Get("GROQ_API_KEY") != "gsk_1" {
		t.Fatalf("unexpected value")
	}
	if set.Get("") != "" {
		t.Fatalf("expected empty value for unrequired credential")
	}
}

func TestResolveNilProvider(t *testing.T) {
	if _, missing := Resolve(nil, "A"); missing == nil {
		t.Fatalf("expected missing with nil provider")
	}
	if _, missing := Resolve(nil); missing != nil {
		t.Fatalf("no names should resolve with nil provider")
	}
}

func TestBlankValuesAreAbsent(t *testing.T) {
	if _, ok := (MapProvider{"A": "  "}).Lookup("A"); ok {
		t.Fatalf("blank map value must be absent")
	}
	env := EnvProvider{LookupEnv: func(string) (string, bool) { return "", true }}
	if _, ok := env.Lookup("A"); ok {
		t.Fatalf("blank env value must be absent")
	}
}

func TestChainOrder(t *testing.T) {
	env := EnvProvider{LookupEnv: func(k string) (string, bool) {
		if k == "B" {
			return "from-env", true
		}
		return "", false
	}}
	c := Chain{MapProvider{"A": "from-config", "B": ""}, env}
	if cred, ok := c.Lookup("A"); !ok || cred.Value() != "from-config" {
		t.Fatalf("expected config value, got %v %v", cred.Value(), ok)
	}
	if cred, ok := c.Lookup("B"); !ok || cred.Value() != "from-env" {
		t.Fatalf("expected env fallback, got %v %v", cred.Value(), ok)
	}
}

func TestCredentialNeverPrinted(t *testing.T) {
	c := New("GROQ_API_KEY", "gsk_secret")
	if s := fmt.Sprintf("%v %s", c, c); strings.Contains(s, "gsk_secret") {
		t.Fatalf("credential leaked via fmt: %q", s)
	}
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("resolved", "cred", c)
	if strings.Contains(buf.String(), "gsk_secret") {
		t.Fatalf("credential leaked via slog: %q", buf.String())
	}
}

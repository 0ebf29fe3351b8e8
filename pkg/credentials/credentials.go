// Package credentials resolves named provider secrets before any network
// call is attempted.
package credentials

import (
	"log/slog"
	"os"
	"strings"
)

// Credential is a resolved secret. Its String and LogValue forms never
// expose the value.
type Credential struct {
	name  string
	value string
}

func New(name, value string) Credential { return Credential{name: name, value: value} }

func (c Credential) Name() string  { return c.name }
func (c Credential) Value() string { return c.value }
func (c Credential) String() string {
	return c.name + "=[REDACTED]"
}
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Provider looks up a credential by name. Implementations must be safe for
// concurrent reads.
type Provider interface {
	Lookup(name string) (Credential, bool)
}

// MapProvider serves credentials from a static map, typically the
// `secrets` section of the config file. Blank values count as absent.
type MapProvider map[string]string

func (m MapProvider) Lookup(name string) (Credential, bool) {
	v, ok := m[name]
	if !ok || strings.TrimSpace(v) == "" {
		return Credential{}, false
	}
	return New(name, v), true
}

// EnvProvider serves credentials from the process environment.
type EnvProvider struct {
	LookupEnv func(string) (string, bool)
}

func (e EnvProvider) Lookup(name string) (Credential, bool) {
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return Credential{}, false
	}
	return New(name, v), true
}

// Chain tries each provider in order.
type Chain []Provider

func (c Chain) Lookup(name string) (Credential, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if cred, ok := p.Lookup(name); ok {
			return cred, true
		}
	}
	return Credential{}, false
}

// MissingError names the first required credential that could not be found.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return "missing credential " + e.Name
}

// Set holds the credentials resolved for one invocation.
type Set map[string]Credential

// Get returns the value for name, or "" when the name was not required.
func (s Set) Get(name string) string {
	return s[name].Value()
}

// Values returns every resolved secret value, for scrubbing error text.
func (s Set) Values() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.Value())
	}
	return out
}

// Resolve looks up names in order and stops at the first missing one.
// Empty names mean "no credential required" and are skipped.
func Resolve(p Provider, names ...string) (Set, *MissingError) {
	set := make(Set, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if p == nil {
			return nil, &MissingError{Name: name}
		}
		cred, ok := p.Lookup(name)
		if !ok {
			return nil, &MissingError{Name: name}
		}
		set[name] = cred
	}
	return set, nil
}

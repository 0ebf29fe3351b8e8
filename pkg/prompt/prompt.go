// Package prompt renders a PatientIntake into the two-message request sent
// to the text generation provider.
package prompt

import (
	"strings"

	"github.com/harunnryd/advocate/pkg/intake"
	"github.com/harunnryd/advocate/pkg/llm"
)

// DefaultSystemInstruction is the advocate persona used when the config does
// not override it.
const DefaultSystemInstruction = `You are a medical advocate. Translate user inputs into strict, clinical language.
Use short sentences. Be firm and objective.
If 'Documentation' is requested, explicitly ask the doctor to record any refusals in the chart.`

const unspecifiedDuration = "an unspecified duration"

// Payload is the rendered prompt for one invocation.
type Payload struct {
	SystemInstruction string
	UserContent       string
}

// Messages returns the system and user messages in order.
func (p Payload) Messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: p.SystemInstruction},
		{Role: llm.RoleUser, Content: p.UserContent},
	}
}

// Composer holds the configured system instruction.
type Composer struct {
	SystemInstruction string
}

// NewComposer joins the base instruction with optional persona and style
// lines. An empty base falls back to DefaultSystemInstruction.
func NewComposer(base, persona, style string) Composer {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSystemInstruction
	}
	parts := []string{base}
	if p := strings.TrimSpace(persona); p != "" {
		parts = append(parts, "Persona: "+p)
	}
	if s := strings.TrimSpace(style); s != "" {
		parts = append(parts, "Style: "+s)
	}
	return Composer{SystemInstruction: strings.Join(parts, "\n")}
}

// Compose is pure: the same intake always yields the same payload.
func (c Composer) Compose(in intake.PatientIntake) Payload {
	system := c.SystemInstruction
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemInstruction
	}
	return Payload{
		SystemInstruction: system,
		UserContent:       UserContent(in),
	}
}

// UserContent renders the one-line structured summary of the intake.
func UserContent(in intake.PatientIntake) string {
	duration := unspecifiedDuration
	if in.Duration.IsSet() {
		duration = in.Duration.String()
	}
	var b strings.Builder
	b.WriteString("Patient reports ")
	b.WriteString(in.Pain.String())
	b.WriteString(" pain for ")
	b.WriteString(duration)
	b.WriteString(". Impact: ")
	b.WriteString(impactList(in.Impacts))
	b.WriteString(". Goal: ")
	b.WriteString(in.Goal.String())
	b.WriteString(".")
	return b.String()
}

// impactList renders ['Sleep', 'Work Ability'] and [] for no selections.
func impactList(impacts []intake.Impact) string {
	quoted := make([]string, 0, len(impacts))
	for _, imp := range impacts {
		quoted = append(quoted, "'"+imp.String()+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

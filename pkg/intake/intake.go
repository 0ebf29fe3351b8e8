// Package intake models the patient-reported form fields consumed by the
// report pipeline.
package intake

import (
	"fmt"
	"strings"
)

// UnsetLabel is the placeholder option shown before a selection is made.
const UnsetLabel = "Select..."

// Field names reported by ValidationError.
const (
	FieldPainLevel = "painLevel"
	FieldGoal      = "goal"
)

type PainLevel int

const (
	PainUnset PainLevel = iota
	PainMild
	PainModerate
	PainSevere
	PainIntolerable
)

type DurationBucket int

const (
	DurationUnset DurationBucket = iota
	DurationNew
	DurationSubAcute
	DurationChronic
)

type Impact int

const (
	ImpactSleep Impact = iota + 1
	ImpactWork
	ImpactMobility
	ImpactCognition
	ImpactAppetite
)

type Goal int

const (
	GoalUnset Goal = iota
	GoalReferral
	GoalImaging
	GoalMedicationAdjustment
	GoalDocumentationOnly
)

var painLabels = []string{
	PainMild:        "Mild",
	PainModerate:    "Moderate",
	PainSevere:      "Severe/Acute",
	PainIntolerable: "Intolerable",
}

var durationLabels = []string{
	DurationNew:      "New (Days)",
	DurationSubAcute: "Sub-Acute (Weeks)",
	DurationChronic:  "Chronic (>3 Months)",
}

var impactLabels = []string{
	ImpactSleep:     "Sleep",
	ImpactWork:      "Work Ability",
	ImpactMobility:  "Mobility",
	ImpactCognition: "Cognition",
	ImpactAppetite:  "Appetite",
}

var goalLabels = []string{
	GoalReferral:             "Referral to Specialist",
	GoalImaging:              "Imaging/Testing",
	GoalMedicationAdjustment: "Medication Adjustment",
	GoalDocumentationOnly:    "Documentation Only",
}

func (p PainLevel) String() string      { return label(painLabels, int(p)) }
func (d DurationBucket) String() string { return label(durationLabels, int(d)) }
func (i Impact) String() string         { return label(impactLabels, int(i)) }
func (g Goal) String() string           { return label(goalLabels, int(g)) }

func (p PainLevel) IsSet() bool      { return p > PainUnset && int(p) < len(painLabels) }
func (d DurationBucket) IsSet() bool { return d > DurationUnset && int(d) < len(durationLabels) }
func (g Goal) IsSet() bool           { return g > GoalUnset && int(g) < len(goalLabels) }

// PainOptions returns the selectable labels in display order.
func PainOptions() []string     { return options(painLabels) }
func DurationOptions() []string { return options(durationLabels) }
func ImpactOptions() []string   { return options(impactLabels) }
func GoalOptions() []string     { return options(goalLabels) }

func ParsePainLevel(v string) (PainLevel, error) {
	i, err := parse(painLabels, v, "pain level")
	return PainLevel(i), err
}

func ParseDuration(v string) (DurationBucket, error) {
	i, err := parse(durationLabels, v, "duration")
	return DurationBucket(i), err
}

func ParseGoal(v string) (Goal, error) {
	i, err := parse(goalLabels, v, "goal")
	return Goal(i), err
}

func ParseImpact(v string) (Impact, error) {
	i, err := parse(impactLabels, v, "functional impact")
	if err == nil && i == 0 {
		return 0, fmt.Errorf("functional impact %q is not selectable", v)
	}
	return Impact(i), err
}

// PatientIntake is one submission of the intake form.
type PatientIntake struct {
	Pain     PainLevel
	Duration DurationBucket
	Impacts  []Impact
	Goal     Goal
}

// FormValues is the raw, label-based shape of a form submission.
type FormValues struct {
	PainLevel        string   `json:"pain_level"`
	Duration         string   `json:"duration"`
	FunctionalImpact []string `json:"functional_impact"`
	Goal             string   `json:"goal"`
}

// FromForm parses labels into a PatientIntake. Unknown labels are errors;
// the unset placeholder is not.
func FromForm(v FormValues) (PatientIntake, error) {
	var in PatientIntake
	var err error
	if in.Pain, err = ParsePainLevel(v.PainLevel); err != nil {
		return PatientIntake{}, err
	}
	if in.Duration, err = ParseDuration(v.Duration); err != nil {
		return PatientIntake{}, err
	}
	if in.Goal, err = ParseGoal(v.Goal); err != nil {
		return PatientIntake{}, err
	}
	for _, raw := range v.FunctionalImpact {
		imp, err := ParseImpact(raw)
		if err != nil {
			return PatientIntake{}, err
		}
		in.Impacts = append(in.Impacts, imp)
	}
	in.Impacts = dedupe(in.Impacts)
	return in, nil
}

// ValidationError lists required fields that are still unset.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "intake incomplete: missing " + strings.Join(e.MissingFields, ", ")
}

// Validate reports the required fields that are unset, in form order.
// It returns nil when the intake may proceed.
func (in PatientIntake) Validate() *ValidationError {
	var missing []string
	if !in.Pain.IsSet() {
		missing = append(missing, FieldPainLevel)
	}
	if !in.Goal.IsSet() {
		missing = append(missing, FieldGoal)
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{MissingFields: missing}
}

func label(labels []string, i int) string {
	if i <= 0 || i >= len(labels) {
		return UnsetLabel
	}
	return labels[i]
}

func options(labels []string) []string {
	out := make([]string, 0, len(labels)-1)
	return append(out, labels[1:]...)
}

func parse(labels []string, v, what string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == UnsetLabel {
		return 0, nil
	}
	for i := 1; i < len(labels); i++ {
		if strings.EqualFold(labels[i], v) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, v)
}

func dedupe(in []Impact) []Impact {
	if len(in) < 2 {
		return in
	}
	seen := make(map[Impact]bool, len(in))
	out := in[:0]
	for _, imp := range in {
		if seen[imp] {
			continue
		}
		seen[imp] = true
		out = append(out, imp)
	}
	return out
}

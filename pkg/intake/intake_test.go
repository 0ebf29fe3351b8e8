package intake

import (
	"reflect"
	"strings"
	"testing"
)

func TestFromFormParsesLabels(t *testing.T) {
	in, err := FromForm(FormValues{
		PainLevel:        "Severe/Acute",
		Duration:         "New (Days)",
		FunctionalImpact: []string{"Sleep", "Work Ability", "Sleep"},
		Goal:             "Referral to Specialist",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Pain != PainSevere || in.Duration != DurationNew || in.Goal != GoalReferral {
		t.Fatalf("unexpected intake %+v", in)
	}
	if want := []Impact{ImpactSleep, ImpactWork}; !reflect.DeepEqual(in.Impacts, want) {
		t.Fatalf("impacts = %v, want %v", in.Impacts, want)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("expected valid intake, got %v", err)
	}
}

func TestFromFormUnsetSentinel(t *testing.T) {
	in, err := FromForm(FormValues{PainLevel: UnsetLabel, Goal: "Imaging/Testing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	verr := in.Validate()
	if verr == nil {
		t.Fatalf("expected validation error")
	}
	if !reflect.DeepEqual(verr.MissingFields, []string{FieldPainLevel}) {
		t.Fatalf("missing = %v", verr.MissingFields)
	}
}

func TestValidateListsBothFields(t *testing.T) {
	verr := PatientIntake{}.Validate()
	if verr == nil {
		t.Fatalf("expected validation error")
	}
	if !reflect.DeepEqual(verr.MissingFields, []string{FieldPainLevel, FieldGoal}) {
		t.Fatalf("missing = %v", verr.MissingFields)
	}
	if !strings.Contains(verr.Error(), "painLevel, goal") {
		t.Fatalf("unexpected message %q", verr.Error())
	}
}

func TestValidateAllowsEmptyImpacts(t *testing.T) {
	in := PatientIntake{Pain: PainMild, Goal: GoalDocumentationOnly}
	if err := in.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestOutOfRangeEnumIsUnset(t *testing.T) {
	in := PatientIntake{Pain: PainLevel(42), Goal: Goal(-1)}
	if verr := in.Validate(); verr == nil || len(verr.MissingFields) != 2 {
		t.Fatalf("expected both fields missing, got %v", verr)
	}
	if in.Pain.String() != UnsetLabel {
		t.Fatalf("expected unset label, got %q", in.Pain.String())
	}
}

func TestFromFormUnknownLabel(t *testing.T) {
	if _, err := FromForm(FormValues{PainLevel: "Excruciating"}); err == nil {
		t.Fatalf("expected error for unknown pain label")
	}
	if _, err := FromForm(FormValues{FunctionalImpact: []string{UnsetLabel}}); err == nil {
		t.Fatalf("expected error for placeholder impact")
	}
}

func TestOptionsOrder(t *testing.T) {
	want := []string{"Mild", "Moderate", "Severe/Acute", "Intolerable"}
	if got := PainOptions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("PainOptions = %v", got)
	}
	if got := GoalOptions(); got[len(got)-1] != "Documentation Only" {
		t.Fatalf("GoalOptions = %v", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	raw := []byte(`{"pain_level":"Moderate","duration":"Chronic (>3 Months)","functional_impact":["Mobility"],"goal":"Medication Adjustment"}`)
	in, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Pain != PainModerate || in.Duration != DurationChronic || in.Goal != GoalMedicationAdjustment {
		t.Fatalf("unexpected intake %+v", in)
	}
	if len(in.Impacts) != 1 || in.Impacts[0] != ImpactMobility {
		t.Fatalf("unexpected impacts %v", in.Impacts)
	}
}

func TestDecodeJSONSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"pain_level":"Mild","ssn":"123"}`,
		"bad enum":       `{"pain_level":"Excruciating"}`,
		"wrong type":     `{"functional_impact":"Sleep"}`,
		"bad impact":     `{"functional_impact":["Dancing"]}`,
		"not an object":  `["Mild"]`,
		"malformed json": `{"pain_level":`,
	}
	for name, raw := range cases {
		if _, err := DecodeJSON([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeJSONAllowsUnsetForLaterValidation(t *testing.T) {
	in, err := DecodeJSON([]byte(`{"pain_level":"Select...","goal":""}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verr := in.Validate(); verr == nil || len(verr.MissingFields) != 2 {
		t.Fatalf("expected both fields missing, got %v", verr)
	}
}

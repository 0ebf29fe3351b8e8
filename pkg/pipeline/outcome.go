package pipeline

import (
	"time"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/errorsx"
)

// Kind discriminates the outcome variants.
type Kind string

const (
	KindSuccess            Kind = "success"
	KindValidationError    Kind = "validation_error"
	KindConfigurationError Kind = "configuration_error"
	KindProviderError      Kind = "provider_error"
)

// Stage names a network-bound step of the pipeline.
type Stage string

const (
	StageNone      Stage = ""
	StageTextGen   Stage = "text_gen"
	StageSpeechGen Stage = "speech_gen"
)

func (s Stage) Label() string {
	switch s {
	case StageTextGen:
		return "Text Generation"
	case StageSpeechGen:
		return "Speech Synthesis"
	default:
		return ""
	}
}

// Outcome is the single result of one pipeline invocation. Only the fields
// belonging to Kind are populated, except that a speech-stage provider error
// also keeps the report text produced before it.
type Outcome struct {
	Kind  Kind
	RunID string

	ReportText string
	Audio      tts.Audio

	MissingFields     []string
	MissingCredential string

	Stage    Stage
	Provider string
	Cause    string
	Reason   errorsx.ReasonCode

	// RetryAfter is the provider's rate limit hint, zero when absent.
	RetryAfter time.Duration

	// Superseded marks a run whose result arrived after a newer trigger.
	Superseded bool
	Duration   time.Duration
}

func (o Outcome) OK() bool { return o.Kind == KindSuccess }

func success(runID, text string, audio tts.Audio) Outcome {
	return Outcome{Kind: KindSuccess, RunID: runID, ReportText: text, Audio: audio}
}

func validationError(runID string, missing []string) Outcome {
	return Outcome{
		Kind:          KindValidationError,
		RunID:         runID,
		MissingFields: append([]string(nil), missing...),
		Reason:        errorsx.ReasonIntakeIncomplete,
	}
}

func configurationError(runID, credential string) Outcome {
	return Outcome{
		Kind:              KindConfigurationError,
		RunID:             runID,
		MissingCredential: credential,
		Reason:            errorsx.ReasonMissingCredential,
	}
}

func providerError(runID string, stage Stage, provider, cause string, reason errorsx.ReasonCode) Outcome {
	return Outcome{
		Kind:     KindProviderError,
		RunID:    runID,
		Stage:    stage,
		Provider: provider,
		Cause:    cause,
		Reason:   reason,
	}
}

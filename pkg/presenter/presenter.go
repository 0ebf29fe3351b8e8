// Package presenter turns a pipeline Outcome into what the caller sees.
package presenter

import (
	"encoding/base64"
	"math"
	"net/http"
	"strings"

	"github.com/harunnryd/advocate/pkg/errorsx"
	"github.com/harunnryd/advocate/pkg/pipeline"
)

type Status string

const (
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusSuperseded Status = "superseded"
)

type Options struct {
	// TextOnlyOnSpeechFailure shows the report text next to a speech-stage
	// error. Text-stage failures always block.
	TextOnlyOnSpeechFailure bool
}

// View is the rendered result of one invocation.
type View struct {
	Status        Status   `json:"status"`
	RunID         string   `json:"run_id,omitempty"`
	Category      string   `json:"category,omitempty"`
	Message       string   `json:"message,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	ReportText    string   `json:"report_text,omitempty"`
	AudioMIME     string   `json:"audio_mime,omitempty"`
	AudioBase64   string   `json:"audio_base64,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`

	// RetryAfterSeconds is set on rate limit failures that carried a hint.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
	HTTPStatus        int `json:"-"`
}

// HasAudio reports whether the view carries playable audio.
func (v View) HasAudio() bool { return v.AudioBase64 != "" }

// AudioDataURI embeds the audio for an <audio> element.
func (v View) AudioDataURI() string {
	if !v.HasAudio() {
		return ""
	}
	return "data:" + v.AudioMIME + ";base64," + v.AudioBase64
}

// Present maps an outcome to a view. It never retries and never caches.
func Present(out pipeline.Outcome, opts Options) View {
	if out.Superseded {
		return View{
			Status:     StatusSuperseded,
			RunID:      out.RunID,
			Category:   "Superseded",
			Message:    "A newer request replaced this one. Its result was discarded.",
			HTTPStatus: http.StatusConflict,
		}
	}
	switch out.Kind {
	case pipeline.KindSuccess:
		return View{
			Status:      StatusSuccess,
			RunID:       out.RunID,
			ReportText:  out.ReportText,
			AudioMIME:   out.Audio.MIMEType,
			AudioBase64: base64.StdEncoding.EncodeToString(out.Audio.Bytes),
			HTTPStatus:  http.StatusOK,
		}
	case pipeline.KindValidationError:
		return View{
			Status:        StatusError,
			RunID:         out.RunID,
			Category:      "Validation Error",
			Message:       "Please fill all fields. Missing: " + strings.Join(out.MissingFields, ", ") + ".",
			Reason:        string(out.Reason),
			MissingFields: append([]string(nil), out.MissingFields...),
			HTTPStatus:    http.StatusUnprocessableEntity,
		}
	case pipeline.KindConfigurationError:
		return View{
			Status:     StatusError,
			RunID:      out.RunID,
			Category:   "Configuration Error",
			Message:    "KEY MISSING: Please add " + out.MissingCredential + " to secrets.",
			Reason:     string(out.Reason),
			HTTPStatus: http.StatusServiceUnavailable,
		}
	default:
		v := View{
			Status:     StatusError,
			RunID:      out.RunID,
			Category:   providerCategory(out.Stage),
			Message:    "SYSTEM FAILURE: " + out.Cause,
			Reason:     string(out.Reason),
			HTTPStatus: providerStatus(out.Reason),
		}
		if out.RetryAfter > 0 {
			v.RetryAfterSeconds = int(math.Ceil(out.RetryAfter.Seconds()))
		}
		if out.Stage == pipeline.StageSpeechGen && opts.TextOnlyOnSpeechFailure {
			v.ReportText = out.ReportText
		}
		return v
	}
}

func providerCategory(stage pipeline.Stage) string {
	if label := stage.Label(); label != "" {
		return label + " Error"
	}
	return "Provider Error"
}

func providerStatus(reason errorsx.ReasonCode) int {
	switch reason.Class() {
	case errorsx.ClassTimeout:
		return http.StatusGatewayTimeout
	case errorsx.ClassThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

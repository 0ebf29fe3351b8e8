package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonIntakeIncomplete  ReasonCode = "intake_incomplete"
	ReasonMissingCredential ReasonCode = "missing_credential"

	ReasonLLMGenerate    ReasonCode = "llm_generate"
	ReasonLLMAuth        ReasonCode = "llm_auth"
	ReasonLLMRateLimit   ReasonCode = "llm_rate_limit"
	ReasonLLMMalformed   ReasonCode = "llm_malformed"
	ReasonLLMTimeout     ReasonCode = "llm_timeout"
	ReasonLLMCircuitOpen ReasonCode = "llm_circuit_open"

	ReasonTTSSynthesize  ReasonCode = "tts_synthesize"
	ReasonTTSConnect     ReasonCode = "tts_connect"
	ReasonTTSAuth        ReasonCode = "tts_auth"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonTTSEmptyAudio  ReasonCode = "tts_empty_audio"
	ReasonTTSTimeout     ReasonCode = "tts_timeout"
	ReasonTTSCircuitOpen ReasonCode = "tts_circuit_open"
)

// Class groups reason codes by how a caller should react to them.
type Class int

const (
	ClassUpstream Class = iota
	ClassInput
	ClassConfig
	ClassAuth
	ClassThrottled
	ClassTimeout
	ClassMalformed
)

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassConfig:
		return "config"
	case ClassAuth:
		return "auth"
	case ClassThrottled:
		return "throttled"
	case ClassTimeout:
		return "timeout"
	case ClassMalformed:
		return "malformed"
	default:
		return "upstream"
	}
}

// Class reports the group r belongs to. Unknown codes are upstream.
func (r ReasonCode) Class() Class {
	switch r {
	case ReasonIntakeIncomplete:
		return ClassInput
	case ReasonMissingCredential:
		return ClassConfig
	case ReasonLLMAuth, ReasonTTSAuth:
		return ClassAuth
	case ReasonLLMRateLimit, ReasonLLMCircuitOpen, ReasonTTSRateLimit, ReasonTTSCircuitOpen:
		return ClassThrottled
	case ReasonLLMTimeout, ReasonTTSTimeout:
		return ClassTimeout
	case ReasonLLMMalformed, ReasonTTSEmptyAudio:
		return ClassMalformed
	default:
		return ClassUpstream
	}
}

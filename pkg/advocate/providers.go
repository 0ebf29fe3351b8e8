package advocate

import (
	"time"

	"github.com/harunnryd/advocate/pkg/adapters/tts"
	"github.com/harunnryd/advocate/pkg/configutil"
	"github.com/harunnryd/advocate/pkg/llm"
	"github.com/harunnryd/advocate/pkg/pipeline"
	"github.com/harunnryd/advocate/pkg/providers/anthropic"
	"github.com/harunnryd/advocate/pkg/providers/elevenlabs"
	"github.com/harunnryd/advocate/pkg/providers/gtts"
	"github.com/harunnryd/advocate/pkg/providers/mock"
	"github.com/harunnryd/advocate/pkg/providers/openai"
	"github.com/harunnryd/advocate/pkg/providers/polly"
)

// Default secret names read by the bundled providers.
const (
	SecretGroq       = "GROQ_API_KEY"
	SecretOpenAI     = "OPENAI_API_KEY"
	SecretAnthropic  = "ANTHROPIC_API_KEY"
	SecretElevenLabs = "ELEVENLABS_API_KEY"

	groqTemperature = 0.5
)

const (
	llmSettingsPath = "vendors.llm.settings"
	ttsSettingsPath = "vendors.tts.settings"
)

var voiceKeys = []string{"voice", "model", "language", "slow"}

type openAISettings struct {
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

type anthropicSettings struct {
	Model       string        `mapstructure:"model"`
	Endpoint    string        `mapstructure:"endpoint"`
	Version     string        `mapstructure:"version"`
	Temperature *float64      `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type gttsSettings struct {
	tts.Config `mapstructure:",squash"`
	Endpoint   string        `mapstructure:"endpoint"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type elevenlabsSettings struct {
	tts.Config   `mapstructure:",squash"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	BaseURL      string `mapstructure:"base_url"`
}

type pollySettings struct {
	tts.Config `mapstructure:",squash"`
	Region     string `mapstructure:"region"`
	VoiceID    string `mapstructure:"voice_id"`
	Engine     string `mapstructure:"engine"`
	Profile    string `mapstructure:"profile"`
}

type openAISpeechSettings struct {
	tts.Config `mapstructure:",squash"`
	BaseURL    string `mapstructure:"base_url"`
}

// RegisterDefaults installs every bundled provider.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterLLM("groq", func(vendor VendorConfig) (pipeline.TextStage, error) {
		settings, err := decodeOpenAISettings(vendor)
		if err != nil {
			return pipeline.TextStage{}, err
		}
		if settings.Temperature == nil {
			settings.Temperature = llm.Float(groqTemperature)
		}
		return pipeline.TextStage{
			Credential:  SecretGroq,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Build: func(secret string) (llm.LLMAdapter, error) {
				a := openai.NewGroqAdapter(secret, settings.Model)
				if settings.BaseURL != "" {
					a.BaseURL = settings.BaseURL
				}
				return a, nil
			},
		}, nil
	})

	reg.RegisterLLM("openai", func(vendor VendorConfig) (pipeline.TextStage, error) {
		settings, err := decodeOpenAISettings(vendor)
		if err != nil {
			return pipeline.TextStage{}, err
		}
		return pipeline.TextStage{
			Credential:  SecretOpenAI,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Build: func(secret string) (llm.LLMAdapter, error) {
				a := openai.NewAdapter(secret, settings.Model)
				if settings.BaseURL != "" {
					a.BaseURL = settings.BaseURL
				}
				return a, nil
			},
		}, nil
	})

	reg.RegisterLLM("anthropic", func(vendor VendorConfig) (pipeline.TextStage, error) {
		var settings anthropicSettings
		if err := configutil.Load(llmSettingsPath, vendor.Settings, configutil.Schema{
			Optional: []string{"model", "endpoint", "version", "temperature", "max_tokens", "timeout"},
		}, &settings); err != nil {
			return pipeline.TextStage{}, err
		}
		return pipeline.TextStage{
			Credential:  SecretAnthropic,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Build: func(secret string) (llm.LLMAdapter, error) {
				return anthropic.NewAdapter(anthropic.Config{
					APIKey:    secret,
					Endpoint:  settings.Endpoint,
					Model:     settings.Model,
					Version:   settings.Version,
					MaxTokens: settings.MaxTokens,
					Timeout:   settings.Timeout,
				}), nil
			},
		}, nil
	})

	reg.RegisterLLM("mock", func(vendor VendorConfig) (pipeline.TextStage, error) {
		var settings mock.LLMConfig
		if err := configutil.Load(llmSettingsPath, vendor.Settings, configutil.Schema{
			Optional: []string{"response_text"},
		}, &settings); err != nil {
			return pipeline.TextStage{}, err
		}
		return pipeline.TextStage{
			Build: func(string) (llm.LLMAdapter, error) {
				return mock.NewLLMAdapter(settings), nil
			},
		}, nil
	})

	reg.RegisterTTS("gtts", func(vendor VendorConfig) (pipeline.SpeechStage, error) {
		var settings gttsSettings
		if err := configutil.Load(ttsSettingsPath, vendor.Settings, configutil.Schema{
			Optional: append([]string{"endpoint", "user_agent", "timeout"}, voiceKeys...),
		}, &settings); err != nil {
			return pipeline.SpeechStage{}, err
		}
		return pipeline.SpeechStage{
			Voice: settings.Config,
			Build: func(string) (tts.Synthesizer, error) {
				return gtts.New(gtts.Config{
					Endpoint:  settings.Endpoint,
					UserAgent: settings.UserAgent,
					Timeout:   settings.Timeout,
				}), nil
			},
		}, nil
	})

	reg.RegisterTTS("elevenlabs", func(vendor VendorConfig) (pipeline.SpeechStage, error) {
		var settings elevenlabsSettings
		if err := configutil.Load(ttsSettingsPath, vendor.Settings, configutil.Schema{
			Optional: append([]string{"voice_id", "model_id", "output_format", "base_url"}, voiceKeys...),
		}, &settings); err != nil {
			return pipeline.SpeechStage{}, err
		}
		return pipeline.SpeechStage{
			Credential: SecretElevenLabs,
			Voice:      settings.Config,
			Build: func(secret string) (tts.Synthesizer, error) {
				return elevenlabs.New(elevenlabs.Config{
					APIKey:       secret,
					VoiceID:      settings.VoiceID,
					ModelID:      settings.ModelID,
					OutputFormat: settings.OutputFormat,
					BaseURL:      settings.BaseURL,
				}), nil
			},
		}, nil
	})

	reg.RegisterTTS("polly", func(vendor VendorConfig) (pipeline.SpeechStage, error) {
		var settings pollySettings
		if err := configutil.Load(ttsSettingsPath, vendor.Settings, configutil.Schema{
			Optional: append([]string{"region", "voice_id", "engine", "profile"}, voiceKeys...),
		}, &settings); err != nil {
			return pipeline.SpeechStage{}, err
		}
		// The synthesizer is shared so the AWS client is resolved once.
		synth := polly.New(polly.Config{
			Region:  settings.Region,
			VoiceID: settings.VoiceID,
			Engine:  settings.Engine,
			Profile: settings.Profile,
		})
		return pipeline.SpeechStage{
			Voice: settings.Config,
			Build: func(string) (tts.Synthesizer, error) { return synth, nil },
		}, nil
	})

	reg.RegisterTTS("openai", func(vendor VendorConfig) (pipeline.SpeechStage, error) {
		var settings openAISpeechSettings
		if err := configutil.Load(ttsSettingsPath, vendor.Settings, configutil.Schema{
			Optional: append([]string{"base_url"}, voiceKeys...),
		}, &settings); err != nil {
			return pipeline.SpeechStage{}, err
		}
		return pipeline.SpeechStage{
			Credential: SecretOpenAI,
			Voice:      settings.Config,
			Build: func(secret string) (tts.Synthesizer, error) {
				s := openai.NewSpeech(secret, settings.Config)
				if settings.BaseURL != "" {
					s.BaseURL = settings.BaseURL
				}
				return s, nil
			},
		}, nil
	})

	reg.RegisterTTS("mock", func(vendor VendorConfig) (pipeline.SpeechStage, error) {
		var settings tts.Config
		if err := configutil.Load(ttsSettingsPath, vendor.Settings, configutil.Schema{
			Optional: voiceKeys,
		}, &settings); err != nil {
			return pipeline.SpeechStage{}, err
		}
		return pipeline.SpeechStage{
			Voice: settings,
			Build: func(string) (tts.Synthesizer, error) {
				return mock.NewTTS(mock.TTSConfig{}), nil
			},
		}, nil
	})
}

func decodeOpenAISettings(vendor VendorConfig) (openAISettings, error) {
	var settings openAISettings
	err := configutil.Load(llmSettingsPath, vendor.Settings, configutil.Schema{
		Optional: []string{"model", "base_url", "temperature", "max_tokens"},
	}, &settings)
	return settings, err
}

package advocate

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ADVOCATE"

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Prompt        PromptConfig        `mapstructure:"prompt"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Secrets       map[string]string   `mapstructure:"secrets"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Title          string        `mapstructure:"title"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SecureCookie   bool          `mapstructure:"secure_cookie"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
}

type PipelineConfig struct {
	TextTimeout             time.Duration `mapstructure:"text_timeout"`
	SpeechTimeout           time.Duration `mapstructure:"speech_timeout"`
	TextOnlyOnSpeechFailure bool          `mapstructure:"text_only_on_speech_failure"`
}

type PromptConfig struct {
	SystemInstruction string `mapstructure:"system_instruction"`
	Persona           string `mapstructure:"persona"`
	Style             string `mapstructure:"style"`
}

// VendorConfig selects a provider. Credential overrides the secret name the
// provider reads by default.
type VendorConfig struct {
	Provider   string         `mapstructure:"provider"`
	Credential string         `mapstructure:"credential"`
	Settings   map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
	TTS VendorConfig `mapstructure:"tts"`
}

type ResilienceConfig struct {
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type ObservabilityConfig struct {
	// MetricsPath, when set, receives one JSON line per metrics event.
	MetricsPath   string `mapstructure:"metrics_path"`
	MetricsBuffer int    `mapstructure:"metrics_buffer"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)
	cfg.Secrets = normalizeSecrets(cfg.Secrets)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.title", "Medical Advocate")
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("server.session_idle_ttl", 30*time.Minute)
	v.SetDefault("server.sweep_interval", time.Minute)
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.drain_timeout", 60*time.Second)
	v.SetDefault("pipeline.text_timeout", 45*time.Second)
	v.SetDefault("pipeline.speech_timeout", 45*time.Second)
	v.SetDefault("pipeline.text_only_on_speech_failure", false)
	v.SetDefault("prompt.system_instruction", "")
	v.SetDefault("prompt.persona", "")
	v.SetDefault("prompt.style", "")
	v.SetDefault("vendors.llm.provider", "groq")
	v.SetDefault("vendors.tts.provider", "gtts")
	v.SetDefault("resilience.breaker_threshold", 3)
	v.SetDefault("resilience.breaker_cooldown", 30*time.Second)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("observability.metrics_path", "")
	v.SetDefault("observability.metrics_buffer", 1024)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if c.Pipeline.TextTimeout < 0 {
		return fmt.Errorf("pipeline.text_timeout must not be negative")
	}
	if c.Pipeline.SpeechTimeout < 0 {
		return fmt.Errorf("pipeline.speech_timeout must not be negative")
	}
	if c.Resilience.BreakerThreshold < 0 {
		return fmt.Errorf("resilience.breaker_threshold must not be negative")
	}
	return nil
}

// normalizeSecrets upper-cases secret names. Viper lower-cases every key,
// while credential names follow environment variable convention.
func normalizeSecrets(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded).Convert(v.Type().Elem()))
			}
		}
	}
}

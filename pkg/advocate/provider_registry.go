package advocate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/advocate/pkg/pipeline"
)

// LLMFactoryBuilder turns a vendor section into a text stage. It validates
// settings up front; the returned stage builds one client per invocation.
type LLMFactoryBuilder func(vendor VendorConfig) (pipeline.TextStage, error)

// TTSFactoryBuilder turns a vendor section into a speech stage.
type TTSFactoryBuilder func(vendor VendorConfig) (pipeline.SpeechStage, error)

type ProviderRegistry struct {
	llm map[string]LLMFactoryBuilder
	tts map[string]TTSFactoryBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		llm: make(map[string]LLMFactoryBuilder),
		tts: make(map[string]TTSFactoryBuilder),
	}
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactoryBuilder) {
	r.llm[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactoryBuilder) {
	r.tts[providerKey(name)] = factory
}

// BuildTextStage resolves vendor.Provider. A non-empty vendor.Credential
// replaces the provider's default secret name.
func (r *ProviderRegistry) BuildTextStage(vendor VendorConfig) (pipeline.TextStage, error) {
	fn := r.llm[providerKey(vendor.Provider)]
	if fn == nil {
		return pipeline.TextStage{}, fmt.Errorf("llm provider not registered: %s", vendor.Provider)
	}
	stage, err := fn(vendor)
	if err != nil {
		return pipeline.TextStage{}, fmt.Errorf("llm provider %s: %w", vendor.Provider, err)
	}
	if c := strings.TrimSpace(vendor.Credential); c != "" {
		stage.Credential = c
	}
	return stage, nil
}

func (r *ProviderRegistry) BuildSpeechStage(vendor VendorConfig) (pipeline.SpeechStage, error) {
	fn := r.tts[providerKey(vendor.Provider)]
	if fn == nil {
		return pipeline.SpeechStage{}, fmt.Errorf("tts provider not registered: %s", vendor.Provider)
	}
	stage, err := fn(vendor)
	if err != nil {
		return pipeline.SpeechStage{}, fmt.Errorf("tts provider %s: %w", vendor.Provider, err)
	}
	if c := strings.TrimSpace(vendor.Credential); c != "" {
		stage.Credential = c
	}
	return stage, nil
}

// LLMProviders lists registered text providers in sorted order.
func (r *ProviderRegistry) LLMProviders() []string { return sortedKeys(r.llm) }

// TTSProviders lists registered speech providers in sorted order.
func (r *ProviderRegistry) TTSProviders() []string { return sortedKeys(r.tts) }

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package llm

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies which API a model is served by.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
)

// Spec describes one model and its invocation options. Model specs are
// provider-prefixed, e.g. "openrouter/google/gemini-3-pro-preview",
// "openai/gpt-4o-mini" or "anthropic/claude-sonnet-4-20250514".
type Spec struct {
	Provider     Provider
	Model        string
	Temperature  float64
	Timeout      time.Duration
	AllowedTries int
}

// ParseSpec splits a provider-prefixed model name into a Spec. Names without
// a recognized provider prefix are routed through OpenRouter unchanged.
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("empty model spec")
	}

	spec := Spec{AllowedTries: 1}
	prefix, rest, found := strings.Cut(raw, "/")
	if !found {
		spec.Provider = ProviderOpenRouter
		spec.Model = raw
		return spec, nil
	}

	switch Provider(prefix) {
	case ProviderOpenRouter:
		spec.Provider = ProviderOpenRouter
		spec.Model = rest
	case ProviderOpenAI:
		spec.Provider = ProviderOpenAI
		spec.Model = rest
	case ProviderAnthropic:
		spec.Provider = ProviderAnthropic
		spec.Model = rest
	default:
		// Unprefixed names like "google/gemini-3-pro-preview" go through
		// OpenRouter as-is.
		spec.Provider = ProviderOpenRouter
		spec.Model = raw
	}

	if spec.Model == "" {
		return Spec{}, fmt.Errorf("model spec %q has no model name", raw)
	}
	return spec, nil
}

// isReasoningModel reports whether the named model rejects system messages
// and temperature and expects max_completion_tokens instead of max_tokens.
func isReasoningModel(model string) bool {
	name := strings.ToLower(model)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

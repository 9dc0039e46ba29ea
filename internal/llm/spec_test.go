package llm

import "testing"

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantProvider Provider
		wantModel    string
		wantErr      bool
	}{
		{
			name:         "openrouter prefixed",
			raw:          "openrouter/google/gemini-3-pro-preview",
			wantProvider: ProviderOpenRouter,
			wantModel:    "google/gemini-3-pro-preview",
		},
		{
			name:         "openai prefixed",
			raw:          "openai/gpt-4o-mini",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4o-mini",
		},
		{
			name:         "anthropic prefixed",
			raw:          "anthropic/claude-sonnet-4-20250514",
			wantProvider: ProviderAnthropic,
			wantModel:    "claude-sonnet-4-20250514",
		},
		{
			name:         "unprefixed routes through openrouter",
			raw:          "perplexity/sonar",
			wantProvider: ProviderOpenRouter,
			wantModel:    "perplexity/sonar",
		},
		{
			name:         "bare name routes through openrouter",
			raw:          "gpt-4o",
			wantProvider: ProviderOpenRouter,
			wantModel:    "gpt-4o",
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "prefix without model", raw: "openai/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSpec(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec(%q) returned error: %v", tt.raw, err)
			}
			if spec.Provider != tt.wantProvider {
				t.Errorf("provider = %q, want %q", spec.Provider, tt.wantProvider)
			}
			if spec.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", spec.Model, tt.wantModel)
			}
			if spec.AllowedTries != 1 {
				t.Errorf("allowed tries = %d, want 1", spec.AllowedTries)
			}
		})
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"gpt-5", true},
		{"openai/o3", true},
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"google/gemini-3-pro-preview", false},
		{"claude-sonnet-4-20250514", false},
	}

	for _, tt := range tests {
		if got := isReasoningModel(tt.model); got != tt.want {
			t.Errorf("isReasoningModel(%q) = %t, want %t", tt.model, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	transient := []string{
		"status code 429: Too Many Requests",
		"Rate limit exceeded",
		"upstream returned 503",
		"context deadline exceeded",
		"anthropic: overloaded_error",
	}
	for _, msg := range transient {
		if !isTransient(errString(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}

	permanent := []string{
		"status code 401: invalid api key",
		"status code 400: bad request",
	}
	for _, msg := range permanent {
		if isTransient(errString(msg)) {
			t.Errorf("expected %q to be permanent", msg)
		}
	}

	if isTransient(nil) {
		t.Error("nil error must not be transient")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

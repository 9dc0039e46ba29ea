package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ruslanv/metacbot/internal/config"
	"github.com/ruslanv/metacbot/internal/inference"
)

const (
	// maxCompletionTokens bounds rationale length for reasoning models, which
	// reject the plain max_tokens parameter.
	maxCompletionTokens = 16000

	anthropicMaxTokens = 8192
)

// Invoker sends a prompt to a model and returns its text response.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Model is one configured model behind a registry role.
type Model struct {
	role     string
	spec     Spec
	oa       *openai.Client
	an       anthropic.Client
	recorder *inference.Recorder
	logger   *slog.Logger
}

// Factory builds models from provider credentials.
type Factory struct {
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenAIAPIKey      string
	AnthropicAPIKey   string

	Recorder *inference.Recorder
	Logger   *slog.Logger
}

// New builds a model for the given role and spec.
func (f *Factory) New(role string, spec Spec) (*Model, error) {
	if spec.AllowedTries < 1 {
		spec.AllowedTries = 1
	}

	m := &Model{
		role:     role,
		spec:     spec,
		recorder: f.Recorder,
		logger:   f.Logger,
	}

	switch spec.Provider {
	case ProviderOpenRouter:
		if f.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("model %s/%s requires OPENROUTER_API_KEY", spec.Provider, spec.Model)
		}
		cfg := openai.DefaultConfig(f.OpenRouterAPIKey)
		cfg.BaseURL = f.OpenRouterBaseURL
		m.oa = openai.NewClientWithConfig(cfg)
	case ProviderOpenAI:
		if f.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("model %s/%s requires OPENAI_API_KEY", spec.Provider, spec.Model)
		}
		m.oa = openai.NewClient(f.OpenAIAPIKey)
	case ProviderAnthropic:
		if f.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s/%s requires ANTHROPIC_API_KEY", spec.Provider, spec.Model)
		}
		m.an = anthropic.NewClient(option.WithAPIKey(f.AnthropicAPIKey))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", spec.Provider)
	}

	return m, nil
}

// FromRoleSpec parses a configured role spec into a model.
func (f *Factory) FromRoleSpec(role string, rs config.RoleSpec) (*Model, error) {
	spec, err := ParseSpec(rs.Model)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", role, err)
	}
	spec.Temperature = rs.Temperature
	spec.Timeout = time.Duration(rs.TimeoutSeconds) * time.Second
	if rs.AllowedTries > 0 {
		spec.AllowedTries = rs.AllowedTries
	}
	return f.New(role, spec)
}

// Name returns the provider-prefixed model name.
func (m *Model) Name() string {
	return fmt.Sprintf("%s/%s", m.spec.Provider, m.spec.Model)
}

// Invoke sends the prompt and returns the response text, retrying transient
// provider errors up to the spec's allowed tries with exponential backoff.
func (m *Model) Invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= m.spec.AllowedTries; attempt++ {
		content, err := m.call(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == m.spec.AllowedTries {
			break
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		delay += time.Duration(rand.Intn(500)) * time.Millisecond

		m.logger.Warn("model call failed, retrying",
			"model", m.Name(),
			"role", m.role,
			"attempt", attempt,
			"max_tries", m.spec.AllowedTries,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("model %s failed after %d tries: %w", m.Name(), m.spec.AllowedTries, lastErr)
}

func (m *Model) call(ctx context.Context, prompt string) (string, error) {
	if m.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.spec.Timeout)
		defer cancel()
	}

	if m.spec.Provider == ProviderAnthropic {
		return m.callAnthropic(ctx, prompt)
	}
	return m.callOpenAI(ctx, prompt)
}

func (m *Model) callOpenAI(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: m.spec.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	// Reasoning models reject temperature and the plain max_tokens parameter.
	if isReasoningModel(m.spec.Model) {
		req.MaxCompletionTokens = maxCompletionTokens
	} else if m.spec.Temperature != 0 {
		req.Temperature = float32(m.spec.Temperature)
	}

	start := time.Now()
	resp, err := m.oa.CreateChatCompletion(ctx, req)
	latency := time.Since(start)

	inputTokens, outputTokens := 0, 0
	if err == nil {
		inputTokens = resp.Usage.PromptTokens
		outputTokens = resp.Usage.CompletionTokens
	}
	m.recorder.Record(ctx, string(m.spec.Provider), m.spec.Model, m.role, inputTokens, outputTokens, latency, err)

	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from %s", m.Name())
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from %s", m.Name())
	}
	return content, nil
}

func (m *Model) callAnthropic(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.spec.Model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if m.spec.Temperature != 0 {
		req.Temperature = anthropic.Float(m.spec.Temperature)
	}

	start := time.Now()
	resp, err := m.an.Messages.New(ctx, req)
	latency := time.Since(start)

	inputTokens, outputTokens := 0, 0
	if err == nil {
		inputTokens = int(resp.Usage.InputTokens)
		outputTokens = int(resp.Usage.OutputTokens)
	}
	m.recorder.Record(ctx, string(m.spec.Provider), m.spec.Model, m.role, inputTokens, outputTokens, latency, err)

	if err != nil {
		return "", err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return "", fmt.Errorf("no text content from %s", m.Name())
	}
	return content, nil
}

// isTransient reports whether a provider error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"502", "503", "504", "overloaded",
		"timeout", "deadline exceeded", "connection reset",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

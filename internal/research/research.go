// Package research gathers background research for a question before
// forecasting. The research provider is selected once at construction from a
// configured identifier rather than string-matched per call.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruslanv/metacbot/internal/llm"
)

// Strategy produces research text for a research prompt. Implementations own
// their provider-specific plumbing.
type Strategy interface {
	Research(ctx context.Context, prompt string) (string, error)
	Name() string
}

// askNewsPresets are the preconfigured AskNews research endpoints.
var askNewsPresets = map[string]string{
	"asknews/news-summaries":             "news-summaries",
	"asknews/deep-research/low-depth":    "low",
	"asknews/deep-research/medium-depth": "medium",
	"asknews/deep-research/high-depth":   "high",
}

// Resolve turns a research identifier into a strategy:
//
//   - "" / "None" / "no_research" disables research
//   - "asknews/..." presets use the AskNews service
//   - "smart-searcher/<model>" searches the web and synthesizes with <model>
//   - anything else falls through to a generic model invocation by that name
func Resolve(identifier string, factory *llm.Factory, asknews *AskNewsClient, logger *slog.Logger) (Strategy, error) {
	identifier = strings.TrimSpace(identifier)

	if identifier == "" || identifier == "None" || identifier == "no_research" {
		return noResearch{}, nil
	}

	if preset, ok := askNewsPresets[identifier]; ok {
		if asknews == nil {
			return nil, fmt.Errorf("researcher %q requires ASKNEWS_CLIENT_ID and ASKNEWS_SECRET", identifier)
		}
		return &askNewsStrategy{client: asknews, preset: preset, identifier: identifier}, nil
	}

	if rest, ok := strings.CutPrefix(identifier, "smart-searcher/"); ok {
		if asknews == nil {
			return nil, fmt.Errorf("researcher %q requires ASKNEWS_CLIENT_ID and ASKNEWS_SECRET for search", identifier)
		}
		spec, err := llm.ParseSpec(rest)
		if err != nil {
			return nil, fmt.Errorf("researcher %q: %w", identifier, err)
		}
		// Smart searching wants deterministic synthesis.
		spec.Temperature = 0
		spec.AllowedTries = 2
		model, err := factory.New("researcher", spec)
		if err != nil {
			return nil, err
		}
		return NewSmartSearcher(model, asknews, logger), nil
	}

	// Unrecognized identifiers are treated as a model name.
	spec, err := llm.ParseSpec(identifier)
	if err != nil {
		return nil, fmt.Errorf("researcher %q: %w", identifier, err)
	}
	spec.AllowedTries = 2
	model, err := factory.New("researcher", spec)
	if err != nil {
		return nil, err
	}
	logger.Info("using generic model for research", "model", model.Name())
	return &modelStrategy{model: model}, nil
}

type noResearch struct{}

func (noResearch) Research(context.Context, string) (string, error) { return "", nil }
func (noResearch) Name() string                                     { return "no_research" }

type modelStrategy struct {
	model llm.Invoker
}

func (s *modelStrategy) Research(ctx context.Context, prompt string) (string, error) {
	return s.model.Invoke(ctx, prompt)
}

func (s *modelStrategy) Name() string { return s.model.Name() }

type askNewsStrategy struct {
	client     *AskNewsClient
	preset     string
	identifier string
}

func (s *askNewsStrategy) Research(ctx context.Context, prompt string) (string, error) {
	if s.preset == "news-summaries" {
		return s.client.NewsSummaries(ctx, prompt)
	}
	return s.client.DeepResearch(ctx, prompt, s.preset)
}

func (s *askNewsStrategy) Name() string { return s.identifier }

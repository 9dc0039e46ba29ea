// Package structured converts free-text rationales into schema-constrained
// prediction objects via a secondary model call.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Invoker sends a prompt to the parsing model.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Target is a type the extractor can produce: a JSON-taggable struct or slice
// that can validate itself.
type Target interface {
	Validate() error
}

// Extractor drives the parsing model. Each extraction runs a configured
// number of validation samples and returns the first result that unmarshals
// and validates; it errors only when every sample fails.
type Extractor struct {
	model   Invoker
	logger  *slog.Logger
	samples int
}

// DefaultValidationSamples matches the bot's configured sample count.
const DefaultValidationSamples = 2

// NewExtractor creates an extractor over the parsing model.
func NewExtractor(model Invoker, samples int, logger *slog.Logger) *Extractor {
	if samples < 1 {
		samples = 1
	}
	return &Extractor{model: model, logger: logger, samples: samples}
}

// Options refine one extraction.
type Options struct {
	// Schema is a JSON sketch of the expected output shape, shown verbatim to
	// the parsing model.
	Schema string
	// Instructions carry type-specific parsing guidance.
	Instructions string
}

// Extract asks the parsing model to pull a T out of the rationale text.
func Extract[T Target](ctx context.Context, e *Extractor, text string, opts Options) (T, error) {
	var zero T
	prompt := buildPrompt(text, opts)

	var lastErr error
	for sample := 1; sample <= e.samples; sample++ {
		raw, err := e.model.Invoke(ctx, prompt)
		if err != nil {
			lastErr = fmt.Errorf("parsing model: %w", err)
			continue
		}

		payload, err := extractJSON(raw)
		if err != nil {
			lastErr = err
			e.logger.Warn("structured output extraction failed",
				"model", e.model.Name(), "sample", sample, "error", err)
			continue
		}

		var out T
		if err := json.Unmarshal([]byte(payload), &out); err != nil {
			lastErr = fmt.Errorf("unmarshaling structured output: %w", err)
			e.logger.Warn("structured output unmarshal failed",
				"model", e.model.Name(), "sample", sample, "error", err)
			continue
		}

		if err := out.Validate(); err != nil {
			lastErr = fmt.Errorf("validating structured output: %w", err)
			e.logger.Warn("structured output validation failed",
				"model", e.model.Name(), "sample", sample, "error", err)
			continue
		}

		return out, nil
	}

	return zero, fmt.Errorf("structured output failed after %d samples: %w", e.samples, lastErr)
}

func buildPrompt(text string, opts Options) string {
	var sb strings.Builder

	sb.WriteString("Extract the final forecast from the text below into JSON.\n")
	sb.WriteString("Respond with ONLY a JSON document matching this shape, no prose before or after:\n")
	sb.WriteString(opts.Schema)
	sb.WriteString("\n")
	if opts.Instructions != "" {
		sb.WriteString("\nAdditional instructions:\n")
		sb.WriteString(opts.Instructions)
		sb.WriteString("\n")
	}
	sb.WriteString("\nText to parse:\n")
	sb.WriteString(text)
	return sb.String()
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON pulls the JSON document out of a model response, whether fenced
// in a markdown code block or emitted raw.
func extractJSON(raw string) (string, error) {
	if match := fenceRe.FindStringSubmatch(raw); match != nil {
		candidate := strings.TrimSpace(match[1])
		if candidate != "" {
			return candidate, nil
		}
	}

	// Whichever opener appears first decides whether the document is an
	// object or an array.
	trimmed := strings.TrimSpace(raw)
	objStart := strings.IndexByte(trimmed, '{')
	arrStart := strings.IndexByte(trimmed, '[')

	clos := byte('}')
	start := objStart
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		clos = ']'
		start = arrStart
	}

	end := strings.LastIndexByte(trimmed, clos)
	if start >= 0 && end > start {
		return trimmed[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON document found in response")
}

package inference

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ruslanv/metacbot/internal/metrics"
	"github.com/ruslanv/metacbot/internal/models"
)

// CallStore persists inference call records. Implemented by the optional
// Postgres archive.
type CallStore interface {
	SaveInferenceCall(ctx context.Context, call models.InferenceCall) error
}

// Recorder records every model invocation to the structured log, Prometheus
// metrics, and (when configured) the archive database.
type Recorder struct {
	store     CallStore
	collector *metrics.Collector
	logger    *slog.Logger

	mu        sync.Mutex
	totalCost float64
}

// NewRecorder creates a recorder. Both store and collector may be nil.
func NewRecorder(store CallStore, collector *metrics.Collector, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		collector: collector,
		logger:    logger,
	}
}

// Record logs one model invocation.
func (r *Recorder) Record(ctx context.Context, provider, model, operation string, inputTokens, outputTokens int, latency time.Duration, callErr error) {
	if r == nil {
		return
	}

	status := "success"
	errMsg := ""
	if callErr != nil {
		status = "error"
		errMsg = callErr.Error()
	}

	call := models.InferenceCall{
		Provider:     provider,
		Model:        model,
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TokensUsed:   inputTokens + outputTokens,
		CostUSD:      estimateCost(provider, model, inputTokens, outputTokens),
		LatencyMs:    int(latency.Milliseconds()),
		Status:       status,
		ErrorMessage: errMsg,
	}

	r.logger.Debug("model call",
		"provider", provider,
		"model", model,
		"operation", operation,
		"tokens", call.TokensUsed,
		"cost_usd", call.CostUSD,
		"latency_ms", call.LatencyMs,
		"status", status)

	r.mu.Lock()
	r.totalCost += call.CostUSD
	r.mu.Unlock()

	r.collector.ObserveModelCall(provider, model, operation, status, latency)
	r.collector.AddTokens(provider, model, inputTokens, outputTokens)

	if r.store != nil {
		// Persist asynchronously to avoid blocking the forecast path.
		go func() {
			bgCtx := context.Background()
			if err := r.store.SaveInferenceCall(bgCtx, call); err != nil {
				r.logger.Error("failed to store inference call", "error", err)
			}
		}()
	}
}

// TotalCostUSD returns the estimated cost of every call recorded so far.
func (r *Recorder) TotalCostUSD() float64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalCost
}

// estimateCost provides rough cost estimates per call (update with actual
// pricing).
func estimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	// Rough estimates per 1M tokens.
	var inputCostPer1M, outputCostPer1M float64

	name := strings.ToLower(model)
	switch {
	case strings.Contains(name, "gemini-3-pro"):
		inputCostPer1M = 2.00
		outputCostPer1M = 12.00
	case strings.Contains(name, "gemini-3-flash"):
		inputCostPer1M = 0.30
		outputCostPer1M = 2.50
	case strings.Contains(name, "gpt-4o-mini"):
		inputCostPer1M = 0.15
		outputCostPer1M = 0.60
	case strings.Contains(name, "gpt-4o"):
		inputCostPer1M = 2.50
		outputCostPer1M = 10.00
	case strings.Contains(name, "sonar"):
		inputCostPer1M = 1.00
		outputCostPer1M = 1.00
	case provider == "anthropic" || strings.Contains(name, "claude"):
		inputCostPer1M = 3.00
		outputCostPer1M = 15.00
	default:
		inputCostPer1M = 1.00
		outputCostPer1M = 5.00
	}

	inputCost := (float64(inputTokens) / 1_000_000) * inputCostPer1M
	outputCost := (float64(outputTokens) / 1_000_000) * outputCostPer1M

	return inputCost + outputCost
}

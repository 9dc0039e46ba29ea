package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for model calls and forecasted
// questions. A nil *Collector is valid and records nothing.
type Collector struct {
	registry     *prometheus.Registry
	callTotal    *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
	questions    *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	callTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metacbot",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of model invocations.",
	}, []string{"provider", "model", "operation", "status"})

	callDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "metacbot",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution for model invocations.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"provider", "operation"})

	tokensTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metacbot",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Total tokens exchanged with model providers.",
	}, []string{"provider", "model", "direction"})

	questions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metacbot",
		Subsystem: "bot",
		Name:      "questions_forecasted_total",
		Help:      "Total number of questions forecasted.",
	}, []string{"type", "status"})

	for _, c := range []prometheus.Collector{callTotal, callDuration, tokensTotal, questions} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:     registry,
		callTotal:    callTotal,
		callDuration: callDuration,
		tokensTotal:  tokensTotal,
		questions:    questions,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveModelCall records one model invocation.
func (c *Collector) ObserveModelCall(provider, model, operation, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.callTotal.WithLabelValues(provider, model, operation, status).Inc()
	c.callDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// AddTokens records tokens exchanged with a provider.
func (c *Collector) AddTokens(provider, model string, inputTokens, outputTokens int) {
	if c == nil {
		return
	}
	c.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	c.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

// ObserveQuestion records the outcome of forecasting one question.
func (c *Collector) ObserveQuestion(questionType, status string) {
	if c == nil {
		return
	}
	c.questions.WithLabelValues(questionType, status).Inc()
}

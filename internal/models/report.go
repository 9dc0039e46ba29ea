package models

import "time"

// ForecastReport is the final artifact of forecasting one question: the
// aggregated prediction, every pass's rationale, and the explanation text
// published alongside the forecast.
type ForecastReport struct {
	ID           string               `json:"id"`
	Question     *Question            `json:"question"`
	Prediction   PredictionValue      `json:"-"`
	Research     string               `json:"research"`
	Passes       []ReasonedPrediction `json:"-"`
	Explanation  string               `json:"explanation"`
	UsedContexts []string             `json:"used_contexts,omitempty"`
	PriceUSD     float64              `json:"price_usd"`
	MinutesTaken float64              `json:"minutes_taken"`
	CreatedAt    time.Time            `json:"created_at"`
}

// InferenceCall records one model invocation for observability and cost
// accounting.
type InferenceCall struct {
	ID           int64     `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Operation    string    `json:"operation"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TokensUsed   int       `json:"tokens_used"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMs    int       `json:"latency_ms"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PredictionValue is a structured forecast outcome. The concrete shape depends
// on question type: probability for binary, option probabilities for multiple
// choice, a percentile distribution for numeric and date questions.
type PredictionValue interface {
	Readable() string
}

// ReasonedPrediction pairs a prediction with the free-text rationale that
// produced it. Never mutated after creation.
type ReasonedPrediction struct {
	Value     PredictionValue
	Reasoning string
}

// BinaryPrediction is the structured outcome of a binary question.
type BinaryPrediction struct {
	PredictionInDecimal float64 `json:"prediction_in_decimal"`
}

// Validate checks the probability is a valid decimal.
func (p BinaryPrediction) Validate() error {
	if p.PredictionInDecimal < 0 || p.PredictionInDecimal > 1 {
		return fmt.Errorf("prediction_in_decimal must be in [0, 1], got %v", p.PredictionInDecimal)
	}
	return nil
}

// Clamped returns the prediction with the probability bounded away from
// degenerate certainty.
func (p BinaryPrediction) Clamped() BinaryPrediction {
	v := p.PredictionInDecimal
	if v < 0.01 {
		v = 0.01
	}
	if v > 0.99 {
		v = 0.99
	}
	return BinaryPrediction{PredictionInDecimal: v}
}

func (p BinaryPrediction) Readable() string {
	return fmt.Sprintf("%.1f%%", p.PredictionInDecimal*100)
}

// PredictedOption assigns a probability to a single multiple-choice option.
type PredictedOption struct {
	OptionName  string  `json:"option_name"`
	Probability float64 `json:"probability"`
}

// PredictedOptionList is the structured outcome of a multiple-choice question.
type PredictedOptionList struct {
	PredictedOptions []PredictedOption `json:"predicted_options"`
}

// Validate checks the list is non-empty with non-negative probabilities.
// Probabilities need not sum to 1; normalization happens downstream.
func (l PredictedOptionList) Validate() error {
	if len(l.PredictedOptions) == 0 {
		return fmt.Errorf("predicted_options must not be empty")
	}
	var sum float64
	for _, opt := range l.PredictedOptions {
		if opt.OptionName == "" {
			return fmt.Errorf("option with empty name")
		}
		if opt.Probability < 0 || opt.Probability > 1 {
			return fmt.Errorf("probability for %q must be in [0, 1], got %v", opt.OptionName, opt.Probability)
		}
		sum += opt.Probability
	}
	if sum <= 0 {
		return fmt.Errorf("probabilities sum to zero")
	}
	return nil
}

// Aligned maps the parsed options onto the platform-declared option order,
// producing exactly one entry per declared option. Parsed names are matched
// exactly, then with any "Option"/"Option_" prefix stripped. Options the model
// never mentioned get probability 0; an explicit 0%% stays an entry. Errors
// when a parsed option matches nothing declared.
func (l PredictedOptionList) Aligned(options []string) (PredictedOptionList, error) {
	byName := make(map[string]float64, len(l.PredictedOptions))
	for _, opt := range l.PredictedOptions {
		name := opt.OptionName
		if _, declared := indexOf(options, name); !declared {
			trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(name, "Option_"), "Option"))
			if _, ok := indexOf(options, trimmed); ok {
				name = trimmed
			}
		}
		if _, ok := indexOf(options, name); !ok {
			return PredictedOptionList{}, fmt.Errorf("parsed option %q is not among the declared options", opt.OptionName)
		}
		byName[name] = opt.Probability
	}

	aligned := make([]PredictedOption, 0, len(options))
	for _, name := range options {
		aligned = append(aligned, PredictedOption{OptionName: name, Probability: byName[name]})
	}
	return PredictedOptionList{PredictedOptions: aligned}, nil
}

// Normalized rescales probabilities to sum to 1, preserving option order.
func (l PredictedOptionList) Normalized() PredictedOptionList {
	var sum float64
	for _, opt := range l.PredictedOptions {
		sum += opt.Probability
	}
	if sum <= 0 {
		return l
	}
	out := make([]PredictedOption, len(l.PredictedOptions))
	for i, opt := range l.PredictedOptions {
		out[i] = PredictedOption{OptionName: opt.OptionName, Probability: opt.Probability / sum}
	}
	return PredictedOptionList{PredictedOptions: out}
}

func (l PredictedOptionList) Readable() string {
	parts := make([]string, 0, len(l.PredictedOptions))
	for _, opt := range l.PredictedOptions {
		parts = append(parts, fmt.Sprintf("%s: %.1f%%", opt.OptionName, opt.Probability*100))
	}
	return strings.Join(parts, ", ")
}

func indexOf(options []string, name string) (int, bool) {
	for i, opt := range options {
		if opt == name {
			return i, true
		}
	}
	return 0, false
}

// Percentile is one (rank, value) pair of a percentile distribution. Rank is
// expressed on the 0-100 scale, e.g. 5 for the 5th percentile.
type Percentile struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// PercentileList is the structured outcome parsed from a numeric rationale.
type PercentileList []Percentile

// Validate checks ranks are in (0, 100) without duplicates and that values
// are non-decreasing once sorted by rank.
func (l PercentileList) Validate() error {
	if len(l) < 2 {
		return fmt.Errorf("need at least 2 percentiles, got %d", len(l))
	}
	sorted := make(PercentileList, len(l))
	copy(sorted, l)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Percentile < sorted[j].Percentile })
	for i, p := range sorted {
		if p.Percentile <= 0 || p.Percentile >= 100 {
			return fmt.Errorf("percentile rank must be in (0, 100), got %v", p.Percentile)
		}
		if i > 0 {
			if p.Percentile == sorted[i-1].Percentile {
				return fmt.Errorf("duplicate percentile rank %v", p.Percentile)
			}
			if p.Value < sorted[i-1].Value {
				return fmt.Errorf("value %v at percentile %v is below value %v at percentile %v",
					p.Value, p.Percentile, sorted[i-1].Value, sorted[i-1].Percentile)
			}
		}
	}
	return nil
}

// DatePercentile is one (rank, date) pair parsed from a date rationale.
type DatePercentile struct {
	Percentile float64   `json:"percentile"`
	Date       time.Time `json:"date"`
}

// DatePercentileList is the structured outcome parsed from a date rationale.
type DatePercentileList []DatePercentile

// Validate checks ranks are in (0, 100) without duplicates and that dates are
// chronological once sorted by rank.
func (l DatePercentileList) Validate() error {
	converted := make(PercentileList, len(l))
	for i, p := range l {
		if p.Date.IsZero() {
			return fmt.Errorf("missing date at percentile %v", p.Percentile)
		}
		converted[i] = Percentile{Percentile: p.Percentile, Value: float64(p.Date.Unix())}
	}
	return converted.Validate()
}

// ToPercentiles converts dates into Unix-timestamp percentile values.
func (l DatePercentileList) ToPercentiles() PercentileList {
	out := make(PercentileList, len(l))
	for i, p := range l {
		out[i] = Percentile{Percentile: p.Percentile, Value: float64(p.Date.Unix())}
	}
	return out
}

// PredictionAffirmed marks a still-valid prior forecast that was reused
// instead of generating a new one.
type PredictionAffirmed struct{}

func (PredictionAffirmed) Readable() string { return "previous forecast reaffirmed" }

// ConditionalPrediction composes the four sub-predictions of a conditional
// question.
type ConditionalPrediction struct {
	Parent        PredictionValue
	Child         PredictionValue
	PredictionYes PredictionValue
	PredictionNo  PredictionValue
}

func (c ConditionalPrediction) Readable() string {
	return fmt.Sprintf("if yes: %s; if no: %s", c.PredictionYes.Readable(), c.PredictionNo.Readable())
}

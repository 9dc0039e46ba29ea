package models

import (
	"fmt"
	"time"
)

// QuestionType identifies the forecast format a question expects.
type QuestionType string

const (
	QuestionTypeBinary         QuestionType = "binary"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeNumeric        QuestionType = "numeric"
	QuestionTypeDiscrete       QuestionType = "discrete"
	QuestionTypeDate           QuestionType = "date"
	QuestionTypeConditional    QuestionType = "conditional"
)

// Question is a forecasting question fetched from the platform.
// Immutable once fetched.
type Question struct {
	ID                 int64        `json:"id"`
	PostID             int64        `json:"post_id"`
	Type               QuestionType `json:"type"`
	Title              string       `json:"title"`
	Text               string       `json:"text"`
	Background         string       `json:"background"`
	ResolutionCriteria string       `json:"resolution_criteria"`
	FinePrint          string       `json:"fine_print"`
	PageURL            string       `json:"page_url"`

	// Numeric/date questions only. For date questions the bounds are Unix
	// timestamps in seconds.
	UnitOfMeasure     string   `json:"unit_of_measure,omitempty"`
	LowerBound        float64  `json:"lower_bound,omitempty"`
	UpperBound        float64  `json:"upper_bound,omitempty"`
	NominalLowerBound *float64 `json:"nominal_lower_bound,omitempty"`
	NominalUpperBound *float64 `json:"nominal_upper_bound,omitempty"`
	OpenLowerBound    bool     `json:"open_lower_bound,omitempty"`
	OpenUpperBound    bool     `json:"open_upper_bound,omitempty"`
	ZeroPoint         *float64 `json:"zero_point,omitempty"`

	// Multiple choice questions only, in platform-declared order.
	Options []string `json:"options,omitempty"`

	CategorySlugs []string `json:"category_slugs,omitempty"`

	// ConditionalRole is "yes" or "no" when this question is the branch of a
	// conditional pair (forecast the child given the parent's resolution),
	// empty otherwise.
	ConditionalRole string `json:"conditional_role,omitempty"`

	// Conditional questions only.
	Parent      *Question `json:"parent,omitempty"`
	Child       *Question `json:"child,omitempty"`
	QuestionYes *Question `json:"question_yes,omitempty"`
	QuestionNo  *Question `json:"question_no,omitempty"`

	PreviousForecasts  []PriorForecast `json:"previous_forecasts,omitempty"`
	AlreadyForecasted  bool            `json:"already_forecasted,omitempty"`
	PublishedAt        *time.Time      `json:"published_at,omitempty"`
	ScheduledResolveAt *time.Time      `json:"scheduled_resolve_at,omitempty"`
}

// PriorForecast is a forecast the authenticated user previously submitted on a
// question, with its validity window.
type PriorForecast struct {
	TimestampStart time.Time  `json:"timestamp_start"`
	TimestampEnd   *time.Time `json:"timestamp_end,omitempty"`

	// One of the following is populated depending on question type.
	ProbabilityYes      *float64  `json:"probability_yes,omitempty"`
	OptionProbabilities []float64 `json:"option_probabilities,omitempty"`
	CDFMedian           *float64  `json:"cdf_median,omitempty"`
}

// ValidAt reports whether the forecast's validity window covers t, that is,
// timestamp_end is unset or still in the future relative to t.
func (p PriorForecast) ValidAt(t time.Time) bool {
	return p.TimestampEnd == nil || p.TimestampEnd.After(t)
}

// Readable renders the forecast value for humans, in the context of its
// question.
func (p PriorForecast) Readable(q *Question) string {
	switch {
	case p.ProbabilityYes != nil:
		return fmt.Sprintf("%.1f%%", *p.ProbabilityYes*100)
	case len(p.OptionProbabilities) > 0:
		parts := ""
		for i, prob := range p.OptionProbabilities {
			name := fmt.Sprintf("option %d", i+1)
			if q != nil && i < len(q.Options) {
				name = q.Options[i]
			}
			if parts != "" {
				parts += ", "
			}
			parts += fmt.Sprintf("%s: %.1f%%", name, prob*100)
		}
		return parts
	case p.CDFMedian != nil:
		if q != nil && q.Type == QuestionTypeDate {
			return time.Unix(int64(*p.CDFMedian), 0).UTC().Format("2006-01-02")
		}
		return fmt.Sprintf("%v", *p.CDFMedian)
	default:
		return "unknown value"
	}
}

// LatestForecast returns the most recent prior forecast, or nil if the user
// has never forecasted the question.
func (q *Question) LatestForecast() *PriorForecast {
	if len(q.PreviousForecasts) == 0 {
		return nil
	}
	latest := q.PreviousForecasts[len(q.PreviousForecasts)-1]
	return &latest
}

// IsConditionalChild reports whether the question is the yes or no branch of
// a conditional pair.
func (q *Question) IsConditionalChild() bool {
	return q.ConditionalRole == "yes" || q.ConditionalRole == "no"
}

package forecaster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruslanv/metacbot/internal/models"
)

// SingleForecaster forecasts one non-conditional question.
type SingleForecaster interface {
	Forecast(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error)
}

// ConditionalResolver forecasts a conditional question by walking its four
// sub-questions in order: parent, child, then the yes and no branches. Each
// step's conclusions are appended to the research handed to later steps so the
// branch forecasts can condition on them.
type ConditionalResolver struct {
	single SingleForecaster
	force  map[string]bool
	logger *slog.Logger
	now    func() time.Time
}

func newConditionalResolver(single SingleForecaster, forceReforecast []string, logger *slog.Logger) *ConditionalResolver {
	force := make(map[string]bool, len(forceReforecast))
	for _, role := range forceReforecast {
		force[strings.ToLower(role)] = true
	}
	return &ConditionalResolver{
		single: single,
		force:  force,
		logger: logger,
		now:    time.Now,
	}
}

// Forecast resolves the conditional question into a composite prediction with
// one rationale section per sub-question.
func (r *ConditionalResolver) Forecast(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	if q.Parent == nil || q.Child == nil || q.QuestionYes == nil || q.QuestionNo == nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: conditional is missing sub-questions", q.ID)
	}

	parent, research, err := r.subForecast(ctx, q.Parent, research, "parent")
	if err != nil {
		return models.ReasonedPrediction{}, err
	}
	child, research, err := r.subForecast(ctx, q.Child, research, "child")
	if err != nil {
		return models.ReasonedPrediction{}, err
	}
	yes, research, err := r.subForecast(ctx, q.QuestionYes, research, "yes")
	if err != nil {
		return models.ReasonedPrediction{}, err
	}
	no, _, err := r.subForecast(ctx, q.QuestionNo, research, "no")
	if err != nil {
		return models.ReasonedPrediction{}, err
	}

	var reasoning strings.Builder
	fmt.Fprintf(&reasoning, "## Parent Question Reasoning\n%s\n", parent.Reasoning)
	fmt.Fprintf(&reasoning, "## Child Question Reasoning\n%s\n", child.Reasoning)
	fmt.Fprintf(&reasoning, "## Yes Question Reasoning\n%s\n", yes.Reasoning)
	fmt.Fprintf(&reasoning, "## No Question Reasoning\n%s\n", no.Reasoning)

	value := models.ConditionalPrediction{
		Parent:        parent.Value,
		Child:         child.Value,
		PredictionYes: yes.Value,
		PredictionNo:  no.Value,
	}
	return models.ReasonedPrediction{Value: value, Reasoning: reasoning.String()}, nil
}

// subForecast forecasts one sub-question, reaffirming a still-valid prior
// forecast on the parent and child instead of generating a new one unless the
// role is configured for forced re-forecasting. Returns the prediction and the
// research to hand to the next step.
func (r *ConditionalResolver) subForecast(ctx context.Context, q *models.Question, research, role string) (models.ReasonedPrediction, string, error) {
	if (role == "parent" || role == "child") && !r.force[role] {
		if prior := q.LatestForecast(); prior != nil && prior.ValidAt(r.now()) {
			r.logger.Info("reaffirming existing forecast",
				"url", q.PageURL, "role", role, "value", prior.Readable(q))
			prediction := models.ReasonedPrediction{
				Value:     models.PredictionAffirmed{},
				Reasoning: fmt.Sprintf("Already existing forecast reaffirmed at %s.", prior.Readable(q)),
			}
			return prediction, research, nil
		}
	}

	prediction, err := r.single.Forecast(ctx, q, research)
	if err != nil {
		return models.ReasonedPrediction{}, "", fmt.Errorf("%s question: %w", role, err)
	}
	return prediction, appendReasoningToResearch(research, prediction, role), nil
}

// appendReasoningToResearch folds a completed sub-forecast into the research
// text so later sub-questions can condition on it without re-forecasting it.
func appendReasoningToResearch(research string, prediction models.ReasonedPrediction, role string) string {
	title := titleRole(role)

	var b strings.Builder
	b.WriteString(research)
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "## %s Question Information\n", title)
	fmt.Fprintf(&b, "You have previously forecasted the %s Question to the value: %s\n", title, prediction.Value.Readable())
	b.WriteString("This is relevant information for your current forecast, but it is NOT your current forecast, but previous forecasting information that is relevant to your current forecast.\n")
	fmt.Fprintf(&b, "The reasoning for the %s Question was as such:\n", title)
	fmt.Fprintf(&b, "```\n%s\n```\n", prediction.Reasoning)
	fmt.Fprintf(&b, "This is absolutely essential: do NOT use this reasoning to re-forecast the %s question.\n", title)
	return b.String()
}

func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// Package forecaster turns questions plus research into reasoned predictions:
// one reasoning pass with the default model, then structured extraction of the
// final answer with the parsing model.
package forecaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruslanv/metacbot/internal/llm"
	"github.com/ruslanv/metacbot/internal/models"
	"github.com/ruslanv/metacbot/internal/structured"
)

// ContextProvider supplies domain guidance text merged into prompts.
type ContextProvider interface {
	ResearchContext(q *models.Question) string
	ForecastContext(q *models.Question) string
}

// NoContext is a ContextProvider with nothing to add.
type NoContext struct{}

func (NoContext) ResearchContext(*models.Question) string { return "" }
func (NoContext) ForecastContext(*models.Question) string { return "" }

// Forecaster produces a prediction for a single question.
type Forecaster struct {
	model       llm.Invoker
	extractor   *structured.Extractor
	contexts    ContextProvider
	conditional *ConditionalResolver
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a forecaster over the default reasoning model and the structured
// output extractor. forceReforecast names conditional roles ("parent",
// "child") whose still-valid prior forecasts should be replaced instead of
// reaffirmed.
func New(model llm.Invoker, extractor *structured.Extractor, contexts ContextProvider, forceReforecast []string, logger *slog.Logger) *Forecaster {
	if contexts == nil {
		contexts = NoContext{}
	}
	f := &Forecaster{
		model:     model,
		extractor: extractor,
		contexts:  contexts,
		logger:    logger,
		now:       time.Now,
	}
	f.conditional = newConditionalResolver(f, forceReforecast, logger)
	return f
}

// ResearchPrompt renders the research request for a question, including any
// research context guidance.
func (f *Forecaster) ResearchPrompt(q *models.Question) string {
	return researchPrompt(q, f.contexts.ResearchContext(q))
}

// Forecast dispatches on question type and returns the reasoned prediction.
func (f *Forecaster) Forecast(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	switch q.Type {
	case models.QuestionTypeBinary:
		return f.forecastBinary(ctx, q, research)
	case models.QuestionTypeMultipleChoice:
		return f.forecastMultipleChoice(ctx, q, research)
	case models.QuestionTypeNumeric, models.QuestionTypeDiscrete:
		return f.forecastNumeric(ctx, q, research)
	case models.QuestionTypeDate:
		return f.forecastDate(ctx, q, research)
	case models.QuestionTypeConditional:
		return f.conditional.Forecast(ctx, q, research)
	default:
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: unsupported type %q", q.ID, q.Type)
	}
}

func (f *Forecaster) forecastBinary(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	prompt := binaryPrompt(q, research, f.contexts.ForecastContext(q), f.now())
	reasoning, err := f.model.Invoke(ctx, prompt)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d reasoning: %w", q.ID, err)
	}
	f.logger.Info("reasoning complete", "url", q.PageURL, "type", q.Type)

	parsed, err := structured.Extract[models.BinaryPrediction](ctx, f.extractor, reasoning, structured.Options{
		Schema: `{"prediction_in_decimal": 0.75}`,
	})
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}

	prediction := parsed.Clamped()
	f.logger.Info("forecasted question", "url", q.PageURL, "prediction", prediction.Readable())
	return models.ReasonedPrediction{Value: prediction, Reasoning: reasoning}, nil
}

func (f *Forecaster) forecastMultipleChoice(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	prompt := multipleChoicePrompt(q, research, f.contexts.ForecastContext(q), f.now())
	reasoning, err := f.model.Invoke(ctx, prompt)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d reasoning: %w", q.ID, err)
	}
	f.logger.Info("reasoning complete", "url", q.PageURL, "type", q.Type)

	instructions := fmt.Sprintf(
		"Make sure that all option names are one of the following:\n%s\n\n"+
			"The text you are parsing may prepend these options with some variation of \"Option\" which you should remove if not part of the option names I just gave you.\n"+
			"Additionally, you may sometimes need to parse a 0%% probability. Please do not skip options with 0%% but rather make it an entry in your final list with 0%% probability.",
		formatOptions(q.Options))

	parsed, err := structured.Extract[models.PredictedOptionList](ctx, f.extractor, reasoning, structured.Options{
		Schema:       `{"predicted_options": [{"option_name": "Option A", "probability": 0.5}]}`,
		Instructions: instructions,
	})
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}

	aligned, err := parsed.Aligned(q.Options)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}
	f.logger.Info("forecasted question", "url", q.PageURL, "prediction", aligned.Readable())
	return models.ReasonedPrediction{Value: aligned, Reasoning: reasoning}, nil
}

func (f *Forecaster) forecastNumeric(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	prompt := numericPrompt(q, research, f.contexts.ForecastContext(q), f.now())
	reasoning, err := f.model.Invoke(ctx, prompt)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d reasoning: %w", q.ID, err)
	}
	f.logger.Info("reasoning complete", "url", q.PageURL, "type", q.Type)

	instructions := fmt.Sprintf(
		"The text given to you is trying to give a forecast distribution for a numeric question.\n"+
			"- This text is trying to answer the numeric question: %q.\n"+
			"- When parsing the text, please make sure to give the values (the ones assigned to percentiles) in terms of the correct units.\n"+
			"- The units for the forecast are: %s\n"+
			"- As an example, someone else guessed that the answer will be between %s %s and %s %s, so the numbers parsed from an answer like this would be verbatim \"%s\" and \"%s\".\n"+
			"- If the answer doesn't give the answer in the correct units, you should parse it in the right units. For instance if the answer gives numbers as $500,000,000 and units are \"B $\" then you should parse the answer as 0.5 (since $500,000,000 is $0.5 billion).\n"+
			"- If percentiles are not explicitly given (e.g. only a single value is given) please don't return a parsed output, but rather indicate that the answer is not explicitly given in the text.\n"+
			"- Turn any values that are in scientific notation into regular numbers.",
		q.Text, q.UnitOfMeasure,
		formatBound(q.LowerBound), q.UnitOfMeasure, formatBound(q.UpperBound), q.UnitOfMeasure,
		formatBound(q.LowerBound), formatBound(q.UpperBound))

	parsed, err := structured.Extract[models.PercentileList](ctx, f.extractor, reasoning, structured.Options{
		Schema:       `[{"percentile": 10, "value": 15.5}, {"percentile": 50, "value": 30}]`,
		Instructions: instructions,
	})
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}

	dist, err := models.NewNumericDistribution(parsed, q)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}
	f.logger.Info("forecasted question", "url", q.PageURL, "prediction", dist.Readable())
	return models.ReasonedPrediction{Value: dist, Reasoning: reasoning}, nil
}

func (f *Forecaster) forecastDate(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error) {
	prompt := datePrompt(q, research, f.contexts.ForecastContext(q), f.now())
	reasoning, err := f.model.Invoke(ctx, prompt)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d reasoning: %w", q.ID, err)
	}
	f.logger.Info("reasoning complete", "url", q.PageURL, "type", q.Type)

	lower := time.Unix(int64(q.LowerBound), 0).UTC().Format("2006-01-02")
	upper := time.Unix(int64(q.UpperBound), 0).UTC().Format("2006-01-02")
	instructions := fmt.Sprintf(
		"The text given to you is trying to give a forecast distribution for a date question.\n"+
			"- This text is trying to answer the question: %q.\n"+
			"- As an example, someone else guessed that the answer will be between %s and %s, so the dates parsed from an answer like this would be verbatim \"%s\" and \"%s\".\n"+
			"- The output is given as dates/times; please format each as a full RFC 3339 timestamp. Assume midnight UTC if no hour is given.\n"+
			"- If percentiles are not explicitly given (e.g. only a single value is given) please don't return a parsed output, but rather indicate that the answer is not explicitly given in the text.",
		q.Text, lower, upper, lower, upper)

	parsed, err := structured.Extract[models.DatePercentileList](ctx, f.extractor, reasoning, structured.Options{
		Schema:       `[{"percentile": 10, "date": "2027-01-01T00:00:00Z"}, {"percentile": 50, "date": "2028-06-01T00:00:00Z"}]`,
		Instructions: instructions,
	})
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}

	dist, err := models.NewDateDistribution(parsed, q)
	if err != nil {
		return models.ReasonedPrediction{}, fmt.Errorf("question %d: %w", q.ID, err)
	}
	f.logger.Info("forecasted question", "url", q.PageURL, "prediction", dist.Readable())
	return models.ReasonedPrediction{Value: dist, Reasoning: reasoning}, nil
}

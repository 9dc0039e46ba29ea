package forecaster

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruslanv/metacbot/internal/models"
	"github.com/ruslanv/metacbot/internal/structured"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel returns canned responses in order and loops on the last one.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Invoke(context.Context, string) (string, error) {
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	return m.responses[i], nil
}

func (m *scriptedModel) Name() string { return "scripted" }

func newTestForecaster(reasoning, parsed string) *Forecaster {
	reasoner := &scriptedModel{responses: []string{reasoning}}
	parser := &scriptedModel{responses: []string{parsed}}
	extractor := structured.NewExtractor(parser, 1, discard())
	return New(reasoner, extractor, nil, nil, discard())
}

func TestForecastBinaryClampsExtremes(t *testing.T) {
	tests := []struct {
		name   string
		parsed string
		want   float64
	}{
		{name: "zero clamps up", parsed: `{"prediction_in_decimal": 0}`, want: 0.01},
		{name: "one clamps down", parsed: `{"prediction_in_decimal": 1}`, want: 0.99},
		{name: "interior passes through", parsed: `{"prediction_in_decimal": 0.42}`, want: 0.42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestForecaster("rationale ending in Probability: 42%", tt.parsed)
			q := &models.Question{ID: 1, Type: models.QuestionTypeBinary, Text: "Will it happen?"}

			prediction, err := f.Forecast(context.Background(), q, "research")
			if err != nil {
				t.Fatalf("Forecast returned error: %v", err)
			}
			binary, ok := prediction.Value.(models.BinaryPrediction)
			if !ok {
				t.Fatalf("value is %T, want BinaryPrediction", prediction.Value)
			}
			if binary.PredictionInDecimal != tt.want {
				t.Errorf("probability = %v, want %v", binary.PredictionInDecimal, tt.want)
			}
			if prediction.Reasoning == "" {
				t.Error("reasoning must carry the rationale text")
			}
		})
	}
}

func TestForecastMultipleChoiceAlignsToDeclaredOptions(t *testing.T) {
	parsed := `{"predicted_options": [
		{"option_name": "Option_Two or more", "probability": 0.3},
		{"option_name": "Zero", "probability": 0.6}
	]}`
	f := newTestForecaster("rationale", parsed)
	q := &models.Question{
		ID:      2,
		Type:    models.QuestionTypeMultipleChoice,
		Text:    "How many?",
		Options: []string{"Zero", "One", "Two or more"},
	}

	prediction, err := f.Forecast(context.Background(), q, "research")
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	list, ok := prediction.Value.(models.PredictedOptionList)
	if !ok {
		t.Fatalf("value is %T, want PredictedOptionList", prediction.Value)
	}

	if len(list.PredictedOptions) != len(q.Options) {
		t.Fatalf("got %d options, want %d", len(list.PredictedOptions), len(q.Options))
	}
	for i, opt := range list.PredictedOptions {
		if opt.OptionName != q.Options[i] {
			t.Errorf("option %d = %q, want %q", i, opt.OptionName, q.Options[i])
		}
	}
	if list.PredictedOptions[1].Probability != 0 {
		t.Errorf("unmentioned option should get probability 0, got %v", list.PredictedOptions[1].Probability)
	}
	if list.PredictedOptions[2].Probability != 0.3 {
		t.Errorf("prefixed option not matched: got %v", list.PredictedOptions[2].Probability)
	}
}

func TestForecastMultipleChoiceRejectsUnknownOption(t *testing.T) {
	parsed := `{"predicted_options": [{"option_name": "Elevendy", "probability": 1}]}`
	f := newTestForecaster("rationale", parsed)
	q := &models.Question{
		ID:      3,
		Type:    models.QuestionTypeMultipleChoice,
		Options: []string{"Zero", "One"},
	}

	if _, err := f.Forecast(context.Background(), q, ""); err == nil {
		t.Fatal("expected error for option outside the declared set")
	}
}

func TestForecastNumericBuildsClampedDistribution(t *testing.T) {
	parsed := `[
		{"percentile": 10, "value": -5},
		{"percentile": 50, "value": 40},
		{"percentile": 90, "value": 250}
	]`
	f := newTestForecaster("rationale", parsed)
	q := &models.Question{
		ID:         4,
		Type:       models.QuestionTypeNumeric,
		Text:       "How much?",
		LowerBound: 0,
		UpperBound: 100,
	}

	prediction, err := f.Forecast(context.Background(), q, "research")
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	dist, ok := prediction.Value.(*models.NumericDistribution)
	if !ok {
		t.Fatalf("value is %T, want *NumericDistribution", prediction.Value)
	}

	if got := dist.DeclaredPercentiles[0].Value; got != 0 {
		t.Errorf("low value not clamped to range: %v", got)
	}
	if got := dist.DeclaredPercentiles[2].Value; got != 100 {
		t.Errorf("high value not clamped to range: %v", got)
	}
	if len(dist.CDF()) != 201 {
		t.Errorf("CDF length = %d, want 201", len(dist.CDF()))
	}
}

func TestForecastDateBuildsDateDistribution(t *testing.T) {
	parsed := `[
		{"percentile": 10, "date": "2027-01-01T00:00:00Z"},
		{"percentile": 50, "date": "2028-06-01T00:00:00Z"},
		{"percentile": 90, "date": "2030-01-01T00:00:00Z"}
	]`
	f := newTestForecaster("rationale", parsed)
	q := &models.Question{
		ID:         5,
		Type:       models.QuestionTypeDate,
		Text:       "When?",
		LowerBound: 1704067200, // 2024-01-01
		UpperBound: 1956528000, // 2032-01-01
	}

	prediction, err := f.Forecast(context.Background(), q, "research")
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	dist, ok := prediction.Value.(*models.NumericDistribution)
	if !ok {
		t.Fatalf("value is %T, want *NumericDistribution", prediction.Value)
	}
	if !dist.IsDate {
		t.Error("expected a date-typed distribution")
	}

	dates := dist.DeclaredDatePercentiles()
	if got := dates[1].Date.Format("2006-01-02"); got != "2028-06-01" {
		t.Errorf("median date = %s, want 2028-06-01", got)
	}
}

func TestForecastUnsupportedType(t *testing.T) {
	f := newTestForecaster("rationale", "{}")
	q := &models.Question{ID: 6, Type: models.QuestionType("mystery")}

	if _, err := f.Forecast(context.Background(), q, ""); err == nil {
		t.Fatal("expected error for unsupported question type")
	}
}

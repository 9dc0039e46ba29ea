package forecaster

import (
	"math"
	"testing"

	"github.com/ruslanv/metacbot/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateBinaryMedian(t *testing.T) {
	q := &models.Question{ID: 1, Type: models.QuestionTypeBinary}

	tests := []struct {
		name  string
		probs []float64
		want  float64
	}{
		{name: "odd count", probs: []float64{0.1, 0.9, 0.3}, want: 0.3},
		{name: "even count", probs: []float64{0.2, 0.4}, want: 0.3},
		{name: "single", probs: []float64{0.7}, want: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]models.PredictionValue, len(tt.probs))
			for i, p := range tt.probs {
				values[i] = models.BinaryPrediction{PredictionInDecimal: p}
			}
			got, err := Aggregate(q, values)
			if err != nil {
				t.Fatalf("Aggregate returned error: %v", err)
			}
			if !approx(got.(models.BinaryPrediction).PredictionInDecimal, tt.want) {
				t.Errorf("median = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregateOptionsMeanAndNormalize(t *testing.T) {
	q := &models.Question{ID: 2, Type: models.QuestionTypeMultipleChoice, Options: []string{"A", "B"}}
	values := []models.PredictionValue{
		models.PredictedOptionList{PredictedOptions: []models.PredictedOption{
			{OptionName: "A", Probability: 0.8},
			{OptionName: "B", Probability: 0.2},
		}},
		models.PredictedOptionList{PredictedOptions: []models.PredictedOption{
			{OptionName: "A", Probability: 0.4},
			{OptionName: "B", Probability: 0.6},
		}},
	}

	got, err := Aggregate(q, values)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	list := got.(models.PredictedOptionList)
	if list.PredictedOptions[0].OptionName != "A" || list.PredictedOptions[1].OptionName != "B" {
		t.Fatalf("option order not preserved: %v", list)
	}
	if !approx(list.PredictedOptions[0].Probability, 0.6) || !approx(list.PredictedOptions[1].Probability, 0.4) {
		t.Errorf("unexpected means %v", list)
	}
}

func TestAggregateOptionsOrderMismatch(t *testing.T) {
	q := &models.Question{ID: 3, Type: models.QuestionTypeMultipleChoice}
	values := []models.PredictionValue{
		models.PredictedOptionList{PredictedOptions: []models.PredictedOption{{OptionName: "A", Probability: 1}}},
		models.PredictedOptionList{PredictedOptions: []models.PredictedOption{{OptionName: "B", Probability: 1}}},
	}
	if _, err := Aggregate(q, values); err == nil {
		t.Fatal("expected error for disagreeing option lists")
	}
}

func TestAggregateDistributionsPerRankMean(t *testing.T) {
	q := &models.Question{ID: 4, Type: models.QuestionTypeNumeric, LowerBound: 0, UpperBound: 100}
	d1, err := models.NewNumericDistribution(models.PercentileList{
		{Percentile: 10, Value: 10},
		{Percentile: 90, Value: 50},
	}, q)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := models.NewNumericDistribution(models.PercentileList{
		{Percentile: 10, Value: 30},
		{Percentile: 90, Value: 70},
	}, q)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Aggregate(q, []models.PredictionValue{d1, d2})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	dist := got.(*models.NumericDistribution)
	if dist.DeclaredPercentiles[0].Value != 20 || dist.DeclaredPercentiles[1].Value != 60 {
		t.Errorf("unexpected per-rank means %v", dist.DeclaredPercentiles)
	}
}

func TestAggregateMixedTypes(t *testing.T) {
	q := &models.Question{ID: 5, Type: models.QuestionTypeBinary}
	values := []models.PredictionValue{
		models.BinaryPrediction{PredictionInDecimal: 0.5},
		models.PredictedOptionList{},
	}
	if _, err := Aggregate(q, values); err == nil {
		t.Fatal("expected error for mixed prediction types")
	}
}

func TestAggregateConditionalComponentWise(t *testing.T) {
	q := conditionalQuestion()
	values := []models.PredictionValue{
		models.ConditionalPrediction{
			Parent:        models.PredictionAffirmed{},
			Child:         models.PredictionAffirmed{},
			PredictionYes: models.BinaryPrediction{PredictionInDecimal: 0.2},
			PredictionNo:  models.BinaryPrediction{PredictionInDecimal: 0.6},
		},
		models.ConditionalPrediction{
			Parent:        models.PredictionAffirmed{},
			Child:         models.PredictionAffirmed{},
			PredictionYes: models.BinaryPrediction{PredictionInDecimal: 0.4},
			PredictionNo:  models.BinaryPrediction{PredictionInDecimal: 0.8},
		},
	}

	got, err := Aggregate(q, values)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	cond := got.(models.ConditionalPrediction)
	if _, ok := cond.Parent.(models.PredictionAffirmed); !ok {
		t.Errorf("parent = %T, want PredictionAffirmed", cond.Parent)
	}
	if !approx(cond.PredictionYes.(models.BinaryPrediction).PredictionInDecimal, 0.3) {
		t.Errorf("yes branch = %v, want 0.3", cond.PredictionYes)
	}
	if !approx(cond.PredictionNo.(models.BinaryPrediction).PredictionInDecimal, 0.7) {
		t.Errorf("no branch = %v, want 0.7", cond.PredictionNo)
	}
}

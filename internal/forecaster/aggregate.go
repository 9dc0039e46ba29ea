package forecaster

import (
	"fmt"
	"sort"

	"github.com/ruslanv/metacbot/internal/models"
)

// Aggregate combines several predictions for the same question into one final
// value: median probability for binary questions, per-option mean renormalized
// for multiple choice, per-rank mean for distributions. Conditional
// predictions aggregate component-wise.
func Aggregate(q *models.Question, values []models.PredictionValue) (models.PredictionValue, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("question %d: no predictions to aggregate", q.ID)
	}
	if len(values) == 1 {
		return values[0], nil
	}

	switch first := values[0].(type) {
	case models.BinaryPrediction:
		return aggregateBinary(values)
	case models.PredictedOptionList:
		return aggregateOptions(values)
	case *models.NumericDistribution:
		return aggregateDistributions(q, values)
	case models.ConditionalPrediction:
		return aggregateConditional(q, values)
	case models.PredictionAffirmed:
		return first, nil
	default:
		return nil, fmt.Errorf("question %d: cannot aggregate %T", q.ID, first)
	}
}

func aggregateBinary(values []models.PredictionValue) (models.PredictionValue, error) {
	probs := make([]float64, 0, len(values))
	for _, v := range values {
		p, ok := v.(models.BinaryPrediction)
		if !ok {
			return nil, fmt.Errorf("mixed prediction types: %T", v)
		}
		probs = append(probs, p.PredictionInDecimal)
	}
	sort.Float64s(probs)

	mid := len(probs) / 2
	median := probs[mid]
	if len(probs)%2 == 0 {
		median = (probs[mid-1] + probs[mid]) / 2
	}
	return models.BinaryPrediction{PredictionInDecimal: median}, nil
}

func aggregateOptions(values []models.PredictionValue) (models.PredictionValue, error) {
	var sums []float64
	var names []string
	for _, v := range values {
		list, ok := v.(models.PredictedOptionList)
		if !ok {
			return nil, fmt.Errorf("mixed prediction types: %T", v)
		}
		if names == nil {
			names = make([]string, len(list.PredictedOptions))
			sums = make([]float64, len(list.PredictedOptions))
			for i, opt := range list.PredictedOptions {
				names[i] = opt.OptionName
			}
		}
		if len(list.PredictedOptions) != len(names) {
			return nil, fmt.Errorf("option lists disagree on length")
		}
		for i, opt := range list.PredictedOptions {
			if opt.OptionName != names[i] {
				return nil, fmt.Errorf("option lists disagree on order: %q vs %q", opt.OptionName, names[i])
			}
			sums[i] += opt.Probability
		}
	}

	out := make([]models.PredictedOption, len(names))
	for i, name := range names {
		out[i] = models.PredictedOption{OptionName: name, Probability: sums[i] / float64(len(values))}
	}
	return models.PredictedOptionList{PredictedOptions: out}.Normalized(), nil
}

func aggregateDistributions(q *models.Question, values []models.PredictionValue) (models.PredictionValue, error) {
	var sums map[float64]float64
	var ranks []float64
	for _, v := range values {
		dist, ok := v.(*models.NumericDistribution)
		if !ok {
			return nil, fmt.Errorf("mixed prediction types: %T", v)
		}
		if sums == nil {
			sums = make(map[float64]float64, len(dist.DeclaredPercentiles))
			for _, p := range dist.DeclaredPercentiles {
				ranks = append(ranks, p.Percentile)
			}
		}
		if len(dist.DeclaredPercentiles) != len(ranks) {
			return nil, fmt.Errorf("distributions disagree on declared percentiles")
		}
		for i, p := range dist.DeclaredPercentiles {
			if p.Percentile != ranks[i] {
				return nil, fmt.Errorf("distributions disagree on declared percentiles")
			}
			sums[p.Percentile] += p.Value
		}
	}

	merged := make(models.PercentileList, len(ranks))
	for i, rank := range ranks {
		merged[i] = models.Percentile{Percentile: rank, Value: sums[rank] / float64(len(values))}
	}
	return models.NewNumericDistribution(merged, q)
}

func aggregateConditional(q *models.Question, values []models.PredictionValue) (models.PredictionValue, error) {
	parents := make([]models.PredictionValue, 0, len(values))
	children := make([]models.PredictionValue, 0, len(values))
	yeses := make([]models.PredictionValue, 0, len(values))
	nos := make([]models.PredictionValue, 0, len(values))
	for _, v := range values {
		cond, ok := v.(models.ConditionalPrediction)
		if !ok {
			return nil, fmt.Errorf("mixed prediction types: %T", v)
		}
		parents = append(parents, cond.Parent)
		children = append(children, cond.Child)
		yeses = append(yeses, cond.PredictionYes)
		nos = append(nos, cond.PredictionNo)
	}

	parent, err := Aggregate(q.Parent, parents)
	if err != nil {
		return nil, err
	}
	child, err := Aggregate(q.Child, children)
	if err != nil {
		return nil, err
	}
	yes, err := Aggregate(q.QuestionYes, yeses)
	if err != nil {
		return nil, err
	}
	no, err := Aggregate(q.QuestionNo, nos)
	if err != nil {
		return nil, err
	}
	return models.ConditionalPrediction{Parent: parent, Child: child, PredictionYes: yes, PredictionNo: no}, nil
}

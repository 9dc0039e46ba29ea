package metaculus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ruslanv/metacbot/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		Token:             "test-token",
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
	}, discard())
	return client, server
}

func TestListTournamentQuestionsPaginates(t *testing.T) {
	var seenAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		seenAuth = r.Header.Get("Authorization")

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		if offset == 0 {
			next := "/api/posts/?offset=50"
			json.NewEncoder(w).Encode(map[string]any{
				"next": next,
				"results": []map[string]any{
					{"id": 1, "title": "Q1", "question": map[string]any{"id": 1, "type": "binary", "title": "Q1"}},
					{"id": 2, "title": "Notebook", "notebook": map[string]any{}},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"next": nil,
			"results": []map[string]any{
				{"id": 3, "title": "Q3", "question": map[string]any{"id": 3, "type": "binary", "title": "Q3"}},
			},
		})
	})

	client, _ := newTestClient(t, handler)
	questions, err := client.ListTournamentQuestions(context.Background(), "minibench")
	if err != nil {
		t.Fatalf("ListTournamentQuestions returned error: %v", err)
	}

	if len(questions) != 2 {
		t.Fatalf("expected 2 questions (notebook skipped), got %d", len(questions))
	}
	if questions[0].ID != 1 || questions[1].ID != 3 {
		t.Errorf("unexpected question IDs %d, %d", questions[0].ID, questions[1].ID)
	}
	if seenAuth != "Token test-token" {
		t.Errorf("unexpected auth header %q", seenAuth)
	}
}

func TestDoRetriesOn429(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 5, "title": "Q5",
			"question": map[string]any{"id": 5, "type": "binary", "title": "Q5"},
		})
	})

	client, _ := newTestClient(t, handler)
	q, err := client.GetQuestion(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetQuestion returned error: %v", err)
	}
	if q.ID != 5 {
		t.Errorf("unexpected question ID %d", q.ID)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryOn4xx(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	})

	client, _ := newTestClient(t, handler)
	if _, err := client.GetQuestion(context.Background(), 404); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestSubmitForecastPayloads(t *testing.T) {
	tests := []struct {
		name     string
		question *models.Question
		value    models.PredictionValue
		check    func(t *testing.T, payloads []forecastPayload)
	}{
		{
			name:     "binary",
			question: &models.Question{ID: 10, Type: models.QuestionTypeBinary},
			value:    models.BinaryPrediction{PredictionInDecimal: 0.42},
			check: func(t *testing.T, payloads []forecastPayload) {
				if len(payloads) != 1 {
					t.Fatalf("expected 1 payload, got %d", len(payloads))
				}
				if payloads[0].Question != 10 || *payloads[0].ProbabilityYes != 0.42 {
					t.Errorf("unexpected payload %+v", payloads[0])
				}
			},
		},
		{
			name:     "multiple choice normalizes",
			question: &models.Question{ID: 11, Type: models.QuestionTypeMultipleChoice, Options: []string{"A", "B"}},
			value: models.PredictedOptionList{PredictedOptions: []models.PredictedOption{
				{OptionName: "A", Probability: 0.6},
				{OptionName: "B", Probability: 0.6},
			}},
			check: func(t *testing.T, payloads []forecastPayload) {
				got := payloads[0].ProbabilityYesPerCategory
				if got["A"] != 0.5 || got["B"] != 0.5 {
					t.Errorf("expected normalized probabilities, got %v", got)
				}
			},
		},
		{
			name: "conditional skips affirmed branches",
			question: &models.Question{
				ID:          12,
				Type:        models.QuestionTypeConditional,
				QuestionYes: &models.Question{ID: 13, Type: models.QuestionTypeBinary},
				QuestionNo:  &models.Question{ID: 14, Type: models.QuestionTypeBinary},
			},
			value: models.ConditionalPrediction{
				Parent:        models.PredictionAffirmed{},
				Child:         models.PredictionAffirmed{},
				PredictionYes: models.BinaryPrediction{PredictionInDecimal: 0.7},
				PredictionNo:  models.PredictionAffirmed{},
			},
			check: func(t *testing.T, payloads []forecastPayload) {
				if len(payloads) != 1 {
					t.Fatalf("expected 1 payload, got %d", len(payloads))
				}
				if payloads[0].Question != 13 || *payloads[0].ProbabilityYes != 0.7 {
					t.Errorf("unexpected payload %+v", payloads[0])
				}
			},
		},
		{
			name: "conditional submits fresh parent and child",
			question: &models.Question{
				ID:          16,
				Type:        models.QuestionTypeConditional,
				Parent:      &models.Question{ID: 17, Type: models.QuestionTypeBinary},
				Child:       &models.Question{ID: 18, Type: models.QuestionTypeBinary},
				QuestionYes: &models.Question{ID: 19, Type: models.QuestionTypeBinary},
				QuestionNo:  &models.Question{ID: 20, Type: models.QuestionTypeBinary},
			},
			value: models.ConditionalPrediction{
				Parent:        models.BinaryPrediction{PredictionInDecimal: 0.2},
				Child:         models.PredictionAffirmed{},
				PredictionYes: models.BinaryPrediction{PredictionInDecimal: 0.6},
				PredictionNo:  models.BinaryPrediction{PredictionInDecimal: 0.3},
			},
			check: func(t *testing.T, payloads []forecastPayload) {
				byQuestion := map[int64]float64{}
				for _, p := range payloads {
					byQuestion[p.Question] = *p.ProbabilityYes
				}
				if len(payloads) != 3 {
					t.Fatalf("expected 3 payloads, got %d", len(payloads))
				}
				// The re-forecast parent goes to its own question; the
				// reaffirmed child stays untouched.
				if byQuestion[17] != 0.2 {
					t.Errorf("parent forecast not submitted: %v", byQuestion)
				}
				if _, ok := byQuestion[18]; ok {
					t.Errorf("reaffirmed child must not be submitted: %v", byQuestion)
				}
				if byQuestion[19] != 0.6 || byQuestion[20] != 0.3 {
					t.Errorf("branch forecasts wrong: %v", byQuestion)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payloads, err := buildForecastPayloads(tt.question, tt.value)
			if err != nil {
				t.Fatalf("buildForecastPayloads returned error: %v", err)
			}
			tt.check(t, payloads)
		})
	}
}

func TestSubmitForecastNumericSends201PointCDF(t *testing.T) {
	q := &models.Question{
		ID:         15,
		Type:       models.QuestionTypeNumeric,
		LowerBound: 0,
		UpperBound: 100,
	}
	dist, err := models.NewNumericDistribution(models.PercentileList{
		{Percentile: 10, Value: 20},
		{Percentile: 50, Value: 50},
		{Percentile: 90, Value: 80},
	}, q)
	if err != nil {
		t.Fatalf("building distribution: %v", err)
	}

	payloads, err := buildForecastPayloads(q, dist)
	if err != nil {
		t.Fatalf("buildForecastPayloads returned error: %v", err)
	}
	if len(payloads[0].ContinuousCDF) != 201 {
		t.Errorf("expected 201-point CDF, got %d points", len(payloads[0].ContinuousCDF))
	}
}

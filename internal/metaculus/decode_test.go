package metaculus

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ruslanv/metacbot/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeBinaryPost(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 578,
		"title": "Will humans go extinct before 2100?",
		"published_at": "2018-11-01T00:00:00Z",
		"question": {
			"id": 578,
			"type": "binary",
			"title": "Will humans go extinct before 2100?",
			"description": "Background text.",
			"resolution_criteria": "Resolves Yes if...",
			"fine_print": "Some fine print.",
			"my_forecasts": {
				"latest": {
					"start_time": 1710000000,
					"end_time": null,
					"probability_yes": 0.03
				}
			}
		},
		"projects": {
			"category": [
				{"slug": "natural-sciences", "name": "Natural Sciences"},
				{"slug": "artificial-intelligence", "name": "AI"}
			]
		}
	}`)

	q, err := decodePost(raw, discard())
	if err != nil {
		t.Fatalf("decodePost returned error: %v", err)
	}
	if q == nil {
		t.Fatal("expected a question")
	}
	if q.Type != models.QuestionTypeBinary {
		t.Errorf("type = %q, want binary", q.Type)
	}
	if q.Text != "Will humans go extinct before 2100?" {
		t.Errorf("unexpected text %q", q.Text)
	}
	if q.ResolutionCriteria != "Resolves Yes if..." {
		t.Errorf("unexpected resolution criteria %q", q.ResolutionCriteria)
	}
	if len(q.CategorySlugs) != 2 || q.CategorySlugs[0] != "natural-sciences" {
		t.Errorf("unexpected categories %v", q.CategorySlugs)
	}
	if !q.AlreadyForecasted {
		t.Error("expected AlreadyForecasted")
	}
	prior := q.LatestForecast()
	if prior == nil || prior.ProbabilityYes == nil || *prior.ProbabilityYes != 0.03 {
		t.Errorf("unexpected prior forecast %+v", prior)
	}
	if prior.TimestampEnd != nil {
		t.Errorf("expected open-ended validity, got %v", prior.TimestampEnd)
	}
}

func TestDecodeNumericPost(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 14333,
		"title": "Age of oldest human as of 2100?",
		"question": {
			"id": 14333,
			"type": "numeric",
			"title": "Age of oldest human as of 2100?",
			"unit": "years",
			"open_lower_bound": false,
			"open_upper_bound": true,
			"scaling": {"range_min": 100, "range_max": 200, "zero_point": null}
		}
	}`)

	q, err := decodePost(raw, discard())
	if err != nil {
		t.Fatalf("decodePost returned error: %v", err)
	}
	if q.Type != models.QuestionTypeNumeric {
		t.Errorf("type = %q, want numeric", q.Type)
	}
	if q.LowerBound != 100 || q.UpperBound != 200 {
		t.Errorf("bounds = [%v, %v], want [100, 200]", q.LowerBound, q.UpperBound)
	}
	if q.OpenLowerBound || !q.OpenUpperBound {
		t.Errorf("bound flags = (%t, %t), want (false, true)", q.OpenLowerBound, q.OpenUpperBound)
	}
	if q.UnitOfMeasure != "years" {
		t.Errorf("unit = %q, want years", q.UnitOfMeasure)
	}
}

func TestDecodeConditionalPost(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 9000,
		"title": "If X happens, will Y happen?",
		"conditional": {
			"condition": {"id": 1, "type": "binary", "title": "Will X happen?"},
			"condition_child": {"id": 2, "type": "binary", "title": "Will Y happen?"},
			"question_yes": {"id": 3, "type": "binary", "title": "Y given X"},
			"question_no": {"id": 4, "type": "binary", "title": "Y given not X"}
		},
		"projects": {"category": [{"slug": "geopolitics"}]}
	}`)

	q, err := decodePost(raw, discard())
	if err != nil {
		t.Fatalf("decodePost returned error: %v", err)
	}
	if q.Type != models.QuestionTypeConditional {
		t.Fatalf("type = %q, want conditional", q.Type)
	}
	if q.Parent == nil || q.Child == nil || q.QuestionYes == nil || q.QuestionNo == nil {
		t.Fatal("expected all four sub-questions")
	}
	if q.QuestionYes.ConditionalRole != "yes" || q.QuestionNo.ConditionalRole != "no" {
		t.Errorf("branch roles = (%q, %q)", q.QuestionYes.ConditionalRole, q.QuestionNo.ConditionalRole)
	}
	if q.Parent.ConditionalRole != "" || q.Child.ConditionalRole != "" {
		t.Error("parent/child must not carry a branch role")
	}
	if len(q.Child.CategorySlugs) != 1 || q.Child.CategorySlugs[0] != "geopolitics" {
		t.Errorf("categories not propagated to sub-questions: %v", q.Child.CategorySlugs)
	}
}

func TestDecodeMalformedCategoriesYieldsEmpty(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 42,
		"title": "Q",
		"question": {"id": 42, "type": "binary", "title": "Q"},
		"projects": {"category": {"slug": "not-a-list"}}
	}`)

	q, err := decodePost(raw, discard())
	if err != nil {
		t.Fatalf("decodePost returned error: %v", err)
	}
	if len(q.CategorySlugs) != 0 {
		t.Errorf("expected empty categories, got %v", q.CategorySlugs)
	}
}

func TestDecodeNotebookPostIsSkipped(t *testing.T) {
	raw := json.RawMessage(`{"id": 7, "title": "A notebook", "notebook": {"markdown": "..."}}`)

	q, err := decodePost(raw, discard())
	if err != nil {
		t.Fatalf("decodePost returned error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil question for notebook post, got %+v", q)
	}
}

func TestDecodeUnsupportedTypeErrors(t *testing.T) {
	raw := json.RawMessage(`{"id": 8, "title": "Q", "question": {"id": 8, "type": "mystery", "title": "Q"}}`)

	if _, err := decodePost(raw, discard()); err == nil {
		t.Fatal("expected error for unsupported question type")
	}
}

func TestPostURLToID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12345", want: 12345},
		{input: "https://www.metaculus.com/questions/578/human-extinction-by-2100/", want: 578},
		{input: "https://www.metaculus.com/c/diffusion-community/38880/how-many-strikes/", want: 38880},
		{input: "https://www.metaculus.com/questions/578", want: 578},
		{input: "not-a-url", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := PostURLToID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("PostURLToID(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("PostURLToID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

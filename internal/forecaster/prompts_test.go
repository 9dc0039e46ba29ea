package forecaster

import (
	"strings"
	"testing"
	"time"

	"github.com/ruslanv/metacbot/internal/models"
)

var promptDay = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func TestBinaryPromptAnswerGrammar(t *testing.T) {
	q := &models.Question{
		Text:               "Will it rain tomorrow?",
		Background:         "Clouds gathering.",
		ResolutionCriteria: "Resolves Yes if rain falls.",
	}

	prompt := binaryPrompt(q, "research text", "", promptDay)

	for _, want := range []string{
		q.Text,
		q.Background,
		"research text",
		"Today is 2026-08-25.",
		`The last thing you write is your final answer as: "Probability: ZZ%", 0-100`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Additional Forecasting Guidelines") {
		t.Error("empty forecast context must not add a guidelines section")
	}
	if strings.Contains(prompt, "**CHILD**") {
		t.Error("non-conditional question must not carry the conditional disclaimer")
	}
}

func TestBinaryPromptIncludesForecastContext(t *testing.T) {
	q := &models.Question{Text: "Q"}
	prompt := binaryPrompt(q, "", "Weigh base rates heavily.", promptDay)

	if !strings.Contains(prompt, "Additional Forecasting Guidelines:\nWeigh base rates heavily.") {
		t.Error("forecast context missing from prompt")
	}
}

func TestConditionalDisclaimerOnlyForBranches(t *testing.T) {
	branch := &models.Question{Text: "Q", ConditionalRole: "yes"}
	prompt := binaryPrompt(branch, "", "", promptDay)
	if !strings.Contains(prompt, "only forecast the **CHILD** question") {
		t.Error("branch question must carry the conditional disclaimer")
	}

	parent := &models.Question{Text: "Q"}
	if strings.Contains(binaryPrompt(parent, "", "", promptDay), "**CHILD**") {
		t.Error("plain question must not carry the conditional disclaimer")
	}
}

func TestMultipleChoicePromptListsOptions(t *testing.T) {
	q := &models.Question{
		Text:    "How many?",
		Options: []string{"Zero", "One", "Two or more"},
	}
	prompt := multipleChoicePrompt(q, "", "", promptDay)

	if !strings.Contains(prompt, "The options are: ['Zero', 'One', 'Two or more']") {
		t.Error("prompt missing declared options")
	}
	if !strings.Contains(prompt, "Option_A: Probability_A") {
		t.Error("prompt missing the answer grammar")
	}
}

func TestNumericPromptPercentileGrammarAndUnits(t *testing.T) {
	q := &models.Question{
		Text:          "How many widgets?",
		Type:          models.QuestionTypeNumeric,
		UnitOfMeasure: "widgets",
		LowerBound:    0,
		UpperBound:    1000,
	}
	prompt := numericPrompt(q, "", "", promptDay)

	for _, want := range []string{
		"Units for answer: widgets",
		"Percentile 5: XX (lowest number value)",
		"Percentile 50: XX",
		"Percentile 95: XX (highest number value)",
		"Never use scientific notation.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNumericPromptInfersMissingUnits(t *testing.T) {
	q := &models.Question{Text: "Q", Type: models.QuestionTypeNumeric}
	prompt := numericPrompt(q, "", "", promptDay)
	if !strings.Contains(prompt, "Units for answer: Not stated (please infer this)") {
		t.Error("missing units must ask the model to infer them")
	}
}

func TestBoundMessages(t *testing.T) {
	nominal := 90.0
	tests := []struct {
		name      string
		question  *models.Question
		wantUpper string
		wantLower string
	}{
		{
			name: "closed bounds are hard limits",
			question: &models.Question{
				Type: models.QuestionTypeNumeric, LowerBound: 0, UpperBound: 100, UnitOfMeasure: "points",
			},
			wantUpper: "The outcome can not be higher than 100 points.",
			wantLower: "The outcome can not be lower than 0 points.",
		},
		{
			name: "open bounds are creator expectations",
			question: &models.Question{
				Type: models.QuestionTypeNumeric, LowerBound: 0, UpperBound: 100, UnitOfMeasure: "points",
				OpenLowerBound: true, OpenUpperBound: true,
			},
			wantUpper: "The question creator thinks the number is likely not higher than 100 points.",
			wantLower: "The question creator thinks the number is likely not lower than 0 points.",
		},
		{
			name: "nominal bounds preferred for display",
			question: &models.Question{
				Type: models.QuestionTypeNumeric, LowerBound: 0, UpperBound: 100, UnitOfMeasure: "points",
				NominalUpperBound: &nominal,
			},
			wantUpper: "The outcome can not be higher than 90 points.",
			wantLower: "The outcome can not be lower than 0 points.",
		},
		{
			name: "date bounds render as dates",
			question: &models.Question{
				Type: models.QuestionTypeDate, LowerBound: 1704067200, UpperBound: 1956528000,
			},
			wantUpper: "The outcome can not be higher than 2032-01-01 .",
			wantLower: "The outcome can not be lower than 2024-01-01 .",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upper, lower := boundMessages(tt.question)
			if upper != tt.wantUpper {
				t.Errorf("upper = %q, want %q", upper, tt.wantUpper)
			}
			if lower != tt.wantLower {
				t.Errorf("lower = %q, want %q", lower, tt.wantLower)
			}
		})
	}
}

func TestResearchPromptIncludesContext(t *testing.T) {
	f := New(&scriptedModel{responses: []string{""}}, nil, stubContexts{research: "Check primary sources."}, nil, discard())
	q := &models.Question{Text: "Q", ResolutionCriteria: "criteria", FinePrint: "details"}

	prompt := f.ResearchPrompt(q)
	for _, want := range []string{
		"You are an assistant to a superforecaster.",
		"criteria",
		"details",
		"Additional Research Guidelines:\nCheck primary sources.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

type stubContexts struct {
	research string
	forecast string
}

func (s stubContexts) ResearchContext(*models.Question) string { return s.research }
func (s stubContexts) ForecastContext(*models.Question) string { return s.forecast }

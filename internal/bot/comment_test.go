package bot

import (
	"strings"
	"testing"
)

func TestInsertUsedContextsAfterBotName(t *testing.T) {
	explanation := "# SUMMARY\n*Question*: Q\n*Bot Name*: metacbot\n\nBody text.\n"

	got := InsertUsedContexts(explanation, []string{"General", "Politics"})

	want := "# SUMMARY\n*Question*: Q\n*Bot Name*: metacbot\n*Used Contexts*: General, Politics\n\n\nBody text.\n"
	if got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestInsertUsedContextsFallsBackToSummary(t *testing.T) {
	explanation := "# SUMMARY\n*Question*: Q\n\nBody text.\n"

	got := InsertUsedContexts(explanation, []string{"General"})

	idx := strings.Index(got, "*Used Contexts*: General")
	if idx < 0 {
		t.Fatalf("context line missing:\n%q", got)
	}
	if idx < strings.Index(got, "# SUMMARY") {
		t.Error("context line must come after the summary header")
	}
	if strings.Index(got, "Body text.") < idx {
		t.Error("context line must come before the body")
	}
}

func TestInsertUsedContextsPrependsWithoutMarkers(t *testing.T) {
	got := InsertUsedContexts("Plain text only.", []string{"General"})
	if !strings.HasPrefix(got, "*Used Contexts*: General\n\n") {
		t.Errorf("expected prepended context line, got %q", got)
	}
	if !strings.HasSuffix(got, "Plain text only.") {
		t.Errorf("original text lost: %q", got)
	}
}

func TestInsertUsedContextsNoContextsIsNoop(t *testing.T) {
	explanation := "# SUMMARY\n*Bot Name*: metacbot\n\nBody.\n"
	if got := InsertUsedContexts(explanation, nil); got != explanation {
		t.Errorf("explanation changed without contexts:\n%q", got)
	}
}

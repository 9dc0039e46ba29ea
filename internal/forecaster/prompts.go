package forecaster

import (
	"fmt"
	"strings"
	"time"

	"github.com/ruslanv/metacbot/internal/models"
)

// researchPrompt asks the research provider for a news rundown without a
// forecast of its own. Research context guidelines are appended when present.
func researchPrompt(q *models.Question, researchContext string) string {
	var b strings.Builder
	b.WriteString("You are an assistant to a superforecaster.\n")
	b.WriteString("The superforecaster will give you a question they intend to forecast on.\n")
	b.WriteString("Generate a concise but detailed rundown of the most relevant news, including if the question would resolve Yes or No based on current information.\n")
	b.WriteString("You do not produce forecasts yourself.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", q.Text)
	fmt.Fprintf(&b, "This question's outcome will be determined by the specific criteria below:\n%s\n\n", q.ResolutionCriteria)
	fmt.Fprintf(&b, "Pay attention to these details:\n%s\n", q.FinePrint)
	if researchContext != "" {
		fmt.Fprintf(&b, "\nAdditional Research Guidelines:\n%s\n", researchContext)
	}
	return b.String()
}

func binaryPrompt(q *models.Question, research, forecastContext string, today time.Time) string {
	var b strings.Builder
	b.WriteString("You are a professional forecaster interviewing for a job.\n\n")
	fmt.Fprintf(&b, "Your interview question is:\n%s\n\n", q.Text)
	fmt.Fprintf(&b, "Question background:\n%s\n\n", q.Background)
	fmt.Fprintf(&b, "This question's outcome will be determined by the specific criteria below. These criteria have not yet been satisfied:\n%s\n\n", q.ResolutionCriteria)
	fmt.Fprintf(&b, "%s\n\n", q.FinePrint)
	fmt.Fprintf(&b, "Your research assistant says:\n%s\n\n", research)
	fmt.Fprintf(&b, "Today is %s.\n", today.Format("2006-01-02"))
	writeForecastContext(&b, forecastContext)
	b.WriteString("\nBefore answering you write:\n")
	b.WriteString("(a) The time left until the outcome to the question is known.\n")
	b.WriteString("(b) The status quo outcome if nothing changed.\n")
	b.WriteString("(c) A brief description of a scenario that results in a No outcome.\n")
	b.WriteString("(d) A brief description of a scenario that results in a Yes outcome.\n\n")
	b.WriteString("You write your rationale remembering that good forecasters put extra weight on the status quo outcome since the world changes slowly most of the time.\n")
	writeConditionalDisclaimer(&b, q)
	b.WriteString("\nThe last thing you write is your final answer as: \"Probability: ZZ%\", 0-100\n")
	return b.String()
}

func multipleChoicePrompt(q *models.Question, research, forecastContext string, today time.Time) string {
	options := formatOptions(q.Options)

	var b strings.Builder
	b.WriteString("You are a professional forecaster interviewing for a job.\n\n")
	fmt.Fprintf(&b, "Your interview question is:\n%s\n\n", q.Text)
	fmt.Fprintf(&b, "The options are: %s\n\n", options)
	fmt.Fprintf(&b, "Background:\n%s\n\n", q.Background)
	fmt.Fprintf(&b, "%s\n\n", q.ResolutionCriteria)
	fmt.Fprintf(&b, "%s\n\n", q.FinePrint)
	fmt.Fprintf(&b, "Your research assistant says:\n%s\n\n", research)
	fmt.Fprintf(&b, "Today is %s.\n", today.Format("2006-01-02"))
	writeForecastContext(&b, forecastContext)
	b.WriteString("\nBefore answering you write:\n")
	b.WriteString("(a) The time left until the outcome to the question is known.\n")
	b.WriteString("(b) The status quo outcome if nothing changed.\n")
	b.WriteString("(c) A description of an scenario that results in an unexpected outcome.\n\n")
	writeConditionalDisclaimer(&b, q)
	b.WriteString("You write your rationale remembering that (1) good forecasters put extra weight on the status quo outcome since the world changes slowly most of the time, and (2) good forecasters leave some moderate probability on most options to account for unexpected outcomes.\n\n")
	fmt.Fprintf(&b, "The last thing you write is your final probabilities for the N options in this order %s as:\n", options)
	b.WriteString("Option_A: Probability_A\n")
	b.WriteString("Option_B: Probability_B\n")
	b.WriteString("...\n")
	b.WriteString("Option_N: Probability_N\n")
	return b.String()
}

func numericPrompt(q *models.Question, research, forecastContext string, today time.Time) string {
	upperMsg, lowerMsg := boundMessages(q)

	units := q.UnitOfMeasure
	if units == "" {
		units = "Not stated (please infer this)"
	}

	var b strings.Builder
	b.WriteString("You are a professional forecaster interviewing for a job.\n\n")
	fmt.Fprintf(&b, "Your interview question is:\n%s\n\n", q.Text)
	fmt.Fprintf(&b, "Background:\n%s\n\n", q.Background)
	fmt.Fprintf(&b, "%s\n\n", q.ResolutionCriteria)
	fmt.Fprintf(&b, "%s\n\n", q.FinePrint)
	fmt.Fprintf(&b, "Units for answer: %s\n\n", units)
	fmt.Fprintf(&b, "Your research assistant says:\n%s\n\n", research)
	fmt.Fprintf(&b, "Today is %s.\n", today.Format("2006-01-02"))
	writeForecastContext(&b, forecastContext)
	fmt.Fprintf(&b, "\n%s\n%s\n\n", lowerMsg, upperMsg)
	b.WriteString("Formatting Instructions:\n")
	b.WriteString("- Note the units requested and give your answer in these units (e.g. whether you represent a number as 1,000,000 or 1 million).\n")
	b.WriteString("- Never use scientific notation.\n")
	b.WriteString("- Always start with a smaller number (more negative if negative) and then increase from there. The value for percentile 10 should always be less than the value for percentile 20, and so on.\n\n")
	writeNumericScaffolding(&b)
	writeConditionalDisclaimer(&b, q)
	b.WriteString("\nThe last thing you write is your final answer as:\n\"\n")
	b.WriteString("Percentile 5: XX (lowest number value)\n")
	for _, rank := range []int{10, 20, 30, 40, 50, 60, 70, 80, 90} {
		fmt.Fprintf(&b, "Percentile %d: XX\n", rank)
	}
	b.WriteString("Percentile 95: XX (highest number value)\n\"\n")
	return b.String()
}

func datePrompt(q *models.Question, research, forecastContext string, today time.Time) string {
	upperMsg, lowerMsg := boundMessages(q)

	var b strings.Builder
	b.WriteString("You are a professional forecaster interviewing for a job.\n\n")
	fmt.Fprintf(&b, "Your interview question is:\n%s\n\n", q.Text)
	fmt.Fprintf(&b, "Background:\n%s\n\n", q.Background)
	fmt.Fprintf(&b, "%s\n\n", q.ResolutionCriteria)
	fmt.Fprintf(&b, "%s\n\n", q.FinePrint)
	fmt.Fprintf(&b, "Your research assistant says:\n%s\n\n", research)
	fmt.Fprintf(&b, "Today is %s.\n", today.Format("2006-01-02"))
	writeForecastContext(&b, forecastContext)
	fmt.Fprintf(&b, "\n%s\n%s\n\n", lowerMsg, upperMsg)
	b.WriteString("Formatting Instructions:\n")
	b.WriteString("- This is a date question, and as such, the answer must be expressed in terms of dates.\n")
	b.WriteString("- The dates must be written in the format of YYYY-MM-DD. If hours matter, please append the date with the hour in UTC and military time: YYYY-MM-DDTHH:MM:SSZ. No other formatting is allowed.\n")
	b.WriteString("- Always start with a lower date chronologically and then increase from there.\n")
	b.WriteString("- Do NOT forget this. The dates must be written in chronological order starting at the earliest time at percentile 10 and increasing from there.\n\n")
	writeNumericScaffolding(&b)
	writeConditionalDisclaimer(&b, q)
	b.WriteString("\nThe last thing you write is your final answer as:\n\"\n")
	b.WriteString("Percentile 5: YYYY-MM-DD (oldest date)\n")
	for _, rank := range []int{10, 20, 30, 40, 50, 60, 70, 80, 90} {
		fmt.Fprintf(&b, "Percentile %d: YYYY-MM-DD\n", rank)
	}
	b.WriteString("Percentile 95: YYYY-MM-DD (newest date)\n\"\n")
	return b.String()
}

func writeForecastContext(b *strings.Builder, forecastContext string) {
	if forecastContext != "" {
		fmt.Fprintf(b, "\nAdditional Forecasting Guidelines:\n%s\n", forecastContext)
	}
}

// writeNumericScaffolding writes the pre-answer reasoning steps shared by
// numeric and date prompts.
func writeNumericScaffolding(b *strings.Builder) {
	b.WriteString("Before answering you write:\n")
	b.WriteString("(a) The time left until the outcome to the question is known.\n")
	b.WriteString("(b) The outcome if nothing changed.\n")
	b.WriteString("(c) The outcome if the current trend continued.\n")
	b.WriteString("(d) The expectations of experts and markets.\n")
	b.WriteString("(e) A brief description of an unexpected scenario that results in a low outcome.\n")
	b.WriteString("(f) A brief description of an unexpected scenario that results in a high outcome.\n")
}

// writeConditionalDisclaimer restricts the model to the child question when
// forecasting the branch of a conditional pair.
func writeConditionalDisclaimer(b *strings.Builder, q *models.Question) {
	if !q.IsConditionalChild() {
		return
	}
	b.WriteString("As you are given a conditional question with a parent and child, you are to only forecast the **CHILD** question, given the parent question's resolution.\n")
	b.WriteString("You never re-forecast the parent question under any circumstances, but you use probabilistic reasoning, strongly considering the parent question's resolution, to forecast the child question.\n")
}

// boundMessages renders the range guidance for numeric and date questions.
// Open bounds are phrased as the question creator's expectation, closed bounds
// as a hard limit. Nominal bounds take precedence for display when present.
func boundMessages(q *models.Question) (upper, lower string) {
	var upperDisplay, lowerDisplay, units string
	if q.Type == models.QuestionTypeDate {
		upperDisplay = time.Unix(int64(q.UpperBound), 0).UTC().Format("2006-01-02")
		lowerDisplay = time.Unix(int64(q.LowerBound), 0).UTC().Format("2006-01-02")
	} else {
		upperNum := q.UpperBound
		if q.NominalUpperBound != nil {
			upperNum = *q.NominalUpperBound
		}
		lowerNum := q.LowerBound
		if q.NominalLowerBound != nil {
			lowerNum = *q.NominalLowerBound
		}
		upperDisplay = formatBound(upperNum)
		lowerDisplay = formatBound(lowerNum)
		units = q.UnitOfMeasure
	}

	if q.OpenUpperBound {
		upper = fmt.Sprintf("The question creator thinks the number is likely not higher than %s %s.", upperDisplay, units)
	} else {
		upper = fmt.Sprintf("The outcome can not be higher than %s %s.", upperDisplay, units)
	}
	if q.OpenLowerBound {
		lower = fmt.Sprintf("The question creator thinks the number is likely not lower than %s %s.", lowerDisplay, units)
	} else {
		lower = fmt.Sprintf("The outcome can not be lower than %s %s.", lowerDisplay, units)
	}
	return upper, lower
}

func formatBound(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// formatOptions renders the declared options the way they appear in parsing
// instructions, e.g. ['Zero', 'One', 'More than one'].
func formatOptions(options []string) string {
	quoted := make([]string, len(options))
	for i, opt := range options {
		quoted[i] = "'" + opt + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Package bot orchestrates a forecasting run: fetch questions, research and
// forecast each one under a concurrency limit, then publish and archive the
// resulting reports.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ruslanv/metacbot/internal/forecaster"
	"github.com/ruslanv/metacbot/internal/metrics"
	"github.com/ruslanv/metacbot/internal/models"
)

// Platform is the forecasting platform the bot reads questions from and
// publishes forecasts to.
type Platform interface {
	ListTournamentQuestions(ctx context.Context, tournament string) ([]*models.Question, error)
	SubmitForecast(ctx context.Context, q *models.Question, value models.PredictionValue) error
	PostComment(ctx context.Context, postID int64, text string, private bool) error
}

// QuestionForecaster produces one reasoned prediction for a question.
type QuestionForecaster interface {
	ResearchPrompt(q *models.Question) string
	Forecast(ctx context.Context, q *models.Question, research string) (models.ReasonedPrediction, error)
}

// Researcher gathers background research for a research prompt.
type Researcher interface {
	Research(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Archiver persists completed reports. Implemented by the optional Postgres
// archive.
type Archiver interface {
	SaveReport(ctx context.Context, report models.ForecastReport) error
}

// CostMeter reports the running cost of model calls.
type CostMeter interface {
	TotalCostUSD() float64
}

// Settings configure one bot run.
type Settings struct {
	BotName                  string
	PredictionsPerQuestion   int
	MaxConcurrentQuestions   int64
	PublishReports           bool
	SkipPreviouslyForecasted bool
	ExtraMetadata            bool
	ReportsFolder            string
}

// ReportResult is the outcome of forecasting one question: a report or the
// error that stopped it.
type ReportResult struct {
	Question *models.Question
	Report   *models.ForecastReport
	Err      error
}

// Bot runs the forecast pipeline over a set of questions.
type Bot struct {
	platform   Platform
	forecaster QuestionForecaster
	researcher Researcher
	contexts   *ContextLoader
	archive    Archiver
	costs      CostMeter
	collector  *metrics.Collector
	settings   Settings
	logger     *slog.Logger
	sem        *semaphore.Weighted
	now        func() time.Time
}

// New assembles a bot. contexts, archive, costs and collector may be nil.
func New(platform Platform, qf QuestionForecaster, researcher Researcher, contexts *ContextLoader, archive Archiver, costs CostMeter, collector *metrics.Collector, settings Settings, logger *slog.Logger) *Bot {
	if settings.PredictionsPerQuestion < 1 {
		settings.PredictionsPerQuestion = 1
	}
	if settings.MaxConcurrentQuestions < 1 {
		settings.MaxConcurrentQuestions = 1
	}
	return &Bot{
		platform:   platform,
		forecaster: qf,
		researcher: researcher,
		contexts:   contexts,
		archive:    archive,
		costs:      costs,
		collector:  collector,
		settings:   settings,
		logger:     logger,
		sem:        semaphore.NewWeighted(settings.MaxConcurrentQuestions),
		now:        time.Now,
	}
}

// ForecastOnTournament forecasts every open question in a tournament.
func (b *Bot) ForecastOnTournament(ctx context.Context, tournament string) ([]ReportResult, error) {
	questions, err := b.platform.ListTournamentQuestions(ctx, tournament)
	if err != nil {
		return nil, fmt.Errorf("listing questions for %q: %w", tournament, err)
	}
	return b.ForecastQuestions(ctx, questions), nil
}

// ForecastQuestions forecasts the given questions under the configured
// concurrency limit. One question failing never aborts the others; failures
// come back as ReportResult errors.
func (b *Bot) ForecastQuestions(ctx context.Context, questions []*models.Question) []ReportResult {
	if b.settings.SkipPreviouslyForecasted {
		kept := questions[:0:0]
		for _, q := range questions {
			if q.AlreadyForecasted {
				b.logger.Info("skipping previously forecasted question", "url", q.PageURL)
				continue
			}
			kept = append(kept, q)
		}
		questions = kept
	}

	results := make([]ReportResult, len(questions))
	var g errgroup.Group
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			if err := b.sem.Acquire(ctx, 1); err != nil {
				results[i] = ReportResult{Question: q, Err: err}
				return nil
			}
			defer b.sem.Release(1)

			report, err := b.runQuestion(ctx, q)
			results[i] = ReportResult{Question: q, Report: report, Err: err}
			b.observeQuestion(q, err)
			return nil
		})
	}
	g.Wait()
	return results
}

func (b *Bot) runQuestion(ctx context.Context, q *models.Question) (*models.ForecastReport, error) {
	started := b.now()
	costBefore := b.totalCost()

	research, err := b.runResearch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("question %d research: %w", q.ID, err)
	}

	passes := make([]models.ReasonedPrediction, 0, b.settings.PredictionsPerQuestion)
	values := make([]models.PredictionValue, 0, b.settings.PredictionsPerQuestion)
	for pass := 0; pass < b.settings.PredictionsPerQuestion; pass++ {
		prediction, err := b.forecaster.Forecast(ctx, q, research)
		if err != nil {
			return nil, err
		}
		passes = append(passes, prediction)
		values = append(values, prediction.Value)
	}

	final, err := forecaster.Aggregate(q, values)
	if err != nil {
		return nil, err
	}

	report := &models.ForecastReport{
		ID:           uuid.New().String(),
		Question:     q,
		Prediction:   final,
		Research:     research,
		Passes:       passes,
		PriceUSD:     b.totalCost() - costBefore,
		MinutesTaken: b.now().Sub(started).Minutes(),
		CreatedAt:    b.now().UTC(),
	}
	if b.contexts != nil {
		report.UsedContexts = b.contexts.UsedContexts(q)
	}
	report.Explanation = InsertUsedContexts(b.buildExplanation(report), report.UsedContexts)

	if b.settings.PublishReports {
		if err := b.publish(ctx, report); err != nil {
			return nil, err
		}
	}
	b.saveToFolder(report)
	if b.archive != nil {
		if err := b.archive.SaveReport(ctx, *report); err != nil {
			b.logger.Error("failed to archive report", "url", q.PageURL, "error", err)
		}
	}

	b.logger.Info("question complete",
		"url", q.PageURL,
		"prediction", final.Readable(),
		"cost_usd", report.PriceUSD,
		"minutes", report.MinutesTaken)
	return report, nil
}

func (b *Bot) runResearch(ctx context.Context, q *models.Question) (string, error) {
	// Conditional questions research their shared topic through the child.
	target := q
	if q.Type == models.QuestionTypeConditional && q.Child != nil {
		target = q.Child
	}

	prompt := b.forecaster.ResearchPrompt(target)
	research, err := b.researcher.Research(ctx, prompt)
	if err != nil {
		return "", err
	}
	b.logger.Info("research complete", "url", q.PageURL, "researcher", b.researcher.Name(), "chars", len(research))
	return research, nil
}

func (b *Bot) publish(ctx context.Context, report *models.ForecastReport) error {
	q := report.Question
	if err := b.platform.SubmitForecast(ctx, q, report.Prediction); err != nil {
		return fmt.Errorf("question %d submit: %w", q.ID, err)
	}
	if err := b.platform.PostComment(ctx, q.PostID, report.Explanation, true); err != nil {
		return fmt.Errorf("question %d comment: %w", q.ID, err)
	}
	b.logger.Info("published forecast", "url", q.PageURL)
	return nil
}

// buildExplanation renders the report comment: a summary header, the
// research, and every forecast pass's rationale.
func (b *Bot) buildExplanation(report *models.ForecastReport) string {
	var sb strings.Builder
	sb.WriteString("# SUMMARY\n")
	fmt.Fprintf(&sb, "*Question*: %s\n", report.Question.Title)
	fmt.Fprintf(&sb, "*URL*: %s\n", report.Question.PageURL)
	fmt.Fprintf(&sb, "*Bot Name*: %s\n\n", b.settings.BotName)
	fmt.Fprintf(&sb, "*Final Prediction*: %s\n", report.Prediction.Readable())
	if b.settings.ExtraMetadata {
		fmt.Fprintf(&sb, "*Total Cost*: $%.2f\n", report.PriceUSD)
		fmt.Fprintf(&sb, "*Time Spent*: %.2f minutes\n", report.MinutesTaken)
	}
	sb.WriteString("\n")

	sb.WriteString("# RESEARCH\n")
	sb.WriteString(report.Research)
	sb.WriteString("\n\n# FORECASTS\n")
	for i, pass := range report.Passes {
		fmt.Fprintf(&sb, "## Forecast %d\n*Prediction*: %s\n\n%s\n\n", i+1, pass.Value.Readable(), pass.Reasoning)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func (b *Bot) saveToFolder(report *models.ForecastReport) {
	if b.settings.ReportsFolder == "" {
		return
	}
	if err := os.MkdirAll(b.settings.ReportsFolder, 0o755); err != nil {
		b.logger.Error("failed to create reports folder", "error", err)
		return
	}

	path := filepath.Join(b.settings.ReportsFolder,
		fmt.Sprintf("%s-question-%d.json", report.CreatedAt.Format("20060102-150405"), report.Question.ID))
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		b.logger.Error("failed to encode report", "error", err)
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		b.logger.Error("failed to save report", "path", path, "error", err)
		return
	}
	b.logger.Info("saved report", "path", path)
}

func (b *Bot) observeQuestion(q *models.Question, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	b.collector.ObserveQuestion(string(q.Type), status)
}

func (b *Bot) totalCost() float64 {
	if b.costs == nil {
		return 0
	}
	return b.costs.TotalCostUSD()
}

// LogReportSummary logs one line per result plus totals, mirroring the final
// output of a run.
func (b *Bot) LogReportSummary(results []ReportResult) {
	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			b.logger.Error("question failed", "url", r.Question.PageURL, "error", r.Err)
			continue
		}
		succeeded++
		b.logger.Info("question forecasted",
			"url", r.Question.PageURL,
			"prediction", r.Report.Prediction.Readable(),
			"cost_usd", r.Report.PriceUSD)
	}
	b.logger.Info("run complete", "succeeded", succeeded, "failed", failed, "total_cost_usd", b.totalCost())
}

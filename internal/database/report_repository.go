package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ruslanv/metacbot/internal/models"
)

// ReportRepository archives forecast reports and inference call records.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a repository over an open connection.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureSchema creates the archive tables if they do not exist yet.
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS forecast_reports (
			id UUID PRIMARY KEY,
			question_id BIGINT NOT NULL,
			post_id BIGINT NOT NULL,
			question_type TEXT NOT NULL,
			question_title TEXT NOT NULL,
			page_url TEXT NOT NULL DEFAULT '',
			prediction TEXT NOT NULL,
			research TEXT NOT NULL DEFAULT '',
			explanation TEXT NOT NULL DEFAULT '',
			used_contexts JSONB,
			price_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			minutes_taken DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_reports_question_id ON forecast_reports(question_id)`,
		`CREATE INDEX IF NOT EXISTS idx_forecast_reports_created_at ON forecast_reports(created_at)`,
		`CREATE TABLE IF NOT EXISTS inference_calls (
			id BIGSERIAL PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			operation TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inference_calls_created_at ON inference_calls(created_at)`,
	}

	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring archive schema: %w", err)
		}
	}
	return nil
}

// SaveReport archives one completed report.
func (r *ReportRepository) SaveReport(ctx context.Context, report models.ForecastReport) error {
	id := report.ID
	if id == "" {
		id = uuid.New().String()
	}

	var usedContexts []byte
	if len(report.UsedContexts) > 0 {
		var err error
		usedContexts, err = json.Marshal(report.UsedContexts)
		if err != nil {
			return fmt.Errorf("encoding used contexts: %w", err)
		}
	}

	prediction := ""
	if report.Prediction != nil {
		prediction = report.Prediction.Readable()
	}

	query := `
		INSERT INTO forecast_reports (
			id, question_id, post_id, question_type, question_title, page_url,
			prediction, research, explanation, used_contexts, price_usd,
			minutes_taken, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		id,
		report.Question.ID,
		report.Question.PostID,
		string(report.Question.Type),
		report.Question.Title,
		report.Question.PageURL,
		prediction,
		report.Research,
		report.Explanation,
		usedContexts,
		report.PriceUSD,
		report.MinutesTaken,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving forecast report: %w", err)
	}
	return nil
}

// SaveInferenceCall archives one model invocation record.
func (r *ReportRepository) SaveInferenceCall(ctx context.Context, call models.InferenceCall) error {
	query := `
		INSERT INTO inference_calls (
			provider, model, operation, input_tokens, output_tokens,
			tokens_used, cost_usd, latency_ms, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		call.Provider,
		call.Model,
		call.Operation,
		call.InputTokens,
		call.OutputTokens,
		call.TokensUsed,
		call.CostUSD,
		call.LatencyMs,
		call.Status,
		call.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("saving inference call: %w", err)
	}
	return nil
}

// TotalCost sums archived inference spend over all time.
func (r *ReportRepository) TotalCost(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_usd), 0) FROM inference_calls`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing inference cost: %w", err)
	}
	return total, nil
}

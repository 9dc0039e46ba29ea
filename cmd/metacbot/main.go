package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ruslanv/metacbot/internal/bot"
	"github.com/ruslanv/metacbot/internal/config"
	"github.com/ruslanv/metacbot/internal/database"
	"github.com/ruslanv/metacbot/internal/forecaster"
	"github.com/ruslanv/metacbot/internal/inference"
	"github.com/ruslanv/metacbot/internal/llm"
	"github.com/ruslanv/metacbot/internal/logging"
	"github.com/ruslanv/metacbot/internal/metaculus"
	"github.com/ruslanv/metacbot/internal/metrics"
	"github.com/ruslanv/metacbot/internal/models"
	"github.com/ruslanv/metacbot/internal/research"
	"github.com/ruslanv/metacbot/internal/structured"
)

func main() {
	// Local development credentials; absent in CI and production.
	_ = godotenv.Load()

	mode := flag.String("mode", "tournament", "run mode: tournament, metaculus_cup, test_questions, question")
	tournamentID := flag.String("tournament-id", "", "tournament ID or slug to forecast on (tournament mode); overrides the default AI Competition + MiniBench pair")
	question := flag.String("question", "", "question URL or numeric post ID to forecast on (question mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting metacbot", "mode", *mode, "bot", cfg.Bot.Name)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	// The Postgres archive is optional; without DATABASE_URL reports only go
	// to the log, the comment, and the reports folder.
	var db *sql.DB
	var repo *database.ReportRepository
	var store inference.CallStore
	var archive bot.Archiver
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		db, err = database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo = database.NewReportRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure archive schema", "error", err)
			os.Exit(1)
		}
		store = repo
		archive = repo
		logger.Info("archive database connected")
	}

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if db != nil {
				if err := database.HealthCheck(r.Context(), db); err != nil {
					http.Error(w, "database unreachable", http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	recorder := inference.NewRecorder(store, collector, logger)

	factory := &llm.Factory{
		OpenRouterAPIKey:  cfg.LLM.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.LLM.OpenRouterBaseURL,
		OpenAIAPIKey:      cfg.LLM.OpenAIAPIKey,
		AnthropicAPIKey:   cfg.LLM.AnthropicAPIKey,
		Recorder:          recorder,
		Logger:            logger,
	}
	registry, err := llm.NewRegistry(factory, cfg.LLM)
	if err != nil {
		logger.Error("failed to build model registry", "error", err)
		os.Exit(1)
	}

	var asknews *research.AskNewsClient
	if cfg.Research.AskNewsClientID != "" && cfg.Research.AskNewsClientSecret != "" {
		asknews = research.NewAskNewsClient(cfg.Research.AskNewsClientID, cfg.Research.AskNewsClientSecret, logger)
	}
	researcher, err := research.Resolve(cfg.Research.Identifier, factory, asknews, logger)
	if err != nil {
		logger.Error("failed to resolve researcher", "error", err)
		os.Exit(1)
	}
	logger.Info("research strategy selected", "researcher", researcher.Name())

	extractor := structured.NewExtractor(registry.Get("parser"), structured.DefaultValidationSamples, logger)
	contexts := bot.NewContextLoader(cfg.Bot.ContextDir, logger)
	qf := forecaster.New(registry.Get("default"), extractor, contexts, cfg.Bot.ForceReforecastInConditional, logger)

	client := metaculus.NewClient(metaculus.Config{
		Token:             cfg.Metaculus.Token,
		BaseURL:           cfg.Metaculus.BaseURL,
		RequestsPerSecond: cfg.Metaculus.RequestsPerSecond,
	}, logger)

	settings := bot.Settings{
		BotName:                  cfg.Bot.Name,
		PredictionsPerQuestion:   cfg.Bot.ResearchReportsPerQuestion * cfg.Bot.PredictionsPerResearchReport,
		MaxConcurrentQuestions:   int64(cfg.Bot.MaxConcurrentQuestions),
		PublishReports:           cfg.Bot.PublishReportsToMetaculus,
		SkipPreviouslyForecasted: cfg.Bot.SkipPreviouslyForecasted,
		ExtraMetadata:            cfg.Bot.ExtraMetadataInExplanation,
		ReportsFolder:            cfg.Bot.FolderToSaveReportsTo,
	}
	// Everything but the default tournament run re-forecasts on purpose.
	if *mode != "tournament" || *tournamentID != "" {
		settings.SkipPreviouslyForecasted = false
	}

	b := bot.New(client, qf, researcher, contexts, archive, recorder, collector, settings, logger)

	var results []bot.ReportResult
	switch *mode {
	case "tournament":
		if *tournamentID != "" {
			results, err = b.ForecastOnTournament(ctx, *tournamentID)
		} else {
			results, err = b.ForecastOnTournament(ctx, cfg.Metaculus.AICompetitionID)
			if err == nil {
				var minibench []bot.ReportResult
				minibench, err = b.ForecastOnTournament(ctx, cfg.Metaculus.MiniBenchID)
				results = append(results, minibench...)
			}
		}
	case "metaculus_cup":
		results, err = b.ForecastOnTournament(ctx, cfg.Metaculus.MetaculusCupID)
	case "test_questions":
		results, err = forecastByURL(ctx, b, client, metaculus.ExampleQuestionURLs)
	case "question":
		if *question == "" {
			logger.Error("--question is required for question mode")
			os.Exit(1)
		}
		results, err = forecastByURL(ctx, b, client, []string{*question})
	default:
		logger.Error("invalid run mode", "mode", *mode)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("forecast run failed", "error", err)
		os.Exit(1)
	}

	b.LogReportSummary(results)
	if repo != nil {
		if total, err := repo.TotalCost(ctx); err != nil {
			logger.Warn("failed to read archived spend", "error", err)
		} else {
			logger.Info("archived inference spend to date", "total_usd", total)
		}
	}
	for _, r := range results {
		if r.Err != nil {
			os.Exit(1)
		}
	}
}

// forecastByURL fetches specific questions by URL or numeric post ID and
// forecasts them.
func forecastByURL(ctx context.Context, b *bot.Bot, client *metaculus.Client, urls []string) ([]bot.ReportResult, error) {
	questions := make([]*models.Question, 0, len(urls))
	for _, url := range urls {
		postID, err := metaculus.PostURLToID(url)
		if err != nil {
			return nil, err
		}
		q, err := client.GetQuestion(ctx, postID)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return b.ForecastQuestions(ctx, questions), nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents runtime configuration, merged from an optional TOML file
// and environment variables. Environment values override the file.
type Config struct {
	Logging   LoggingConfig
	Metaculus MetaculusConfig
	LLM       LLMConfig
	Research  ResearchConfig
	Bot       BotConfig
	Metrics   MetricsConfig

	// DatabaseURL enables the optional Postgres archive when set.
	DatabaseURL string
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// MetaculusConfig holds platform client parameters.
type MetaculusConfig struct {
	Token             string
	BaseURL           string
	RequestsPerSecond float64

	AICompetitionID string
	MiniBenchID     string
	MetaculusCupID  string
}

// RoleSpec configures the model behind one LLM role.
type RoleSpec struct {
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	AllowedTries   int     `toml:"allowed_tries"`
}

// LLMConfig holds provider credentials and the role-keyed model registry.
type LLMConfig struct {
	OpenRouterAPIKey  string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	OpenRouterBaseURL string

	Roles map[string]RoleSpec
}

// ResearchConfig selects the research strategy and its credentials.
type ResearchConfig struct {
	// Identifier selects the research provider: a model spec, an
	// "asknews/..." preset, "smart-searcher/<model>", or "no_research".
	Identifier          string
	AskNewsClientID     string
	AskNewsClientSecret string
}

// BotConfig holds the forecast bot's behavioral settings.
type BotConfig struct {
	Name                         string
	ResearchReportsPerQuestion   int
	PredictionsPerResearchReport int
	PublishReportsToMetaculus    bool
	SkipPreviouslyForecasted     bool
	FolderToSaveReportsTo        string
	ExtraMetadataInExplanation   bool
	ForceReforecastInConditional []string
	MaxConcurrentQuestions       int
	ContextDir                   string
}

// MetricsConfig enables the optional metrics endpoint when an address is set.
type MetricsConfig struct {
	ListenAddr string
}

const (
	defaultLogFormat = "text"

	defaultMetaculusBaseURL  = "https://www.metaculus.com"
	defaultRequestsPerSecond = 1.0
	defaultAICompetitionID   = "spring-aib-2026"
	defaultMiniBenchID       = "minibench"
	defaultMetaculusCupID    = "32921"

	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultBotName      = "RuslanBot"
	defaultConfigFile   = "bot.toml"
	defaultContextDir   = "context"
	defaultConcurrency  = 1
	defaultResearcherID = "openrouter/perplexity/sonar"
)

// fileConfig is the shape of the optional TOML configuration file. Booleans
// are pointers so an explicit `false` is distinguishable from an absent key.
type fileConfig struct {
	LLMs map[string]RoleSpec `toml:"llms"`
	Bot  struct {
		Name                         string   `toml:"name"`
		ResearchReportsPerQuestion   int      `toml:"research_reports_per_question"`
		PredictionsPerResearchReport int      `toml:"predictions_per_research_report"`
		PublishReportsToMetaculus    *bool    `toml:"publish_reports_to_metaculus"`
		SkipPreviouslyForecasted     *bool    `toml:"skip_previously_forecasted"`
		ExtraMetadataInExplanation   *bool    `toml:"extra_metadata_in_explanation"`
		FolderToSaveReportsTo        string   `toml:"folder_to_save_reports_to"`
		ForceReforecastInConditional []string `toml:"force_reforecast_in_conditional"`
		MaxConcurrentQuestions       int      `toml:"max_concurrent_questions"`
		ContextDir                   string   `toml:"context_dir"`
	} `toml:"bot"`
	Metaculus struct {
		BaseURL           string  `toml:"base_url"`
		RequestsPerSecond float64 `toml:"requests_per_second"`
		AICompetitionID   string  `toml:"ai_competition_id"`
		MiniBenchID       string  `toml:"minibench_id"`
		MetaculusCupID    string  `toml:"metaculus_cup_id"`
	} `toml:"metaculus"`
	Research struct {
		Identifier string `toml:"identifier"`
	} `toml:"research"`
	Metrics struct {
		ListenAddr string `toml:"listen_addr"`
	} `toml:"metrics"`
}

// Load reads configuration from the optional TOML file named by BOT_CONFIG
// (default bot.toml) and the environment, applying defaults when values are
// not provided.
func Load() (Config, error) {
	cfg := Config{
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Metaculus: MetaculusConfig{
			BaseURL:           defaultMetaculusBaseURL,
			RequestsPerSecond: defaultRequestsPerSecond,
			AICompetitionID:   defaultAICompetitionID,
			MiniBenchID:       defaultMiniBenchID,
			MetaculusCupID:    defaultMetaculusCupID,
		},
		LLM: LLMConfig{
			OpenRouterBaseURL: defaultOpenRouterBaseURL,
			Roles: map[string]RoleSpec{
				"default": {
					Model:          "openrouter/google/gemini-3-pro-preview",
					Temperature:    0.3,
					TimeoutSeconds: 160,
					AllowedTries:   2,
				},
				"summarizer": {Model: "openrouter/google/gemini-3-flash-preview", AllowedTries: 2},
				"parser":     {Model: "openrouter/google/gemini-3-flash-preview", AllowedTries: 2},
			},
		},
		Research: ResearchConfig{
			Identifier: defaultResearcherID,
		},
		Bot: BotConfig{
			Name:                         defaultBotName,
			ResearchReportsPerQuestion:   1,
			PredictionsPerResearchReport: 2,
			PublishReportsToMetaculus:    true,
			SkipPreviouslyForecasted:     true,
			ExtraMetadataInExplanation:   true,
			MaxConcurrentQuestions:       defaultConcurrency,
			ContextDir:                   defaultContextDir,
		},
	}

	if err := applyFile(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFile(cfg *Config) error {
	path := getEnv("BOT_CONFIG", defaultConfigFile)

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for role, spec := range fc.LLMs {
		base := cfg.LLM.Roles[role]
		if spec.Model != "" {
			base.Model = spec.Model
		}
		if spec.Temperature != 0 {
			base.Temperature = spec.Temperature
		}
		if spec.TimeoutSeconds != 0 {
			base.TimeoutSeconds = spec.TimeoutSeconds
		}
		if spec.AllowedTries != 0 {
			base.AllowedTries = spec.AllowedTries
		}
		cfg.LLM.Roles[role] = base
	}

	if fc.Bot.Name != "" {
		cfg.Bot.Name = fc.Bot.Name
	}
	if fc.Bot.ResearchReportsPerQuestion != 0 {
		cfg.Bot.ResearchReportsPerQuestion = fc.Bot.ResearchReportsPerQuestion
	}
	if fc.Bot.PredictionsPerResearchReport != 0 {
		cfg.Bot.PredictionsPerResearchReport = fc.Bot.PredictionsPerResearchReport
	}
	if fc.Bot.PublishReportsToMetaculus != nil {
		cfg.Bot.PublishReportsToMetaculus = *fc.Bot.PublishReportsToMetaculus
	}
	if fc.Bot.SkipPreviouslyForecasted != nil {
		cfg.Bot.SkipPreviouslyForecasted = *fc.Bot.SkipPreviouslyForecasted
	}
	if fc.Bot.ExtraMetadataInExplanation != nil {
		cfg.Bot.ExtraMetadataInExplanation = *fc.Bot.ExtraMetadataInExplanation
	}
	if fc.Bot.FolderToSaveReportsTo != "" {
		cfg.Bot.FolderToSaveReportsTo = fc.Bot.FolderToSaveReportsTo
	}
	if len(fc.Bot.ForceReforecastInConditional) > 0 {
		cfg.Bot.ForceReforecastInConditional = fc.Bot.ForceReforecastInConditional
	}
	if fc.Bot.MaxConcurrentQuestions != 0 {
		cfg.Bot.MaxConcurrentQuestions = fc.Bot.MaxConcurrentQuestions
	}
	if fc.Bot.ContextDir != "" {
		cfg.Bot.ContextDir = fc.Bot.ContextDir
	}

	if fc.Metaculus.BaseURL != "" {
		cfg.Metaculus.BaseURL = fc.Metaculus.BaseURL
	}
	if fc.Metaculus.RequestsPerSecond != 0 {
		cfg.Metaculus.RequestsPerSecond = fc.Metaculus.RequestsPerSecond
	}
	if fc.Metaculus.AICompetitionID != "" {
		cfg.Metaculus.AICompetitionID = fc.Metaculus.AICompetitionID
	}
	if fc.Metaculus.MiniBenchID != "" {
		cfg.Metaculus.MiniBenchID = fc.Metaculus.MiniBenchID
	}
	if fc.Metaculus.MetaculusCupID != "" {
		cfg.Metaculus.MetaculusCupID = fc.Metaculus.MetaculusCupID
	}

	if fc.Research.Identifier != "" {
		cfg.Research.Identifier = fc.Research.Identifier
	}
	if fc.Metrics.ListenAddr != "" {
		cfg.Metrics.ListenAddr = fc.Metrics.ListenAddr
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	cfg.Metaculus.Token = os.Getenv("METACULUS_TOKEN")
	cfg.Metaculus.BaseURL = getEnv("METACULUS_BASE_URL", cfg.Metaculus.BaseURL)
	cfg.Metaculus.MetaculusCupID = getEnv("METACULUS_CUP_ID", cfg.Metaculus.MetaculusCupID)

	cfg.LLM.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.LLM.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.LLM.OpenRouterBaseURL = getEnv("OPENROUTER_BASE_URL", cfg.LLM.OpenRouterBaseURL)

	cfg.Research.Identifier = getEnv("RESEARCHER", cfg.Research.Identifier)
	cfg.Research.AskNewsClientID = os.Getenv("ASKNEWS_CLIENT_ID")
	cfg.Research.AskNewsClientSecret = os.Getenv("ASKNEWS_SECRET")

	if v := os.Getenv("MAX_CONCURRENT_QUESTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid MAX_CONCURRENT_QUESTIONS: must be a positive integer")
		}
		cfg.Bot.MaxConcurrentQuestions = n
	}

	if v := os.Getenv("PUBLISH_REPORTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_REPORTS: %w", err)
		}
		cfg.Bot.PublishReportsToMetaculus = b
	}

	cfg.Bot.ContextDir = getEnv("CONTEXT_DIR", cfg.Bot.ContextDir)
	cfg.Metrics.ListenAddr = getEnv("METRICS_ADDR", cfg.Metrics.ListenAddr)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}

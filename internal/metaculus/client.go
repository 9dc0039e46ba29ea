// Package metaculus is an HTTP client for the Metaculus question platform:
// fetching open questions, submitting forecasts, and posting comments.
package metaculus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/ruslanv/metacbot/internal/models"
)

const (
	defaultBaseURL = "https://www.metaculus.com"
	pageSize       = 50
	maxRetries     = 4
)

// Config holds client construction parameters.
type Config struct {
	Token             string
	BaseURL           string
	RequestsPerSecond float64
}

// Client talks to the Metaculus API with token auth, a request rate cap, and
// exponential-backoff retries on transient failures.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient constructs a platform client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		token:      cfg.Token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// statusError carries an HTTP failure status for retry classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("metaculus returned status %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("metaculus request will be retried",
				"method", method, "path", path, "status", resp.StatusCode)
			return &statusError{status: resp.StatusCode, body: truncate(string(data), 200)}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&statusError{status: resp.StatusCode, body: truncate(string(data), 200)})
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(operation, bo)
}

type postListResponse struct {
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// ListTournamentQuestions fetches all open questions of a tournament,
// following pagination. The tournament is identified by slug or numeric ID.
func (c *Client) ListTournamentQuestions(ctx context.Context, tournament string) ([]*models.Question, error) {
	var questions []*models.Question

	offset := 0
	for {
		query := url.Values{}
		query.Set("tournaments", tournament)
		query.Set("statuses", "open")
		query.Set("with_cp", "false")
		query.Set("include_my_forecasts", "true")
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page postListResponse
		if err := c.do(ctx, http.MethodGet, "/api/posts/", query, nil, &page); err != nil {
			return nil, fmt.Errorf("listing posts for tournament %s: %w", tournament, err)
		}

		for _, raw := range page.Results {
			q, err := decodePost(raw, c.logger)
			if err != nil {
				c.logger.Warn("skipping undecodable post", "tournament", tournament, "error", err)
				continue
			}
			if q != nil {
				questions = append(questions, q)
			}
		}

		if page.Next == nil || len(page.Results) == 0 {
			break
		}
		offset += pageSize
	}

	c.logger.Info("fetched tournament questions", "tournament", tournament, "count", len(questions))
	return questions, nil
}

// GetQuestion fetches one question by post ID.
func (c *Client) GetQuestion(ctx context.Context, postID int64) (*models.Question, error) {
	query := url.Values{}
	query.Set("with_cp", "false")
	query.Set("include_my_forecasts", "true")

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/", postID), query, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching post %d: %w", postID, err)
	}

	q, err := decodePost(raw, c.logger)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("post %d carries no forecastable question", postID)
	}
	return q, nil
}

var questionURLRe = regexp.MustCompile(`/(?:questions|c/[^/]+)/(\d+)`)

// PostURLToID parses a question URL or a bare numeric string into a post ID.
func PostURLToID(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty question reference")
	}

	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		return id, nil
	}

	if match := questionURLRe.FindStringSubmatch(input); match != nil {
		return strconv.ParseInt(match[1], 10, 64)
	}

	return 0, fmt.Errorf("cannot parse question reference %q", input)
}

// forecastPayload is one entry of the bulk forecast endpoint.
type forecastPayload struct {
	Question                  int64              `json:"question"`
	ProbabilityYes            *float64           `json:"probability_yes,omitempty"`
	ProbabilityYesPerCategory map[string]float64 `json:"probability_yes_per_category,omitempty"`
	ContinuousCDF             []float64          `json:"continuous_cdf,omitempty"`
}

// SubmitForecast publishes a structured prediction for a question. For
// conditional questions every freshly forecast sub-question (parent, child,
// yes and no branches) is submitted to its own question; reaffirmed values
// need no submission.
func (c *Client) SubmitForecast(ctx context.Context, q *models.Question, value models.PredictionValue) error {
	payloads, err := buildForecastPayloads(q, value)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	if err := c.do(ctx, http.MethodPost, "/api/questions/forecast/", nil, payloads, nil); err != nil {
		return fmt.Errorf("submitting forecast for question %d: %w", q.ID, err)
	}

	c.logger.Info("submitted forecast", "question_id", q.ID, "url", q.PageURL, "entries", len(payloads))
	return nil
}

func buildForecastPayloads(q *models.Question, value models.PredictionValue) ([]forecastPayload, error) {
	switch v := value.(type) {
	case models.BinaryPrediction:
		prob := v.PredictionInDecimal
		return []forecastPayload{{Question: q.ID, ProbabilityYes: &prob}}, nil

	case models.PredictedOptionList:
		normalized := v.Normalized()
		byOption := make(map[string]float64, len(normalized.PredictedOptions))
		for _, opt := range normalized.PredictedOptions {
			byOption[opt.OptionName] = opt.Probability
		}
		return []forecastPayload{{Question: q.ID, ProbabilityYesPerCategory: byOption}}, nil

	case *models.NumericDistribution:
		return []forecastPayload{{Question: q.ID, ContinuousCDF: v.CDF()}}, nil

	case models.ConditionalPrediction:
		var payloads []forecastPayload
		if q.QuestionYes == nil || q.QuestionNo == nil {
			return nil, fmt.Errorf("conditional question %d lacks branch questions", q.ID)
		}
		for _, part := range []struct {
			question *models.Question
			value    models.PredictionValue
		}{
			{q.Parent, v.Parent},
			{q.Child, v.Child},
			{q.QuestionYes, v.PredictionYes},
			{q.QuestionNo, v.PredictionNo},
		} {
			if part.question == nil || part.value == nil {
				continue
			}
			if _, affirmed := part.value.(models.PredictionAffirmed); affirmed {
				continue
			}
			sub, err := buildForecastPayloads(part.question, part.value)
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, sub...)
		}
		return payloads, nil

	case models.PredictionAffirmed:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported prediction type %T", value)
	}
}

type commentPayload struct {
	OnPost    int64  `json:"on_post"`
	Text      string `json:"text"`
	IsPrivate bool   `json:"is_private"`
}

// PostComment publishes a markdown comment on a post.
func (c *Client) PostComment(ctx context.Context, postID int64, text string, private bool) error {
	payload := commentPayload{OnPost: postID, Text: text, IsPrivate: private}
	if err := c.do(ctx, http.MethodPost, "/api/comments/create/", nil, payload, nil); err != nil {
		return fmt.Errorf("posting comment on post %d: %w", postID, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	askNewsBaseURL  = "https://api.asknews.app"
	askNewsTokenURL = "https://auth.asknews.app/oauth2/token"

	// articlesPerSearch matches the AskNews free-tier page size.
	articlesPerSearch = 10
)

// AskNewsClient talks to the AskNews news search and deep research APIs,
// authenticating with OAuth2 client credentials.
type AskNewsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewAskNewsClient builds a client from OAuth2 client credentials. The token
// source refreshes transparently.
func NewAskNewsClient(clientID, clientSecret string, logger *slog.Logger) *AskNewsClient {
	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     askNewsTokenURL,
		Scopes:       []string{"news", "chat"},
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = 5 * time.Minute

	return &AskNewsClient{
		httpClient: httpClient,
		baseURL:    askNewsBaseURL,
		logger:     logger,
	}
}

// Article is one news item returned by a search.
type Article struct {
	Title      string `json:"eng_title"`
	Summary    string `json:"summary"`
	URL        string `json:"article_url"`
	SourceID   string `json:"source_id"`
	PubDateRaw string `json:"pub_date"`
}

type searchResponse struct {
	AsDicts []Article `json:"as_dicts"`
}

// Search runs one news search and returns the raw articles.
func (c *AskNewsClient) Search(ctx context.Context, query, strategy string, n int) ([]Article, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("n_articles", strconv.Itoa(n))
	params.Set("return_type", "dicts")
	params.Set("strategy", strategy)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/news/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asknews search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asknews search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return decoded.AsDicts, nil
}

// NewsSummaries gathers the latest and the historically relevant articles for
// the query and formats them as a research digest.
func (c *AskNewsClient) NewsSummaries(ctx context.Context, query string) (string, error) {
	latest, err := c.Search(ctx, query, "latest news", articlesPerSearch)
	if err != nil {
		return "", err
	}
	relevant, err := c.Search(ctx, query, "news knowledge", articlesPerSearch)
	if err != nil {
		return "", err
	}

	if len(latest) == 0 && len(relevant) == 0 {
		return "No articles were found.", nil
	}

	var b strings.Builder
	b.WriteString("Here are the relevant news articles:\n\n")
	formatArticles(&b, latest)
	formatArticles(&b, relevant)
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatArticles(b *strings.Builder, articles []Article) {
	for _, a := range articles {
		fmt.Fprintf(b, "**%s**\n%s\n", a.Title, a.Summary)
		if a.PubDateRaw != "" {
			fmt.Fprintf(b, "Original language: %s\n", a.SourceID)
			fmt.Fprintf(b, "Publish date: %s\n", a.PubDateRaw)
		}
		if a.URL != "" {
			fmt.Fprintf(b, "Source: %s\n", a.URL)
		}
		b.WriteString("\n")
	}
}

// deepNewsDepths maps configured depth names to the API's search depth.
var deepNewsDepths = map[string]int{
	"low":    1,
	"medium": 2,
	"high":   3,
}

type deepNewsRequest struct {
	Model       string            `json:"model"`
	Messages    []deepNewsMessage `json:"messages"`
	SearchDepth int               `json:"search_depth"`
	Stream      bool              `json:"stream"`
}

type deepNewsMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepNewsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// DeepResearch runs the agentic DeepNews endpoint at the given depth and
// returns the final report, with any chain-of-thought markup stripped.
func (c *AskNewsClient) DeepResearch(ctx context.Context, query, depth string) (string, error) {
	searchDepth, ok := deepNewsDepths[depth]
	if !ok {
		return "", fmt.Errorf("unknown deep research depth %q", depth)
	}

	body, err := json.Marshal(deepNewsRequest{
		Model:       "deepseek",
		Messages:    []deepNewsMessage{{Role: "user", Content: query}},
		SearchDepth: searchDepth,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("encoding deep research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/deepnews", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building deep research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("asknews deep research: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asknews deep research returned status %d", resp.StatusCode)
	}

	var decoded deepNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding deep research response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("asknews deep research returned no choices")
	}
	return stripReasoningMarkup(decoded.Choices[0].Message.Content), nil
}

// stripReasoningMarkup removes <think>...</think> blocks the DeepNews model
// sometimes emits before its report.
func stripReasoningMarkup(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

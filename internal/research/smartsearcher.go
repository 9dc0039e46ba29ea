package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruslanv/metacbot/internal/llm"
)

const (
	searcherQueries       = 2
	searcherSitesPerQuery = 10
)

// SmartSearcher answers a research prompt by generating web search queries,
// running them, and synthesizing the findings into a cited report.
type SmartSearcher struct {
	model    llm.Invoker
	searcher *AskNewsClient
	logger   *slog.Logger
	now      func() time.Time
}

func NewSmartSearcher(model llm.Invoker, searcher *AskNewsClient, logger *slog.Logger) *SmartSearcher {
	return &SmartSearcher{
		model:    model,
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SmartSearcher) Name() string {
	return "smart-searcher/" + s.model.Name()
}

// Research generates search queries for the prompt, gathers articles for each,
// and asks the model for a synthesized report with inline citations.
func (s *SmartSearcher) Research(ctx context.Context, prompt string) (string, error) {
	queries, err := s.generateQueries(ctx, prompt)
	if err != nil {
		return "", err
	}

	var sources []Article
	for _, query := range queries {
		articles, err := s.searcher.Search(ctx, query, "news knowledge", searcherSitesPerQuery)
		if err != nil {
			s.logger.Warn("search query failed", "query", query, "error", err)
			continue
		}
		sources = append(sources, articles...)
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("no sources found for any search query")
	}

	return s.synthesize(ctx, prompt, sources)
}

func (s *SmartSearcher) generateQueries(ctx context.Context, prompt string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are helping to research the following request:\n\n%s\n\n", prompt)
	fmt.Fprintf(&b, "Today is %s.\n\n", s.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Write %d distinct web search queries that together would surface the ", searcherQueries)
	b.WriteString("most relevant recent information. Output one query per line with no numbering and no other text.")

	response, err := s.model.Invoke(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("generating search queries: %w", err)
	}

	var queries []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line != "" {
			queries = append(queries, line)
		}
		if len(queries) == searcherQueries {
			break
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("model produced no search queries")
	}
	return queries, nil
}

func (s *SmartSearcher) synthesize(ctx context.Context, prompt string, sources []Article) (string, error) {
	var b strings.Builder
	b.WriteString("You are a research assistant. Answer the request below using only the numbered sources.\n")
	b.WriteString("Cite sources inline as [N](url). If the sources do not answer the request, say so.\n\n")
	fmt.Fprintf(&b, "Request:\n%s\n\nSources:\n", prompt)
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, src.Title, src.URL, src.Summary)
	}

	report, err := s.model.Invoke(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("synthesizing research report: %w", err)
	}
	return report, nil
}

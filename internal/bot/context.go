package bot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruslanv/metacbot/internal/models"
)

// ContextLoader supplies domain guidance text for prompts from a context/
// directory: context/research.txt and context/forecast.txt apply to every
// question, context/<category-slug>/research.txt and forecast.txt only to
// questions carrying that category.
//
// Context files are plain text; lines starting with # and blank lines are
// stripped. A missing or unreadable file contributes nothing and is never an
// error.
type ContextLoader struct {
	dir    string
	logger *slog.Logger

	// General contexts are loaded once at construction; category files are
	// read per question so edits take effect between questions.
	generalResearch string
	generalForecast string
}

// NewContextLoader loads the general context files under dir.
func NewContextLoader(dir string, logger *slog.Logger) *ContextLoader {
	l := &ContextLoader{dir: dir, logger: logger}
	l.generalResearch = l.loadFile(filepath.Join(dir, "research.txt"))
	l.generalForecast = l.loadFile(filepath.Join(dir, "forecast.txt"))
	return l
}

func (l *ContextLoader) loadFile(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("context file not found, using empty context", "path", path)
		} else {
			l.logger.Warn("error loading context file, using empty context", "path", path, "error", err)
		}
		return ""
	}

	var kept []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (l *ContextLoader) loadCategoryFile(kind, slug string) string {
	return l.loadFile(filepath.Join(l.dir, slug, kind+".txt"))
}

// ResearchContext returns the merged research guidance for a question:
// general context first, then one titled block per matching category.
func (l *ContextLoader) ResearchContext(q *models.Question) string {
	return l.merged("research", l.generalResearch, q)
}

// ForecastContext returns the merged forecasting guidance for a question.
func (l *ContextLoader) ForecastContext(q *models.Question) string {
	return l.merged("forecast", l.generalForecast, q)
}

func (l *ContextLoader) merged(kind, general string, q *models.Question) string {
	var parts []string
	var used []string
	if general != "" {
		parts = append(parts, general)
		used = append(used, "General")
	}
	for _, slug := range q.CategorySlugs {
		categoryContext := l.loadCategoryFile(kind, slug)
		if categoryContext != "" {
			title := titleSlug(slug)
			parts = append(parts, fmt.Sprintf("[%s Context]\n%s", title, categoryContext))
			used = append(used, title)
		}
	}
	if len(used) > 0 {
		l.logger.Info("merged context", "kind", kind, "used", strings.Join(used, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// UsedContexts names the contexts that contributed guidance for the question,
// combining the research and forecast sides without duplicates.
func (l *ContextLoader) UsedContexts(q *models.Question) []string {
	var used []string
	if l.generalResearch != "" || l.generalForecast != "" {
		used = append(used, "General")
	}
	for _, slug := range q.CategorySlugs {
		if l.loadCategoryFile("research", slug) != "" || l.loadCategoryFile("forecast", slug) != "" {
			title := titleSlug(slug)
			if !contains(used, title) {
				used = append(used, title)
			}
		}
	}
	return used
}

// titleSlug renders a category slug for display, capitalizing the letter
// after each word boundary: "natural-sciences" becomes "Natural-Sciences".
func titleSlug(slug string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range slug {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !prevLetter && r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		b.WriteRune(r)
		prevLetter = isLetter
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

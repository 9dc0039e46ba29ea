package metaculus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruslanv/metacbot/internal/models"
)

type apiPost struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Question    *apiQuestion    `json:"question"`
	Conditional *apiConditional `json:"conditional"`
	Notebook    json.RawMessage `json:"notebook"`
	Group       json.RawMessage `json:"group_of_questions"`
	Projects    struct {
		Category json.RawMessage `json:"category"`
	} `json:"projects"`
	PublishedAt string `json:"published_at"`
}

type apiQuestion struct {
	ID                 int64    `json:"id"`
	Type               string   `json:"type"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	ResolutionCriteria string   `json:"resolution_criteria"`
	FinePrint          string   `json:"fine_print"`
	Options            []string `json:"options"`
	Unit               string   `json:"unit"`
	OpenLowerBound     *bool    `json:"open_lower_bound"`
	OpenUpperBound     *bool    `json:"open_upper_bound"`
	Scaling            *struct {
		RangeMin   *float64 `json:"range_min"`
		RangeMax   *float64 `json:"range_max"`
		ZeroPoint  *float64 `json:"zero_point"`
		NominalMin *float64 `json:"nominal_min"`
		NominalMax *float64 `json:"nominal_max"`
	} `json:"scaling"`
	MyForecasts *struct {
		Latest *apiForecast `json:"latest"`
	} `json:"my_forecasts"`
	ScheduledResolveTime string `json:"scheduled_resolve_time"`
}

type apiForecast struct {
	StartTime                 float64            `json:"start_time"`
	EndTime                   *float64           `json:"end_time"`
	ProbabilityYes            *float64           `json:"probability_yes"`
	ProbabilityYesPerCategory map[string]float64 `json:"probability_yes_per_category"`
	ForecastValues            []float64          `json:"forecast_values"`
	CentersOfMass             []float64          `json:"centers"`
}

type apiConditional struct {
	Condition      *apiQuestion `json:"condition"`
	ConditionChild *apiQuestion `json:"condition_child"`
	QuestionYes    *apiQuestion `json:"question_yes"`
	QuestionNo     *apiQuestion `json:"question_no"`
}

// decodePost converts an API post into a Question. Posts that carry nothing
// forecastable (notebooks, question groups) decode to nil without error.
func decodePost(raw json.RawMessage, logger *slog.Logger) (*models.Question, error) {
	var post apiPost
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decoding post: %w", err)
	}

	if post.Question == nil && post.Conditional == nil {
		return nil, nil
	}

	categories := decodeCategories(post.Projects.Category, post.ID, logger)

	if post.Conditional != nil {
		return decodeConditional(&post, categories, logger)
	}

	q, err := decodeQuestion(post.Question, &post)
	if err != nil {
		return nil, err
	}
	q.CategorySlugs = categories
	return q, nil
}

func decodeConditional(post *apiPost, categories []string, logger *slog.Logger) (*models.Question, error) {
	cond := post.Conditional
	if cond.Condition == nil || cond.ConditionChild == nil || cond.QuestionYes == nil || cond.QuestionNo == nil {
		return nil, fmt.Errorf("post %d: conditional is missing sub-questions", post.ID)
	}

	parent, err := decodeQuestion(cond.Condition, post)
	if err != nil {
		return nil, fmt.Errorf("post %d parent: %w", post.ID, err)
	}
	child, err := decodeQuestion(cond.ConditionChild, post)
	if err != nil {
		return nil, fmt.Errorf("post %d child: %w", post.ID, err)
	}
	yes, err := decodeQuestion(cond.QuestionYes, post)
	if err != nil {
		return nil, fmt.Errorf("post %d yes branch: %w", post.ID, err)
	}
	no, err := decodeQuestion(cond.QuestionNo, post)
	if err != nil {
		return nil, fmt.Errorf("post %d no branch: %w", post.ID, err)
	}

	yes.ConditionalRole = "yes"
	no.ConditionalRole = "no"
	for _, sub := range []*models.Question{parent, child, yes, no} {
		sub.CategorySlugs = categories
	}

	q := &models.Question{
		ID:            post.ID,
		PostID:        post.ID,
		Type:          models.QuestionTypeConditional,
		Title:         post.Title,
		Text:          post.Title,
		PageURL:       pageURL(post),
		CategorySlugs: categories,
		Parent:        parent,
		Child:         child,
		QuestionYes:   yes,
		QuestionNo:    no,
	}
	return q, nil
}

func decodeQuestion(aq *apiQuestion, post *apiPost) (*models.Question, error) {
	qtype := models.QuestionType(aq.Type)
	switch qtype {
	case models.QuestionTypeBinary, models.QuestionTypeMultipleChoice,
		models.QuestionTypeNumeric, models.QuestionTypeDiscrete, models.QuestionTypeDate:
	default:
		return nil, fmt.Errorf("unsupported question type %q", aq.Type)
	}

	q := &models.Question{
		ID:                 aq.ID,
		PostID:             post.ID,
		Type:               qtype,
		Title:              aq.Title,
		Text:               aq.Title,
		Background:         aq.Description,
		ResolutionCriteria: aq.ResolutionCriteria,
		FinePrint:          aq.FinePrint,
		PageURL:            pageURL(post),
		UnitOfMeasure:      aq.Unit,
		Options:            aq.Options,
	}

	if aq.OpenLowerBound != nil {
		q.OpenLowerBound = *aq.OpenLowerBound
	}
	if aq.OpenUpperBound != nil {
		q.OpenUpperBound = *aq.OpenUpperBound
	}
	if aq.Scaling != nil {
		if aq.Scaling.RangeMin != nil {
			q.LowerBound = *aq.Scaling.RangeMin
		}
		if aq.Scaling.RangeMax != nil {
			q.UpperBound = *aq.Scaling.RangeMax
		}
		q.ZeroPoint = aq.Scaling.ZeroPoint
		q.NominalLowerBound = aq.Scaling.NominalMin
		q.NominalUpperBound = aq.Scaling.NominalMax
	}

	if aq.ScheduledResolveTime != "" {
		if t, err := time.Parse(time.RFC3339, aq.ScheduledResolveTime); err == nil {
			q.ScheduledResolveAt = &t
		}
	}
	if post.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, post.PublishedAt); err == nil {
			q.PublishedAt = &t
		}
	}

	if aq.MyForecasts != nil && aq.MyForecasts.Latest != nil {
		q.PreviousForecasts = append(q.PreviousForecasts, decodeForecast(aq.MyForecasts.Latest))
		q.AlreadyForecasted = true
	}

	return q, nil
}

func decodeForecast(af *apiForecast) models.PriorForecast {
	prior := models.PriorForecast{
		TimestampStart: time.Unix(int64(af.StartTime), 0).UTC(),
	}
	if af.EndTime != nil {
		end := time.Unix(int64(*af.EndTime), 0).UTC()
		prior.TimestampEnd = &end
	}

	switch {
	case af.ProbabilityYes != nil:
		prior.ProbabilityYes = af.ProbabilityYes
	case len(af.ProbabilityYesPerCategory) > 0:
		// Deterministic order is the caller's concern; the raw values are
		// enough to render a readable reaffirmation.
		for _, v := range af.ForecastValues {
			prior.OptionProbabilities = append(prior.OptionProbabilities, v)
		}
		if len(prior.OptionProbabilities) == 0 {
			for _, v := range af.ProbabilityYesPerCategory {
				prior.OptionProbabilities = append(prior.OptionProbabilities, v)
			}
		}
	case len(af.CentersOfMass) > 0:
		median := af.CentersOfMass[len(af.CentersOfMass)/2]
		prior.CDFMedian = &median
	}

	return prior
}

// decodeCategories extracts category slugs from the post's project metadata.
// Malformed metadata yields an empty list with a warning, never an error.
func decodeCategories(raw json.RawMessage, postID int64, logger *slog.Logger) []string {
	if len(raw) == 0 {
		return nil
	}

	var categories []struct {
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(raw, &categories); err != nil {
		logger.Warn("failed to extract question categories", "post_id", postID, "error", err)
		return nil
	}

	var slugs []string
	for _, cat := range categories {
		if cat.Slug != "" {
			slugs = append(slugs, cat.Slug)
		}
	}
	return slugs
}

func pageURL(post *apiPost) string {
	if post.URL != "" {
		return post.URL
	}
	return fmt.Sprintf("%s/questions/%d/", defaultBaseURL, post.ID)
}

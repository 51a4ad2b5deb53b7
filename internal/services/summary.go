package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/repository"
)

const (
	DefaultSummaryMaxItems = 100
	maxSummaryPoints       = 3
	maxSummaryPointLen     = 400
)

const summarySystemPrompt = `You summarize event feedback. Reply with a JSON object with exactly these keys:
"positive_percentage" (integer 0-100, share of positive feedback),
"top_highlights" (up to 3 short strings),
"areas_for_improvement" (up to 3 short strings).
Be neutral and concise. Do not include personal data or verbatim quotes.`

// SummaryService digests the most recent feedback of an event.
type SummaryService struct {
	feedbacks repository.FeedbackRepository
	chat      ChatClient
	maxItems  int
	log       *slog.Logger
}

// NewSummaryService builds the service. chat may be nil, in which case every
// summary is computed heuristically.
func NewSummaryService(feedbacks repository.FeedbackRepository, chat ChatClient, maxItems int, logger *slog.Logger) *SummaryService {
	if maxItems <= 0 {
		maxItems = DefaultSummaryMaxItems
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{feedbacks: feedbacks, chat: chat, maxItems: maxItems, log: logger}
}

// ComputeSummaryForEvent summarizes up to maxItems of the event's newest
// feedback. LLM failures degrade to the heuristic summary.
func (s *SummaryService) ComputeSummaryForEvent(ctx context.Context, eventID string) (models.EventSummary, error) {
	res, err := s.feedbacks.List(ctx, repository.ListParams{
		EventID: eventID,
		Sort:    models.SortNewest,
		Limit:   s.maxItems,
	})
	if err != nil {
		return models.EventSummary{}, fmt.Errorf("load feedback sample: %w", err)
	}
	if len(res.Items) == 0 {
		return emptySummary(), nil
	}

	if s.chat == nil {
		return HeuristicSummary(res.Items), nil
	}

	summary, err := s.summarizeWithLLM(ctx, res.Items)
	if err != nil {
		s.log.WarnContext(ctx, "llm summary failed, using heuristic", "event_id", eventID, "error", err)
		return HeuristicSummary(res.Items), nil
	}
	return summary, nil
}

func (s *SummaryService) summarizeWithLLM(ctx context.Context, items []models.Feedback) (models.EventSummary, error) {
	var b strings.Builder
	b.WriteString("Summarize the following feedback entries for the event.\n\n")
	for i, f := range items {
		fmt.Fprintf(&b, "%d. [%d/5] %s\n", i+1, f.Rating, f.Text)
	}

	content, err := s.chat.Complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	})
	if err != nil {
		return models.EventSummary{}, err
	}

	var out models.EventSummary
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &out); err != nil {
		return models.EventSummary{}, fmt.Errorf("decode llm summary: %w", err)
	}
	return normalizeSummary(out), nil
}

// HeuristicSummary derives a summary from ratings alone: the positive share
// counts ratings of 4 and up, highlights come from the best-rated comments
// and improvements from comments rated 2 or lower.
func HeuristicSummary(items []models.Feedback) models.EventSummary {
	if len(items) == 0 {
		return emptySummary()
	}

	positive := 0
	for _, f := range items {
		if f.Rating >= 4 {
			positive++
		}
	}
	pct := int(math.Round(float64(positive) * 100 / float64(len(items))))

	// Stable sort keeps the newest first among equal ratings.
	byRating := slices.Clone(items)
	slices.SortStableFunc(byRating, func(a, b models.Feedback) int {
		return b.Rating - a.Rating
	})

	var highlights, improvements []string
	for _, f := range byRating {
		if f.Rating >= 4 && len(highlights) < maxSummaryPoints {
			highlights = appendPoint(highlights, f.Text)
		}
	}
	for i := len(byRating) - 1; i >= 0; i-- {
		f := byRating[i]
		if f.Rating <= 2 && len(improvements) < maxSummaryPoints {
			improvements = appendPoint(improvements, f.Text)
		}
	}

	return normalizeSummary(models.EventSummary{
		PositivePercentage:  pct,
		TopHighlights:       highlights,
		AreasForImprovement: improvements,
	})
}

func appendPoint(points []string, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" || slices.Contains(points, truncate(text)) {
		return points
	}
	return append(points, truncate(text))
}

func normalizeSummary(s models.EventSummary) models.EventSummary {
	s.PositivePercentage = max(0, min(100, s.PositivePercentage))
	s.TopHighlights = clampPoints(s.TopHighlights)
	s.AreasForImprovement = clampPoints(s.AreasForImprovement)
	return s
}

func clampPoints(points []string) []string {
	out := make([]string, 0, min(len(points), maxSummaryPoints))
	for _, p := range points {
		if len(out) == maxSummaryPoints {
			break
		}
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, truncate(p))
		}
	}
	return out
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxSummaryPointLen {
		return s
	}
	return string(r[:maxSummaryPointLen-1]) + "…"
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func emptySummary() models.EventSummary {
	return models.EventSummary{TopHighlights: []string{}, AreasForImprovement: []string{}}
}

package services

import (
	"context"
	"log/slog"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
	"github.com/developia-II/feedback-board-backend/internal/repository"
)

// CreateFeedbackInput is a validated submission; the caller has already
// confirmed the event exists and resolved its name.
type CreateFeedbackInput struct {
	EventID   string
	EventName string
	Rating    int
	Text      string
}

// FeedbackService holds the list and create use cases.
type FeedbackService struct {
	repo      repository.FeedbackRepository
	publisher realtime.Publisher
	log       *slog.Logger
}

// NewFeedbackService wires the use cases. publisher may be nil, in which case
// creations are not broadcast.
func NewFeedbackService(repo repository.FeedbackRepository, publisher realtime.Publisher, logger *slog.Logger) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackService{repo: repo, publisher: publisher, log: logger}
}

// ListFeedbacks delegates to the repository. Parameters are validated at the
// transport boundary.
func (s *FeedbackService) ListFeedbacks(ctx context.Context, params repository.ListParams) (repository.ListResult, error) {
	return s.repo.List(ctx, params)
}

// CreateFeedback persists one feedback and announces it on the global room
// and the event room. The row is the source of truth: publish failures are
// logged and never returned.
func (s *FeedbackService) CreateFeedback(ctx context.Context, in CreateFeedbackInput) (models.Feedback, error) {
	created, err := s.repo.Create(ctx, repository.NewFeedback{
		EventID: in.EventID,
		Rating:  in.Rating,
		Text:    in.Text,
	})
	if err != nil {
		return models.Feedback{}, err
	}
	if created.EventName == "" {
		created.EventName = in.EventName
	}

	s.publish(ctx, created)
	return created, nil
}

func (s *FeedbackService) publish(ctx context.Context, f models.Feedback) {
	if s.publisher == nil {
		return
	}
	evt := realtime.FeedbackCreated(f.Item())
	for _, room := range []realtime.Room{realtime.RoomFeedbacks, realtime.RoomForEvent(f.EventID)} {
		if err := s.publisher.Publish(ctx, room, evt); err != nil {
			s.log.WarnContext(ctx, "publish feedback.created failed",
				"room", room, "feedback_id", f.ID, "error", err)
		}
	}
}

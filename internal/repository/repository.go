// Package repository holds the storage contract of the feed and its
// adapters. Every adapter executes the keyset.Query built for a request and
// pages the result with keyset.Page.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/developia-II/feedback-board-backend/internal/cursor"
	"github.com/developia-II/feedback-board-backend/internal/keyset"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

// ErrNotFound is returned when a referenced event does not exist.
var ErrNotFound = errors.New("not found")

// ListParams are already-validated list inputs. Cursor is nil for a first page.
type ListParams struct {
	EventID string
	Rating  *int
	Sort    models.Sort
	Limit   int
	Cursor  *cursor.Payload
}

type ListResult struct {
	Items      []models.Feedback
	NextCursor string
}

// NewFeedback is the input of Create. CreatedAt is assigned by the store when
// zero; only the seeding tool sets it.
type NewFeedback struct {
	EventID   string
	Rating    int
	Text      string
	CreatedAt time.Time
}

type FeedbackRepository interface {
	List(ctx context.Context, params ListParams) (ListResult, error)
	Create(ctx context.Context, data NewFeedback) (models.Feedback, error)
}

type EventRepository interface {
	ListAll(ctx context.Context) ([]models.Event, error)
	GetNameByID(ctx context.Context, id string) (string, error)
	EnsureEvent(ctx context.Context, name string) (models.Event, error)
}

// Store bundles the two repositories of one backend.
type Store struct {
	Feedbacks FeedbackRepository
	Events    EventRepository
	Close     func(ctx context.Context) error
}

func buildQuery(params ListParams) (keyset.Query, error) {
	return keyset.Build(
		keyset.Filters{EventID: params.EventID, Rating: params.Rating},
		params.Sort,
		params.Limit,
		params.Cursor,
	)
}

func page(rows []models.Feedback, params ListParams) (ListResult, error) {
	items, next, err := keyset.Page(rows, params.Sort, params.Limit)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, NextCursor: next}, nil
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return models.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}

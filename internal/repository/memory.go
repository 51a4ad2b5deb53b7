package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/developia-II/feedback-board-backend/internal/keyset"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

// Memory is an in-process store evaluating the predicate algebra directly.
// It backs STORAGE=memory and handler tests.
type Memory struct {
	mu        sync.RWMutex
	events    map[string]models.Event
	feedbacks []models.Feedback
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]models.Event)}
}

// MemoryStore wraps m as a Store.
func MemoryStore(m *Memory) Store {
	return Store{
		Feedbacks: m,
		Events:    m,
		Close:     func(context.Context) error { return nil },
	}
}

func (m *Memory) List(ctx context.Context, params ListParams) (ListResult, error) {
	q, err := buildQuery(params)
	if err != nil {
		return ListResult{}, err
	}

	m.mu.RLock()
	rows := make([]models.Feedback, 0, q.Take)
	for _, f := range m.feedbacks {
		if keyset.Eval(q.Where, keyset.RowOf(f)) {
			f.EventName = m.events[f.EventID].Name
			rows = append(rows, f)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(rows, func(a, b models.Feedback) int {
		return keyset.Compare(q.OrderBy, keyset.RowOf(a), keyset.RowOf(b))
	})
	if len(rows) > q.Take {
		rows = rows[:q.Take]
	}
	return page(rows, params)
}

func (m *Memory) Create(ctx context.Context, data NewFeedback) (models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[data.EventID]
	if !ok {
		return models.Feedback{}, ErrNotFound
	}
	f := models.Feedback{
		ID:        uuid.NewString(),
		EventID:   data.EventID,
		Rating:    data.Rating,
		Text:      data.Text,
		CreatedAt: createdAtOrNow(data.CreatedAt),
	}
	m.feedbacks = append(m.feedbacks, f)
	f.EventName = event.Name
	return f, nil
}

func (m *Memory) ListAll(ctx context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Event) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (m *Memory) GetNameByID(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return "", ErrNotFound
	}
	return e.Name, nil
}

func (m *Memory) EnsureEvent(ctx context.Context, name string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Name == name {
			return e, nil
		}
	}
	e := models.Event{ID: uuid.NewString(), Name: name}
	m.events[e.ID] = e
	return e, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/developia-II/feedback-board-backend/internal/database"
	"github.com/developia-II/feedback-board-backend/internal/keyset"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

var sqlColumns = map[keyset.Field]string{
	keyset.FieldEventID:   "f.event_id",
	keyset.FieldRating:    "f.rating",
	keyset.FieldCreatedAt: "f.created_at",
	keyset.FieldID:        "f.id",
}

// sqlQuery accumulates a lowered WHERE clause and its positional arguments.
type sqlQuery struct {
	bind func(int) string
	args []any
}

func (q *sqlQuery) arg(v any) string {
	if t, ok := v.(time.Time); ok {
		v = t.UnixMilli()
	}
	q.args = append(q.args, v)
	return q.bind(len(q.args))
}

func (q *sqlQuery) lower(p keyset.Predicate) string {
	switch p := p.(type) {
	case keyset.Equals:
		return sqlColumns[p.Field] + " = " + q.arg(p.Value)
	case keyset.LessThan:
		return sqlColumns[p.Field] + " < " + q.arg(p.Value)
	case keyset.And:
		terms := make([]string, 0, len(p))
		for _, term := range p {
			if keyset.IsTrue(term) {
				continue
			}
			terms = append(terms, q.lower(term))
		}
		switch len(terms) {
		case 0:
			return "1 = 1"
		case 1:
			return terms[0]
		}
		return "(" + strings.Join(terms, " AND ") + ")"
	case keyset.Or:
		if len(p) == 0 {
			return "1 = 0"
		}
		terms := make([]string, 0, len(p))
		for _, term := range p {
			terms = append(terms, q.lower(term))
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	}
	panic(fmt.Sprintf("repository: unknown predicate %T", p))
}

func lowerOrder(order []keyset.Order) string {
	terms := make([]string, 0, len(order))
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, sqlColumns[o.Field]+" "+dir)
	}
	return strings.Join(terms, ", ")
}

// SQL stores feedback in a relational database through database/sql.
type SQL struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQL(db *sql.DB, dialect database.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// SQLStore wraps s as a Store that closes db.
func SQLStore(s *SQL) Store {
	return Store{
		Feedbacks: s,
		Events:    s,
		Close:     func(context.Context) error { return s.db.Close() },
	}
}

func (s *SQL) listStatement(q keyset.Query) (string, []any) {
	lq := &sqlQuery{bind: s.dialect.Bind}
	where := lq.lower(q.Where)
	stmt := `SELECT f.id, f.event_id, e.name, f.rating, f.text, f.created_at
		FROM feedbacks f JOIN events e ON e.id = f.event_id
		WHERE ` + where + `
		ORDER BY ` + lowerOrder(q.OrderBy) + `
		LIMIT ` + strconv.Itoa(q.Take)
	return stmt, lq.args
}

func (s *SQL) List(ctx context.Context, params ListParams) (ListResult, error) {
	q, err := buildQuery(params)
	if err != nil {
		return ListResult{}, err
	}
	stmt, args := s.listStatement(q)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list feedbacks: %w", err)
	}
	defer rows.Close()

	feedbacks := make([]models.Feedback, 0, q.Take)
	for rows.Next() {
		var f models.Feedback
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.EventID, &f.EventName, &f.Rating, &f.Text, &createdAt); err != nil {
			return ListResult{}, fmt.Errorf("scan feedback: %w", err)
		}
		f.CreatedAt = time.UnixMilli(createdAt).UTC()
		feedbacks = append(feedbacks, f)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list feedbacks: %w", err)
	}
	return page(feedbacks, params)
}

func (s *SQL) Create(ctx context.Context, data NewFeedback) (models.Feedback, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Feedback{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var eventName string
	err = tx.QueryRowContext(ctx, "SELECT name FROM events WHERE id = "+s.dialect.Bind(1), data.EventID).Scan(&eventName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Feedback{}, ErrNotFound
	}
	if err != nil {
		return models.Feedback{}, fmt.Errorf("lookup event: %w", err)
	}

	f := models.Feedback{
		ID:        uuid.NewString(),
		EventID:   data.EventID,
		EventName: eventName,
		Rating:    data.Rating,
		Text:      data.Text,
		CreatedAt: createdAtOrNow(data.CreatedAt),
	}
	b := s.dialect.Bind
	_, err = tx.ExecContext(ctx,
		"INSERT INTO feedbacks (id, event_id, rating, text, created_at) VALUES ("+b(1)+", "+b(2)+", "+b(3)+", "+b(4)+", "+b(5)+")",
		f.ID, f.EventID, f.Rating, f.Text, f.CreatedAt.UnixMilli())
	if err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Feedback{}, err
	}
	return f, nil
}

func (s *SQL) ListAll(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM events ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQL) GetNameByID(ctx context.Context, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM events WHERE id = "+s.dialect.Bind(1), id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

func (s *SQL) EnsureEvent(ctx context.Context, name string) (models.Event, error) {
	b := s.dialect.Bind
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, name) VALUES ("+b(1)+", "+b(2)+") ON CONFLICT (name) DO NOTHING",
		uuid.NewString(), name)
	if err != nil {
		return models.Event{}, fmt.Errorf("ensure event: %w", err)
	}
	e := models.Event{Name: name}
	err = s.db.QueryRowContext(ctx, "SELECT id FROM events WHERE name = "+b(1), name).Scan(&e.ID)
	return e, err
}

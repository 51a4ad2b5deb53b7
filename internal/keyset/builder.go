package keyset

import (
	"fmt"

	"github.com/developia-II/feedback-board-backend/internal/cursor"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

// Filters are the optional equality filters of a feed view.
type Filters struct {
	EventID string
	Rating  *int
}

// Query is what a repository executes: rows matching Where, ordered by
// OrderBy, at most Take of them.
type Query struct {
	Where   Predicate
	OrderBy []Order
	Take    int
}

// FilterPredicate is the conjunction of the set filters. Absent filters
// contribute an always-true term.
func FilterPredicate(f Filters) Predicate {
	eventTerm, ratingTerm := True(), True()
	if f.EventID != "" {
		eventTerm = Equals{Field: FieldEventID, Value: f.EventID}
	}
	if f.Rating != nil {
		ratingTerm = Equals{Field: FieldRating, Value: *f.Rating}
	}
	return And{eventTerm, ratingTerm}
}

// OrderFor returns the total order of sort.
func OrderFor(sort models.Sort) []Order {
	if sort == models.SortHighest {
		return []Order{
			{Field: FieldRating, Desc: true},
			{Field: FieldCreatedAt, Desc: true},
			{Field: FieldID, Desc: true},
		}
	}
	return []Order{
		{Field: FieldCreatedAt, Desc: true},
		{Field: FieldID, Desc: true},
	}
}

// SeekPredicate selects rows strictly after key in the order of sort.
func SeekPredicate(sort models.Sort, key cursor.Key) (Predicate, error) {
	createdAt, err := models.ParseTimestamp(key.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at %q", cursor.ErrInvalidCursor, key.CreatedAt)
	}
	newest := Or{
		LessThan{Field: FieldCreatedAt, Value: createdAt},
		And{
			Equals{Field: FieldCreatedAt, Value: createdAt},
			LessThan{Field: FieldID, Value: key.ID},
		},
	}
	if sort != models.SortHighest {
		return newest, nil
	}
	return Or{
		LessThan{Field: FieldRating, Value: key.Rating},
		And{
			Equals{Field: FieldRating, Value: key.Rating},
			newest,
		},
	}, nil
}

// Build assembles the page query. A cursor issued for the other sort mode is
// ignored so the request degrades to a first-page fetch. limit is assumed to
// be validated by the caller; one extra row is requested to detect a next
// page.
func Build(f Filters, sort models.Sort, limit int, after *cursor.Payload) (Query, error) {
	where := FilterPredicate(f)
	if after != nil && after.Sort == sort {
		seek, err := SeekPredicate(sort, after.Key)
		if err != nil {
			return Query{}, err
		}
		where = And{where, seek}
	}
	return Query{Where: where, OrderBy: OrderFor(sort), Take: limit + 1}, nil
}

// Page trims the probe row of a limit+1 fetch and derives the next cursor
// from the last row actually returned. The cursor is empty on the last page.
func Page(rows []models.Feedback, sort models.Sort, limit int) ([]models.Feedback, string, error) {
	if len(rows) <= limit {
		return rows, "", nil
	}
	rows = rows[:limit]
	next, err := cursor.Encode(cursor.FromFeedback(sort, rows[limit-1]))
	if err != nil {
		return nil, "", err
	}
	return rows, next, nil
}

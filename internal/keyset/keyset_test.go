package keyset

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developia-II/feedback-board-backend/internal/cursor"
	"github.com/developia-II/feedback-board-backend/internal/models"
)

func intPtr(v int) *int { return &v }

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFilterPredicate(t *testing.T) {
	assert.True(t, IsTrue(FilterPredicate(Filters{})))

	p := FilterPredicate(Filters{EventID: "e1", Rating: intPtr(4)})
	assert.Equal(t, And{
		Equals{Field: FieldEventID, Value: "e1"},
		Equals{Field: FieldRating, Value: 4},
	}, p)

	p = FilterPredicate(Filters{Rating: intPtr(2)})
	assert.Equal(t, And{And{}, Equals{Field: FieldRating, Value: 2}}, p)
}

func TestBuildNewest(t *testing.T) {
	after := cursor.New(models.SortNewest, cursor.Key{CreatedAt: "2024-05-01T12:00:00.000Z", ID: "m"})
	q, err := Build(Filters{EventID: "e1"}, models.SortNewest, 20, &after)
	require.NoError(t, err)

	assert.Equal(t, 21, q.Take)
	assert.Equal(t, []Order{{FieldCreatedAt, true}, {FieldID, true}}, q.OrderBy)
	assert.Equal(t, And{
		And{Equals{Field: FieldEventID, Value: "e1"}, And{}},
		Or{
			LessThan{Field: FieldCreatedAt, Value: base},
			And{Equals{Field: FieldCreatedAt, Value: base}, LessThan{Field: FieldID, Value: "m"}},
		},
	}, q.Where)
}

func TestBuildHighest(t *testing.T) {
	after := cursor.New(models.SortHighest, cursor.Key{Rating: 4, CreatedAt: "2024-05-01T12:00:00.000Z", ID: "m"})
	q, err := Build(Filters{}, models.SortHighest, 5, &after)
	require.NoError(t, err)

	assert.Equal(t, []Order{{FieldRating, true}, {FieldCreatedAt, true}, {FieldID, true}}, q.OrderBy)
	seek := q.Where.(And)[1]
	assert.Equal(t, Or{
		LessThan{Field: FieldRating, Value: 4},
		And{
			Equals{Field: FieldRating, Value: 4},
			Or{
				LessThan{Field: FieldCreatedAt, Value: base},
				And{Equals{Field: FieldCreatedAt, Value: base}, LessThan{Field: FieldID, Value: "m"}},
			},
		},
	}, seek)
}

func TestBuildIgnoresCursorOfOtherSort(t *testing.T) {
	after := cursor.New(models.SortNewest, cursor.Key{CreatedAt: "2024-05-01T12:00:00.000Z", ID: "m"})
	q, err := Build(Filters{}, models.SortHighest, 10, &after)
	require.NoError(t, err)
	assert.True(t, IsTrue(q.Where))
}

func TestBuildRejectsUnparsableTimestamp(t *testing.T) {
	after := cursor.New(models.SortNewest, cursor.Key{CreatedAt: "yesterday", ID: "m"})
	_, err := Build(Filters{}, models.SortNewest, 10, &after)
	require.ErrorIs(t, err, cursor.ErrInvalidCursor)
}

func TestPage(t *testing.T) {
	rows := []models.Feedback{
		{ID: "c", Rating: 5, CreatedAt: base},
		{ID: "b", Rating: 4, CreatedAt: base},
		{ID: "a", Rating: 3, CreatedAt: base},
	}

	items, next, err := Page(rows[:2], models.SortNewest, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Empty(t, next)

	items, next, err = Page(rows, models.SortHighest, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, []string{items[0].ID, items[1].ID})
	p, err := cursor.Decode(next)
	require.NoError(t, err)
	assert.Equal(t, cursor.Key{Rating: 4, CreatedAt: "2024-05-01T12:00:00.000Z", ID: "b"}, p.Key)
}

func TestEval(t *testing.T) {
	r := Row{EventID: "e1", Rating: 3, CreatedAt: base, ID: "k"}
	assert.True(t, Eval(True(), r))
	assert.False(t, Eval(Or{}, r))
	assert.True(t, Eval(Equals{Field: FieldEventID, Value: "e1"}, r))
	assert.False(t, Eval(Equals{Field: FieldEventID, Value: "e2"}, r))
	assert.True(t, Eval(LessThan{Field: FieldRating, Value: 4}, r))
	assert.False(t, Eval(LessThan{Field: FieldRating, Value: 3}, r))
	assert.True(t, Eval(LessThan{Field: FieldCreatedAt, Value: base.Add(time.Millisecond)}, r))
	assert.True(t, Eval(Or{Equals{Field: FieldID, Value: "x"}, LessThan{Field: FieldID, Value: "z"}}, r))
}

// fetch executes q over rows the way a repository would.
func fetch(rows []models.Feedback, q Query) []models.Feedback {
	var out []models.Feedback
	for _, r := range rows {
		if Eval(q.Where, RowOf(r)) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.Feedback) int {
		return Compare(q.OrderBy, RowOf(a), RowOf(b))
	})
	if len(out) > q.Take {
		out = out[:q.Take]
	}
	return out
}

func TestPaginationMatchesSingleFetch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var rows []models.Feedback
	for i := 0; i < 137; i++ {
		rows = append(rows, models.Feedback{
			ID:      fmt.Sprintf("%08x", rng.Uint32()),
			EventID: []string{"e1", "e2"}[rng.Intn(2)],
			Rating:  1 + rng.Intn(5),
			// few distinct timestamps so ties are common
			CreatedAt: base.Add(time.Duration(rng.Intn(6)) * time.Millisecond),
		})
	}

	filters := []Filters{{}, {EventID: "e1"}, {Rating: intPtr(5)}, {EventID: "e2", Rating: intPtr(1)}}
	for _, sort := range []models.Sort{models.SortNewest, models.SortHighest} {
		for _, f := range filters {
			for _, limit := range []int{1, 7, 50} {
				t.Run(fmt.Sprintf("%s/%v/%d", sort, f, limit), func(t *testing.T) {
					all, err := Build(f, sort, len(rows), nil)
					require.NoError(t, err)
					want := fetch(rows, all)

					var got []models.Feedback
					var after *cursor.Payload
					for pages := 0; ; pages++ {
						require.Less(t, pages, len(rows)+2, "pagination did not terminate")
						q, err := Build(f, sort, limit, after)
						require.NoError(t, err)
						items, next, err := Page(fetch(rows, q), sort, limit)
						require.NoError(t, err)
						got = append(got, items...)
						if next == "" {
							break
						}
						p, err := cursor.Decode(next)
						require.NoError(t, err)
						after = &p
					}
					assert.Equal(t, want, got)
				})
			}
		}
	}
}

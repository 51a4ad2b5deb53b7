// Package keyset builds storage-agnostic seek predicates for the two feed
// orders. Repositories lower the predicate tree to their own query language.
package keyset

import "time"

// Field names a sortable or filterable feedback column.
type Field string

const (
	FieldEventID   Field = "event_id"
	FieldRating    Field = "rating"
	FieldCreatedAt Field = "created_at"
	FieldID        Field = "id"
)

// Predicate is one of Equals, LessThan, And, Or.
//
// Values are typed per field: string for FieldEventID and FieldID, int for
// FieldRating, time.Time for FieldCreatedAt.
type Predicate interface {
	predicate()
}

type Equals struct {
	Field Field
	Value any
}

type LessThan struct {
	Field Field
	Value any
}

// And is true when every term is true; an empty And is always true.
type And []Predicate

// Or is true when any term is true; an empty Or is always false.
type Or []Predicate

func (Equals) predicate()   {}
func (LessThan) predicate() {}
func (And) predicate()      {}
func (Or) predicate()       {}

// True is the no-op term contributed by an absent filter.
func True() Predicate { return And{} }

// IsTrue reports whether p is trivially true (an empty And, possibly nested).
func IsTrue(p Predicate) bool {
	a, ok := p.(And)
	if !ok {
		return false
	}
	for _, term := range a {
		if !IsTrue(term) {
			return false
		}
	}
	return true
}

// Order is one ORDER BY term.
type Order struct {
	Field Field
	Desc  bool
}

// Row is the subset of a feedback row the algebra can inspect.
type Row struct {
	EventID   string
	Rating    int
	CreatedAt time.Time
	ID        string
}

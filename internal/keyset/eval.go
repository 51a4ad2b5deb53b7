package keyset

import (
	"fmt"
	"strings"
	"time"

	"github.com/developia-II/feedback-board-backend/internal/models"
)

// Eval reports whether r satisfies p.
func Eval(p Predicate, r Row) bool {
	switch p := p.(type) {
	case Equals:
		return compareField(p.Field, r, p.Value) == 0
	case LessThan:
		return compareField(p.Field, r, p.Value) < 0
	case And:
		for _, term := range p {
			if !Eval(term, r) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range p {
			if Eval(term, r) {
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("keyset: unknown predicate %T", p))
	}
}

func compareField(f Field, r Row, v any) int {
	switch f {
	case FieldEventID:
		return strings.Compare(r.EventID, v.(string))
	case FieldID:
		return strings.Compare(r.ID, v.(string))
	case FieldRating:
		return compareInt(r.Rating, v.(int))
	case FieldCreatedAt:
		return r.CreatedAt.Compare(v.(time.Time))
	default:
		panic(fmt.Sprintf("keyset: unknown field %q", f))
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare returns a negative number when a precedes b under order.
func Compare(order []Order, a, b Row) int {
	for _, o := range order {
		var c int
		switch o.Field {
		case FieldRating:
			c = compareInt(a.Rating, b.Rating)
		case FieldCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case FieldID:
			c = strings.Compare(a.ID, b.ID)
		case FieldEventID:
			c = strings.Compare(a.EventID, b.EventID)
		}
		if o.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// RowOf projects a feedback onto the fields the algebra inspects.
func RowOf(f models.Feedback) Row {
	return Row{EventID: f.EventID, Rating: f.Rating, CreatedAt: f.CreatedAt, ID: f.ID}
}

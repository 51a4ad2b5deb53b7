package models

// Sort selects one of the two total orders of the feed.
type Sort string

const (
	// SortNewest orders by (created_at, id), both descending.
	SortNewest Sort = "newest"
	// SortHighest orders by (rating, created_at, id), all descending.
	SortHighest Sort = "highest"
)

func (s Sort) Valid() bool {
	return s == SortNewest || s == SortHighest
}

package models

import (
	"strings"
	"time"
)

// TimestampLayout is the wire format for created_at: UTC with exactly three
// fractional digits, so lexicographic and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Feedback is one submitted rating and comment as read back from storage.
type Feedback struct {
	ID        string    `json:"id" bson:"_id"`
	EventID   string    `json:"eventId" bson:"eventId"`
	EventName string    `json:"eventName" bson:"-"`
	Rating    int       `json:"rating" bson:"rating"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// FeedbackItem is the serialized shape shared by the REST read path and the
// live-update channel.
type FeedbackItem struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Rating    int    `json:"rating"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Item converts a stored row into its wire representation.
func (f Feedback) Item() FeedbackItem {
	return FeedbackItem{
		ID:        f.ID,
		EventID:   f.EventID,
		EventName: f.EventName,
		Rating:    f.Rating,
		Text:      f.Text,
		CreatedAt: FormatTimestamp(f.CreatedAt),
	}
}

// Items converts a page of rows, never returning nil so JSON renders [].
func Items(rows []Feedback) []FeedbackItem {
	out := make([]FeedbackItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Item())
	}
	return out
}

type FeedbackRequest struct {
	EventID string `json:"event_id" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Text    string `json:"text" validate:"required,max=1000"`
}

// Normalize trims the comment so whitespace-only text fails validation.
func (r *FeedbackRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

// ListFeedbacksQuery holds the query string of the list endpoints.
type ListFeedbacksQuery struct {
	EventID string `query:"event_id" validate:"omitempty,uuid"`
	Rating  *int   `query:"rating" validate:"omitempty,min=1,max=5"`
	Sort    Sort   `query:"sort" validate:"omitempty,oneof=newest highest"`
	Limit   *int   `query:"limit" validate:"omitempty,min=1,max=50"`
	Cursor  string `query:"cursor"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// ApplyDefaults fills sort and limit when the caller left them out.
func (q *ListFeedbacksQuery) ApplyDefaults() {
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	if q.Limit == nil {
		limit := DefaultLimit
		q.Limit = &limit
	}
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp, including TimestampLayout.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Now returns the current time truncated to the precision that survives a
// round trip through the wire format.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

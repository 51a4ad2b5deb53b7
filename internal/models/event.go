package models

type Event struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// EventSummary is the generated digest of an event's recent feedback.
type EventSummary struct {
	PositivePercentage  int      `json:"positive_percentage"`
	TopHighlights       []string `json:"top_highlights"`
	AreasForImprovement []string `json:"areas_for_improvement"`
}

// Package realtime fans feedback.created events out to websocket subscribers
// grouped in rooms.
package realtime

import (
	"strings"

	"github.com/google/uuid"

	"github.com/developia-II/feedback-board-backend/internal/models"
)

// Room is a named broadcast channel: the global feed or one event's feed.
type Room string

const (
	RoomFeedbacks   Room = "feedbacks"
	eventRoomPrefix      = "event:"
)

const EventFeedbackCreated = "feedback.created"

// Event is the message delivered to room subscribers. Its payload has the
// same shape as a REST feed item.
type Event struct {
	Type    string              `json:"type"`
	Payload models.FeedbackItem `json:"payload"`
}

func FeedbackCreated(item models.FeedbackItem) Event {
	return Event{Type: EventFeedbackCreated, Payload: item}
}

func RoomForEvent(eventID string) Room {
	return Room(eventRoomPrefix + eventID)
}

// IsValidRoom accepts the global room and event rooms whose suffix is a
// canonical RFC 4122 UUID.
func IsValidRoom(room string) bool {
	if Room(room) == RoomFeedbacks {
		return true
	}
	id, ok := strings.CutPrefix(room, eventRoomPrefix)
	if !ok || len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 5
}

// Package cursor implements the opaque pagination token handed to clients as
// next_cursor. A token is base64url(JSON{v, sort, k}) without padding; k is
// the sort key tuple of the last row of the previous page.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/developia-II/feedback-board-backend/internal/models"
)

// Version is the only payload schema accepted by Decode.
const Version = 1

// ErrInvalidCursor reports a token that is malformed, carries an unknown
// version, or whose key tuple does not match its sort mode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Key is the sort key tuple. Rating is only meaningful for SortHighest.
type Key struct {
	Rating    int
	CreatedAt string
	ID        string
}

type Payload struct {
	Version int
	Sort    models.Sort
	Key     Key
}

type wirePayload struct {
	V    int             `json:"v"`
	Sort string          `json:"sort"`
	K    json.RawMessage `json:"k"`
}

// New builds a current-version payload.
func New(sort models.Sort, key Key) Payload {
	return Payload{Version: Version, Sort: sort, Key: key}
}

// FromFeedback derives the payload that resumes a scan right after f.
func FromFeedback(sort models.Sort, f models.Feedback) Payload {
	key := Key{CreatedAt: models.FormatTimestamp(f.CreatedAt), ID: f.ID}
	if sort == models.SortHighest {
		key.Rating = f.Rating
	}
	return New(sort, key)
}

func (p Payload) tuple() []any {
	if p.Sort == models.SortHighest {
		return []any{p.Key.Rating, p.Key.CreatedAt, p.Key.ID}
	}
	return []any{p.Key.CreatedAt, p.Key.ID}
}

// Encode serializes p into a URL-safe token.
func Encode(p Payload) (string, error) {
	k, err := json.Marshal(p.tuple())
	if err != nil {
		return "", fmt.Errorf("encode cursor key: %w", err)
	}
	raw, err := json.Marshal(wirePayload{V: p.Version, Sort: string(p.Sort), K: k})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses token and validates its shape. It never coerces: a rating
// that is not an integer, a missing field or an extra tuple element all fail
// with ErrInvalidCursor.
func Decode(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if wire.V != Version {
		return Payload{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidCursor, wire.V)
	}
	sort := models.Sort(wire.Sort)
	if !sort.Valid() {
		return Payload{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidCursor, wire.Sort)
	}
	var tuple []any
	if err := json.Unmarshal(wire.K, &tuple); err != nil || tuple == nil {
		return Payload{}, fmt.Errorf("%w: key is not an array", ErrInvalidCursor)
	}

	p := Payload{Version: wire.V, Sort: sort}
	switch sort {
	case models.SortNewest:
		if len(tuple) != 2 {
			return Payload{}, fmt.Errorf("%w: newest key must have 2 elements", ErrInvalidCursor)
		}
		createdAt, ok1 := tuple[0].(string)
		id, ok2 := tuple[1].(string)
		if !ok1 || !ok2 {
			return Payload{}, fmt.Errorf("%w: newest key must be [string, string]", ErrInvalidCursor)
		}
		p.Key = Key{CreatedAt: createdAt, ID: id}
	case models.SortHighest:
		if len(tuple) != 3 {
			return Payload{}, fmt.Errorf("%w: highest key must have 3 elements", ErrInvalidCursor)
		}
		rating, ok1 := tuple[0].(float64)
		createdAt, ok2 := tuple[1].(string)
		id, ok3 := tuple[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return Payload{}, fmt.Errorf("%w: highest key must be [number, string, string]", ErrInvalidCursor)
		}
		if rating != math.Trunc(rating) || math.Abs(rating) > math.MaxInt32 {
			return Payload{}, fmt.Errorf("%w: rating must be an integer", ErrInvalidCursor)
		}
		p.Key = Key{Rating: int(rating), CreatedAt: createdAt, ID: id}
	}
	return p, nil
}

// Package feedclient consumes the feedback board API: REST pages, creation
// and the live-update socket.
package feedclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feedback api: %d %s", e.Status, e.Message)
}

type ListOptions struct {
	EventID string
	Rating  int
	Sort    models.Sort
	Limit   int
	Cursor  string
}

type Page struct {
	Items      []models.FeedbackItem
	NextCursor string
}

type Client struct {
	baseURL string
	timeout time.Duration
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type envelope[T any] struct {
	Data       T       `json:"data"`
	NextCursor *string `json:"next_cursor"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var env envelope[[]models.Event]
	if err := c.do(ctx, fiber.Get(c.baseURL+"/api/v1/events"), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ListFeedbacks(ctx context.Context, opts ListOptions) (Page, error) {
	q := url.Values{}
	if opts.EventID != "" {
		q.Set("event_id", opts.EventID)
	}
	if opts.Rating != 0 {
		q.Set("rating", strconv.Itoa(opts.Rating))
	}
	if opts.Sort != "" {
		q.Set("sort", string(opts.Sort))
	}
	if opts.Limit != 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	target := c.baseURL + "/api/v1/feedbacks"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var env envelope[[]models.FeedbackItem]
	if err := c.do(ctx, fiber.Get(target), &env); err != nil {
		return Page{}, err
	}
	page := Page{Items: env.Data}
	if env.NextCursor != nil {
		page.NextCursor = *env.NextCursor
	}
	return page, nil
}

func (c *Client) CreateFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackItem, error) {
	agent := fiber.Post(c.baseURL + "/api/v1/feedbacks").
		JSONEncoder(json.Marshal).
		JSON(req)

	var env envelope[models.FeedbackItem]
	if err := c.do(ctx, agent, &env); err != nil {
		return models.FeedbackItem{}, err
	}
	return env.Data, nil
}

// do runs the request and decodes the envelope into out. The agent has no
// context support, so ctx is only honoured before the call.
func (c *Client) do(ctx context.Context, agent *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(min(c.timeout, time.Until(deadline)))
	} else {
		agent.Timeout(c.timeout)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errs[0])
	}

	if status >= fiber.StatusBadRequest {
		var env envelope[json.RawMessage]
		if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
			return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
		}
		return &APIError{Status: status, Message: env.Error.Message, Details: env.Error.Details}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/socket"
	return u.String(), nil
}

type socketEnvelope struct {
	Type    string              `json:"type"`
	Payload models.FeedbackItem `json:"payload"`
	Message string              `json:"message"`
}

// Subscribe joins rooms and streams feedback.created events until ctx ends
// or the connection drops, then closes the channel. Error replies from the
// server are skipped.
func (c *Client) Subscribe(ctx context.Context, rooms ...string) (<-chan realtime.Event, error) {
	target, err := c.socketURL()
	if err != nil {
		return nil, fmt.Errorf("socket url: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial socket: %w", err)
	}

	for _, room := range rooms {
		msg, _ := json.Marshal(map[string]string{"action": "join", "room": room})
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			conn.CloseNow()
			return nil, fmt.Errorf("join %s: %w", room, err)
		}
	}

	events := make(chan realtime.Event, 64)
	go func() {
		defer close(events)
		defer conn.CloseNow()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg socketEnvelope
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != realtime.EventFeedbackCreated {
				continue
			}
			select {
			case events <- realtime.FeedbackCreated(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

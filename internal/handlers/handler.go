package handlers

import (
	"errors"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/developia-II/feedback-board-backend/internal/cursor"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
	"github.com/developia-II/feedback-board-backend/internal/repository"
	"github.com/developia-II/feedback-board-backend/internal/services"
	"github.com/developia-II/feedback-board-backend/utils"
)

type Options struct {
	Feedbacks *services.FeedbackService
	Events    repository.EventRepository
	// Summaries is nil when the summary feature is disabled.
	Summaries *services.SummaryService
	Registry  *realtime.Registry
	Logger    *slog.Logger
}

// Handler serves the REST API and the live-update socket.
type Handler struct {
	feedbacks *services.FeedbackService
	events    repository.EventRepository
	summaries *services.SummaryService
	registry  *realtime.Registry
	log       *slog.Logger
}

func New(opts Options) *Handler {
	h := &Handler{
		feedbacks: opts.Feedbacks,
		events:    opts.Events,
		summaries: opts.Summaries,
		registry:  opts.Registry,
		log:       opts.Logger,
	}
	if h.registry == nil {
		h.registry = realtime.Default
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// FiberConfig is the app configuration shared by the server and tests.
func FiberConfig() fiber.Config {
	return fiber.Config{
		AppName:      "feedback-board",
		ErrorHandler: ErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}
}

func (h *Handler) Routes(app *fiber.App) {
	app.Use("/api/socket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/socket", websocket.New(h.Socket))

	api := app.Group("/api/v1")

	api.Get("/events", h.ListEvents)
	api.Get("/events/:event_id/feedbacks", h.ListEventFeedbacks)
	api.Get("/events/:event_id/summary", h.EventSummary)

	api.Get("/feedbacks", h.ListFeedbacks)
	api.Post("/feedbacks", h.CreateFeedback)
}

// ErrorHandler renders every error as the error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var reqErr *utils.RequestError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &reqErr):
		return utils.ErrorWithDetails(c, reqErr.Status, reqErr.Message, reqErr.Details)
	case errors.Is(err, cursor.ErrInvalidCursor):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Invalid cursor")
	case errors.Is(err, repository.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Not found")
	case errors.As(err, &fiberErr):
		return utils.ErrorResponse(c, fiberErr.Code, fiberErr.Message)
	}

	slog.ErrorContext(c.UserContext(), "request failed",
		"method", c.Method(), "path", c.Path(), "error", err)
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal Server Error")
}

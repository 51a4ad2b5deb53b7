package handlers

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/developia-II/feedback-board-backend/internal/cursor"
	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/repository"
	"github.com/developia-II/feedback-board-backend/internal/services"
	"github.com/developia-II/feedback-board-backend/utils"
)

func (h *Handler) ListFeedbacks(c *fiber.Ctx) error {
	return h.listFeedbacks(c, "")
}

func (h *Handler) CreateFeedback(c *fiber.Ctx) error {
	var req models.FeedbackRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return utils.NewRequestError(fiber.StatusUnprocessableEntity, "Invalid request body",
				[]utils.FieldError{{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.String()}})
		}
		return utils.NewRequestError(fiber.StatusBadRequest, "Invalid JSON body", nil)
	}

	req.Normalize()
	if err := utils.Validate.Struct(req); err != nil {
		return utils.NewRequestError(fiber.StatusUnprocessableEntity, "Invalid request body", utils.ValidationDetails(err))
	}

	ctx := c.UserContext()
	eventName, err := h.events.GetNameByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Event not found")
	}
	if err != nil {
		return fmt.Errorf("lookup event: %w", err)
	}

	created, err := h.feedbacks.CreateFeedback(ctx, services.CreateFeedbackInput{
		EventID:   req.EventID,
		EventName: eventName,
		Rating:    req.Rating,
		Text:      req.Text,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Event not found")
	}
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}

	return utils.OK(c, fiber.StatusCreated, created.Item(), "")
}

// listFeedbacks serves both list routes. A non-empty scopedEventID overrides
// the event_id query parameter.
func (h *Handler) listFeedbacks(c *fiber.Ctx, scopedEventID string) error {
	var q models.ListFeedbacksQuery
	if err := c.QueryParser(&q); err != nil {
		return utils.NewRequestError(fiber.StatusUnprocessableEntity, "Invalid query parameters", nil)
	}
	if scopedEventID != "" {
		q.EventID = scopedEventID
	}
	q.ApplyDefaults()
	if err := utils.Validate.Struct(q); err != nil {
		return utils.NewRequestError(fiber.StatusUnprocessableEntity, "Invalid query parameters", utils.ValidationDetails(err))
	}

	params := repository.ListParams{
		EventID: q.EventID,
		Rating:  q.Rating,
		Sort:    q.Sort,
		Limit:   *q.Limit,
	}
	if q.Cursor != "" {
		p, err := cursor.Decode(q.Cursor)
		if err != nil {
			return utils.NewRequestError(fiber.StatusUnprocessableEntity, "Invalid cursor", nil)
		}
		params.Cursor = &p
	}

	res, err := h.feedbacks.ListFeedbacks(c.UserContext(), params)
	if err != nil {
		return fmt.Errorf("list feedbacks: %w", err)
	}
	return utils.OK(c, fiber.StatusOK, models.Items(res.Items), res.NextCursor)
}

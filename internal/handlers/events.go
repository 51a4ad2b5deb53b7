package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/repository"
	"github.com/developia-II/feedback-board-backend/utils"
)

type summaryResponse struct {
	EventID string              `json:"event_id"`
	Summary models.EventSummary `json:"summary"`
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	events, err := h.events.ListAll(c.UserContext())
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return utils.OK(c, fiber.StatusOK, events, "")
}

func (h *Handler) ListEventFeedbacks(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if err := h.requireEvent(c, eventID); err != nil {
		return err
	}
	return h.listFeedbacks(c, eventID)
}

func (h *Handler) EventSummary(c *fiber.Ctx) error {
	if h.summaries == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Summaries feature is disabled")
	}

	eventID := c.Params("event_id")
	if err := h.requireEvent(c, eventID); err != nil {
		return err
	}

	summary, err := h.summaries.ComputeSummaryForEvent(c.UserContext(), eventID)
	if err != nil {
		return fmt.Errorf("compute summary: %w", err)
	}
	return utils.OK(c, fiber.StatusOK, summaryResponse{EventID: eventID, Summary: summary}, "")
}

func (h *Handler) requireEvent(c *fiber.Ctx, eventID string) error {
	_, err := h.events.GetNameByID(c.UserContext(), eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.NewRequestError(fiber.StatusNotFound, "Event not found", nil)
	}
	if err != nil {
		return fmt.Errorf("lookup event: %w", err)
	}
	return nil
}

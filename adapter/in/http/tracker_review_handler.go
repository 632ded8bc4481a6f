package http

import (
	"github.com/gofiber/fiber/v2"

	"tracker_server/core/port/in"
	"tracker_server/pkg/response"
)

// ReviewHandler exposes the review queue of unclassified mail.
type ReviewHandler struct {
	review in.ReviewService
}

func NewReviewHandler(review in.ReviewService) *ReviewHandler {
	return &ReviewHandler{review: review}
}

func (h *ReviewHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	review := router.Group("/review", mw...)
	review.Get("/unknown", h.ListUnknown)
	review.Post("/confirm", h.Confirm)
}

// ListUnknown returns the user's review queue, newest first.
func (h *ReviewHandler) ListUnknown(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	snaps, err := h.review.ListUnknown(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.List(c, snaps, len(snaps))
}

type confirmRequest struct {
	SnapshotID  string `json:"snapshotId"`
	FinalIntent string `json:"finalIntent"`
}

// Confirm applies the user's decision to one queued snapshot.
func (h *ReviewHandler) Confirm(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req confirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.review.Confirm(c.UserContext(), userID, req.SnapshotID, req.FinalIntent)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

package handlers

import (
	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/store"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// AdminApprove moves a pending submission straight into the lexicon.
func (h *Handler) AdminApprove(c *fiber.Ctx) error {
	rec, err := h.submissions.AdminApprove(c.UserContext(), c.Params("submissionId"), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"submission": rec,
	})
}

func (h *Handler) AdminReject(c *fiber.Ctx) error {
	rec, err := h.submissions.AdminReject(c.UserContext(), c.Params("submissionId"), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"submission": rec,
	})
}

// AdminStats returns submission counts by status and the lexicon size for the dashboard
func (h *Handler) AdminStats(c *fiber.Ctx) error {
	stats, err := h.submissions.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"stats": stats,
	})
}

// AdminSubmissions lists submissions, optionally filtered by ?status=
func (h *Handler) AdminSubmissions(c *fiber.Ctx) error {
	opts := store.ListOptions{}
	if s := c.Query("status"); s != "" {
		status, err := models.ParseSubmissionStatus(s)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
		}
		opts.Status = status
	}
	return h.listPage(c, opts)
}

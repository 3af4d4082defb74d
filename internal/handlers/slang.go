package handlers

import (
	"log"
	"net/url"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/store"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// SubmitSlang records a new term and runs it through validation before answering.
func (h *Handler) SubmitSlang(c *fiber.Ctx) error {
	var req models.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("handlers: submit body parse error: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	rec, err := h.submissions.Submit(c.UserContext(), currentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"submission": rec,
	})
}

func (h *Handler) Upvote(c *fiber.Ctx) error {
	rec, err := h.submissions.Upvote(c.UserContext(), c.Params("submissionId"), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"submission": rec,
	})
}

// PendingSubmissions lists what the community can vote on.
func (h *Handler) PendingSubmissions(c *fiber.Ctx) error {
	return h.listPage(c, store.ListOptions{Status: models.StatusPendingVote})
}

func (h *Handler) MySubmissions(c *fiber.Ctx) error {
	return h.listPage(c, store.ListOptions{UserID: currentUser(c)})
}

func (h *Handler) LookupTerm(c *fiber.Ctx) error {
	term, err := url.PathUnescape(c.Params("term"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid term")
	}
	entry, err := h.lexicon.Lookup(c.UserContext(), term)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"entry": entry,
	})
}

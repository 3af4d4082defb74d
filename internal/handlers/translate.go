package handlers

import (
	"context"
	"log"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Translate(c *fiber.Ctx) error {
	var req models.TranslateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("handlers: translate body parse error: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.Validate.Struct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, utils.ValidationMessage(err))
	}

	ctx := c.UserContext()
	res, err := h.translator.Translate(ctx, req.Text, req.Direction)
	if err != nil {
		return err
	}

	if len(res.MatchedTerms) > 0 {
		h.publishMatches(ctx, res)
	}

	return c.JSON(models.TranslateResponse{
		Translation: res,
		Billable:    res.Billable(),
	})
}

// publishMatches reports which terms were hit, for trending analytics. It does not
// hold up the response.
func (h *Handler) publishMatches(ctx context.Context, res *models.TranslationResult) {
	terms := make([]string, 0, len(res.MatchedTerms))
	seen := make(map[string]bool, len(res.MatchedTerms))
	for _, m := range res.MatchedTerms {
		if !seen[m.Term] {
			seen[m.Term] = true
			terms = append(terms, m.Term)
		}
	}
	ev := models.Event{
		Type:       models.EventTermsMatched,
		Terms:      terms,
		Direction:  res.Direction,
		OccurredAt: time.Now(),
	}
	go h.notifier.Publish(context.WithoutCancel(ctx), ev)
}

// IndexInfo reports which lexicon snapshot is serving translations.
func (h *Handler) IndexInfo(c *fiber.Ctx) error {
	snap := h.lexicon.Snapshot()
	return c.JSON(fiber.Map{
		"index": fiber.Map{
			"version":         snap.Version,
			"builtAt":         snap.BuiltAt,
			"entries":         snap.Slang.Len(),
			"slangPatterns":   snap.Slang.Patterns(),
			"englishPatterns": snap.English.Patterns(),
		},
	})
}

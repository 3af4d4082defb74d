package handlers

import (
	"context"
	"strconv"

	"github.com/developia-II/slang-translator-backend/internal/matcher"
	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/services"
	"github.com/developia-II/slang-translator-backend/internal/store"
	"github.com/gofiber/fiber/v2"
)

type Translator interface {
	Translate(ctx context.Context, text string, dir models.Direction) (*models.TranslationResult, error)
}

type Submissions interface {
	Submit(ctx context.Context, userID string, req models.SubmitRequest) (*models.SubmissionRecord, error)
	Upvote(ctx context.Context, id, userID string) (*models.SubmissionRecord, error)
	AdminApprove(ctx context.Context, id, adminID string) (*models.SubmissionRecord, error)
	AdminReject(ctx context.Context, id, adminID string) (*models.SubmissionRecord, error)
	List(ctx context.Context, opts store.ListOptions) ([]models.SubmissionRecord, int64, error)
	Stats(ctx context.Context) (*services.SubmissionStats, error)
}

type Lexicon interface {
	Lookup(ctx context.Context, term string) (*models.LexiconEntry, error)
	Snapshot() *matcher.Snapshot
}

// Handler serves the /api/v1 surface.
type Handler struct {
	translator  Translator
	submissions Submissions
	lexicon     Lexicon
	notifier    services.Notifier
	jwtSecret   string
}

func New(translator Translator, submissions Submissions, lexicon Lexicon, notifier services.Notifier, jwtSecret string) *Handler {
	if notifier == nil {
		notifier = services.LogNotifier{}
	}
	return &Handler{
		translator:  translator,
		submissions: submissions,
		lexicon:     lexicon,
		notifier:    notifier,
		jwtSecret:   jwtSecret,
	}
}

// Register mounts every route on router. All of them require a valid token.
func (h *Handler) Register(router fiber.Router) {
	router.Use(AuthMiddleware(h.jwtSecret))

	// Translation routes
	router.Post("/translate", h.Translate)
	router.Get("/translations/index", h.IndexInfo)

	// Slang routes; /:term goes last so it does not shadow the fixed paths.
	slang := router.Group("/slang")
	slang.Post("/submit", PremiumMiddleware, h.SubmitSlang)
	slang.Post("/upvote/:submissionId", h.Upvote)
	slang.Get("/pending", h.PendingSubmissions)
	slang.Get("/submissions/mine", h.MySubmissions)
	slang.Post("/admin/approve/:submissionId", AdminMiddleware, h.AdminApprove)
	slang.Post("/admin/reject/:submissionId", AdminMiddleware, h.AdminReject)
	slang.Get("/:term", h.LookupTerm)

	// Admin routes
	admin := router.Group("/admin", AdminMiddleware)
	admin.Get("/stats", h.AdminStats)
	admin.Get("/submissions", h.AdminSubmissions)
}

// pageParams reads page and limit the way every paginated endpoint does.
func pageParams(c *fiber.Ctx) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(store.DefaultPageLimit)))
	if err != nil || limit < 1 || limit > store.MaxPageLimit {
		limit = store.DefaultPageLimit
	}
	return page, limit
}

func (h *Handler) listPage(c *fiber.Ctx, opts store.ListOptions) error {
	opts.Page, opts.Limit = pageParams(c)
	recs, total, err := h.submissions.List(c.UserContext(), opts)
	if err != nil {
		return err
	}
	return c.JSON(models.SubmissionPage{
		Submissions: recs,
		Page:        opts.Page,
		Limit:       opts.Limit,
		Total:       total,
		TotalPages:  (total + int64(opts.Limit) - 1) / int64(opts.Limit),
	})
}

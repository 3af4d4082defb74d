package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/store"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/google/uuid"
)

// PipelineDeps are the collaborators of the validation pipeline. Search, Quota,
// Notifier, Now and NewID have working defaults.
type PipelineDeps struct {
	Submissions store.SubmissionStore
	Lexicon     *LexiconService
	LLM         LLM
	Search      Searcher
	Quota       Quota
	Notifier    Notifier
	Now         func() time.Time
	NewID       func() string
}

type ValidationConfig struct {
	Thresholds
	CommunityApproveUpvotes int
	// CommunityConfidence is the lowest lexicon confidence given to a term approved by
	// votes or an admin; a higher model score is kept.
	CommunityConfidence  float64
	DailySubmissionLimit int
	MaxSnippets          int
	// Timeout bounds search plus model for one submission.
	Timeout    time.Duration
	StuckAfter time.Duration
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		Thresholds:              DefaultThresholds(),
		CommunityApproveUpvotes: 10,
		CommunityConfidence:     0.7,
		DailySubmissionLimit:    10,
		MaxSnippets:             5,
		Timeout:                 30 * time.Second,
		StuckAfter:              10 * time.Minute,
	}
}

// finalizeTimeout bounds the writes that close out a submission after its caller left.
const finalizeTimeout = 10 * time.Second

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

// ValidationPipeline runs user submissions through search, model scoring and the
// decision table, then through community votes and admin review.
type ValidationPipeline struct {
	deps PipelineDeps
	cfg  ValidationConfig
}

func NewValidationPipeline(deps PipelineDeps, cfg ValidationConfig) *ValidationPipeline {
	if deps.Search == nil {
		deps.Search = NoopSearcher{}
	}
	if deps.Quota == nil {
		deps.Quota = NewMemoryQuota(cfg.DailySubmissionLimit)
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &ValidationPipeline{deps: deps, cfg: cfg}
}

type validationReply struct {
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	UsageScore     *float64 `json:"usageScore" validate:"required,gte=0,lte=10"`
	MeaningMatches *bool    `json:"meaningMatches"`
	Rationale      string   `json:"rationale"`
}

// Submit records a new term and validates it in the request path. Duplicates and quota
// are checked before any external call.
func (p *ValidationPipeline) Submit(ctx context.Context, userID string, req models.SubmitRequest) (*models.SubmissionRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", models.ErrInvalidInput)
	}
	if err := utils.Validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, utils.ValidationMessage(err))
	}
	term := models.NormalizeTerm(req.Term)
	meaning := strings.TrimSpace(req.Meaning)
	if term == "" || meaning == "" {
		return nil, fmt.Errorf("%w: term and meaning must not be blank", models.ErrInvalidInput)
	}
	subCtx := req.Context
	if subCtx == "" {
		subCtx = models.ContextManual
	}

	exists, err := p.deps.Lexicon.ActiveSurfaceExists(ctx, term)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%q is already in the lexicon: %w", term, models.ErrDuplicateSubmission)
	}
	if open, err := p.deps.Submissions.FindOpenByTerm(ctx, term); err == nil {
		return nil, fmt.Errorf("%q is already under review as %s: %w", term, open.ID, models.ErrDuplicateSubmission)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := p.deps.Now()
	allowed, err := p.deps.Quota.Allow(ctx, userID, now)
	if err != nil {
		log.Printf("validation: quota check failed user=%s err=%v (allowing)", userID, err)
		allowed = true
	}
	if !allowed {
		return nil, fmt.Errorf("daily limit of %d submissions reached: %w", p.cfg.DailySubmissionLimit, models.ErrRateLimited)
	}

	rec := &models.SubmissionRecord{
		ID:                  p.deps.NewID(),
		UserID:              userID,
		SlangTerm:           strings.TrimSpace(req.Term),
		NormalizedTerm:      term,
		ProposedMeaning:     meaning,
		ExampleUsage:        strings.TrimSpace(req.Example),
		Context:             subCtx,
		Status:              models.StatusSubmitted,
		LLMValidationStatus: models.LLMValidationPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		OpenTerm:            term,
	}
	if err := p.deps.Submissions.Create(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("validation: submission created id=%s term=%q user=%s context=%s", rec.ID, term, userID, subCtx)
	p.deps.Notifier.Publish(ctx, models.Event{
		Type:         models.EventSubmissionCreated,
		SubmissionID: rec.ID,
		Term:         term,
		Status:       rec.Status,
		OccurredAt:   now,
	})

	if _, err := p.Validate(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate moves a SUBMITTED record through VALIDATING to its outcome. Search and model
// failures, including the deadline, fail open to PENDING_VOTE. Store writes use a
// context detached from ctx, so a caller that goes away still leaves a settled record.
// rec is updated in place.
func (p *ValidationPipeline) Validate(ctx context.Context, rec *models.SubmissionRecord) (ValidationOutcome, error) {
	sctx, scancel := detached(ctx)
	started, err := p.deps.Submissions.UpdateStatus(sctx, rec.ID, models.StatusUpdate{
		From: models.StatusSubmitted,
		To:   models.StatusValidating,
		At:   p.deps.Now(),
	})
	scancel()
	if err != nil {
		return ValidationOutcome{}, err
	}
	*rec = *started

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	scores, evidence, llmStatus, runErr := p.assess(runCtx, started)
	cancel()

	fctx, fcancel := detached(ctx)
	defer fcancel()

	update := models.StatusUpdate{
		From:                models.StatusValidating,
		At:                  p.deps.Now(),
		LLMValidationStatus: llmStatus,
		Evidence:            evidence,
	}
	var rule string
	if runErr != nil {
		update.To, rule = models.StatusPendingVote, "fail_open"
		log.Printf("validation: fail open id=%s term=%q llm=%s err=%v", rec.ID, rec.NormalizedTerm, llmStatus, runErr)
	} else {
		update.To, rule = Decide(p.cfg.Thresholds, scores)
		conf, usage := scores.Confidence, scores.Usage
		update.LLMConfidenceScore = &conf
		update.LLMUsageScore = &usage
	}

	if update.To == models.StatusAutoApproved {
		if _, err := p.deps.Lexicon.ApplyApproval(fctx, started, models.ApprovalAuto, scores.Confidence); err != nil {
			log.Printf("validation: lexicon write-back failed id=%s term=%q err=%v (holding for vote)", rec.ID, rec.NormalizedTerm, err)
			update.To, rule = models.StatusPendingVote, "write_back_failed"
		} else {
			update.ApprovalType = models.ApprovalAuto
		}
	}

	final, err := p.deps.Submissions.UpdateStatus(fctx, rec.ID, update)
	if errors.Is(err, models.ErrInvalidTransition) {
		// An admin closed the record while it was being validated; their decision stands.
		current, gerr := p.settleLost(fctx, started, update.To)
		if gerr != nil {
			return ValidationOutcome{}, fmt.Errorf("finalize submission %s: %w", rec.ID, gerr)
		}
		*rec = *current
		log.Printf("validation: superseded id=%s term=%q status=%s", rec.ID, rec.NormalizedTerm, current.Status)
		return ValidationOutcome{
			Status:    current.Status,
			Rule:      "superseded",
			LLMStatus: llmStatus,
			Evidence:  evidence,
			Record:    current,
		}, nil
	}
	if err != nil {
		return ValidationOutcome{}, fmt.Errorf("finalize submission %s: %w", rec.ID, err)
	}
	*rec = *final

	log.Printf("validation: decided id=%s term=%q status=%s rule=%s llm=%s confidence=%s latency=%s",
		rec.ID, rec.NormalizedTerm, final.Status, rule, llmStatus, formatScore(final.LLMConfidenceScore), time.Since(start))
	p.publishOutcome(fctx, final)

	return ValidationOutcome{
		Status:    final.Status,
		Rule:      rule,
		LLMStatus: llmStatus,
		Evidence:  evidence,
		Record:    final,
	}, nil
}

func (p *ValidationPipeline) assess(ctx context.Context, rec *models.SubmissionRecord) (Scores, *models.ValidationEvidence, models.LLMValidationStatus, error) {
	evidence := &models.ValidationEvidence{
		SubmissionID:   rec.ID,
		SearchSnippets: []string{},
	}

	query := fmt.Sprintf("%q slang meaning", rec.SlangTerm)
	snippets, err := p.deps.Search.Search(ctx, query, p.cfg.MaxSnippets)
	if err != nil {
		evidence.CollectedAt = p.deps.Now()
		return Scores{}, evidence, failureStatus(ctx, err), fmt.Errorf("search: %w", err)
	}
	if len(snippets) > p.cfg.MaxSnippets {
		snippets = snippets[:p.cfg.MaxSnippets]
	}
	evidence.SearchSnippets = append(evidence.SearchSnippets, snippets...)

	reply, err := completeJSON[validationReply](ctx, p.deps.LLM, CompletionRequest{
		System:      validatorSystemPrompt,
		Prompt:      buildValidationPrompt(rec, snippets),
		JSON:        true,
		Temperature: 0.1,
		MaxTokens:   400,
	}, "validate")
	evidence.CollectedAt = p.deps.Now()
	if err != nil {
		return Scores{}, evidence, failureStatus(ctx, err), err
	}

	scores := Scores{
		Confidence:     *reply.Confidence,
		Usage:          int(math.Round(*reply.UsageScore)),
		MeaningMatches: reply.MeaningMatches == nil || *reply.MeaningMatches,
	}
	evidence.LLMRationale = strings.TrimSpace(reply.Rationale)
	evidence.LLMConfidence = scores.Confidence
	evidence.LLMUsageScore = scores.Usage
	evidence.MeaningMatches = scores.MeaningMatches
	return scores, evidence, models.LLMValidationCompleted, nil
}

func failureStatus(ctx context.Context, err error) models.LLMValidationStatus {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return models.LLMValidationTimedOut
	}
	return models.LLMValidationUnavailable
}

// Upvote adds one vote from userID. Reaching the community threshold approves the
// record and writes the term into the lexicon.
func (p *ValidationPipeline) Upvote(ctx context.Context, id, userID string) (*models.SubmissionRecord, error) {
	rec, err := p.deps.Submissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID == userID {
		return nil, fmt.Errorf("submission %s: %w", id, models.ErrSelfVote)
	}
	if rec.Status != models.StatusPendingVote {
		return nil, fmt.Errorf("submission %s is %s, not open for votes: %w", id, rec.Status, models.ErrInvalidTransition)
	}

	updated, err := p.deps.Submissions.AddUpvote(ctx, id, userID, p.deps.Now())
	if err != nil {
		return nil, err
	}
	if updated.Upvotes < p.cfg.CommunityApproveUpvotes {
		return updated, nil
	}
	return p.approve(ctx, updated, models.ApprovalCommunity, models.StatusCommunityApproved, "")
}

// AdminApprove approves a PENDING_VOTE record without waiting for votes.
func (p *ValidationPipeline) AdminApprove(ctx context.Context, id, adminID string) (*models.SubmissionRecord, error) {
	rec, err := p.deps.Submissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPendingVote {
		return nil, fmt.Errorf("submission %s is %s: %w", id, rec.Status, models.ErrInvalidTransition)
	}
	return p.approve(ctx, rec, models.ApprovalAdmin, models.StatusAdminApproved, adminID)
}

// AdminReject closes any non-terminal record.
func (p *ValidationPipeline) AdminReject(ctx context.Context, id, adminID string) (*models.SubmissionRecord, error) {
	rec, err := p.deps.Submissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsTerminal() {
		return nil, fmt.Errorf("submission %s is already %s: %w", id, rec.Status, models.ErrInvalidTransition)
	}

	now := p.deps.Now()
	final, err := p.deps.Submissions.UpdateStatus(ctx, id, models.StatusUpdate{
		From:       rec.Status,
		To:         models.StatusAdminRejected,
		At:         now,
		ReviewedBy: adminID,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("validation: admin rejected id=%s term=%q admin=%s", id, final.NormalizedTerm, adminID)
	p.publishOutcome(ctx, final)
	return final, nil
}

func (p *ValidationPipeline) approve(ctx context.Context, rec *models.SubmissionRecord, approval models.ApprovalType, to models.SubmissionStatus, reviewer string) (*models.SubmissionRecord, error) {
	fctx, cancel := detached(ctx)
	defer cancel()

	confidence := p.cfg.CommunityConfidence
	if rec.LLMConfidenceScore != nil && *rec.LLMConfidenceScore > confidence {
		confidence = *rec.LLMConfidenceScore
	}
	if _, err := p.deps.Lexicon.ApplyApproval(fctx, rec, approval, confidence); err != nil {
		return nil, err
	}

	now := p.deps.Now()
	update := models.StatusUpdate{
		From:         models.StatusPendingVote,
		To:           to,
		At:           now,
		ApprovalType: approval,
	}
	if reviewer != "" {
		update.ReviewedBy = reviewer
		update.ReviewedAt = &now
	}

	final, err := p.deps.Submissions.UpdateStatus(fctx, rec.ID, update)
	if errors.Is(err, models.ErrInvalidTransition) {
		// A concurrent vote or admin got there first.
		current, gerr := p.settleLost(fctx, rec, to)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status.IsApproved() || approval == models.ApprovalCommunity {
			return current, nil
		}
		return nil, fmt.Errorf("submission %s is %s: %w", rec.ID, current.Status, models.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("validation: approved id=%s term=%q approval=%s upvotes=%d", final.ID, final.NormalizedTerm, approval, final.Upvotes)
	p.publishOutcome(fctx, final)
	return final, nil
}

// settleLost handles a status write that lost its compare-and-set. The stored record is
// returned; when it did not end approved, the lexicon entry written for it is revoked.
func (p *ValidationPipeline) settleLost(ctx context.Context, rec *models.SubmissionRecord, wanted models.SubmissionStatus) (*models.SubmissionRecord, error) {
	current, err := p.deps.Submissions.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if wanted.IsApproved() && !current.Status.IsApproved() {
		if err := p.deps.Lexicon.RevokeApproval(ctx, rec); err != nil {
			log.Printf("validation: revoke failed id=%s term=%q err=%v", rec.ID, rec.NormalizedTerm, err)
			return nil, err
		}
	}
	return current, nil
}

// RecoverStuck moves records left in SUBMITTED or VALIDATING past StuckAfter to
// PENDING_VOTE. A SUBMITTED record passes through VALIDATING on the way.
func (p *ValidationPipeline) RecoverStuck(ctx context.Context) (int, error) {
	now := p.deps.Now()
	stuck, err := p.deps.Submissions.ListStuck(ctx, now.Add(-p.cfg.StuckAfter))
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, rec := range stuck {
		if rec.Status == models.StatusSubmitted {
			_, err := p.deps.Submissions.UpdateStatus(ctx, rec.ID, models.StatusUpdate{
				From: models.StatusSubmitted,
				To:   models.StatusValidating,
				At:   now,
			})
			if errors.Is(err, models.ErrInvalidTransition) {
				continue
			}
			if err != nil {
				return recovered, err
			}
		}
		final, err := p.deps.Submissions.UpdateStatus(ctx, rec.ID, models.StatusUpdate{
			From:                models.StatusValidating,
			To:                  models.StatusPendingVote,
			At:                  now,
			LLMValidationStatus: models.LLMValidationTimedOut,
		})
		if errors.Is(err, models.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered++
		log.Printf("validation: recovered stuck id=%s term=%q since=%s", final.ID, final.NormalizedTerm, rec.UpdatedAt.Format(time.RFC3339))
		p.publishOutcome(ctx, final)
	}
	return recovered, nil
}

func (p *ValidationPipeline) Get(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	return p.deps.Submissions.Get(ctx, id)
}

func (p *ValidationPipeline) List(ctx context.Context, opts store.ListOptions) ([]models.SubmissionRecord, int64, error) {
	return p.deps.Submissions.List(ctx, opts)
}

type SubmissionStats struct {
	ByStatus       map[models.SubmissionStatus]int64 `json:"byStatus"`
	Total          int64                             `json:"totalSubmissions"`
	LexiconEntries int64                             `json:"lexiconEntries"`
	IndexVersion   uint64                            `json:"indexVersion"`
}

func (p *ValidationPipeline) Stats(ctx context.Context) (*SubmissionStats, error) {
	counts, err := p.deps.Submissions.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := p.deps.Lexicon.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	stats := &SubmissionStats{
		ByStatus:       make(map[models.SubmissionStatus]int64, len(counts)),
		LexiconEntries: entries,
		IndexVersion:   p.deps.Lexicon.Snapshot().Version,
	}
	for _, st := range models.AllStatuses() {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

func (p *ValidationPipeline) publishOutcome(ctx context.Context, rec *models.SubmissionRecord) {
	typ := models.EventSubmissionResolved
	if rec.Status.IsApproved() {
		typ = models.EventSubmissionApproved
	}
	p.deps.Notifier.Publish(ctx, models.Event{
		Type:         typ,
		SubmissionID: rec.ID,
		Term:         rec.NormalizedTerm,
		Status:       rec.Status,
		ApprovalType: rec.ApprovalType,
		OccurredAt:   rec.UpdatedAt,
	})
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

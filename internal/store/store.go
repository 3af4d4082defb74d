// Package store persists the lexicon and the submission queue. MongoDB backs production;
// the in-memory implementations serve tests and local runs without a database.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

// LexiconStore is the durable, versioned catalogue of slang entries. Every write bumps
// the store-wide version so the matcher knows when to rebuild.
type LexiconStore interface {
	// Get returns the entry keyed by the normalized term, active or not.
	Get(ctx context.Context, term string) (*models.LexiconEntry, error)
	// FindActiveBySurface returns the active entry whose term or a variant normalizes
	// to surface.
	FindActiveBySurface(ctx context.Context, surface string) (*models.LexiconEntry, error)
	// ListActive returns every active entry together with the version they reflect.
	ListActive(ctx context.Context) ([]models.LexiconEntry, uint64, error)
	// Upsert writes the entry (after Refresh) and returns the new store version.
	Upsert(ctx context.Context, e models.LexiconEntry) (uint64, error)
	// DecayMomentum multiplies every active entry's momentum by factor.
	DecayMomentum(ctx context.Context, factor float64) (int64, uint64, error)
	Version(ctx context.Context) (uint64, error)
	CountActive(ctx context.Context) (int64, error)
}

// SubmissionStore holds submissions with their evidence and votes. Status changes are
// compare-and-set: they only apply while the stored status equals StatusUpdate.From.
type SubmissionStore interface {
	// Create inserts a new record. A second open record for the same normalized term
	// fails with models.ErrDuplicateSubmission.
	Create(ctx context.Context, rec *models.SubmissionRecord) error
	Get(ctx context.Context, id string) (*models.SubmissionRecord, error)
	FindOpenByTerm(ctx context.Context, normalizedTerm string) (*models.SubmissionRecord, error)
	// UpdateStatus fails with models.ErrInvalidTransition when the move is not allowed
	// or the stored status is no longer u.From.
	UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.SubmissionRecord, error)
	// AddUpvote records one vote per user on a PENDING_VOTE record.
	AddUpvote(ctx context.Context, id, userID string, at time.Time) (*models.SubmissionRecord, error)
	List(ctx context.Context, opts ListOptions) ([]models.SubmissionRecord, int64, error)
	CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int64, error)
	// ListStuck returns SUBMITTED and VALIDATING records last touched before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]models.SubmissionRecord, error)
}

type ListOptions struct {
	Status models.SubmissionStatus
	UserID string
	Page   int
	Limit  int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 || o.Limit > MaxPageLimit {
		o.Limit = DefaultPageLimit
	}
	return o
}

func (o ListOptions) skip() int {
	return (o.Page - 1) * o.Limit
}

func checkTransition(u models.StatusUpdate) error {
	if !u.From.CanTransitionTo(u.To) {
		return transitionError(u.From, u.To)
	}
	return nil
}

func transitionError(from, to models.SubmissionStatus) error {
	return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
}

package models

import "errors"

// Domain errors shared by the matcher, stores, services and handlers.
// Wrap them with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrInvalidInput indicates a malformed request (empty or oversized text, bad enum).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateSubmission indicates the term is already in the lexicon or already
	// under review.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrUpstreamUnavailable indicates the LLM or search service failed after the
	// bounded retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrDuplicateVariant indicates a lexicon where one spelling maps to two entries.
	ErrDuplicateVariant = errors.New("duplicate variant")

	// ErrRateLimited indicates the per-user daily submission quota is used up.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates a requested entry or submission does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a status change the state machine does not allow,
	// or a record whose status moved underneath the caller.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyVoted indicates the user has already upvoted the submission.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrSelfVote indicates a user tried to upvote their own submission.
	ErrSelfVote = errors.New("cannot upvote own submission")
)

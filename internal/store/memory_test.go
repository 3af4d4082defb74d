package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

func newRecord(id, user, term string, status models.SubmissionStatus, at time.Time) *models.SubmissionRecord {
	norm := models.NormalizeTerm(term)
	rec := &models.SubmissionRecord{
		ID:              id,
		UserID:          user,
		SlangTerm:       term,
		NormalizedTerm:  norm,
		ProposedMeaning: "meaning of " + term,
		Context:         models.ContextManual,
		Status:          status,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	if !status.IsTerminal() {
		rec.OpenTerm = norm
	}
	return rec
}

func TestMemoryLexicon_UpsertVersionsAndLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLexicon()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v1, err := s.Upsert(ctx, models.LexiconEntry{Term: "  No Cap ", Variants: []string{"NOCAP"}, Gloss: "for real", Active: true})
	require.NoError(t, err)
	v2, err := s.Upsert(ctx, models.LexiconEntry{Term: "mid", Gloss: "mediocre", Active: false})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)

	got, err := s.Get(ctx, "NO CAP")
	require.NoError(t, err)
	assert.Equal(t, "no cap", got.Term)
	assert.Equal(t, []string{"no cap", "nocap"}, got.Surfaces)
	assert.Equal(t, uint64(1), got.Version)

	found, err := s.FindActiveBySurface(ctx, "NoCap")
	require.NoError(t, err)
	assert.Equal(t, "no cap", found.Term)

	_, err = s.FindActiveBySurface(ctx, "mid")
	assert.True(t, errors.Is(err, models.ErrNotFound), "inactive entries are not matched")

	active, version, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, active, 1)

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Upsert(ctx, models.LexiconEntry{Term: "   "})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestMemoryLexicon_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLexicon()
	_, err := s.Upsert(ctx, models.LexiconEntry{Term: "slay", Variants: []string{"slayy"}, Active: true})
	require.NoError(t, err)

	got, err := s.Get(ctx, "slay")
	require.NoError(t, err)
	got.Variants[0] = "mutated"

	again, err := s.Get(ctx, "slay")
	require.NoError(t, err)
	assert.Equal(t, []string{"slayy"}, again.Variants)
}

func TestMemoryLexicon_DecayMomentum(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLexicon()
	_, _ = s.Upsert(ctx, models.LexiconEntry{Term: "rizz", Momentum: 1, Confidence: 0.9, Active: true})
	_, _ = s.Upsert(ctx, models.LexiconEntry{Term: "on fleek", Momentum: 0, Active: true})
	_, _ = s.Upsert(ctx, models.LexiconEntry{Term: "yeet", Momentum: 1, Active: false})

	n, version, err := s.DecayMomentum(ctx, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, uint64(4), version)

	rizz, _ := s.Get(ctx, "rizz")
	assert.InDelta(t, 0.5, rizz.Momentum, 1e-9)
	yeet, _ := s.Get(ctx, "yeet")
	assert.InDelta(t, 1.0, yeet.Momentum, 1e-9)
}

func TestMemorySubmissions_CreateRejectsSecondOpenTerm(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	now := time.Now()

	require.NoError(t, s.Create(ctx, newRecord("a", "u1", "Rizz", models.StatusSubmitted, now)))
	err := s.Create(ctx, newRecord("b", "u2", "rizz", models.StatusSubmitted, now))
	assert.True(t, errors.Is(err, models.ErrDuplicateSubmission))

	open, err := s.FindOpenByTerm(ctx, "rizz")
	require.NoError(t, err)
	assert.Equal(t, "a", open.ID)

	// Once the first one is resolved the term is free again.
	_, err = s.UpdateStatus(ctx, "a", models.StatusUpdate{From: models.StatusSubmitted, To: models.StatusAdminRejected, At: now})
	require.NoError(t, err)
	_, err = s.FindOpenByTerm(ctx, "rizz")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	require.NoError(t, s.Create(ctx, newRecord("b", "u2", "rizz", models.StatusSubmitted, now)))
}

func TestMemorySubmissions_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	now := time.Now()
	require.NoError(t, s.Create(ctx, newRecord("a", "u1", "delulu", models.StatusSubmitted, now)))

	_, err := s.UpdateStatus(ctx, "a", models.StatusUpdate{From: models.StatusSubmitted, To: models.StatusAutoApproved, At: now})
	assert.True(t, errors.Is(err, models.ErrInvalidTransition), "not in the transition table")

	_, err = s.UpdateStatus(ctx, "missing", models.StatusUpdate{From: models.StatusSubmitted, To: models.StatusValidating, At: now})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	conf := 0.42
	usage := 5
	rec, err := s.UpdateStatus(ctx, "a", models.StatusUpdate{From: models.StatusSubmitted, To: models.StatusValidating, At: now})
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidating, rec.Status)

	rec, err = s.UpdateStatus(ctx, "a", models.StatusUpdate{
		From:                models.StatusValidating,
		To:                  models.StatusPendingVote,
		At:                  now,
		LLMValidationStatus: models.LLMValidationCompleted,
		LLMConfidenceScore:  &conf,
		LLMUsageScore:       &usage,
		Evidence:            &models.ValidationEvidence{SubmissionID: "a", SearchSnippets: []string{"x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingVote, rec.Status)
	require.NotNil(t, rec.Evidence)
	assert.Equal(t, 0.42, *rec.LLMConfidenceScore)

	// A stale caller still believing the record is VALIDATING loses.
	_, err = s.UpdateStatus(ctx, "a", models.StatusUpdate{From: models.StatusValidating, To: models.StatusRejected, At: now})
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestMemorySubmissions_ConcurrentCASHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	now := time.Now()
	require.NoError(t, s.Create(ctx, newRecord("a", "u1", "gyat", models.StatusSubmitted, now)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateStatus(ctx, "a", models.StatusUpdate{From: models.StatusSubmitted, To: models.StatusValidating, At: now})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemorySubmissions_AddUpvote(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	now := time.Now()
	require.NoError(t, s.Create(ctx, newRecord("p", "owner", "sheesh", models.StatusPendingVote, now)))
	require.NoError(t, s.Create(ctx, newRecord("q", "owner", "bet", models.StatusSubmitted, now)))

	rec, err := s.AddUpvote(ctx, "p", "v1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Upvotes)

	_, err = s.AddUpvote(ctx, "p", "v1", now)
	assert.True(t, errors.Is(err, models.ErrAlreadyVoted))

	_, err = s.AddUpvote(ctx, "q", "v1", now)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	_, err = s.AddUpvote(ctx, "nope", "v1", now)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	rec, err = s.AddUpvote(ctx, "p", "v2", now)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Upvotes)
	assert.Equal(t, []string{"v1", "v2"}, rec.Voters)
}

func TestMemorySubmissions_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		status := models.StatusPendingVote
		if i%5 == 0 {
			status = models.StatusRejected
		}
		user := "u1"
		if i%2 == 1 {
			user = "u2"
		}
		rec := newRecord(fmt.Sprintf("id-%02d", i), user, fmt.Sprintf("term %d", i), status, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Create(ctx, rec))
	}

	page, total, err := s.List(ctx, ListOptions{Status: models.StatusPendingVote, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)
	require.Len(t, page, 10)
	assert.Equal(t, "id-24", page[0].ID, "newest first")

	page, _, err = s.List(ctx, ListOptions{Status: models.StatusPendingVote, Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page)

	mine, total, err := s.List(ctx, ListOptions{UserID: "u2", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, mine, 12)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), counts[models.StatusPendingVote])
	assert.Equal(t, int64(5), counts[models.StatusRejected])
}

func TestMemorySubmissions_ListStuck(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubmissions()
	now := time.Now()
	require.NoError(t, s.Create(ctx, newRecord("old", "u", "a", models.StatusValidating, now.Add(-time.Hour))))
	require.NoError(t, s.Create(ctx, newRecord("new", "u", "b", models.StatusValidating, now)))
	require.NoError(t, s.Create(ctx, newRecord("pending", "u", "c", models.StatusPendingVote, now.Add(-time.Hour))))
	require.NoError(t, s.Create(ctx, newRecord("orphan", "u", "d", models.StatusSubmitted, now.Add(-2*time.Hour))))
	require.NoError(t, s.Create(ctx, newRecord("queued", "u", "e", models.StatusSubmitted, now)))

	stuck, err := s.ListStuck(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 2)
	assert.Equal(t, "orphan", stuck[0].ID)
	assert.Equal(t, "old", stuck[1].ID)
}

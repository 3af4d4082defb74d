package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/matcher"
	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/store"
)

// LexiconService owns the live matching snapshot. Writes go to the store and then ask
// for a rebuild; a single background loop coalesces those requests.
type LexiconService struct {
	store   store.LexiconStore
	holder  *matcher.Holder
	rebuild chan struct{}
	mu      sync.Mutex
	now     func() time.Time
}

func NewLexiconService(s store.LexiconStore) *LexiconService {
	return &LexiconService{
		store:   s,
		holder:  matcher.NewHolder(),
		rebuild: make(chan struct{}, 1),
		now:     time.Now,
	}
}

func (l *LexiconService) Snapshot() *matcher.Snapshot {
	return l.holder.Load()
}

// Rebuild compiles the active lexicon and swaps it in. When the build fails the
// previous snapshot stays live and the error is returned.
func (l *LexiconService) Rebuild(ctx context.Context) (*matcher.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.holder.Load()
	version, err := l.store.Version(ctx)
	if err != nil {
		return current, fmt.Errorf("rebuild lexicon: %w", err)
	}
	if version != 0 && version == current.Version {
		return current, nil
	}

	entries, version, err := l.store.ListActive(ctx)
	if err != nil {
		return current, fmt.Errorf("rebuild lexicon: %w", err)
	}

	start := time.Now()
	next, err := matcher.BuildSnapshot(version, entries)
	if err != nil {
		log.Printf("lexicon: rebuild failed version=%d err=%v (keeping version=%d)", version, err, current.Version)
		return current, fmt.Errorf("rebuild lexicon: %w", err)
	}
	l.holder.Swap(next)
	log.Printf("lexicon: index swapped version=%d entries=%d patterns=%d took=%s",
		version, next.Slang.Len(), next.Slang.Patterns(), time.Since(start))
	return next, nil
}

// RequestRebuild schedules a rebuild without waiting. Requests made while one is
// pending collapse into it.
func (l *LexiconService) RequestRebuild() {
	select {
	case l.rebuild <- struct{}{}:
	default:
	}
}

// Run serves rebuild requests until ctx is done.
func (l *LexiconService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.rebuild:
			if _, err := l.Rebuild(ctx); err != nil && ctx.Err() == nil {
				log.Printf("lexicon: %v", err)
			}
		}
	}
}

// Lookup finds the active entry for any spelling of a term.
func (l *LexiconService) Lookup(ctx context.Context, term string) (*models.LexiconEntry, error) {
	key := models.NormalizeTerm(term)
	if key == "" {
		return nil, fmt.Errorf("%w: empty term", models.ErrInvalidInput)
	}
	return l.store.FindActiveBySurface(ctx, key)
}

// ActiveSurfaceExists reports whether term or any variant of an active entry already
// normalizes to surface.
func (l *LexiconService) ActiveSurfaceExists(ctx context.Context, surface string) (bool, error) {
	_, err := l.store.FindActiveBySurface(ctx, surface)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ApplyApproval writes an approved submission into the lexicon: confidence from the
// approval, momentum reset to 1, tagged with how it was approved.
func (l *LexiconService) ApplyApproval(ctx context.Context, rec *models.SubmissionRecord, approval models.ApprovalType, confidence float64) (*models.LexiconEntry, error) {
	term := rec.NormalizedTerm
	owner, err := l.store.FindActiveBySurface(ctx, term)
	switch {
	case err == nil && owner.Term != term:
		return nil, fmt.Errorf("%q is already a variant of %q: %w", term, owner.Term, models.ErrDuplicateSubmission)
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	now := l.now()
	entry, err := l.store.Get(ctx, term)
	if errors.Is(err, models.ErrNotFound) {
		entry = &models.LexiconEntry{Term: term, FirstAttested: now}
	} else if err != nil {
		return nil, err
	}

	entry.Gloss = rec.ProposedMeaning
	if rec.ExampleUsage != "" && !containsString(entry.Examples, rec.ExampleUsage) {
		entry.Examples = append(entry.Examples, rec.ExampleUsage)
	}
	entry.Confidence = clampUnit(confidence)
	entry.Momentum = 1.0
	entry.Active = true
	entry.ApprovalType = approval
	entry.SourceSubmissionID = rec.ID
	entry.UpdatedAt = now
	if entry.FirstAttested.IsZero() {
		entry.FirstAttested = now
	}

	version, err := l.store.Upsert(ctx, *entry)
	if err != nil {
		return nil, fmt.Errorf("write approved term %q: %w", term, err)
	}
	entry.Version = version
	entry.Refresh()

	log.Printf("lexicon: term approved term=%q approval=%s confidence=%.2f version=%d", term, approval, entry.Confidence, version)
	l.RequestRebuild()
	return entry, nil
}

// RevokeApproval deactivates the entry written for rec when the submission did not end
// approved after all. Entries owned by another submission are left alone.
func (l *LexiconService) RevokeApproval(ctx context.Context, rec *models.SubmissionRecord) error {
	entry, err := l.store.Get(ctx, rec.NormalizedTerm)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !entry.Active || entry.SourceSubmissionID != rec.ID {
		return nil
	}

	entry.Active = false
	entry.UpdatedAt = l.now()
	version, err := l.store.Upsert(ctx, *entry)
	if err != nil {
		return fmt.Errorf("revoke term %q: %w", rec.NormalizedTerm, err)
	}
	log.Printf("lexicon: approval revoked term=%q submission=%s version=%d", rec.NormalizedTerm, rec.ID, version)
	l.RequestRebuild()
	return nil
}

// DecayMomentum lowers every active entry's momentum so terms that stop being approved
// or refreshed drift down the tie-break order.
func (l *LexiconService) DecayMomentum(ctx context.Context, factor float64) (int64, error) {
	n, version, err := l.store.DecayMomentum(ctx, factor)
	if err != nil {
		return 0, fmt.Errorf("decay momentum: %w", err)
	}
	log.Printf("lexicon: momentum decayed entries=%d factor=%.3f version=%d", n, factor, version)
	if n > 0 {
		l.RequestRebuild()
	}
	return n, nil
}

// Import upserts seed entries after checking that the resulting lexicon still builds.
// Nothing is written when the check fails.
func (l *LexiconService) Import(ctx context.Context, entries []models.LexiconEntry) (int, error) {
	existing, version, err := l.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	incoming := make(map[string]bool, len(entries))
	merged := make([]models.LexiconEntry, 0, len(existing)+len(entries))
	for _, e := range entries {
		e = e.Clone()
		e.Refresh()
		if incoming[e.Term] {
			return 0, fmt.Errorf("%w: term %q listed twice", models.ErrDuplicateVariant, e.Term)
		}
		incoming[e.Term] = true
		if e.Active {
			merged = append(merged, e)
		}
	}
	for _, e := range existing {
		if !incoming[e.Term] {
			merged = append(merged, e)
		}
	}
	if _, err := matcher.BuildSnapshot(version, merged); err != nil {
		return 0, fmt.Errorf("import rejected: %w", err)
	}

	for i, e := range entries {
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = l.now()
		}
		if _, err := l.store.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("import %q: %w", e.Term, err)
		}
	}
	log.Printf("lexicon: imported entries=%d", len(entries))
	l.RequestRebuild()
	return len(entries), nil
}

func (l *LexiconService) CountActive(ctx context.Context) (int64, error) {
	return l.store.CountActive(ctx)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

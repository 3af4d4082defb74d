package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

// MemoryLexicon is a LexiconStore held in process memory. Values are copied on the way
// in and out so callers never share slices with the store.
type MemoryLexicon struct {
	mu      sync.RWMutex
	entries map[string]models.LexiconEntry
	version uint64
}

func NewMemoryLexicon() *MemoryLexicon {
	return &MemoryLexicon{entries: make(map[string]models.LexiconEntry)}
}

func (s *MemoryLexicon) Get(_ context.Context, term string) (*models.LexiconEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[models.NormalizeTerm(term)]
	if !ok {
		return nil, fmt.Errorf("lexicon entry %q: %w", term, models.ErrNotFound)
	}
	c := e.Clone()
	return &c, nil
}

func (s *MemoryLexicon) FindActiveBySurface(_ context.Context, surface string) (*models.LexiconEntry, error) {
	key := models.NormalizeTerm(surface)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if !e.Active {
			continue
		}
		for _, sf := range e.Surfaces {
			if sf == key {
				c := e.Clone()
				return &c, nil
			}
		}
	}
	return nil, fmt.Errorf("lexicon surface %q: %w", surface, models.ErrNotFound)
}

func (s *MemoryLexicon) ListActive(_ context.Context) ([]models.LexiconEntry, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LexiconEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out, s.version, nil
}

func (s *MemoryLexicon) Upsert(_ context.Context, e models.LexiconEntry) (uint64, error) {
	e = e.Clone()
	e.Refresh()
	if e.Term == "" {
		return 0, fmt.Errorf("%w: empty lexicon term", models.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	e.Version = s.version
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	s.entries[e.Term] = e
	return s.version, nil
}

func (s *MemoryLexicon) DecayMomentum(_ context.Context, factor float64) (int64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.entries {
		if !e.Active || e.Momentum == 0 {
			continue
		}
		e.Momentum *= factor
		e.Refresh()
		s.entries[k] = e
		n++
	}
	if n > 0 {
		s.version++
	}
	return n, s.version, nil
}

func (s *MemoryLexicon) Version(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *MemoryLexicon) CountActive(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if e.Active {
			n++
		}
	}
	return n, nil
}

// MemorySubmissions is a SubmissionStore held in process memory.
type MemorySubmissions struct {
	mu      sync.RWMutex
	records map[string]models.SubmissionRecord
	open    map[string]string // normalized term -> id of the open record
}

func NewMemorySubmissions() *MemorySubmissions {
	return &MemorySubmissions{
		records: make(map[string]models.SubmissionRecord),
		open:    make(map[string]string),
	}
}

func (s *MemorySubmissions) Create(_ context.Context, rec *models.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("submission %s: %w", rec.ID, models.ErrDuplicateSubmission)
	}
	if !rec.Status.IsTerminal() {
		if _, ok := s.open[rec.NormalizedTerm]; ok {
			return fmt.Errorf("term %q already under review: %w", rec.NormalizedTerm, models.ErrDuplicateSubmission)
		}
		s.open[rec.NormalizedTerm] = rec.ID
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemorySubmissions) Get(_ context.Context, id string) (*models.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, models.ErrNotFound)
	}
	c := r.Clone()
	return &c, nil
}

func (s *MemorySubmissions) FindOpenByTerm(_ context.Context, normalizedTerm string) (*models.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.open[normalizedTerm]
	if !ok {
		return nil, fmt.Errorf("open submission for %q: %w", normalizedTerm, models.ErrNotFound)
	}
	c := s.records[id].Clone()
	return &c, nil
}

func (s *MemorySubmissions) UpdateStatus(_ context.Context, id string, u models.StatusUpdate) (*models.SubmissionRecord, error) {
	if err := checkTransition(u); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, models.ErrNotFound)
	}
	if r.Status != u.From {
		return nil, fmt.Errorf("submission %s is %s: %w", id, r.Status, transitionError(u.From, u.To))
	}

	r = r.Clone()
	u.Apply(&r)
	if u.To.IsTerminal() {
		delete(s.open, r.NormalizedTerm)
	}
	s.records[id] = r

	c := r.Clone()
	return &c, nil
}

func (s *MemorySubmissions) AddUpvote(_ context.Context, id, userID string, at time.Time) (*models.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, models.ErrNotFound)
	}
	if r.Status != models.StatusPendingVote {
		return nil, fmt.Errorf("submission %s is %s: %w", id, r.Status, models.ErrInvalidTransition)
	}
	for _, v := range r.Voters {
		if v == userID {
			return nil, fmt.Errorf("submission %s: %w", id, models.ErrAlreadyVoted)
		}
	}

	r = r.Clone()
	r.Voters = append(r.Voters, userID)
	r.Upvotes++
	r.UpdatedAt = at
	s.records[id] = r

	c := r.Clone()
	return &c, nil
}

func (s *MemorySubmissions) List(_ context.Context, opts ListOptions) ([]models.SubmissionRecord, int64, error) {
	opts = opts.normalized()

	s.mu.RLock()
	matched := make([]models.SubmissionRecord, 0)
	for _, r := range s.records {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if opts.UserID != "" && r.UserID != opts.UserID {
			continue
		}
		matched = append(matched, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	from := opts.skip()
	if from >= len(matched) {
		return []models.SubmissionRecord{}, total, nil
	}
	to := from + opts.Limit
	if to > len(matched) {
		to = len(matched)
	}
	return matched[from:to], total, nil
}

func (s *MemorySubmissions) CountByStatus(_ context.Context) (map[models.SubmissionStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.SubmissionStatus]int64)
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}

func (s *MemorySubmissions) ListStuck(_ context.Context, cutoff time.Time) ([]models.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SubmissionRecord
	for _, r := range s.records {
		if (r.Status == models.StatusSubmitted || r.Status == models.StatusValidating) && r.UpdatedAt.Before(cutoff) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

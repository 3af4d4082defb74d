package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/internal/store"
)

// step is one scripted model answer.
type step struct {
	reply string
	err   error
	delay time.Duration
}

// fakeLLM replays its steps in order and repeats the last one when it runs out.
type fakeLLM struct {
	mu       sync.Mutex
	steps    []step
	calls    int
	requests []CompletionRequest
}

func newFakeLLM(steps ...step) *fakeLLM {
	return &fakeLLM{steps: steps}
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	s := step{reply: "{}"}
	if len(f.steps) > 0 {
		i := f.calls - 1
		if i >= len(f.steps) {
			i = len(f.steps) - 1
		}
		s = f.steps[i]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLLM) Request(i int) CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

type fakeSearcher struct {
	mu       sync.Mutex
	snippets []string
	err      error
	calls    int
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, max int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.snippets...), nil
}

func (f *fakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Publish(_ context.Context, ev models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) Types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

// noBackoff removes the pause between model attempts for the duration of a test.
func noBackoff(t *testing.T) {
	t.Helper()
	prev := backoffSleep
	backoffSleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { backoffSleep = prev })
}

func seedEntries() []models.LexiconEntry {
	return []models.LexiconEntry{
		{Term: "no cap", Variants: []string{"nocap"}, Gloss: "for real, no lie", Confidence: 0.95, Momentum: 0.9, Active: true,
			Examples: []string{"no cap, that was the best pizza"}},
		{Term: "fire", Gloss: "excellent", Confidence: 0.9, Momentum: 0.8, Active: true},
		{Term: "lowkey", Gloss: "somewhat, secretly", Confidence: 0.85, Momentum: 0.7, Active: true},
		{Term: "mid", Gloss: "mediocre", Confidence: 0.8, Momentum: 0.5, Active: false},
	}
}

// newTestLexicon returns a lexicon service over an in-memory store holding the seed
// entries, already rebuilt.
func newTestLexicon(t *testing.T) (*LexiconService, *store.MemoryLexicon) {
	t.Helper()
	ctx := context.Background()
	ls := store.NewMemoryLexicon()
	for _, e := range seedEntries() {
		_, err := ls.Upsert(ctx, e)
		require.NoError(t, err)
	}
	lex := NewLexiconService(ls)
	_, err := lex.Rebuild(ctx)
	require.NoError(t, err)
	return lex, ls
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

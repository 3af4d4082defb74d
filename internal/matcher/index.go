// Package matcher finds lexicon terms inside free text with an Aho-Corasick automaton.
//
// An Index is immutable after Build and safe for any number of concurrent Scan calls.
// Rebuilds produce a new Index; Holder swaps it in atomically.
package matcher

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

// DuplicateVariantError reports a spelling claimed by two different entries.
type DuplicateVariantError struct {
	Variant string
	First   string
	Second  string
}

func (e *DuplicateVariantError) Error() string {
	return fmt.Sprintf("duplicate variant %q: claimed by %q and %q", e.Variant, e.First, e.Second)
}

func (e *DuplicateVariantError) Unwrap() error {
	return models.ErrDuplicateVariant
}

// Options tune Build.
type Options struct {
	Version uint64

	// Surfaces picks the spellings to index for an entry. Defaults to term + variants.
	Surfaces func(e *models.LexiconEntry) []string

	// Shared lets several entries claim one spelling; the best-ranked entry keeps it
	// instead of Build failing.
	Shared bool
}

type pattern struct {
	entry     int32
	variant   string
	length    int
	leftWord  bool
	rightWord bool
}

type Index struct {
	version  uint64
	entries  []models.LexiconEntry
	patterns []pattern
	byKey    map[string]int32
	ac       *automaton
}

// BuildIndex indexes every term and variant. It fails with a *DuplicateVariantError
// (errors.Is models.ErrDuplicateVariant) when a spelling maps to two entries.
func BuildIndex(entries []models.LexiconEntry) (*Index, error) {
	return Build(entries, Options{})
}

func Build(entries []models.LexiconEntry, opts Options) (*Index, error) {
	surfaces := opts.Surfaces
	if surfaces == nil {
		surfaces = func(e *models.LexiconEntry) []string { return e.Spellings() }
	}

	idx := &Index{
		version: opts.Version,
		entries: make([]models.LexiconEntry, len(entries)),
		byKey:   make(map[string]int32),
		ac:      newAutomaton(),
	}
	for i := range entries {
		idx.entries[i] = entries[i].Clone()
	}

	var keys [][]rune
	for i := range idx.entries {
		e := &idx.entries[i]
		for _, s := range surfaces(e) {
			key := normalizePattern(s)
			if len(key) == 0 {
				continue
			}
			if pi, ok := idx.byKey[string(key)]; ok {
				prev := &idx.patterns[pi]
				if prev.entry == int32(i) {
					continue
				}
				if !opts.Shared {
					return nil, &DuplicateVariantError{Variant: s, First: idx.entries[prev.entry].Term, Second: e.Term}
				}
				if outranks(e, &idx.entries[prev.entry]) {
					prev.entry = int32(i)
					prev.variant = s
				}
				continue
			}
			idx.byKey[string(key)] = int32(len(idx.patterns))
			idx.patterns = append(idx.patterns, pattern{
				entry:     int32(i),
				variant:   s,
				length:    len(key),
				leftWord:  isWordRune(key[0]),
				rightWord: isWordRune(key[len(key)-1]),
			})
			keys = append(keys, key)
		}
	}

	for id, key := range keys {
		idx.ac.insert(key, int32(id))
	}
	idx.ac.link()
	return idx, nil
}

func (ix *Index) Version() uint64 {
	if ix == nil {
		return 0
	}
	return ix.version
}

// Len is the number of indexed entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Patterns is the number of distinct spellings in the automaton.
func (ix *Index) Patterns() int {
	if ix == nil {
		return 0
	}
	return len(ix.patterns)
}

// Lookup finds the entry owning an exact spelling, ignoring case and spacing.
func (ix *Index) Lookup(spelling string) (*models.LexiconEntry, bool) {
	if ix == nil {
		return nil, false
	}
	pi, ok := ix.byKey[string(normalizePattern(spelling))]
	if !ok {
		return nil, false
	}
	return &ix.entries[ix.patterns[pi].entry], true
}

// normalizePattern lower-cases rune by rune and collapses whitespace runs to one space,
// exactly as Scan folds the text it reads.
func normalizePattern(s string) []rune {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !space {
				out = append(out, ' ')
			}
			space = true
			continue
		}
		space = false
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

// outranks orders entries for shared spellings: momentum, then confidence, then term.
func outranks(a, b *models.LexiconEntry) bool {
	if a.Momentum != b.Momentum {
		return a.Momentum > b.Momentum
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Term < b.Term
}

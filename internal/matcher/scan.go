package matcher

import (
	"sort"
	"unicode"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

// MatchSpan is one located occurrence. Offsets count runes in the scanned text;
// EndOffset is exclusive. Entry points into the index snapshot and must not be modified.
type MatchSpan struct {
	StartOffset    int                  `json:"start"`
	EndOffset      int                  `json:"end"`
	Entry          *models.LexiconEntry `json:"-"`
	MatchedVariant string               `json:"matchedVariant"`
	MatchedText    string               `json:"matchedText"`
}

func (s MatchSpan) Len() int {
	return s.EndOffset - s.StartOffset
}

type candidate struct {
	start, end int
	pattern    int32
}

// Scan reports non-overlapping matches ordered by start offset. It never fails; text
// with no matches, or an empty index, yields an empty result.
//
// Overlaps are resolved by: longer span, higher momentum, higher confidence,
// lexicographically smaller term, earlier start.
func (ix *Index) Scan(text string) []MatchSpan {
	if ix == nil || len(ix.patterns) == 0 || text == "" {
		return nil
	}

	src := []rune(text)
	// fed[i] is the index in src of the i-th rune given to the automaton; whitespace
	// runs are fed as a single space.
	fed := make([]int, 0, len(src))
	var cands []candidate
	state := int32(0)
	space := false

	for i, r := range src {
		if unicode.IsSpace(r) {
			if space {
				continue
			}
			space = true
			r = ' '
		} else {
			space = false
			r = unicode.ToLower(r)
		}
		fed = append(fed, i)
		state = ix.ac.step(state, r)

		for _, pid := range ix.ac.nodes[state].out {
			p := &ix.patterns[pid]
			start := fed[len(fed)-p.length]
			end := i + 1
			if !ix.onBoundary(src, start, end, p) {
				continue
			}
			cands = append(cands, candidate{start: start, end: end, pattern: pid})
		}
	}

	if len(cands) == 0 {
		return nil
	}
	return ix.resolve(src, cands)
}

func (ix *Index) onBoundary(src []rune, start, end int, p *pattern) bool {
	if p.leftWord && start > 0 && isWordRune(src[start-1]) {
		return false
	}
	if p.rightWord && end < len(src) && isWordRune(src[end]) {
		return false
	}
	return true
}

func (ix *Index) resolve(src []rune, cands []candidate) []MatchSpan {
	sort.SliceStable(cands, func(i, j int) bool {
		return ix.better(cands[i], cands[j])
	})

	taken := make([]bool, len(src))
	spans := make([]MatchSpan, 0, len(cands))
	for _, c := range cands {
		if overlaps(taken, c.start, c.end) {
			continue
		}
		for k := c.start; k < c.end; k++ {
			taken[k] = true
		}
		p := &ix.patterns[c.pattern]
		spans = append(spans, MatchSpan{
			StartOffset:    c.start,
			EndOffset:      c.end,
			Entry:          &ix.entries[p.entry],
			MatchedVariant: p.variant,
			MatchedText:    string(src[c.start:c.end]),
		})
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].StartOffset < spans[j].StartOffset
	})
	return spans
}

func (ix *Index) better(a, b candidate) bool {
	if la, lb := a.end-a.start, b.end-b.start; la != lb {
		return la > lb
	}
	ea := &ix.entries[ix.patterns[a.pattern].entry]
	eb := &ix.entries[ix.patterns[b.pattern].entry]
	if ea.Momentum != eb.Momentum {
		return ea.Momentum > eb.Momentum
	}
	if ea.Confidence != eb.Confidence {
		return ea.Confidence > eb.Confidence
	}
	if ea.Term != eb.Term {
		return ea.Term < eb.Term
	}
	if a.start != b.start {
		return a.start < b.start
	}
	return a.pattern < b.pattern
}

func overlaps(taken []bool, start, end int) bool {
	for k := start; k < end; k++ {
		if taken[k] {
			return true
		}
	}
	return false
}

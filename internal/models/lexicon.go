package models

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryCompliment   Category = "compliment"
	CategoryInsult       Category = "insult"
	CategoryReaction     Category = "reaction"
	CategoryRelationship Category = "relationship"
	CategoryInternet     Category = "internet"
	CategoryFashion      Category = "fashion"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryCompliment, CategoryInsult, CategoryReaction,
		CategoryRelationship, CategoryInternet, CategoryFashion:
		return true
	}
	return false
}

// LexiconEntry is a canonical slang term. Entries are keyed by the normalized term and
// are never hard-deleted; Active=false takes them out of the matching index.
type LexiconEntry struct {
	Term               string       `json:"term" bson:"_id"`
	Variants           []string     `json:"variants,omitempty" bson:"variants,omitempty"`
	PartOfSpeech       string       `json:"partOfSpeech,omitempty" bson:"partOfSpeech,omitempty"`
	Gloss              string       `json:"gloss" bson:"gloss"`
	Examples           []string     `json:"examples,omitempty" bson:"examples,omitempty"`
	Confidence         float64      `json:"confidence" bson:"confidence"`
	Momentum           float64      `json:"momentum" bson:"momentum"`
	Categories         []Category   `json:"categories,omitempty" bson:"categories,omitempty"`
	FirstAttested      time.Time    `json:"firstAttested" bson:"firstAttested"`
	QuizDifficulty     int          `json:"quizDifficulty" bson:"quizDifficulty"`
	QuizEligible       bool         `json:"quizEligible" bson:"quizEligible"`
	Active             bool         `json:"active" bson:"active"`
	ApprovalType       ApprovalType `json:"approvalType,omitempty" bson:"approvalType,omitempty"`
	SourceSubmissionID string       `json:"sourceSubmissionId,omitempty" bson:"sourceSubmissionId,omitempty"`
	Version            uint64       `json:"version" bson:"version"`
	UpdatedAt          time.Time    `json:"updatedAt" bson:"updatedAt"`

	// Surfaces holds the normalized term and variants for lookups by any spelling.
	Surfaces []string `json:"-" bson:"surfaces,omitempty"`
}

// NormalizeTerm is the canonical key form of a term or variant: NFKC, lower case,
// single spaces.
func NormalizeTerm(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Spellings returns the term followed by its variants, as written in the lexicon.
func (e *LexiconEntry) Spellings() []string {
	out := make([]string, 0, len(e.Variants)+1)
	out = append(out, e.Term)
	return append(out, e.Variants...)
}

// Refresh normalizes the key, rebuilds Surfaces and recomputes the quiz fields.
// Stores call it before every write.
func (e *LexiconEntry) Refresh() {
	e.Term = NormalizeTerm(e.Term)
	seen := make(map[string]bool, len(e.Variants)+1)
	e.Surfaces = make([]string, 0, len(e.Variants)+1)
	for _, s := range e.Spellings() {
		n := NormalizeTerm(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		e.Surfaces = append(e.Surfaces, n)
	}
	if len(e.Categories) == 0 {
		e.Categories = []Category{CategoryGeneral}
	}
	e.QuizDifficulty = DeriveQuizDifficulty(*e)
	e.QuizEligible = e.Active && e.Confidence >= 0.6 && e.Gloss != "" && len(e.Examples) > 0
}

// DeriveQuizDifficulty maps an entry to 1 (easy) .. 5 (hard). Well-curated, trending
// terms are easy; obscure ones and long phrases are hard.
func DeriveQuizDifficulty(e LexiconEntry) int {
	familiarity := 0.6*clamp01(e.Confidence) + 0.4*clamp01(e.Momentum)
	d := 1 + int(math.Round(4*(1-familiarity)))
	if len(strings.Fields(e.Term)) > 2 {
		d++
	}
	if d > 5 {
		d = 5
	}
	return d
}

// Clone returns a copy that shares no slices with e.
func (e LexiconEntry) Clone() LexiconEntry {
	e.Variants = append([]string(nil), e.Variants...)
	e.Examples = append([]string(nil), e.Examples...)
	e.Categories = append([]Category(nil), e.Categories...)
	e.Surfaces = append([]string(nil), e.Surfaces...)
	return e
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "no cap", NormalizeTerm("  No   Cap "))
	assert.Equal(t, "rizz", NormalizeTerm("RIZZ"))
	// NFKC folds the fullwidth form.
	assert.Equal(t, "slay", NormalizeTerm("ｓｌａｙ"))
	assert.Equal(t, "", NormalizeTerm(" \t "))
}

func TestLexiconEntry_Refresh(t *testing.T) {
	e := LexiconEntry{
		Term:       "No Cap",
		Variants:   []string{"nocap", "NO CAP", "no  kap"},
		Gloss:      "for real",
		Examples:   []string{"that's fire no cap"},
		Confidence: 0.9,
		Momentum:   0.8,
		Active:     true,
	}
	e.Refresh()

	assert.Equal(t, "no cap", e.Term)
	assert.Equal(t, []string{"no cap", "nocap", "no kap"}, e.Surfaces)
	assert.Equal(t, []Category{CategoryGeneral}, e.Categories)
	assert.True(t, e.QuizEligible)
	assert.Equal(t, 2, e.QuizDifficulty)
}

func TestDeriveQuizDifficulty(t *testing.T) {
	assert.Equal(t, 1, DeriveQuizDifficulty(LexiconEntry{Term: "slay", Confidence: 1, Momentum: 1}))
	assert.Equal(t, 5, DeriveQuizDifficulty(LexiconEntry{Term: "slay", Confidence: 0, Momentum: 0}))
	assert.Equal(t, 5, DeriveQuizDifficulty(LexiconEntry{Term: "it's giving main character", Confidence: 0.1, Momentum: 0}))
	// momentum above 1 is treated as fully trending
	assert.Equal(t, DeriveQuizDifficulty(LexiconEntry{Term: "x", Confidence: 0.5, Momentum: 1}),
		DeriveQuizDifficulty(LexiconEntry{Term: "x", Confidence: 0.5, Momentum: 3}))
}

func TestLexiconEntry_QuizIneligibleWithoutExamples(t *testing.T) {
	e := LexiconEntry{Term: "mid", Gloss: "mediocre", Confidence: 0.9, Active: true}
	e.Refresh()
	assert.False(t, e.QuizEligible)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("english_to_genz")
	assert.NoError(t, err)
	assert.Equal(t, DirectionEnglishToGenZ, d)
	assert.Equal(t, "Gen Z slang", d.Target())

	_, err = ParseDirection("klingon")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

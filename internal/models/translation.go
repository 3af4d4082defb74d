package models

import "fmt"

type Direction string

const (
	DirectionGenZToEnglish Direction = "genz_to_english"
	DirectionEnglishToGenZ Direction = "english_to_genz"
)

func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	return d == DirectionGenZToEnglish || d == DirectionEnglishToGenZ
}

// Source and Target name the two sides for prompts.
func (d Direction) Source() string {
	if d == DirectionEnglishToGenZ {
		return "standard English"
	}
	return "Gen Z slang"
}

func (d Direction) Target() string {
	if d == DirectionEnglishToGenZ {
		return "Gen Z slang"
	}
	return "standard English"
}

type FailureReason string

const (
	FailureSameText      FailureReason = "same_text"
	FailureLowConfidence FailureReason = "low_confidence"
)

// MatchedTerm summarizes one lexicon hit for the response and for analytics.
type MatchedTerm struct {
	Term        string `json:"term"`
	MatchedText string `json:"matchedText"`
	Gloss       string `json:"gloss"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

type TermNote struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

// TranslationResult is immutable once returned. A failed result is still a successful
// response: it carries a best-effort translation and must not be billed.
type TranslationResult struct {
	OriginalText    string        `json:"originalText"`
	TranslatedText  string        `json:"translatedText"`
	Direction       Direction     `json:"direction"`
	ConfidenceScore float64       `json:"confidenceScore"`
	MatchedTerms    []MatchedTerm `json:"matchedTerms"`
	Notes           []TermNote    `json:"notes,omitempty"`
	Failed          bool          `json:"failed"`
	FailureReason   FailureReason `json:"failureReason,omitempty"`
	IndexVersion    uint64        `json:"indexVersion"`
}

func (r *TranslationResult) Billable() bool {
	return !r.Failed
}

type TranslateRequest struct {
	Text      string    `json:"text" validate:"required"`
	Direction Direction `json:"direction" validate:"required,oneof=genz_to_english english_to_genz"`
}

type TranslateResponse struct {
	Translation *TranslationResult `json:"translation"`
	Billable    bool               `json:"billable"`
}

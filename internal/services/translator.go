package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/developia-II/slang-translator-backend/internal/matcher"
	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/utils"
)

// SnapshotSource hands out the live matching snapshot.
type SnapshotSource interface {
	Snapshot() *matcher.Snapshot
}

type TranslatorConfig struct {
	MaxInputRunes          int
	LowConfidenceThreshold float64
}

func DefaultTranslatorConfig() TranslatorConfig {
	return TranslatorConfig{MaxInputRunes: 1000, LowConfidenceThreshold: 0.3}
}

// Translator combines lexicon matches with one model call per request.
type Translator struct {
	lexicon SnapshotSource
	llm     LLM
	cfg     TranslatorConfig
}

func NewTranslator(lexicon SnapshotSource, llm LLM, cfg TranslatorConfig) *Translator {
	return &Translator{lexicon: lexicon, llm: llm, cfg: cfg}
}

type translationReply struct {
	Translation string            `json:"translation" validate:"required"`
	Confidence  *float64          `json:"confidence" validate:"required,gte=0,lte=1"`
	Notes       []models.TermNote `json:"notes"`
}

// Translate never reports a weak translation as an error: a result that merely echoes
// the input, or that the model is unsure of, comes back with Failed set.
func (t *Translator) Translate(ctx context.Context, text string, dir models.Direction) (*models.TranslationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", models.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(text); n > t.cfg.MaxInputRunes {
		return nil, fmt.Errorf("%w: text has %d characters, limit is %d", models.ErrInvalidInput, n, t.cfg.MaxInputRunes)
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", models.ErrInvalidInput, dir)
	}

	snap := t.lexicon.Snapshot()
	spans := snap.IndexFor(dir).Scan(text)

	start := time.Now()
	reply, err := completeJSON[translationReply](ctx, t.llm, CompletionRequest{
		System:      translatorSystemPrompt,
		Prompt:      buildTranslationPrompt(text, dir, spans),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   1000,
	}, "translate")
	if err != nil {
		log.Printf("translator: failed direction=%s text=%s matched=%d latency=%s err=%v",
			dir, utils.Fingerprint(text), len(spans), time.Since(start), err)
		return nil, err
	}

	res := &models.TranslationResult{
		OriginalText:    text,
		TranslatedText:  strings.TrimSpace(reply.Translation),
		Direction:       dir,
		ConfidenceScore: *reply.Confidence,
		MatchedTerms:    matchedTerms(spans),
		Notes:           termNotes(reply.Notes, spans),
		IndexVersion:    snap.Version,
	}
	switch {
	case NormalizeForCompare(res.TranslatedText) == NormalizeForCompare(text):
		res.Failed, res.FailureReason = true, models.FailureSameText
	case res.ConfidenceScore < t.cfg.LowConfidenceThreshold:
		res.Failed, res.FailureReason = true, models.FailureLowConfidence
	}

	log.Printf("translator: ok direction=%s text=%s matched=%d confidence=%.2f failed=%v reason=%s version=%d latency=%s",
		dir, utils.Fingerprint(text), len(spans), res.ConfidenceScore, res.Failed, res.FailureReason, snap.Version, time.Since(start))
	return res, nil
}

func matchedTerms(spans []matcher.MatchSpan) []models.MatchedTerm {
	out := make([]models.MatchedTerm, 0, len(spans))
	for _, s := range spans {
		out = append(out, models.MatchedTerm{
			Term:        s.Entry.Term,
			MatchedText: s.MatchedText,
			Gloss:       s.Entry.Gloss,
			Start:       s.StartOffset,
			End:         s.EndOffset,
		})
	}
	return out
}

// termNotes keeps the model's notes and adds the lexicon gloss for matched terms it
// did not mention.
func termNotes(fromModel []models.TermNote, spans []matcher.MatchSpan) []models.TermNote {
	notes := make([]models.TermNote, 0, len(fromModel)+len(spans))
	seen := make(map[string]bool, len(fromModel)+len(spans))
	for _, n := range fromModel {
		key := models.NormalizeTerm(n.Term)
		if key == "" || strings.TrimSpace(n.Meaning) == "" || seen[key] {
			continue
		}
		seen[key] = true
		notes = append(notes, n)
	}
	for _, s := range spans {
		if seen[s.Entry.Term] {
			continue
		}
		seen[s.Entry.Term] = true
		notes = append(notes, models.TermNote{Term: s.Entry.Term, Meaning: s.Entry.Gloss})
	}
	return notes
}

package services

import (
	"fmt"
	"strings"

	"github.com/developia-II/slang-translator-backend/internal/matcher"
	"github.com/developia-II/slang-translator-backend/internal/models"
)

const translatorSystemPrompt = "You are a precise translator between Gen Z internet slang and standard English. " +
	"Keep the meaning, tone and intent of the input. Use the glossary when it applies. " +
	"Always answer with a single JSON object."

const validatorSystemPrompt = "You are a lexicographer who checks proposed slang definitions against web evidence. " +
	"Judge only from the evidence and common usage you are confident about. " +
	"Always answer with a single JSON object."

const maxExamplesPerTerm = 2

func buildTranslationPrompt(text string, dir models.Direction, spans []matcher.MatchSpan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the text from %s to %s.\n\n", dir.Source(), dir.Target())

	if len(spans) > 0 {
		b.WriteString("Glossary of terms found in the text:\n")
		seen := make(map[string]bool, len(spans))
		for _, s := range spans {
			e := s.Entry
			if seen[e.Term] {
				continue
			}
			seen[e.Term] = true
			if dir == models.DirectionEnglishToGenZ {
				fmt.Fprintf(&b, "- %q can be said as %q", s.MatchedText, e.Term)
			} else {
				fmt.Fprintf(&b, "- %q (%s) means: %s", s.MatchedText, e.Term, e.Gloss)
			}
			for i, ex := range e.Examples {
				if i == maxExamplesPerTerm {
					break
				}
				fmt.Fprintf(&b, " | example: %q", ex)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Text:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>\n\n")
	b.WriteString(`Respond with JSON: {"translation": string, "confidence": number between 0 and 1, ` +
		`"notes": [{"term": string, "meaning": string}]}. ` +
		"confidence is how sure you are that the translation keeps the original meaning. " +
		"If the text needs no translation, return it unchanged.")
	return b.String()
}

func buildValidationPrompt(rec *models.SubmissionRecord, snippets []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Proposed slang term: %q\n", rec.SlangTerm)
	fmt.Fprintf(&b, "Proposed meaning: %q\n", rec.ProposedMeaning)
	if rec.ExampleUsage != "" {
		fmt.Fprintf(&b, "Example usage: %q\n", rec.ExampleUsage)
	}

	b.WriteString("\nWeb search evidence:\n")
	if len(snippets) == 0 {
		b.WriteString("(no results)\n")
	}
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	b.WriteString("\n" + `Respond with JSON: {"confidence": number between 0 and 1, ` +
		`"usageScore": number between 0 and 10, "meaningMatches": boolean, "rationale": string}. ` +
		"confidence: how likely the proposed meaning is correct. " +
		"usageScore: how widely the term is used with that meaning. " +
		"meaningMatches: false only if the evidence contradicts the proposed meaning.")
	return b.String()
}

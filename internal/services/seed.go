package services

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/utils"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by `slangd seed`.
type seedFile struct {
	Entries []seedEntry `yaml:"entries" validate:"required,min=1,dive"`
}

type seedEntry struct {
	Term          string   `yaml:"term" validate:"required,max=64"`
	Variants      []string `yaml:"variants" validate:"dive,required,max=64"`
	PartOfSpeech  string   `yaml:"partOfSpeech"`
	Gloss         string   `yaml:"gloss" validate:"required"`
	Examples      []string `yaml:"examples"`
	Confidence    float64  `yaml:"confidence" validate:"gte=0,lte=1"`
	Momentum      float64  `yaml:"momentum" validate:"gte=0"`
	Categories    []string `yaml:"categories"`
	FirstAttested string   `yaml:"firstAttested"`
	Inactive      bool     `yaml:"inactive"`
}

// LoadSeed parses and validates a YAML lexicon seed.
func LoadSeed(r io.Reader) ([]models.LexiconEntry, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: parse seed: %v", models.ErrInvalidInput, err)
	}
	if err := utils.Validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: seed: %s", models.ErrInvalidInput, utils.ValidationMessage(err))
	}

	out := make([]models.LexiconEntry, 0, len(f.Entries))
	for _, s := range f.Entries {
		e := models.LexiconEntry{
			Term:         s.Term,
			Variants:     s.Variants,
			PartOfSpeech: s.PartOfSpeech,
			Gloss:        s.Gloss,
			Examples:     s.Examples,
			Confidence:   s.Confidence,
			Momentum:     s.Momentum,
			Active:       !s.Inactive,
		}
		for _, c := range s.Categories {
			cat := models.Category(c)
			if !cat.Valid() {
				return nil, fmt.Errorf("%w: term %q: unknown category %q", models.ErrInvalidInput, s.Term, c)
			}
			e.Categories = append(e.Categories, cat)
		}
		if s.FirstAttested != "" {
			t, err := time.Parse("2006-01-02", s.FirstAttested)
			if err != nil {
				return nil, fmt.Errorf("%w: term %q: firstAttested: %v", models.ErrInvalidInput, s.Term, err)
			}
			e.FirstAttested = t
		}
		out = append(out, e)
	}
	return out, nil
}

func LoadSeedFile(path string) ([]models.LexiconEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}

package matcher

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
)

// Snapshot is one lexicon version compiled for both translation directions.
type Snapshot struct {
	Version uint64
	BuiltAt time.Time
	// Slang matches slang terms and variants (genz_to_english source side).
	Slang *Index
	// English matches short gloss phrases back to slang entries (english_to_genz).
	English *Index
}

// IndexFor returns the index for the source side of a direction.
func (s *Snapshot) IndexFor(d models.Direction) *Index {
	if d == models.DirectionEnglishToGenZ {
		return s.English
	}
	return s.Slang
}

// BuildSnapshot compiles both indexes. Duplicate slang spellings fail the whole build;
// shared gloss phrases go to the best-ranked entry.
func BuildSnapshot(version uint64, entries []models.LexiconEntry) (*Snapshot, error) {
	slang, err := Build(entries, Options{Version: version})
	if err != nil {
		return nil, err
	}
	english, err := Build(entries, Options{Version: version, Surfaces: GlossPhrases, Shared: true})
	if err != nil {
		return nil, err
	}
	return &Snapshot{Version: version, BuiltAt: time.Now(), Slang: slang, English: english}, nil
}

const maxGlossPhraseWords = 4

// GlossPhrases splits a gloss like "for real; no lie" into short English phrases that
// are worth matching. Long explanatory clauses are skipped.
func GlossPhrases(e *models.LexiconEntry) []string {
	parts := strings.FieldsFunc(e.Gloss, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '(' || r == ')'
	})
	var out []string
	for _, p := range parts {
		for _, q := range strings.Split(p, " or ") {
			q = strings.TrimSpace(strings.Trim(q, ".!?\"'"))
			words := len(strings.Fields(q))
			if words == 0 || words > maxGlossPhraseWords || len([]rune(q)) < 3 {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

// Holder publishes the live snapshot. Readers never observe a partially built index.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder() *Holder {
	h := &Holder{}
	empty, _ := BuildSnapshot(0, nil)
	h.current.Store(empty)
	return h
}

func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}

// Package extractor maps free-text problem descriptions to canonical
// issue labels using whole-word keyword matching. It is pure: no I/O,
// no state, deterministic output for a given vocabulary.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fixdesk/fixdesk/internal/models"
)

// SourceRules is the source tag recorded on every label this extractor
// produces. The field exists so future non-rule scorers can coexist.
const SourceRules = "rules"

const (
	scoreCanonical = 1.0
	scoreSynonym   = 0.85
)

// Vocabulary maps a canonical label name to the synonym phrases that
// imply it. It is plain configuration data: extending it never requires
// touching the matching logic.
type Vocabulary map[string][]string

// DefaultVocabulary returns the shipped label set. Extend freely.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		"black screen":  {"black screen", "blank screen", "no display", "screen is off"},
		"broken screen": {"broken screen", "cracked screen", "shattered glass", "screen cracked"},
		"battery issue": {"battery issue", "battery drain", "won't charge", "not charging", "charging issue", "battery problem"},
		"overheating":   {"overheating", "overheat", "too hot", "heating up", "fan working constantly"},
		"no sound":      {"no sound", "no audio", "speaker not working", "mute"},
		"won't turn on": {"won't turn on", "not turning on", "doesn't start", "won't start"},
	}
}

// pattern is one compiled synonym for a canonical label.
type pattern struct {
	re    *regexp.Regexp
	score float64
}

// Extractor matches a fixed vocabulary against normalized text.
type Extractor struct {
	labels   []string // canonical names, sorted for deterministic walks
	patterns map[string][]pattern
}

// New compiles an extractor for the given vocabulary.
func New(vocab Vocabulary) *Extractor {
	e := &Extractor{patterns: make(map[string][]pattern, len(vocab))}
	for canonical, synonyms := range vocab {
		e.labels = append(e.labels, canonical)
		for _, phrase := range synonyms {
			score := scoreSynonym
			if phrase == canonical {
				score = scoreCanonical
			}
			e.patterns[canonical] = append(e.patterns[canonical], pattern{
				re:    compilePhrase(phrase),
				score: score,
			})
		}
	}
	sort.Strings(e.labels)
	return e
}

// Extract returns the labels implied by text, ordered by descending
// score with ties broken by ascending label name.
func (e *Extractor) Extract(text string) []models.Label {
	txt := normalize(text)
	found := make(map[string]float64)
	for _, canonical := range e.labels {
		for _, p := range e.patterns[canonical] {
			if !p.re.MatchString(txt) {
				continue
			}
			if p.score > found[canonical] {
				found[canonical] = p.score
			}
		}
	}

	out := make([]models.Label, 0, len(found))
	for name, score := range found {
		out = append(out, models.Label{Name: name, Score: score, Source: SourceRules})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// normalize lowercases text and replaces every character outside
// [a-z0-9\s] with a space.
func normalize(text string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(text), " ")
}

// compilePhrase builds a word-boundary-anchored matcher for a synonym
// phrase. The phrase is normalized the same way as the input text, so
// "won't charge" matches the normalized form "won t charge". Matching
// stays whole-word: "mute" never matches inside "commute".
func compilePhrase(phrase string) *regexp.Regexp {
	words := strings.Fields(normalize(phrase))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b` + strings.Join(words, `\s+`) + `\b`)
}

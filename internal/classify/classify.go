package classify

import (
	"regexp"
	"strings"
)

// Category is a fixed classification of grammar error type.
type Category string

const (
	CategoryTense       Category = "tense"
	CategoryArticle     Category = "article"
	CategoryPreposition Category = "preposition"
	CategoryAgreement   Category = "subject-verb-agreement"
	CategoryVocabulary  Category = "vocabulary"
	CategoryOther       Category = "other"
)

// Match is one candidate grammar issue found in an utterance.
type Match struct {
	Category   Category `json:"category"`
	Fragment   string   `json:"fragment"`
	Suggestion string   `json:"suggestion,omitempty"`
	Offset     int      `json:"offset"`
}

// rule pairs a category with a compiled pattern and an optional rewrite.
type rule struct {
	category Category
	pattern  *regexp.Regexp
	suggest  func(groups []string) string
}

// Irregular past forms used by the tense rules. Regular verbs fall back to
// the "-ed" rewrite.
var irregularPast = map[string]string{
	"go": "went", "eat": "ate", "come": "came", "see": "saw",
	"do": "did", "take": "took", "get": "got", "make": "made",
	"write": "wrote", "buy": "bought", "meet": "met", "run": "ran",
}

// Third-person singular forms that do not follow the plain "-s" rewrite.
var thirdPerson = map[string]string{
	"go": "goes", "do": "does", "have": "has",
}

// The rule table is ordered: earlier rules win only through the
// longest-fragment / earliest-offset tie-break, so order here is for
// readability, not priority.
var rules = []rule{
	{
		// "am go", "is eat yesterday" - progressive auxiliary glued to a bare verb.
		category: CategoryTense,
		pattern:  regexp.MustCompile(`\b(am|is|are|was|were)\s+(go|eat|come|see|do|take|get|make|write|buy|meet|run)\b`),
		suggest: func(groups []string) string {
			if past, ok := irregularPast[groups[2]]; ok {
				return past
			}
			return groups[2] + "ed"
		},
	},
	{
		// "yesterday I go" - past time marker with a present-tense verb.
		category: CategoryTense,
		pattern:  regexp.MustCompile(`\byesterday\s+(?:i|we|they|he|she)\s+(go|eat|come|see|do|take|get|make|write|buy|meet|run)\b`),
		suggest: func(groups []string) string {
			if past, ok := irregularPast[groups[1]]; ok {
				return past
			}
			return groups[1] + "ed"
		},
	},
	{
		// "he go", "she have" - third-person singular without the -s form.
		category: CategoryAgreement,
		pattern:  regexp.MustCompile(`\b(he|she|it)\s+(go|do|have|want|like|know|need|live|work|say)\b`),
		suggest: func(groups []string) string {
			if form, ok := thirdPerson[groups[2]]; ok {
				return groups[1] + " " + form
			}
			return groups[1] + " " + groups[2] + "s"
		},
	},
	{
		// "a apple" - indefinite article before a vowel sound.
		category: CategoryArticle,
		pattern:  regexp.MustCompile(`\ba\s+([aeiou]\w*)\b`),
		suggest: func(groups []string) string {
			return "an " + groups[1]
		},
	},
	{
		// "an banana" - "an" before a consonant sound.
		category: CategoryArticle,
		pattern:  regexp.MustCompile(`\ban\s+([^aeiou\s\d\W]\w*)\b`),
		suggest: func(groups []string) string {
			return "a " + groups[1]
		},
	},
	{
		category: CategoryPreposition,
		pattern:  regexp.MustCompile(`\bmarried\s+with\b`),
		suggest:  func([]string) string { return "married to" },
	},
	{
		category: CategoryPreposition,
		pattern:  regexp.MustCompile(`\bgood\s+in\s+(english|math|sports|cooking)\b`),
		suggest: func(groups []string) string {
			return "good at " + groups[1]
		},
	},
	{
		category: CategoryPreposition,
		pattern:  regexp.MustCompile(`\bdepend\s+of\b`),
		suggest:  func([]string) string { return "depend on" },
	},
	{
		category: CategoryPreposition,
		pattern:  regexp.MustCompile(`\barrive\s+to\b`),
		suggest:  func([]string) string { return "arrive at" },
	},
	{
		// Double comparative.
		category: CategoryVocabulary,
		pattern:  regexp.MustCompile(`\bmore\s+(better|worse|easier|harder|bigger|smaller)\b`),
		suggest: func(groups []string) string {
			return groups[1]
		},
	},
	{
		category: CategoryVocabulary,
		pattern:  regexp.MustCompile(`\blearn\s+me\b`),
		suggest:  func([]string) string { return "teach me" },
	},
}

// Classify runs the rule table over one utterance and returns candidate
// grammar issues. It is a pure function: no side effects, no network.
// Malformed or empty input yields an empty result, never an error.
// Overlapping candidates are resolved by preferring the longest matched
// fragment, then the earliest position.
func Classify(utterance string) []Match {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return nil
	}

	var candidates []Match
	for _, r := range rules {
		for _, idx := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			fragment := text[idx[0]:idx[1]]
			groups := make([]string, 0, len(idx)/2)
			for g := 0; g < len(idx); g += 2 {
				if idx[g] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, text[idx[g]:idx[g+1]])
			}
			m := Match{
				Category: r.category,
				Fragment: fragment,
				Offset:   idx[0],
			}
			if r.suggest != nil {
				m.Suggestion = r.suggest(groups)
			}
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	return dedupeOverlaps(candidates)
}

// dedupeOverlaps keeps at most one match per overlapping span: longest
// fragment wins, ties broken by earliest offset.
func dedupeOverlaps(candidates []Match) []Match {
	sortMatches(candidates)

	var out []Match
	for _, c := range candidates {
		overlaps := false
		for _, kept := range out {
			if spansOverlap(kept, c) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			out = append(out, c)
		}
	}

	// Present results in utterance order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Offset < out[j-1].Offset; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func sortMatches(ms []Match) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && matchLess(ms[j], ms[j-1]); j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

func matchLess(a, b Match) bool {
	if len(a.Fragment) != len(b.Fragment) {
		return len(a.Fragment) > len(b.Fragment)
	}
	return a.Offset < b.Offset
}

func spansOverlap(a, b Match) bool {
	return a.Offset < b.Offset+len(b.Fragment) && b.Offset < a.Offset+len(a.Fragment)
}

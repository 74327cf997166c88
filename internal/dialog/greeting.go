package dialog

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// GreetingMatcher decides whether incoming text is a greeting, which
// resets the sender to the main menu even mid-flow.
type GreetingMatcher struct {
	patterns []*regexp.Regexp
	phrases  []string
	minScore float64
	metric   *metrics.SorensenDice
}

// NewGreetingMatcher compiles word-boundary patterns for each phrase.
// minScore is the fuzzy-match threshold on the 0-1 Sorensen-Dice scale.
func NewGreetingMatcher(phrases []string, minScore float64) *GreetingMatcher {
	m := &GreetingMatcher{
		minScore: minScore,
		metric:   metrics.NewSorensenDice(),
	}
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		m.phrases = append(m.phrases, phrase)
		m.patterns = append(m.patterns,
			regexp.MustCompile(`\b`+regexp.QuoteMeta(phrase)+`\b`))
	}
	return m
}

// Match reports whether text contains a configured phrase as a whole
// word, or scores at least minScore against the closest phrase.
func (m *GreetingMatcher) Match(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, phrase := range m.phrases {
		if strutil.Similarity(text, phrase, m.metric) >= m.minScore {
			return true
		}
	}
	return false
}

package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var greetingPhrases = []string{
	"hi", "hello", "hey", "hie", "greetings",
	"good morning", "good afternoon", "good evening", "makadii", "mhoro",
}

func TestGreetingExactMatch(t *testing.T) {
	m := NewGreetingMatcher(greetingPhrases, 0.7)

	assert.True(t, m.Match("hi"))
	assert.True(t, m.Match("Hello"))
	assert.True(t, m.Match("GOOD MORNING"))
	assert.True(t, m.Match("makadii"))
}

func TestGreetingWordBoundary(t *testing.T) {
	m := NewGreetingMatcher(greetingPhrases, 0.7)

	assert.True(t, m.Match("hello there, I need help"))
	assert.True(t, m.Match("oh hi, can I book?"))
	// "hi" inside a longer word must not fire the exact check.
	assert.False(t, m.Match("this is serious"))
	assert.False(t, m.Match("I need chemotherapy advice"))
}

func TestGreetingFuzzyMatch(t *testing.T) {
	m := NewGreetingMatcher(greetingPhrases, 0.7)

	assert.True(t, m.Match("helo"))
	assert.True(t, m.Match("good mornin"))
	assert.False(t, m.Match("what are your opening hours"))
	assert.False(t, m.Match("cancel my appointment"))
}

func TestGreetingEmptyAndWhitespace(t *testing.T) {
	m := NewGreetingMatcher(greetingPhrases, 0.7)

	assert.False(t, m.Match(""))
	assert.False(t, m.Match("   "))
}

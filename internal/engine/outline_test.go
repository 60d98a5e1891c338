package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartList(t *testing.T) {
	t.Run("Canonical Format", func(t *testing.T) {
		text := "Here is the plan:\nPart 1: Foundations (45 min)\nPart 2: Practice (75 min)\n"
		parts := ParsePartList(text)
		require.Len(t, parts, 2)
		assert.Equal(t, "Foundations", parts[0].Title)
		assert.Equal(t, 45, parts[0].Minutes)
		assert.Equal(t, 75, parts[1].Minutes)
	})

	t.Run("Tolerates Formatting Drift", func(t *testing.T) {
		text := "## Part 1 - Getting Started (30 minutes)\n**PART 2: Deep Dive (90 min)\n"
		parts := ParsePartList(text)
		require.Len(t, parts, 1, "bold markers are not a recognized prefix")
		assert.Equal(t, "Getting Started", parts[0].Title)
		assert.Equal(t, 30, parts[0].Minutes)
	})

	t.Run("No Parts", func(t *testing.T) {
		assert.Empty(t, ParsePartList("I could not produce an outline."))
	})
}

func TestParseOutline(t *testing.T) {
	text := `Part 1: Foundations (60 min)
- Section: Basics (30 min)
  * Define the key terms
  * Recognize the notation
- Section: History (30 min)

Part 2: Applications (60 min)
- Section: Case Studies (60 min)
  * Apply the method end to end
`
	parts := ParseOutline(text)
	require.Len(t, parts, 2)

	require.Len(t, parts[0].Sections, 2)
	assert.Equal(t, "Basics", parts[0].Sections[0].Title)
	assert.Equal(t, 30, parts[0].Sections[0].Minutes)
	assert.Equal(t, []string{"Define the key terms", "Recognize the notation"}, parts[0].Sections[0].Objectives)
	assert.Empty(t, parts[0].Sections[1].Objectives)

	require.Len(t, parts[1].Sections, 1)
	assert.Equal(t, "Case Studies", parts[1].Sections[0].Title)
}

func TestParseOutline_LeadingProseIgnored(t *testing.T) {
	text := "Sure! Here is the outline you asked for.\n\nPart 1: Only Part (20 min)\n- Section: All Of It (20 min)\n"
	parts := ParseOutline(text)
	require.Len(t, parts, 1)
	require.Len(t, parts[0].Sections, 1)
}

func TestOutlineMinutes(t *testing.T) {
	parts := []OutlinePart{
		{Title: "A", Minutes: 50, Sections: []OutlineSection{{Minutes: 20}, {Minutes: 25}}},
		{Title: "B", Minutes: 30}, // no parsed sections, falls back to the part allocation
	}
	assert.Equal(t, 75, OutlineMinutes(parts[:1]))
	assert.Equal(t, 105, OutlineMinutes(parts))
}

func TestWithinBudget(t *testing.T) {
	assert.True(t, withinBudget(120, 120))
	assert.True(t, withinBudget(114, 120))
	assert.True(t, withinBudget(126, 120))
	assert.False(t, withinBudget(113, 120))
	assert.False(t, withinBudget(127, 120))
	assert.False(t, withinBudget(120, 0))
}

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryRequest() SummaryRequest {
	return SummaryRequest{
		BookID: "book-1",
		Chapters: []ChapterInput{
			{Number: 1, Title: "Intro", Text: "The opening chapter text."},
			{Number: 2, Title: "Heat", Text: "The second chapter text."},
		},
	}
}

func TestSummaryWorkflow(t *testing.T) {
	t.Run("All Chapters Clean", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: `{"chapter_number": 1, "title": "Intro", "summary": "Opens the book.", "key_points": ["scope"]}`},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "A book about thermodynamics for newcomers."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		require.True(t, final.Done())
		assert.False(t, final.Failed())
		assert.Zero(t, final.FailedChapters)
		require.Len(t, final.Summaries, 2)
		assert.Equal(t, "Opens the book.", final.Summaries[0].Summary)
		assert.False(t, final.Summaries[0].Fallback)
		assert.Equal(t, "A book about thermodynamics for newcomers.", final.Overview)
		assert.False(t, final.OverviewFallback)

		require.Len(t, backends.summaries.saved, 2)
		assert.Equal(t, "book-1", backends.summaries.saved[0].BookID)
		assert.Equal(t, final.Overview, backends.summaries.overviews["book-1"])

		// Summaries are pinned to temperature zero.
		for _, call := range backends.gen.calls {
			require.NotNil(t, call.Temperature)
			assert.Zero(t, *call.Temperature)
		}
	})

	t.Run("Model Assisted Repair", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: "The chapter is about introductions, roughly."},
			{text: `{"chapter_number": 1, "title": "Intro", "summary": "Opens the book."}`},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "Overview."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.Zero(t, final.FailedChapters)
		require.Len(t, final.Summaries, 2)
		assert.Equal(t, "Opens the book.", final.Summaries[0].Summary)
		assert.False(t, final.Summaries[0].Fallback)

		// The repair call quoted the malformed text and the parser error.
		repairPrompt := backends.gen.calls[1].Prompt
		assert.Contains(t, repairPrompt, "failed to parse")
		assert.Contains(t, repairPrompt, "about introductions")
	})

	t.Run("Fallback Field Extraction", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: "not json at all"},
			// The repair attempt is still broken but carries scrapeable fields.
			{text: `"chapter_number": 1, "title": "Intro" "summary": "Scraped out."`},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "Overview."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.Zero(t, final.FailedChapters)
		require.Len(t, final.Summaries, 2)
		assert.True(t, final.Summaries[0].Fallback, "scraped results are flagged")
		assert.Equal(t, "Scraped out.", final.Summaries[0].Summary)
		assert.False(t, final.Summaries[1].Fallback)
	})

	t.Run("Failed Chapter Does Not Abort The Run", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: "nothing usable"},
			{text: "still nothing usable"},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "Overview."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, final.FailedChapters)
		require.Len(t, final.Summaries, 2)
		assert.True(t, final.Summaries[0].Failed)
		assert.Equal(t, 1, final.Summaries[0].ChapterNumber, "failed record keeps the chapter identity")
		assert.False(t, final.Summaries[1].Failed)
		assert.Equal(t, "Covers heat.", final.Summaries[1].Summary)

		// Failed chapters are persisted too, so callers can see them.
		require.Len(t, backends.summaries.saved, 2)
		assert.True(t, backends.summaries.saved[0].Failed)
	})

	t.Run("Completion Error Marks Chapter Failed", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{err: errors.New("model unavailable")},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "Overview."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, final.FailedChapters)
		assert.True(t, final.Summaries[0].Failed)
	})

	t.Run("Overview Failure Degrades To Template", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: `{"chapter_number": 1, "title": "Intro", "summary": "Opens the book."}`},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{err: errors.New("model unavailable")},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.True(t, final.OverviewFallback)
		assert.Contains(t, final.Overview, "2 chapters")
		assert.Contains(t, final.Overview, "Intro")
		assert.Equal(t, final.Overview, backends.summaries.overviews["book-1"])
	})

	t.Run("No Chapters", func(t *testing.T) {
		state, commands := NewSummary(SummaryRequest{BookID: "b"})
		assert.True(t, state.Failed())
		assert.Empty(t, commands)
	})

	t.Run("Missing Fields Are Backfilled From The Chapter", func(t *testing.T) {
		backends := newTestBackends()
		backends.gen.queue = []genScript{
			{text: `{"summary": "Opens the book."}`},
			{text: `{"chapter_number": 2, "title": "Heat", "summary": "Covers heat."}`},
			{text: "Overview."},
		}

		state, commands := NewSummary(summaryRequest())
		final, err := Run(context.Background(), backends.executor(), state, commands, SummaryState.Step, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, final.Summaries[0].ChapterNumber)
		assert.Equal(t, "Intro", final.Summaries[0].Title)
	})
}

package engine

import (
	"fmt"
	"strings"
)

const (
	taskSummaryChapterPrefix = "summary.chapter."
	taskSummaryRepairPrefix  = "summary.repair."
	taskSummarySavePrefix    = "summary.save."
	taskSummaryOverview      = "summary.overview"
	taskSummaryOverviewSave  = "summary.overview.save"
)

// overviewSourceLimit bounds how much chapter-1 text the overview call sees.
const overviewSourceLimit = 8000

const summarySystemPrompt = "You summarize book chapters. Respond with a single JSON object and " +
	"nothing else: {\"chapter_number\": <int>, \"title\": <string>, \"summary\": <string>, " +
	"\"key_points\": [<string>, ...]}."

func taskSummaryChapter(i int) string { return fmt.Sprintf("%s%d", taskSummaryChapterPrefix, i) }
func taskSummaryRepair(i int) string  { return fmt.Sprintf("%s%d", taskSummaryRepairPrefix, i) }
func taskSummarySave(i int) string    { return fmt.Sprintf("%s%d", taskSummarySavePrefix, i) }

type summaryPhase int

const (
	summarySummarizing summaryPhase = iota
	summaryRepairing
	summarySaving
	summaryOverview
	summaryOverviewSaving
	summaryDone
)

// ChapterInput is one chapter's text, already sliced by page range.
type ChapterInput struct {
	Number int
	Title  string
	Text   string
}

// SummaryRequest starts a per-chapter summarization run over one book.
type SummaryRequest struct {
	BookID   string
	Chapters []ChapterInput
}

// ChapterSummary is the structured result for one chapter. Fallback marks a
// regex-scraped extraction; Failed marks a chapter the whole repair chain
// could not recover.
type ChapterSummary struct {
	BookID        string   `json:"book_id"`
	ChapterNumber int      `json:"chapter_number"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points,omitempty"`
	Fallback      bool     `json:"fallback"`
	Failed        bool     `json:"failed"`
	Model         string   `json:"model,omitempty"`
}

// SummaryState is the summarization workflow snapshot. One chapter is in
// flight at a time; a failed chapter is recorded and the run moves on.
type SummaryState struct {
	Req   SummaryRequest
	phase summaryPhase
	idx   int

	repairRaw string

	Summaries        []ChapterSummary
	FailedChapters   int
	Overview         string
	OverviewFallback bool
	Model            string
	ModelSwitched    bool
	Err              string
}

func (s SummaryState) Done() bool   { return s.phase == summaryDone }
func (s SummaryState) Failed() bool { return s.Err != "" }

// NewSummary returns the initial state and the first chapter command.
func NewSummary(req SummaryRequest) (SummaryState, []Command) {
	state := SummaryState{Req: req, phase: summarySummarizing}
	if len(req.Chapters) == 0 {
		state.Err = "no chapters to summarize"
		state.phase = summaryDone
		return state, nil
	}
	return state, []Command{state.chapterCommand()}
}

// Step advances the summarization workflow.
func (s SummaryState) Step(results map[string]Result) (SummaryState, []Command) {
	switch s.phase {
	case summarySummarizing:
		res, ok := results[taskSummaryChapter(s.idx)]
		if !ok {
			return s, nil
		}
		s.noteModel(res)
		if res.Err != nil {
			return s.record(s.failedSummary())
		}

		payload, err := recoverPayload(res.Text)
		if err == nil {
			return s.record(s.summaryFromPayload(payload, false))
		}

		s.repairRaw = res.Text
		s.phase = summaryRepairing
		return s, []Command{{
			Kind:        KindGenerate,
			Task:        taskSummaryRepair(s.idx),
			Prompt:      buildRepairPrompt(res.Text, err),
			MaxTokens:   2048,
			Temperature: tempZero(),
		}}

	case summaryRepairing:
		res, ok := results[taskSummaryRepair(s.idx)]
		if !ok {
			return s, nil
		}
		s.noteModel(res)

		if res.Err == nil {
			if payload, err := recoverPayload(res.Text); err == nil {
				return s.record(s.summaryFromPayload(payload, false))
			}
			s.repairRaw = res.Text
		}
		if payload, ok := extractChapterFields(s.repairRaw); ok {
			return s.record(s.summaryFromPayload(payload, true))
		}
		return s.record(s.failedSummary())

	case summarySaving:
		res, ok := results[taskSummarySave(s.idx)]
		if !ok {
			return s, nil
		}
		// A persistence failure loses one chapter's row, not the run; the
		// executor already logged it.
		_ = res

		s.repairRaw = ""
		if s.idx+1 < len(s.Req.Chapters) {
			s.idx++
			s.phase = summarySummarizing
			return s, []Command{s.chapterCommand()}
		}

		s.phase = summaryOverview
		return s, []Command{{
			Kind:        KindGenerate,
			Task:        taskSummaryOverview,
			Prompt:      buildOverviewPrompt(s.Req.Chapters[0], truncateRunes(s.Req.Chapters[0].Text, overviewSourceLimit)),
			MaxTokens:   512,
			Temperature: tempZero(),
		}}

	case summaryOverview:
		res, ok := results[taskSummaryOverview]
		if !ok {
			return s, nil
		}
		s.noteModel(res)
		if res.Err != nil || strings.TrimSpace(res.Text) == "" {
			s.Overview = fallbackOverview(s.Req)
			s.OverviewFallback = true
		} else {
			s.Overview = strings.TrimSpace(res.Text)
		}
		s.phase = summaryOverviewSaving
		return s, []Command{{
			Kind:     KindSaveOverview,
			Task:     taskSummaryOverviewSave,
			BookID:   s.Req.BookID,
			Overview: s.Overview,
		}}

	case summaryOverviewSaving:
		if _, ok := results[taskSummaryOverviewSave]; !ok {
			return s, nil
		}
		s.phase = summaryDone
		return s, nil
	}
	return s, nil
}

// record appends a chapter result and emits its save command.
func (s SummaryState) record(summary ChapterSummary) (SummaryState, []Command) {
	if summary.Failed {
		s.FailedChapters++
	}
	s.Summaries = append(s.Summaries, summary)
	s.phase = summarySaving
	return s, []Command{{
		Kind:    KindSaveSummary,
		Task:    taskSummarySave(s.idx),
		Summary: &summary,
	}}
}

func (s SummaryState) summaryFromPayload(payload chapterPayload, fallback bool) ChapterSummary {
	chapter := s.Req.Chapters[s.idx]
	summary := ChapterSummary{
		BookID:        s.Req.BookID,
		ChapterNumber: payload.ChapterNumber,
		Title:         payload.Title,
		Summary:       payload.Summary,
		KeyPoints:     payload.KeyPoints,
		Fallback:      fallback,
		Model:         s.Model,
	}
	if summary.ChapterNumber == 0 {
		summary.ChapterNumber = chapter.Number
	}
	if summary.Title == "" {
		summary.Title = chapter.Title
	}
	return summary
}

func (s SummaryState) failedSummary() ChapterSummary {
	chapter := s.Req.Chapters[s.idx]
	return ChapterSummary{
		BookID:        s.Req.BookID,
		ChapterNumber: chapter.Number,
		Title:         chapter.Title,
		Failed:        true,
		Model:         s.Model,
	}
}

func (s *SummaryState) noteModel(res Result) {
	if res.Model != "" {
		s.Model = res.Model
	}
	if res.ModelSwitched {
		s.ModelSwitched = true
	}
}

func (s SummaryState) chapterCommand() Command {
	chapter := s.Req.Chapters[s.idx]
	return Command{
		Kind:        KindGenerate,
		Task:        taskSummaryChapter(s.idx),
		System:      summarySystemPrompt,
		Prompt:      buildChapterPrompt(chapter),
		MaxTokens:   2048,
		Temperature: tempZero(),
	}
}

func tempZero() *float32 {
	zero := float32(0)
	return &zero
}

func buildChapterPrompt(chapter ChapterInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize chapter %d", chapter.Number)
	if chapter.Title != "" {
		fmt.Fprintf(&b, ", %q,", chapter.Title)
	}
	b.WriteString(" of the book from its full text below.\n\n")
	b.WriteString(chapter.Text)
	return b.String()
}

func buildRepairPrompt(raw string, parseErr error) string {
	var b strings.Builder
	b.WriteString("The JSON below failed to parse with this error:\n")
	fmt.Fprintf(&b, "  %v\n\n", parseErr)
	b.WriteString("Return the corrected JSON object only, keeping every field value unchanged.\n\n")
	b.WriteString(raw)
	return b.String()
}

func buildOverviewPrompt(chapter ChapterInput, text string) string {
	var b strings.Builder
	b.WriteString("Write a two to three sentence overview of the book this opening chapter belongs to")
	if chapter.Title != "" {
		fmt.Fprintf(&b, " (chapter title: %q)", chapter.Title)
	}
	b.WriteString(".\n\n")
	b.WriteString(text)
	return b.String()
}

func fallbackOverview(req SummaryRequest) string {
	first := req.Chapters[0]
	if first.Title != "" {
		return fmt.Sprintf("This book spans %d chapters, opening with %q.", len(req.Chapters), first.Title)
	}
	return fmt.Sprintf("This book spans %d chapters.", len(req.Chapters))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

package engine

import (
	"fmt"
	"strings"
)

const (
	taskCourseParts  = "course.parts"
	taskCourseReview = "course.review"
	taskCourseCommit = "course.commit"

	taskCourseSectionPrefix = "course.sections."
)

const courseSystemPrompt = "You are a curriculum designer turning one book into a timed course. " +
	"Follow the requested format exactly: part lines as 'Part N: Title (MM min)', " +
	"section lines as '- Section: Title (MM min)', objectives as indented '*' bullets."

func taskCourseSection(i int) string {
	return fmt.Sprintf("%s%d", taskCourseSectionPrefix, i)
}

type coursePhase int

const (
	courseParts coursePhase = iota
	courseSections
	courseReview
	courseCommit
	courseDone
)

// CourseRequest starts one outline generation. A revision carries the prior
// outline text and a revision note; the phases are identical either way and
// the committed outline fully replaces the old one.
type CourseRequest struct {
	CourseID      string
	BookID        string
	Title         string
	Audience      string
	TargetMinutes int
	Summaries     []string
	PriorOutline  string
	RevisionNote  string
}

// CourseState is the outline workflow snapshot.
type CourseState struct {
	Req   CourseRequest
	phase coursePhase

	Parts      []OutlinePart
	partTexts  []string
	sectionIdx int
	Reviewed   bool

	Outline       *Outline
	TotalMinutes  int
	Model         string
	ModelSwitched bool
	Err           string
}

func (s CourseState) Done() bool   { return s.phase == courseDone }
func (s CourseState) Failed() bool { return s.Err != "" }

// NewCourse returns the initial state and the parts-phase command.
func NewCourse(req CourseRequest) (CourseState, []Command) {
	state := CourseState{Req: req, phase: courseParts}
	if req.TargetMinutes <= 0 {
		state.Err = "target minutes must be positive"
		state.phase = courseDone
		return state, nil
	}
	return state, []Command{{
		Kind:      KindGenerate,
		Task:      taskCourseParts,
		System:    courseSystemPrompt,
		Prompt:    buildPartsPrompt(req),
		MaxTokens: 1024,
	}}
}

// Step advances the outline workflow by one phase.
func (s CourseState) Step(results map[string]Result) (CourseState, []Command) {
	switch s.phase {
	case courseParts:
		res, ok := results[taskCourseParts]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("propose parts: %v", res.Err)
		}
		s.noteModel(res)

		parts := ParsePartList(res.Text)
		if len(parts) == 0 {
			return s.fail("no parts found in proposal")
		}
		if len(parts) > 5 {
			parts = parts[:5]
		}
		s.Parts = parts
		s.partTexts = make([]string, len(parts))
		s.sectionIdx = 0
		s.phase = courseSections
		return s, []Command{s.sectionCommand()}

	case courseSections:
		res, ok := results[taskCourseSection(s.sectionIdx)]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("expand part %d: %v", s.sectionIdx+1, res.Err)
		}
		s.noteModel(res)
		s.partTexts[s.sectionIdx] = strings.TrimSpace(res.Text)

		if s.sectionIdx+1 < len(s.Parts) {
			s.sectionIdx++
			return s, []Command{s.sectionCommand()}
		}

		total := OutlineMinutes(ParseOutline(s.outlineText()))
		s.TotalMinutes = total
		if withinBudget(total, s.Req.TargetMinutes) {
			return s.commit()
		}
		s.phase = courseReview
		return s, []Command{{
			Kind:      KindGenerate,
			Task:      taskCourseReview,
			System:    courseSystemPrompt,
			Prompt:    buildReviewPrompt(s.Req, s.outlineText(), total),
			MaxTokens: 4096,
		}}

	case courseReview:
		res, ok := results[taskCourseReview]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("rebalance outline: %v", res.Err)
		}
		s.noteModel(res)
		s.Reviewed = true

		// One review pass only; whatever it produced gets committed.
		rebalanced := strings.TrimSpace(res.Text)
		if len(ParseOutline(rebalanced)) > 0 {
			s.partTexts = []string{rebalanced}
		}
		s.TotalMinutes = OutlineMinutes(ParseOutline(s.outlineText()))
		return s.commit()

	case courseCommit:
		res, ok := results[taskCourseCommit]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("persist outline: %v", res.Err)
		}
		s.phase = courseDone
		return s, nil
	}
	return s, nil
}

func (s CourseState) commit() (CourseState, []Command) {
	parts := ParseOutline(s.outlineText())
	if len(parts) == 0 {
		return s.fail("outline text lost its structure")
	}
	s.Outline = &Outline{
		CourseID:     s.Req.CourseID,
		BookID:       s.Req.BookID,
		TotalMinutes: OutlineMinutes(parts),
		Parts:        parts,
	}
	s.TotalMinutes = s.Outline.TotalMinutes
	s.phase = courseCommit
	return s, []Command{{
		Kind:    KindSaveOutline,
		Task:    taskCourseCommit,
		Outline: s.Outline,
	}}
}

func (s CourseState) fail(format string, args ...any) (CourseState, []Command) {
	s.Err = fmt.Sprintf(format, args...)
	s.phase = courseDone
	return s, nil
}

func (s *CourseState) noteModel(res Result) {
	if res.Model != "" {
		s.Model = res.Model
	}
	if res.ModelSwitched {
		s.ModelSwitched = true
	}
}

func (s CourseState) outlineText() string {
	var blocks []string
	for i, text := range s.partTexts {
		if text == "" {
			continue
		}
		if len(s.partTexts) == len(s.Parts) && !partLineRe.MatchString(firstLine(text)) {
			// Some completions omit the part heading when expanding; restore
			// it so the committed tree keeps its boundaries.
			text = fmt.Sprintf("Part %d: %s (%d min)\n%s", i+1, s.Parts[i].Title, s.Parts[i].Minutes, text)
		}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func (s CourseState) sectionCommand() Command {
	return Command{
		Kind:      KindGenerate,
		Task:      taskCourseSection(s.sectionIdx),
		System:    courseSystemPrompt,
		Prompt:    buildSectionPrompt(s.Req, s.Parts, s.sectionIdx, s.outlineText()),
		MaxTokens: 2048,
	}
}

func buildPartsPrompt(req CourseRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Design a %d-minute course", req.TargetMinutes)
	if req.Title != "" {
		fmt.Fprintf(&b, " titled %q", req.Title)
	}
	if req.Audience != "" {
		fmt.Fprintf(&b, " for %s", req.Audience)
	}
	b.WriteString(".\n\n")

	if len(req.Summaries) > 0 {
		b.WriteString("Chapter summaries of the source book:\n")
		for i, s := range req.Summaries {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}

	if req.PriorOutline != "" {
		b.WriteString("This revises an existing course. Previous outline:\n")
		b.WriteString(req.PriorOutline)
		b.WriteString("\n\n")
		if req.RevisionNote != "" {
			fmt.Fprintf(&b, "Revision request: %s\n\n", req.RevisionNote)
		}
	}

	fmt.Fprintf(&b, "Propose 1 to 5 top-level parts, one per line, formatted exactly as "+
		"'Part N: Title (MM min)'. The minute allocations must sum to %d.\n", req.TargetMinutes)
	return b.String()
}

func buildSectionPrompt(req CourseRequest, parts []OutlinePart, idx int, soFar string) string {
	var b strings.Builder
	part := parts[idx]

	if soFar != "" {
		b.WriteString("Outline so far:\n")
		b.WriteString(soFar)
		b.WriteString("\n\n")
	}
	if idx+1 < len(parts) {
		b.WriteString("Parts still to be expanded after this one:\n")
		for _, p := range parts[idx+1:] {
			fmt.Fprintf(&b, "- %s (%d min)\n", p.Title, p.Minutes)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Expand part %d, %q, into sections. Start with the part line "+
		"'Part %d: %s (%d min)', then one line per section formatted as "+
		"'- Section: Title (MM min)' followed by its learning objectives as indented '*' bullets. "+
		"Section minutes must sum to %d.\n", idx+1, part.Title, idx+1, part.Title, part.Minutes, part.Minutes)
	if req.Audience != "" {
		fmt.Fprintf(&b, "Keep the material suited to %s.\n", req.Audience)
	}
	return b.String()
}

func buildReviewPrompt(req CourseRequest, outline string, total int) string {
	var b strings.Builder
	b.WriteString("The outline below totals ")
	fmt.Fprintf(&b, "%d minutes but the course must run %d minutes (within 5%%).\n", total, req.TargetMinutes)
	b.WriteString("Rebalance the section times, trimming or growing content where needed, ")
	b.WriteString("and return the complete corrected outline in the same format.\n\n")
	b.WriteString(outline)
	return b.String()
}

package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// Outline is a committed course plan.
type Outline struct {
	CourseID     string        `json:"course_id"`
	BookID       string        `json:"book_id"`
	TotalMinutes int           `json:"total_minutes"`
	Parts        []OutlinePart `json:"parts"`
}

type OutlinePart struct {
	Title    string           `json:"title"`
	Minutes  int              `json:"minutes"`
	Sections []OutlineSection `json:"sections"`
}

type OutlineSection struct {
	Title      string   `json:"title"`
	Minutes    int      `json:"minutes"`
	Objectives []string `json:"objectives,omitempty"`
}

// The generated outlines drift in formatting (markdown headers, bullet
// styles, "minutes" vs "min"), so parsing is line-oriented and keys on the
// two stable signals: a "Part N" prefix and a "(NN min)" annotation.
var (
	partLineRe   = regexp.MustCompile(`(?i)^\s*(?:#+\s*)?part\s+(\d+)\s*[:.\-]\s*(.+?)\s*\((\d+)\s*min(?:ute)?s?\.?\)\s*$`)
	minutesRe    = regexp.MustCompile(`(?i)\((\d+)\s*min(?:ute)?s?\.?\)`)
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+(?:\.\d+)*[.)]?)\s*`)
	sectionWord  = regexp.MustCompile(`(?i)^section\s*(?:\d+(?:\.\d+)*)?\s*[:.\-]\s*`)
)

// ParsePartList extracts only top-level part lines, in order of appearance.
func ParsePartList(text string) []OutlinePart {
	var parts []OutlinePart
	for _, line := range strings.Split(text, "\n") {
		if m := partLineRe.FindStringSubmatch(line); m != nil {
			minutes, _ := strconv.Atoi(m[3])
			parts = append(parts, OutlinePart{Title: strings.TrimSpace(m[2]), Minutes: minutes})
		}
	}
	return parts
}

// ParseOutline builds the part/section tree from generated outline text.
// A part line opens a part; any other line carrying a minute annotation is a
// section of the open part; bullet lines between sections are objectives of
// the most recent section.
func ParseOutline(text string) []OutlinePart {
	var parts []OutlinePart

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := partLineRe.FindStringSubmatch(line); m != nil {
			minutes, _ := strconv.Atoi(m[3])
			parts = append(parts, OutlinePart{Title: strings.TrimSpace(m[2]), Minutes: minutes})
			continue
		}
		if len(parts) == 0 {
			continue
		}
		part := &parts[len(parts)-1]

		if m := minutesRe.FindStringSubmatch(trimmed); m != nil {
			minutes, _ := strconv.Atoi(m[1])
			part.Sections = append(part.Sections, OutlineSection{
				Title:   sectionTitle(trimmed),
				Minutes: minutes,
			})
			continue
		}

		if len(part.Sections) > 0 && bulletPrefix.MatchString(line) {
			section := &part.Sections[len(part.Sections)-1]
			objective := strings.TrimSpace(bulletPrefix.ReplaceAllString(trimmed, ""))
			if objective != "" {
				section.Objectives = append(section.Objectives, objective)
			}
		}
	}
	return parts
}

func sectionTitle(line string) string {
	title := minutesRe.ReplaceAllString(line, "")
	title = bulletPrefix.ReplaceAllString(title, "")
	title = sectionWord.ReplaceAllString(title, "")
	title = strings.TrimLeft(title, "#")
	return strings.TrimSpace(title)
}

// OutlineMinutes totals the outline's section minutes; a part without
// parsed sections contributes its own allocation instead.
func OutlineMinutes(parts []OutlinePart) int {
	total := 0
	for _, p := range parts {
		if len(p.Sections) == 0 {
			total += p.Minutes
			continue
		}
		for _, s := range p.Sections {
			total += s.Minutes
		}
	}
	return total
}

// withinBudget reports whether total lies in [95%, 105%] of target.
func withinBudget(total, target int) bool {
	if target <= 0 {
		return false
	}
	diff := total - target
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= 0.05*float64(target)
}

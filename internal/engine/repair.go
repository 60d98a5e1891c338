package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type chapterPayload struct {
	ChapterNumber int      `json:"chapter_number"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points,omitempty"`
}

var (
	codeFenceRe = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*\n?(.*?)\n?\\s*```\\s*$")

	// Two defects show up constantly in generated JSON: a trailing comma
	// before a closing brace, and a dropped comma between adjacent fields.
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	missingCommaRe  = regexp.MustCompile(`(["}\]0-9])(\s*\n\s*")`)

	fieldNumberRe  = regexp.MustCompile(`"chapter_number"\s*:\s*"?(\d+)"?`)
	fieldTitleRe   = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fieldSummaryRe = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

func parseChapterPayload(raw string) (chapterPayload, error) {
	var payload chapterPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return chapterPayload{}, err
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return chapterPayload{}, fmt.Errorf("summary field empty")
	}
	return payload, nil
}

// recoverPayload is the pure front of the repair chain: parse as-is, then
// with code fences stripped, then with common syntax defects normalized.
// On failure it reports the original parser error so a model-assisted
// repair call can quote it.
func recoverPayload(raw string) (chapterPayload, error) {
	payload, firstErr := parseChapterPayload(raw)
	if firstErr == nil {
		return payload, nil
	}

	stripped := stripCodeFences(raw)
	if payload, err := parseChapterPayload(stripped); err == nil {
		return payload, nil
	}

	if payload, err := parseChapterPayload(normalizeJSONDefects(stripped)); err == nil {
		return payload, nil
	}
	return chapterPayload{}, firstErr
}

func stripCodeFences(raw string) string {
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

func normalizeJSONDefects(raw string) string {
	out := trailingCommaRe.ReplaceAllString(raw, "$1")
	out = missingCommaRe.ReplaceAllString(out, "$1,$2")
	return out
}

// extractChapterFields is the last resort: scrape the minimally required
// fields out of irrecoverably broken text. Lossy, so its callers flag the
// result as a fallback extraction.
func extractChapterFields(raw string) (chapterPayload, bool) {
	var payload chapterPayload

	if m := fieldNumberRe.FindStringSubmatch(raw); m != nil {
		payload.ChapterNumber, _ = strconv.Atoi(m[1])
	}
	if m := fieldTitleRe.FindStringSubmatch(raw); m != nil {
		payload.Title = unescapeJSONString(m[1])
	}
	if m := fieldSummaryRe.FindStringSubmatch(raw); m != nil {
		payload.Summary = unescapeJSONString(m[1])
	}

	if strings.TrimSpace(payload.Summary) == "" {
		return chapterPayload{}, false
	}
	return payload, true
}

func unescapeJSONString(s string) string {
	if unquoted, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return unquoted
	}
	return s
}

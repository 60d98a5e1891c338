package ingest

import (
	"regexp"
	"strings"
)

const (
	// DefaultOverlapFraction is how much of each neighbouring page a window
	// chunk borrows.
	DefaultOverlapFraction = 0.20

	// DefaultMaxChunkChars is the embedding-size ceiling; larger bodies are
	// split into ordered segments.
	DefaultMaxChunkChars = 12000
)

type ChunkerConfig struct {
	OverlapFraction float64
	MaxChunkChars   int
}

func (c ChunkerConfig) withDefaults() ChunkerConfig {
	if c.OverlapFraction <= 0 || c.OverlapFraction >= 1 {
		c.OverlapFraction = DefaultOverlapFraction
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = DefaultMaxChunkChars
	}
	return c
}

type BuildResult struct {
	Chunks   []Chunk
	Chapters []Chapter
}

// chapterHeadingRe matches chapter headings at the start of a line, e.g.
// "Chapter 3: Gradient Descent", "CHAPTER IV", "3. Gradient Descent".
var chapterHeadingRe = regexp.MustCompile(`(?i)^\s*chapter\s+(\d+|[ivxlcdm]+)\b[.:]?\s*(.*)$`)

// headingScanLines bounds how far below a page boundary a heading may sit.
const headingScanLines = 5

// BuildChunks turns per-page text into the two chunk families: one window
// chunk per page and one chapter chunk per detected heading. Every returned
// chunk is hashed; oversized bodies are already split into segments.
func BuildChunks(bookID string, pages []string, cfg ChunkerConfig) BuildResult {
	cfg = cfg.withDefaults()

	chunks := WindowChunks(bookID, pages, cfg)
	chapterChunks, chapters := ChapterChunks(bookID, pages)
	chunks = append(chunks, chapterChunks...)

	var out []Chunk
	for _, c := range chunks {
		out = append(out, splitOversized(c, cfg.MaxChunkChars)...)
	}
	for i := range out {
		out[i].ContentHash = ContentHash(out[i].Content)
	}
	return BuildResult{Chunks: out, Chapters: chapters}
}

// WindowChunks produces one chunk per page: the tail of the previous page,
// the full page, and the head of the next page. The page range always
// names the centre page so retrieval hits cite a single page.
func WindowChunks(bookID string, pages []string, cfg ChunkerConfig) []Chunk {
	cfg = cfg.withDefaults()

	var chunks []Chunk
	for i, page := range pages {
		// A window exists to centre retrieval on its page; an empty centre
		// page would index nothing but neighbour overlap.
		if strings.TrimSpace(page) == "" {
			continue
		}

		var sb strings.Builder
		if i > 0 {
			if tail := runeTail(pages[i-1], cfg.OverlapFraction); tail != "" {
				sb.WriteString(tail)
				sb.WriteString("\n")
			}
		}
		sb.WriteString(page)
		if i < len(pages)-1 {
			if head := runeHead(pages[i+1], cfg.OverlapFraction); head != "" {
				sb.WriteString("\n")
				sb.WriteString(head)
			}
		}

		body := sb.String()
		if strings.TrimSpace(body) == "" {
			continue
		}

		chunks = append(chunks, Chunk{
			BookID:    bookID,
			Kind:      ChunkKindWindow,
			Content:   body,
			PageStart: i + 1,
			PageEnd:   i + 1,
		})
	}
	return chunks
}

// ChapterChunks detects chapter headings near page boundaries and emits one
// chunk per chapter spanning heading to next heading (or document end).
func ChapterChunks(bookID string, pages []string) ([]Chunk, []Chapter) {
	type headingMark struct {
		page   int // 0-based
		line   int
		number int
		title  string
	}

	var marks []headingMark
	for p, page := range pages {
		lines := strings.Split(page, "\n")
		limit := headingScanLines
		if limit > len(lines) {
			limit = len(lines)
		}
		for l := 0; l < limit; l++ {
			m := chapterHeadingRe.FindStringSubmatch(lines[l])
			if m == nil {
				continue
			}
			marks = append(marks, headingMark{
				page:   p,
				line:   l,
				number: parseChapterNumber(m[1]),
				title:  strings.TrimSpace(m[2]),
			})
			break
		}
	}

	var chunks []Chunk
	var chapters []Chapter
	for i, mark := range marks {
		endPage := len(pages) - 1
		endLine := -1 // whole page
		if i+1 < len(marks) {
			next := marks[i+1]
			endPage = next.page
			endLine = next.line
		}

		var sb strings.Builder
		for p := mark.page; p <= endPage; p++ {
			lines := strings.Split(pages[p], "\n")
			from, to := 0, len(lines)
			if p == mark.page {
				from = mark.line
			}
			if p == endPage && endLine >= 0 {
				to = endLine
			}
			if from >= to {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.Join(lines[from:to], "\n"))
		}

		body := sb.String()
		if strings.TrimSpace(body) == "" {
			continue
		}

		lastPage := endPage
		if endLine == 0 {
			// Next chapter starts at the top of endPage, so this one ends on
			// the page before.
			lastPage = endPage - 1
		}

		chunks = append(chunks, Chunk{
			BookID:        bookID,
			Kind:          ChunkKindChapter,
			Content:       body,
			ChapterNumber: mark.number,
			ChapterTitle:  mark.title,
			PageStart:     mark.page + 1,
			PageEnd:       lastPage + 1,
		})
		chapters = append(chapters, Chapter{
			Number:    mark.number,
			Title:     mark.title,
			PageStart: mark.page + 1,
			PageEnd:   lastPage + 1,
		})
	}
	return chunks, chapters
}

// splitOversized breaks a chunk whose body exceeds maxChars into ordered
// segments. Concatenating segment contents in index order reproduces the
// original body exactly.
func splitOversized(c Chunk, maxChars int) []Chunk {
	runes := []rune(c.Content)
	if len(runes) <= maxChars {
		return []Chunk{c}
	}

	total := (len(runes) + maxChars - 1) / maxChars
	out := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		from := i * maxChars
		to := from + maxChars
		if to > len(runes) {
			to = len(runes)
		}
		seg := c
		seg.Content = string(runes[from:to])
		seg.SegmentIndex = i
		seg.SegmentTotal = total
		seg.SegmentOffset = from
		out = append(out, seg)
	}
	return out
}

var romanValues = map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

func parseChapterNumber(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	n := 0
	arabic := true
	for _, r := range s {
		if r < '0' || r > '9' {
			arabic = false
			break
		}
		n = n*10 + int(r-'0')
	}
	if arabic && s != "" {
		return n
	}

	// Roman numerals.
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

// runeTail returns the last frac of s, split on a rune boundary.
func runeTail(s string, frac float64) string {
	runes := []rune(s)
	n := int(float64(len(runes)) * frac)
	if n == 0 {
		return ""
	}
	return string(runes[len(runes)-n:])
}

// runeHead returns the first frac of s, split on a rune boundary.
func runeHead(s string, frac float64) string {
	runes := []rune(s)
	n := int(float64(len(runes)) * frac)
	if n == 0 {
		return ""
	}
	return string(runes[:n])
}

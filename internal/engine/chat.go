package engine

import (
	"fmt"
	"strings"
)

const (
	taskChatEmbed  = "chat.embed"
	taskChatSearch = "chat.search"
	taskChatAnswer = "chat.answer"
	taskChatSave   = "chat.save"
)

const chatSystemPrompt = "You are a careful reading companion for one book. " +
	"Answer only from the supplied passages and cite them as [1], [2] and so on. " +
	"If the passages do not contain the answer, say so plainly."

// DefaultChatLimit is how many passages ground one answer.
const DefaultChatLimit = 6

// DefaultChatMinSimilarity drops passages too far from the question.
const DefaultChatMinSimilarity = 0.6

type chatPhase int

const (
	chatEmbedding chatPhase = iota
	chatSearching
	chatAnswering
	chatSaving
	chatDone
)

// ChatRequest starts one retrieval-augmented chat turn.
type ChatRequest struct {
	SessionID string
	BookID    string
	Question  string
	History   []ChatMessage
	Limit     int
	MinScore  float64
}

// Citation points an answer fragment back into the book.
type Citation struct {
	Index         int     `json:"index"`
	Kind          string  `json:"kind"`
	ChapterNumber int     `json:"chapter_number,omitempty"`
	ChapterTitle  string  `json:"chapter_title,omitempty"`
	PageStart     int     `json:"page_start"`
	PageEnd       int     `json:"page_end"`
	FigureID      string  `json:"figure_id,omitempty"`
	Similarity    float64 `json:"similarity"`
}

// ChatState is the chat workflow snapshot. Reducers return modified copies;
// nothing mutates it in place.
type ChatState struct {
	Req   ChatRequest
	phase chatPhase

	Hits          []SearchHit
	Answer        string
	Citations     []Citation
	Model         string
	ModelSwitched bool
	Err           string
}

// Done reports whether the workflow reached a terminal phase.
func (s ChatState) Done() bool { return s.phase == chatDone }

// Failed reports whether the workflow ended with an error.
func (s ChatState) Failed() bool { return s.Err != "" }

// NewChat returns the initial state and the first command batch.
func NewChat(req ChatRequest) (ChatState, []Command) {
	if req.Limit <= 0 {
		req.Limit = DefaultChatLimit
	}
	if req.MinScore <= 0 {
		req.MinScore = DefaultChatMinSimilarity
	}
	state := ChatState{Req: req, phase: chatEmbedding}
	return state, []Command{{
		Kind:  KindEmbed,
		Task:  taskChatEmbed,
		Texts: []string{req.Question},
	}}
}

// Step advances the chat workflow by one phase.
func (s ChatState) Step(results map[string]Result) (ChatState, []Command) {
	switch s.phase {
	case chatEmbedding:
		res, ok := results[taskChatEmbed]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("embed question: %v", res.Err)
		}
		if len(res.Vectors) != 1 {
			return s.fail("embed question: expected 1 vector, got %d", len(res.Vectors))
		}
		s.phase = chatSearching
		return s, []Command{{
			Kind: KindSearch,
			Task: taskChatSearch,
			Query: SearchQuery{
				BookID:        s.Req.BookID,
				Vector:        res.Vectors[0],
				Limit:         s.Req.Limit,
				MinSimilarity: s.Req.MinScore,
			},
		}}

	case chatSearching:
		res, ok := results[taskChatSearch]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("search passages: %v", res.Err)
		}
		s.Hits = res.Hits
		s.Citations = citationsFromHits(res.Hits)
		s.phase = chatAnswering
		return s, []Command{{
			Kind:      KindGenerate,
			Task:      taskChatAnswer,
			System:    chatSystemPrompt,
			Prompt:    buildChatPrompt(s.Req.Question, s.Req.History, res.Hits),
			MaxTokens: 2048,
		}}

	case chatAnswering:
		res, ok := results[taskChatAnswer]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("generate answer: %v", res.Err)
		}
		s.Answer = strings.TrimSpace(res.Text)
		s.Model = res.Model
		s.ModelSwitched = res.ModelSwitched
		s.phase = chatSaving
		return s, []Command{{
			Kind:      KindSaveMessages,
			Task:      taskChatSave,
			SessionID: s.Req.SessionID,
			Messages: []ChatMessage{
				{Role: "user", Content: s.Req.Question},
				{Role: "assistant", Content: s.Answer},
			},
		}}

	case chatSaving:
		res, ok := results[taskChatSave]
		if !ok {
			return s, nil
		}
		if res.Err != nil {
			return s.fail("save messages: %v", res.Err)
		}
		s.phase = chatDone
		return s, nil
	}
	return s, nil
}

func (s ChatState) fail(format string, args ...any) (ChatState, []Command) {
	s.Err = fmt.Sprintf(format, args...)
	s.phase = chatDone
	return s, nil
}

func citationsFromHits(hits []SearchHit) []Citation {
	citations := make([]Citation, len(hits))
	for i, h := range hits {
		citations[i] = Citation{
			Index:         i + 1,
			Kind:          h.Kind,
			ChapterNumber: h.ChapterNumber,
			ChapterTitle:  h.ChapterTitle,
			PageStart:     h.PageStart,
			PageEnd:       h.PageEnd,
			FigureID:      h.FigureID,
			Similarity:    h.Similarity,
		}
	}
	return citations
}

func buildChatPrompt(question string, history []ChatMessage, hits []SearchHit) string {
	var b strings.Builder

	if len(hits) > 0 {
		b.WriteString("Passages from the book:\n\n")
		for i, h := range hits {
			fmt.Fprintf(&b, "[%d] (pages %d-%d", i+1, h.PageStart, h.PageEnd)
			if h.ChapterTitle != "" {
				fmt.Fprintf(&b, ", chapter %q", h.ChapterTitle)
			}
			b.WriteString(")\n")
			b.WriteString(strings.TrimSpace(h.Content))
			b.WriteString("\n\n")
		}
	} else {
		b.WriteString("No passages matched the question.\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

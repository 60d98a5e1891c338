package engine

import (
	"context"
	"errors"
)

// Shared scripted fakes for the workflow tests. The generator is a queue:
// workflows issue completion calls strictly in order, so scripts read top
// to bottom like the conversation they simulate.

type genScript struct {
	text     string
	err      error
	model    string
	switched bool
}

type fakeGenerator struct {
	queue []genScript
	calls []GenerateRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (Generation, error) {
	g.calls = append(g.calls, req)
	if len(g.queue) == 0 {
		return Generation{}, errors.New("unscripted completion call")
	}
	next := g.queue[0]
	g.queue = g.queue[1:]
	if next.err != nil {
		return Generation{}, next.err
	}
	model := next.model
	if model == "" {
		model = "test-model"
	}
	return Generation{Text: next.text, Model: model, ModelSwitched: next.switched}, nil
}

type stubEmbedder struct {
	err   error
	calls [][]string
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type stubSearcher struct {
	hits    []SearchHit
	err     error
	queries []SearchQuery
}

func (s *stubSearcher) Search(_ context.Context, q SearchQuery) ([]SearchHit, error) {
	s.queries = append(s.queries, q)
	return s.hits, s.err
}

type stubMessageStore struct {
	err      error
	sessions []string
	saved    [][]ChatMessage
}

func (s *stubMessageStore) SaveMessages(_ context.Context, sessionID string, messages []ChatMessage) error {
	s.sessions = append(s.sessions, sessionID)
	s.saved = append(s.saved, messages)
	return s.err
}

type stubOutlineStore struct {
	err      error
	replaced []Outline
}

func (s *stubOutlineStore) ReplaceOutline(_ context.Context, outline Outline) error {
	s.replaced = append(s.replaced, outline)
	return s.err
}

type stubSummaryStore struct {
	saved     []ChapterSummary
	overviews map[string]string
}

func (s *stubSummaryStore) SaveChapterSummary(_ context.Context, summary ChapterSummary) error {
	s.saved = append(s.saved, summary)
	return nil
}

func (s *stubSummaryStore) SaveOverview(_ context.Context, bookID, overview string) error {
	if s.overviews == nil {
		s.overviews = map[string]string{}
	}
	s.overviews[bookID] = overview
	return nil
}

type testBackends struct {
	gen       *fakeGenerator
	embedder  *stubEmbedder
	searcher  *stubSearcher
	messages  *stubMessageStore
	outlines  *stubOutlineStore
	summaries *stubSummaryStore
}

func newTestBackends() *testBackends {
	return &testBackends{
		gen:       &fakeGenerator{},
		embedder:  &stubEmbedder{},
		searcher:  &stubSearcher{},
		messages:  &stubMessageStore{},
		outlines:  &stubOutlineStore{},
		summaries: &stubSummaryStore{},
	}
}

func (b *testBackends) executor() *Executor {
	return &Executor{
		Embedder:  b.embedder,
		Generator: b.gen,
		Searcher:  b.searcher,
		Messages:  b.messages,
		Outlines:  b.outlines,
		Summaries: b.summaries,
	}
}

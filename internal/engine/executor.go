package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor is the single I/O point of the engine. It interprets one Command
// at a time and never decides what happens next; that is the reducers' job.
type Executor struct {
	Embedder  Embedder
	Generator Generator
	Searcher  Searcher
	Messages  MessageStore
	Outlines  OutlineStore
	Summaries SummaryStore
}

// Run performs the I/O a Command describes. Failures are carried in the
// Result rather than returned, so the reducer decides whether a failed
// command is fatal for its workflow.
func (e *Executor) Run(ctx context.Context, cmd Command) Result {
	res := Result{Task: cmd.Task}

	switch cmd.Kind {
	case KindEmbed:
		res.Vectors, res.Err = e.Embedder.EmbedBatch(ctx, cmd.Texts)

	case KindGenerate:
		gen, err := e.Generator.Generate(ctx, GenerateRequest{
			System:      cmd.System,
			Prompt:      cmd.Prompt,
			MaxTokens:   cmd.MaxTokens,
			Temperature: cmd.Temperature,
		})
		res.Err = err
		res.Text = gen.Text
		res.Model = gen.Model
		res.ModelSwitched = gen.ModelSwitched

	case KindSearch:
		res.Hits, res.Err = e.Searcher.Search(ctx, cmd.Query)

	case KindSaveMessages:
		res.Err = e.Messages.SaveMessages(ctx, cmd.SessionID, cmd.Messages)

	case KindSaveOutline:
		if cmd.Outline == nil {
			res.Err = fmt.Errorf("save outline command without outline")
			break
		}
		res.Err = e.Outlines.ReplaceOutline(ctx, *cmd.Outline)

	case KindSaveSummary:
		if cmd.Summary == nil {
			res.Err = fmt.Errorf("save summary command without summary")
			break
		}
		res.Err = e.Summaries.SaveChapterSummary(ctx, *cmd.Summary)

	case KindSaveOverview:
		res.Err = e.Summaries.SaveOverview(ctx, cmd.BookID, cmd.Overview)

	default:
		res.Err = fmt.Errorf("unknown command kind %q", cmd.Kind)
	}

	if res.Err != nil {
		slog.ErrorContext(ctx, "command failed", "kind", cmd.Kind, "task", cmd.Task, "error", res.Err)
	}
	return res
}

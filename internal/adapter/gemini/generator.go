package gemini

import (
	"context"

	"folio/backend/internal/engine"
)

// Generate adapts Complete to the engine's completion interface.
func (c *Client) Generate(ctx context.Context, req engine.GenerateRequest) (engine.Generation, error) {
	comp, err := c.Complete(ctx, CompletionRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return engine.Generation{}, err
	}
	return engine.Generation{
		Text:          comp.Text,
		Model:         comp.Model,
		ModelSwitched: comp.ModelSwitched,
		PromptTokens:  comp.PromptTokens,
		OutputTokens:  comp.OutputTokens,
	}, nil
}

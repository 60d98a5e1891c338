package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
)

const describePrompt = `Describe this figure from a book for a search index.
State what the figure shows, any text or labels it contains, and what a
reader would learn from it. Two to four sentences, no preamble.`

// DescribeFigure asks a vision-capable model to describe one embedded image.
// The caption, when present, is supplied as context. The call goes through
// the same fallback and retry policy as text completions.
func (c *Client) DescribeFigure(ctx context.Context, image []byte, format string, pageNumber int, caption string) (string, error) {
	prompt := describePrompt
	prompt += fmt.Sprintf("\n\nThe figure appears on page %d.", pageNumber)
	if caption != "" {
		prompt += fmt.Sprintf("\nPrinted caption: %q.", caption)
	}

	parts := []genai.Part{
		genai.ImageData(format, image),
		genai.Text(prompt),
	}

	out, err := c.generateWithFallback(ctx, CompletionRequest{MaxTokens: 512}, parts)
	if err != nil {
		return "", err
	}
	if out.ModelSwitched {
		slog.InfoContext(ctx, "figure described on fallback model", "model", out.Model, "page", pageNumber)
	}
	return out.Text, nil
}

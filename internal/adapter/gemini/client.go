package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	// ErrRateLimited marks a transient throttle response. Callers inside this
	// package retry it; it only escapes after retries are exhausted.
	ErrRateLimited = errors.New("model rate limited")

	// ErrQuotaExhausted marks a hard quota error. Never retried on the same
	// model; the client reroutes to the fallback model when one is configured.
	ErrQuotaExhausted = errors.New("model quota exhausted")

	// ErrEmptyResponse is returned when the model produced no usable candidate.
	ErrEmptyResponse = errors.New("model returned no content")
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 2 * time.Second
)

type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
	// Model overrides the configured primary for this call only.
	Model string
}

type Completion struct {
	Text          string
	Model         string
	ModelSwitched bool
	PromptTokens  int
	OutputTokens  int
}

// Client wraps the Gemini API with the invocation policy shared by all
// generative calls: bounded retries with jittered delay on throttling, and a
// single primary-to-fallback switch on quota exhaustion. The switch is a
// two-step attempt over a visited set, so it cannot loop.
type Client struct {
	client     *genai.Client
	primary    string
	fallback   string
	maxRetries int
	retryBase  time.Duration

	// generateFn indirection exists for tests; production always uses generate.
	generateFn func(ctx context.Context, model string, req CompletionRequest, parts []genai.Part) (*Completion, error)
}

func NewClient(ctx context.Context, apiKey, primary, fallback string) (*Client, error) {
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	c := &Client{
		client:     gc,
		primary:    primary,
		fallback:   fallback,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	c.generateFn = c.generate
	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	return c.generateWithFallback(ctx, req, parts)
}

func (c *Client) generateWithFallback(ctx context.Context, req CompletionRequest, parts []genai.Part) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.primary
	}

	tried := map[string]bool{}
	for {
		tried[model] = true

		out, err := c.generateFn(ctx, model, req, parts)
		if err == nil {
			out.ModelSwitched = req.Model == "" && model != c.primary
			return out, nil
		}

		if isQuotaExhausted(err) && c.fallback != "" && !tried[c.fallback] {
			slog.WarnContext(ctx, "model quota exhausted, switching to fallback",
				"model", model, "fallback", c.fallback)
			model = c.fallback
			continue
		}
		if isQuotaExhausted(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrQuotaExhausted, model, err)
		}
		return nil, err
	}
}

// generate runs one model with the transient-throttle retry policy applied.
func (c *Client) generate(ctx context.Context, model string, req CompletionRequest, parts []genai.Part) (*Completion, error) {
	gm := c.client.GenerativeModel(model)
	if req.Temperature != nil {
		gm.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	var resp *genai.GenerateContentResponse
	err := invokeWithRetry(ctx, c.maxRetries, c.retryBase, func() error {
		var callErr error
		resp, callErr = gm.GenerateContent(ctx, parts...)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: model %s", ErrEmptyResponse, model)
	}

	out := &Completion{Text: text, Model: model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// invokeWithRetry retries rate-limited calls with a fixed base delay plus
// symmetric jitter. Quota and contract errors propagate immediately.
func invokeWithRetry(ctx context.Context, attempts int, base time.Duration, call func() error) error {
	var err error
	for i := 0; i <= attempts; i++ {
		err = call()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) || i == attempts {
			return err
		}

		delay := jitteredDelay(base)
		slog.WarnContext(ctx, "model rate limited, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// jitteredDelay spreads retries across [base/2, 3*base/2].
func jitteredDelay(base time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(base))) - base/2
	return base + jitter
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// isQuotaExhausted detects hard quota errors, which must not be retried on
// the same model.
func isQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota")
}

// isRateLimited detects soft throttling (429/503 without a quota message).
func isRateLimited(err error) bool {
	if err == nil || isQuotaExhausted(err) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code == 503
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "try again later")
}

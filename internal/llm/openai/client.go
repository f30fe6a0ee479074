// Package openai wraps the OpenAI Go SDK chat completions endpoint as a
// single-shot prompt completer, used by QueryRouter's LLM tier and
// FilterParser. Trimmed from the teacher's tool-calling/multimodal agent
// client down to the one call shape these components need.
package openai

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
)

// Client calls an OpenAI-compatible chat completions endpoint with a
// single user message and returns the text reply.
type Client struct {
	sdk         sdk.Client
	model       string
	maxTokens   int64
	temperature float64
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithMaxTokens(n int64) Option     { return func(c *Client) { c.maxTokens = n } }
func WithTemperature(t float64) Option { return func(c *Client) { c.temperature = t } }

// WithHTTPClient overrides the HTTP client used for SDK requests, mainly for tests.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// New constructs a Client. baseURL is optional (empty targets
// api.openai.com); non-empty points at an OpenAI-compatible endpoint.
func New(apiKey, baseURL, model string, opts ...Option) *Client {
	c := &Client{model: model, maxTokens: 512, temperature: 0}
	for _, opt := range opts {
		opt(c)
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(baseURL))
	}
	if c.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(c.httpClient))
	}
	c.sdk = sdk.NewClient(sdkOpts...)
	return c
}

// Complete sends prompt as a single user message and returns the model's
// text reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    []sdk.ChatCompletionMessageParamUnion{sdk.UserMessage(prompt)},
		Temperature: param.NewOpt(c.temperature),
		MaxTokens:   param.NewOpt(c.maxTokens),
	}
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Package anthropic wraps the Anthropic Go SDK messages endpoint as a
// single-shot prompt completer, used by QueryRouter's LLM tier and
// FilterParser. Trimmed from the teacher's multi-turn, tool-calling,
// extended-thinking client down to the one call shape these components need.
package anthropic

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens int64 = 1024

// Client calls the Anthropic messages endpoint with a single user turn and
// returns the text reply.
type Client struct {
	sdk        sdk.Client
	model      string
	maxTokens  int64
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithMaxTokens(n int64) Option { return func(c *Client) { c.maxTokens = n } }

// WithHTTPClient overrides the HTTP client used for SDK requests, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a Client. baseURL is optional (empty targets the default
// Anthropic API host); model defaults to Claude 3.7 Sonnet latest.
func New(apiKey, baseURL, model string, opts ...Option) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = string(sdk.ModelClaude3_7SonnetLatest)
	}

	c := &Client{model: model, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if base := strings.TrimSpace(baseURL); base != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if c.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(c.httpClient))
	}
	c.sdk = sdk.NewClient(sdkOpts...)
	return c
}

// Complete sends prompt as a single user message and returns the model's
// text reply, concatenating any text content blocks.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

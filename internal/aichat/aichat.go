// Package aichat is the Chat prompt variant's streaming backend (spec.md
// §2: "AI chat backend" is named as an external leaf collaborator; this
// package is SPEC_FULL.md's concrete adapter for it). It wraps
// anthropic-sdk-go's streaming Messages API behind a small channel-based
// interface so the prompt model can render incremental deltas without
// importing the SDK directly.
//
// Grounded on `_examples/standardbeagle-devtool-mcp/internal/aichannel`'s
// AnthropicProvider (client construction from an API key/env var,
// MessageNewParams shape) and generalized from its non-streaming
// Complete call to the SDK's streaming accumulate loop. Token/cost
// numbers produced here are formatted for display by
// `internal/shell.FormatTokens`/`FormatCost`.
package aichat

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Role is a chat message's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the chat prompt's conversation history.
type Message struct {
	Role Role
	Text string
}

// Usage carries the token accounting for a completed stream, for the
// chat prompt's cost HUD.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Delta is one increment of a streamed response. A Delta with Done set
// is the terminal event on the channel; Err is non-nil only there, if
// the stream failed.
type Delta struct {
	Text  string
	Usage Usage
	Done  bool
	Err   error
}

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096
)

// Client streams chat completions from the Anthropic API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClient builds a Client. apiKey may be empty, in which case the
// SCRIPT_KIT_ANTHROPIC_API_KEY environment variable is used; when that is
// unset too, no key option is passed and the SDK applies its own
// ANTHROPIC_API_KEY default.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else if env := os.Getenv("SCRIPT_KIT_ANTHROPIC_API_KEY"); env != "" {
		opts = append(opts, option.WithAPIKey(env))
	}
	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Stream sends history (plus an implicit system prompt) to the model and
// streams back text deltas on the returned channel, which is closed
// after the terminal Delta is sent.
func (c *Client) Stream(ctx context.Context, system string, history []Message) <-chan Delta {
	out := make(chan Delta, 8)
	go c.run(ctx, system, history, out)
	return out
}

func (c *Client) run(ctx context.Context, system string, history []Message, out chan<- Delta) {
	defer close(out)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  toMessageParams(history),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			out <- Delta{Done: true, Err: fmt.Errorf("aichat: accumulate: %w", err)}
			return
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				out <- Delta{Text: text.Text}
			}
		}
	}
	if err := stream.Err(); err != nil {
		out <- Delta{Done: true, Err: fmt.Errorf("aichat: stream: %w", err)}
		return
	}
	out <- Delta{
		Done: true,
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}
}

func toMessageParams(history []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return params
}

// pricePerMillionUSD holds input/output pricing for the models this
// runtime is expected to use. Unknown models fall back to the Sonnet
// rate rather than erroring, since the cost HUD is advisory display
// only.
var pricePerMillionUSD = map[string][2]float64{
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-haiku-3-5-20241022":  {0.80, 4.00},
	"claude-opus-4-5-20251101":   {15.00, 75.00},
}

// EstimateCostUSD estimates the USD cost of a completion from its token
// usage, for display via internal/shell.FormatCost.
func EstimateCostUSD(model string, usage Usage) float64 {
	prices, ok := pricePerMillionUSD[model]
	if !ok {
		prices = pricePerMillionUSD[DefaultModel]
	}
	in := float64(usage.InputTokens) / 1_000_000 * prices[0]
	out := float64(usage.OutputTokens) / 1_000_000 * prices[1]
	return in + out
}

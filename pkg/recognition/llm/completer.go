package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer sends one system + user exchange to a chat model and returns the
// text of its reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// ClientOptions are shared by the bundled completers.
type ClientOptions struct {
	APIKey  string
	Model   string
	BaseURL string

	// MaxRetries is forwarded to the SDK. The recognizer is on the request
	// path of a conversation, so the default is no retry.
	MaxRetries int
}

// OpenAI completes with the OpenAI Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(opts ClientOptions) *OpenAI {
	reqOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return NewOpenAIFromClient(&client, opts.Model)
}

// NewOpenAIFromClient wraps an existing client.
func NewOpenAIFromClient(client *openai.Client, model string) *OpenAI {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAI{client: client, model: model}
}

// Name returns "openai".
func (o *OpenAI) Name() string { return "openai" }

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Anthropic completes with the Anthropic Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(opts ClientOptions) *Anthropic {
	reqOpts := []anthropicoption.RequestOption{anthropicoption.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, anthropicoption.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return NewAnthropicFromClient(&client, opts.Model)
}

// NewAnthropicFromClient wraps an existing client.
func NewAnthropicFromClient(client *anthropic.Client, model string) *Anthropic {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5Sonnet20241022
	}
	return &Anthropic{client: client, model: m, maxTokens: 256}
}

// Name returns "anthropic".
func (a *Anthropic) Name() string { return "anthropic" }

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}

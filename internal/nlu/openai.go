// This file implements an OpenAI-backed NLU provider that emulates the
// wit.ai result contract. It is a fallback for deployments without a
// trained wit.ai app; the dialogue engine consumes either provider's
// output through the same normalizer.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAISystemPrompt instructs the model to produce a wit-style result.
const openAISystemPrompt = `You are the natural-language-understanding stage of an expense-tracking assistant.
Analyze the user utterance and reply with a single JSON object, nothing else, shaped as:
{"intents":[{"name":"<intent>","confidence":<0..1>}],
 "entities":{"<name>:<name>":[{"name":"<name>","type":"value","body":"<span>","value":<value>,"confidence":<0..1>}]},
 "traits":{"<trait>":[{"value":"<value>","confidence":<0..1>}]}}
Known intents: tell_joke, who_are_you, delete_account, add_expense, feedback_positive, feedback_negative.
Known entity names: item (string value), wit$amount_of_money (numeric value), wit$number (numeric value),
wit$datetime (RFC 3339 string value with "grain" of day/week/month; for ranges use type "interval" with "from" and "to").
Known traits: wit$greetings, wit$bye, wit$thanks, wit$sentiment (value negative/neutral/positive).
Rank intents by confidence. Omit sections that do not apply.`

// chatService defines the minimal chat-completion surface used by the
// provider, allowing tests to substitute a mock.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIOpts holds configuration options for the OpenAI provider.
type OpenAIOpts struct {
	APIKey string
	Model  string
}

// OpenAIOption defines a configuration option for the OpenAI provider.
type OpenAIOption func(*OpenAIOpts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) OpenAIOption {
	return func(o *OpenAIOpts) { o.APIKey = key }
}

// WithModel overrides the chat model used for analysis.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAIOpts) { o.Model = model }
}

// OpenAIProvider implements Provider on top of the OpenAI chat API.
type OpenAIProvider struct {
	chat  chatService
	model string
}

// NewOpenAIProvider creates an OpenAI-backed provider, falling back to
// the OPENAI_API_KEY environment variable if no key option is provided.
func NewOpenAIProvider(opts ...OpenAIOption) (*OpenAIProvider, error) {
	var cfg OpenAIOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("OpenAI provider config loaded", "api_key_set", cfg.APIKey != "", "model", cfg.Model)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIProvider{chat: &client.Chat.Completions, model: cfg.Model}, nil
}

// Query analyzes a text utterance. Voice payloads are not supported by
// this provider; use the wit.ai client for speech.
func (p *OpenAIProvider) Query(ctx context.Context, req Request) (*Response, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai provider supports text input only")
	}

	userPrompt := fmt.Sprintf("Reference time: %s\nUtterance: %s",
		req.Timestamp.Format(time.RFC3339), truncateUtterance(req.Text))

	completion, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("OpenAI NLU query failed", "error", err)
		return nil, fmt.Errorf("openai nlu query failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai nlu query returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`")

	var parsed Response
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Error("OpenAI NLU response was not valid JSON", "error", err)
		return nil, fmt.Errorf("failed to decode openai nlu response: %w", err)
	}

	slog.Debug("OpenAI NLU query succeeded", "intents", len(parsed.Intents), "entity_groups", len(parsed.Entities))
	return &parsed, nil
}

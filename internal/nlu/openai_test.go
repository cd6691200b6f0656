package nlu

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestOpenAIProviderQuery(t *testing.T) {
	mock := &mockChatService{resp: completionWith(
		`{"intents":[{"name":"tell_joke","confidence":0.91}],"traits":{"wit$greetings":[{"value":"true","confidence":0.8}]}}`,
	)}
	provider := &OpenAIProvider{chat: mock, model: "test-model"}

	resp, err := provider.Query(context.Background(), Request{Text: "hey, tell me a joke", Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Intents) != 1 || resp.Intents[0].Name != "tell_joke" {
		t.Errorf("unexpected intents: %+v", resp.Intents)
	}
	if len(resp.Traits[TraitGreetings]) != 1 {
		t.Errorf("unexpected traits: %+v", resp.Traits)
	}
	if mock.params.Model != "test-model" {
		t.Errorf("expected configured model, got %q", mock.params.Model)
	}
}

func TestOpenAIProviderStripsCodeFences(t *testing.T) {
	mock := &mockChatService{resp: completionWith(
		"```json\n{\"intents\":[{\"name\":\"add_expense\",\"confidence\":0.9}]}\n```",
	)}
	provider := &OpenAIProvider{chat: mock, model: "test-model"}

	resp, err := provider.Query(context.Background(), Request{Text: "I bought coffee", Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Intents) != 1 || resp.Intents[0].Name != "add_expense" {
		t.Errorf("unexpected intents: %+v", resp.Intents)
	}
}

func TestOpenAIProviderRejectsVoice(t *testing.T) {
	provider := &OpenAIProvider{chat: &mockChatService{}, model: "test-model"}
	if _, err := provider.Query(context.Background(), Request{Voice: []byte{1, 2, 3}}); err == nil {
		t.Fatal("expected an error for voice input")
	}
}

func TestOpenAIProviderServiceError(t *testing.T) {
	provider := &OpenAIProvider{chat: &mockChatService{err: errors.New("service failure")}, model: "test-model"}
	_, err := provider.Query(context.Background(), Request{Text: "hi", Timestamp: time.Now()})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestOpenAIProviderInvalidJSON(t *testing.T) {
	mock := &mockChatService{resp: completionWith("sorry, I cannot help with that")}
	provider := &OpenAIProvider{chat: mock, model: "test-model"}
	if _, err := provider.Query(context.Background(), Request{Text: "hi", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected a decode error for non-JSON content")
	}
}

func TestNewOpenAIProviderNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIProvider(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewOpenAIProviderWithKey(t *testing.T) {
	provider, err := NewOpenAIProvider(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if provider == nil {
		t.Error("expected provider instance, got nil")
	}
}

package anthropicLLM

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/llm"
)

type messagesBody struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func newTestProvider(t *testing.T, handler func(messagesBody) (int, string)) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body messagesBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		code, payload := handler(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	p, err := NewAnthropicClient(Config{
		APIKey:          "test",
		BaseURL:         srv.URL + "/",
		ModelId:         "claude-sonnet-4-5",
		MaxInputChars:   1000,
		MaxOutputTokens: 300,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

const okMessage = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],
"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":4}}`

func TestGenerate_JoinsTextBlocks(t *testing.T) {
	var got messagesBody
	p := newTestProvider(t, func(b messagesBody) (int, string) {
		got = b
		return 200, okMessage
	})

	history := []ragModel.ChatMessage{
		{Role: ragModel.RoleSystem, Text: "only use documents"},
		{Role: ragModel.RoleUser, Text: "q0"},
		{Role: ragModel.RoleAssistant, Text: "a0"},
	}
	res, err := p.Generate(context.Background(), llm.GenerateRequest{Prompt: "q1", History: history})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "part one, part two" {
		t.Errorf("text = %q", res.Text)
	}
	if len(got.System) != 1 || got.System[0].Text != "only use documents" {
		t.Errorf("system = %+v", got.System)
	}
	if len(got.Messages) != 3 || got.Messages[1].Role != "assistant" || got.Messages[2].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.MaxTokens != 300 {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if len(res.History) != 5 || len(history) != 3 {
		t.Errorf("history handling wrong: result=%d caller=%d", len(res.History), len(history))
	}
}

func TestGenerate_EmptyContentArray(t *testing.T) {
	p := newTestProvider(t, func(messagesBody) (int, string) {
		return 200, `{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`
	})
	_, err := p.Generate(context.Background(), llm.GenerateRequest{Prompt: "q"})
	if !errors.Is(err, ragModel.ErrGenerationBackend) {
		t.Errorf("expected ErrGenerationBackend, got %v", err)
	}
}

func TestGenerate_BackendError(t *testing.T) {
	p := newTestProvider(t, func(messagesBody) (int, string) {
		return 400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`
	})
	_, err := p.Generate(context.Background(), llm.GenerateRequest{Prompt: "q"})
	if !errors.Is(err, ragModel.ErrGenerationBackend) {
		t.Errorf("expected ErrGenerationBackend, got %v", err)
	}
}

func TestNewAnthropicClient_MissingKey(t *testing.T) {
	_, err := NewAnthropicClient(Config{ModelId: "m"})
	if !errors.Is(err, ragModel.ErrGenerationUnavailable) {
		t.Errorf("expected ErrGenerationUnavailable, got %v", err)
	}
}

package llm

import (
	"errors"
	"testing"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

func TestPrepare_CopiesHistoryAndAppliesDefaults(t *testing.T) {
	s := Settings{ModelId: "m", MaxInputChars: 5, MaxOutputTokens: 100, Temperature: 0.3}
	history := []ragModel.ChatMessage{
		{Role: ragModel.RoleSystem, Text: "be brief"},
		{Role: ragModel.RoleUser, Text: "hi"},
		{Role: ragModel.RoleAssistant, Text: "hello"},
	}

	call, err := Prepare("test", s, true, GenerateRequest{Prompt: "  question?  ", History: history})
	if err != nil {
		t.Fatal(err)
	}

	if call.Prompt != "que" {
		t.Errorf("prompt = %q", call.Prompt)
	}
	if call.MaxOutputTokens != 100 || call.Temperature != 0.3 {
		t.Errorf("defaults not applied: %+v", call)
	}
	if call.System != "be brief" {
		t.Errorf("system = %q", call.System)
	}
	if len(call.Messages) != 3 || call.Messages[2].Role != ragModel.RoleUser {
		t.Errorf("messages = %+v", call.Messages)
	}
	if len(history) != 3 {
		t.Errorf("caller history grew to %d", len(history))
	}

	res, err := call.Complete("test", "answer")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.History) != 5 || res.History[4].Role != ragModel.RoleAssistant || res.History[3].Text != "que" {
		t.Errorf("result history = %+v", res.History)
	}
	if len(call.History) != 4 {
		t.Errorf("Complete mutated the call history")
	}
}

func TestPrepare_Overrides(t *testing.T) {
	tokens := 7
	temp := float32(0.9)
	call, err := Prepare("test", Settings{ModelId: "m", MaxOutputTokens: 100}, true,
		GenerateRequest{Prompt: "x", MaxOutputTokens: &tokens, Temperature: &temp})
	if err != nil {
		t.Fatal(err)
	}
	if call.MaxOutputTokens != 7 || call.Temperature != 0.9 {
		t.Errorf("overrides ignored: %+v", call)
	}
}

func TestPrepare_Errors(t *testing.T) {
	if _, err := Prepare("test", Settings{}, true, GenerateRequest{Prompt: "x"}); !errors.Is(err, ragModel.ErrGenerationUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
	if _, err := Prepare("test", Settings{ModelId: "m"}, false, GenerateRequest{Prompt: "x"}); !errors.Is(err, ragModel.ErrGenerationUnavailable) {
		t.Errorf("expected unavailable without client, got %v", err)
	}
	if _, err := Prepare("test", Settings{ModelId: "m"}, true, GenerateRequest{Prompt: " "}); !errors.Is(err, ragModel.ErrGenerationBackend) {
		t.Errorf("expected backend error for blank prompt, got %v", err)
	}
}

func TestComplete_EmptyAnswer(t *testing.T) {
	call := Call{}
	if _, err := call.Complete("test", "  "); !errors.Is(err, ragModel.ErrGenerationBackend) {
		t.Errorf("expected ErrGenerationBackend, got %v", err)
	}
}

func TestSettings_Rebind(t *testing.T) {
	s := Settings{ModelId: "a"}
	next, err := s.Rebind("b")
	if err != nil || next.ModelId != "b" || s.ModelId != "a" {
		t.Errorf("rebind: next=%+v orig=%+v err=%v", next, s, err)
	}
	if _, err := s.Rebind(""); !errors.Is(err, ragModel.ErrGenerationUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

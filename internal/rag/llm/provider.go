package llm

import (
	"context"
	"strings"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/rag/textnorm"
)

// Provider generates text from a prompt and a role tagged history.
// Implementations never mutate the caller's history: Generate returns a new one.
type Provider interface {
	Name() string
	WithGenerationModel(modelId string) (Provider, error)
	TruncateInput(text string) string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

type GenerateRequest struct {
	Prompt          string
	History         []ragModel.ChatMessage
	MaxOutputTokens *int     //nil means the configured default
	Temperature     *float32 //nil means the configured default
}

type GenerateResult struct {
	Text    string
	History []ragModel.ChatMessage //request history + user prompt + assistant answer
}

type Settings struct {
	ModelId         string
	MaxInputChars   int
	MaxOutputTokens int
	Temperature     float32
}

func (s Settings) Rebind(modelId string) (Settings, error) {
	if strings.TrimSpace(modelId) == "" {
		return s, ragModel.NewError(ragModel.ErrGenerationUnavailable, "configure generation model", "model id is empty")
	}
	s.ModelId = modelId
	return s, nil
}

func (s Settings) TruncateInput(text string) string {
	return textnorm.TruncateInput(text, s.MaxInputChars)
}

// Call is a generate request with defaults resolved and the prompt normalised.
type Call struct {
	Prompt          string
	System          string
	Messages        []ragModel.ChatMessage //user and assistant turns, ending with the prompt
	History         []ragModel.ChatMessage //copy of the request history plus the prompt
	MaxOutputTokens int
	Temperature     float32
}

// Prepare validates the request, copies the history and appends the prompt as a user message.
// System messages are lifted out of the turn list because every vendor takes them separately.
func Prepare(name string, s Settings, bound bool, req GenerateRequest) (Call, error) {
	op := name + " generate"
	if !bound || s.ModelId == "" {
		return Call{}, ragModel.NewError(ragModel.ErrGenerationUnavailable, op, "no generation model configured")
	}
	prompt := s.TruncateInput(req.Prompt)
	if prompt == "" {
		return Call{}, ragModel.NewError(ragModel.ErrGenerationBackend, op, "prompt is empty after normalization")
	}

	history := ragModel.CopyHistory(req.History, 2)
	history = append(history, ragModel.ChatMessage{Role: ragModel.RoleUser, Text: prompt})

	call := Call{
		Prompt:          prompt,
		History:         history,
		MaxOutputTokens: s.MaxOutputTokens,
		Temperature:     s.Temperature,
	}
	if req.MaxOutputTokens != nil {
		call.MaxOutputTokens = *req.MaxOutputTokens
	}
	if req.Temperature != nil {
		call.Temperature = *req.Temperature
	}

	var system []string
	for _, m := range history {
		if m.Role == ragModel.RoleSystem {
			system = append(system, m.Text)
			continue
		}
		call.Messages = append(call.Messages, m)
	}
	call.System = strings.Join(system, "\n\n")
	return call, nil
}

// Complete appends the answer to the call history. Empty answers are backend errors.
func (c Call) Complete(name string, answer string) (GenerateResult, error) {
	if strings.TrimSpace(answer) == "" {
		return GenerateResult{}, EmptyAnswer(name)
	}
	history := ragModel.CopyHistory(c.History, 1)
	history = append(history, ragModel.ChatMessage{Role: ragModel.RoleAssistant, Text: answer})
	return GenerateResult{Text: answer, History: history}, nil
}

func EmptyAnswer(name string) error {
	return ragModel.NewError(ragModel.ErrGenerationBackend, name+" generate", "backend returned no usable content")
}

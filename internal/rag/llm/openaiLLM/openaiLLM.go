package openaiLLM

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const Name = "openai"

var logger = logger_i.NewLogger("llm_openai")

type Config struct {
	APIKey          string
	BaseURL         string
	ModelId         string
	MaxInputChars   int
	MaxOutputTokens int
	Temperature     float32
	MaxRetries      int
	HTTPClient      *http.Client
}

type llmClient struct {
	api      *openai.Client
	settings llm.Settings
}

var _ llm.Provider = (*llmClient)(nil)

func NewOpenAIClient(cfg Config) (llm.Provider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ragModel.NewError(ragModel.ErrGenerationUnavailable, "openai generator", "OPENAI_API_KEY is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	api := openai.NewClient(opts...)
	logger.Info("OpenAI client created", "model", cfg.ModelId)

	return &llmClient{
		api: &api,
		settings: llm.Settings{
			ModelId:         cfg.ModelId,
			MaxInputChars:   cfg.MaxInputChars,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Temperature:     cfg.Temperature,
		},
	}, nil
}

func (c *llmClient) Name() string { return Name }

func (c *llmClient) WithGenerationModel(modelId string) (llm.Provider, error) {
	settings, err := c.settings.Rebind(modelId)
	if err != nil {
		return nil, err
	}
	return &llmClient{api: c.api, settings: settings}, nil
}

func (c *llmClient) TruncateInput(text string) string {
	return c.settings.TruncateInput(text)
}

func (c *llmClient) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
	call, err := llm.Prepare(Name, c.settings, c.api != nil, req)
	if err != nil {
		return llm.GenerateResult{}, err
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_openai", time.Since(start)) }()

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.settings.ModelId),
		Messages:    toMessages(call),
		MaxTokens:   openai.Int(int64(call.MaxOutputTokens)),
		Temperature: openai.Float(float64(call.Temperature)),
	})
	if err != nil {
		logger.FromContext(ctx).Error("OpenAI chat completion failed", "error", err)
		return llm.GenerateResult{}, ragModel.Opaque(ragModel.ErrGenerationBackend, "openai generate", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.GenerateResult{}, llm.EmptyAnswer(Name)
	}
	return call.Complete(Name, resp.Choices[0].Message.Content)
}

func toMessages(call llm.Call) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(call.Messages)+1)
	if call.System != "" {
		messages = append(messages, openai.SystemMessage(call.System))
	}
	for _, m := range call.Messages {
		if m.Role == ragModel.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(m.Text))
	}
	return messages
}

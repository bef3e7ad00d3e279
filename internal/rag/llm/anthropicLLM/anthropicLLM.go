package anthropicLLM

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const Name = "anthropic"

var logger = logger_i.NewLogger("llm_anthropic")

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
	api      *anthropic.Client
	settings llm.Settings
}

var _ llm.Provider = (*llmClient)(nil)

func NewAnthropicClient(cfg Config) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, ragModel.NewError(ragModel.ErrGenerationUnavailable, "anthropic generator", "ANTHROPIC_API_KEY is not set")
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
	api := anthropic.NewClient(opts...)
	logger.Info("Anthropic client created", "model", cfg.ModelId)

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
	defer func() { metrics.CaptureExecutionMetrics("llm_anthropic", time.Since(start)) }()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.ModelId),
		MaxTokens:   int64(call.MaxOutputTokens),
		Messages:    toMessages(call.Messages),
		Temperature: anthropic.Float(float64(call.Temperature)),
	}
	if call.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: call.System}}
	}

	message, err := c.api.Messages.New(ctx, params)
	if err != nil {
		logger.FromContext(ctx).Error("Anthropic messages call failed", "error", err)
		return llm.GenerateResult{}, ragModel.Opaque(ragModel.ErrGenerationBackend, "anthropic generate", err)
	}
	if message == nil || len(message.Content) == 0 {
		return llm.GenerateResult{}, llm.EmptyAnswer(Name)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return call.Complete(Name, sb.String())
}

func toMessages(messages []ragModel.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == ragModel.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
	}
	return out
}

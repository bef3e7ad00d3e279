package gemini

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/internal/rag/llm"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const Name = "gemini"

const (
	roleUser  = "user"
	roleModel = "model"
)

var logger = logger_i.NewLogger("llm_gemini")

type Config struct {
	APIKey          string
	ModelId         string
	MaxInputChars   int
	MaxOutputTokens int
	Temperature     float32
	HTTPClient      *http.Client
}

type llmClient struct {
	client   *genai.Client
	settings llm.Settings
}

var _ llm.Provider = (*llmClient)(nil)

func NewGeminiClient(ctx context.Context, cfg Config) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, ragModel.NewError(ragModel.ErrGenerationUnavailable, "gemini generator", "GEMINI_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, ragModel.Opaque(ragModel.ErrGenerationUnavailable, "gemini generator", err)
	}
	logger.Info("Gemini client created", "model", cfg.ModelId)

	return &llmClient{
		client: c,
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
	return &llmClient{client: c.client, settings: settings}, nil
}

func (c *llmClient) TruncateInput(text string) string {
	return c.settings.TruncateInput(text)
}

func (c *llmClient) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResult, error) {
	call, err := llm.Prepare(Name, c.settings, c.client != nil, req)
	if err != nil {
		return llm.GenerateResult{}, err
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_gemini", time.Since(start)) }()

	temperature := call.Temperature
	contentConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(call.MaxOutputTokens),
	}
	if call.System != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: call.System}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.settings.ModelId, toContents(call.Messages), contentConfig)
	if err != nil {
		logger.FromContext(ctx).Error("Gemini generate failed", "error", err)
		return llm.GenerateResult{}, ragModel.Opaque(ragModel.ErrGenerationBackend, "gemini generate", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.GenerateResult{}, llm.EmptyAnswer(Name)
	}
	return call.Complete(Name, result.Text())
}

func toContents(messages []ragModel.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := roleUser
		if m.Role == ragModel.RoleAssistant {
			role = roleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return contents
}

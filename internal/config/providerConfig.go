package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderConfig selects the backends and model limits for the whole process.
// It is built once at startup and handed around by value; nothing mutates it afterwards.
type ProviderConfig struct {
	EmbeddingBackend  string `yaml:"embedding_backend"`
	GenerationBackend string `yaml:"generation_backend"`
	VectorBackend     string `yaml:"vector_backend"`
	RegistryBackend   string `yaml:"registry_backend"`

	EmbeddingModelId  string `yaml:"embedding_model_id"`
	EmbeddingSize     int    `yaml:"embedding_size"`
	GenerationModelId string `yaml:"generation_model_id"`

	InputMaxCharacters        int     `yaml:"input_max_characters"`
	GenerationMaxOutputTokens int     `yaml:"generation_max_output_tokens"`
	GenerationTemperature     float32 `yaml:"generation_temperature"`

	DistanceMetric string `yaml:"distance_metric"`
	TopK           int    `yaml:"top_k"`
	IndexOnIngest  bool   `yaml:"index_on_ingest"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	QdrantHost   string `yaml:"qdrant_host"`
	QdrantPort   int    `yaml:"qdrant_port"`
	QdrantAPIKey string `yaml:"qdrant_api_key"`

	SqlitePath string `yaml:"sqlite_path"`
}

var validEmbeddingBackends = []string{"gemini", "openai", "hashing"}
var validGenerationBackends = []string{"gemini", "openai", "anthropic"}
var validVectorBackends = []string{"qdrant", "memory"}
var validRegistryBackends = []string{"redis", "sqlite", "memory"}
var validDistanceMetrics = []string{"cosine", "dot", "euclid"}

func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		EmbeddingBackend:          "gemini",
		GenerationBackend:         "gemini",
		VectorBackend:             "qdrant",
		RegistryBackend:           "redis",
		EmbeddingModelId:          "gemini-embedding-001",
		EmbeddingSize:             1536,
		GenerationModelId:         "gemini-2.5-flash-lite",
		InputMaxCharacters:        8000,
		GenerationMaxOutputTokens: 1000,
		GenerationTemperature:     0.1,
		DistanceMetric:            "cosine",
		TopK:                      DefaultTopK,
		IndexOnIngest:             true,
		QdrantHost:                QdrantHost,
		QdrantPort:                QdrantGrpcPort,
		SqlitePath:                "gorag.db",
	}
}

// LoadProviderConfig reads the optional YAML file at path on top of the defaults and then
// applies environment overrides. A missing file is not an error.
func LoadProviderConfig(path string) (ProviderConfig, error) {
	cfg := DefaultProviderConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read provider config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse provider config %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnvOverrides(cfg *ProviderConfig) error {
	setString(&cfg.EmbeddingBackend, "EMBEDDING_BACKEND")
	setString(&cfg.GenerationBackend, "GENERATION_BACKEND")
	setString(&cfg.VectorBackend, "VECTOR_DB_BACKEND")
	setString(&cfg.RegistryBackend, "REGISTRY_BACKEND")
	setString(&cfg.EmbeddingModelId, "EMBEDDING_MODEL_ID")
	setString(&cfg.GenerationModelId, "GENERATION_MODEL_ID")
	setString(&cfg.DistanceMetric, "VECTOR_DB_DISTANCE_METHOD")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.QdrantHost, "QDRANT_HOST")
	setString(&cfg.QdrantAPIKey, "QDRANT_API_KEY")
	setString(&cfg.SqlitePath, "SQLITE_PATH")

	ints := map[string]*int{
		"EMBEDDING_MODEL_SIZE":         &cfg.EmbeddingSize,
		"INPUT_DEFAULT_MAX_CHARACTERS": &cfg.InputMaxCharacters,
		"GENERATION_MAX_OUTPUT_TOKENS": &cfg.GenerationMaxOutputTokens,
		"VECTOR_DB_TOP_K":              &cfg.TopK,
		"QDRANT_PORT":                  &cfg.QdrantPort,
	}
	for key, target := range ints {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*target = v
	}

	if raw := os.Getenv("GENERATION_DEFAULT_TEMPERATURE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return fmt.Errorf("env GENERATION_DEFAULT_TEMPERATURE: %w", err)
		}
		cfg.GenerationTemperature = float32(v)
	}
	if raw := os.Getenv("INDEX_ON_INGEST"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("env INDEX_ON_INGEST: %w", err)
		}
		cfg.IndexOnIngest = v
	}
	return nil
}

func setString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func (c ProviderConfig) Validate() error {
	var errs []error
	check := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s %q must be one of %v", field, value, allowed))
	}
	check("embedding_backend", c.EmbeddingBackend, validEmbeddingBackends)
	check("generation_backend", c.GenerationBackend, validGenerationBackends)
	check("vector_backend", c.VectorBackend, validVectorBackends)
	check("registry_backend", c.RegistryBackend, validRegistryBackends)
	check("distance_metric", c.DistanceMetric, validDistanceMetrics)

	if c.EmbeddingSize <= 0 {
		errs = append(errs, errors.New("embedding_size must be positive"))
	}
	if c.InputMaxCharacters <= 0 {
		errs = append(errs, errors.New("input_max_characters must be positive"))
	}
	if c.GenerationMaxOutputTokens <= 0 {
		errs = append(errs, errors.New("generation_max_output_tokens must be positive"))
	}
	if c.GenerationTemperature < 0 {
		errs = append(errs, errors.New("generation_temperature must not be negative"))
	}
	if c.TopK <= 0 {
		errs = append(errs, errors.New("top_k must be positive"))
	}
	return errors.Join(errs...)
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration. Zero values fall back to the package constants.
type Settings struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	Embedding  EmbeddingSettings  `yaml:"embedding"`
	Generation GenerationSettings `yaml:"generation"`
	VectorDB   VectorDBSettings   `yaml:"vector_db"`
	Ledger     LedgerSettings     `yaml:"ledger"`
	Redis      RedisSettings      `yaml:"redis"`
}

type EmbeddingSettings struct {
	Provider      string `yaml:"provider"` // gemini | openai
	Model         string `yaml:"model"`
	APIKey        string `yaml:"-"`
	BaseURL       string `yaml:"base_url"`
	Dimension     int    `yaml:"dimension"`
	BatchSize     int    `yaml:"batch_size"`
	MaxAttempts   int    `yaml:"max_attempts"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

type GenerationSettings struct {
	Provider string `yaml:"provider"` // gemini | openai | anthropic
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
	BaseURL  string `yaml:"base_url"`
}

type VectorDBSettings struct {
	Backend     string `yaml:"backend"` // qdrant | chromem
	Collection  string `yaml:"collection"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UseTLS      bool   `yaml:"use_tls"`
	Path        string `yaml:"path"`
	MirrorUsage bool   `yaml:"mirror_usage"`
}

type LedgerSettings struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
}

// Load reads an optional YAML file, then .env, then the process environment.
// A missing file is not an error.
func Load(path string) (*Settings, error) {
	s := defaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnv(s)
	applyDefaults(s)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", s.Embedding.Provider)
	}
	switch s.Generation.Provider {
	case "gemini", "openai", "anthropic", "none":
	default:
		return fmt.Errorf("unknown generation provider %q", s.Generation.Provider)
	}
	switch s.VectorDB.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("unknown vector backend %q", s.VectorDB.Backend)
	}
	switch s.Ledger.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown ledger driver %q", s.Ledger.Driver)
	}
	if s.Embedding.Dimension <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog; unknown values mean debug outside prod.
func (s *Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	}
	if IS_PROD {
		return LOG_LEVEL_PROD
	}
	return slog.LevelDebug
}

func defaultSettings() *Settings {
	return &Settings{
		ListenAddr: ServerListenAddr,
		Embedding: EmbeddingSettings{
			Provider:      "gemini",
			Dimension:     EmbeddingOutputDimensionality,
			BatchSize:     EmbeddingBatchSize,
			MaxAttempts:   EmbeddingMaxAttempts,
			MaxConcurrent: EmbeddingMaxConcurrentCalls,
		},
		Generation: GenerationSettings{Provider: "gemini"},
		VectorDB: VectorDBSettings{
			Backend:     "qdrant",
			Collection:  VectorCollectionName,
			Host:        QdrantHost,
			Port:        QdrantGrpcPort,
			UseTLS:      QdrantUseTLS,
			Path:        ChromemPath,
			MirrorUsage: true,
		},
		Ledger: LedgerSettings{Driver: LedgerDriver, DSN: LedgerDSN},
		Redis:  RedisSettings{Addr: RedisAddr},
	}
}

func applyEnv(s *Settings) {
	setString(&s.ListenAddr, "LISTEN_ADDR")
	setString(&s.LogLevel, "LOG_LEVEL")

	setString(&s.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&s.Embedding.Model, "EMBEDDING_MODEL")
	setString(&s.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setInt(&s.Embedding.Dimension, "EMBEDDING_DIMENSION")
	setInt(&s.Embedding.BatchSize, "EMBEDDING_BATCH_SIZE")
	setInt(&s.Embedding.MaxAttempts, "EMBEDDING_MAX_ATTEMPTS")
	setInt(&s.Embedding.MaxConcurrent, "EMBEDDING_MAX_CONCURRENT")

	setString(&s.Generation.Provider, "LLM_PROVIDER")
	setString(&s.Generation.Model, "LLM_MODEL")
	setString(&s.Generation.BaseURL, "LLM_BASE_URL")

	setString(&s.VectorDB.Backend, "VECTOR_BACKEND")
	setString(&s.VectorDB.Collection, "VECTOR_COLLECTION")
	setString(&s.VectorDB.Host, "QDRANT_HOST")
	setInt(&s.VectorDB.Port, "QDRANT_PORT")
	setString(&s.VectorDB.Path, "CHROMEM_PATH")

	setString(&s.Ledger.Driver, "LEDGER_DRIVER")
	setString(&s.Ledger.DSN, "LEDGER_DSN")

	setString(&s.Redis.Addr, "REDIS_ADDR")
	setString(&s.Redis.Password, "REDIS_PASSWORD")

	// keys never come from the yaml file
	s.Embedding.APIKey = apiKeyFor(s.Embedding.Provider, "EMBEDDING_API_KEY")
	s.Generation.APIKey = apiKeyFor(s.Generation.Provider, "LLM_API_KEY")
}

func applyDefaults(s *Settings) {
	if s.Embedding.Model == "" {
		s.Embedding.Model = GoogleEmbeddingModel
		if s.Embedding.Provider == "openai" {
			s.Embedding.Model = OpenAIEmbeddingModel
		}
	}
	if s.Embedding.BatchSize <= 0 {
		s.Embedding.BatchSize = EmbeddingBatchSize
	}
	if s.Embedding.MaxAttempts <= 0 {
		s.Embedding.MaxAttempts = EmbeddingMaxAttempts
	}
	if s.Generation.Model == "" {
		switch s.Generation.Provider {
		case "openai":
			s.Generation.Model = OpenAIChatModel
		case "anthropic":
			s.Generation.Model = AnthropicModelName
		default:
			s.Generation.Model = GeminiModelName
		}
	}
	if s.Generation.Provider == "openai" && s.Generation.BaseURL == "" {
		s.Generation.BaseURL = OpenAIBaseURL
	}
	if s.VectorDB.Collection == "" {
		s.VectorDB.Collection = VectorCollectionName
	}
}

func apiKeyFor(provider string, generic string) string {
	if v := os.Getenv(generic); v != "" {
		return v
	}
	switch provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		if v := os.Getenv("GROQ_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

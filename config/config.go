package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the provider credential is absent.
var ErrMissingAPIKey = errors.New("API_KEY not found in environment or .env file")

// ServerConfig configures the HTTP surface and upload handling.
type ServerConfig struct {
	Port           string `yaml:"port"`
	UploadDir      string `yaml:"upload_dir"`
	RetainUploads  bool   `yaml:"retain_uploads"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	WatchDir       string `yaml:"watch_dir"`
}

// ProviderConfig selects the LLM/embedding provider and its call policy.
type ProviderConfig struct {
	Name              string        `yaml:"name"`
	APIKey            string        `yaml:"-"`
	BaseURL           string        `yaml:"base_url"`
	GenerationModel   string        `yaml:"generation_model"`
	Embedding         string        `yaml:"embedding"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	EmbeddingBatch    int           `yaml:"embedding_batch"`
	OllamaURL         string        `yaml:"ollama_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Strategy string `yaml:"strategy"`
	Size     int    `yaml:"size"`
	// Overlap is a pointer so that an explicit 0 survives defaulting.
	Overlap *int `yaml:"overlap"`
}

// RetrievalConfig configures retrieval and the answer context budget.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// MaxContextChars bounds the context handed to the model; negative disables the bound.
	MaxContextChars int `yaml:"max_context_chars"`
}

// TranslationConfig selects the translation provider.
type TranslationConfig struct {
	Provider        string `yaml:"provider"`
	APIKey          string `yaml:"-"`
	DefaultLanguage string `yaml:"default_language"`
	IndexLanguage   string `yaml:"index_language"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type             string `yaml:"type"`
	ChromaURL        string `yaml:"chroma_url"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

type SessionConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type PDFConfig struct {
	LicenseKey string `yaml:"-"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Provider    ProviderConfig    `yaml:"provider"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Translation TranslationConfig `yaml:"translation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Session     SessionConfig     `yaml:"session"`
	PDF         PDFConfig         `yaml:"-"`
}

// Load reads .env, then the optional YAML file at path, then environment
// overrides, and finally fills defaults and validates the result.
// A missing YAML file is not an error.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("CONFIG: No .env file found, relying on environment variables.")
	}

	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("CONFIG: %s not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Provider.APIKey = os.Getenv("API_KEY")
	if v := os.Getenv("DOCQA_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	cfg.Translation.APIKey = os.Getenv("TRANSLATE_API_KEY")
	if v := os.Getenv("CHROMA_URL"); v != "" {
		cfg.VectorStore.ChromaURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DOCQA_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = k
		}
	}
	cfg.PDF.LicenseKey = os.Getenv("UNIDOC_LICENSE_KEY")
}

// ApplyDefaults fills every zero-valued setting with its documented default.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "openai"
	}
	if cfg.Provider.Embedding == "" {
		cfg.Provider.Embedding = cfg.Provider.Name
	}
	switch cfg.Provider.Name {
	case "openai":
		if cfg.Provider.GenerationModel == "" {
			cfg.Provider.GenerationModel = "gpt-3.5-turbo"
		}
	case "gemini":
		if cfg.Provider.GenerationModel == "" {
			cfg.Provider.GenerationModel = "gemini-2.5-flash"
		}
	}
	if cfg.Provider.EmbeddingModel == "" {
		switch cfg.Provider.Embedding {
		case "openai":
			cfg.Provider.EmbeddingModel = "text-embedding-ada-002"
		case "gemini":
			cfg.Provider.EmbeddingModel = "text-embedding-004"
		case "ollama":
			cfg.Provider.EmbeddingModel = "nomic-embed-text:v1.5"
		}
	}
	if cfg.Provider.EmbeddingBatch == 0 {
		cfg.Provider.EmbeddingBatch = 64
	}
	if cfg.Provider.OllamaURL == "" {
		cfg.Provider.OllamaURL = "http://localhost:11434"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 60 * time.Second
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 2
	}
	if cfg.Provider.RequestsPerSecond == 0 {
		cfg.Provider.RequestsPerSecond = 5
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 10
	}

	if cfg.Chunker.Strategy == "" {
		cfg.Chunker.Strategy = "window"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 200
		cfg.Chunker.Overlap = &overlap
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 12000
	}

	if cfg.Translation.Provider == "" {
		cfg.Translation.Provider = "llm"
	}
	if cfg.Translation.DefaultLanguage == "" {
		cfg.Translation.DefaultLanguage = "en"
	}
	if cfg.Translation.IndexLanguage == "" {
		cfg.Translation.IndexLanguage = "en"
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chroma"
	}
	if cfg.VectorStore.ChromaURL == "" {
		cfg.VectorStore.ChromaURL = "http://localhost:8000"
	}
	if cfg.VectorStore.CollectionPrefix == "" {
		cfg.VectorStore.CollectionPrefix = "docqa"
	}

	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 1
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	switch c.Provider.Name {
	case "openai", "gemini":
		if c.Provider.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("unknown provider %q (want openai or gemini)", c.Provider.Name)
	}
	switch c.Provider.Embedding {
	case "openai", "gemini", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Provider.Embedding)
	}
	if c.Provider.Embedding != "ollama" && c.Provider.Embedding != c.Provider.Name {
		return fmt.Errorf("embedding provider %q needs its own credential; use %q or ollama", c.Provider.Embedding, c.Provider.Name)
	}
	switch c.Translation.Provider {
	case "llm", "none":
	case "google":
		if c.Translation.APIKey == "" {
			return errors.New("translation provider google requires TRANSLATE_API_KEY")
		}
	default:
		return fmt.Errorf("unknown translation provider %q", c.Translation.Provider)
	}
	switch c.VectorStore.Type {
	case "chroma", "memory":
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore.Type)
	}
	switch c.Chunker.Strategy {
	case "window", "recursive":
	default:
		return fmt.Errorf("unknown chunker strategy %q", c.Chunker.Strategy)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	}
	return nil
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DataDirs are scanned for documents; the first one receives uploads.
	DataDirs     []string `envconfig:"DATA_DIRS" default:"data/course_notes,data/past_papers"`
	ArtifactPath string   `envconfig:"ARTIFACT_PATH" default:"embeddings/vector_index.gob"`

	ChunkWords   int `envconfig:"CHUNK_WORDS" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`
	TopK         int `envconfig:"TOP_K" default:"3"`

	EmbeddingBaseURL    string   `envconfig:"EMBEDDING_BASE_URL" default:"http://localhost:8081/v1"`
	EmbeddingAPIKey     string   `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingModels     []string `envconfig:"EMBEDDING_MODELS" default:"sentence-transformers/all-MiniLM-L6-v2,sentence-transformers/paraphrase-MiniLM-L3-v2"`
	EmbeddingDimensions int      `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbedBatchSize      int      `envconfig:"EMBED_BATCH_SIZE" default:"8"`
	EmbeddingRPS        float64  `envconfig:"EMBEDDING_RPS" default:"10"`
	// EmbeddingTimeout bounds each call to the embedding endpoint.
	EmbeddingTimeout time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	// RebuildTimeout bounds a whole rebuild, shared by every caller waiting on it.
	RebuildTimeout time.Duration `envconfig:"REBUILD_TIMEOUT" default:"10m"`

	GroqAPIKey string `envconfig:"GROQ_API_KEY"`
	GroqAPIURL string `envconfig:"GROQ_API_URL" default:"https://api.groq.com/openai/v1"`
	GroqModel  string `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`

	HFAPIToken string `envconfig:"HF_API_TOKEN"`
	HFAPIURL   string `envconfig:"HF_API_URL" default:"https://api-inference.huggingface.co/models/microsoft/DialoGPT-large"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	SynonymsFile    string        `envconfig:"SYNONYMS_FILE"`

	ReindexInterval time.Duration `envconfig:"REINDEX_INTERVAL" default:"30s"`
	WatchDocuments  bool          `envconfig:"WATCH_DOCUMENTS" default:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"AWS_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"AWS_S3_BUCKET_NAME" default:"edurag-chatbot-files"`
	S3Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX" default:"course_notes/"`

	UnidocLicenseKey string `envconfig:"UNIDOC_LICENSE_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.DataDirs) == 0 {
		return fmt.Errorf("DATA_DIRS must name at least one directory")
	}
	if c.ArtifactPath == "" {
		return fmt.Errorf("ARTIFACT_PATH cannot be empty")
	}
	if c.ChunkWords <= 0 {
		return fmt.Errorf("CHUNK_WORDS must be positive, got %d", c.ChunkWords)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWords {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_WORDS), got %d", c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be positive, got %s", c.EmbeddingTimeout)
	}
	if len(c.EmbeddingModels) == 0 {
		return fmt.Errorf("EMBEDDING_MODELS must name at least one model")
	}
	return nil
}

// UploadDir is the directory uploaded documents are written to.
func (c *Config) UploadDir() string {
	return c.DataDirs[0]
}

func (c *Config) HasS3() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasGroq() bool {
	return c.GroqAPIKey != ""
}

func (c *Config) HasHuggingFace() bool {
	return c.HFAPIToken != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

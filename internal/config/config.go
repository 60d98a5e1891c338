package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"folio"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"folio"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GenModel      string `envconfig:"GEN_MODEL" default:"gemini-2.0-flash"`
	FallbackModel string `envconfig:"FALLBACK_MODEL" default:"gemini-1.5-flash"`
	VisionModel   string `envconfig:"VISION_MODEL" default:"gemini-2.0-flash"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
	EmbedDim      int    `envconfig:"EMBED_DIM" default:"1536"`

	EnableAPI          bool `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool `envconfig:"ENABLE_INGEST_WORKER" default:"true"`

	// Ingestion tuning. Defaults match the documented pipeline contract;
	// they exist as env knobs for load testing, not per-request overrides.
	EmbedConcurrency    int `envconfig:"EMBED_CONCURRENCY" default:"5"`
	FigureConcurrency   int `envconfig:"FIGURE_CONCURRENCY" default:"10"`
	EmbedBatchBudget    int `envconfig:"EMBED_BATCH_BUDGET" default:"800000"`
	MaxChunkChars       int `envconfig:"MAX_CHUNK_CHARS" default:"12000"`
	MinFigureDimension  int `envconfig:"MIN_FIGURE_DIMENSION" default:"128"`
	GenerationLoopLimit int `envconfig:"GENERATION_LOOP_LIMIT" default:"32"`

	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"100"`
	UploadDir       string `envconfig:"FOLIO_UPLOAD_DIR" default:"./uploads"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbedConcurrency < 1 {
		return fmt.Errorf("%w: EMBED_CONCURRENCY must be >= 1", ErrMissingRequired)
	}
	if c.FigureConcurrency < 1 {
		return fmt.Errorf("%w: FIGURE_CONCURRENCY must be >= 1", ErrMissingRequired)
	}
	return nil
}

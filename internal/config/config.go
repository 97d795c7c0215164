package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"dochat/internal/vector"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// ChunkProfile names one chunking configuration. Two profiles exist:
// the per-user incremental path and the bulk rebuild path.
type ChunkProfile struct {
	ChunkSize int
	Overlap   int
	Rebuild   bool
	PerOwner  bool
}

func (p ChunkProfile) Scope() vector.Scope {
	if p.PerOwner {
		return vector.ScopePerOwner
	}
	return vector.ScopeShared
}

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"dochat"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"dochat"`

	// Vector store backend: "weaviate" (server) or "chromem" (embedded).
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	ChromemPath    string `envconfig:"CHROMEM_PATH" default:"data/chromem"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	GenerationModel   string `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	LLMTimeoutSeconds int    `envconfig:"LLM_TIMEOUT_SECONDS" default:"60"`

	// Per-user ingestion profile.
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"120"`
	// Bulk rebuild profile (shared collection, drop-and-recreate).
	BulkChunkSize    int `envconfig:"BULK_CHUNK_SIZE" default:"300"`
	BulkChunkOverlap int `envconfig:"BULK_CHUNK_OVERLAP" default:"180"`

	// Retrieval knobs.
	QueryVariants   int  `envconfig:"QUERY_VARIANTS" default:"5"`
	TopKPerVariant  int  `envconfig:"TOP_K_PER_VARIANT" default:"5"`
	IncludeOriginal bool `envconfig:"INCLUDE_ORIGINAL_QUERY" default:"true"`
	RouterBudget    int  `envconfig:"ROUTER_CONTEXT_BUDGET" default:"8000"`

	// Conversation memory window, in (question, answer) turns.
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"3"`

	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

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
	if c.VectorBackend != "weaviate" && c.VectorBackend != "chromem" {
		return fmt.Errorf("%w: VECTOR_BACKEND must be weaviate or chromem, got %q", ErrInvalidValue, c.VectorBackend)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", ErrInvalidValue, c.ChunkOverlap, c.ChunkSize)
	}
	if c.BulkChunkOverlap >= c.BulkChunkSize {
		return fmt.Errorf("%w: BULK_CHUNK_OVERLAP (%d) must be smaller than BULK_CHUNK_SIZE (%d)", ErrInvalidValue, c.BulkChunkOverlap, c.BulkChunkSize)
	}
	if c.QueryVariants < 1 {
		return fmt.Errorf("%w: QUERY_VARIANTS must be at least 1", ErrInvalidValue)
	}
	if c.TopKPerVariant < 1 {
		return fmt.Errorf("%w: TOP_K_PER_VARIANT must be at least 1", ErrInvalidValue)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("%w: HISTORY_WINDOW must not be negative", ErrInvalidValue)
	}
	return nil
}

// UserProfile is the incremental per-owner ingestion profile.
func (c *Config) UserProfile() ChunkProfile {
	return ChunkProfile{ChunkSize: c.ChunkSize, Overlap: c.ChunkOverlap, PerOwner: true}
}

// BulkProfile is the drop-and-rebuild shared-collection profile.
func (c *Config) BulkProfile() ChunkProfile {
	return ChunkProfile{ChunkSize: c.BulkChunkSize, Overlap: c.BulkChunkOverlap, Rebuild: true}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	MinTopK = 1
	MaxTopK = 20

	// MaxPGVectorDimension is the largest vector an hnsw index accepts.
	MaxPGVectorDimension = 2000
)

type Config struct {
	Port       int              `json:"port"`
	LogConfig  logger.LogConfig `json:"log_config"`
	Database   DatabaseConfig   `json:"database"`
	Index      IndexConfig      `json:"index"`
	FileStore  FileStoreConfig  `json:"file_store"`
	AI         AIConfig         `json:"ai"`
	RAG        RAGConfig        `json:"rag"`
	Chunk      ChunkConfig      `json:"chunk"`
	Ingest     IngestConfig     `json:"ingest"`
	EmbedCache EmbedCacheConfig `json:"embed_cache"`
	Server     ServerConfig     `json:"server"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (d DatabaseConfig) Configured() bool {
	return d.DSN != "" || d.Host != ""
}

type IndexConfig struct {
	// Type is "pgvector" or "memory".
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	Dimension    int     `json:"dimension"`
	Hybrid       *bool   `json:"hybrid"`
	VectorWeight float64 `json:"vector_weight"`
	TextWeight   float64 `json:"text_weight"`
}

func (c IndexConfig) HybridEnabled() bool {
	return c.Hybrid == nil || *c.Hybrid
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialIntervalMs int `json:"initial_interval_ms"`
	MaxIntervalMs     int `json:"max_interval_ms"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

type AIConfig struct {
	Embed     []ProviderConfig `json:"embed"`
	Generate  []ProviderConfig `json:"generate"`
	Timeout   int              `json:"timeout"`
	Retry     RetryConfig      `json:"retry"`
	RateLimit RateLimitConfig  `json:"rate_limit"`
}

type RAGConfig struct {
	TopK             int      `json:"top_k"`
	ScoreThreshold   *float64 `json:"score_threshold"`
	MaxQuestionChars int      `json:"max_question_chars"`
	URLTTLMinutes    int      `json:"url_ttl_minutes"`
	SnippetChars     int      `json:"snippet_chars"`
}

// Threshold returns the grounding gate threshold, 0.3 when unset.
func (c RAGConfig) Threshold() float64 {
	if c.ScoreThreshold == nil {
		return 0.3
	}
	return *c.ScoreThreshold
}

// ChunkConfig keeps Overlap and MinChunkSize as pointers, 0 is a valid
// value for both.
type ChunkConfig struct {
	Size         int  `json:"size"`
	Overlap      *int `json:"overlap"`
	MinChunkSize *int `json:"min_chunk_size"`
	MaxChunkSize int  `json:"max_chunk_size"`
	MinPageChars int  `json:"min_page_chars"`
}

func (c ChunkConfig) OverlapChars() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

func (c ChunkConfig) MinChunkChars() int {
	if c.MinChunkSize == nil {
		return 0
	}
	return *c.MinChunkSize
}

type IngestConfig struct {
	Suffix      string `json:"suffix"`
	Concurrency int    `json:"concurrency"`
	Schedule    string `json:"schedule"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type EmbedCacheConfig struct {
	LRUSize       int         `json:"lru_size"`
	LRUTTLSeconds int         `json:"lru_ttl_seconds"`
	DB            bool        `json:"db"`
	MaxAgeDays    int         `json:"max_age_days"`
	Redis         RedisConfig `json:"redis"`
	RedisTTLHours int         `json:"redis_ttl_hours"`
}

type ServerConfig struct {
	CORSAllowlist   []string `json:"cors_allowlist"`
	ChatRateLimitMs int      `json:"chat_rate_limit_ms"`
}

var indexNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,40}$`)

// Load reads a JSON config file. A .env file next to the config (or in the
// working directory) is loaded first and ${VAR} references in the file are
// expanded, so secrets can stay out of the config itself.
func Load(path string) (*Config, error) {
	loadDotEnv(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Index.Type == "" {
		c.Index.Type = "pgvector"
	}
	if c.Index.Name == "" {
		c.Index.Name = "pdfqa"
	}
	if c.Index.VectorWeight == 0 && c.Index.TextWeight == 0 {
		c.Index.VectorWeight = 0.7
		c.Index.TextWeight = 0.3
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60
	}
	if c.AI.Retry.MaxAttempts == 0 {
		c.AI.Retry.MaxAttempts = 3
	}
	if c.AI.Retry.InitialIntervalMs == 0 {
		c.AI.Retry.InitialIntervalMs = 2000
	}
	if c.AI.Retry.MaxIntervalMs == 0 {
		c.AI.Retry.MaxIntervalMs = 10000
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MaxQuestionChars == 0 {
		c.RAG.MaxQuestionChars = 2000
	}
	if c.RAG.URLTTLMinutes == 0 {
		c.RAG.URLTTLMinutes = 60
	}
	if c.RAG.SnippetChars == 0 {
		c.RAG.SnippetChars = 200
	}
	if c.Chunk.Size == 0 {
		c.Chunk.Size = 1000
	}
	if c.Chunk.Overlap == nil {
		v := 150
		c.Chunk.Overlap = &v
	}
	if c.Chunk.MinChunkSize == nil {
		v := 50
		c.Chunk.MinChunkSize = &v
	}
	if c.Chunk.MaxChunkSize == 0 {
		c.Chunk.MaxChunkSize = c.Chunk.Size + c.Chunk.OverlapChars()
	}
	if c.Chunk.MinPageChars == 0 {
		c.Chunk.MinPageChars = 10
	}
	if c.Ingest.Suffix == "" {
		c.Ingest.Suffix = ".pdf"
	}
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = 4
	}
	if c.EmbedCache.LRUTTLSeconds == 0 {
		c.EmbedCache.LRUTTLSeconds = 7200
	}
	if c.EmbedCache.MaxAgeDays == 0 {
		c.EmbedCache.MaxAgeDays = 30
	}
	if c.EmbedCache.RedisTTLHours == 0 {
		c.EmbedCache.RedisTTLHours = 24 * 7
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
}

// Validate reports configuration errors. They are fatal at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 {
		errs = append(errs, errors.New("port is required"))
	}
	switch c.Index.Type {
	case "pgvector":
		if !c.Database.Configured() {
			errs = append(errs, errors.New("database dsn or host is required for pgvector index"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("index.type must be pgvector or memory, got %q", c.Index.Type))
	}
	if !indexNameRegex.MatchString(c.Index.Name) {
		errs = append(errs, fmt.Errorf("index.name %q must match %s", c.Index.Name, indexNameRegex.String()))
	}
	if c.Index.Dimension <= 0 {
		errs = append(errs, errors.New("index.dimension is required"))
	}
	if c.Index.Type == "pgvector" && c.Index.Dimension > MaxPGVectorDimension {
		errs = append(errs, fmt.Errorf("index.dimension %d exceeds the pgvector hnsw limit of %d, lower the embedding output dimensionality", c.Index.Dimension, MaxPGVectorDimension))
	}
	if c.Index.VectorWeight < 0 || c.Index.TextWeight < 0 {
		errs = append(errs, errors.New("index weights must not be negative"))
	}
	if len(c.AI.Embed) == 0 {
		errs = append(errs, errors.New("ai.embed requires at least one provider"))
	}
	if len(c.AI.Generate) == 0 {
		errs = append(errs, errors.New("ai.generate requires at least one provider"))
	}
	for i, p := range append(append([]ProviderConfig{}, c.AI.Embed...), c.AI.Generate...) {
		if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Model) == "" {
			errs = append(errs, fmt.Errorf("ai provider #%d requires provider and model", i))
		}
	}
	if c.AI.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("ai.retry.max_attempts must be >= 1"))
	}
	if th := c.RAG.Threshold(); th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("rag.score_threshold must be within [0, 1], got %v", th))
	}
	if c.RAG.TopK < MinTopK || c.RAG.TopK > MaxTopK {
		errs = append(errs, fmt.Errorf("rag.top_k must be within [%d, %d]", MinTopK, MaxTopK))
	}
	overlap, minChunk := c.Chunk.OverlapChars(), c.Chunk.MinChunkChars()
	if overlap < 0 || overlap >= c.Chunk.Size {
		errs = append(errs, errors.New("chunk.overlap must be >= 0 and smaller than chunk.size"))
	}
	if minChunk < 0 || minChunk > c.Chunk.Size {
		errs = append(errs, errors.New("chunk.min_chunk_size must be within [0, chunk.size]"))
	}
	if c.Chunk.MaxChunkSize < c.Chunk.Size {
		errs = append(errs, errors.New("chunk.max_chunk_size must be >= chunk.size"))
	}
	if c.Chunk.MaxChunkSize-c.Chunk.Size+overlap < minChunk {
		errs = append(errs, errors.New("chunk.max_chunk_size - chunk.size + chunk.overlap must be >= chunk.min_chunk_size"))
	}
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, errors.New("ingest.concurrency must be >= 1"))
	}
	if c.EmbedCache.DB && c.Index.Type != "pgvector" {
		errs = append(errs, errors.New("embed_cache.db requires the pgvector index database"))
	}
	switch c.FileStore.Type {
	case "local", "s3":
	default:
		errs = append(errs, errors.New("file_store.type must be local or s3"))
	}
	return errors.Join(errs...)
}

// Summary returns a secret free view of the configuration.
func (c *Config) Summary() map[string]interface{} {
	embed := make([]string, 0, len(c.AI.Embed))
	for _, p := range c.AI.Embed {
		embed = append(embed, p.Provider+"/"+p.Model)
	}
	gen := make([]string, 0, len(c.AI.Generate))
	for _, p := range c.AI.Generate {
		gen = append(gen, p.Provider+"/"+p.Model)
	}
	return map[string]interface{}{
		"index_type":      c.Index.Type,
		"index_name":      c.Index.Name,
		"dimension":       c.Index.Dimension,
		"hybrid":          c.Index.HybridEnabled(),
		"file_store":      c.FileStore.Type,
		"embed":           embed,
		"generate":        gen,
		"top_k":           c.RAG.TopK,
		"score_threshold": c.RAG.Threshold(),
		"chunk_size":      c.Chunk.Size,
		"chunk_overlap":   c.Chunk.OverlapChars(),
	}
}

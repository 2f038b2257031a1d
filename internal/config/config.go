package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig         `toml:"app"`
	Auth        AuthConfig        `toml:"auth"`
	LLM         LLMConfig         `toml:"llm"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	MySQL       MySQLConfig       `toml:"mysql"`
	Redis       RedisConfig       `toml:"redis"`
	RabbitMQ    RabbitMQConfig    `toml:"rabbitmq"`
}

type AppConfig struct {
	Name     string `toml:"name"`
	Env      string `toml:"env"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	GinMode  string `toml:"gin_mode"`
	LogLevel string `toml:"log_level"`
}

// AuthConfig guards the batch endpoint. An empty APIToken and JWTSecret
// leave it open.
type AuthConfig struct {
	APIToken        string `toml:"api_token"`
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type LLMConfig struct {
	// Provider is "openai", "ollama" or empty for no generative backend.
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	// Provider is "openai", "ollama", "hash" or empty for zero vectors.
	Provider        string `toml:"provider"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	Dimension       int    `toml:"dimension"`
	BatchSize       int    `toml:"batch_size"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

type VectorStoreConfig struct {
	// Provider is "qdrant", "chromem" or empty for no index.
	Provider   string `toml:"provider"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	APIKey     string `toml:"api_key"`
	UseTLS     bool   `toml:"use_tls"`
	Collection string `toml:"collection"`
	Path       string `toml:"path"`
	Compress   bool   `toml:"compress"`
	// TimeoutSeconds bounds each call to a remote index.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type IngestConfig struct {
	ChunkSize      int    `toml:"chunk_size"`
	ChunkOverlap   int    `toml:"chunk_overlap"`
	MaxFileSize    int64  `toml:"max_file_size"`
	UploadDir      string `toml:"upload_dir"`
	AsyncEmbedding bool   `toml:"async_embedding"`
}

type RetrievalConfig struct {
	DefaultTopK               int    `toml:"default_top_k"`
	MaxContextChunks          int    `toml:"max_context_chunks"`
	PersistFallbackEmbeddings bool   `toml:"persist_fallback_embeddings"`
	EmptyState                string `toml:"empty_state"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

// RedisConfig with an empty Addr disables the embedding cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RabbitMQConfig with an empty URL runs every job inline.
type RabbitMQConfig struct {
	URL            string `toml:"url"`
	EmbeddingQueue string `toml:"embedding_queue"`
	QueryLogQueue  string `toml:"query_log_queue"`
}

func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize))
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap))
	}
	if c.Ingest.MaxFileSize <= 0 {
		errs = append(errs, errors.New("ingest.max_file_size must be positive"))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if !oneOf(c.LLM.Provider, "", "openai", "ollama") {
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if !oneOf(c.Embedding.Provider, "", "openai", "ollama", "hash") {
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if !oneOf(c.VectorStore.Provider, "", "qdrant", "chromem") {
		errs = append(errs, fmt.Errorf("unknown vector_store.provider %q", c.VectorStore.Provider))
	}
	if !oneOf(c.Retrieval.EmptyState, "placeholder", "none") {
		errs = append(errs, fmt.Errorf("unknown retrieval.empty_state %q", c.Retrieval.EmptyState))
	}
	if c.Retrieval.DefaultTopK <= 0 {
		errs = append(errs, errors.New("retrieval.default_top_k must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "docmind",
			Env:      "dev",
			Host:     "0.0.0.0",
			Port:     8000,
			GinMode:  "debug",
			LogLevel: "info",
		},
		Auth: AuthConfig{
			JWTExpireMinute: 120,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			MaxTokens:      1024,
			TimeoutSeconds: 90,
		},
		Embedding: EmbeddingConfig{
			Provider:        "hash",
			Model:           "all-minilm",
			Dimension:       384,
			BatchSize:       100,
			TimeoutSeconds:  60,
			CacheTTLSeconds: 86400,
		},
		VectorStore: VectorStoreConfig{
			Host:           "127.0.0.1",
			Port:           6334,
			Collection:     "document-chunks",
			TimeoutSeconds: 5,
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			MaxFileSize:  50 * 1024 * 1024,
			UploadDir:    "documents",
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:      10,
			MaxContextChunks: 5,
			EmptyState:       "placeholder",
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "docmind",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		RabbitMQ: RabbitMQConfig{
			EmbeddingQueue: "docmind.embedding.generate",
			QueryLogQueue:  "docmind.query.log",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Auth.APIToken = getEnv("API_TOKEN", cfg.Auth.APIToken)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getEnvAsInt("EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.TimeoutSeconds = getEnvAsInt("EMBEDDING_TIMEOUT_SECONDS", cfg.Embedding.TimeoutSeconds)
	cfg.Embedding.CacheTTLSeconds = getEnvAsInt("EMBEDDING_CACHE_TTL_SECONDS", cfg.Embedding.CacheTTLSeconds)

	cfg.VectorStore.Provider = getEnv("VECTOR_STORE_PROVIDER", cfg.VectorStore.Provider)
	cfg.VectorStore.Host = getEnv("VECTOR_STORE_HOST", cfg.VectorStore.Host)
	cfg.VectorStore.Port = getEnvAsInt("VECTOR_STORE_PORT", cfg.VectorStore.Port)
	cfg.VectorStore.APIKey = getEnv("VECTOR_STORE_API_KEY", cfg.VectorStore.APIKey)
	cfg.VectorStore.UseTLS = getEnvAsBool("VECTOR_STORE_USE_TLS", cfg.VectorStore.UseTLS)
	cfg.VectorStore.Collection = getEnv("VECTOR_STORE_COLLECTION", cfg.VectorStore.Collection)
	cfg.VectorStore.Path = getEnv("VECTOR_STORE_PATH", cfg.VectorStore.Path)
	cfg.VectorStore.Compress = getEnvAsBool("VECTOR_STORE_COMPRESS", cfg.VectorStore.Compress)
	cfg.VectorStore.TimeoutSeconds = getEnvAsInt("VECTOR_STORE_TIMEOUT_SECONDS", cfg.VectorStore.TimeoutSeconds)

	cfg.Ingest.ChunkSize = getEnvAsInt("INGEST_CHUNK_SIZE", cfg.Ingest.ChunkSize)
	cfg.Ingest.ChunkOverlap = getEnvAsInt("INGEST_CHUNK_OVERLAP", cfg.Ingest.ChunkOverlap)
	cfg.Ingest.MaxFileSize = getEnvAsInt64("INGEST_MAX_FILE_SIZE", cfg.Ingest.MaxFileSize)
	cfg.Ingest.UploadDir = getEnv("INGEST_UPLOAD_DIR", cfg.Ingest.UploadDir)
	cfg.Ingest.AsyncEmbedding = getEnvAsBool("INGEST_ASYNC_EMBEDDING", cfg.Ingest.AsyncEmbedding)

	cfg.Retrieval.DefaultTopK = getEnvAsInt("RETRIEVAL_DEFAULT_TOP_K", cfg.Retrieval.DefaultTopK)
	cfg.Retrieval.MaxContextChunks = getEnvAsInt("RETRIEVAL_MAX_CONTEXT_CHUNKS", cfg.Retrieval.MaxContextChunks)
	cfg.Retrieval.PersistFallbackEmbeddings = getEnvAsBool("RETRIEVAL_PERSIST_FALLBACK_EMBEDDINGS", cfg.Retrieval.PersistFallbackEmbeddings)
	cfg.Retrieval.EmptyState = getEnv("RETRIEVAL_EMPTY_STATE", cfg.Retrieval.EmptyState)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.EmbeddingQueue = getEnv("RABBITMQ_EMBEDDING_QUEUE", cfg.RabbitMQ.EmbeddingQueue)
	cfg.RabbitMQ.QueryLogQueue = getEnv("RABBITMQ_QUERY_LOG_QUEUE", cfg.RabbitMQ.QueryLogQueue)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

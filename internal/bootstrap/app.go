package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"docmind/internal/ai"
	"docmind/internal/answer"
	"docmind/internal/app"
	"docmind/internal/cache"
	"docmind/internal/chunker"
	"docmind/internal/config"
	"docmind/internal/embedder"
	"docmind/internal/pkg/logging"
	mysqlClient "docmind/internal/platform/mysql"
	rabbitmqClient "docmind/internal/platform/rabbitmq"
	redisClient "docmind/internal/platform/redis"
	"docmind/internal/repository"
	"docmind/internal/retrieval"
	"docmind/internal/vectorindex"
	"docmind/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Embedder    *embedder.Service
	VectorIndex *vectorindex.Client
	Generator   *answer.Generator

	Ingest    *app.IngestService
	Documents *app.DocumentService
	Queries   *app.QueryService

	workers []*worker.QueueWorker
	closers []func() error

	StartedAt time.Time
}

// New wires every component from configuration. Redis, RabbitMQ, the vector
// index and the language model are optional; without them the service runs
// in its degraded modes.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logging.Setup(cfg.App.Env, cfg.App.LogLevel)

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := repository.AutoMigrate(mysqlDB); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = redisCli
	}

	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
	}

	backend, err := newEmbeddingBackend(cfg.Embedding)
	if err != nil {
		return err
	}
	embedOpts := []embedder.Option{
		embedder.WithDimension(cfg.Embedding.Dimension),
		embedder.WithBatchSize(cfg.Embedding.BatchSize),
	}
	if a.Redis != nil {
		ttl := time.Duration(cfg.Embedding.CacheTTLSeconds) * time.Second
		embedOpts = append(embedOpts, embedder.WithCache(cache.NewEmbeddingCache(a.Redis, ttl, cfg.Embedding.Dimension)))
	}
	a.Embedder = embedder.New(backend, embedOpts...)

	index, err := a.newVectorIndex(ctx)
	if err != nil {
		return err
	}
	a.VectorIndex = vectorindex.NewClient(index)

	llm, err := newCompleter(cfg.LLM)
	if err != nil {
		return err
	}
	a.Generator = answer.NewGenerator(llm, cfg.Retrieval.MaxContextChunks)

	ch, err := chunker.New(
		chunker.WithChunkSize(cfg.Ingest.ChunkSize),
		chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("create chunker failed: %w", err)
	}

	docRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	embeddingRepo := repository.NewEmbeddingRepository(mysqlDB)
	queryRepo := repository.NewQueryRepository(mysqlDB)

	var publisher app.Publisher
	if a.MQConn != nil {
		publisher = rabbitmqClient.NewPublisher(a.MQConn)
	}

	a.Ingest = app.NewIngestService(docRepo, chunkRepo, embeddingRepo, a.VectorIndex, a.Embedder, ch, publisher, app.IngestConfig{
		UploadDir:      cfg.Ingest.UploadDir,
		MaxFileSize:    cfg.Ingest.MaxFileSize,
		BatchSize:      cfg.Embedding.BatchSize,
		AsyncEmbedding: cfg.Ingest.AsyncEmbedding,
		EmbeddingQueue: cfg.RabbitMQ.EmbeddingQueue,
	})
	a.Documents = app.NewDocumentService(docRepo, chunkRepo, embeddingRepo, a.VectorIndex, a.Ingest.Locks())

	orchestrator := retrieval.NewOrchestrator(a.Embedder, a.VectorIndex, chunkRepo, embeddingRepo, retrieval.Options{
		EmptyState:                cfg.Retrieval.EmptyState,
		PersistFallbackEmbeddings: cfg.Retrieval.PersistFallbackEmbeddings,
	})
	a.Queries = app.NewQueryService(orchestrator, a.Generator, queryRepo, publisher, app.QueryConfig{
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
		QueryLogQueue: cfg.RabbitMQ.QueryLogQueue,
	})

	if a.MQConn != nil {
		a.workers = []*worker.QueueWorker{
			worker.NewQueueWorker(a.MQConn, cfg.RabbitMQ.EmbeddingQueue, worker.EmbeddingJobHandler(a.Ingest)),
			worker.NewQueueWorker(a.MQConn, cfg.RabbitMQ.QueryLogQueue, worker.QueryLogHandler(queryRepo)),
		}
		for _, w := range a.workers {
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start queue worker failed: %w", err)
			}
		}
	}

	log.Info().
		Str("embedding_model", a.Embedder.Model()).
		Int("dimension", a.Embedder.Dimension()).
		Str("vector_index", a.VectorIndex.Name()).
		Str("llm_model", a.Generator.Model()).
		Bool("redis", a.Redis != nil).
		Bool("rabbitmq", a.MQConn != nil).
		Msg("components initialized")
	return nil
}

func newEmbeddingBackend(cfg config.EmbeddingConfig) (embedder.Backend, error) {
	switch cfg.Provider {
	case "openai":
		return ai.NewOpenAICompatibleClient(ai.ClientConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case "ollama":
		client, err := ai.NewOllamaClient(cfg.BaseURL, cfg.Model, 0, time.Duration(cfg.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "hash":
		return embedder.NewHashBackend(cfg.Dimension), nil
	default:
		log.Warn().Msg("no embedding provider configured, vectors will be zero")
		return nil, nil
	}
}

func newCompleter(cfg config.LLMConfig) (answer.Completer, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			log.Warn().Msg("llm.api_key is empty, answers will use the fallback message")
			return nil, nil
		}
		return ai.NewOpenAICompatibleClient(ai.ClientConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case "ollama":
		client, err := ai.NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.MaxTokens, time.Duration(cfg.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func (a *App) newVectorIndex(ctx context.Context) (vectorindex.Index, error) {
	vs := a.Config.VectorStore
	switch vs.Provider {
	case "qdrant":
		idx, err := vectorindex.NewQdrantIndex(ctx, vectorindex.QdrantConfig{
			Host:       vs.Host,
			Port:       vs.Port,
			APIKey:     vs.APIKey,
			UseTLS:     vs.UseTLS,
			Collection: vs.Collection,
			Dimension:  a.Embedder.Dimension(),
			Timeout:    time.Duration(vs.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			// An unreachable index is tolerated; retrieval falls back to local scoring.
			log.Error().Err(err).Msg("qdrant unavailable, running without vector index")
			return nil, nil
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	case "chromem":
		idx, err := vectorindex.NewChromemIndex(vs.Path, vs.Compress, vs.Collection)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, nil
	}
}

func (a *App) Close() error {
	var errs []error
	for _, w := range a.workers {
		w.Close()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

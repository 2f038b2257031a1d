package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docmind/internal/chunker"
	"docmind/internal/embedder"
	"docmind/internal/repository"
	"docmind/internal/vectorindex"
)

// switchBackend wraps the hash embedder and can be made to fail.
type switchBackend struct {
	mu     sync.Mutex
	inner  *embedder.HashBackend
	broken bool
}

func (b *switchBackend) Model() string { return b.inner.Model() }

func (b *switchBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()
	if broken {
		return nil, errors.New("backend offline")
	}
	return b.inner.EmbedBatch(ctx, texts)
}

func (b *switchBackend) setBroken(v bool) {
	b.mu.Lock()
	b.broken = v
	b.mu.Unlock()
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	messages map[string][]any
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.messages == nil {
		p.messages = make(map[string][]any)
	}
	p.messages[queue] = append(p.messages[queue], v)
	return nil
}

type testEnv struct {
	db         *gorm.DB
	docs       *repository.DocumentRepository
	chunks     *repository.ChunkRepository
	embeddings *repository.EmbeddingRepository
	queries    *repository.QueryRepository
	index      *vectorindex.Client
	backend    *switchBackend
	embedder   *embedder.Service
	uploadDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "docmind.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	idx, err := vectorindex.NewChromemIndex("", false, "test")
	require.NoError(t, err)

	backend := &switchBackend{inner: embedder.NewHashBackend(64)}
	return &testEnv{
		db:         db,
		docs:       repository.NewDocumentRepository(db),
		chunks:     repository.NewChunkRepository(db),
		embeddings: repository.NewEmbeddingRepository(db),
		queries:    repository.NewQueryRepository(db),
		index:      vectorindex.NewClient(idx),
		backend:    backend,
		embedder:   embedder.New(backend, embedder.WithDimension(64), embedder.WithBatchSize(3)),
		uploadDir:  filepath.Join(dir, "uploads"),
	}
}

func (e *testEnv) ingestService(t *testing.T, publisher Publisher, async bool) *IngestService {
	t.Helper()
	ch, err := chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(20))
	require.NoError(t, err)
	return NewIngestService(e.docs, e.chunks, e.embeddings, e.index, e.embedder, ch, publisher, IngestConfig{
		UploadDir:      e.uploadDir,
		MaxFileSize:    64 * 1024,
		BatchSize:      4,
		AsyncEmbedding: async,
		EmbeddingQueue: "embeddings",
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docmind/internal/chunker"
	"docmind/internal/embedder"
	"docmind/internal/model"
	"docmind/internal/pkg/textextract"
	"docmind/internal/vectorindex"
)

const (
	EmbeddingStatusCompleted = "completed"
	EmbeddingStatusPartial   = "partial"
	EmbeddingStatusFailed    = "failed"
	EmbeddingStatusQueued    = "queued"
)

type DocumentWriter interface {
	CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.Chunk) error
	GetByID(ctx context.Context, id uint) (*model.Document, error)
}

type ChunkReader interface {
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error)
}

type EmbeddingWriter interface {
	StatusByChunkIDs(ctx context.Context, chunkIDs []uint) (map[uint]string, error)
	UpsertBatch(ctx context.Context, rows []model.Embedding) error
}

type VectorWriter interface {
	Enabled() bool
	Upsert(ctx context.Context, records []vectorindex.Record) bool
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) embedder.Result
}

type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

type IngestConfig struct {
	UploadDir      string
	MaxFileSize    int64
	BatchSize      int
	AsyncEmbedding bool
	EmbeddingQueue string
}

type IngestService struct {
	docs       DocumentWriter
	chunks     ChunkReader
	embeddings EmbeddingWriter
	index      VectorWriter
	embedder   Embedder
	chunker    *chunker.Chunker
	publisher  Publisher
	cfg        IngestConfig
	locks      *DocumentLocks
}

type UploadResult struct {
	DocumentID      uint   `json:"document_id"`
	Filename        string `json:"filename"`
	FileType        string `json:"file_type"`
	ChunksCreated   int    `json:"chunks_created"`
	EmbeddingStatus string `json:"embedding_status"`
	VectorsStored   int    `json:"vectors_stored"`
}

// NewIngestService wires ingestion. publisher may be nil, in which case
// embeddings are always generated inline.
func NewIngestService(
	docs DocumentWriter,
	chunks ChunkReader,
	embeddings EmbeddingWriter,
	index VectorWriter,
	emb Embedder,
	ch *chunker.Chunker,
	publisher Publisher,
	cfg IngestConfig,
) *IngestService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embedder.DefaultBatchSize
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "documents"
	}
	return &IngestService{
		docs:       docs,
		chunks:     chunks,
		embeddings: embeddings,
		index:      index,
		embedder:   emb,
		chunker:    ch,
		publisher:  publisher,
		cfg:        cfg,
		locks:      NewDocumentLocks(),
	}
}

// Locks returns the per-document locks held while embeddings are generated.
func (s *IngestService) Locks() *DocumentLocks { return s.locks }

// Upload stores the file under the upload directory, ingests it and then
// generates or enqueues its embeddings. The stored file is removed when
// ingestion fails.
func (s *IngestService) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*UploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if !textextract.IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s", textextract.ErrUnsupportedType, filepath.Ext(filename))
	}
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	path, err := s.save(filename, r)
	if err != nil {
		return nil, err
	}

	doc, chunkCount, err := s.Ingest(ctx, filename, path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn().Err(rmErr).Str("path", path).Msg("remove failed upload")
		}
		return nil, err
	}

	result := &UploadResult{
		DocumentID:    doc.ID,
		Filename:      doc.Filename,
		FileType:      doc.FileType,
		ChunksCreated: chunkCount,
	}
	s.scheduleEmbeddings(ctx, result, chunkCount)
	return result, nil
}

// Ingest extracts, chunks and persists the file at path in one transaction.
func (s *IngestService) Ingest(ctx context.Context, filename, path string) (*model.Document, int, error) {
	fileType := textextract.FileType(filename)
	text, err := textextract.Extract(path, fileType)
	if err != nil {
		if errors.Is(err, textextract.ErrUnsupportedType) || errors.Is(err, textextract.ErrNoText) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: extract text from %s failed: %v", ErrInvalidInput, filename, err)
	}

	segments := s.chunker.Split(text)
	if len(segments) == 0 {
		return nil, 0, textextract.ErrNoText
	}

	doc := &model.Document{
		Filename:    filename,
		FileType:    fileType,
		Content:     truncateRunes(text, model.ContentPreviewLimit),
		StoragePath: path,
	}
	chunks := make([]model.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = model.Chunk{ChunkIndex: i, ChunkText: seg}
	}
	if err := s.docs.CreateWithChunks(ctx, doc, chunks); err != nil {
		return nil, 0, err
	}

	log.Info().Uint("document_id", doc.ID).Str("filename", filename).Int("chunks", len(chunks)).Msg("document ingested")
	return doc, len(chunks), nil
}

func (s *IngestService) scheduleEmbeddings(ctx context.Context, result *UploadResult, chunkCount int) {
	if s.cfg.AsyncEmbedding && s.publisher != nil {
		job := model.EmbeddingJob{DocumentID: result.DocumentID}
		err := s.publisher.Publish(ctx, s.cfg.EmbeddingQueue, job)
		if err == nil {
			result.EmbeddingStatus = EmbeddingStatusQueued
			return
		}
		log.Error().Err(err).Uint("document_id", result.DocumentID).Msg("enqueue embedding job failed, generating inline")
	}

	n, err := s.GenerateForDocument(ctx, result.DocumentID, false)
	result.VectorsStored = n
	switch {
	case err != nil:
		log.Error().Err(err).Uint("document_id", result.DocumentID).Msg("embedding generation failed")
		result.EmbeddingStatus = EmbeddingStatusFailed
	case n == chunkCount:
		result.EmbeddingStatus = EmbeddingStatusCompleted
	case n == 0:
		result.EmbeddingStatus = EmbeddingStatusFailed
	default:
		result.EmbeddingStatus = EmbeddingStatusPartial
	}
}

// GenerateForDocument embeds the chunks of a document whose embedding is
// missing or not completed, or every chunk when force is set. Work is done
// in batches; each batch is upserted to the index and recorded before the
// next starts, so a failure keeps earlier batches. It returns how many
// embeddings were completed by this call.
func (s *IngestService) GenerateForDocument(ctx context.Context, documentID uint, force bool) (int, error) {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, ErrDocumentNotFound
	}

	chunks, err := s.chunks.ListByDocumentID(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}

	if !force {
		chunks, err = s.pendingChunks(ctx, chunks)
		if err != nil {
			return 0, err
		}
	}

	completed := 0
	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(chunks))
		n, err := s.embedBatch(ctx, chunks[start:end])
		completed += n
		if err != nil {
			return completed, err
		}
	}

	log.Info().
		Uint("document_id", documentID).
		Int("processed", len(chunks)).
		Int("completed", completed).
		Bool("force", force).
		Msg("embedding generation finished")
	return completed, nil
}

func (s *IngestService) pendingChunks(ctx context.Context, chunks []model.Chunk) ([]model.Chunk, error) {
	ids := make([]uint, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	statuses, err := s.embeddings.StatusByChunkIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	pending := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if statuses[c.ID] != model.EmbeddingStatusCompleted {
			pending = append(pending, c)
		}
	}
	return pending, nil
}

func (s *IngestService) embedBatch(ctx context.Context, batch []model.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.ChunkText
	}
	res := s.embedder.Embed(ctx, texts)

	records := make([]vectorindex.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorindex.Record{
			Key:      vectorindex.ChunkKey(c.ID),
			Vector:   res.Vectors[i],
			Metadata: vectorindex.Metadata{DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex},
		}
	}

	// Without an index the stored vector is all local scoring needs.
	indexed := true
	if s.index.Enabled() {
		indexed = s.index.Upsert(ctx, records)
	}

	rows := make([]model.Embedding, len(batch))
	completed := 0
	for i, c := range batch {
		row := model.Embedding{
			ChunkID:   c.ID,
			VectorKey: records[i].Key,
			ModelName: res.Model,
			Status:    model.EmbeddingStatusFailed,
		}
		if !isZeroVector(res.Vectors[i]) {
			row.SetVector(res.Vectors[i])
			if indexed {
				row.Status = model.EmbeddingStatusCompleted
				completed++
			}
		}
		rows[i] = row
	}

	if err := s.embeddings.UpsertBatch(ctx, rows); err != nil {
		return 0, err
	}
	return completed, nil
}

func (s *IngestService) save(filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}

	src := r
	if s.cfg.MaxFileSize > 0 {
		src = io.LimitReader(r, s.cfg.MaxFileSize+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file failed: %w", err)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file failed: %w", closeErr)
	case s.cfg.MaxFileSize > 0 && written > s.cfg.MaxFileSize:
		_ = os.Remove(path)
		return "", ErrFileTooLarge
	}
	return path, nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

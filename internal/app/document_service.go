package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"docmind/internal/model"
	"docmind/internal/vectorindex"
)

const (
	contentPreviewChars = 500
	chunkPreviewChars   = 100
)

type DocumentStore interface {
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	ListSummaries(ctx context.Context) ([]model.DocumentSummary, error)
	Delete(ctx context.Context, id uint) error
}

type DocumentChunks interface {
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error)
}

type EmbeddingCounter interface {
	CountByStatus(ctx context.Context, documentID uint, status string) (int64, error)
}

type VectorDeleter interface {
	Delete(ctx context.Context, keys []string) bool
}

type DocumentService struct {
	docs       DocumentStore
	chunks     DocumentChunks
	embeddings EmbeddingCounter
	index      VectorDeleter
	locks      *DocumentLocks
}

type ChunkPreview struct {
	ID         uint   `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Preview    string `json:"preview"`
}

type DocumentDetail struct {
	ID                  uint           `json:"id"`
	Filename            string         `json:"filename"`
	FileType            string         `json:"file_type"`
	UploadDate          time.Time      `json:"upload_date"`
	ContentPreview      string         `json:"content_preview"`
	ChunksCount         int            `json:"chunks_count"`
	EmbeddingsCompleted int64          `json:"embeddings_completed"`
	Chunks              []ChunkPreview `json:"chunks"`
}

// NewDocumentService wires document management. locks should be the
// IngestService's so deletes wait for running embedding work; nil gets a
// private set.
func NewDocumentService(docs DocumentStore, chunks DocumentChunks, embeddings EmbeddingCounter, index VectorDeleter, locks *DocumentLocks) *DocumentService {
	if locks == nil {
		locks = NewDocumentLocks()
	}
	return &DocumentService{
		docs:       docs,
		chunks:     chunks,
		embeddings: embeddings,
		index:      index,
		locks:      locks,
	}
}

func (s *DocumentService) List(ctx context.Context) ([]model.DocumentSummary, error) {
	return s.docs.ListSummaries(ctx)
}

func (s *DocumentService) Get(ctx context.Context, id uint) (*DocumentDetail, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	chunks, err := s.chunks.ListByDocumentID(ctx, id)
	if err != nil {
		return nil, err
	}
	completed, err := s.embeddings.CountByStatus(ctx, id, model.EmbeddingStatusCompleted)
	if err != nil {
		return nil, err
	}

	previews := make([]ChunkPreview, len(chunks))
	for i, c := range chunks {
		text := c.ChunkText
		if len([]rune(text)) > chunkPreviewChars {
			text = truncateRunes(text, chunkPreviewChars) + "..."
		}
		previews[i] = ChunkPreview{ID: c.ID, ChunkIndex: c.ChunkIndex, Preview: text}
	}

	return &DocumentDetail{
		ID:                  doc.ID,
		Filename:            doc.Filename,
		FileType:            doc.FileType,
		UploadDate:          doc.UploadDate,
		ContentPreview:      truncateRunes(doc.Content, contentPreviewChars),
		ChunksCount:         len(chunks),
		EmbeddingsCompleted: completed,
		Chunks:              previews,
	}, nil
}

// Delete removes the document with its chunks and embeddings, then drops
// its vectors from the index and its stored file. The last two steps are
// best-effort.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	chunks, err := s.chunks.ListByDocumentID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}

	if len(chunks) > 0 {
		keys := make([]string, len(chunks))
		for i, c := range chunks {
			keys[i] = vectorindex.ChunkKey(c.ID)
		}
		s.index.Delete(ctx, keys)
	}

	if doc.StoragePath != "" {
		if err := os.Remove(doc.StoragePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Uint("document_id", id).Str("path", doc.StoragePath).Msg("remove stored file failed")
		}
	}

	log.Info().Uint("document_id", id).Int("chunks", len(chunks)).Msg("document deleted")
	return nil
}

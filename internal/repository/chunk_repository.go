package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ListByDocumentID returns the chunks of a document ordered by position.
func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) ListIDsByDocumentID(ctx context.Context, documentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list chunk ids by document failed: %w", err)
	}
	return ids, nil
}

func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}

// ViewsByIDs resolves chunk IDs to views. Unknown IDs are simply absent.
func (r *ChunkRepository) ViewsByIDs(ctx context.Context, ids []uint) ([]model.ChunkView, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var views []model.ChunkView
	if err := r.viewQuery(ctx).Where("chunks.id IN ?", ids).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("list chunk views by ids failed: %w", err)
	}
	return views, nil
}

// Candidates returns chunk views for local scoring, newest documents first
// and chunks in document order. An empty documentIDs means all documents.
func (r *ChunkRepository) Candidates(ctx context.Context, documentIDs []uint) ([]model.ChunkView, error) {
	q := r.viewQuery(ctx)
	if len(documentIDs) > 0 {
		q = q.Where("chunks.document_id IN ?", documentIDs)
	}
	var views []model.ChunkView
	err := q.Order("documents.upload_date DESC").
		Order("chunks.document_id DESC").
		Order("chunks.chunk_index ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("list candidate chunks failed: %w", err)
	}
	return views, nil
}

func (r *ChunkRepository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("chunks").
		Select("chunks.id AS chunk_id, chunks.document_id, chunks.chunk_index, chunks.chunk_text, documents.filename, embeddings.vector_data").
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Joins("LEFT JOIN embeddings ON embeddings.chunk_id = chunks.id AND embeddings.status = ?", model.EmbeddingStatusCompleted)
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docmind/internal/model"
)

type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// StatusByChunkIDs maps each chunk that has an embedding row to its status.
func (r *EmbeddingRepository) StatusByChunkIDs(ctx context.Context, chunkIDs []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	var rows []model.Embedding
	err := r.db.WithContext(ctx).
		Select("chunk_id", "status").
		Where("chunk_id IN ?", chunkIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list embedding status failed: %w", err)
	}
	for _, row := range rows {
		out[row.ChunkID] = row.Status
	}
	return out, nil
}

// UpsertBatch inserts or replaces the embedding rows of the given chunks in
// one transaction, so a batch is either fully recorded or not at all.
func (r *EmbeddingRepository) UpsertBatch(ctx context.Context, rows []model.Embedding) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"vector_key", "vector_data", "model_name", "status", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("upsert embeddings failed: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) CountByStatus(ctx context.Context, documentID uint, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Embedding{}).
		Joins("JOIN chunks ON chunks.id = embeddings.chunk_id").
		Where("chunks.document_id = ? AND embeddings.status = ?", documentID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return n, nil
}

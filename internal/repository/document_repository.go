package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithChunks persists a document and its chunks atomically. Chunk
// DocumentID fields are filled in from the new document.
func (r *DocumentRepository) CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Chunks").Create(doc).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].DocumentID = doc.ID
		}
		return tx.CreateInBatches(&chunks, 200).Error
	})
	if err != nil {
		return fmt.Errorf("create document with chunks failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// ListSummaries returns every document, newest first, with its chunk count.
func (r *DocumentRepository) ListSummaries(ctx context.Context) ([]model.DocumentSummary, error) {
	var list []model.DocumentSummary
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Select("documents.id, documents.filename, documents.file_type, documents.upload_date, COUNT(chunks.id) AS chunks_count").
		Joins("LEFT JOIN chunks ON chunks.document_id = documents.id").
		Group("documents.id, documents.filename, documents.file_type, documents.upload_date").
		Order("documents.upload_date DESC, documents.id DESC").
		Scan(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// Delete removes a document with its chunks and embeddings in one
// transaction, independent of whether the database enforces foreign keys.
func (r *DocumentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chunkIDs := tx.Model(&model.Chunk{}).Select("id").Where("document_id = ?", id)
		if err := tx.Where("chunk_id IN (?)", chunkIDs).Delete(&model.Embedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"docmind/internal/model"
)

type EmbeddingGenerator interface {
	GenerateForDocument(ctx context.Context, documentID uint, force bool) (int, error)
}

type QueryRecorder interface {
	Create(ctx context.Context, record *model.QueryRecord) error
}

func EmbeddingJobHandler(gen EmbeddingGenerator) Handler {
	return func(ctx context.Context, body []byte) error {
		var job model.EmbeddingJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode embedding job failed: %w", err)
		}
		if job.DocumentID == 0 {
			return fmt.Errorf("embedding job without document id")
		}
		n, err := gen.GenerateForDocument(ctx, job.DocumentID, job.Force)
		if err != nil {
			return fmt.Errorf("generate embeddings for document %d failed: %w", job.DocumentID, err)
		}
		log.Info().Uint("document_id", job.DocumentID).Int("vectors", n).Msg("embedding job done")
		return nil
	}
}

func QueryLogHandler(repo QueryRecorder) Handler {
	return func(ctx context.Context, body []byte) error {
		var record model.QueryRecord
		if err := json.Unmarshal(body, &record); err != nil {
			return fmt.Errorf("decode query record failed: %w", err)
		}
		record.ID = 0
		if err := repo.Create(ctx, &record); err != nil {
			return fmt.Errorf("persist query record failed: %w", err)
		}
		return nil
	}
}

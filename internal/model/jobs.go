package model

// EmbeddingJob asks a worker to generate embeddings for one document.
type EmbeddingJob struct {
	DocumentID uint `json:"document_id"`
	Force      bool `json:"force"`
}

package model

type Chunk struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	DocumentID uint   `gorm:"not null;uniqueIndex:idx_chunks_document_position" json:"document_id"`
	ChunkIndex int    `gorm:"not null;uniqueIndex:idx_chunks_document_position" json:"chunk_index"`
	ChunkText  string `gorm:"type:text;not null" json:"chunk_text"`

	Embedding *Embedding `gorm:"foreignKey:ChunkID;constraint:OnDelete:CASCADE" json:"-"`
}

// ChunkView is a chunk joined with its document filename and, when one is
// completed, its stored vector. It is what retrieval works on.
type ChunkView struct {
	ChunkID    uint   `json:"chunk_id"`
	DocumentID uint   `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
	Filename   string `json:"document_filename"`
	VectorData []byte `json:"-"`
}

// Vector decodes VectorData; nil when nothing is stored.
func (v ChunkView) Vector() []float32 {
	return DecodeVector(v.VectorData)
}

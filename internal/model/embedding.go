package model

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	EmbeddingStatusPending   = "pending"
	EmbeddingStatusCompleted = "completed"
	EmbeddingStatusFailed    = "failed"
)

// Embedding tracks the vector of one chunk. VectorData holds little-endian
// float32 values and may be empty when the vector only lives in the index.
type Embedding struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChunkID    uint      `gorm:"not null;uniqueIndex" json:"chunk_id"`
	VectorKey  string    `gorm:"size:64;not null;uniqueIndex" json:"vector_key"`
	VectorData []byte    `gorm:"type:blob" json:"-"`
	ModelName  string    `gorm:"size:100" json:"model_name"`
	Status     string    `gorm:"size:20;not null;default:pending" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (e *Embedding) Vector() []float32 {
	return DecodeVector(e.VectorData)
}

func (e *Embedding) SetVector(vec []float32) {
	e.VectorData = EncodeVector(vec)
}

func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector returns nil for empty or truncated input.
func DecodeVector(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec
}

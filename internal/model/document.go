package model

import "time"

// ContentPreviewLimit is how many characters of extracted text are kept on
// the document row. The full text only lives in its chunks.
const ContentPreviewLimit = 10000

type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	FileType    string    `gorm:"size:50;not null" json:"file_type"`
	Content     string    `gorm:"type:text" json:"-"`
	StoragePath string    `gorm:"size:512" json:"-"`
	UploadDate  time.Time `gorm:"autoCreateTime;index" json:"upload_date"`

	Chunks []Chunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// DocumentSummary is a document row with its chunk count.
type DocumentSummary struct {
	ID          uint      `json:"id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	UploadDate  time.Time `json:"upload_date"`
	ChunksCount int64     `json:"chunks_count"`
}

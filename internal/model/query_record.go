package model

import "time"

// QueryRecord is an audit entry of an answered question.
type QueryRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QueryText string    `gorm:"type:text;not null" json:"query_text"`
	Response  string    `gorm:"type:text" json:"response"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (QueryRecord) TableName() string {
	return "queries"
}

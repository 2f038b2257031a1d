package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoChunks         = errors.New("no chunks found")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNoRelevantChunks = errors.New("no relevant documents found for your question")
)

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"docmind/internal/app"
	"docmind/internal/model"
	"docmind/internal/pkg/textextract"
	"docmind/internal/transport/http/response"
)

type Uploader interface {
	Upload(ctx context.Context, filename string, size int64, r io.Reader) (*app.UploadResult, error)
	GenerateForDocument(ctx context.Context, documentID uint, force bool) (int, error)
}

type DocumentManager interface {
	List(ctx context.Context) ([]model.DocumentSummary, error)
	Get(ctx context.Context, id uint) (*app.DocumentDetail, error)
	Delete(ctx context.Context, id uint) error
}

type DocumentHandler struct {
	ingest Uploader
	docs   DocumentManager
}

func NewDocumentHandler(ingest Uploader, docs DocumentManager) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if !textextract.IsSupported(file.Filename) {
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile,
			"unsupported file type, allowed: "+strings.Join(textextract.SupportedExtensions(), ", "))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	result, err := h.ingest.Upload(c.Request.Context(), file.Filename, file.Size, f)
	if err != nil {
		writeServiceError(c, err, "upload failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs, "total": len(docs)})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := documentIDParam(c)
	if !ok {
		return
	}
	detail, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "get document failed")
		return
	}
	response.OK(c, detail)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := documentIDParam(c)
	if !ok {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

// GenerateEmbeddings embeds the chunks of a document; ?force=true redoes
// chunks that are already embedded.
func (h *DocumentHandler) GenerateEmbeddings(c *gin.Context) {
	id, ok := documentIDParam(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	n, err := h.ingest.GenerateForDocument(c.Request.Context(), id, force)
	if err != nil {
		writeServiceError(c, err, "generate embeddings failed")
		return
	}
	response.OK(c, gin.H{"message": "embeddings generated", "vectors": n})
}

func documentIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps service errors to status and envelope codes.
// Unknown errors are logged and reported with fallback as the message.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, textextract.ErrUnsupportedType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, textextract.ErrNoText):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoExtractedText, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrNoChunks):
		response.Error(c, http.StatusNotFound, response.CodeNoChunks, err.Error())
	case errors.Is(err, app.ErrNoRelevantChunks):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

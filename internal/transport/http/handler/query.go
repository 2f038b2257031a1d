package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docmind/internal/app"
	"docmind/internal/model"
	"docmind/internal/transport/http/response"
)

type QueryRunner interface {
	Search(ctx context.Context, in app.SearchInput) (*app.SearchResult, error)
	Ask(ctx context.Context, in app.SearchInput) (*app.AskResult, error)
	BatchRun(ctx context.Context, documentRefs, questions []string) ([]string, error)
	RecentQueries(ctx context.Context, limit int) ([]model.QueryRecord, error)
}

type QueryHandler struct {
	queries QueryRunner
}

type QueryRequest struct {
	Question    string `json:"question" binding:"required"`
	TopK        int    `json:"top_k" binding:"omitempty,min=1,max=100"`
	DocumentIDs []uint `json:"document_ids"`
}

type BatchRunRequest struct {
	Documents []string `json:"documents"`
	Questions []string `json:"questions" binding:"required,min=1"`
}

func NewQueryHandler(queries QueryRunner) *QueryHandler {
	return &QueryHandler{queries: queries}
}

func (h *QueryHandler) Search(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.queries.Search(c.Request.Context(), app.SearchInput(req))
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	response.OK(c, result)
}

func (h *QueryHandler) Ask(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.queries.Ask(c.Request.Context(), app.SearchInput(req))
	if err != nil {
		writeServiceError(c, err, "query processing failed")
		return
	}
	response.OK(c, result)
}

// BatchRun answers a list of questions. The body is the bare
// {"answers": [...]} object rather than the usual envelope.
func (h *QueryHandler) BatchRun(c *gin.Context) {
	var req BatchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	answers, err := h.queries.BatchRun(c.Request.Context(), req.Documents, req.Questions)
	if err != nil {
		writeServiceError(c, err, "error processing request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

func (h *QueryHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
		return
	}
	records, err := h.queries.RecentQueries(c.Request.Context(), min(limit, 500))
	if err != nil {
		writeServiceError(c, err, "list queries failed")
		return
	}
	response.OK(c, gin.H{"queries": records, "total": len(records)})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DependencyCheck pings one backing service. Optional dependencies report
// their state without failing the overall health.
type DependencyCheck struct {
	Name     string
	Optional bool
	Ping     func(ctx context.Context) error
}

type HealthInfo struct {
	App            string
	Env            string
	StartedAt      time.Time
	VectorIndex    string
	EmbeddingModel string
	LLMModel       string
}

type HealthHandler struct {
	info   HealthInfo
	checks []DependencyCheck
}

type dependencyStatus struct {
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewHealthHandler(info HealthInfo, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{info: info, checks: checks}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	deps := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		status := dependencyStatus{OK: true, Optional: check.Optional}
		if err := check.Ping(ctx); err != nil {
			status.OK = false
			status.Message = err.Error()
			if !check.Optional {
				allOK = false
			}
		}
		deps[check.Name] = status
	}

	statusCode := http.StatusOK
	status := "healthy"
	if !allOK {
		statusCode = http.StatusServiceUnavailable
		status = "unhealthy"
	}

	c.JSON(statusCode, gin.H{
		"status":       status,
		"app":          h.info.App,
		"env":          h.info.Env,
		"uptime_sec":   int(time.Since(h.info.StartedAt).Seconds()),
		"dependencies": deps,
		"components": gin.H{
			"vector_index":    h.info.VectorIndex,
			"embedding_model": h.info.EmbeddingModel,
			"llm_model":       h.info.LLMModel,
		},
	})
}

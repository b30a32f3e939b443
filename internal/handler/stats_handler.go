package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/diploma-checker-api/internal/models"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
)

type statsProvider interface {
	Summary(ctx context.Context) (*models.StatsSnapshot, error)
}

// StatsHandler serves dashboard counters.
type StatsHandler struct {
	stats statsProvider
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats statsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Summary godoc
// @Summary Verification statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *StatsHandler) Summary(c *gin.Context) {
	snapshot, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

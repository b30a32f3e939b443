package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
)

type referenceLookup interface {
	LookupReference(ctx context.Context, reference, actor string) (*dto.VerificationResult, error)
}

// DiplomaHandler verifies references typed in by the caller.
type DiplomaHandler struct {
	lookup referenceLookup
}

// NewDiplomaHandler constructs a DiplomaHandler.
func NewDiplomaHandler(lookup referenceLookup) *DiplomaHandler {
	return &DiplomaHandler{lookup: lookup}
}

// Get godoc
// @Summary Verify a diploma by reference
// @Tags Diplomas
// @Produce json
// @Param reference path string true "Diploma reference (5 to 20 alphanumeric characters)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /diplomes/{reference} [get]
func (h *DiplomaHandler) Get(c *gin.Context) {
	result, err := h.lookup.LookupReference(c.Request.Context(), c.Param("reference"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Found {
		response.ErrorWithData(c, appErrors.Clone(appErrors.ErrNotFound, "diploma not found"), result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	"github.com/noah-isme/diploma-checker-api/internal/service"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 * 1024

type uploadVerifier interface {
	VerifyUpload(ctx context.Context, upload service.VerificationUpload, actor string) (*dto.VerificationResult, error)
}

// OCRHandler accepts diploma scans for recognition.
type OCRHandler struct {
	verifier uploadVerifier
	maxBytes int64
}

// NewOCRHandler constructs an OCRHandler. maxBytes bounds the uploaded file.
func NewOCRHandler(verifier uploadVerifier, maxBytes int64) *OCRHandler {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &OCRHandler{verifier: verifier, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Verify a diploma from a scan
// @Description Reads the reference printed on an uploaded PNG, JPEG or PDF and verifies it against the registry.
// @Tags OCR
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Diploma scan (PNG, JPEG or PDF, page 2 is read)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /ocr/upload [post]
func (h *OCRHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", h.maxBytes)))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.verifier.VerifyUpload(c.Request.Context(), service.VerificationUpload{
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Size:         header.Size,
		Content:      file,
	}, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Ping godoc
// @Summary OCR liveness probe
// @Tags OCR
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ocr/ping [get]
func (h *OCRHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OCR OK"})
}

package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	"github.com/noah-isme/diploma-checker-api/internal/models"
	"github.com/noah-isme/diploma-checker-api/internal/service"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
)

type studentLister interface {
	List(ctx context.Context, query dto.StudentListQuery) ([]models.StudentRecord, *models.Pagination, error)
	Export(ctx context.Context, query dto.StudentExportQuery) (*service.StudentExport, error)
}

// StudentHandler exposes the students derived from verified diplomas.
type StudentHandler struct {
	students studentLister
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentLister) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List verified students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or student id"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "full_name, student_id or created_at"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var query dto.StudentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}

	students, pagination, err := h.students.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Export godoc
// @Summary Export the student roster
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	var query dto.StudentExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}

	out, err := h.students.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, out.ContentType, out.Content)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	"github.com/noah-isme/diploma-checker-api/internal/models"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentRecord, int, error)
	All(ctx context.Context) ([]models.StudentRecord, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// StudentExport is a rendered roster ready to be served.
type StudentExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

var rosterHeaders = []string{"student_id", "full_name", "date_of_birth", "field_of_study", "email", "phone", "address", "created_at"}

// StudentService lists students derived from verified diplomas.
type StudentService struct {
	repo      studentRepository
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &StudentService{repo: repo, csv: csv, pdf: pdf, validator: validate, logger: logger, now: time.Now}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, query dto.StudentListQuery) ([]models.StudentRecord, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student query")
	}
	filter := models.StudentFilter{
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if students == nil {
		students = []models.StudentRecord{}
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Export renders every student as CSV or PDF.
func (s *StudentService) Export(ctx context.Context, query dto.StudentExportQuery) (*StudentExport, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	format := export.Format(query.Format)
	if format == "" {
		format = export.FormatCSV
	}

	students, err := s.repo.All(ctx)
	if err != nil {
		return nil, storeError(err, "failed to load students")
	}
	dataset := buildRosterDataset(students)

	var content []byte
	switch format {
	case export.FormatPDF:
		content, err = s.pdf.Render(dataset, "Étudiants vérifiés")
	default:
		content, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("student roster exported", zap.String("format", string(format)), zap.Int("rows", len(students)))

	return &StudentExport{
		Filename:    fmt.Sprintf("students_%s.%s", s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func buildRosterDataset(students []models.StudentRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		row := map[string]string{
			"student_id":     st.StudentID,
			"full_name":      deref(st.FullName),
			"field_of_study": deref(st.FieldOfStudy),
			"email":          deref(st.Email),
			"phone":          deref(st.Phone),
			"address":        deref(st.Address),
			"created_at":     st.CreatedAt.UTC().Format(time.RFC3339),
		}
		if st.DateOfBirth != nil {
			row["date_of_birth"] = st.DateOfBirth.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package dto

import "github.com/noah-isme/diploma-checker-api/internal/models"

// VerificationOutcome classifies how a verification request terminated.
type VerificationOutcome string

const (
	OutcomeMatched      VerificationOutcome = "matched"
	OutcomeRecordMissed VerificationOutcome = "record_missed"
	OutcomeUnresolved   VerificationOutcome = "unresolved"
)

// NoReferenceMessage is returned when no reference could be read from the document.
const NoReferenceMessage = "no reference found"

// VerificationResult is the response body of both the OCR upload and the direct lookup.
type VerificationResult struct {
	Reference string                `json:"reference,omitempty"`
	Found     bool                  `json:"found"`
	Data      *models.DiplomaRecord `json:"data,omitempty"`
	PDFURL    string                `json:"pdfUrl,omitempty"`
	QRCode    string                `json:"qrCode,omitempty"`
	Text      *string               `json:"text,omitempty"`
	Error     string                `json:"error,omitempty"`

	Outcome        VerificationOutcome `json:"-"`
	StudentCreated bool                `json:"-"`
}

// StudentListQuery binds the student listing query string.
type StudentListQuery struct {
	Search    string `form:"search" validate:"omitempty,max=100"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy    string `form:"sort_by" validate:"omitempty,oneof=full_name student_id created_at"`
	SortOrder string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// StudentExportQuery selects the roster export format.
type StudentExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

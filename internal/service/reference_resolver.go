package service

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
)

var (
	referencePattern = regexp.MustCompile(`\b\d{5}\b`)
	// plausibleShape is the looser test deciding whether a rotated retry is worth it.
	// Only digits and capitals count; lowercase prose alone still triggers a retry.
	plausibleShape = regexp.MustCompile(`[0-9A-Z]{5,}`)
)

type referenceInput struct {
	Reference string `validate:"required,alphanum,min=5,max=20"`
}

// ReferenceResolver finds diploma references in OCR text and validates typed-in references.
type ReferenceResolver struct {
	validator *validator.Validate
}

// NewReferenceResolver constructs a resolver.
func NewReferenceResolver(validate *validator.Validate) *ReferenceResolver {
	if validate == nil {
		validate = validator.New()
	}
	return &ReferenceResolver{validator: validate}
}

// Resolve returns the leftmost standalone run of five digits.
func (r *ReferenceResolver) Resolve(text string) (string, bool) {
	match := referencePattern.FindString(text)
	return match, match != ""
}

// NeedsRotation reports whether text carries nothing resembling a reference,
// which usually means the page was recognised sideways.
func (r *ReferenceResolver) NeedsRotation(text string) bool {
	return !plausibleShape.MatchString(text)
}

// Validate checks a reference supplied directly by a caller.
func (r *ReferenceResolver) Validate(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if err := r.validator.Struct(referenceInput{Reference: reference}); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reference must be 5 to 20 alphanumeric characters")
	}
	return reference, nil
}

package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/ocr"
)

// ExtractionResult is the raw text of one recognition pass.
type ExtractionResult struct {
	Text        string
	Orientation *int
	Angle       int
}

// TextExtractor runs the high-accuracy OCR profile and serves orientation probes.
type TextExtractor struct {
	engine   ocr.Engine
	language string
	logger   *zap.Logger
}

// NewTextExtractor constructs a TextExtractor for the given language.
func NewTextExtractor(engine ocr.Engine, language string, logger *zap.Logger) *TextExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "fra"
	}
	return &TextExtractor{engine: engine, language: language, logger: logger}
}

// Extract recognises the page text. Empty text is a valid result.
func (e *TextExtractor) Extract(ctx context.Context, page *NormalizedPage) (*ExtractionResult, error) {
	res, err := e.engine.Recognize(ctx, page.Data, e.language, ocr.ProfileAccurate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRecognition.Code, appErrors.ErrRecognition.Status, appErrors.ErrRecognition.Message)
	}
	return &ExtractionResult{Text: res.Text, Orientation: res.Orientation, Angle: page.Angle}, nil
}

// DetectOrientation runs the orientation-only profile and returns the hint, 0 when absent.
func (e *TextExtractor) DetectOrientation(ctx context.Context, image []byte) (int, error) {
	res, err := e.engine.Recognize(ctx, image, e.language, ocr.ProfileOrientation)
	if err != nil {
		return 0, err
	}
	return res.Angle(), nil
}

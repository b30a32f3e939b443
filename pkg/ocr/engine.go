// Package ocr wraps Tesseract for text recognition and orientation detection.
package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Profile fixes the segmentation and engine modes of one recognition pass.
type Profile struct {
	Name        string
	PageSegMode int
	// EngineMode is Tesseract's oem; negative keeps the library default.
	EngineMode int
	// OrientationOnly skips text recognition and reports the rotation hint.
	OrientationOnly bool
}

var (
	// ProfileAccurate treats the page as one uniform block with the LSTM engine.
	ProfileAccurate = Profile{Name: "accurate", PageSegMode: 6, EngineMode: 1}
	// ProfileOrientation is the fast osd-only pass.
	ProfileOrientation = Profile{Name: "orientation", PageSegMode: 0, EngineMode: -1, OrientationOnly: true}
)

// Result is the output of one pass. Orientation is nil when the engine gave no hint.
type Result struct {
	Text        string
	Orientation *int
}

// Angle returns the orientation hint, defaulting to 0 when absent.
func (r Result) Angle() int {
	if r.Orientation == nil {
		return 0
	}
	return *r.Orientation
}

// Engine turns an image into text or an orientation hint.
type Engine interface {
	Recognize(ctx context.Context, image []byte, language string, profile Profile) (Result, error)
}

type tessClient interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetVariable(key gosseract.SettableVariable, value string) error
	Text() (string, error)
	Close() error
}

// TesseractEngine recognises text through gosseract and delegates orientation passes to the tesseract CLI.
type TesseractEngine struct {
	clientFactory func() tessClient
	osd           *OSDProbe
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine. bin locates the CLI used for osd.
func NewTesseractEngine(bin string) *TesseractEngine {
	return &TesseractEngine{
		clientFactory: func() tessClient { return gosseract.NewClient() },
		osd:           NewOSDProbe(bin),
	}
}

// Recognize runs one pass with the given profile.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, language string, profile Profile) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if profile.OrientationOnly {
		deg, err := e.osd.DetectOrientation(ctx, image)
		if err != nil {
			return Result{}, err
		}
		return Result{Orientation: &deg}, nil
	}

	c := e.clientFactory()
	defer c.Close() //nolint:errcheck

	if err := c.SetImageFromBytes(image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			return Result{}, fmt.Errorf("set language: %w", err)
		}
	}
	if profile.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(profile.PageSegMode)); err != nil {
			return Result{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if profile.EngineMode >= 0 {
		if err := c.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(profile.EngineMode)); err != nil {
			return Result{}, fmt.Errorf("set oem: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Text: strings.TrimSpace(text)}, nil
}

// Package raster renders a single PDF page to a PNG image.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrPageOutOfRange reports a document with fewer pages than requested.
var ErrPageOutOfRange = errors.New("page out of range")

// Options selects the page and resolution to render.
type Options struct {
	Page int
	DPI  int
}

// Rasterizer shells out to poppler's pdftocairo after validating the document with pdfcpu.
type Rasterizer struct {
	bin       string
	pageCount func(path string) (int, error)
	command   func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRasterizer builds a rasterizer around the given pdftocairo binary.
func NewRasterizer(bin string) *Rasterizer {
	if bin == "" {
		bin = "pdftocairo"
	}
	return &Rasterizer{
		bin:       bin,
		pageCount: api.PageCountFile,
		command:   exec.CommandContext,
	}
}

// RenderPage writes page opts.Page of the PDF at pdfPath to outPrefix+".png" and returns that path.
func (r *Rasterizer) RenderPage(ctx context.Context, pdfPath, outPrefix string, opts Options) (string, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}

	pages, err := r.pageCount(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if pages < opts.Page {
		return "", fmt.Errorf("%w: document has %d page(s), need page %d", ErrPageOutOfRange, pages, opts.Page)
	}

	page := strconv.Itoa(opts.Page)
	args := []string{
		"-png",
		"-r", strconv.Itoa(opts.DPI),
		"-f", page,
		"-l", page,
		"-singlefile",
		pdfPath,
		outPrefix,
	}
	cmd := r.command(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("pdftocairo: %w", ctxErr)
		}
		return "", fmt.Errorf("pdftocairo: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := outPrefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftocairo produced no image: %w", err)
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/imaging"
	"github.com/noah-isme/diploma-checker-api/pkg/raster"
	"github.com/noah-isme/diploma-checker-api/pkg/storage"
)

const mimePDF = "application/pdf"

type pageRasterizer interface {
	RenderPage(ctx context.Context, pdfPath, outPrefix string, opts raster.Options) (string, error)
}

type orientationProber interface {
	DetectOrientation(ctx context.Context, image []byte) (int, error)
}

// UploadedDocument is a validated upload already persisted in the request workspace.
type UploadedDocument struct {
	Filename     string
	DeclaredType string
	MediaType    string
	Path         string
	Data         []byte
}

// Paged reports whether the document must be rasterized before recognition.
func (d *UploadedDocument) Paged() bool {
	return d.MediaType == mimePDF
}

// NormalizedPage is the single image handed to the text extractor.
type NormalizedPage struct {
	Data  []byte
	Path  string
	Angle int
	Paged bool

	// upright is the resized page before any rotation, kept for the rotated retry.
	upright image.Image
}

// NormalizerConfig fixes rasterization and resize parameters.
type NormalizerConfig struct {
	Page     int
	DPI      int
	MaxWidth int
}

// ImageNormalizer turns an upload into one OCR-ready page.
type ImageNormalizer struct {
	rasterizer pageRasterizer
	prober     orientationProber
	logger     *zap.Logger
	cfg        NormalizerConfig
}

// NewImageNormalizer constructs the normalizer with defaults for unset parameters.
func NewImageNormalizer(rasterizer pageRasterizer, prober orientationProber, logger *zap.Logger, cfg NormalizerConfig) *ImageNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Page <= 0 {
		cfg.Page = 2
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1300
	}
	return &ImageNormalizer{rasterizer: rasterizer, prober: prober, logger: logger, cfg: cfg}
}

// Normalize produces the page to recognise. Plain images pass through untouched;
// PDFs are rasterized at the configured page, narrowed to the max width and uprighted.
func (n *ImageNormalizer) Normalize(ctx context.Context, ws *storage.Workspace, doc *UploadedDocument) (*NormalizedPage, error) {
	if !doc.Paged() {
		return &NormalizedPage{Data: doc.Data, Path: doc.Path}, nil
	}

	rendered, err := n.rasterizer.RenderPage(ctx, doc.Path, ws.Path("page"), raster.Options{Page: n.cfg.Page, DPI: n.cfg.DPI})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		message := "failed to rasterize document"
		if errors.Is(err, raster.ErrPageOutOfRange) {
			message = fmt.Sprintf("document has no page %d", n.cfg.Page)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, message)
	}
	ws.Track(rendered)

	raw, err := os.ReadFile(rendered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "rasterized page unreadable")
	}
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "rasterized page undecodable")
	}

	small := imaging.FitWidth(img, n.cfg.MaxWidth)
	resized, err := n.persist(ws, "page_small.png", small)
	if err != nil {
		return nil, err
	}

	angle := n.probeAngle(ctx, resized.Data)
	if angle == 0 {
		resized.upright = small
		resized.Paged = true
		return resized, nil
	}

	rotated, err := n.rotate(ws, small, angle)
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

// Rotate returns a copy of page turned a further delta degrees clockwise.
func (n *ImageNormalizer) Rotate(ws *storage.Workspace, page *NormalizedPage, delta int) (*NormalizedPage, error) {
	base := page.upright
	if base == nil {
		img, _, err := imaging.Decode(page.Data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "page undecodable")
		}
		base = img
	}
	return n.rotate(ws, base, page.Angle+delta)
}

func (n *ImageNormalizer) rotate(ws *storage.Workspace, upright image.Image, angle int) (*NormalizedPage, error) {
	normalized, err := imaging.NormalizeAngle(angle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "invalid rotation")
	}
	img, err := imaging.Rotate(upright, normalized)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "rotation failed")
	}
	page, err := n.persist(ws, fmt.Sprintf("page_rot%d.png", normalized), img)
	if err != nil {
		return nil, err
	}
	page.Angle = normalized
	page.Paged = true
	page.upright = upright
	return page, nil
}

func (n *ImageNormalizer) persist(ws *storage.Workspace, name string, img image.Image) (*NormalizedPage, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConversion.Code, appErrors.ErrConversion.Status, "page encoding failed")
	}
	path, err := ws.Save(name, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store intermediate page")
	}
	return &NormalizedPage{Data: data, Path: path}, nil
}

// probeAngle asks for an orientation hint. Any failure means no rotation.
func (n *ImageNormalizer) probeAngle(ctx context.Context, data []byte) int {
	if n.prober == nil {
		return 0
	}
	angle, err := n.prober.DetectOrientation(ctx, data)
	if err != nil {
		n.logger.Debug("orientation probe failed, keeping page as is", zap.Error(err))
		return 0
	}
	normalized, err := imaging.NormalizeAngle(angle)
	if err != nil {
		n.logger.Debug("ignoring non right-angle orientation hint", zap.Int("angle", angle))
		return 0
	}
	return normalized
}

// Package imaging decodes, resizes and rotates raster images before OCR.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Decode reads a PNG or JPEG image.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FitWidth scales img down so its width is at most maxWidth, keeping the aspect ratio.
// Images already within the bound are returned untouched.
func FitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := int(math.Round(float64(b.Dy()) * float64(maxWidth) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// NormalizeAngle maps any multiple of 90 into [0, 360).
func NormalizeAngle(deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("unsupported rotation %d: only right angles are allowed", deg)
	}
	return ((deg % 360) + 360) % 360, nil
}

// Rotate turns img clockwise by deg degrees. deg must be a multiple of 90.
func Rotate(img image.Image, deg int) (image.Image, error) {
	angle, err := NormalizeAngle(deg)
	if err != nil {
		return nil, err
	}
	if angle == 0 {
		return img, nil
	}

	src := toOrigin(img)
	w, h := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())

	var (
		dst *image.RGBA
		s2d f64.Aff3
	)
	switch angle {
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, src.Bounds().Dy(), src.Bounds().Dx()))
		s2d = f64.Aff3{0, -1, h, 1, 0, 0}
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
		s2d = f64.Aff3{-1, 0, w, 0, -1, h}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, src.Bounds().Dy(), src.Bounds().Dx()))
		s2d = f64.Aff3{0, 1, 0, -1, 0, w}
	}
	draw.NearestNeighbor.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func toOrigin(img image.Image) image.Image {
	b := img.Bounds()
	if b.Min == (image.Point{}) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

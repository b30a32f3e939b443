// Package qrcode renders URLs as inline PNG QR codes.
package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Encoder produces data URIs embedding a QR code image.
type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewEncoder returns an encoder rendering square images of size pixels.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = 256
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// DataURI encodes content as a PNG QR code and wraps it in a data URI.
func (e *Encoder) DataURI(content string) (string, error) {
	png, err := goqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

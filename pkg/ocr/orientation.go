package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoOrientation is returned when the probe output carries no rotation verdict.
var ErrNoOrientation = errors.New("orientation not detected")

var rotateLine = regexp.MustCompile(`(?m)^Rotate:\s*(-?\d+)`)

// OSDProbe runs the tesseract CLI in orientation and script detection mode (psm 0).
// gosseract exposes no osd call, so the image is piped through stdin instead.
type OSDProbe struct {
	bin     string
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewOSDProbe builds a probe around the tesseract binary.
func NewOSDProbe(bin string) *OSDProbe {
	if bin == "" {
		bin = "tesseract"
	}
	return &OSDProbe{bin: bin, command: exec.CommandContext}
}

// DetectOrientation returns the clockwise angle in degrees (0, 90, 180 or 270) that uprights the image.
func (p *OSDProbe) DetectOrientation(ctx context.Context, image []byte) (int, error) {
	cmd := p.command(ctx, p.bin, "stdin", "stdout", "--psm", "0")
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("tesseract osd: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseOrientation(stdout.String() + "\n" + stderr.String())
}

// ParseOrientation extracts the "Rotate:" verdict from tesseract osd output.
func ParseOrientation(output string) (int, error) {
	match := rotateLine.FindStringSubmatch(output)
	if match == nil {
		return 0, ErrNoOrientation
	}
	deg, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("parse rotation %q: %w", match[1], err)
	}
	return deg, nil
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/ocr"
)

type stubEngine struct {
	result   ocr.Result
	err      error
	profiles []ocr.Profile
	language string
}

func (s *stubEngine) Recognize(ctx context.Context, image []byte, language string, profile ocr.Profile) (ocr.Result, error) {
	s.profiles = append(s.profiles, profile)
	s.language = language
	return s.result, s.err
}

func TestExtractUsesAccurateProfile(t *testing.T) {
	engine := &stubEngine{result: ocr.Result{Text: "DIPLOME N 43210"}}
	extractor := NewTextExtractor(engine, "", nil)

	res, err := extractor.Extract(context.Background(), &NormalizedPage{Data: []byte("img"), Angle: 270})
	require.NoError(t, err)
	assert.Equal(t, "DIPLOME N 43210", res.Text)
	assert.Equal(t, 270, res.Angle)
	assert.Equal(t, "fra", engine.language)
	assert.Equal(t, []ocr.Profile{ocr.ProfileAccurate}, engine.profiles)
}

func TestExtractEmptyTextIsNotAnError(t *testing.T) {
	extractor := NewTextExtractor(&stubEngine{}, "fra", nil)

	res, err := extractor.Extract(context.Background(), &NormalizedPage{Data: []byte("img")})
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestExtractWrapsEngineFailure(t *testing.T) {
	extractor := NewTextExtractor(&stubEngine{err: errors.New("tessdata missing")}, "fra", nil)

	_, err := extractor.Extract(context.Background(), &NormalizedPage{Data: []byte("img")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRecognition))
}

func TestExtractPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	extractor := NewTextExtractor(&stubEngine{err: errors.New("killed")}, "fra", nil)

	_, err := extractor.Extract(ctx, &NormalizedPage{Data: []byte("img")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectOrientation(t *testing.T) {
	angle := 180
	engine := &stubEngine{result: ocr.Result{Orientation: &angle}}
	extractor := NewTextExtractor(engine, "fra", nil)

	got, err := extractor.DetectOrientation(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 180, got)
	assert.Equal(t, []ocr.Profile{ocr.ProfileOrientation}, engine.profiles)

	noHint := NewTextExtractor(&stubEngine{}, "fra", nil)
	got, err = noHint.DetectOrientation(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Zero(t, got)
}

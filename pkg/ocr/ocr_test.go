package ocr

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	image     []byte
	languages []string
	psm       gosseract.PageSegMode
	variables map[gosseract.SettableVariable]string
	text      string
	textErr   error
	closed    bool
}

func (f *fakeClient) SetImageFromBytes(data []byte) error { f.image = data; return nil }
func (f *fakeClient) SetLanguage(langs ...string) error   { f.languages = langs; return nil }
func (f *fakeClient) SetPageSegMode(mode gosseract.PageSegMode) error {
	f.psm = mode
	return nil
}
func (f *fakeClient) SetVariable(key gosseract.SettableVariable, value string) error {
	if f.variables == nil {
		f.variables = map[gosseract.SettableVariable]string{}
	}
	f.variables[key] = value
	return nil
}
func (f *fakeClient) Text() (string, error) { return f.text, f.textErr }
func (f *fakeClient) Close() error          { f.closed = true; return nil }

func TestRecognizeAppliesAccurateProfile(t *testing.T) {
	client := &fakeClient{text: "  Diplôme n° 12345 \n"}
	engine := &TesseractEngine{clientFactory: func() tessClient { return client }}

	res, err := engine.Recognize(context.Background(), []byte("png"), "fra", ProfileAccurate)
	require.NoError(t, err)
	assert.Equal(t, "Diplôme n° 12345", res.Text)
	assert.Nil(t, res.Orientation)
	assert.Equal(t, 0, res.Angle())
	assert.Equal(t, []string{"fra"}, client.languages)
	assert.Equal(t, gosseract.PageSegMode(6), client.psm)
	assert.Equal(t, "1", client.variables["tessedit_ocr_engine_mode"])
	assert.True(t, client.closed)
}

func TestRecognizeNegativeEngineModeKeepsLibraryDefault(t *testing.T) {
	client := &fakeClient{text: "x"}
	engine := &TesseractEngine{clientFactory: func() tessClient { return client }}

	auto := Profile{Name: "auto", PageSegMode: 3, EngineMode: -1}
	_, err := engine.Recognize(context.Background(), []byte("png"), "fra", auto)
	require.NoError(t, err)
	_, set := client.variables["tessedit_ocr_engine_mode"]
	assert.False(t, set)
}

func TestRecognizePropagatesFailure(t *testing.T) {
	client := &fakeClient{textErr: errors.New("tessdata missing")}
	engine := &TesseractEngine{clientFactory: func() tessClient { return client }}

	_, err := engine.Recognize(context.Background(), []byte("png"), "fra", ProfileAccurate)
	require.Error(t, err)
	assert.True(t, client.closed)
}

func TestRecognizeHonoursCancelledContext(t *testing.T) {
	engine := &TesseractEngine{clientFactory: func() tessClient {
		t.Fatal("client must not be created")
		return nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Recognize(ctx, nil, "fra", ProfileAccurate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseOrientation(t *testing.T) {
	output := "Page number: 0\nOrientation in degrees: 270\nRotate: 90\nOrientation confidence: 4.12\nScript: Latin\n"
	deg, err := ParseOrientation(output)
	require.NoError(t, err)
	assert.Equal(t, 90, deg)

	_, err = ParseOrientation("Too few characters. Skipping this page")
	assert.ErrorIs(t, err, ErrNoOrientation)
}

func TestOSDProbeRunsPsmZero(t *testing.T) {
	var gotArgs []string
	probe := NewOSDProbe("tesseract")
	probe.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = args
		return exec.CommandContext(ctx, "echo", "Rotate: 180")
	}
	engine := &TesseractEngine{osd: probe, clientFactory: func() tessClient {
		t.Fatal("orientation pass must not open a gosseract client")
		return nil
	}}

	res, err := engine.Recognize(context.Background(), []byte("png"), "fra", ProfileOrientation)
	if errors.Is(err, exec.ErrNotFound) {
		t.Skip("echo binary unavailable")
	}
	require.NoError(t, err)
	require.NotNil(t, res.Orientation)
	assert.Equal(t, 180, res.Angle())
	assert.Empty(t, res.Text)
	assert.Equal(t, []string{"stdin", "stdout", "--psm", "0"}, gotArgs)
}

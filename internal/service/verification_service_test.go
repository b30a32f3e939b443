package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	"github.com/noah-isme/diploma-checker-api/internal/models"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/storage"
)

const pdfHeader = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

type stubNormalizer struct {
	err       error
	rotateErr error
	rotations []int
	dirs      []string
}

func (s *stubNormalizer) Normalize(ctx context.Context, ws *storage.Workspace, doc *UploadedDocument) (*NormalizedPage, error) {
	s.dirs = append(s.dirs, ws.Dir())
	if s.err != nil {
		return nil, s.err
	}
	path, err := ws.Save("page_small.png", []byte("page"))
	if err != nil {
		return nil, err
	}
	return &NormalizedPage{Data: []byte("page"), Path: path, Paged: doc.Paged()}, nil
}

func (s *stubNormalizer) Rotate(ws *storage.Workspace, page *NormalizedPage, delta int) (*NormalizedPage, error) {
	s.rotations = append(s.rotations, delta)
	if s.rotateErr != nil {
		return nil, s.rotateErr
	}
	path, err := ws.Save("page_rot.png", []byte("rotated"))
	if err != nil {
		return nil, err
	}
	return &NormalizedPage{Data: []byte("rotated"), Path: path, Angle: page.Angle + delta, Paged: page.Paged}, nil
}

type stubExtractor struct {
	texts  []string
	err    error
	block  bool
	angles []int
}

func (s *stubExtractor) Extract(ctx context.Context, page *NormalizedPage) (*ExtractionResult, error) {
	s.angles = append(s.angles, page.Angle)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.angles) - 1
	if idx >= len(s.texts) {
		idx = len(s.texts) - 1
	}
	text := ""
	if idx >= 0 {
		text = s.texts[idx]
	}
	return &ExtractionResult{Text: text, Angle: page.Angle}, nil
}

type stubMatchReconciler struct {
	calls  []string
	err    error
	create bool
}

func (s *stubMatchReconciler) Reconcile(ctx context.Context, diploma *models.DiplomaRecord, actor string) (*ReconcileOutcome, error) {
	s.calls = append(s.calls, diploma.Reference+"|"+actor)
	if s.err != nil {
		return nil, s.err
	}
	return &ReconcileOutcome{StudentCreated: s.create}, nil
}

type verificationFixture struct {
	service    *VerificationService
	storage    *storage.LocalStorage
	normalizer *stubNormalizer
	extractor  *stubExtractor
	diplomas   *stubDiplomas
	reconciler *stubMatchReconciler
	qr         *stubQR
}

func newVerificationFixture(t *testing.T, texts ...string) *verificationFixture {
	t.Helper()
	f := &verificationFixture{
		storage:    newTestStorage(t),
		normalizer: &stubNormalizer{},
		extractor:  &stubExtractor{texts: texts},
		diplomas:   &stubDiplomas{records: map[string]*models.DiplomaRecord{"43210": sampleDiploma()}},
		reconciler: &stubMatchReconciler{create: true},
		qr:         &stubQR{},
	}
	f.service = NewVerificationService(f.storage, f.normalizer, f.extractor, nil, f.diplomas, f.reconciler, f.qr, nil, nil, VerificationConfig{
		MaxFileSize:    1024 * 1024,
		PublicBaseURL:  "https://verify.example.org/",
		DiplomaPDFPath: "/diplomes",
	})
	return f
}

func pdfUpload() VerificationUpload {
	return VerificationUpload{Filename: "diploma.pdf", DeclaredType: "application/pdf", Size: int64(len(pdfHeader)), Content: strings.NewReader(pdfHeader)}
}

func (f *verificationFixture) assertNoLeftovers(t *testing.T) {
	t.Helper()
	for _, dir := range f.normalizer.dirs {
		assert.NoDirExists(t, dir)
	}
	entries, err := os.ReadDir(f.storage.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyUploadMatchesFirstPass(t *testing.T) {
	f := newVerificationFixture(t, "REPUBLIQUE\nDIPLOME N 43210 DELIVRE")

	res, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "43210", res.Reference)
	assert.Equal(t, dto.OutcomeMatched, res.Outcome)
	assert.True(t, res.StudentCreated)
	assert.Equal(t, "https://verify.example.org/diplomes/43210.pdf", res.PDFURL)
	assert.Equal(t, "data:image/png;base64,QR", res.QRCode)
	assert.Equal(t, []string{res.PDFURL}, f.qr.encoded)
	assert.Equal(t, []string{"43210|alice"}, f.reconciler.calls)
	assert.Empty(t, f.normalizer.rotations)
	assert.Len(t, f.extractor.angles, 1)
	assert.Nil(t, res.Text)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadRetriesRotatedPageOnce(t *testing.T) {
	f := newVerificationFixture(t, "~~ ,; ii", "DIPLOME N 43210")

	res, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, []int{90}, f.normalizer.rotations)
	assert.Equal(t, []int{0, 90}, f.extractor.angles)
	assert.Equal(t, []string{"43210|" + models.AnonymousActor}, f.reconciler.calls)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadNeverRetriesTwice(t *testing.T) {
	f := newVerificationFixture(t, "", "")

	res, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, dto.OutcomeUnresolved, res.Outcome)
	assert.Equal(t, dto.NoReferenceMessage, res.Error)
	require.NotNil(t, res.Text)
	assert.Empty(t, *res.Text)
	assert.Len(t, f.normalizer.rotations, 1)
	assert.Len(t, f.extractor.angles, 2)
	assert.Empty(t, f.reconciler.calls)
	assert.Zero(t, f.diplomas.calls)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadSkipsRetryWhenTextLooksReadable(t *testing.T) {
	f := newVerificationFixture(t, "REPUBLIQUE DU SENEGAL")

	res, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeUnresolved, res.Outcome)
	assert.Equal(t, "REPUBLIQUE DU SENEGAL", *res.Text)
	assert.Empty(t, f.normalizer.rotations)
}

func TestVerifyUploadNeverRotatesImages(t *testing.T) {
	f := newVerificationFixture(t, "")
	data := pngBytes(t, 20, 20)

	res, err := f.service.VerifyUpload(context.Background(), VerificationUpload{
		Filename: "scan.png", Size: int64(len(data)), Content: bytes.NewReader(data),
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeUnresolved, res.Outcome)
	assert.Empty(t, f.normalizer.rotations)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadRecordMissed(t *testing.T) {
	f := newVerificationFixture(t, "DIPLOME N 99999")

	res, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "99999", res.Reference)
	assert.Equal(t, dto.OutcomeRecordMissed, res.Outcome)
	assert.Empty(t, res.Error)
	assert.Empty(t, f.reconciler.calls)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadRejectsBeforeTouchingDisk(t *testing.T) {
	f := newVerificationFixture(t, "DIPLOME N 43210")

	cases := []struct {
		name   string
		upload VerificationUpload
		want   *appErrors.Error
	}{
		{name: "missing", upload: VerificationUpload{}, want: appErrors.ErrValidation},
		{name: "text file", upload: VerificationUpload{Filename: "notes.txt", Size: 5, Content: strings.NewReader("hello")}, want: appErrors.ErrUnsupportedMedia},
		{name: "declared too large", upload: VerificationUpload{Filename: "big.pdf", Size: 2 * 1024 * 1024, Content: strings.NewReader(pdfHeader)}, want: appErrors.ErrPayloadTooLarge},
		{name: "lying about size", upload: VerificationUpload{Filename: "big.pdf", Size: 10, Content: bytes.NewReader(append([]byte(pdfHeader), make([]byte, 1024*1024)...))}, want: appErrors.ErrPayloadTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.VerifyUpload(context.Background(), tc.upload, "alice")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
		})
	}
	assert.Empty(t, f.normalizer.dirs)
	assert.Empty(t, f.extractor.angles)
	f.assertNoLeftovers(t)
}

func TestVerifyUploadCleansUpOnFailure(t *testing.T) {
	t.Run("conversion", func(t *testing.T) {
		f := newVerificationFixture(t)
		f.normalizer.err = appErrors.Clone(appErrors.ErrConversion, "document has no page 2")

		_, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
		assert.True(t, errors.Is(err, appErrors.ErrConversion))
		f.assertNoLeftovers(t)
	})

	t.Run("recognition", func(t *testing.T) {
		f := newVerificationFixture(t)
		f.extractor.err = appErrors.ErrRecognition

		_, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
		assert.True(t, errors.Is(err, appErrors.ErrRecognition))
		f.assertNoLeftovers(t)
	})

	t.Run("store", func(t *testing.T) {
		f := newVerificationFixture(t, "DIPLOME N 43210")
		f.diplomas.err = errors.New("connection reset")

		_, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
		assert.True(t, errors.Is(err, appErrors.ErrStore))
		f.assertNoLeftovers(t)
	})

	t.Run("reconcile", func(t *testing.T) {
		f := newVerificationFixture(t, "DIPLOME N 43210")
		f.reconciler.err = storeError(errors.New("disk full"), "failed to record search")

		_, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
		assert.True(t, errors.Is(err, appErrors.ErrStore))
		f.assertNoLeftovers(t)
	})
}

func TestVerifyUploadTimesOut(t *testing.T) {
	f := newVerificationFixture(t)
	f.extractor.block = true
	f.service.cfg.ProcessingTimeout = 20 * time.Millisecond

	_, err := f.service.VerifyUpload(context.Background(), pdfUpload(), "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTimeout))
	f.assertNoLeftovers(t)
}

func TestLookupReference(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		f := newVerificationFixture(t)

		res, err := f.service.LookupReference(context.Background(), "43210", "alice")
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.Equal(t, "https://verify.example.org/diplomes/43210.pdf", res.PDFURL)
		assert.Equal(t, []string{"43210|alice"}, f.reconciler.calls)
		assert.Nil(t, res.Text)
	})

	t.Run("miss records nothing", func(t *testing.T) {
		f := newVerificationFixture(t)

		res, err := f.service.LookupReference(context.Background(), "ZZZZZ1", "alice")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Equal(t, "ZZZZZ1", res.Reference)
		assert.Empty(t, f.reconciler.calls)
	})

	t.Run("invalid", func(t *testing.T) {
		f := newVerificationFixture(t)

		_, err := f.service.LookupReference(context.Background(), "12", "alice")
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
		assert.Zero(t, f.diplomas.calls)
	})
}

func TestVerificationRunRotationBudget(t *testing.T) {
	f := newVerificationFixture(t)
	run := f.service.newRun("test", stateReceived)

	require.NoError(t, run.advance(stateNormalized))
	require.NoError(t, run.advance(stateExtracted))
	require.NoError(t, run.advance(stateNormalized))
	require.NoError(t, run.advance(stateExtracted))
	assert.ErrorIs(t, run.advance(stateNormalized), errRotationBudgetSpent)
	assert.Error(t, run.advance(stateReconciled))
	require.NoError(t, run.advance(stateResolved))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "mon_dipl_me.pdf", sanitizeFilename("mon diplôme.pdf"))
	assert.Equal(t, "upload", sanitizeFilename(""))
}

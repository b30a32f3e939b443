package service

import (
	"context"
	"database/sql"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/diploma-checker-api/internal/models"
	"github.com/noah-isme/diploma-checker-api/pkg/imaging"
	"github.com/noah-isme/diploma-checker-api/pkg/storage"
)

func strPtr(v string) *string { return &v }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

type stubLogs struct {
	mu       sync.Mutex
	searched []string
	verified []string
	err      error
}

func (s *stubLogs) AppendSearch(ctx context.Context, reference, actor string) (*models.VerificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.searched = append(s.searched, reference+"|"+actor)
	return &models.VerificationEvent{ID: "search", Reference: reference, Actor: actor, CreatedAt: time.Now()}, nil
}

func (s *stubLogs) AppendVerified(ctx context.Context, reference, actor string) (*models.VerificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = append(s.verified, reference+"|"+actor)
	return &models.VerificationEvent{ID: "verified", Reference: reference, Actor: actor, CreatedAt: time.Now()}, nil
}

func (s *stubLogs) CountVerified(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verified), s.err
}

func (s *stubLogs) SearchesSince(ctx context.Context, since time.Time) ([]models.SearchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]models.SearchEntry, 0, len(s.searched))
	for range s.searched {
		entries = append(entries, models.SearchEntry{Reference: "43210", SearchedAt: since.Add(time.Minute)})
	}
	return entries, s.err
}

type stubStudents struct {
	mu       sync.Mutex
	byID     map[string]*models.StudentRecord
	inserts  int
	findErr  error
	countErr error
}

func newStubStudents() *stubStudents {
	return &stubStudents{byID: map[string]*models.StudentRecord{}}
}

func (s *stubStudents) FindByStudentID(ctx context.Context, studentID string) (*models.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	st, ok := s.byID[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return st, nil
}

func (s *stubStudents) InsertIfAbsent(ctx context.Context, student *models.StudentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[student.StudentID]; ok {
		return false, nil
	}
	s.inserts++
	s.byID[student.StudentID] = student
	return true, nil
}

func (s *stubStudents) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID), s.countErr
}

type stubDiplomas struct {
	records map[string]*models.DiplomaRecord
	err     error
	calls   int
}

func (s *stubDiplomas) FindByReference(ctx context.Context, reference string) (*models.DiplomaRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	d, ok := s.records[reference]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

type stubCache struct {
	invalidated []string
}

func (s *stubCache) Invalidate(ctx context.Context, keys ...string) error {
	s.invalidated = append(s.invalidated, keys...)
	return nil
}

type stubQR struct {
	encoded []string
}

func (s *stubQR) DataURI(content string) (string, error) {
	s.encoded = append(s.encoded, content)
	return "data:image/png;base64,QR", nil
}

func sampleDiploma() *models.DiplomaRecord {
	return &models.DiplomaRecord{
		Reference: "43210",
		StudentID: "E-77",
		HolderInfo: models.HolderInfo{
			FullName:     strPtr("Amina Diallo"),
			FieldOfStudy: strPtr("Génie civil"),
			Email:        strPtr("amina@example.org"),
		},
	}
}

package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/diploma-checker-api/internal/dto"
	"github.com/noah-isme/diploma-checker-api/internal/models"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/storage"
)

type workspaceProvider interface {
	NewWorkspace() (*storage.Workspace, error)
}

type pageNormalizer interface {
	Normalize(ctx context.Context, ws *storage.Workspace, doc *UploadedDocument) (*NormalizedPage, error)
	Rotate(ws *storage.Workspace, page *NormalizedPage, delta int) (*NormalizedPage, error)
}

type pageExtractor interface {
	Extract(ctx context.Context, page *NormalizedPage) (*ExtractionResult, error)
}

type diplomaFinder interface {
	FindByReference(ctx context.Context, reference string) (*models.DiplomaRecord, error)
}

type matchReconciler interface {
	Reconcile(ctx context.Context, diploma *models.DiplomaRecord, actor string) (*ReconcileOutcome, error)
}

type qrEncoder interface {
	DataURI(content string) (string, error)
}

type workspaceReclaimer interface {
	Reclaim(id, dir string)
}

// pipelineState is a step of a verification request.
type pipelineState string

const (
	stateReceived   pipelineState = "RECEIVED"
	stateNormalized pipelineState = "NORMALIZED"
	stateExtracted  pipelineState = "EXTRACTED"
	stateResolved   pipelineState = "RESOLVED"
	stateLookedUp   pipelineState = "LOOKED_UP"
	stateReconciled pipelineState = "RECONCILED"
	stateDone       pipelineState = "DONE"
)

// pipelineTransitions lists legal moves. EXTRACTED -> NORMALIZED is the rotated
// retry and spends the rotation budget.
var pipelineTransitions = map[pipelineState][]pipelineState{
	stateReceived:   {stateNormalized},
	stateNormalized: {stateExtracted},
	stateExtracted:  {stateNormalized, stateResolved},
	stateResolved:   {stateLookedUp, stateDone},
	stateLookedUp:   {stateReconciled, stateDone},
	stateReconciled: {stateDone},
}

// rotationBudget is the number of rotated retries a single document may consume.
const rotationBudget = 1

// errRotationBudgetSpent guards the single retry.
var errRotationBudgetSpent = errors.New("rotation retry already used")

type verificationRun struct {
	id            string
	state         pipelineState
	rotationsLeft int
	started       time.Time
	logger        *zap.Logger
}

func (r *verificationRun) advance(next pipelineState) error {
	allowed := false
	for _, candidate := range pipelineTransitions[r.state] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("illegal verification transition %s -> %s", r.state, next)
	}
	if r.state == stateExtracted && next == stateNormalized {
		if r.rotationsLeft <= 0 {
			return errRotationBudgetSpent
		}
		r.rotationsLeft--
	}
	r.logger.Debug("verification stage", zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
	return nil
}

// VerificationUpload is the raw multipart file handed over by the transport.
type VerificationUpload struct {
	Filename     string
	DeclaredType string
	Size         int64
	Content      io.Reader
}

// VerificationConfig holds validation limits and public URLs.
type VerificationConfig struct {
	MaxFileSize       int64
	AllowedMIMEs      []string
	ProcessingTimeout time.Duration
	PublicBaseURL     string
	DiplomaPDFPath    string
}

// VerificationService drives a document from upload to verified diploma.
type VerificationService struct {
	workspaces workspaceProvider
	normalizer pageNormalizer
	extractor  pageExtractor
	resolver   *ReferenceResolver
	diplomas   diplomaFinder
	reconciler matchReconciler
	qr         qrEncoder
	reclaimer  workspaceReclaimer
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        VerificationConfig
}

// NewVerificationService wires the pipeline.
func NewVerificationService(workspaces workspaceProvider, normalizer pageNormalizer, extractor pageExtractor, resolver *ReferenceResolver, diplomas diplomaFinder, reconciler matchReconciler, qr qrEncoder, metrics *MetricsService, logger *zap.Logger, cfg VerificationConfig) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewReferenceResolver(nil)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/png", "image/jpeg", mimePDF}
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = time.Minute
	}
	if cfg.DiplomaPDFPath == "" {
		cfg.DiplomaPDFPath = "/diplomes"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &VerificationService{
		workspaces: workspaces,
		normalizer: normalizer,
		extractor:  extractor,
		resolver:   resolver,
		diplomas:   diplomas,
		reconciler: reconciler,
		qr:         qr,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// SetReclaimer hands workspaces whose cleanup failed to r for another attempt.
func (s *VerificationService) SetReclaimer(r workspaceReclaimer) {
	s.reclaimer = r
}

// VerifyUpload recognises the reference printed on an uploaded diploma and verifies it.
// Every file written for the request is removed before returning, whatever the outcome.
func (s *VerificationService) VerifyUpload(ctx context.Context, upload VerificationUpload, actor string) (*dto.VerificationResult, error) {
	data, mediaType, err := s.readUpload(upload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()

	ws, err := s.workspaces.NewWorkspace()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare workspace")
	}
	run := s.newRun(ws.ID(), stateReceived)
	defer s.release(run, ws)

	path, err := ws.Save("upload"+uploadExtension(mediaType), data)
	if err != nil {
		return nil, s.fail(ctx, run, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
	}
	doc := &UploadedDocument{
		Filename:     sanitizeFilename(upload.Filename),
		DeclaredType: upload.DeclaredType,
		MediaType:    mediaType,
		Path:         path,
		Data:         data,
	}
	run.logger = run.logger.With(zap.String("filename", doc.Filename), zap.String("media_type", mediaType))

	var page *NormalizedPage
	if err := s.timed("normalize", func() (stageErr error) {
		page, stageErr = s.normalizer.Normalize(ctx, ws, doc)
		return stageErr
	}); err != nil {
		return nil, s.fail(ctx, run, err)
	}
	if err := run.advance(stateNormalized); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	extraction, err := s.extract(ctx, run, page)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	reference, ok := s.resolver.Resolve(extraction.Text)
	if !ok && page.Paged && s.resolver.NeedsRotation(extraction.Text) {
		if err := run.advance(stateNormalized); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		s.metrics.RecordRotationRetry()
		run.logger.Info("no reference shape found, retrying with rotated page", zap.Int("angle", page.Angle))

		if err := s.timed("rotate", func() (stageErr error) {
			page, stageErr = s.normalizer.Rotate(ws, page, 90)
			return stageErr
		}); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		if extraction, err = s.extract(ctx, run, page); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		reference, ok = s.resolver.Resolve(extraction.Text)
	}
	if err := run.advance(stateResolved); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	text := extraction.Text
	if !ok {
		_ = run.advance(stateDone)
		s.finish(run, dto.OutcomeUnresolved, "")
		return &dto.VerificationResult{Found: false, Error: dto.NoReferenceMessage, Text: &text, Outcome: dto.OutcomeUnresolved}, nil
	}
	return s.verify(ctx, run, reference, actor, &text)
}

// LookupReference verifies a reference typed in by the caller, skipping recognition.
func (s *VerificationService) LookupReference(ctx context.Context, reference, actor string) (*dto.VerificationResult, error) {
	reference, err := s.resolver.Validate(reference)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()
	run := s.newRun("lookup", stateResolved)
	return s.verify(ctx, run, reference, actor, nil)
}

func (s *VerificationService) verify(ctx context.Context, run *verificationRun, reference, actor string, text *string) (*dto.VerificationResult, error) {
	run.logger = run.logger.With(zap.String("reference", reference))

	var diploma *models.DiplomaRecord
	lookupErr := s.timed("lookup", func() (stageErr error) {
		diploma, stageErr = s.diplomas.FindByReference(ctx, reference)
		return stageErr
	})
	if lookupErr != nil && !errors.Is(lookupErr, sql.ErrNoRows) {
		return nil, s.fail(ctx, run, storeError(lookupErr, "failed to look up diploma"))
	}
	if err := run.advance(stateLookedUp); err != nil {
		return nil, s.fail(ctx, run, err)
	}
	if lookupErr != nil {
		_ = run.advance(stateDone)
		s.finish(run, dto.OutcomeRecordMissed, reference)
		return &dto.VerificationResult{Reference: reference, Found: false, Text: text, Outcome: dto.OutcomeRecordMissed}, nil
	}

	if actor == "" {
		actor = models.AnonymousActor
	}
	var outcome *ReconcileOutcome
	if err := s.timed("reconcile", func() (stageErr error) {
		outcome, stageErr = s.reconciler.Reconcile(ctx, diploma, actor)
		return stageErr
	}); err != nil {
		return nil, s.fail(ctx, run, err)
	}
	if err := run.advance(stateReconciled); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	pdfURL := s.ArtifactURL(diploma.Reference)
	qr, err := s.qr.DataURI(pdfURL)
	if err != nil {
		return nil, s.fail(ctx, run, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode qr code"))
	}
	_ = run.advance(stateDone)
	s.finish(run, dto.OutcomeMatched, reference)

	return &dto.VerificationResult{
		Reference:      reference,
		Found:          true,
		Data:           diploma,
		PDFURL:         pdfURL,
		QRCode:         qr,
		Outcome:        dto.OutcomeMatched,
		StudentCreated: outcome != nil && outcome.StudentCreated,
	}, nil
}

// ArtifactURL is the public location of the diploma PDF for reference.
func (s *VerificationService) ArtifactURL(reference string) string {
	return s.cfg.PublicBaseURL + "/" + strings.Trim(s.cfg.DiplomaPDFPath, "/") + "/" + url.PathEscape(reference) + ".pdf"
}

func (s *VerificationService) extract(ctx context.Context, run *verificationRun, page *NormalizedPage) (*ExtractionResult, error) {
	var extraction *ExtractionResult
	if err := s.timed("extract", func() (stageErr error) {
		extraction, stageErr = s.extractor.Extract(ctx, page)
		return stageErr
	}); err != nil {
		return nil, err
	}
	if err := run.advance(stateExtracted); err != nil {
		return nil, err
	}
	return extraction, nil
}

func (s *VerificationService) readUpload(upload VerificationUpload) ([]byte, string, error) {
	if upload.Content == nil || upload.Size == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	if len(data) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}

	detected, err := mimetype.DetectReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to inspect file")
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if detected.Is(allowed) {
			return data, strings.ToLower(allowed), nil
		}
	}
	return nil, "", appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s is not allowed", detected.String()))
}

func (s *VerificationService) newRun(id string, state pipelineState) *verificationRun {
	return &verificationRun{
		id:            id,
		state:         state,
		rotationsLeft: rotationBudget,
		started:       time.Now(),
		logger:        s.logger.With(zap.String("workspace_id", id)),
	}
}

func (s *VerificationService) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveStage(stage, time.Since(start))
	return err
}

func (s *VerificationService) finish(run *verificationRun, outcome dto.VerificationOutcome, reference string) {
	s.metrics.RecordOutcome(string(outcome))
	run.logger.Info("verification finished",
		zap.String("outcome", string(outcome)),
		zap.String("matched_reference", reference),
		zap.Duration("elapsed", time.Since(run.started)),
	)
}

func (s *VerificationService) fail(ctx context.Context, run *verificationRun, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	appErr := appErrors.FromError(err)
	s.metrics.RecordOutcome("failed")
	run.logger.Error("verification failed",
		zap.String("state", string(run.state)),
		zap.String("code", appErr.Code),
		zap.Duration("elapsed", time.Since(run.started)),
		zap.Error(err),
	)
	return appErr
}

func (s *VerificationService) release(run *verificationRun, ws *storage.Workspace) {
	if err := ws.Cleanup(); err != nil {
		s.metrics.RecordCleanupFailure()
		run.logger.Warn("workspace cleanup failed", zap.Error(err))
		if s.reclaimer != nil {
			s.reclaimer.Reclaim(ws.ID(), ws.Dir())
		}
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return unsafeFilenameChars.ReplaceAllString(base, "_")
}

func uploadExtension(mediaType string) string {
	switch mediaType {
	case mimePDF:
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

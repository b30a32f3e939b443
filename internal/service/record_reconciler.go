package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/diploma-checker-api/internal/models"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
)

type verificationLogWriter interface {
	AppendSearch(ctx context.Context, reference, actor string) (*models.VerificationEvent, error)
	AppendVerified(ctx context.Context, reference, actor string) (*models.VerificationEvent, error)
}

type studentStore interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.StudentRecord, error)
	InsertIfAbsent(ctx context.Context, student *models.StudentRecord) (bool, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// ReconcileOutcome describes the side effects of one reconciliation.
type ReconcileOutcome struct {
	Searched       *models.VerificationEvent
	Verified       *models.VerificationEvent
	StudentCreated bool
}

// RecordReconciler records a confirmed match and derives the student record on first sight.
type RecordReconciler struct {
	logs     verificationLogWriter
	students studentStore
	cache    cacheInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewRecordReconciler constructs a reconciler. cache may be nil.
func NewRecordReconciler(logs verificationLogWriter, students studentStore, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *RecordReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordReconciler{logs: logs, students: students, cache: cache, metrics: metrics, logger: logger}
}

// Reconcile appends both audit entries then creates the student if none exists.
// Steps run in order; the first store failure aborts the rest.
func (r *RecordReconciler) Reconcile(ctx context.Context, diploma *models.DiplomaRecord, actor string) (*ReconcileOutcome, error) {
	if actor == "" {
		actor = models.AnonymousActor
	}
	outcome := &ReconcileOutcome{}

	var err error
	start := time.Now()
	outcome.Searched, err = r.logs.AppendSearch(ctx, diploma.Reference, actor)
	r.metrics.ObserveDBQuery("append_search_log", time.Since(start))
	if err != nil {
		return nil, storeError(err, "failed to record search")
	}

	start = time.Now()
	outcome.Verified, err = r.logs.AppendVerified(ctx, diploma.Reference, actor)
	r.metrics.ObserveDBQuery("append_verified_log", time.Since(start))
	if err != nil {
		return nil, storeError(err, "failed to record verification")
	}

	created, err := r.ensureStudent(ctx, diploma)
	if err != nil {
		return nil, err
	}
	outcome.StudentCreated = created
	if created {
		r.metrics.RecordStudentCreated()
		r.logger.Info("student record created", zap.String("student_id", diploma.StudentID), zap.String("reference", diploma.Reference))
	}

	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, statsCacheKey)
	}
	return outcome, nil
}

func (r *RecordReconciler) ensureStudent(ctx context.Context, diploma *models.DiplomaRecord) (bool, error) {
	if diploma.StudentID == "" {
		r.logger.Warn("diploma has no student identifier, skipping student record", zap.String("reference", diploma.Reference))
		return false, nil
	}

	start := time.Now()
	_, err := r.students.FindByStudentID(ctx, diploma.StudentID)
	r.metrics.ObserveDBQuery("find_student", time.Since(start))
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, storeError(err, "failed to look up student")
	}

	start = time.Now()
	created, err := r.students.InsertIfAbsent(ctx, models.NewStudentRecord(diploma))
	r.metrics.ObserveDBQuery("insert_student", time.Since(start))
	if err != nil {
		return false, storeError(err, "failed to create student")
	}
	return created, nil
}

func storeError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, message)
}

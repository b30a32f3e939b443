package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/diploma-checker-api/internal/models"
)

// VerificationLogRepository appends to the search and verified audit logs.
type VerificationLogRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewVerificationLogRepository constructs a VerificationLogRepository.
func NewVerificationLogRepository(db *sqlx.DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db, now: time.Now}
}

// AppendSearch records that actor looked up reference.
func (r *VerificationLogRepository) AppendSearch(ctx context.Context, reference, actor string) (*models.VerificationEvent, error) {
	return r.append(ctx, models.LogSearched, reference, actor)
}

// AppendVerified records that actor confirmed a diploma match for reference.
func (r *VerificationLogRepository) AppendVerified(ctx context.Context, reference, actor string) (*models.VerificationEvent, error) {
	return r.append(ctx, models.LogVerified, reference, actor)
}

// CountVerified returns the size of the verified log.
func (r *VerificationLogRepository) CountVerified(ctx context.Context) (int, error) {
	var total int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", models.LogVerified)
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count %s: %w", models.LogVerified, err)
	}
	return total, nil
}

// SearchesSince lists searched references from since onwards, oldest first.
func (r *VerificationLogRepository) SearchesSince(ctx context.Context, since time.Time) ([]models.SearchEntry, error) {
	log, column := models.LogSearched, models.LogSearched.TimeColumn()
	query := fmt.Sprintf(`SELECT reference, %[2]s FROM %[1]s WHERE %[2]s >= $1 ORDER BY %[2]s ASC`, log, column)
	entries := make([]models.SearchEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, since); err != nil {
		return nil, fmt.Errorf("list %s: %w", log, err)
	}
	return entries, nil
}

func (r *VerificationLogRepository) append(ctx context.Context, log models.VerificationLog, reference, actor string) (*models.VerificationEvent, error) {
	event := r.newEvent(reference, actor)
	query := fmt.Sprintf(`INSERT INTO %s (id, reference, actor, %s) VALUES ($1, $2, $3, $4)`, log, log.TimeColumn())
	if _, err := r.db.ExecContext(ctx, query, event.ID, event.Reference, event.Actor, event.CreatedAt); err != nil {
		return nil, fmt.Errorf("append %s: %w", log, err)
	}
	return event, nil
}

func (r *VerificationLogRepository) newEvent(reference, actor string) *models.VerificationEvent {
	return &models.VerificationEvent{
		ID:        uuid.NewString(),
		Reference: reference,
		Actor:     actor,
		CreatedAt: r.now().UTC(),
	}
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/diploma-checker-api/internal/models"
)

// DiplomaRepository reads issued diplomas. The table is owned by the registrar and never written here.
type DiplomaRepository struct {
	db *sqlx.DB
}

// NewDiplomaRepository constructs a DiplomaRepository.
func NewDiplomaRepository(db *sqlx.DB) *DiplomaRepository {
	return &DiplomaRepository{db: db}
}

// FindByReference fetches the diploma with the given reference. A miss returns sql.ErrNoRows.
func (r *DiplomaRepository) FindByReference(ctx context.Context, reference string) (*models.DiplomaRecord, error) {
	const query = `SELECT reference, student_id, full_name, date_of_birth, field_of_study, email, phone, address, created_at
        FROM diplomas WHERE reference = $1`
	var diploma models.DiplomaRecord
	if err := r.db.GetContext(ctx, &diploma, query, reference); err != nil {
		return nil, err
	}
	return &diploma, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/diploma-checker-api/internal/models"
)

const studentColumns = "id, student_id, full_name, date_of_birth, field_of_study, email, phone, address, created_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByStudentID fetches a student by institutional identifier. A miss returns sql.ErrNoRows.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.StudentRecord, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE student_id = $1"
	var student models.StudentRecord
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		return nil, err
	}
	return &student, nil
}

// InsertIfAbsent creates the student unless one already exists for its student_id.
// It reports whether a row was written; the unique index arbitrates concurrent callers.
func (r *StudentRepository) InsertIfAbsent(ctx context.Context, student *models.StudentRecord) (bool, error) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, student_id, full_name, date_of_birth, field_of_study, email, phone, address, created_at)
        VALUES (:id, :student_id, :full_name, :date_of_birth, :field_of_study, :email, :phone, :address, :created_at)
        ON CONFLICT (student_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return false, fmt.Errorf("insert student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert student rows affected: %w", err)
	}
	return affected == 1, nil
}

// List returns a page of students matching the filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentRecord, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.Search != "" {
		where = "(LOWER(full_name) LIKE $1 OR LOWER(student_id) LIKE $1 OR LOWER(field_of_study) LIKE $1)"
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"student_id": "student_id",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	var students []models.StudentRecord
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// All returns every student in creation order, used by roster exports.
func (r *StudentRepository) All(ctx context.Context) ([]models.StudentRecord, error) {
	query := "SELECT " + studentColumns + " FROM students ORDER BY created_at ASC"
	var students []models.StudentRecord
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// Count returns the number of student records.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

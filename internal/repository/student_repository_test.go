package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/diploma-checker-api/internal/models"
)

var studentRowColumns = []string{"id", "student_id", "full_name", "date_of_birth", "field_of_study", "email", "phone", "address", "created_at"}

func strPtr(v string) *string { return &v }

func TestStudentRepositoryInsertIfAbsentCreates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(`(?s)INSERT INTO students .*ON CONFLICT \(student_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	student := &models.StudentRecord{StudentID: "E-77", HolderInfo: models.HolderInfo{FullName: strPtr("Amina Diallo")}}
	created, err := repo.InsertIfAbsent(context.Background(), student)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryInsertIfAbsentConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.InsertIfAbsent(context.Background(), &models.StudentRecord{StudentID: "E-77"})
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByStudentIDMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE student_id = $1")).
		WithArgs("E-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByStudentID(context.Background(), "E-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListAppliesSearchAndPaging(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("s-1", "E-77", "Amina Diallo", nil, "Génie civil", nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("LOWER(full_name) LIKE $1")+".*"+regexp.QuoteMeta("ORDER BY full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%amina%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE")).
		WithArgs("%amina%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Amina", Page: 2, PageSize: 10, SortBy: "full_name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, total)
}

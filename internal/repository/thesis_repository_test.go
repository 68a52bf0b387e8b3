package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func TestThesisRepositoryListApprovedUnscheduled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewThesisRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "supervisor_id", "supervisor_name", "student_id", "student_name", "status", "created_at"}).
		AddRow("t1", "Thesis 1", "p1", "Prof One", "s1", "Student One", "approved", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.status = $1 AND NOT EXISTS (SELECT 1 FROM defense_schedules d WHERE d.thesis_id = t.id)")).
		WithArgs(models.ThesisStatusApproved).
		WillReturnRows(rows)

	theses, err := repo.ListApprovedUnscheduled(context.Background())
	require.NoError(t, err)
	require.Len(t, theses, 1)
	assert.Equal(t, "p1", theses[0].SupervisorID)
	assert.Equal(t, models.ThesisStatusApproved, theses[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisRepositoryStatusWrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewThesisRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE theses SET status = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(models.ThesisStatusScheduled, "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE theses SET status = $1, updated_at = NOW()")).
		WithArgs(models.ThesisStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 7))

	require.NoError(t, repo.SetStatus(context.Background(), "t1", models.ThesisStatusScheduled))
	count, err := repo.SetAllStatus(context.Background(), models.ThesisStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func TestProfessorRepositoryListProfessors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email"}).
		AddRow("p1", "Prof One", "one@uni.edu").
		AddRow("p2", "Prof Two", "two@uni.edu")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email FROM users WHERE role = $1 AND active = TRUE ORDER BY id ASC")).
		WithArgs(models.RoleProfessor).
		WillReturnRows(rows)

	professors, err := repo.ListProfessors(context.Background())
	require.NoError(t, err)
	assert.Len(t, professors, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessorRepositoryFindByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	professors, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, professors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

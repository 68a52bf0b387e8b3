package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var defenseRowColumns = []string{"id", "thesis_id", "principal_id", "examinator_id", "supervisor_id", "student_id", "start_time", "end_time", "room", "status", "created_at", "updated_at"}

func TestDefenseRepositoryFindByStartTimeToleratesMissingJury(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	start := time.Date(2026, 10, 19, 0, 15, 0, 0, time.UTC)
	rows := sqlmock.NewRows(defenseRowColumns).
		AddRow("d1", "t1", "p1", "", "s1", "st1", start, start.Add(35*time.Minute), "Room 110/DI", "tentative", start, start)
	mock.ExpectQuery(regexp.QuoteMeta("FROM defense_schedules d WHERE d.start_time = $1 ORDER BY d.room ASC")).
		WithArgs(start).
		WillReturnRows(rows)

	items, err := repo.FindByStartTime(context.Background(), start)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].ExaminatorID)
	assert.Equal(t, []string{"p1", "s1"}, items[0].JuryIDs())
	assert.True(t, items[0].Incomplete())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryFindByRoomAndTimeMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	start := time.Date(2026, 10, 19, 0, 15, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(d.room) = lower($1) AND d.start_time = $2 LIMIT 1")).
		WithArgs("Room 110/DI", start).
		WillReturnError(sql.ErrNoRows)

	sched, err := repo.FindByRoomAndTime(context.Background(), "Room 110/DI", start)
	require.NoError(t, err)
	assert.Nil(t, sched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	start := time.Date(2026, 10, 19, 0, 15, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO defense_schedules").
		WithArgs(sqlmock.AnyArg(), "t1", "p1", "e1", "s1", "st1", start, start.Add(35*time.Minute), "Room 110/DI", "tentative", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sched := &models.DefenseSchedule{
		ThesisID: "t1", PrincipalID: "p1", ExaminatorID: "e1", SupervisorID: "s1", StudentID: "st1",
		StartTime: start, EndTime: start.Add(35 * time.Minute), Room: "Room 110/DI",
	}
	require.NoError(t, repo.Create(context.Background(), sched))
	assert.NotEmpty(t, sched.ID)
	assert.Equal(t, models.DefenseStatusTentative, sched.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	mock.ExpectExec("INSERT INTO defense_schedules").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"defense_schedules_room_slot_key\""})

	err := repo.Create(context.Background(), &models.DefenseSchedule{ThesisID: "t1", Room: "Room 110/DI"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	mock.ExpectExec("UPDATE defense_schedules SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.DefenseSchedule{ID: "missing"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryDeleteAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM defense_schedules")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	count, err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	from := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	columns := append(append([]string{}, defenseRowColumns...), "thesis_title", "principal_name", "examinator_name", "supervisor_name", "student_name")
	rows := sqlmock.NewRows(columns).
		AddRow("d1", "t1", "p1", "e1", "s1", "st1", from, from.Add(35*time.Minute), "Room 110/DI", "tentative", from, from, "Thesis", "P", "E", "S", "Student")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND d.room = $1 AND (d.principal_id = $2 OR d.examinator_id = $2 OR d.supervisor_id = $2) AND d.start_time >= $3 ORDER BY d.start_time DESC, d.room ASC LIMIT 10 OFFSET 10")).
		WithArgs("Room 110/DI", "p1", from).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM defense_schedules d WHERE 1=1 AND d.room = $1")).
		WithArgs("Room 110/DI", "p1", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.DefenseScheduleFilter{
		Room: "Room 110/DI", ProfessorID: "p1", From: &from, Page: 2, PageSize: 10, SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, "Thesis", items[0].ThesisTitle)
	assert.Equal(t, "p1", items[0].PrincipalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

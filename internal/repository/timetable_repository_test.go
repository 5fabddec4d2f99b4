package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-edt/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timetableRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "group_id", "week_ref", "session_ids", "created_at", "updated_at"})
}

func TestTimetableRepositoryFindByGroupWeek(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := timetableRows().
		AddRow("tt-1", "g1", "2026-W05", "{s1,s2}", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, group_id, week_ref, session_ids, created_at, updated_at FROM timetables WHERE group_id = $1 AND week_ref = $2")).
		WithArgs("g1", "2026-W05").
		WillReturnRows(rows)

	timetable, err := repo.FindByGroupWeek(context.Background(), "g1", "2026-W05")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", timetable.ID)
	assert.Len(t, timetable.SessionIDs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByGroupWeekNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery("SELECT .+ FROM timetables WHERE group_id = ").
		WithArgs("ghost", "2026-W05").
		WillReturnRows(timetableRows())

	_, err := repo.FindByGroupWeek(context.Background(), "ghost", "2026-W05")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByWeek(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := timetableRows().
		AddRow("tt-1", "g1", "2026-W05", "{s1}", time.Now(), time.Now()).
		AddRow("tt-2", "g2", "2026-W05", "{s2}", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, group_id, week_ref, session_ids, created_at, updated_at FROM timetables WHERE week_ref = $1 ORDER BY group_id ASC")).
		WithArgs("2026-W05").
		WillReturnRows(rows)

	timetables, err := repo.ListByWeek(context.Background(), "2026-W05")
	require.NoError(t, err)
	require.Len(t, timetables, 2)
	assert.Equal(t, "g1", timetables[0].GroupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsertWithTx(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "g1", "2026-W05", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	timetable := &models.Timetable{GroupID: "g1", WeekRef: "2026-W05", SessionIDs: []string{"s1"}}
	require.NoError(t, repo.UpsertWithTx(context.Background(), tx, timetable))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, timetable.ID, "generated id is written back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsertNilTx(t *testing.T) {
	db, _, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	err := repo.UpsertWithTx(context.Background(), nil, &models.Timetable{GroupID: "g1"})
	require.Error(t, err)
}

func TestTimetableRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "tt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

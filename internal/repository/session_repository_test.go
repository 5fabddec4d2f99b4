package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uni-edt/timetable-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "subject_id", "teacher_id", "room_id", "group_ids", "day", "start_slot_index", "slot_count", "type", "created_at", "updated_at"})
}

func TestSessionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sessionRows().
		AddRow("s1", "algo", "t1", "r1", "{g1,g2}", "monday", 0, 1, "CM", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, subject_id, teacher_id, room_id, group_ids, day, start_slot_index, slot_count, type, created_at, updated_at FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(rows)

	session, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "algo", session.SubjectID)
	assert.Equal(t, pq.StringArray{"g1", "g2"}, session.GroupIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = ").
		WithArgs("ghost").
		WillReturnRows(sessionRows())

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByIDsEmpty(t *testing.T) {
	db, _, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	sessions, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, sessions)
}

func TestSessionRepositoryFindSharingResources(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sessionRows().
		AddRow("s1", "algo", "t1", "r9", "{g9}", "monday", 1, 1, "CM", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM sessions\s+WHERE day = \$1 AND \(teacher_id = \$2 OR room_id = \$3 OR group_ids && \$4\) ORDER BY start_slot_index ASC`).
		WithArgs("monday", "t1", "r1", pq.Array([]string{"g1"})).
		WillReturnRows(rows)

	sessions, err := repo.FindSharingResources(context.Background(), models.Monday, "t1", "r1", []string{"g1"}, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindSharingResourcesExcludes(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM sessions\s+WHERE day = \$1 AND \(teacher_id = \$2 OR room_id = \$3 OR group_ids && \$4\) AND id <> \$5 ORDER BY start_slot_index ASC`).
		WithArgs("monday", "t1", "r1", pq.Array([]string{"g1"}), "s-self").
		WillReturnRows(sessionRows())

	sessions, err := repo.FindSharingResources(context.Background(), models.Monday, "t1", "r1", []string{"g1"}, "s-self")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBulkCreateWithTx(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs(sqlmock.AnyArg(), "algo", "t1", "r1", sqlmock.AnyArg(), "monday", 0, 1, "CM", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	sessions := []models.Session{{
		SubjectID:      "algo",
		TeacherID:      "t1",
		RoomID:         "r1",
		GroupIDs:       pq.StringArray{"g1"},
		Day:            models.Monday,
		StartSlotIndex: 0,
		SlotCount:      1,
		Type:           models.Lecture,
	}}
	require.NoError(t, repo.BulkCreateWithTx(context.Background(), tx, sessions))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, sessions[0].ID, "generated id is written back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBulkCreateNilTx(t *testing.T) {
	db, _, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	err := repo.BulkCreateWithTx(context.Background(), nil, []models.Session{{SubjectID: "algo"}})
	require.Error(t, err)
}

func TestSessionRepositoryUpdatePlacement(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET room_id = $1, day = $2, start_slot_index = $3, updated_at = $4 WHERE id = $5")).
		WithArgs("r2", "thursday", 2, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{ID: "s1", RoomID: "r2", Day: models.Thursday, StartSlotIndex: 2}
	require.NoError(t, repo.UpdatePlacement(context.Background(), session))
	assert.False(t, session.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteByIDs(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByIDs(context.Background(), []string{"s1", "s2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	require.NoError(t, repo.DeleteByIDs(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
	"github.com/uni-edt/timetable-api/pkg/config"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

func TestTimetableGeneratorServiceGenerateSuccess(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	fx := newGeneratorFixture(t, generatorFixtureConfig{tx: txProvider})

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
	require.NoError(t, err)

	assert.Equal(t, 4, resp.Stats.TotalDemands)
	assert.Equal(t, 4, resp.Stats.PlacedSessions)
	assert.Equal(t, 0, resp.Stats.UnplacedDemands)
	assert.Empty(t, resp.UnplacedDemands)
	assert.Len(t, fx.sessions.created, 4)
	require.NotEmpty(t, resp.Timetables)
	for _, timetable := range resp.Timetables {
		assert.Equal(t, "2026-W05", timetable.WeekRef)
		assert.NotEmpty(t, timetable.SessionIDs)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableGeneratorServiceNeverPlacesWednesdayAfternoon(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	fx := newGeneratorFixture(t, generatorFixtureConfig{tx: txProvider})

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
	require.NoError(t, err)

	for _, session := range fx.sessions.created {
		if session.Day == models.Wednesday {
			assert.LessOrEqual(t, session.EndSlotIndex(), models.MorningSlots-1,
				"wednesday sessions must end in the morning")
		}
	}
}

func TestTimetableGeneratorServiceNoResourceOverlap(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	shared := models.Group{ID: "g1", Size: 30}
	subjects := []models.ResolvedSubject{
		resolvedSubject("algo", models.Lecture, 4.5, shared),
		resolvedSubject("db", models.Tutorial, 3, shared),
		resolvedSubject("net", models.Practical, 3, shared),
	}
	// Both lecture subjects taught by the same person.
	subjects[1].Teacher = subjects[0].Teacher
	subjects[1].Subject.TeacherID = subjects[0].Subject.TeacherID

	fx := newGeneratorFixture(t, generatorFixtureConfig{tx: txProvider, subjects: subjects})

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
	require.NoError(t, err)

	created := fx.sessions.created
	for i := range created {
		for j := i + 1; j < len(created); j++ {
			a, b := created[i], created[j]
			if a.Day != b.Day || !a.OverlapsRange(b.StartSlotIndex, b.SlotCount) {
				continue
			}
			assert.NotEqual(t, a.TeacherID, b.TeacherID, "overlapping sessions share a teacher")
			assert.NotEqual(t, a.RoomID, b.RoomID, "overlapping sessions share a room")
			for _, groupID := range a.GroupIDs {
				assert.False(t, b.HasGroup(groupID), "overlapping sessions share group %s", groupID)
			}
		}
	}
}

func TestTimetableGeneratorServiceReportsUnplacedDemands(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	huge := models.Group{ID: "g-huge", Size: 500}
	small := models.Group{ID: "g1", Size: 25}
	fx := newGeneratorFixture(t, generatorFixtureConfig{
		tx: txProvider,
		subjects: []models.ResolvedSubject{
			resolvedSubject("crowded", models.Lecture, 1.5, huge),
			resolvedSubject("algo", models.Lecture, 1.5, small),
		},
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
	require.NoError(t, err, "a shortfall does not fail the run")

	assert.Equal(t, 1, resp.Stats.PlacedSessions)
	require.Len(t, resp.UnplacedDemands, 1)
	assert.Equal(t, "crowded", resp.UnplacedDemands[0].Subject)
	assert.Equal(t, []string{"g-huge"}, resp.UnplacedDemands[0].Groups)
}

func TestTimetableGeneratorServiceIsDeterministic(t *testing.T) {
	run := func() []models.Session {
		txProvider, mock := newTxProviderMock(t)
		fx := newGeneratorFixture(t, generatorFixtureConfig{tx: txProvider})
		mock.ExpectBegin()
		mock.ExpectCommit()
		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
		require.NoError(t, err)
		return fx.sessions.created
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SubjectID, second[i].SubjectID)
		assert.Equal(t, first[i].Day, second[i].Day)
		assert.Equal(t, first[i].StartSlotIndex, second[i].StartSlotIndex)
		assert.Equal(t, first[i].RoomID, second[i].RoomID)
	}
}

func TestTimetableGeneratorServiceReplacesExistingWeek(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	fx := newGeneratorFixture(t, generatorFixtureConfig{
		tx: txProvider,
		existing: map[string]*models.Timetable{
			"g1|2026-W05": {ID: "tt-old", GroupID: "g1", WeekRef: "2026-W05", SessionIDs: []string{"old-1", "old-2"}},
		},
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"old-1", "old-2"}, fx.sessions.deleted,
		"sessions of the replaced timetable are removed")
}

func TestTimetableGeneratorServicePreconditions(t *testing.T) {
	t.Run("no subjects", func(t *testing.T) {
		fx := newGeneratorFixture(t, generatorFixtureConfig{subjects: []models.ResolvedSubject{}})
		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	})

	t.Run("no rooms", func(t *testing.T) {
		fx := newGeneratorFixture(t, generatorFixtureConfig{rooms: []models.Room{}})
		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	})

	t.Run("malformed week", func(t *testing.T) {
		fx := newGeneratorFixture(t, generatorFixtureConfig{})
		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "week-5"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})
}

func TestTimetableGeneratorServiceLease(t *testing.T) {
	t.Run("held lease blocks the run", func(t *testing.T) {
		lease := &leaseStub{acquireErr: appErrors.Clone(appErrors.ErrLeaseHeld, "generation already in progress")}
		fx := newGeneratorFixture(t, generatorFixtureConfig{lease: lease})

		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrLeaseHeld.Code, appErrors.FromError(err).Code)
		assert.Empty(t, lease.released)
	})

	t.Run("lease keyed by scope and week", func(t *testing.T) {
		txProvider, mock := newTxProviderMock(t)
		lease := &leaseStub{}
		fx := newGeneratorFixture(t, generatorFixtureConfig{tx: txProvider, lease: lease})

		mock.ExpectBegin()
		mock.ExpectCommit()

		_, err := fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{Week: "2026-W05"})
		require.NoError(t, err)
		assert.Equal(t, []string{"all:2026-W05"}, lease.acquired)
		assert.Equal(t, []string{"all:2026-W05"}, lease.released)

		mock.ExpectBegin()
		mock.ExpectCommit()

		_, err = fx.service.Generate(context.Background(), dto.GenerateTimetableRequest{
			Week: "2026-W06", Scope: dto.ScopeGroup, GroupID: "g1",
		})
		require.NoError(t, err)
		assert.Contains(t, lease.acquired, "g1:2026-W06")
	})
}

// --- Fixtures ---

type generatorFixtureConfig struct {
	subjects []models.ResolvedSubject
	rooms    []models.Room
	lease    generationLease
	tx       txProvider
	existing map[string]*models.Timetable
}

type generatorFixture struct {
	service    *TimetableGeneratorService
	sessions   *sessionStoreStub
	timetables *timetableStoreStub
}

func newGeneratorFixture(t *testing.T, cfg generatorFixtureConfig) *generatorFixture {
	t.Helper()

	subjects := cfg.subjects
	if subjects == nil {
		g1 := models.Group{ID: "g1", Size: 30}
		g2 := models.Group{ID: "g2", Size: 22}
		subjects = []models.ResolvedSubject{
			resolvedSubject("algo", models.Lecture, 3, g1),
			resolvedSubject("chem", models.Practical, 3, g1),
			resolvedSubject("math", models.Tutorial, 1.5, g2),
		}
	}
	rooms := cfg.rooms
	if rooms == nil {
		rooms = []models.Room{
			{ID: "amphi", Name: "Amphi A", Capacity: 120, TypesAllowed: []string{"CM", "TD"}},
			{ID: "lab", Name: "Lab 1", Capacity: 32, TypesAllowed: []string{"TP"}},
			{ID: "b12", Name: "B12", Capacity: 40, TypesAllowed: []string{"CM", "TD"}},
		}
	}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	sessions := &sessionStoreStub{}
	timetables := &timetableStoreStub{existing: cfg.existing}

	service := NewTimetableGeneratorService(
		subjectCatalogStub{items: subjects},
		roomCatalogStub{items: rooms},
		sessions,
		timetables,
		cfg.lease,
		nil,
		nil,
		tx,
		config.SchedulerConfig{},
		validator.New(),
		zap.NewNop(),
	)
	return &generatorFixture{service: service, sessions: sessions, timetables: timetables}
}

type subjectCatalogStub struct {
	items []models.ResolvedSubject
}

func (s subjectCatalogStub) ListResolved(ctx context.Context, groupID string) ([]models.ResolvedSubject, error) {
	if groupID == "" {
		return s.items, nil
	}
	filtered := make([]models.ResolvedSubject, 0, len(s.items))
	for _, item := range s.items {
		for _, g := range item.Groups {
			if g.ID == groupID {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered, nil
}

type roomCatalogStub struct {
	items []models.Room
}

func (s roomCatalogStub) ListAll(ctx context.Context) ([]models.Room, error) {
	return s.items, nil
}

type sessionStoreStub struct {
	created []models.Session
	deleted []string
}

func (s *sessionStoreStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error {
	s.created = append(s.created, sessions...)
	return nil
}

func (s *sessionStoreStub) DeleteByIDs(ctx context.Context, ids []string) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

type timetableStoreStub struct {
	existing map[string]*models.Timetable
	upserted []models.Timetable
}

func (s *timetableStoreStub) FindByGroupWeek(ctx context.Context, groupID, weekRef string) (*models.Timetable, error) {
	if timetable, ok := s.existing[groupID+"|"+weekRef]; ok {
		return timetable, nil
	}
	return nil, sql.ErrNoRows
}

func (s *timetableStoreStub) ListByWeek(ctx context.Context, weekRef string) ([]models.Timetable, error) {
	return s.upserted, nil
}

func (s *timetableStoreStub) UpsertWithTx(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable) error {
	timetable.ID = fmt.Sprintf("tt-%d", len(s.upserted)+1)
	s.upserted = append(s.upserted, *timetable)
	return nil
}

type leaseStub struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (s *leaseStub) Acquire(ctx context.Context, key string) error {
	if s.acquireErr != nil {
		return s.acquireErr
	}
	s.acquired = append(s.acquired, key)
	return nil
}

func (s *leaseStub) Release(ctx context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

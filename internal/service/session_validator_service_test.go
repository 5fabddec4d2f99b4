package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
)

func validPlacement() dto.SessionPlacement {
	return dto.SessionPlacement{
		TeacherID:      "t1",
		GroupIDs:       []string{"g1"},
		RoomID:         "r1",
		Day:            models.Monday,
		StartSlotIndex: 0,
		SlotCount:      1,
		Type:           models.Lecture,
	}
}

func TestSessionValidatorServiceValidPlacement(t *testing.T) {
	fx := newValidatorFixture(validatorFixtureConfig{})

	validation, err := fx.service.Validate(context.Background(), validPlacement())
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Errors)
}

func TestSessionValidatorServiceConstraintMessages(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *dto.SessionPlacement)
		cfg     validatorFixtureConfig
		message string
	}{
		{
			name:    "unknown day",
			mutate:  func(p *dto.SessionPlacement) { p.Day = "funday" },
			message: `unknown day "funday"`,
		},
		{
			name: "wednesday afternoon start",
			mutate: func(p *dto.SessionPlacement) {
				p.Day = models.Wednesday
				p.StartSlotIndex = 3
			},
			message: "slot 3 is not available on wednesday",
		},
		{
			name: "two slots falling off wednesday morning",
			mutate: func(p *dto.SessionPlacement) {
				p.Day = models.Wednesday
				p.StartSlotIndex = 2
				p.SlotCount = 2
				p.Type = models.Practical
			},
			message: "session does not fit on wednesday: slot 3 is not available",
		},
		{
			name:    "teacher missing",
			mutate:  func(p *dto.SessionPlacement) { p.TeacherID = "ghost" },
			message: "teacher ghost not found",
		},
		{
			name: "teacher unavailable",
			cfg: validatorFixtureConfig{
				teachers: map[string]*models.Teacher{
					"t1": {ID: "t1", Name: "Dupont", Availability: models.WeekAvailability{
						models.Monday: {Morning: false, Afternoon: true},
					}},
				},
			},
			message: "teacher Dupont is unavailable on monday morning",
		},
		{
			name:    "room missing",
			mutate:  func(p *dto.SessionPlacement) { p.RoomID = "ghost" },
			message: "room ghost not found",
		},
		{
			name:    "group missing",
			mutate:  func(p *dto.SessionPlacement) { p.GroupIDs = []string{"g1", "ghost"} },
			message: "one or more groups not found",
		},
		{
			name:    "room type not allowed",
			mutate:  func(p *dto.SessionPlacement) { p.Type = models.Practical },
			message: "room B12 does not allow TP sessions",
		},
		{
			name: "room too small",
			cfg: validatorFixtureConfig{
				groups: map[string]models.Group{"g1": {ID: "g1", Size: 80}},
			},
			message: "room B12 seats 40 but the groups total 80",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newValidatorFixture(tc.cfg)
			placement := validPlacement()
			if tc.mutate != nil {
				tc.mutate(&placement)
			}

			validation, err := fx.service.Validate(context.Background(), placement)
			require.NoError(t, err)
			assert.False(t, validation.Valid)
			assert.Contains(t, validation.Errors, tc.message)
		})
	}
}

func TestSessionValidatorServiceRejectsBadPayload(t *testing.T) {
	fx := newValidatorFixture(validatorFixtureConfig{})
	placement := validPlacement()
	placement.SlotCount = 3

	_, err := fx.service.Validate(context.Background(), placement)
	require.Error(t, err)
}

func TestSessionValidatorServiceCheckConflictsDimensions(t *testing.T) {
	existing := models.Session{
		ID:             "s-ex",
		SubjectID:      "algo",
		TeacherID:      "t1",
		RoomID:         "r1",
		GroupIDs:       []string{"g1", "g2"},
		Day:            models.Monday,
		StartSlotIndex: 0,
		SlotCount:      2,
	}
	fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{existing}})

	placement := validPlacement()
	placement.GroupIDs = []string{"g1", "g2"}

	conflicts, err := fx.service.CheckConflicts(context.Background(), placement, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 4, "teacher, room, and one record per shared group")

	dimensions := make(map[string]int)
	for _, conflict := range conflicts {
		dimensions[conflict.Dimension]++
		assert.Equal(t, "s-ex", conflict.Session.ID)
	}
	assert.Equal(t, 1, dimensions[models.ConflictTeacher])
	assert.Equal(t, 1, dimensions[models.ConflictRoom])
	assert.Equal(t, 2, dimensions[models.ConflictGroup])
}

func TestSessionValidatorServiceCheckConflictsIgnoresDisjointSlots(t *testing.T) {
	existing := models.Session{
		ID: "s-ex", TeacherID: "t1", RoomID: "r1", GroupIDs: []string{"g1"},
		Day: models.Monday, StartSlotIndex: 3, SlotCount: 1,
	}
	fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{existing}})

	conflicts, err := fx.service.CheckConflicts(context.Background(), validPlacement(), "")
	require.NoError(t, err)
	assert.Empty(t, conflicts, "slot ranges do not intersect")
}

func TestSessionValidatorServiceCheckConflictsBoundaryAdjacency(t *testing.T) {
	// Candidate covers slots 0-1; an existing session starting at slot 1
	// overlaps, one starting at slot 2 does not.
	overlapping := models.Session{ID: "s-a", TeacherID: "t1", RoomID: "other", Day: models.Monday, StartSlotIndex: 1, SlotCount: 1}
	adjacent := models.Session{ID: "s-b", TeacherID: "t1", RoomID: "other", Day: models.Monday, StartSlotIndex: 2, SlotCount: 1}
	fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{overlapping, adjacent}})

	placement := validPlacement()
	placement.SlotCount = 2
	placement.Type = models.Practical

	conflicts, err := fx.service.CheckConflicts(context.Background(), placement, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "s-a", conflicts[0].Session.ID)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Dimension)
}

func TestSessionValidatorServiceCheckConflictsExcludesSession(t *testing.T) {
	existing := models.Session{
		ID: "s-self", TeacherID: "t1", RoomID: "r1", GroupIDs: []string{"g1"},
		Day: models.Monday, StartSlotIndex: 0, SlotCount: 1,
	}
	fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{existing}})

	conflicts, err := fx.service.CheckConflicts(context.Background(), validPlacement(), "s-self")
	require.NoError(t, err)
	assert.Empty(t, conflicts, "a session never conflicts with itself")
}

func TestSessionValidatorServiceInspect(t *testing.T) {
	t.Run("invalid placement skips conflict lookup", func(t *testing.T) {
		existing := models.Session{ID: "s-ex", TeacherID: "t1", RoomID: "r1", Day: models.Monday, StartSlotIndex: 0, SlotCount: 1}
		fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{existing}})

		placement := validPlacement()
		placement.TeacherID = "ghost"

		resp, err := fx.service.Inspect(context.Background(), placement, "")
		require.NoError(t, err)
		assert.False(t, resp.Valid)
		assert.NotEmpty(t, resp.Errors)
		assert.Empty(t, resp.Conflicts)
	})

	t.Run("conflicts flip the verdict", func(t *testing.T) {
		existing := models.Session{
			ID: "s-ex", TeacherID: "t1", RoomID: "other", GroupIDs: []string{"g9"},
			Day: models.Monday, StartSlotIndex: 0, SlotCount: 1,
		}
		fx := newValidatorFixture(validatorFixtureConfig{sessions: []models.Session{existing}})

		resp, err := fx.service.Inspect(context.Background(), validPlacement(), "")
		require.NoError(t, err)
		assert.False(t, resp.Valid)
		assert.Empty(t, resp.Errors)
		require.Len(t, resp.Conflicts, 1)
		assert.Equal(t, models.ConflictTeacher, resp.Conflicts[0].Type)
		assert.Equal(t, "s-ex", resp.Conflicts[0].SessionID)
	})
}

// --- Fixtures ---

type validatorFixtureConfig struct {
	teachers map[string]*models.Teacher
	rooms    map[string]*models.Room
	groups   map[string]models.Group
	sessions []models.Session
}

type validatorFixture struct {
	service *SessionValidatorService
}

func newValidatorFixture(cfg validatorFixtureConfig) *validatorFixture {
	teachers := cfg.teachers
	if teachers == nil {
		teachers = map[string]*models.Teacher{
			"t1": {ID: "t1", Name: "Dupont", Availability: models.DefaultAvailability()},
		}
	}
	rooms := cfg.rooms
	if rooms == nil {
		rooms = map[string]*models.Room{
			"r1": {ID: "r1", Name: "B12", Capacity: 40, TypesAllowed: []string{"CM", "TD"}},
		}
	}
	groups := cfg.groups
	if groups == nil {
		groups = map[string]models.Group{"g1": {ID: "g1", Size: 30}, "g2": {ID: "g2", Size: 25}}
	}

	service := NewSessionValidatorService(
		teacherReaderStub{items: teachers},
		roomReaderStub{items: rooms},
		groupReaderStub{items: groups},
		conflictSessionStub{items: cfg.sessions},
		validator.New(),
		zap.NewNop(),
	)
	return &validatorFixture{service: service}
}

type teacherReaderStub struct {
	items map[string]*models.Teacher
}

func (s teacherReaderStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.items[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

type roomReaderStub struct {
	items map[string]*models.Room
}

func (s roomReaderStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := s.items[id]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

type groupReaderStub struct {
	items map[string]models.Group
}

func (s groupReaderStub) FindByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	found := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		if group, ok := s.items[id]; ok {
			found = append(found, group)
		}
	}
	return found, nil
}

type conflictSessionStub struct {
	items []models.Session
}

func (s conflictSessionStub) FindSharingResources(ctx context.Context, day models.Day, teacherID, roomID string, groupIDs []string, excludeID string) ([]models.Session, error) {
	matched := make([]models.Session, 0)
	for _, session := range s.items {
		if session.ID == excludeID || session.Day != day {
			continue
		}
		shares := session.TeacherID == teacherID || session.RoomID == roomID
		for _, groupID := range groupIDs {
			if session.HasGroup(groupID) {
				shares = true
			}
		}
		if shares {
			matched = append(matched, session)
		}
	}
	return matched, nil
}

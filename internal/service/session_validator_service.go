package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

type validatorTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type validatorRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type validatorGroupReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Group, error)
}

type conflictSessionReader interface {
	FindSharingResources(ctx context.Context, day models.Day, teacherID, roomID string, groupIDs []string, excludeID string) ([]models.Session, error)
}

// SessionValidatorService performs constraint validation and conflict
// detection for ad-hoc session edits. Both checks re-derive truth from
// persisted state, so they stay correct for edits made long after a
// generation run.
type SessionValidatorService struct {
	teachers  validatorTeacherReader
	rooms     validatorRoomReader
	groups    validatorGroupReader
	sessions  conflictSessionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionValidatorService wires validator dependencies.
func NewSessionValidatorService(
	teachers validatorTeacherReader,
	rooms validatorRoomReader,
	groups validatorGroupReader,
	sessions conflictSessionReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionValidatorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionValidatorService{
		teachers:  teachers,
		rooms:     rooms,
		groups:    groups,
		sessions:  sessions,
		validator: validate,
		logger:    logger,
	}
}

// Validate checks one candidate placement against calendar, teacher, and
// room constraints. The returned message list is empty when the
// placement is valid. Only infrastructure failures surface as errors.
func (s *SessionValidatorService) Validate(ctx context.Context, placement dto.SessionPlacement) (*dto.SessionValidation, error) {
	if err := s.validator.Struct(placement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	messages := make([]string, 0)

	if !models.IsValidDay(placement.Day) {
		messages = append(messages, fmt.Sprintf("unknown day %q", placement.Day))
		return &dto.SessionValidation{Valid: false, Errors: messages}, nil
	}

	start := placement.StartSlotIndex
	end := start + placement.SlotCount - 1
	if !models.HasSlot(placement.Day, start) {
		messages = append(messages, fmt.Sprintf("slot %d is not available on %s", start, placement.Day))
	} else if !models.HasSlot(placement.Day, end) {
		messages = append(messages, fmt.Sprintf("session does not fit on %s: slot %d is not available", placement.Day, end))
	}

	teacher, err := s.teachers.FindByID(ctx, placement.TeacherID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		messages = append(messages, fmt.Sprintf("teacher %s not found", placement.TeacherID))
	} else {
		for slot := start; slot <= end; slot++ {
			if !models.HasSlot(placement.Day, slot) {
				continue
			}
			period := models.PeriodOf(slot)
			if !teacher.Availability.AvailableOn(placement.Day, period) {
				messages = append(messages, fmt.Sprintf("teacher %s is unavailable on %s %s", teacher.Name, placement.Day, period))
				break
			}
		}
	}

	room, err := s.rooms.FindByID(ctx, placement.RoomID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
		}
		messages = append(messages, fmt.Sprintf("room %s not found", placement.RoomID))
		room = nil
	}

	groups, err := s.groups.FindByIDs(ctx, placement.GroupIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}
	if len(groups) != len(placement.GroupIDs) {
		messages = append(messages, "one or more groups not found")
	}

	if room != nil {
		if !room.Allows(placement.Type) {
			messages = append(messages, fmt.Sprintf("room %s does not allow %s sessions", room.Name, placement.Type))
		}
		if headcount := models.CombinedSize(groups); room.Capacity < headcount {
			messages = append(messages, fmt.Sprintf("room %s seats %d but the groups total %d", room.Name, room.Capacity, headcount))
		}
	}

	return &dto.SessionValidation{Valid: len(messages) == 0, Errors: messages}, nil
}

// CheckConflicts lists every persisted session that overlaps the
// candidate's slot range on a shared teacher, room, or group. One
// existing session yields one record per conflicting dimension.
func (s *SessionValidatorService) CheckConflicts(ctx context.Context, placement dto.SessionPlacement, excludeSessionID string) ([]models.SessionConflict, error) {
	existing, err := s.sessions.FindSharingResources(ctx, placement.Day, placement.TeacherID, placement.RoomID, placement.GroupIDs, excludeSessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query sessions for conflicts")
	}

	conflicts := make([]models.SessionConflict, 0)
	for i := range existing {
		session := existing[i]
		if !session.OverlapsRange(placement.StartSlotIndex, placement.SlotCount) {
			continue
		}
		if session.TeacherID == placement.TeacherID {
			conflicts = append(conflicts, models.SessionConflict{Dimension: models.ConflictTeacher, Session: &session})
		}
		if session.RoomID == placement.RoomID {
			conflicts = append(conflicts, models.SessionConflict{Dimension: models.ConflictRoom, Session: &session})
		}
		for _, groupID := range placement.GroupIDs {
			if session.HasGroup(groupID) {
				conflicts = append(conflicts, models.SessionConflict{Dimension: models.ConflictGroup, GroupID: groupID, Session: &session})
			}
		}
	}
	return conflicts, nil
}

// Inspect combines validation and conflict detection for the ad-hoc
// validate endpoint. Conflicts are only gathered when the placement is
// structurally valid.
func (s *SessionValidatorService) Inspect(ctx context.Context, placement dto.SessionPlacement, excludeSessionID string) (*dto.ValidateSessionResponse, error) {
	validation, err := s.Validate(ctx, placement)
	if err != nil {
		return nil, err
	}

	resp := &dto.ValidateSessionResponse{Valid: validation.Valid, Errors: validation.Errors}
	if !validation.Valid {
		return resp, nil
	}

	conflicts, err := s.CheckConflicts(ctx, placement, excludeSessionID)
	if err != nil {
		return nil, err
	}
	for _, conflict := range conflicts {
		resp.Conflicts = append(resp.Conflicts, dto.SessionConflictSummary{
			Type:           conflict.Dimension,
			SessionID:      conflict.Session.ID,
			Day:            conflict.Session.Day,
			StartSlotIndex: conflict.Session.StartSlotIndex,
		})
	}
	resp.Valid = len(resp.Conflicts) == 0
	return resp, nil
}

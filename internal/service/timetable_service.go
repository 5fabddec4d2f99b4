package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
	"github.com/uni-edt/timetable-api/pkg/export"
)

type timetableAccessor interface {
	FindByGroupWeek(ctx context.Context, groupID, weekRef string) (*models.Timetable, error)
	ListByWeek(ctx context.Context, weekRef string) ([]models.Timetable, error)
	Delete(ctx context.Context, id string) error
}

type sessionAccessor interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Session, error)
	UpdatePlacement(ctx context.Context, session *models.Session) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

type placementInspector interface {
	Validate(ctx context.Context, placement dto.SessionPlacement) (*dto.SessionValidation, error)
	CheckConflicts(ctx context.Context, placement dto.SessionPlacement, excludeSessionID string) ([]models.SessionConflict, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type exportSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type exportRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportResult carries a rendered timetable document.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

// TimetableService serves timetable reads, single-session moves,
// deletion, and document export.
type TimetableService struct {
	timetables timetableAccessor
	sessions   sessionAccessor
	inspector  placementInspector
	subjects   exportSubjectReader
	rooms      exportRoomReader
	cache      timetableCache
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	cacheTTL   time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService wires timetable read/edit dependencies. The cache
// may be nil.
func NewTimetableService(
	timetables timetableAccessor,
	sessions sessionAccessor,
	inspector placementInspector,
	subjects exportSubjectReader,
	rooms exportRoomReader,
	cache timetableCache,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &TimetableService{
		timetables: timetables,
		sessions:   sessions,
		inspector:  inspector,
		subjects:   subjects,
		rooms:      rooms,
		cache:      cache,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cacheTTL:   cacheTTL,
		validator:  validate,
		logger:     logger,
	}
}

// GetWeek returns every group's timetable for a week, with sessions
// loaded.
func (s *TimetableService) GetWeek(ctx context.Context, week string) ([]models.TimetableView, error) {
	if !models.IsValidWeekRef(week) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week %q must match YYYY-Www", week))
	}

	cacheKey := "timetable:week:" + week
	var cached []models.TimetableView
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	timetables, err := s.timetables.ListByWeek(ctx, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}

	views := make([]models.TimetableView, 0, len(timetables))
	for _, timetable := range timetables {
		view, err := s.buildView(ctx, timetable)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}

	s.cacheSet(ctx, cacheKey, views)
	return views, nil
}

// GetGroupWeek returns one group's timetable for a week.
func (s *TimetableService) GetGroupWeek(ctx context.Context, groupID, week string) (*models.TimetableView, error) {
	if !models.IsValidWeekRef(week) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week %q must match YYYY-Www", week))
	}

	cacheKey := fmt.Sprintf("timetable:%s:%s", groupID, week)
	var cached models.TimetableView
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	timetable, err := s.timetables.FindByGroupWeek(ctx, groupID, week)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable for group %s in %s", groupID, week))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	view, err := s.buildView(ctx, *timetable)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, view)
	return view, nil
}

// MoveSession mutates the placement of one session after re-running
// validation and conflict detection against persisted state. Conflicting
// moves are rejected, never force-applied.
func (s *TimetableService) MoveSession(ctx context.Context, sessionID string, req dto.MoveSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("session %s not found", sessionID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if req.Day != "" {
		session.Day = req.Day
	}
	if req.StartSlotIndex != nil {
		session.StartSlotIndex = *req.StartSlotIndex
	}
	if req.RoomID != "" {
		session.RoomID = req.RoomID
	}

	placement := dto.SessionPlacement{
		TeacherID:      session.TeacherID,
		GroupIDs:       session.GroupIDs,
		RoomID:         session.RoomID,
		Day:            session.Day,
		StartSlotIndex: session.StartSlotIndex,
		SlotCount:      session.SlotCount,
		Type:           session.Type,
	}

	validation, err := s.inspector.Validate(ctx, placement)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(validation.Errors, "; "))
	}

	conflicts, err := s.inspector.CheckConflicts(ctx, placement, sessionID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("move conflicts with %d existing session(s)", len(conflicts)))
	}

	if err := s.sessions.UpdatePlacement(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move session")
	}

	s.invalidate(ctx)
	return session, nil
}

// Delete removes a group's weekly timetable together with its sessions.
func (s *TimetableService) Delete(ctx context.Context, groupID, week string) error {
	timetable, err := s.timetables.FindByGroupWeek(ctx, groupID, week)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable for group %s in %s", groupID, week))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	if err := s.sessions.DeleteByIDs(ctx, timetable.SessionIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
	}
	if err := s.timetables.Delete(ctx, timetable.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}

	s.invalidate(ctx)
	return nil
}

// Export renders a group's weekly timetable as a CSV or PDF document,
// one row per slot and one column per day.
func (s *TimetableService) Export(ctx context.Context, groupID, week, format string) (*ExportResult, error) {
	view, err := s.GetGroupWeek(ctx, groupID, week)
	if err != nil {
		return nil, err
	}

	grid, err := s.buildGrid(ctx, view.Sessions)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(*grid)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("timetable_%s_%s.csv", groupID, week),
			Data:        data,
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(*grid, fmt.Sprintf("Timetable %s", week))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("timetable_%s_%s.pdf", groupID, week),
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *TimetableService) buildView(ctx context.Context, timetable models.Timetable) (*models.TimetableView, error) {
	sessions, err := s.sessions.FindByIDs(ctx, timetable.SessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return &models.TimetableView{Timetable: timetable, Sessions: sessions}, nil
}

// buildGrid lays sessions out on the weekly grid. Multi-slot sessions
// repeat their label in every covered cell.
func (s *TimetableService) buildGrid(ctx context.Context, sessions []models.Session) (*export.Grid, error) {
	headers := make([]string, 0, len(models.Days)+1)
	headers = append(headers, "Slot")
	for _, day := range models.Days {
		headers = append(headers, titleDay(day))
	}

	cells := make(map[models.Day]map[int]string)
	for _, session := range sessions {
		label, err := s.sessionLabel(ctx, session)
		if err != nil {
			return nil, err
		}
		if cells[session.Day] == nil {
			cells[session.Day] = make(map[int]string)
		}
		for slot := session.StartSlotIndex; slot <= session.EndSlotIndex(); slot++ {
			cells[session.Day][slot] = label
		}
	}

	rows := make([][]string, 0, models.SlotsPerDay)
	for slot := 0; slot < models.SlotsPerDay; slot++ {
		row := make([]string, 0, len(headers))
		row = append(row, fmt.Sprintf("Slot %d", slot+1))
		for _, day := range models.Days {
			row = append(row, cells[day][slot])
		}
		rows = append(rows, row)
	}

	return &export.Grid{Headers: headers, Rows: rows}, nil
}

func titleDay(day models.Day) string {
	raw := string(day)
	if raw == "" {
		return raw
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}

func (s *TimetableService) sessionLabel(ctx context.Context, session models.Session) (string, error) {
	subjectName := session.SubjectID
	if subject, err := s.subjects.FindByID(ctx, session.SubjectID); err == nil {
		subjectName = subject.Code
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	roomName := session.RoomID
	if room, err := s.rooms.FindByID(ctx, session.RoomID); err == nil {
		roomName = room.Name
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	return fmt.Sprintf("%s %s (%s)", subjectName, session.Type, roomName), nil
}

func (s *TimetableService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("timetable cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *TimetableService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("timetable cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *TimetableService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "timetable:*"); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.Error(err))
	}
}

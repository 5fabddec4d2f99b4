package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
	"github.com/uni-edt/timetable-api/pkg/config"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

type subjectCatalog interface {
	ListResolved(ctx context.Context, groupID string) ([]models.ResolvedSubject, error)
}

type roomCatalog interface {
	ListAll(ctx context.Context) ([]models.Room, error)
}

type sessionStore interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

type timetableStore interface {
	FindByGroupWeek(ctx context.Context, groupID, weekRef string) (*models.Timetable, error)
	ListByWeek(ctx context.Context, weekRef string) ([]models.Timetable, error)
	UpsertWithTx(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable) error
}

type generationLease interface {
	Acquire(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type generationRecorder interface {
	RecordGeneration(placed, unplaced int, duration time.Duration)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableGeneratorService runs the weekly generation pipeline: demand
// expansion, difficulty ordering, greedy placement, and timetable
// assembly. One run is a single synchronous pass guarded by an exclusive
// lease per scope and week.
type TimetableGeneratorService struct {
	subjects   subjectCatalog
	rooms      roomCatalog
	sessions   sessionStore
	timetables timetableStore
	lease      generationLease
	cache      cacheInvalidator
	metrics    generationRecorder
	tx         txProvider
	weights    schedulerWeights
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableGeneratorService wires generator dependencies. Lease,
// cache, and metrics may be nil; the run then proceeds without the
// corresponding side effects.
func NewTimetableGeneratorService(
	subjects subjectCatalog,
	rooms roomCatalog,
	sessions sessionStore,
	timetables timetableStore,
	lease generationLease,
	cache cacheInvalidator,
	metrics generationRecorder,
	tx txProvider,
	cfg config.SchedulerConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	weights := defaultSchedulerWeights()
	if cfg.WeightTeacherPreference > 0 {
		weights.TeacherPreference = float64(cfg.WeightTeacherPreference)
	}
	if cfg.WeightRoomFit > 0 {
		weights.RoomFit = float64(cfg.WeightRoomFit)
	}
	if cfg.WeightBalance > 0 {
		weights.Balance = float64(cfg.WeightBalance)
	}
	return &TimetableGeneratorService{
		subjects:   subjects,
		rooms:      rooms,
		sessions:   sessions,
		timetables: timetables,
		lease:      lease,
		cache:      cache,
		metrics:    metrics,
		tx:         tx,
		weights:    weights,
		validator:  validate,
		logger:     logger,
	}
}

// Generate builds the timetables for one week. A run with unplaced
// demands still succeeds; the caller decides what to do with the
// shortfall.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	started := time.Now()

	if req.Scope == "" {
		req.Scope = dto.ScopeAll
	}
	if req.Rounding == "" {
		req.Rounding = dto.RoundingUp
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	if !models.IsValidWeekRef(req.Week) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week %q must match YYYY-Www", req.Week))
	}

	leaseKey := s.leaseKey(req)
	if s.lease != nil {
		if err := s.lease.Acquire(ctx, leaseKey); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx), leaseKey); err != nil {
				s.logger.Warn("failed to release generation lease", zap.String("key", leaseKey), zap.Error(err))
			}
		}()
	}

	groupFilter := ""
	if req.Scope == dto.ScopeGroup {
		groupFilter = req.GroupID
	}

	subjects, err := s.subjects.ListResolved(ctx, groupFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalog")
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no subjects defined for the requested scope")
	}

	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room catalog")
	}
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no rooms available for placement")
	}

	demands := buildDemands(subjects, req.Rounding)
	orderDemands(demands)

	search := newPlacementSearch(rooms, s.weights)
	placed := make([]models.Session, 0, len(demands))
	unplaced := make([]dto.UnplacedDemand, 0)

	for _, demand := range demands {
		chosen, ok := search.findBest(demand)
		if !ok {
			unplaced = append(unplaced, dto.UnplacedDemand{
				Subject: demand.Subject.Name,
				Type:    demand.Subject.Type,
				Groups:  demand.GroupIDs,
			})
			continue
		}
		search.commit(demand, chosen)
		placed = append(placed, models.Session{
			ID:             uuid.NewString(),
			SubjectID:      demand.Subject.ID,
			TeacherID:      demand.Subject.TeacherID,
			RoomID:         chosen.Room.ID,
			GroupIDs:       pq.StringArray(demand.GroupIDs),
			Day:            chosen.Day,
			StartSlotIndex: chosen.StartSlot,
			SlotCount:      demand.SlotCount,
			Type:           demand.Subject.Type,
		})
	}

	timetables, err := s.persist(ctx, req.Week, placed)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, req.Week)
	if s.metrics != nil {
		s.metrics.RecordGeneration(len(placed), len(unplaced), time.Since(started))
	}
	s.logger.Info("timetable generation completed",
		zap.String("week", req.Week),
		zap.String("scope", req.Scope),
		zap.Int("demands", len(demands)),
		zap.Int("placed", len(placed)),
		zap.Int("unplaced", len(unplaced)),
		zap.Duration("duration", time.Since(started)))

	return &dto.GenerateTimetableResponse{
		Timetables: timetables,
		Stats: dto.GenerationStats{
			TotalDemands:    len(demands),
			PlacedSessions:  len(placed),
			UnplacedDemands: len(unplaced),
		},
		UnplacedDemands: unplaced,
	}, nil
}

// persist writes the run's sessions and per-group timetables in one
// transaction, then removes the sessions the replaced timetables used to
// reference.
func (s *TimetableGeneratorService) persist(ctx context.Context, week string, placed []models.Session) ([]models.Timetable, error) {
	if len(placed) == 0 {
		return []models.Timetable{}, nil
	}

	// Deterministic assembly: groups appear in the order their first
	// session was placed.
	groupOrder := make([]string, 0)
	byGroup := make(map[string][]string)
	for _, session := range placed {
		for _, groupID := range session.GroupIDs {
			if _, seen := byGroup[groupID]; !seen {
				groupOrder = append(groupOrder, groupID)
			}
			byGroup[groupID] = append(byGroup[groupID], session.ID)
		}
	}

	staleSessionIDs := make([]string, 0)
	for _, groupID := range groupOrder {
		existing, err := s.timetables.FindByGroupWeek(ctx, groupID, week)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing timetable")
		}
		staleSessionIDs = append(staleSessionIDs, existing.SessionIDs...)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.sessions.BulkCreateWithTx(ctx, tx, placed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
	}

	timetables := make([]models.Timetable, 0, len(groupOrder))
	for _, groupID := range groupOrder {
		timetable := models.Timetable{
			GroupID:    groupID,
			WeekRef:    week,
			SessionIDs: pq.StringArray(byGroup[groupID]),
		}
		if err := s.timetables.UpsertWithTx(ctx, tx, &timetable); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert timetable")
		}
		timetables = append(timetables, timetable)
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation")
	}

	// Best effort: stale sessions from replaced timetables are no longer
	// referenced, removing them cannot undo the committed run.
	if err := s.sessions.DeleteByIDs(ctx, staleSessionIDs); err != nil {
		s.logger.Warn("failed to delete replaced sessions", zap.Int("count", len(staleSessionIDs)), zap.Error(err))
	}

	return timetables, nil
}

func (s *TimetableGeneratorService) invalidateCache(ctx context.Context, week string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("timetable:*%s*", week)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("week", week), zap.Error(err))
	}
}

func (s *TimetableGeneratorService) leaseKey(req dto.GenerateTimetableRequest) string {
	if req.Scope == dto.ScopeGroup {
		return fmt.Sprintf("%s:%s", req.GroupID, req.Week)
	}
	return fmt.Sprintf("all:%s", req.Week)
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uni-edt/timetable-api/internal/models"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type subjectGroupReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Group, error)
}

// CreateSubjectRequest represents payload for creating subjects.
type CreateSubjectRequest struct {
	Name               string   `json:"name" validate:"required,max=200"`
	Code               string   `json:"code" validate:"required,max=50"`
	WeeklyHours        float64  `json:"weekly_hours" validate:"required,gt=0"`
	Type               string   `json:"type" validate:"required,oneof=CM TD TP"`
	SlotsPerOccurrence int      `json:"slots_per_occurrence" validate:"omitempty,min=1,max=2"`
	TeacherID          string   `json:"teacher_id" validate:"required"`
	GroupIDs           []string `json:"group_ids" validate:"required,min=1,dive,required"`
}

// UpdateSubjectRequest represents payload for updating subjects.
type UpdateSubjectRequest struct {
	Name               string   `json:"name" validate:"required,max=200"`
	Code               string   `json:"code" validate:"required,max=50"`
	WeeklyHours        float64  `json:"weekly_hours" validate:"required,gt=0"`
	Type               string   `json:"type" validate:"required,oneof=CM TD TP"`
	SlotsPerOccurrence int      `json:"slots_per_occurrence" validate:"omitempty,min=1,max=2"`
	TeacherID          string   `json:"teacher_id" validate:"required"`
	GroupIDs           []string `json:"group_ids" validate:"required,min=1,dive,required"`
}

// SubjectService orchestrates course definition operations. Derived slot
// counts are recomputed on every write so the catalog the generator
// reads is always consistent with the declared weekly hours.
type SubjectService struct {
	repo      subjectRepository
	teachers  subjectTeacherReader
	groups    subjectGroupReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, teachers subjectTeacherReader, groups subjectGroupReader, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, teachers: teachers, groups: groups, validator: validate, logger: logger}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subjects, pagination, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create registers a new course definition.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if err := s.ensureReferences(ctx, req.TeacherID, req.GroupIDs); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:               strings.TrimSpace(req.Name),
		Code:               strings.TrimSpace(req.Code),
		WeeklyHours:        req.WeeklyHours,
		Type:               models.ActivityType(req.Type),
		SlotsPerOccurrence: req.SlotsPerOccurrence,
		TeacherID:          req.TeacherID,
		GroupIDs:           pq.StringArray(req.GroupIDs),
	}
	subject.Normalize()

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies an existing course definition.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.TeacherID, req.GroupIDs); err != nil {
		return nil, err
	}

	subject.Name = strings.TrimSpace(req.Name)
	subject.Code = strings.TrimSpace(req.Code)
	subject.WeeklyHours = req.WeeklyHours
	subject.Type = models.ActivityType(req.Type)
	subject.SlotsPerOccurrence = req.SlotsPerOccurrence
	subject.TeacherID = req.TeacherID
	subject.GroupIDs = pq.StringArray(req.GroupIDs)
	subject.Normalize()

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a course definition.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) ensureReferences(ctx context.Context, teacherID string, groupIDs []string) error {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s not found", teacherID))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}

	groups, err := s.groups.FindByIDs(ctx, groupIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check groups")
	}
	if len(groups) != len(groupIDs) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more groups not found")
	}
	return nil
}

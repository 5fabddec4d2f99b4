package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uni-edt/timetable-api/internal/models"
)

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db       *sqlx.DB
	teachers *TeacherRepository
	groups   *GroupRepository
}

// NewSubjectRepository constructs a SubjectRepository. The teacher and
// group repositories are used to resolve references for the engine.
func NewSubjectRepository(db *sqlx.DB, teachers *TeacherRepository, groups *GroupRepository) *SubjectRepository {
	return &SubjectRepository{db: db, teachers: teachers, groups: groups}
}

const subjectColumns = "id, name, code, weekly_hours, type, slots_per_occurrence, weekly_slot_count, teacher_id, group_ids, created_at, updated_at"

// List returns subjects matching filters along with total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(group_ids)", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"code":       true,
		"type":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", subjectColumns, base, sortBy, order, size, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// ListResolved loads the subject catalog for a generation run with
// teacher and groups resolved, in stable code order. When groupID is
// non-empty only subjects including that group are returned. Subjects
// whose teacher or groups cannot be resolved are skipped.
func (r *SubjectRepository) ListResolved(ctx context.Context, groupID string) ([]models.ResolvedSubject, error) {
	base := fmt.Sprintf("SELECT %s FROM subjects", subjectColumns)
	var subjects []models.Subject
	var err error
	if groupID != "" {
		err = r.db.SelectContext(ctx, &subjects, base+" WHERE $1 = ANY(group_ids) ORDER BY code ASC", groupID)
	} else {
		err = r.db.SelectContext(ctx, &subjects, base+" ORDER BY code ASC")
	}
	if err != nil {
		return nil, fmt.Errorf("list subjects for run: %w", err)
	}

	resolved := make([]models.ResolvedSubject, 0, len(subjects))
	for _, subject := range subjects {
		teacher, err := r.teachers.FindByID(ctx, subject.TeacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("resolve subject teacher: %w", err)
		}
		groups, err := r.groups.FindByIDs(ctx, subject.GroupIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve subject groups: %w", err)
		}
		if len(groups) == 0 {
			continue
		}
		resolved = append(resolved, models.ResolvedSubject{Subject: subject, Teacher: *teacher, Groups: groups})
	}
	return resolved, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a new subject record. Derived fields must already be
// normalized by the caller.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, code, weekly_hours, type, slots_per_occurrence, weekly_slot_count, teacher_id, group_ids, created_at, updated_at)
		VALUES (:id, :name, :code, :weekly_hours, :type, :slots_per_occurrence, :weekly_slot_count, :teacher_id, :group_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies an existing subject record.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, weekly_hours = :weekly_hours, type = :type, slots_per_occurrence = :slots_per_occurrence, weekly_slot_count = :weekly_slot_count, teacher_id = :teacher_id, group_ids = :group_ids, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject by id.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uni-edt/timetable-api/internal/models"
)

// TimetableRepository manages persistence for per-group weekly timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = "id, group_id, week_ref, session_ids, created_at, updated_at"

// FindByGroupWeek loads the timetable for one group and week.
func (r *TimetableRepository) FindByGroupWeek(ctx context.Context, groupID, weekRef string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE group_id = $1 AND week_ref = $2", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, groupID, weekRef); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// ListByWeek returns every group's timetable for a week.
func (r *TimetableRepository) ListByWeek(ctx context.Context, weekRef string) ([]models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE week_ref = $1 ORDER BY group_id ASC", timetableColumns)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, weekRef); err != nil {
		return nil, fmt.Errorf("list timetables by week: %w", err)
	}
	return timetables, nil
}

// UpsertWithTx creates or replaces the timetable for (group, week) using
// an existing transaction. The session list is replaced, not merged.
func (r *TimetableRepository) UpsertWithTx(ctx context.Context, tx *sqlx.Tx, timetable *models.Timetable) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	const query = `INSERT INTO timetables (id, group_id, week_ref, session_ids, created_at, updated_at)
		VALUES (:id, :group_id, :week_ref, :session_ids, :created_at, :updated_at)
		ON CONFLICT (group_id, week_ref)
		DO UPDATE SET session_ids = EXCLUDED.session_ids, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, timetable); err != nil {
		return fmt.Errorf("upsert timetable: %w", err)
	}
	return nil
}

// Delete removes a timetable by id. The caller is responsible for
// deleting the owned sessions first.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return nil
}

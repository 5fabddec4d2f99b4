package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uni-edt/timetable-api/internal/models"
)

// SessionRepository manages persistence for placed sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, subject_id, teacher_id, room_id, group_ids, day, start_slot_index, slot_count, type, created_at, updated_at"

// FindByID fetches a session by ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDs loads several sessions at once, ordered by day and slot.
func (r *SessionRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = ANY($1) ORDER BY day ASC, start_slot_index ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find sessions by ids: %w", err)
	}
	return sessions, nil
}

// FindSharingResources returns sessions on the given day whose teacher,
// room, or any group matches the candidate placement. The session being
// edited, if any, is excluded. Overlap filtering is the caller's concern.
func (r *SessionRepository) FindSharingResources(ctx context.Context, day models.Day, teacherID, roomID string, groupIDs []string, excludeID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions
		WHERE day = $1 AND (teacher_id = $2 OR room_id = $3 OR group_ids && $4)`, sessionColumns)
	args := []interface{}{day, teacherID, roomID, pq.Array(groupIDs)}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_slot_index ASC"

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("find sessions sharing resources: %w", err)
	}
	return sessions, nil
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, subject_id, teacher_id, room_id, group_ids, day, start_slot_index, slot_count, type, created_at, updated_at)
		VALUES (:id, :subject_id, :teacher_id, :room_id, :group_ids, :day, :start_slot_index, :slot_count, :type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// BulkCreateWithTx inserts sessions using an existing transaction.
func (r *SessionRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsertSessions(ctx, tx, sessions)
}

func (r *SessionRepository) bulkInsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	now := time.Now().UTC()
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO sessions (id, subject_id, teacher_id, room_id, group_ids, day, start_slot_index, slot_count, type, created_at, updated_at) VALUES (:id, :subject_id, :teacher_id, :room_id, :group_ids, :day, :start_slot_index, :slot_count, :type, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// UpdatePlacement mutates the day, start slot, and room of a session.
func (r *SessionRepository) UpdatePlacement(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET room_id = :room_id, day = :day, start_slot_index = :start_slot_index, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session placement: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given sessions.
func (r *SessionRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

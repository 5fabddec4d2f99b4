package models

import (
	"time"

	"github.com/lib/pq"
)

// Session is one placed teaching occurrence: a subject taught by a
// teacher to one or more groups, in a room, on a day, spanning one or two
// consecutive slots.
type Session struct {
	ID             string         `db:"id" json:"id"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	RoomID         string         `db:"room_id" json:"room_id"`
	GroupIDs       pq.StringArray `db:"group_ids" json:"group_ids"`
	Day            Day            `db:"day" json:"day"`
	StartSlotIndex int            `db:"start_slot_index" json:"start_slot_index"`
	SlotCount      int            `db:"slot_count" json:"slot_count"`
	Type           ActivityType   `db:"type" json:"type"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// EndSlotIndex returns the last slot index covered by the session.
func (s *Session) EndSlotIndex() int {
	return s.StartSlotIndex + s.SlotCount - 1
}

// OverlapsRange reports whether the session's slot range intersects
// [start, start+count-1]. Day equality is the caller's concern.
func (s *Session) OverlapsRange(start, count int) bool {
	end := start + count - 1
	return !(end < s.StartSlotIndex || start > s.EndSlotIndex())
}

// HasGroup reports whether the session involves the given group.
func (s *Session) HasGroup(groupID string) bool {
	for _, id := range s.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// SessionConflict records one conflicting dimension between a candidate
// placement and an existing session. A single session may conflict on
// several dimensions at once.
type SessionConflict struct {
	Dimension string   `json:"type"`
	GroupID   string   `json:"group_id,omitempty"`
	Session   *Session `json:"session"`
}

// Conflict dimensions.
const (
	ConflictTeacher = "teacher"
	ConflictRoom    = "room"
	ConflictGroup   = "group"
)

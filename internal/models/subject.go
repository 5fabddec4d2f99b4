package models

import (
	"math"
	"time"

	"github.com/lib/pq"
)

// ActivityType classifies a subject's teaching format and drives room
// eligibility and slot-count rules.
type ActivityType string

const (
	// Lecture (cours magistral).
	Lecture ActivityType = "CM"
	// Tutorial (travaux dirigés).
	Tutorial ActivityType = "TD"
	// Practical (travaux pratiques). Always occupies two consecutive slots.
	Practical ActivityType = "TP"
)

// ActivityTypes lists the supported activity types.
var ActivityTypes = []ActivityType{Lecture, Tutorial, Practical}

// IsValidActivityType reports whether t names a known activity type.
func IsValidActivityType(t ActivityType) bool {
	return t == Lecture || t == Tutorial || t == Practical
}

// Priority ranks activity types by placement difficulty: practicals are
// hardest to place, lectures easiest.
func (t ActivityType) Priority() int {
	switch t {
	case Practical:
		return 3
	case Tutorial:
		return 2
	default:
		return 1
	}
}

// Subject is a course definition: what must be taught, by whom, to which
// groups, and how many weekly slots it needs.
type Subject struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Code               string         `db:"code" json:"code"`
	WeeklyHours        float64        `db:"weekly_hours" json:"weekly_hours"`
	Type               ActivityType   `db:"type" json:"type"`
	SlotsPerOccurrence int            `db:"slots_per_occurrence" json:"slots_per_occurrence"`
	WeeklySlotCount    int            `db:"weekly_slot_count" json:"weekly_slot_count"`
	TeacherID          string         `db:"teacher_id" json:"teacher_id"`
	GroupIDs           pq.StringArray `db:"group_ids" json:"group_ids"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Normalize recomputes derived fields and enforces type invariants:
// weeklySlotCount = ceil(weeklyHours / slot duration), and practicals
// always take two consecutive slots regardless of the configured value.
func (s *Subject) Normalize() {
	s.WeeklySlotCount = int(math.Ceil(s.WeeklyHours / SlotDurationHours))
	if s.Type == Practical {
		s.SlotsPerOccurrence = 2
	}
	if s.SlotsPerOccurrence < 1 {
		s.SlotsPerOccurrence = 1
	}
	if s.SlotsPerOccurrence > 2 {
		s.SlotsPerOccurrence = 2
	}
}

// ResolvedSubject is a subject snapshot with its teacher and groups
// loaded, as consumed by the generation engine.
type ResolvedSubject struct {
	Subject Subject
	Teacher Teacher
	Groups  []Group
}

// SubjectFilter captures filtering options for listing subjects.
type SubjectFilter struct {
	GroupID   string
	TeacherID string
	Type      string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

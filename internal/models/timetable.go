package models

import (
	"time"

	"github.com/lib/pq"
)

// Timetable aggregates the sessions of one group for one scheduling week.
// The (group, week) pair is unique; regeneration replaces the session
// list rather than merging into it.
type Timetable struct {
	ID         string         `db:"id" json:"id"`
	GroupID    string         `db:"group_id" json:"group_id"`
	WeekRef    string         `db:"week_ref" json:"week_ref"`
	SessionIDs pq.StringArray `db:"session_ids" json:"session_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// TimetableView is a timetable with its sessions loaded for API reads.
type TimetableView struct {
	Timetable Timetable `json:"timetable"`
	Sessions  []Session `json:"sessions"`
}

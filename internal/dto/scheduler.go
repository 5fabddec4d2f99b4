package dto

import "github.com/uni-edt/timetable-api/internal/models"

// RoundingMode controls how fractional multi-slot occurrences are handled
// by the demand generator.
type RoundingMode string

const (
	// RoundingUp adds one extra full occurrence to cover a remainder slot.
	RoundingUp RoundingMode = "up"
	// RoundingDown drops the remainder, under-provisioning the subject.
	RoundingDown RoundingMode = "down"
)

// Generation scopes.
const (
	ScopeAll   = "all"
	ScopeGroup = "group"
)

// GenerateTimetableRequest instructs the engine to build a week's
// timetable from the current subject catalog.
type GenerateTimetableRequest struct {
	Week     string       `json:"week" validate:"required"`
	Scope    string       `json:"scope" validate:"omitempty,oneof=all group"`
	GroupID  string       `json:"groupId" validate:"required_if=Scope group"`
	Rounding RoundingMode `json:"rounding" validate:"omitempty,oneof=up down"`
}

// GenerationStats summarises a generation run.
type GenerationStats struct {
	TotalDemands    int `json:"totalDemands"`
	PlacedSessions  int `json:"placedSessions"`
	UnplacedDemands int `json:"unplacedDemands"`
}

// UnplacedDemand describes a demand the search could not satisfy.
type UnplacedDemand struct {
	Subject string              `json:"subject"`
	Type    models.ActivityType `json:"type"`
	Groups  []string            `json:"groups"`
}

// GenerateTimetableResponse returns the assembled timetables and run
// statistics. A run with unplaced demands is still a successful run.
type GenerateTimetableResponse struct {
	Timetables      []models.Timetable `json:"timetables"`
	Stats           GenerationStats    `json:"stats"`
	UnplacedDemands []UnplacedDemand   `json:"unplacedDemands"`
}

// SessionPlacement is the explicit payload accepted by validation and
// conflict checks for ad-hoc session edits.
type SessionPlacement struct {
	TeacherID      string              `json:"teacherId" validate:"required"`
	GroupIDs       []string            `json:"groupIds" validate:"required,min=1,dive,required"`
	RoomID         string              `json:"roomId" validate:"required"`
	Day            models.Day          `json:"day" validate:"required"`
	StartSlotIndex int                 `json:"startSlotIndex" validate:"min=0,max=4"`
	SlotCount      int                 `json:"slotCount" validate:"required,min=1,max=2"`
	Type           models.ActivityType `json:"type" validate:"required,oneof=CM TD TP"`
}

// SessionValidation reports structural and constraint violations for a
// candidate placement. Empty Errors means valid.
type SessionValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateSessionResponse combines validation with conflict detection for
// the ad-hoc validate endpoint.
type ValidateSessionResponse struct {
	Valid     bool                     `json:"valid"`
	Errors    []string                 `json:"errors"`
	Conflicts []SessionConflictSummary `json:"conflicts,omitempty"`
}

// SessionConflictSummary is the wire form of a conflict record.
type SessionConflictSummary struct {
	Type           string     `json:"type"`
	SessionID      string     `json:"sessionId"`
	Day            models.Day `json:"day"`
	StartSlotIndex int        `json:"startSlotIndex"`
}

// MoveSessionRequest mutates the placement of an existing session.
// Omitted fields keep their current value.
type MoveSessionRequest struct {
	Day            models.Day `json:"day" validate:"omitempty"`
	StartSlotIndex *int       `json:"startSlotIndex" validate:"omitempty,min=0,max=4"`
	RoomID         string     `json:"roomId" validate:"omitempty"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PreferenceLevel expresses how a teacher feels about teaching in a given
// half-day window. It only influences scoring, never feasibility.
type PreferenceLevel string

const (
	PreferenceLike    PreferenceLevel = "prefer"
	PreferenceNeutral PreferenceLevel = "neutral"
	PreferenceAvoid   PreferenceLevel = "avoid"
)

// HalfDayFlags holds per-period hard availability for one day.
type HalfDayFlags struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
}

// HalfDayPreferences holds per-period soft preferences for one day.
type HalfDayPreferences struct {
	Morning   PreferenceLevel `json:"morning"`
	Afternoon PreferenceLevel `json:"afternoon"`
}

// WeekAvailability maps days onto hard availability flags. Stored as JSONB.
type WeekAvailability map[Day]HalfDayFlags

// WeekPreferences maps days onto soft preferences. Stored as JSONB.
type WeekPreferences map[Day]HalfDayPreferences

// DefaultAvailability returns the default hard availability: every window
// open except Wednesday afternoon.
func DefaultAvailability() WeekAvailability {
	avail := make(WeekAvailability, len(Days))
	for _, day := range Days {
		avail[day] = HalfDayFlags{Morning: true, Afternoon: day != Wednesday}
	}
	return avail
}

// DefaultPreferences returns a fully neutral preference grid.
func DefaultPreferences() WeekPreferences {
	prefs := make(WeekPreferences, len(Days))
	for _, day := range Days {
		prefs[day] = HalfDayPreferences{Morning: PreferenceNeutral, Afternoon: PreferenceNeutral}
	}
	return prefs
}

// AvailableOn reports whether the teacher may be scheduled in the given
// day/period window. Missing entries fall back to the defaults.
func (a WeekAvailability) AvailableOn(day Day, period Period) bool {
	flags, ok := a[day]
	if !ok {
		return !(day == Wednesday && period == Afternoon)
	}
	if period == Morning {
		return flags.Morning
	}
	return flags.Afternoon
}

// PreferenceFor returns the soft preference for a day/period window,
// defaulting to neutral.
func (p WeekPreferences) PreferenceFor(day Day, period Period) PreferenceLevel {
	prefs, ok := p[day]
	if !ok {
		return PreferenceNeutral
	}
	level := prefs.Morning
	if period == Afternoon {
		level = prefs.Afternoon
	}
	if level == "" {
		return PreferenceNeutral
	}
	return level
}

// Value implements driver.Valuer for JSONB storage.
func (a WeekAvailability) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB storage.
func (a *WeekAvailability) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Value implements driver.Valuer for JSONB storage.
func (p WeekPreferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB storage.
func (p *WeekPreferences) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func scanJSON(src, dest interface{}) error {
	switch raw := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Teacher represents an instructor record.
type Teacher struct {
	ID              string           `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Email           string           `db:"email" json:"email"`
	Availability    WeekAvailability `db:"availability" json:"availability"`
	Preferences     WeekPreferences  `db:"preferences" json:"preferences"`
	MaxLoadPerWeek  int              `db:"max_load_per_week" json:"max_load_per_week"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

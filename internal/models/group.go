package models

import "time"

// Group represents a student group. Several groups may attend the same
// session as a combined class.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Size      int       `db:"size" json:"size"`
	Specialty string    `db:"specialty" json:"specialty"`
	Year      int       `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CombinedSize sums the headcount of the given groups.
func CombinedSize(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += g.Size
	}
	return total
}

// GroupFilter captures filtering options for listing groups.
type GroupFilter struct {
	Specialty string
	Year      int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package models

import (
	"time"

	"github.com/lib/pq"
)

// Room represents a bookable teaching room.
type Room struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Capacity     int            `db:"capacity" json:"capacity"`
	Equipment    pq.StringArray `db:"equipment" json:"equipment"`
	TypesAllowed pq.StringArray `db:"types_allowed" json:"types_allowed"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Allows reports whether sessions of the given activity type may take
// place in this room.
func (r *Room) Allows(t ActivityType) bool {
	for _, allowed := range r.TypesAllowed {
		if ActivityType(allowed) == t {
			return true
		}
	}
	return false
}

// RoomFilter captures filtering options for listing rooms.
type RoomFilter struct {
	Type      string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

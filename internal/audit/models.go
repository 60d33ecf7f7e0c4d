package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID         int64          `db:"id" json:"id"`
	ActorID    string         `db:"actor_id" json:"actor_id"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   string         `db:"entity_id" json:"entity_id"`
	Details    datatypes.JSON `db:"details" json:"details"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Filters narrows an audit listing. Empty fields match everything.
type Filters struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

type ListResponse struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}

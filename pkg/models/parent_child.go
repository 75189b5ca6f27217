package models

import "time"

// ParentChild is a directed parent -> child link. Unique per ordered pair.
type ParentChild struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	ChildID   int64     `json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

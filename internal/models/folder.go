package models

import "time"

// Folder groups notes. Deleting a folder reassigns its notes to the null
// folder; it never deletes them.
type Folder struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	OrderIndex int
}

// Tag labels notes; the association is many-to-many.
type Tag struct {
	ID   string
	Name string
}

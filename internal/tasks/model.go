package tasks

import "time"

// Table is the store table that holds tasks.
const Table = "tasks"

// Task is the persisted record. Title and Description are optional and stay
// absent on disk when unset; UpdatedAt and CompletedAt serialize as null.
type Task struct {
	ID          string     `json:"id"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (t Task) RecordID() string { return t.ID }

// FieldValue exposes the searchable text fields.
func (t Task) FieldValue(name string) (string, bool) {
	var v *string
	switch name {
	case "title":
		v = t.Title
	case "description":
		v = t.Description
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

func strPtr(s string) *string { return &s }

package database

import (
	"time"

	"github.com/google/uuid"
)

// Cursor is a keyset position over rows ordered by a timestamp column and then id.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

// After returns the condition, prefixed with AND, selecting rows strictly after c
// in (timeColumn, idColumn) order. A nil cursor selects from the first row.
func (c *Cursor) After(p *Placeholders, timeColumn, idColumn string) string {
	if c == nil {
		return ""
	}
	return " AND (" + timeColumn + " > " + p.Add(c.At) +
		" OR (" + timeColumn + " = " + p.Add(c.At) + " AND " + idColumn + " > " + p.Add(c.ID) + "))"
}

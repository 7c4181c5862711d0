package models

import "time"

// LookupRow maps a key value (for example a department code) to an approver.
type LookupRow struct {
	Key          string `json:"key"           validate:"required"`
	ApproverID   string `json:"approver_id"   validate:"required"`
	ApproverName string `json:"approver_name"`
}

// LookupTable drives approver resolution for approval steps using the
// "lookup" strategy: the step names a table and a dot-path key field, and
// the row whose key matches the resolved form value wins.
type LookupTable struct {
	ID        string      `json:"id"`
	Name      string      `json:"name" validate:"required,min=1"`
	KeyColumn string      `json:"key_column"`
	Rows      []LookupRow `json:"rows"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RowForKey returns the first row matching the key, or nil.
func (t *LookupTable) RowForKey(key string) *LookupRow {
	for i := range t.Rows {
		if t.Rows[i].Key == key {
			return &t.Rows[i]
		}
	}

	return nil
}

package models

import (
	"time"
)

// ChangeType classifies a change event.
type ChangeType string

// Change event types emitted by reconciliation.
const (
	ChangeTypeOwner ChangeType = "owner_change"
	ChangeTypeValue ChangeType = "value_change"
)

// Field names recorded on change events.
const (
	FieldOwnerName  = "owner_name"
	FieldTotalValue = "total_value"
)

// ChangeEvent is one append-only, field-level entry of the property history.
type ChangeEvent struct {
	ChangeDate    time.Time  `db:"change_date" json:"changeDate"`
	OldValue      *string    `db:"old_value" json:"oldValue,omitempty"`
	NewValue      *string    `db:"new_value" json:"newValue,omitempty"`
	AccountNumber string     `db:"account_number" json:"accountNumber"`
	FieldName     string     `db:"field_name" json:"fieldName"`
	ChangeType    ChangeType `db:"change_type" json:"changeType"`
	BatchID       string     `db:"batch_id" json:"batchId"`
}

// TableName returns the history table name.
func (ChangeEvent) TableName() string {
	return "property_history"
}

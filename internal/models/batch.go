package models

import (
	"time"
)

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

// Batch lifecycle states. A batch starts processing and moves exactly once
// to completed or failed.
const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// ImportBatch is the ledger row for one reconciliation run.
type ImportBatch struct {
	StartedAt         time.Time   `db:"started_at" json:"startedAt"`
	CompletedAt       *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
	FailedAt          *time.Time  `db:"failed_at" json:"failedAt,omitempty"`
	ProcessingSeconds *float64    `db:"processing_seconds" json:"processingSeconds,omitempty"`
	ErrorMessage      *string     `db:"error_message" json:"errorMessage,omitempty"`
	BatchID           string      `db:"batch_id" json:"batchId"`
	SourceRef         string      `db:"source_ref" json:"sourceRef"`
	Status            BatchStatus `db:"status" json:"status"`
	TotalRecords      int         `db:"total_records" json:"totalRecords"`
	NewRecords        int         `db:"new_records" json:"newRecords"`
	UpdatedRecords    int         `db:"updated_records" json:"updatedRecords"`
	ErrorRecords      int         `db:"error_records" json:"errorRecords"`
}

// TableName returns the batch ledger table name.
func (ImportBatch) TableName() string {
	return "import_batches"
}

// BatchTotals are the final counters recorded when a batch completes.
type BatchTotals struct {
	TotalRecords   int
	NewRecords     int
	UpdatedRecords int
	ErrorRecords   int
}

// BatchResult is what RunBatch hands back to schedulers and operators.
// It is returned for failed runs too, carrying the counts collected so far.
type BatchResult struct {
	BatchID            string        `json:"batchId"`
	Status             BatchStatus   `json:"status"`
	Error              string        `json:"error,omitempty"`
	Duration           time.Duration `json:"duration"`
	TotalRecords       int           `json:"totalRecords"`
	NewRecords         int           `json:"newRecords"`
	UpdatedRecords     int           `json:"updatedRecords"`
	OwnerChanges       int           `json:"ownerChanges"`
	ValueChanges       int           `json:"valueChanges"`
	DeactivatedRecords int           `json:"deactivatedRecords"`
	Errors             int           `json:"errors"`
}

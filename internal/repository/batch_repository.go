package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// BatchRepository defines data access for the import batch ledger.
type BatchRepository interface {
	// CreateBatch inserts a new ledger row.
	CreateBatch(ctx context.Context, batch *models.ImportBatch) error

	// CompleteBatch moves a processing batch to completed.
	// Returns false if no processing batch with that id exists.
	CompleteBatch(ctx context.Context, batchID string, totals models.BatchTotals, seconds float64, at time.Time) (bool, error)

	// FailBatch moves a processing batch to failed.
	// Returns false if no processing batch with that id exists.
	FailBatch(ctx context.Context, batchID string, errorRecords int, message string, seconds float64, at time.Time) (bool, error)

	// FindBatch returns one ledger row.
	// Returns nil, nil if the batch does not exist (not an error).
	FindBatch(ctx context.Context, batchID string) (*models.ImportBatch, error)

	// ListBatches returns up to limit batches, most recently started first.
	ListBatches(ctx context.Context, limit int) ([]*models.ImportBatch, error)
}

// batchRepository is the PostgreSQL implementation of BatchRepository.
type batchRepository struct {
	db *database.Database
}

// NewBatchRepository creates a new instance of BatchRepository.
func NewBatchRepository(db *database.Database) BatchRepository {
	return &batchRepository{
		db: db,
	}
}

func (r *batchRepository) CreateBatch(ctx context.Context, b *models.ImportBatch) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO import_batches (batch_id, source_ref, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		b.BatchID, b.SourceRef, string(b.Status), b.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch %s: %w", b.BatchID, err)
	}
	return nil
}

// CompleteBatch guards on status so a batch transitions at most once.
func (r *batchRepository) CompleteBatch(ctx context.Context, batchID string, totals models.BatchTotals, seconds float64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE import_batches SET
			status = 'completed',
			total_records = $2,
			new_records = $3,
			updated_records = $4,
			error_records = $5,
			processing_seconds = $6,
			completed_at = $7
		WHERE batch_id = $1 AND status = 'processing'`,
		batchID, totals.TotalRecords, totals.NewRecords, totals.UpdatedRecords,
		totals.ErrorRecords, seconds, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete batch %s: %w", batchID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *batchRepository) FailBatch(ctx context.Context, batchID string, errorRecords int, message string, seconds float64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE import_batches SET
			status = 'failed',
			error_records = $2,
			error_message = $3,
			processing_seconds = $4,
			failed_at = $5
		WHERE batch_id = $1 AND status = 'processing'`,
		batchID, errorRecords, message, seconds, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail batch %s: %w", batchID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const selectBatches = `
	SELECT batch_id, source_ref, status, total_records, new_records, updated_records,
		error_records, processing_seconds, error_message, started_at, completed_at, failed_at
	FROM import_batches
`

func (r *batchRepository) FindBatch(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	b, err := scanBatch(r.db.Pool.QueryRow(ctx, selectBatches+` WHERE batch_id = $1`, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query batch %s: %w", batchID, err)
	}
	return b, nil
}

func (r *batchRepository) ListBatches(ctx context.Context, limit int) ([]*models.ImportBatch, error) {
	rows, err := r.db.Pool.Query(ctx, selectBatches+` ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	batches := []*models.ImportBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch rows: %w", err)
	}

	return batches, nil
}

func scanBatch(row pgx.Row) (*models.ImportBatch, error) {
	var b models.ImportBatch
	var status string
	err := row.Scan(
		&b.BatchID,
		&b.SourceRef,
		&status,
		&b.TotalRecords,
		&b.NewRecords,
		&b.UpdatedRecords,
		&b.ErrorRecords,
		&b.ProcessingSeconds,
		&b.ErrorMessage,
		&b.StartedAt,
		&b.CompletedAt,
		&b.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BatchStatus(status)
	return &b, nil
}

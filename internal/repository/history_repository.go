package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// HistoryRepository defines read access to the append-only change history.
// Events are only ever written by PropertyRepository.ApplyReconciliation.
type HistoryRepository interface {
	// ListHistory returns an account's events oldest first.
	// Returns an empty slice if the account has no history (not an error).
	ListHistory(ctx context.Context, accountNumber string) ([]models.ChangeEvent, error)

	// ListHistoryByBatch returns the events emitted by one batch ordered by account.
	ListHistoryByBatch(ctx context.Context, batchID string) ([]models.ChangeEvent, error)
}

// historyRepository is the PostgreSQL implementation of HistoryRepository.
type historyRepository struct {
	db *database.Database
}

// NewHistoryRepository creates a new instance of HistoryRepository.
func NewHistoryRepository(db *database.Database) HistoryRepository {
	return &historyRepository{
		db: db,
	}
}

const selectHistory = `
	SELECT account_number, field_name, old_value, new_value, change_type, batch_id, change_date
	FROM property_history
`

func (r *historyRepository) ListHistory(ctx context.Context, accountNumber string) ([]models.ChangeEvent, error) {
	rows, err := r.db.Pool.Query(ctx, selectHistory+` WHERE account_number = $1 ORDER BY change_date, id`, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", accountNumber, err)
	}
	return collectEvents(rows)
}

func (r *historyRepository) ListHistoryByBatch(ctx context.Context, batchID string) ([]models.ChangeEvent, error) {
	rows, err := r.db.Pool.Query(ctx, selectHistory+` WHERE batch_id = $1 ORDER BY account_number, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for batch %s: %w", batchID, err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]models.ChangeEvent, error) {
	defer rows.Close()

	events := []models.ChangeEvent{}
	for rows.Next() {
		var e models.ChangeEvent
		var changeType string
		err := rows.Scan(
			&e.AccountNumber,
			&e.FieldName,
			&e.OldValue,
			&e.NewValue,
			&changeType,
			&e.BatchID,
			&e.ChangeDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.ChangeType = models.ChangeType(changeType)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return events, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// PropertyRepository defines data access for the authoritative property store.
type PropertyRepository interface {
	// ListProperties returns every authoritative row ordered by account number.
	ListProperties(ctx context.Context) ([]*models.Property, error)

	// FindByAccount returns the row for an account.
	// Returns nil, nil if the account is unknown (not an error).
	FindByAccount(ctx context.Context, accountNumber string) (*models.Property, error)

	// ApplyReconciliation commits a plan's inserts, updates, deactivations and
	// change events in one transaction. Either all of them land or none do.
	ApplyReconciliation(ctx context.Context, plan *models.ReconciliationPlan) error

	// ListTrainingSamples returns every row with a known total value and
	// complete location and area, ordered by account number.
	ListTrainingSamples(ctx context.Context) ([]models.TrainingSample, error)

	// ListUnvalued returns up to limit active rows without a total value,
	// ordered by account number.
	ListUnvalued(ctx context.Context, limit int) ([]*models.Property, error)

	// UpdatePredictions writes estimates onto rows whose total value is still
	// unknown and returns how many rows were updated.
	UpdatePredictions(ctx context.Context, preds []models.Prediction) (int, error)
}

// propertyRepository is the PostgreSQL implementation of PropertyRepository.
type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{
		db: db,
	}
}

// ListProperties loads the full authoritative set.
func (r *propertyRepository) ListProperties(ctx context.Context) ([]*models.Property, error) {
	rows, err := r.db.Pool.Query(ctx, selectProperties("ORDER BY account_number"))
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	return collectProperties(rows)
}

// FindByAccount looks up a single account.
func (r *propertyRepository) FindByAccount(ctx context.Context, accountNumber string) (*models.Property, error) {
	row := r.db.Pool.QueryRow(ctx, selectProperties("WHERE account_number = $1"), accountNumber)

	p, err := scanProperty(row)
	if err != nil {
		// Handle no rows found - this is not an error at the repository level
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property %s: %w", accountNumber, err)
	}
	return p, nil
}

const insertPropertySQL = `
	INSERT INTO properties (
		account_number, owner_name, property_address, mail_address, city,
		property_type, zip, latitude, longitude, area_acres, area_sqft, year_built,
		land_value, improvement_value, total_value, assessed_value, extension,
		batch_id, is_active, first_seen_date, last_updated_date
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17::jsonb,$18,$19,$20,$21)
`

const updatePropertySQL = `
	UPDATE properties SET
		owner_name = $2,
		property_address = $3,
		mail_address = $4,
		city = $5,
		property_type = $6,
		zip = $7,
		latitude = $8,
		longitude = $9,
		area_acres = $10,
		area_sqft = $11,
		year_built = $12,
		land_value = $13,
		improvement_value = $14,
		total_value = $15,
		assessed_value = $16,
		extension = $17::jsonb,
		batch_id = $18,
		is_active = $19,
		last_updated_date = $20,
		last_modified_date = $21,
		owner_changed_date = $22,
		value_changed_date = $23
	WHERE account_number = $1
`

var historyColumns = []string{
	"account_number", "field_name", "old_value", "new_value", "change_type", "batch_id", "change_date",
}

// ApplyReconciliation writes the plan inside database.WithTx. Inserts and
// updates are sent as chunked pgx batches; change events are bulk copied.
func (r *propertyRepository) ApplyReconciliation(ctx context.Context, plan *models.ReconciliationPlan) error {
	if plan.IsEmpty() {
		return nil
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := queueChunked(ctx, tx, plan.Inserts, func(b *pgx.Batch, p *models.Property) error {
			ext, err := extensionJSON(p.Extension)
			if err != nil {
				return err
			}
			b.Queue(insertPropertySQL,
				p.AccountNumber, p.OwnerName, p.PropertyAddress, p.MailAddress, p.City,
				p.PropertyType, p.Zip, p.Latitude, p.Longitude, p.AreaAcres, p.AreaSqft, p.YearBuilt,
				p.LandValue, p.ImprovementValue, p.TotalValue, p.AssessedValue, ext,
				p.BatchID, p.IsActive, p.FirstSeenDate, p.LastUpdatedDate,
			)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to insert new properties: %w", err)
		}

		if err := queueChunked(ctx, tx, plan.Updates, func(b *pgx.Batch, p *models.Property) error {
			ext, err := extensionJSON(p.Extension)
			if err != nil {
				return err
			}
			b.Queue(updatePropertySQL,
				p.AccountNumber, p.OwnerName, p.PropertyAddress, p.MailAddress, p.City,
				p.PropertyType, p.Zip, p.Latitude, p.Longitude, p.AreaAcres, p.AreaSqft, p.YearBuilt,
				p.LandValue, p.ImprovementValue, p.TotalValue, p.AssessedValue, ext,
				p.BatchID, p.IsActive, p.LastUpdatedDate, p.LastModifiedDate,
				p.OwnerChangedDate, p.ValueChangedDate,
			)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to update properties: %w", err)
		}

		if len(plan.Deactivations) > 0 {
			_, err := tx.Exec(ctx,
				`UPDATE properties SET is_active = FALSE WHERE account_number = ANY($1) AND is_active`,
				plan.Deactivations,
			)
			if err != nil {
				return fmt.Errorf("failed to deactivate properties: %w", err)
			}
		}

		if len(plan.Events) > 0 {
			values := make([][]any, 0, len(plan.Events))
			for _, e := range plan.Events {
				values = append(values, []any{
					e.AccountNumber, e.FieldName, e.OldValue, e.NewValue,
					string(e.ChangeType), e.BatchID, e.ChangeDate,
				})
			}
			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"property_history"},
				historyColumns,
				pgx.CopyFromRows(values),
			)
			if err != nil {
				return fmt.Errorf("failed to append change history: %w", err)
			}
		}

		return nil
	})
}

// queueChunked sends rows through tx in pgx batches of writeChunkSize.
func queueChunked(ctx context.Context, tx pgx.Tx, rows []*models.Property, queue func(*pgx.Batch, *models.Property) error) error {
	for i := 0; i < len(rows); i += writeChunkSize {
		j := min(i+writeChunkSize, len(rows))
		b := &pgx.Batch{}
		for _, p := range rows[i:j] {
			if err := queue(b, p); err != nil {
				return fmt.Errorf("account %s: %w", p.AccountNumber, err)
			}
		}
		if _, err := sendBatch(tx.SendBatch(ctx, b), b.Len()); err != nil {
			return err
		}
	}
	return nil
}

// ListTrainingSamples loads the estimator's training set.
func (r *propertyRepository) ListTrainingSamples(ctx context.Context) ([]models.TrainingSample, error) {
	query := `
		SELECT
			account_number,
			latitude,
			longitude,
			area_acres,
			year_built,
			COALESCE(property_type, ''),
			COALESCE(zip, ''),
			total_value
		FROM properties
		WHERE total_value IS NOT NULL
			AND latitude IS NOT NULL
			AND longitude IS NOT NULL
			AND area_acres IS NOT NULL
		ORDER BY account_number
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query training samples: %w", err)
	}
	defer rows.Close()

	samples := []models.TrainingSample{}
	for rows.Next() {
		var s models.TrainingSample
		err := rows.Scan(
			&s.AccountNumber,
			&s.Latitude,
			&s.Longitude,
			&s.AreaAcres,
			&s.YearBuilt,
			&s.PropertyType,
			&s.Zip,
			&s.TotalValue,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training sample: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training samples: %w", err)
	}

	return samples, nil
}

// ListUnvalued returns the rows the batch estimator should try to value.
func (r *propertyRepository) ListUnvalued(ctx context.Context, limit int) ([]*models.Property, error) {
	rows, err := r.db.Pool.Query(ctx,
		selectProperties("WHERE total_value IS NULL AND is_active ORDER BY account_number LIMIT $1"),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unvalued properties: %w", err)
	}
	return collectProperties(rows)
}

// UpdatePredictions applies one chunk of predictions. The total_value guard
// lives in the WHERE clause so a row appraised since the query is skipped.
func (r *propertyRepository) UpdatePredictions(ctx context.Context, preds []models.Prediction) (int, error) {
	if len(preds) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, p := range preds {
		b.Queue(`
			UPDATE properties SET
				estimated_value = $2,
				confidence_score = $3,
				investment_score = $4
			WHERE account_number = $1 AND total_value IS NULL`,
			p.AccountNumber, p.EstimatedValue, p.ConfidenceScore, p.InvestmentScore,
		)
	}

	affected, err := sendBatch(r.db.Pool.SendBatch(ctx, b), b.Len())
	if err != nil {
		return int(affected), fmt.Errorf("failed to write %d predictions: %w", len(preds), err)
	}
	return int(affected), nil
}

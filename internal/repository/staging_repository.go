package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// StagingRepository defines data access for the batch-scoped staging area.
type StagingRepository interface {
	// ClearStaging removes every staged row for the batch.
	ClearStaging(ctx context.Context, batchID string) error

	// InsertStaged writes one chunk of normalized rows for the batch.
	// A row whose account is already staged for the batch replaces it.
	InsertStaged(ctx context.Context, batchID string, rows []*models.Property) error

	// ListStaged returns every staged row for the batch ordered by account number.
	// Returns an empty slice if nothing is staged (not an error).
	ListStaged(ctx context.Context, batchID string) ([]*models.Property, error)
}

// stagingRepository is the PostgreSQL implementation of StagingRepository.
type stagingRepository struct {
	db *database.Database
}

// NewStagingRepository creates a new instance of StagingRepository.
func NewStagingRepository(db *database.Database) StagingRepository {
	return &stagingRepository{
		db: db,
	}
}

// ClearStaging deletes the batch's staging rows.
func (r *stagingRepository) ClearStaging(ctx context.Context, batchID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM property_staging WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("failed to clear staging for batch %s: %w", batchID, err)
	}
	return nil
}

const upsertStagedSQL = `
	INSERT INTO property_staging (
		batch_id, account_number, owner_name, property_address, mail_address,
		city, property_type, zip, latitude, longitude, area_acres, area_sqft,
		year_built, land_value, improvement_value, total_value, assessed_value, extension
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb)
	ON CONFLICT (batch_id, account_number) DO UPDATE SET
		owner_name = EXCLUDED.owner_name,
		property_address = EXCLUDED.property_address,
		mail_address = EXCLUDED.mail_address,
		city = EXCLUDED.city,
		property_type = EXCLUDED.property_type,
		zip = EXCLUDED.zip,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		area_acres = EXCLUDED.area_acres,
		area_sqft = EXCLUDED.area_sqft,
		year_built = EXCLUDED.year_built,
		land_value = EXCLUDED.land_value,
		improvement_value = EXCLUDED.improvement_value,
		total_value = EXCLUDED.total_value,
		assessed_value = EXCLUDED.assessed_value,
		extension = EXCLUDED.extension
`

// InsertStaged queues one upsert per row and sends them as a single pgx.Batch.
// Statements run in order, so a later duplicate within the chunk wins.
func (r *stagingRepository) InsertStaged(ctx context.Context, batchID string, rows []*models.Property) error {
	if len(rows) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, p := range rows {
		ext, err := extensionJSON(p.Extension)
		if err != nil {
			return fmt.Errorf("account %s: %w", p.AccountNumber, err)
		}
		b.Queue(upsertStagedSQL,
			batchID, p.AccountNumber, p.OwnerName, p.PropertyAddress, p.MailAddress,
			p.City, p.PropertyType, p.Zip, p.Latitude, p.Longitude, p.AreaAcres, p.AreaSqft,
			p.YearBuilt, p.LandValue, p.ImprovementValue, p.TotalValue, p.AssessedValue, ext,
		)
	}

	if _, err := sendBatch(r.db.Pool.SendBatch(ctx, b), b.Len()); err != nil {
		return fmt.Errorf("failed to stage %d rows for batch %s: %w", len(rows), batchID, err)
	}
	return nil
}

// ListStaged reads the staged rows back as property snapshots.
func (r *stagingRepository) ListStaged(ctx context.Context, batchID string) ([]*models.Property, error) {
	query := `
		SELECT
			account_number, owner_name, property_address, mail_address, city,
			property_type, zip, latitude, longitude, area_acres, area_sqft,
			year_built, land_value, improvement_value, total_value, assessed_value,
			extension::text
		FROM property_staging
		WHERE batch_id = $1
		ORDER BY account_number
	`

	rows, err := r.db.Pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query staging for batch %s: %w", batchID, err)
	}
	defer rows.Close()

	results := []*models.Property{}
	for rows.Next() {
		var p models.Property
		var ext string
		err := rows.Scan(
			&p.AccountNumber, &p.OwnerName, &p.PropertyAddress, &p.MailAddress, &p.City,
			&p.PropertyType, &p.Zip, &p.Latitude, &p.Longitude, &p.AreaAcres, &p.AreaSqft,
			&p.YearBuilt, &p.LandValue, &p.ImprovementValue, &p.TotalValue, &p.AssessedValue,
			&ext,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staging row: %w", err)
		}
		if err := p.Extension.Scan(ext); err != nil {
			return nil, fmt.Errorf("account %s: %w", p.AccountNumber, err)
		}
		p.BatchID = batchID
		results = append(results, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staging rows: %w", err)
	}

	return results, nil
}

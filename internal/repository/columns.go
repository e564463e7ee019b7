package repository

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// writeChunkSize bounds the number of statements queued in one pgx.Batch.
const writeChunkSize = 1000

// propertyColumns is the shared column list for every properties read.
// The extension is read as text and decoded through PropertyExtension.Scan.
var propertyColumns = []string{
	"account_number",
	"owner_name",
	"property_address",
	"mail_address",
	"city",
	"property_type",
	"zip",
	"latitude",
	"longitude",
	"area_acres",
	"area_sqft",
	"year_built",
	"land_value",
	"improvement_value",
	"total_value",
	"assessed_value",
	"estimated_value",
	"confidence_score",
	"investment_score",
	"extension::text",
	"COALESCE(batch_id, '')",
	"is_active",
	"first_seen_date",
	"last_updated_date",
	"last_modified_date",
	"owner_changed_date",
	"value_changed_date",
}

// selectProperties returns a SELECT over the properties table with the given suffix.
func selectProperties(suffix string) string {
	return "SELECT " + strings.Join(propertyColumns, ", ") + " FROM properties " + suffix
}

// scanProperty reads one row selected with propertyColumns.
func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	var ext string

	err := row.Scan(
		&p.AccountNumber,
		&p.OwnerName,
		&p.PropertyAddress,
		&p.MailAddress,
		&p.City,
		&p.PropertyType,
		&p.Zip,
		&p.Latitude,
		&p.Longitude,
		&p.AreaAcres,
		&p.AreaSqft,
		&p.YearBuilt,
		&p.LandValue,
		&p.ImprovementValue,
		&p.TotalValue,
		&p.AssessedValue,
		&p.EstimatedValue,
		&p.ConfidenceScore,
		&p.InvestmentScore,
		&ext,
		&p.BatchID,
		&p.IsActive,
		&p.FirstSeenDate,
		&p.LastUpdatedDate,
		&p.LastModifiedDate,
		&p.OwnerChangedDate,
		&p.ValueChangedDate,
	)
	if err != nil {
		return nil, err
	}

	if err := p.Extension.Scan(ext); err != nil {
		return nil, fmt.Errorf("account %s: %w", p.AccountNumber, err)
	}

	return &p, nil
}

// collectProperties drains rows selected with propertyColumns.
func collectProperties(rows pgx.Rows) ([]*models.Property, error) {
	defer rows.Close()

	results := []*models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return results, nil
}

// extensionJSON encodes the extension for a ::jsonb parameter.
func extensionJSON(ext models.PropertyExtension) (string, error) {
	v, err := ext.Value()
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// sendBatch executes every queued statement and returns the summed rows affected.
func sendBatch(br pgx.BatchResults, queued int) (int64, error) {
	var affected int64
	for i := 0; i < queued; i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return affected, err
		}
		affected += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return affected, err
	}
	return affected, nil
}

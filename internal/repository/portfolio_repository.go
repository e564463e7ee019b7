package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// PortfolioRepository defines data access for the derived owner portfolios.
type PortfolioRepository interface {
	// ListOwnerHoldings returns the ownership columns of every property row.
	// Inactive rows are included only when includeInactive is set.
	ListOwnerHoldings(ctx context.Context, includeInactive bool) ([]models.OwnerHolding, error)

	// ReplacePortfolios swaps the whole portfolio table for the given rows in
	// one transaction.
	ReplacePortfolios(ctx context.Context, portfolios []models.OwnerPortfolio) error

	// ListPortfolios returns up to limit portfolios ordered by owner name.
	ListPortfolios(ctx context.Context, limit int) ([]models.OwnerPortfolio, error)

	// FindPortfolio returns one owner's portfolio.
	// Returns nil, nil if the owner has none (not an error).
	FindPortfolio(ctx context.Context, ownerName string) (*models.OwnerPortfolio, error)
}

// portfolioRepository is the PostgreSQL implementation of PortfolioRepository.
type portfolioRepository struct {
	db *database.Database
}

// NewPortfolioRepository creates a new instance of PortfolioRepository.
func NewPortfolioRepository(db *database.Database) PortfolioRepository {
	return &portfolioRepository{
		db: db,
	}
}

func (r *portfolioRepository) ListOwnerHoldings(ctx context.Context, includeInactive bool) ([]models.OwnerHolding, error) {
	query := `
		SELECT owner_name, area_acres, total_value, first_seen_date, last_modified_date, is_active
		FROM properties
		WHERE owner_name IS NOT NULL AND ($1 OR is_active)
		ORDER BY account_number
	`

	rows, err := r.db.Pool.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to query owner holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.OwnerHolding{}
	for rows.Next() {
		var h models.OwnerHolding
		if err := rows.Scan(&h.OwnerName, &h.AreaAcres, &h.TotalValue, &h.FirstSeenDate, &h.LastModifiedDate, &h.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan owner holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owner holdings: %w", err)
	}

	return holdings, nil
}

var portfolioColumns = []string{
	"owner_name", "total_properties", "total_acres", "total_portfolio_value",
	"avg_property_value", "owner_type", "is_institutional", "last_active_date",
}

// ReplacePortfolios deletes every row and bulk copies the new set inside one
// transaction, so readers never observe a half-built table.
func (r *portfolioRepository) ReplacePortfolios(ctx context.Context, portfolios []models.OwnerPortfolio) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM owner_portfolio`); err != nil {
			return fmt.Errorf("failed to clear portfolios: %w", err)
		}
		if len(portfolios) == 0 {
			return nil
		}

		values := make([][]any, 0, len(portfolios))
		for _, p := range portfolios {
			values = append(values, []any{
				p.OwnerName, p.TotalProperties, p.TotalAcres, p.TotalPortfolioValue,
				p.AvgPropertyValue, string(p.OwnerType), p.IsInstitutional, p.LastActiveDate,
			})
		}

		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"owner_portfolio"}, portfolioColumns, pgx.CopyFromRows(values)); err != nil {
			return fmt.Errorf("failed to copy %d portfolios: %w", len(portfolios), err)
		}
		return nil
	})
}

const selectPortfolios = `
	SELECT owner_name, total_properties, total_acres, total_portfolio_value,
		avg_property_value, owner_type, is_institutional, last_active_date
	FROM owner_portfolio
`

func (r *portfolioRepository) ListPortfolios(ctx context.Context, limit int) ([]models.OwnerPortfolio, error) {
	rows, err := r.db.Pool.Query(ctx, selectPortfolios+` ORDER BY owner_name LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	results := []models.OwnerPortfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		results = append(results, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}

	return results, nil
}

func (r *portfolioRepository) FindPortfolio(ctx context.Context, ownerName string) (*models.OwnerPortfolio, error) {
	p, err := scanPortfolio(r.db.Pool.QueryRow(ctx, selectPortfolios+` WHERE owner_name = $1`, ownerName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query portfolio for %s: %w", ownerName, err)
	}
	return p, nil
}

func scanPortfolio(row pgx.Row) (*models.OwnerPortfolio, error) {
	var p models.OwnerPortfolio
	var ownerType string
	err := row.Scan(
		&p.OwnerName,
		&p.TotalProperties,
		&p.TotalAcres,
		&p.TotalPortfolioValue,
		&p.AvgPropertyValue,
		&ownerType,
		&p.IsInstitutional,
		&p.LastActiveDate,
	)
	if err != nil {
		return nil, err
	}
	p.OwnerType = models.OwnerType(ownerType)
	return &p, nil
}

package models

import (
	"time"
)

// OwnerType is the coarse classification of an owner name.
type OwnerType string

// Owner classifications, in the order the classifier tries them.
const (
	OwnerTypeLLC         OwnerType = "llc"
	OwnerTypeTrust       OwnerType = "trust"
	OwnerTypeCorporate   OwnerType = "corporate"
	OwnerTypePartnership OwnerType = "partnership"
	OwnerTypeIndividual  OwnerType = "individual"
)

// OwnerPortfolio is the derived rollup of every property held by one owner name.
// Rows are replaced wholesale after each batch.
type OwnerPortfolio struct {
	LastActiveDate      time.Time `db:"last_active_date" json:"lastActiveDate"`
	OwnerName           string    `db:"owner_name" json:"ownerName"`
	OwnerType           OwnerType `db:"owner_type" json:"ownerType"`
	TotalAcres          float64   `db:"total_acres" json:"totalAcres"`
	TotalPortfolioValue float64   `db:"total_portfolio_value" json:"totalPortfolioValue"`
	AvgPropertyValue    float64   `db:"avg_property_value" json:"avgPropertyValue"`
	TotalProperties     int       `db:"total_properties" json:"totalProperties"`
	IsInstitutional     bool      `db:"is_institutional" json:"isInstitutional"`
}

// TableName returns the portfolio table name.
func (OwnerPortfolio) TableName() string {
	return "owner_portfolio"
}

package models

import (
	"time"
)

// Property represents the authoritative snapshot of one appraisal account.
// AccountNumber is the immutable business key; exactly one row exists per account.
// All nullable fields use pointers to distinguish between zero values and NULL.
// A nil valuation means the account has not been appraised (or estimated) yet.
type Property struct {
	FirstSeenDate    time.Time         `db:"first_seen_date" json:"firstSeenDate"`
	LastUpdatedDate  time.Time         `db:"last_updated_date" json:"lastUpdatedDate"`
	LastModifiedDate *time.Time        `db:"last_modified_date" json:"lastModifiedDate,omitempty"`
	OwnerChangedDate *time.Time        `db:"owner_changed_date" json:"ownerChangedDate,omitempty"`
	ValueChangedDate *time.Time        `db:"value_changed_date" json:"valueChangedDate,omitempty"`
	OwnerName        *string           `db:"owner_name" json:"ownerName,omitempty"`
	PropertyAddress  *string           `db:"property_address" json:"propertyAddress,omitempty"`
	MailAddress      *string           `db:"mail_address" json:"mailAddress,omitempty"`
	City             *string           `db:"city" json:"city,omitempty"`
	PropertyType     *string           `db:"property_type" json:"propertyType,omitempty"`
	Zip              *string           `db:"zip" json:"zip,omitempty"`
	Latitude         *float64          `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64          `db:"longitude" json:"longitude,omitempty"`
	AreaAcres        *float64          `db:"area_acres" json:"areaAcres,omitempty"`
	AreaSqft         *float64          `db:"area_sqft" json:"areaSqft,omitempty"`
	YearBuilt        *int              `db:"year_built" json:"yearBuilt,omitempty"`
	LandValue        *float64          `db:"land_value" json:"landValue,omitempty"`
	ImprovementValue *float64          `db:"improvement_value" json:"improvementValue,omitempty"`
	TotalValue       *float64          `db:"total_value" json:"totalValue,omitempty"`
	AssessedValue    *float64          `db:"assessed_value" json:"assessedValue,omitempty"`
	EstimatedValue   *float64          `db:"estimated_value" json:"estimatedValue,omitempty"`
	ConfidenceScore  *float64          `db:"confidence_score" json:"confidenceScore,omitempty"`
	InvestmentScore  *int              `db:"investment_score" json:"investmentScore,omitempty"`
	Extension        PropertyExtension `db:"extension" json:"extension"`
	AccountNumber    string            `db:"account_number" json:"accountNumber"`
	BatchID          string            `db:"batch_id" json:"batchId,omitempty"`
	IsActive         bool              `db:"is_active" json:"isActive"`
}

// TableName returns the authoritative properties table name.
func (Property) TableName() string {
	return "properties"
}

// HasLocation reports whether both coordinates are known.
func (p *Property) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Clone returns a copy of the property whose pointer fields do not alias the original.
// The reconciler mutates clones so a failed plan never leaks into the caller's rows.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	c := *p
	c.LastModifiedDate = cloneTime(p.LastModifiedDate)
	c.OwnerChangedDate = cloneTime(p.OwnerChangedDate)
	c.ValueChangedDate = cloneTime(p.ValueChangedDate)
	c.OwnerName = cloneString(p.OwnerName)
	c.PropertyAddress = cloneString(p.PropertyAddress)
	c.MailAddress = cloneString(p.MailAddress)
	c.City = cloneString(p.City)
	c.PropertyType = cloneString(p.PropertyType)
	c.Zip = cloneString(p.Zip)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	c.AreaAcres = cloneFloat(p.AreaAcres)
	c.AreaSqft = cloneFloat(p.AreaSqft)
	c.LandValue = cloneFloat(p.LandValue)
	c.ImprovementValue = cloneFloat(p.ImprovementValue)
	c.TotalValue = cloneFloat(p.TotalValue)
	c.AssessedValue = cloneFloat(p.AssessedValue)
	c.EstimatedValue = cloneFloat(p.EstimatedValue)
	c.ConfidenceScore = cloneFloat(p.ConfidenceScore)
	if p.YearBuilt != nil {
		y := *p.YearBuilt
		c.YearBuilt = &y
	}
	if p.InvestmentScore != nil {
		s := *p.InvestmentScore
		c.InvestmentScore = &s
	}
	c.Extension = p.Extension.Clone()
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

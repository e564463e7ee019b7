// Package feed reads the county roll export and turns raw rows into property snapshots.
package feed

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// ErrMissingAccount is returned for rows without an account identifier.
var ErrMissingAccount = errors.New("row has no account number")

// Year built bounds; anything outside is treated as unknown.
const (
	minYearBuilt = 1700
	maxYearBuilt = 2100
)

const sqftPerAcre = 43560.0

// Row is one raw feed row keyed by lower-cased column name.
type Row map[string]string

// columnAliases maps each canonical field to the header names seen across
// appraisal district exports. The first alias present in a row wins.
var columnAliases = map[string][]string{
	"account_number":    {"account_number", "acct", "account", "acct_num", "prop_id"},
	"owner_name":        {"owner_name", "owner", "mailto", "mail_to"},
	"property_address":  {"property_address", "site_addr_1", "situs", "site_address"},
	"mail_address":      {"mail_address", "mail_addr_1", "mailing_address"},
	"city":              {"city", "site_addr_2", "site_city"},
	"zip":               {"zip", "site_addr_3", "zip_code", "site_zip"},
	"latitude":          {"latitude", "lat", "y"},
	"longitude":         {"longitude", "lon", "lng", "x"},
	"area_acres":        {"area_acres", "acreage", "acres"},
	"area_sqft":         {"area_sqft", "land_ar", "land_area", "sqft"},
	"year_built":        {"year_built", "yr_impr", "yr_built"},
	"property_type":     {"property_type", "state_class", "category", "prop_type"},
	"land_value":        {"land_value", "land_val"},
	"improvement_value": {"improvement_value", "bld_val", "impr_val"},
	"total_value":       {"total_value", "tot_mkt_val", "market_value", "tot_appr_val"},
	"assessed_value":    {"assessed_value", "assessed_val", "tot_assessed_val"},
	"legal_description": {"legal_description", "lgl_1", "legal"},
	"neighborhood":      {"neighborhood", "neighborhood_code", "nbhd"},
	"school_district":   {"school_district", "school_dist", "isd"},
	"exemptions":        {"exemptions", "exempt_cd"},
}

// NewRow builds a Row from a header and one record, lower-casing column names.
// Missing trailing values become empty strings; extra values are dropped.
func NewRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if key == "" {
			continue
		}
		if i < len(record) {
			row[key] = record[i]
		} else {
			row[key] = ""
		}
	}
	return row
}

// get returns the trimmed value of the first alias present for field.
func (r Row) get(field string) string {
	for _, alias := range columnAliases[field] {
		if v, ok := r[alias]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Normalize converts one raw feed row into a property snapshot fragment.
// It never fails on malformed numerics (those become nil); the only rejected
// rows are those without an account number.
func Normalize(row Row) (*models.Property, error) {
	account := strings.ToUpper(row.get("account_number"))
	if account == "" {
		return nil, ErrMissingAccount
	}

	p := &models.Property{
		AccountNumber:    account,
		OwnerName:        upperOrNil(row.get("owner_name")),
		PropertyAddress:  upperOrNil(row.get("property_address")),
		MailAddress:      upperOrNil(row.get("mail_address")),
		City:             upperOrNil(row.get("city")),
		PropertyType:     upperOrNil(row.get("property_type")),
		Zip:              normalizeZip(row.get("zip")),
		Latitude:         parseCoordinate(row.get("latitude"), 90),
		Longitude:        parseCoordinate(row.get("longitude"), 180),
		AreaAcres:        positiveOrNil(ParseNumber(row.get("area_acres"))),
		AreaSqft:         positiveOrNil(ParseNumber(row.get("area_sqft"))),
		YearBuilt:        parseYear(row.get("year_built")),
		LandValue:        ParseNumber(row.get("land_value")),
		ImprovementValue: ParseNumber(row.get("improvement_value")),
		TotalValue:       ParseNumber(row.get("total_value")),
		AssessedValue:    ParseNumber(row.get("assessed_value")),
		IsActive:         true,
		Extension: models.PropertyExtension{
			LegalDescription: upperOrNil(row.get("legal_description")),
			Neighborhood:     upperOrNil(row.get("neighborhood")),
			SchoolDistrict:   upperOrNil(row.get("school_district")),
			Exemptions:       upperOrNil(row.get("exemptions")),
			Version:          models.CurrentExtensionVersion,
		},
	}

	// Derive acreage from square footage when the roll only carries the latter
	if p.AreaAcres == nil && p.AreaSqft != nil {
		acres := *p.AreaSqft / sqftPerAcre
		p.AreaAcres = &acres
	}

	return p, nil
}

// ParseNumber parses a permissive numeric string such as "$1,234.50".
// Returns nil for empty, unparseable or non-finite input.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func upperOrNil(s string) *string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	s = strings.ToUpper(s)
	return &s
}

func positiveOrNil(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

func parseCoordinate(s string, limit float64) *float64 {
	v := ParseNumber(s)
	if v == nil || *v < -limit || *v > limit {
		return nil
	}
	// 0,0 is the classic placeholder for "not geocoded"
	if *v == 0 {
		return nil
	}
	return v
}

func parseYear(s string) *int {
	v := ParseNumber(s)
	if v == nil {
		return nil
	}
	year := int(*v)
	if year < minYearBuilt || year > maxYearBuilt {
		return nil
	}
	return &year
}

func normalizeZip(s string) *string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			if digits.Len() == 5 {
				break
			}
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() != 5 {
		return nil
	}
	zip := digits.String()
	return &zip
}

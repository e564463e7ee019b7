package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FullRow(t *testing.T) {
	row := Row{
		"acct":              " 0123456789012 ",
		"mailto":            "smith john & mary",
		"site_addr_1":       "123  main st",
		"mail_addr_1":       "po box 42",
		"site_addr_2":       "houston",
		"site_addr_3":       "77002-1234",
		"latitude":          "29.7604",
		"longitude":         "-95.3698",
		"acreage":           "0.25",
		"yr_impr":           "1987",
		"state_class":       "a1",
		"land_val":          "$50,000",
		"bld_val":           "150,000.00",
		"tot_mkt_val":       "$200,000",
		"assessed_val":      "190000",
		"legal_description": "lt 4 blk 2",
		"ignored_column":    "whatever",
	}

	p, err := Normalize(row)
	require.NoError(t, err)

	assert.Equal(t, "0123456789012", p.AccountNumber)
	assert.Equal(t, "SMITH JOHN & MARY", *p.OwnerName)
	assert.Equal(t, "123 MAIN ST", *p.PropertyAddress)
	assert.Equal(t, "PO BOX 42", *p.MailAddress)
	assert.Equal(t, "HOUSTON", *p.City)
	assert.Equal(t, "77002", *p.Zip)
	assert.Equal(t, "A1", *p.PropertyType)
	assert.InDelta(t, 29.7604, *p.Latitude, 1e-9)
	assert.InDelta(t, -95.3698, *p.Longitude, 1e-9)
	assert.InDelta(t, 0.25, *p.AreaAcres, 1e-9)
	assert.Equal(t, 1987, *p.YearBuilt)
	assert.Equal(t, 50000.0, *p.LandValue)
	assert.Equal(t, 150000.0, *p.ImprovementValue)
	assert.Equal(t, 200000.0, *p.TotalValue)
	assert.Equal(t, 190000.0, *p.AssessedValue)
	assert.Equal(t, "LT 4 BLK 2", *p.Extension.LegalDescription)
	assert.True(t, p.IsActive)
}

func TestNormalize_MissingAccount(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{name: "no account column", row: Row{"owner_name": "SMITH"}},
		{name: "blank account", row: Row{"account_number": "   ", "owner_name": "SMITH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Normalize(tt.row)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrMissingAccount)
		})
	}
}

func TestNormalize_MalformedNumericsBecomeNil(t *testing.T) {
	row := Row{
		"account_number": "A1",
		"total_value":    "N/A",
		"land_value":     "12abc",
		"year_built":     "unknown",
		"latitude":       "north",
		"area_acres":     "-3",
	}

	p, err := Normalize(row)
	require.NoError(t, err)

	assert.Nil(t, p.TotalValue)
	assert.Nil(t, p.LandValue)
	assert.Nil(t, p.YearBuilt)
	assert.Nil(t, p.Latitude)
	assert.Nil(t, p.AreaAcres)
}

func TestNormalize_AcresDerivedFromSqft(t *testing.T) {
	p, err := Normalize(Row{"account_number": "A1", "land_ar": "87,120"})
	require.NoError(t, err)

	require.NotNil(t, p.AreaAcres)
	assert.InDelta(t, 2.0, *p.AreaAcres, 1e-9)
	assert.Equal(t, 87120.0, *p.AreaSqft)
}

func TestNormalize_PlaceholderCoordinatesDropped(t *testing.T) {
	p, err := Normalize(Row{"account_number": "A1", "latitude": "0", "longitude": "0"})
	require.NoError(t, err)

	assert.Nil(t, p.Latitude)
	assert.Nil(t, p.Longitude)
}

func TestNormalize_YearOutOfRange(t *testing.T) {
	p, err := Normalize(Row{"account_number": "A1", "year_built": "0"})
	require.NoError(t, err)
	assert.Nil(t, p.YearBuilt)

	p, err = Normalize(Row{"account_number": "A1", "year_built": "2005.0"})
	require.NoError(t, err)
	require.NotNil(t, p.YearBuilt)
	assert.Equal(t, 2005, *p.YearBuilt)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  *float64
	}{
		{input: "", want: nil},
		{input: "   ", want: nil},
		{input: "$", want: nil},
		{input: "1,234", want: ptr(1234)},
		{input: "$1,234.56", want: ptr(1234.56)},
		{input: " 42 ", want: ptr(42)},
		{input: "-7.5", want: ptr(-7.5)},
		{input: "1.2.3", want: nil},
		{input: "abc", want: nil},
		{input: "NaN", want: nil},
		{input: "Inf", want: nil},
		{input: "-infinity", want: nil},
		{input: "$1e400", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseNumber(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestNormalizeZip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "77002", want: "77002"},
		{input: "77002-1234", want: "77002"},
		{input: "TX 77002", want: "77002"},
		{input: "7700", want: ""},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := normalizeZip(tt.input)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CurrentExtensionVersion is written into every extension record we persist.
const CurrentExtensionVersion = 1

// PropertyExtension carries the optional, roll-specific attributes that do not
// deserve a column of their own. Keys are explicit so older rows decode with
// defaults and unknown keys written by newer producers are dropped on read.
type PropertyExtension struct {
	LegalDescription *string `json:"legalDescription,omitempty"`
	Neighborhood     *string `json:"neighborhood,omitempty"`
	SchoolDistrict   *string `json:"schoolDistrict,omitempty"`
	Exemptions       *string `json:"exemptions,omitempty"`
	Version          int     `json:"version"`
}

// IsEmpty reports whether no optional attribute is set.
func (e PropertyExtension) IsEmpty() bool {
	return e.LegalDescription == nil && e.Neighborhood == nil &&
		e.SchoolDistrict == nil && e.Exemptions == nil
}

// Clone returns a deep copy of the extension.
func (e PropertyExtension) Clone() PropertyExtension {
	return PropertyExtension{
		LegalDescription: cloneString(e.LegalDescription),
		Neighborhood:     cloneString(e.Neighborhood),
		SchoolDistrict:   cloneString(e.SchoolDistrict),
		Exemptions:       cloneString(e.Exemptions),
		Version:          e.Version,
	}
}

// Merge overlays every attribute that is set on other, keeping existing values otherwise.
func (e PropertyExtension) Merge(other PropertyExtension) PropertyExtension {
	out := e.Clone()
	if other.LegalDescription != nil {
		out.LegalDescription = cloneString(other.LegalDescription)
	}
	if other.Neighborhood != nil {
		out.Neighborhood = cloneString(other.Neighborhood)
	}
	if other.SchoolDistrict != nil {
		out.SchoolDistrict = cloneString(other.SchoolDistrict)
	}
	if other.Exemptions != nil {
		out.Exemptions = cloneString(other.Exemptions)
	}
	out.Version = CurrentExtensionVersion
	return out
}

// Scan implements sql.Scanner for reading the JSONB extension column.
// NULL decodes to the zero extension with the current version.
func (e *PropertyExtension) Scan(value interface{}) error {
	*e = PropertyExtension{Version: CurrentExtensionVersion}
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan PropertyExtension: expected []byte, got %T", value)
	}

	if err := json.Unmarshal(raw, e); err != nil {
		return fmt.Errorf("failed to unmarshal property extension: %w", err)
	}
	if e.Version == 0 {
		e.Version = CurrentExtensionVersion
	}

	return nil
}

// Value implements driver.Valuer for writing the extension as JSONB.
func (e PropertyExtension) Value() (driver.Value, error) {
	if e.Version == 0 {
		e.Version = CurrentExtensionVersion
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal property extension: %w", err)
	}
	return string(data), nil
}

package models

import (
	"time"
)

// ReconciliationPlan is the full set of writes produced by diffing one staged
// feed against the authoritative store. It is applied atomically.
type ReconciliationPlan struct {
	RunDate time.Time
	BatchID string
	// Inserts are accounts seen for the first time.
	Inserts []*Property
	// Updates are existing accounts present in the feed, already merged.
	Updates []*Property
	// Deactivations are active accounts missing from the feed.
	Deactivations []string
	Events        []ChangeEvent
}

// IsEmpty reports whether applying the plan would write nothing.
func (p *ReconciliationPlan) IsEmpty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 &&
		len(p.Deactivations) == 0 && len(p.Events) == 0
}

// OwnerHolding is the slice of a property row the portfolio aggregator needs.
type OwnerHolding struct {
	FirstSeenDate    time.Time
	LastModifiedDate *time.Time
	OwnerName        *string
	AreaAcres        *float64
	TotalValue       *float64
	IsActive         bool
}

// ActivityDate is the last time the row's data changed: the last modification
// if any change event fired, otherwise the date it was first seen.
func (h OwnerHolding) ActivityDate() time.Time {
	if h.LastModifiedDate != nil {
		return *h.LastModifiedDate
	}
	return h.FirstSeenDate
}

package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// ReconcileStats summarizes one reconciliation.
type ReconcileStats struct {
	New          int `json:"new"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	OwnerChanges int `json:"ownerChanges"`
	ValueChanges int `json:"valueChanges"`
	Deactivated  int `json:"deactivated"`
	Reactivated  int `json:"reactivated"`
}

// ChangeReconciler diffs a staged batch against the authoritative store.
type ChangeReconciler interface {
	// Reconcile loads the batch's staging rows and the authoritative set,
	// builds the plan and commits it atomically. On error the store is unchanged.
	Reconcile(ctx context.Context, batchID string, runDate time.Time) (ReconcileStats, error)
}

// changeReconciler is the concrete implementation of ChangeReconciler.
type changeReconciler struct {
	staging    repository.StagingRepository
	properties repository.PropertyRepository
	log        *logger.Logger
}

// NewChangeReconciler creates a new instance of ChangeReconciler.
func NewChangeReconciler(staging repository.StagingRepository, properties repository.PropertyRepository, log *logger.Logger) ChangeReconciler {
	return &changeReconciler{
		staging:    staging,
		properties: properties,
		log:        log,
	}
}

func (r *changeReconciler) Reconcile(ctx context.Context, batchID string, runDate time.Time) (ReconcileStats, error) {
	log := r.log.WithBatchID(batchID)

	staged, err := r.staging.ListStaged(ctx, batchID)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("failed to load staged rows: %w", err)
	}

	current, err := r.properties.ListProperties(ctx)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("failed to load authoritative rows: %w", err)
	}

	plan, stats := Plan(staged, current, runDate, batchID)

	if err := r.properties.ApplyReconciliation(ctx, plan); err != nil {
		log.Error("Reconciliation rolled back", err, map[string]interface{}{
			"inserts": len(plan.Inserts),
			"updates": len(plan.Updates),
			"events":  len(plan.Events),
		})
		return ReconcileStats{}, fmt.Errorf("failed to apply reconciliation: %w", err)
	}

	log.Info("Reconciliation applied", map[string]interface{}{
		"staged":        len(staged),
		"new":           stats.New,
		"updated":       stats.Updated,
		"unchanged":     stats.Unchanged,
		"owner_changes": stats.OwnerChanges,
		"value_changes": stats.ValueChanges,
		"deactivated":   stats.Deactivated,
		"reactivated":   stats.Reactivated,
	})

	return stats, nil
}

// Plan computes the writes that bring current in line with staged. It does not
// mutate its inputs. Per account the rules apply in order: new account, owner
// change, value change, field sync; active accounts absent from staged are
// deactivated. When staged repeats an account the last occurrence is used.
func Plan(staged, current []*models.Property, runDate time.Time, batchID string) (*models.ReconciliationPlan, ReconcileStats) {
	var stats ReconcileStats
	plan := &models.ReconciliationPlan{
		BatchID:       batchID,
		RunDate:       runDate,
		Inserts:       []*models.Property{},
		Updates:       []*models.Property{},
		Deactivations: []string{},
		Events:        []models.ChangeEvent{},
	}

	existing := make(map[string]*models.Property, len(current))
	for _, p := range current {
		existing[p.AccountNumber] = p
	}

	last := make(map[string]int, len(staged))
	for i, s := range staged {
		last[s.AccountNumber] = i
	}

	for i, s := range staged {
		if last[s.AccountNumber] != i {
			continue
		}

		a, ok := existing[s.AccountNumber]
		if !ok {
			p := s.Clone()
			p.FirstSeenDate = runDate
			p.LastUpdatedDate = runDate
			p.IsActive = true
			p.BatchID = batchID
			plan.Inserts = append(plan.Inserts, p)
			stats.New++
			continue
		}

		next := a.Clone()
		events := 0

		if !sameString(a.OwnerName, s.OwnerName) {
			plan.Events = append(plan.Events, models.ChangeEvent{
				AccountNumber: s.AccountNumber,
				FieldName:     models.FieldOwnerName,
				OldValue:      copyString(a.OwnerName),
				NewValue:      copyString(s.OwnerName),
				ChangeType:    models.ChangeTypeOwner,
				BatchID:       batchID,
				ChangeDate:    runDate,
			})
			next.OwnerChangedDate = timePtr(runDate)
			stats.OwnerChanges++
			events++
		}

		if valueOrZero(a.TotalValue) != valueOrZero(s.TotalValue) {
			plan.Events = append(plan.Events, models.ChangeEvent{
				AccountNumber: s.AccountNumber,
				FieldName:     models.FieldTotalValue,
				OldValue:      formatValue(a.TotalValue),
				NewValue:      formatValue(s.TotalValue),
				ChangeType:    models.ChangeTypeValue,
				BatchID:       batchID,
				ChangeDate:    runDate,
			})
			next.ValueChangedDate = timePtr(runDate)
			stats.ValueChanges++
			events++
		}

		syncFields(next, s)
		next.LastUpdatedDate = runDate
		next.BatchID = batchID
		if events > 0 {
			next.LastModifiedDate = timePtr(runDate)
			stats.Updated++
		} else {
			stats.Unchanged++
		}
		if !a.IsActive {
			stats.Reactivated++
		}
		next.IsActive = true

		plan.Updates = append(plan.Updates, next)
	}

	for _, a := range current {
		if _, seen := last[a.AccountNumber]; seen || !a.IsActive {
			continue
		}
		plan.Deactivations = append(plan.Deactivations, a.AccountNumber)
		stats.Deactivated++
	}

	return plan, stats
}

// syncFields copies the staged snapshot onto dst. Ownership, addresses and
// valuations always follow the feed, including to nil. Descriptive attributes
// only move when the feed carries a value.
func syncFields(dst, s *models.Property) {
	dst.OwnerName = copyString(s.OwnerName)
	dst.PropertyAddress = copyString(s.PropertyAddress)
	dst.MailAddress = copyString(s.MailAddress)
	dst.LandValue = copyFloat(s.LandValue)
	dst.ImprovementValue = copyFloat(s.ImprovementValue)
	dst.TotalValue = copyFloat(s.TotalValue)
	dst.AssessedValue = copyFloat(s.AssessedValue)

	if s.City != nil {
		dst.City = copyString(s.City)
	}
	if s.PropertyType != nil {
		dst.PropertyType = copyString(s.PropertyType)
	}
	if s.Zip != nil {
		dst.Zip = copyString(s.Zip)
	}
	if s.Latitude != nil {
		dst.Latitude = copyFloat(s.Latitude)
	}
	if s.Longitude != nil {
		dst.Longitude = copyFloat(s.Longitude)
	}
	if s.AreaAcres != nil {
		dst.AreaAcres = copyFloat(s.AreaAcres)
	}
	if s.AreaSqft != nil {
		dst.AreaSqft = copyFloat(s.AreaSqft)
	}
	if s.YearBuilt != nil {
		y := *s.YearBuilt
		dst.YearBuilt = &y
	}
	dst.Extension = dst.Extension.Merge(s.Extension)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// formatValue renders a valuation for the history table; nil stays nil.
func formatValue(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	return &s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

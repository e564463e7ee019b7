// Package memory provides an in-process implementation of every repository
// interface. It backs the CLI's dry runs and the end-to-end pipeline tests;
// writes are all-or-nothing just like the PostgreSQL transactions they mirror.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

var (
	_ repository.StagingRepository   = (*Store)(nil)
	_ repository.PropertyRepository  = (*Store)(nil)
	_ repository.HistoryRepository   = (*Store)(nil)
	_ repository.PortfolioRepository = (*Store)(nil)
	_ repository.BatchRepository     = (*Store)(nil)
)

// Store holds every table in maps guarded by one mutex.
// Values handed out are clones; callers never alias stored rows.
type Store struct {
	mu         sync.RWMutex
	staging    map[string]map[string]*models.Property
	properties map[string]*models.Property
	history    []models.ChangeEvent
	portfolios []models.OwnerPortfolio
	batches    map[string]*models.ImportBatch
}

// New creates an empty store.
func New() *Store {
	return &Store{
		staging:    make(map[string]map[string]*models.Property),
		properties: make(map[string]*models.Property),
		batches:    make(map[string]*models.ImportBatch),
	}
}

// Seed inserts authoritative rows directly, bypassing reconciliation.
func (s *Store) Seed(props ...*models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range props {
		s.properties[p.AccountNumber] = p.Clone()
	}
}

// ---- staging ----

func (s *Store) ClearStaging(_ context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staging, batchID)
	return nil
}

func (s *Store) InsertStaged(_ context.Context, batchID string, rows []*models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.staging[batchID]
	if !ok {
		staged = make(map[string]*models.Property)
		s.staging[batchID] = staged
	}
	for _, p := range rows {
		c := p.Clone()
		c.BatchID = batchID
		staged[p.AccountNumber] = c
	}
	return nil
}

func (s *Store) ListStaged(_ context.Context, batchID string) ([]*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedClones(s.staging[batchID]), nil
}

// StagedBatches returns the ids that still have staging rows.
func (s *Store) StagedBatches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.staging))
	for id, rows := range s.staging {
		if len(rows) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ---- properties ----

func (s *Store) ListProperties(_ context.Context) ([]*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedClones(s.properties), nil
}

func (s *Store) FindByAccount(_ context.Context, accountNumber string) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[accountNumber]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// ApplyReconciliation validates the whole plan before touching any table.
func (s *Store) ApplyReconciliation(_ context.Context, plan *models.ReconciliationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserting := make(map[string]bool, len(plan.Inserts))
	for _, p := range plan.Inserts {
		if _, exists := s.properties[p.AccountNumber]; exists || inserting[p.AccountNumber] {
			return fmt.Errorf("duplicate key value violates unique constraint: account %s", p.AccountNumber)
		}
		inserting[p.AccountNumber] = true
	}
	for _, p := range plan.Updates {
		if _, exists := s.properties[p.AccountNumber]; !exists {
			return fmt.Errorf("update of unknown account %s", p.AccountNumber)
		}
	}
	for _, e := range plan.Events {
		if e.ChangeType != models.ChangeTypeOwner && e.ChangeType != models.ChangeTypeValue {
			return fmt.Errorf("invalid change type %q", e.ChangeType)
		}
	}

	for _, p := range plan.Inserts {
		s.properties[p.AccountNumber] = p.Clone()
	}
	for _, p := range plan.Updates {
		current := s.properties[p.AccountNumber]
		next := p.Clone()
		// Prediction columns belong to the estimator
		next.EstimatedValue = current.EstimatedValue
		next.ConfidenceScore = current.ConfidenceScore
		next.InvestmentScore = current.InvestmentScore
		next.FirstSeenDate = current.FirstSeenDate
		s.properties[p.AccountNumber] = next
	}
	for _, account := range plan.Deactivations {
		if p, ok := s.properties[account]; ok && p.IsActive {
			p.IsActive = false
		}
	}
	s.history = append(s.history, plan.Events...)
	return nil
}

func (s *Store) ListTrainingSamples(_ context.Context) ([]models.TrainingSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples := []models.TrainingSample{}
	for _, p := range sortedClones(s.properties) {
		if p.TotalValue == nil || p.Latitude == nil || p.Longitude == nil || p.AreaAcres == nil {
			continue
		}
		sample := models.TrainingSample{
			AccountNumber: p.AccountNumber,
			Latitude:      *p.Latitude,
			Longitude:     *p.Longitude,
			AreaAcres:     *p.AreaAcres,
			YearBuilt:     p.YearBuilt,
			TotalValue:    *p.TotalValue,
		}
		if p.PropertyType != nil {
			sample.PropertyType = *p.PropertyType
		}
		if p.Zip != nil {
			sample.Zip = *p.Zip
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (s *Store) ListUnvalued(_ context.Context, limit int) ([]*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Property{}
	for _, p := range sortedClones(s.properties) {
		if len(out) >= limit {
			break
		}
		if p.TotalValue == nil && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) UpdatePredictions(_ context.Context, preds []models.Prediction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, pred := range preds {
		p, ok := s.properties[pred.AccountNumber]
		if !ok || p.TotalValue != nil {
			continue
		}
		value, confidence, score := pred.EstimatedValue, pred.ConfidenceScore, pred.InvestmentScore
		p.EstimatedValue = &value
		p.ConfidenceScore = &confidence
		p.InvestmentScore = &score
		updated++
	}
	return updated, nil
}

// ---- history ----

func (s *Store) ListHistory(_ context.Context, accountNumber string) ([]models.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := []models.ChangeEvent{}
	for _, e := range s.history {
		if e.AccountNumber == accountNumber {
			events = append(events, cloneEvent(e))
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ChangeDate.Before(events[j].ChangeDate)
	})
	return events, nil
}

func (s *Store) ListHistoryByBatch(_ context.Context, batchID string) ([]models.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := []models.ChangeEvent{}
	for _, e := range s.history {
		if e.BatchID == batchID {
			events = append(events, cloneEvent(e))
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].AccountNumber < events[j].AccountNumber
	})
	return events, nil
}

// HistoryLen returns the total number of change events ever appended.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// ---- portfolios ----

func (s *Store) ListOwnerHoldings(_ context.Context, includeInactive bool) ([]models.OwnerHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holdings := []models.OwnerHolding{}
	for _, p := range sortedClones(s.properties) {
		if p.OwnerName == nil || (!includeInactive && !p.IsActive) {
			continue
		}
		holdings = append(holdings, models.OwnerHolding{
			OwnerName:        p.OwnerName,
			AreaAcres:        p.AreaAcres,
			TotalValue:       p.TotalValue,
			FirstSeenDate:    p.FirstSeenDate,
			LastModifiedDate: p.LastModifiedDate,
			IsActive:         p.IsActive,
		})
	}
	return holdings, nil
}

func (s *Store) ReplacePortfolios(_ context.Context, portfolios []models.OwnerPortfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(portfolios))
	for _, p := range portfolios {
		if seen[p.OwnerName] {
			return fmt.Errorf("duplicate key value violates unique constraint: owner %s", p.OwnerName)
		}
		seen[p.OwnerName] = true
	}
	s.portfolios = append([]models.OwnerPortfolio(nil), portfolios...)
	sort.Slice(s.portfolios, func(i, j int) bool {
		return s.portfolios[i].OwnerName < s.portfolios[j].OwnerName
	})
	return nil
}

func (s *Store) ListPortfolios(_ context.Context, limit int) ([]models.OwnerPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.portfolios))
	return append([]models.OwnerPortfolio{}, s.portfolios[:n]...), nil
}

func (s *Store) FindPortfolio(_ context.Context, ownerName string) (*models.OwnerPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.portfolios {
		if p.OwnerName == ownerName {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

// ---- batches ----

func (s *Store) CreateBatch(_ context.Context, b *models.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.BatchID]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint: batch %s", b.BatchID)
	}
	c := *b
	s.batches[b.BatchID] = &c
	return nil
}

func (s *Store) CompleteBatch(_ context.Context, batchID string, totals models.BatchTotals, seconds float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok || b.Status != models.BatchStatusProcessing {
		return false, nil
	}
	b.Status = models.BatchStatusCompleted
	b.TotalRecords = totals.TotalRecords
	b.NewRecords = totals.NewRecords
	b.UpdatedRecords = totals.UpdatedRecords
	b.ErrorRecords = totals.ErrorRecords
	b.ProcessingSeconds = &seconds
	b.CompletedAt = &at
	return true, nil
}

func (s *Store) FailBatch(_ context.Context, batchID string, errorRecords int, message string, seconds float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok || b.Status != models.BatchStatusProcessing {
		return false, nil
	}
	b.Status = models.BatchStatusFailed
	b.ErrorRecords = errorRecords
	b.ErrorMessage = &message
	b.ProcessingSeconds = &seconds
	b.FailedAt = &at
	return true, nil
}

func (s *Store) FindBatch(_ context.Context, batchID string) (*models.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (s *Store) ListBatches(_ context.Context, limit int) ([]*models.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ImportBatch, 0, len(s.batches))
	for _, b := range s.batches {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortedClones(rows map[string]*models.Property) []*models.Property {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.Property, 0, len(keys))
	for _, k := range keys {
		out = append(out, rows[k].Clone())
	}
	return out
}

func cloneEvent(e models.ChangeEvent) models.ChangeEvent {
	c := e
	if e.OldValue != nil {
		v := *e.OldValue
		c.OldValue = &v
	}
	if e.NewValue != nil {
		v := *e.NewValue
		c.NewValue = &v
	}
	return c
}

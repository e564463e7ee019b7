package services

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/atlas/reconciler/internal/feed"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
)

// MockStagingRepository is a mock implementation of StagingRepository for testing
type MockStagingRepository struct {
	mock.Mock
}

func (m *MockStagingRepository) ClearStaging(ctx context.Context, batchID string) error {
	return m.Called(ctx, batchID).Error(0)
}

func (m *MockStagingRepository) InsertStaged(ctx context.Context, batchID string, rows []*models.Property) error {
	// Copy the chunk since the loader reuses its buffer
	chunk := append([]*models.Property(nil), rows...)
	return m.Called(ctx, batchID, chunk).Error(0)
}

func (m *MockStagingRepository) ListStaged(ctx context.Context, batchID string) ([]*models.Property, error) {
	args := m.Called(ctx, batchID)
	rows, _ := args.Get(0).([]*models.Property)
	return rows, args.Error(1)
}

// MockPropertyRepository is a mock implementation of PropertyRepository for testing
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) ListProperties(ctx context.Context) ([]*models.Property, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]*models.Property)
	return rows, args.Error(1)
}

func (m *MockPropertyRepository) FindByAccount(ctx context.Context, accountNumber string) (*models.Property, error) {
	args := m.Called(ctx, accountNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	p, ok := args.Get(0).(*models.Property)
	if !ok {
		return nil, args.Error(1)
	}
	return p, args.Error(1)
}

func (m *MockPropertyRepository) ApplyReconciliation(ctx context.Context, plan *models.ReconciliationPlan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *MockPropertyRepository) ListTrainingSamples(ctx context.Context) ([]models.TrainingSample, error) {
	args := m.Called(ctx)
	samples, _ := args.Get(0).([]models.TrainingSample)
	return samples, args.Error(1)
}

func (m *MockPropertyRepository) ListUnvalued(ctx context.Context, limit int) ([]*models.Property, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]*models.Property)
	return rows, args.Error(1)
}

func (m *MockPropertyRepository) UpdatePredictions(ctx context.Context, preds []models.Prediction) (int, error) {
	args := m.Called(ctx, preds)
	return args.Int(0), args.Error(1)
}

// MockPortfolioRepository is a mock implementation of PortfolioRepository for testing
type MockPortfolioRepository struct {
	mock.Mock
}

func (m *MockPortfolioRepository) ListOwnerHoldings(ctx context.Context, includeInactive bool) ([]models.OwnerHolding, error) {
	args := m.Called(ctx, includeInactive)
	holdings, _ := args.Get(0).([]models.OwnerHolding)
	return holdings, args.Error(1)
}

func (m *MockPortfolioRepository) ReplacePortfolios(ctx context.Context, portfolios []models.OwnerPortfolio) error {
	return m.Called(ctx, portfolios).Error(0)
}

func (m *MockPortfolioRepository) ListPortfolios(ctx context.Context, limit int) ([]models.OwnerPortfolio, error) {
	args := m.Called(ctx, limit)
	portfolios, _ := args.Get(0).([]models.OwnerPortfolio)
	return portfolios, args.Error(1)
}

func (m *MockPortfolioRepository) FindPortfolio(ctx context.Context, ownerName string) (*models.OwnerPortfolio, error) {
	args := m.Called(ctx, ownerName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OwnerPortfolio), args.Error(1)
}

// MockBatchRepository is a mock implementation of BatchRepository for testing
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) CreateBatch(ctx context.Context, batch *models.ImportBatch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *MockBatchRepository) CompleteBatch(ctx context.Context, batchID string, totals models.BatchTotals, seconds float64, at time.Time) (bool, error) {
	args := m.Called(ctx, batchID, totals, seconds, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockBatchRepository) FailBatch(ctx context.Context, batchID string, errorRecords int, message string, seconds float64, at time.Time) (bool, error) {
	args := m.Called(ctx, batchID, errorRecords, message, seconds, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockBatchRepository) FindBatch(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatch), args.Error(1)
}

func (m *MockBatchRepository) ListBatches(ctx context.Context, limit int) ([]*models.ImportBatch, error) {
	args := m.Called(ctx, limit)
	batches, _ := args.Get(0).([]*models.ImportBatch)
	return batches, args.Error(1)
}

// sliceSource is an in-memory feed.RowSource.
type sliceSource struct {
	items []sourceItem
	pos   int
}

type sourceItem struct {
	row feed.Row
	err error
}

func (s *sliceSource) Next() (feed.Row, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.row, item.err
}

func rowsSource(rows ...feed.Row) *sliceSource {
	src := &sliceSource{}
	for _, r := range rows {
		src.items = append(src.items, sourceItem{row: r})
	}
	return src
}

func strp(s string) *string   { return &s }
func fltp(f float64) *float64 { return &f }

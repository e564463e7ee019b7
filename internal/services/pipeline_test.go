package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/atlas/reconciler/internal/feed"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository/memory"
)

const feedHeader = "acct,owner,site_addr_1,tot_mkt_val,acreage"

// writeFeed writes a roll export to a temp file and returns its path.
func writeFeed(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roll.csv")
	content := feedHeader + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// failingApply rejects every reconciliation so rollback behaviour can be observed.
type failingApply struct {
	*memory.Store
}

func (f failingApply) ApplyReconciliation(context.Context, *models.ReconciliationPlan) error {
	return errors.New("could not serialize access due to concurrent update")
}

type pipelineFixture struct {
	store    *memory.Store
	pipeline *Pipeline
	ledger   BatchLedger
	history  PropertyService
	agg      PortfolioAggregator
}

func newPipelineFixture(t *testing.T, includeInactive bool) *pipelineFixture {
	t.Helper()
	log := logger.New("test")
	store := memory.New()

	ledger := NewBatchLedger(store, log)
	agg := NewPortfolioAggregator(store, log, includeInactive)
	p := NewPipeline(
		ledger,
		NewStagingLoader(store, log),
		NewChangeReconciler(store, store, log),
		agg,
		FileSourceOpener(','),
		log,
	)
	return &pipelineFixture{
		store:    store,
		pipeline: p,
		ledger:   ledger,
		history:  NewPropertyService(store, store, log),
		agg:      agg,
	}
}

func (f *pipelineFixture) run(t *testing.T, path string) *models.BatchResult {
	t.Helper()
	result, err := f.pipeline.RunBatch(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusCompleted, result.Status)
	return result
}

func (f *pipelineFixture) portfolioOwners(t *testing.T) map[string]int {
	t.Helper()
	portfolios, err := f.agg.ListPortfolios(context.Background(), MaxListLimit)
	require.NoError(t, err)
	owners := make(map[string]int, len(portfolios))
	for _, p := range portfolios {
		owners[p.OwnerName] = p.TotalProperties
	}
	return owners
}

func TestPipeline_EndToEnd(t *testing.T) {
	tests := []struct {
		name            string
		includeInactive bool
		wantOwners      map[string]int
	}{
		{
			name:            "inactive excluded from portfolios",
			includeInactive: false,
			wantOwners:      map[string]int{"DOE": 1, "LEE": 1},
		},
		{
			name:            "inactive retained in portfolios",
			includeInactive: true,
			wantOwners:      map[string]int{"DOE": 1, "LEE": 1, "JONES": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newPipelineFixture(t, tt.includeInactive)

			// Batch 1 introduces A and B
			first := f.run(t, writeFeed(t,
				"A,smith,1 main st,100000,1",
				"B,jones,2 main st,200000,2",
			))
			assert.Equal(t, 2, first.NewRecords)
			assert.Equal(t, 0, f.store.HistoryLen())

			// Batch 2 sells A to DOE, drops B and adds C
			second := f.run(t, writeFeed(t,
				"A,doe,1 main st,100000,1",
				"C,lee,3 main st,50000,0.5",
			))
			assert.Equal(t, 1, second.NewRecords)
			assert.Equal(t, 1, second.OwnerChanges)
			assert.Equal(t, 0, second.ValueChanges)
			assert.Equal(t, 1, second.DeactivatedRecords)

			historyA, err := f.history.GetHistory(ctx, "A")
			require.NoError(t, err)
			require.Len(t, historyA, 1)
			assert.Equal(t, models.ChangeTypeOwner, historyA[0].ChangeType)
			assert.Equal(t, "SMITH", *historyA[0].OldValue)
			assert.Equal(t, "DOE", *historyA[0].NewValue)
			assert.Equal(t, second.BatchID, historyA[0].BatchID)

			b, err := f.history.GetProperty(ctx, "B")
			require.NoError(t, err)
			assert.False(t, b.IsActive)
			assert.Equal(t, "JONES", *b.OwnerName)
			assert.Equal(t, 200000.0, *b.TotalValue)

			historyC, err := f.history.GetHistory(ctx, "C")
			require.NoError(t, err)
			assert.Empty(t, historyC)

			assert.Equal(t, tt.wantOwners, f.portfolioOwners(t))

			batch, err := f.ledger.Get(ctx, second.BatchID)
			require.NoError(t, err)
			assert.Equal(t, models.BatchStatusCompleted, batch.Status)
			assert.Equal(t, 2, batch.TotalRecords)
			assert.Equal(t, 1, batch.NewRecords)
			assert.Equal(t, 1, batch.UpdatedRecords)
			assert.NotNil(t, batch.CompletedAt)

			assert.Empty(t, f.store.StagedBatches())
		})
	}
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t, false)
	path := writeFeed(t,
		"A,smith,1 main st,100000,1",
		"B,acme llc,2 main st,200000,2",
	)

	f.run(t, path)
	before, err := f.agg.ListPortfolios(context.Background(), MaxListLimit)
	require.NoError(t, err)
	events := f.store.HistoryLen()

	again := f.run(t, path)
	after, err := f.agg.ListPortfolios(context.Background(), MaxListLimit)
	require.NoError(t, err)

	assert.Equal(t, 0, again.NewRecords)
	assert.Equal(t, 0, again.UpdatedRecords)
	assert.Equal(t, events, f.store.HistoryLen())
	assert.Equal(t, before, after)
}

func TestPipeline_NonFiniteValuesStoredAsMissing(t *testing.T) {
	f := newPipelineFixture(t, false)
	path := writeFeed(t,
		"A,smith,1 main st,NaN,1",
		"B,jones,2 main st,-infinity,Inf",
	)

	f.run(t, path)
	again := f.run(t, path)

	assert.Equal(t, 0, again.ValueChanges)
	assert.Equal(t, 0, again.UpdatedRecords)
	assert.Equal(t, 0, f.store.HistoryLen())

	a, err := f.history.GetProperty(context.Background(), "A")
	require.NoError(t, err)
	assert.Nil(t, a.TotalValue)

	b, err := f.history.GetProperty(context.Background(), "B")
	require.NoError(t, err)
	assert.Nil(t, b.TotalValue)
	assert.Nil(t, b.AreaAcres)
}

func TestPipeline_DuplicateAccountLastRowWins(t *testing.T) {
	f := newPipelineFixture(t, false)

	f.run(t, writeFeed(t,
		"A,first owner,1 main st,100000,1",
		"A,second owner,1 main st,150000,1",
	))

	p, err := f.history.GetProperty(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "SECOND OWNER", *p.OwnerName)
	assert.Equal(t, 150000.0, *p.TotalValue)
}

func TestPipeline_RowErrorsCounted(t *testing.T) {
	f := newPipelineFixture(t, false)

	result := f.run(t, writeFeed(t,
		"A,smith,1 main st,100000,1",
		",nobody,9 nowhere,1,1",
	))

	assert.Equal(t, 2, result.TotalRecords)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.NewRecords)

	batch, err := f.ledger.Get(context.Background(), result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.ErrorRecords)
}

func TestPipeline_EmptyFeedFailsWithoutDeactivating(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, false)
	f.run(t, writeFeed(t, "A,smith,1 main st,100000,1"))

	result, err := f.pipeline.RunBatch(ctx, writeFeed(t))

	assert.ErrorIs(t, err, ErrNoUsableRows)
	assert.Equal(t, models.BatchStatusFailed, result.Status)

	p, err := f.history.GetProperty(ctx, "A")
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	batch, err := f.ledger.Get(ctx, result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, batch.Status)
	require.NotNil(t, batch.ErrorMessage)
}

func TestPipeline_ReconcileFailureLeavesStoreUnchanged(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newPipelineFixture(t, false)
	f.run(t, writeFeed(t, "A,smith,1 main st,100000,1"))

	log := logger.New("test")
	failing := NewPipeline(
		f.ledger,
		NewStagingLoader(f.store, log),
		NewChangeReconciler(f.store, failingApply{f.store}, log),
		f.agg,
		FileSourceOpener(','),
		log,
	)

	// Act
	result, err := failing.RunBatch(ctx, writeFeed(t, "A,doe,1 main st,999,1"))

	// Assert
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusFailed, result.Status)
	assert.Contains(t, result.Error, "serialize")

	p, err := f.history.GetProperty(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "SMITH", *p.OwnerName)
	assert.Equal(t, 100000.0, *p.TotalValue)
	assert.Equal(t, 0, f.store.HistoryLen())

	batch, err := f.ledger.Get(ctx, result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, batch.Status)
	assert.Empty(t, f.store.StagedBatches())
}

func TestPipeline_OpenFailure(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, false)

	result, err := f.pipeline.RunBatch(ctx, filepath.Join(t.TempDir(), "missing.csv"))

	require.Error(t, err)
	assert.Equal(t, models.BatchStatusFailed, result.Status)
	assert.NotEmpty(t, result.BatchID)

	batch, err := f.ledger.Get(ctx, result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, batch.Status)
}

func TestPipeline_RejectsConcurrentRun(t *testing.T) {
	// Arrange
	log := logger.New("test")
	store := memory.New()
	entered := make(chan struct{})
	release := make(chan struct{})

	blocking := func(ctx context.Context, ref string) (feed.RowSource, io.Closer, error) {
		close(entered)
		<-release
		return nil, nil, errors.New("feed unavailable")
	}
	p := NewPipeline(
		NewBatchLedger(store, log),
		NewStagingLoader(store, log),
		NewChangeReconciler(store, store, log),
		NewPortfolioAggregator(store, log, false),
		blocking,
		log,
	)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunBatch(context.Background(), "first.csv")
		done <- err
	}()
	<-entered

	// Act
	result, err := p.RunBatch(context.Background(), "second.csv")

	// Assert
	assert.ErrorIs(t, err, ErrBatchInProgress)
	require.NotNil(t, result)
	assert.Equal(t, models.BatchStatusFailed, result.Status)

	close(release)
	assert.Error(t, <-done)

	batches, err := store.ListBatches(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, batches, 1, "the rejected run must not open a batch")
}

package batch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/store"
)

type stubEnricher struct {
	mu      sync.Mutex
	calls   []string
	failFor string
}

func (s *stubEnricher) Run(_ context.Context, req model.EnrichmentRequest) (*model.EnrichmentBundle, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Address)
	s.mu.Unlock()

	if req.Address == s.failFor {
		return nil, eris.New("enrichment failed")
	}
	return &model.EnrichmentBundle{
		RunID:   "run-" + req.Address,
		Request: req,
	}, nil
}

func newBatchStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunBatch(t *testing.T) {
	enricher := &stubEnricher{}
	st := newBatchStore(t)
	reqs := []model.EnrichmentRequest{
		{Address: "1 First St"},
		{Address: "2 Second St"},
		{Address: "3 Third St"},
	}

	results := Run(context.Background(), enricher, st, reqs, 2)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, reqs[i].Address, res.Request.Address)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Bundle)
	}
	assert.Len(t, enricher.calls, 3)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{Status: store.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	enricher := &stubEnricher{failFor: "2 Second St"}
	st := newBatchStore(t)
	reqs := []model.EnrichmentRequest{
		{Address: "1 First St"},
		{Address: "2 Second St"},
		{Address: "3 Third St"},
	}

	results := Run(context.Background(), enricher, st, reqs, 1)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	failed, err := st.ListRuns(context.Background(), store.RunFilter{Status: store.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "2 Second St", failed[0].Request.Address)
}

func TestRunBatchWithoutStore(t *testing.T) {
	enricher := &stubEnricher{}
	results := Run(context.Background(), enricher, nil, []model.EnrichmentRequest{{Address: "1 First St"}}, 0)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

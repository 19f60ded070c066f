package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/store"
)

type stubEnricher struct {
	err error
}

func (s *stubEnricher) Run(_ context.Context, req model.EnrichmentRequest) (*model.EnrichmentBundle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.EnrichmentBundle{
		RunID:   "run-1",
		Request: req,
		Consensus: model.ConsensusRecord{
			SourceCount:  2,
			QualityScore: 50,
		},
	}, nil
}

func newTestServer(t *testing.T, enricher Enricher) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(New(enricher, st).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubEnricher{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEnrich(t *testing.T) {
	srv, st := newTestServer(t, &stubEnricher{})

	resp, err := http.Post(srv.URL+"/enrich", "application/json",
		strings.NewReader(`{"address":"123 Main St","city":"Austin","state":"TX"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bundle model.EnrichmentBundle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bundle))
	assert.Equal(t, "run-1", bundle.RunID)
	assert.Equal(t, 50, bundle.Consensus.QualityScore)

	// Run was persisted as complete.
	runs, err := st.ListRuns(context.Background(), store.RunFilter{Status: store.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "123 Main St", runs[0].Request.Address)
}

func TestEnrichValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubEnricher{})

	resp, err := http.Post(srv.URL+"/enrich", "application/json", strings.NewReader(`{"city":"Austin"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/enrich", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestEnrichFailureRecorded(t *testing.T) {
	srv, st := newTestServer(t, &stubEnricher{err: eris.New("deadline exceeded")})

	resp, err := http.Post(srv.URL+"/enrich", "application/json",
		strings.NewReader(`{"address":"123 Main St"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	failed, err := st.ListRuns(context.Background(), store.RunFilter{Status: store.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "deadline exceeded", failed[0].Error)
}

func TestGetRun(t *testing.T) {
	srv, st := newTestServer(t, &stubEnricher{})
	run, err := st.CreateRun(context.Background(), model.EnrichmentRequest{Address: "9 Elm St"})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/runs/" + run.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "9 Elm St", got.Request.Address)
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubEnricher{})
	resp, err := http.Get(srv.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	srv, st := newTestServer(t, &stubEnricher{})
	_, err := st.CreateRun(context.Background(), model.EnrichmentRequest{Address: "1 First St"})
	require.NoError(t, err)
	_, err = st.CreateRun(context.Background(), model.EnrichmentRequest{Address: "2 Second St"})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/runs?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Len(t, runs, 2)
}

func TestListRunsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t, &stubEnricher{})
	resp, err := http.Get(srv.URL + "/runs?limit=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &stubEnricher{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/enrich", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

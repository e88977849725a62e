package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"
	"catalog-gateway/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, handler http.HandlerFunc) (*ElasticEngine, *testutil.FakeElasticsearch) {
	t.Helper()
	es := testutil.NewFakeElasticsearch(t, handler)
	return NewElasticEngine(es.Client, 5*time.Second, 100, logger.NewTestLogger(t)), es
}

func TestElasticEngine_Execute_Success(t *testing.T) {
	engine, es := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, testutil.SearchResponse(42,
			testutil.Hit{Index: "catalog", ID: "r1", Score: 1.5, Source: map[string]interface{}{"title": "one"}},
			testutil.Hit{Index: "catalog", ID: "r2", Score: 1.2, Source: map[string]interface{}{"title": "two"}},
		))
	})

	resp, err := engine.Execute(context.Background(), Query{
		ID:       "q-42",
		Sources:  []string{"catalog"},
		Filter:   AttributeEquals("title", "one"),
		Start:    10,
		PageSize: 5,
		Sorts:    []models.Sort{{Attribute: "RELEVANCE", Direction: "descending"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "q-42", resp.ID)
	assert.Equal(t, int64(42), resp.Hits)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "r1", resp.Results[0].ID)
	assert.Equal(t, 1.5, resp.Results[0].RelevanceScore)
	assert.Equal(t, "one", resp.Results[0].Properties["title"])
	require.Len(t, resp.Status, 1)
	assert.Equal(t, models.SourceStatus{ID: "catalog", Count: 2, Hits: 2, Elapsed: resp.Status[0].Elapsed, Successful: true}, resp.Status[0])

	reqs := es.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/catalog/_search", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "from=10")
	assert.Contains(t, reqs[0].Query, "size=5")
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"title": "one"}}, reqs[0].Body["query"])
	sorts := reqs[0].Body["sort"].([]interface{})
	assert.Contains(t, sorts[0].(map[string]interface{}), "_score")
}

func TestElasticEngine_Execute_PageSizeCapped(t *testing.T) {
	engine, es := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, testutil.SearchResponse(0))
	})

	resp, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog"}, PageSize: 5000})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Contains(t, es.Requests()[0].Query, "size=100")
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, es.Requests()[0].Body["query"])
}

func TestElasticEngine_Execute_ErrorClasses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]interface{}
		wantErr error
	}{
		{
			name:    "bad query is unsupported",
			status:  http.StatusBadRequest,
			body:    testutil.ErrorBody(400, "search_phase_execution_exception", "Failed to parse query"),
			wantErr: ErrUnsupportedQuery,
		},
		{
			name:    "missing index is unavailable",
			status:  http.StatusNotFound,
			body:    testutil.ErrorBody(404, "index_not_found_exception", "no such index [catalog]"),
			wantErr: ErrSourceUnavailable,
		},
		{
			name:    "server error is unavailable",
			status:  http.StatusServiceUnavailable,
			body:    testutil.ErrorBody(503, "cluster_block_exception", "blocked"),
			wantErr: ErrSourceUnavailable,
		},
		{
			name:    "conflict is a federation failure",
			status:  http.StatusConflict,
			body:    testutil.ErrorBody(409, "version_conflict", "conflict"),
			wantErr: ErrFederation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteJSON(w, tt.status, tt.body)
			})
			_, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestElasticEngine_Execute_MissingIndexIsNotFound(t *testing.T) {
	engine, _ := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusNotFound, testutil.ErrorBody(404, "index_not_found_exception", "no such index [catalog]"))
	})

	_, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestElasticEngine_Execute_AllShardsFailed(t *testing.T) {
	engine, _ := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
		body := testutil.SearchResponse(0)
		body["_shards"] = map[string]interface{}{
			"total": 2, "successful": 0, "failed": 2,
			"failures": []interface{}{
				map[string]interface{}{"index": "catalog", "reason": map[string]interface{}{"type": "x", "reason": "disk"}},
			},
		}
		testutil.WriteJSON(w, http.StatusOK, body)
	})

	_, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog"}})
	assert.ErrorIs(t, err, ErrFederation)
}

func TestElasticEngine_Execute_PartialShardFailureReported(t *testing.T) {
	engine, _ := newEngine(t, func(w http.ResponseWriter, r *http.Request) {
		body := testutil.SearchResponse(1, testutil.Hit{Index: "catalog", ID: "r1", Source: map[string]interface{}{}})
		body["_shards"] = map[string]interface{}{
			"total": 2, "successful": 1, "failed": 1,
			"failures": []interface{}{
				map[string]interface{}{"index": "archive", "reason": map[string]interface{}{"type": "x", "reason": "shard offline"}},
			},
		}
		testutil.WriteJSON(w, http.StatusOK, body)
	})

	resp, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog", "archive"}})
	require.NoError(t, err)
	require.Len(t, resp.Status, 2)
	assert.True(t, resp.Status[0].Successful)
	assert.False(t, resp.Status[1].Successful)
	assert.Equal(t, []string{"shard offline"}, resp.Status[1].Warnings)
}

func TestElasticEngine_Execute_Unreachable(t *testing.T) {
	engine, es := newEngine(t, func(w http.ResponseWriter, r *http.Request) {})
	es.Server.Close()

	_, err := engine.Execute(context.Background(), Query{Sources: []string{"catalog"}})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestElasticEngine_Execute_NoSources(t *testing.T) {
	engine, es := newEngine(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := engine.Execute(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrUnsupportedQuery)
	assert.Empty(t, es.Requests())
}

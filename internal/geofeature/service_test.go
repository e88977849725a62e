package geofeature

import (
	"context"
	"net/http"
	"testing"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestions(t *testing.T) {
	fake := testutil.NewFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, testutil.SearchResponse(2,
			testutil.Hit{Index: "geofeatures", ID: "f-1", Source: map[string]interface{}{"name": "Harbour Point"}},
			testutil.Hit{Index: "geofeatures", ID: "f-2", Source: map[string]interface{}{"name": "Harbour Island"}},
		))
	})
	s := NewService(fake.Client, "geofeatures", time.Second, logger.NewTestLogger(t))

	got, err := s.Suggestions(context.Background(), " harb ", 0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "f-1", got[0].ID)
	assert.Equal(t, "Harbour Point", got[0].Name)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/geofeatures/_search", reqs[0].Path)
	assert.EqualValues(t, DefaultSuggestionLimit, reqs[0].Body["size"])
	prefix := reqs[0].Body["query"].(map[string]interface{})["match_phrase_prefix"].(map[string]interface{})
	assert.Equal(t, "harb", prefix["name"].(map[string]interface{})["query"])
}

func TestSuggestions_BlankQuery(t *testing.T) {
	fake := testutil.NewFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	s := NewService(fake.Client, "geofeatures", time.Second, logger.NewNoOpLogger())

	got, err := s.Suggestions(context.Background(), "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFeatureByID(t *testing.T) {
	fake := testutil.NewFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geofeatures/_doc/f-1" {
			testutil.WriteJSON(w, http.StatusNotFound, map[string]interface{}{"_id": "missing", "found": false})
			return
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"_index": "geofeatures",
			"_id":    "f-1",
			"found":  true,
			"_source": map[string]interface{}{
				"name":     "Harbour Point",
				"geometry": map[string]interface{}{"type": "Point", "coordinates": []float64{-1.5, 50.9}},
			},
		})
	})
	s := NewService(fake.Client, "geofeatures", time.Second, logger.NewNoOpLogger())

	f, err := s.FeatureByID(context.Background(), "f-1")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "Harbour Point", f.Properties["name"])
	assert.JSONEq(t, `{"type":"Point","coordinates":[-1.5,50.9]}`, string(f.Geometry))

	missing, err := s.FeatureByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFeatureByID_ClusterError(t *testing.T) {
	fake := testutil.NewFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusServiceUnavailable, testutil.ErrorBody(503, "cluster_block_exception", "blocked"))
	})
	s := NewService(fake.Client, "geofeatures", time.Second, logger.NewNoOpLogger())

	_, err := s.FeatureByID(context.Background(), "f-1")
	assert.Error(t, err)
}

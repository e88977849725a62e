// Package testutil holds fakes shared by package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"
)

// FakeElasticsearch is an httptest server that answers like Elasticsearch and
// records the requests it receives.
type FakeElasticsearch struct {
	Server *httptest.Server
	Client *elasticsearch.Client

	mu       sync.Mutex
	requests []RecordedRequest
}

type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

// NewFakeElasticsearch starts a fake whose responses come from handler.
func NewFakeElasticsearch(t *testing.T, handler http.HandlerFunc) *FakeElasticsearch {
	t.Helper()

	f := &FakeElasticsearch{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(f.Server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{f.Server.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)
	f.Client = client
	return f
}

func (f *FakeElasticsearch) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Hit is a document returned by SearchResponse.
type Hit struct {
	Index  string
	ID     string
	Score  float64
	Source map[string]interface{}
}

// SearchResponse renders a minimal successful _search body.
func SearchResponse(total int64, hits ...Hit) map[string]interface{} {
	out := make([]interface{}, 0, len(hits))
	counts := map[string]int64{}
	var order []string
	for _, h := range hits {
		out = append(out, map[string]interface{}{
			"_index":  h.Index,
			"_id":     h.ID,
			"_score":  h.Score,
			"_source": h.Source,
		})
		if _, ok := counts[h.Index]; !ok {
			order = append(order, h.Index)
		}
		counts[h.Index]++
	}
	buckets := make([]interface{}, 0, len(order))
	for _, idx := range order {
		buckets = append(buckets, map[string]interface{}{"key": idx, "doc_count": counts[idx]})
	}
	return map[string]interface{}{
		"took":      3,
		"timed_out": false,
		"_shards":   map[string]interface{}{"total": 1, "successful": 1, "failed": 0},
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": total, "relation": "eq"},
			"hits":  out,
		},
		"aggregations": map[string]interface{}{
			"sources": map[string]interface{}{"buckets": buckets},
		},
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody renders an Elasticsearch error body.
func ErrorBody(status int, errType, reason string) map[string]interface{} {
	return map[string]interface{}{
		"error":  map[string]interface{}{"type": errType, "reason": reason},
		"status": status,
	}
}

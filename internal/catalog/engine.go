package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultPageSize = 10
	relevanceSort   = "relevance"
	sourcesAgg      = "sources"
)

// Query is a resolved catalog query. Sources are index names.
type Query struct {
	ID       string
	Sources  []string
	Filter   Filter
	Start    int // 0-based offset
	PageSize int
	Sorts    []models.Sort
	Timeout  time.Duration
}

// Engine executes catalog queries. Errors wrap ErrUnsupportedQuery,
// ErrSourceUnavailable or ErrFederation. A missing source index also wraps
// ErrSourceNotFound.
type Engine interface {
	Execute(ctx context.Context, q Query) (*models.QueryResponse, error)
}

type ElasticEngine struct {
	client      *elasticsearch.Client
	logger      logger.Logger
	timeout     time.Duration
	maxPageSize int
}

func NewElasticEngine(client *elasticsearch.Client, timeout time.Duration, maxPageSize int, log logger.Logger) *ElasticEngine {
	if maxPageSize <= 0 {
		maxPageSize = 1000
	}
	return &ElasticEngine{
		client:      client,
		logger:      log.WithFields(map[string]interface{}{"component": "catalog"}),
		timeout:     timeout,
		maxPageSize: maxPageSize,
	}
}

func (e *ElasticEngine) Execute(ctx context.Context, q Query) (*models.QueryResponse, error) {
	if len(q.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrUnsupportedQuery)
	}

	timeout := e.timeout
	if q.Timeout > 0 && (timeout == 0 || q.Timeout < timeout) {
		timeout = q.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := e.buildRequest(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, e.client)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: timed out after %s", ErrSourceUnavailable, strings.Join(q.Sources, ","), timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, strings.Join(q.Sources, ","), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, classifyErrorResponse(res, q.Sources)
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrFederation, err)
	}

	resp, err := e.toQueryResponse(q, &body, time.Since(start))
	if err != nil {
		return nil, err
	}

	e.logger.Debug("catalog query executed", map[string]interface{}{
		"queryId": q.ID,
		"sources": q.Sources,
		"hits":    resp.Hits,
		"results": len(resp.Results),
		"tookMs":  body.Took,
	})
	return resp, nil
}

func (e *ElasticEngine) buildRequest(q Query) (*esapi.SearchRequest, error) {
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > e.maxPageSize {
		size = e.maxPageSize
	}
	from := q.Start
	if from < 0 {
		from = 0
	}

	body := map[string]interface{}{
		"query":            QuerySource(q.Filter),
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			sourcesAgg: map[string]interface{}{
				"terms": map[string]interface{}{"field": "_index", "size": len(q.Sources)},
			},
		},
	}
	if sorts := buildSorts(q.Sorts); len(sorts) > 0 {
		body["sort"] = sorts
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrUnsupportedQuery, err)
	}

	return &esapi.SearchRequest{
		Index: q.Sources,
		Body:  &buf,
		From:  &from,
		Size:  &size,
	}, nil
}

func buildSorts(sorts []models.Sort) []interface{} {
	out := make([]interface{}, 0, len(sorts))
	for _, s := range sorts {
		order := "asc"
		if strings.HasPrefix(strings.ToLower(s.Direction), "desc") {
			order = "desc"
		}
		field := s.Attribute
		if strings.EqualFold(field, relevanceSort) {
			field = "_score"
		}
		out = append(out, map[string]interface{}{
			field: map[string]interface{}{"order": order, "unmapped_type": "keyword"},
		})
	}
	return out
}

type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Shards   struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
		Failures   []struct {
			Index  string `json:"index"`
			Reason struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"reason"`
		} `json:"failures"`
	} `json:"_shards"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Index  string                 `json:"_index"`
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Sources struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"sources"`
	} `json:"aggregations"`
}

func (e *ElasticEngine) toQueryResponse(q Query, body *searchResponse, elapsed time.Duration) (*models.QueryResponse, error) {
	if body.Shards.Total > 0 && body.Shards.Successful == 0 {
		reasons := make([]string, 0, len(body.Shards.Failures))
		for _, f := range body.Shards.Failures {
			reasons = append(reasons, fmt.Sprintf("%s: %s", f.Index, f.Reason.Reason))
		}
		return nil, fmt.Errorf("%w: all %d shards failed: %s", ErrFederation, body.Shards.Total, strings.Join(reasons, "; "))
	}

	statuses := make(map[string]*models.SourceStatus, len(q.Sources))
	order := make([]string, 0, len(q.Sources))
	status := func(index string) *models.SourceStatus {
		if st, ok := statuses[index]; ok {
			return st
		}
		st := &models.SourceStatus{ID: index, Successful: true, Elapsed: elapsed.Milliseconds()}
		statuses[index] = st
		order = append(order, index)
		return st
	}
	for _, src := range q.Sources {
		status(src)
	}

	resp := &models.QueryResponse{
		ID:      q.ID,
		Results: make([]models.Result, 0, len(body.Hits.Hits)),
		Hits:    body.Hits.Total.Value,
		Elapsed: elapsed.Milliseconds(),
	}
	for _, h := range body.Hits.Hits {
		r := models.Result{ID: h.ID, Source: h.Index, Properties: h.Source}
		if h.Score != nil {
			r.RelevanceScore = *h.Score
		}
		resp.Results = append(resp.Results, r)
		status(h.Index).Count++
	}
	for _, b := range body.Aggregations.Sources.Buckets {
		status(b.Key).Hits = b.DocCount
	}
	for _, f := range body.Shards.Failures {
		st := status(f.Index)
		st.Successful = false
		st.Warnings = append(st.Warnings, f.Reason.Reason)
	}
	if body.TimedOut {
		for _, st := range statuses {
			st.Warnings = append(st.Warnings, "search timed out, results may be partial")
		}
	}

	resp.Status = make([]models.SourceStatus, 0, len(order))
	for _, id := range order {
		resp.Status = append(resp.Status, *statuses[id])
	}
	return resp, nil
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
		Index  string `json:"index"`
	} `json:"error"`
	Status int `json:"status"`
}

func classifyErrorResponse(res *esapi.Response, sources []string) error {
	var er errorResponse
	_ = json.NewDecoder(res.Body).Decode(&er)
	reason := er.Error.Reason
	if reason == "" {
		reason = res.Status()
	}

	switch {
	case res.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrUnsupportedQuery, reason)
	case res.StatusCode == http.StatusNotFound || er.Error.Type == "index_not_found_exception":
		index := er.Error.Index
		if index == "" {
			index = strings.Join(sources, ",")
		}
		return fmt.Errorf("%w: %w: %s: %s", ErrSourceUnavailable, ErrSourceNotFound, index, reason)
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: %s: %s", ErrSourceUnavailable, strings.Join(sources, ","), reason)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrFederation, res.StatusCode, reason)
	}
}

package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-gateway/internal/catalog"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/metrics"
	"catalog-gateway/internal/models"

	"golang.org/x/sync/singleflight"
)

const (
	attrTags            = "tags"
	attrSubscribedQuery = "subscribedQueryIds"

	// candidatePageSize bounds the lookup; only the first workspace is used.
	candidatePageSize = 5
)

// Status tags a LookupResult.
type Status string

const (
	StatusFound        Status = "found"
	StatusNotFound     Status = "not_found"
	StatusLookupFailed Status = "failed"
)

// LookupResult is the outcome of FindOwningWorkspace. Workspace is set only
// when Status is StatusFound; Reason only when it is StatusLookupFailed.
type LookupResult struct {
	Status    Status
	Workspace *models.Workspace
	Reason    string
}

func Found(ws *models.Workspace) LookupResult {
	return LookupResult{Status: StatusFound, Workspace: ws}
}

func NotFound() LookupResult {
	return LookupResult{Status: StatusNotFound}
}

func LookupFailed(reason string) LookupResult {
	return LookupResult{Status: StatusLookupFailed, Reason: reason}
}

// Finder resolves the workspace that subscribes to a query id.
type Finder interface {
	FindOwningWorkspace(ctx context.Context, queryID string) LookupResult
}

// Cache stores lookup outcomes. A nil workspace with ok=true is a cached "not found".
type Cache interface {
	Get(ctx context.Context, queryID string) (ws *models.Workspace, ok bool, err error)
	Set(ctx context.Context, queryID string, ws *models.Workspace) error
}

type Lookup struct {
	engine  catalog.Engine
	index   string
	timeout time.Duration
	cache   Cache
	logger  logger.Logger

	// concurrent lookups for one query id share a single catalog call
	flight singleflight.Group
}

type Option func(*Lookup)

// WithCache enables the lookup cache.
func WithCache(c Cache) Option {
	return func(l *Lookup) { l.cache = c }
}

func NewLookup(engine catalog.Engine, index string, timeout time.Duration, log logger.Logger, opts ...Option) *Lookup {
	l := &Lookup{
		engine:  engine,
		index:   index,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "workspace-lookup"}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FindOwningWorkspace issues one filtered catalog query for records tagged
// "workspace" that subscribe to queryID. An empty id short-circuits to
// NotFound. Failures are logged at debug and reported as LookupFailed; they
// never propagate.
func (l *Lookup) FindOwningWorkspace(ctx context.Context, queryID string) LookupResult {
	if queryID == "" {
		return NotFound()
	}

	if ws, ok := l.fromCache(ctx, queryID); ok {
		return record(resultFor(ws))
	}

	v, _, _ := l.flight.Do(queryID, func() (interface{}, error) {
		return l.search(ctx, queryID), nil
	})
	return record(v.(LookupResult))
}

func (l *Lookup) search(ctx context.Context, queryID string) LookupResult {
	resp, err := l.engine.Execute(ctx, catalog.Query{
		ID:      "workspace-lookup:" + queryID,
		Sources: []string{l.index},
		Filter: catalog.And(
			catalog.AttributeEquals(attrTags, models.WorkspaceTag),
			catalog.AttributeLike(attrSubscribedQuery, catalog.EscapeLike(queryID)),
		),
		PageSize: candidatePageSize,
		Timeout:  l.timeout,
	})
	if err != nil {
		l.logger.Debug("workspace lookup failed", map[string]interface{}{
			"queryId": queryID,
			"reason":  failureClass(err),
			"error":   err.Error(),
		})
		return LookupFailed(fmt.Sprintf("%s: %v", failureClass(err), err))
	}

	ws := firstWorkspace(resp)
	if ws != nil && len(resp.Results) > 1 {
		l.logger.Debug("several workspaces subscribe to query, using the first", map[string]interface{}{
			"queryId":     queryID,
			"workspaceId": ws.ID,
			"candidates":  len(resp.Results),
		})
	}
	l.toCache(ctx, queryID, ws)
	return resultFor(ws)
}

func resultFor(ws *models.Workspace) LookupResult {
	if ws == nil {
		return NotFound()
	}
	return Found(ws)
}

func record(r LookupResult) LookupResult {
	metrics.WorkspaceLookups.WithLabelValues(string(r.Status)).Inc()
	return r
}

func (l *Lookup) fromCache(ctx context.Context, queryID string) (*models.Workspace, bool) {
	if l.cache == nil {
		return nil, false
	}
	ws, ok, err := l.cache.Get(ctx, queryID)
	if err != nil {
		l.logger.Debug("workspace cache read failed", map[string]interface{}{"queryId": queryID, "error": err.Error()})
		return nil, false
	}
	if ok {
		metrics.WorkspaceCache.WithLabelValues("hit").Inc()
	} else {
		metrics.WorkspaceCache.WithLabelValues("miss").Inc()
	}
	return ws, ok
}

func (l *Lookup) toCache(ctx context.Context, queryID string, ws *models.Workspace) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, queryID, ws); err != nil {
		l.logger.Debug("workspace cache write failed", map[string]interface{}{"queryId": queryID, "error": err.Error()})
	}
}

// firstWorkspace returns the first result that is tagged as a workspace.
func firstWorkspace(resp *models.QueryResponse) *models.Workspace {
	if resp == nil {
		return nil
	}
	for _, r := range resp.Results {
		ws := FromResult(r)
		if ws.IsWorkspace() {
			return ws
		}
	}
	return nil
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, catalog.ErrUnsupportedQuery):
		return "unsupported_query"
	case errors.Is(err, catalog.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, catalog.ErrFederation):
		return "federation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}

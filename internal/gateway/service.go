package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"catalog-gateway/internal/catalog"
	apperrors "catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"
)

// Observer receives every successful query response. It must not modify it.
type Observer interface {
	Observe(ctx context.Context, resp *models.QueryResponse)
}

// Service executes CQL requests against the catalog and hands the
// responses to the notification pipeline.
type Service struct {
	engine         catalog.Engine
	observer       Observer
	defaultSources []string
	logger         logger.Logger
}

func NewService(engine catalog.Engine, observer Observer, defaultSources []string, log logger.Logger) *Service {
	return &Service{
		engine:         engine,
		observer:       observer,
		defaultSources: defaultSources,
		logger:         log.WithFields(map[string]interface{}{"component": "query-gateway"}),
	}
}

// Query runs req and returns the catalog response unchanged. Errors are
// StandardErrors: UNSUPPORTED_QUERY for constructs the catalog cannot run,
// SOURCE_UNAVAILABLE or FEDERATION_FAILED for catalog failures.
func (s *Service) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	filter, err := catalog.ParseCQL(req.CQL)
	if err != nil {
		return nil, apperrors.NewUnsupportedQueryError(err)
	}

	q := catalog.Query{
		ID:       req.ID,
		Sources:  req.Sources(),
		Filter:   filter,
		PageSize: req.Count,
		Sorts:    req.Sorts,
		Timeout:  time.Duration(req.Timeout) * time.Millisecond,
	}
	if len(q.Sources) == 0 {
		q.Sources = s.defaultSources
	}
	if req.Start > 1 {
		q.Start = req.Start - 1
	}

	resp, err := s.engine.Execute(ctx, q)
	if err != nil {
		return nil, mapCatalogError(err, q.Sources)
	}

	s.logger.Debug("query executed", map[string]interface{}{
		"queryId": req.ID,
		"sources": q.Sources,
		"results": resp.ResultCount(),
		"hits":    resp.Hits,
	})
	if s.observer != nil {
		s.observer.Observe(ctx, resp)
	}
	return resp, nil
}

func mapCatalogError(err error, sources []string) error {
	switch {
	case errors.Is(err, catalog.ErrUnsupportedQuery):
		return apperrors.NewUnsupportedQueryError(err)
	case errors.Is(err, catalog.ErrSourceUnavailable):
		return apperrors.NewSourceUnavailableError(strings.Join(sources, ","), err)
	case errors.Is(err, catalog.ErrFederation):
		return apperrors.NewFederationFailedError(err)
	default:
		return err
	}
}

package geofeature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// DefaultSuggestionLimit matches the size of the location autocomplete list.
const DefaultSuggestionLimit = 10

// Finder looks up gazetteer features.
type Finder interface {
	Suggestions(ctx context.Context, text string, limit int) ([]models.Suggestion, error)
	FeatureByID(ctx context.Context, id string) (*models.GeoFeature, error)
}

// Service reads features from an Elasticsearch gazetteer index whose
// documents carry name, geometry (GeoJSON) and properties.
type Service struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewService(client *elasticsearch.Client, index string, timeout time.Duration, log logger.Logger) *Service {
	return &Service{
		client:  client,
		index:   index,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "geofeature"}),
	}
}

type featureDoc struct {
	Name       string                 `json:"name"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Suggestions returns features whose name starts with text. Blank text yields none.
func (s *Service) Suggestions(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []models.Suggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	body, err := json.Marshal(map[string]interface{}{
		"size":    limit,
		"_source": []string{"name"},
		"query": map[string]interface{}{
			"match_phrase_prefix": map[string]interface{}{
				"name": map[string]interface{}{"query": text},
			},
		},
	})
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := esapi.SearchRequest{Index: []string{s.index}, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewSourceUnavailableError(s.index, fmt.Errorf("suggestions: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Source featureDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode suggestions: %w", err))
	}

	out := make([]models.Suggestion, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, models.Suggestion{ID: h.ID, Name: h.Source.Name})
	}
	return out, nil
}

// FeatureByID returns the feature as GeoJSON, or nil when there is none.
func (s *Service) FeatureByID(ctx context.Context, id string) (*models.GeoFeature, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := esapi.GetRequest{Index: s.index, DocumentID: id}.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		s.logger.Debug("feature not found", map[string]interface{}{"id": id})
		return nil, nil
	}
	if res.IsError() {
		return nil, errors.NewSourceUnavailableError(s.index, fmt.Errorf("get feature: %s", res.Status()))
	}

	var parsed struct {
		ID     string     `json:"_id"`
		Found  bool       `json:"found"`
		Source featureDoc `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode feature: %w", err))
	}
	if !parsed.Found {
		return nil, nil
	}

	props := parsed.Source.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	if _, ok := props["name"]; !ok && parsed.Source.Name != "" {
		props["name"] = parsed.Source.Name
	}
	geometry := parsed.Source.Geometry
	if len(geometry) == 0 {
		geometry = json.RawMessage("null")
	}
	return &models.GeoFeature{
		Type:       "Feature",
		ID:         parsed.ID,
		Geometry:   geometry,
		Properties: props,
	}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

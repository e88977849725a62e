package gateway

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"catalog-gateway/internal/models"
)

const geometryProperty = "geometry"

// Transformer renders a query response in an alternative format.
type Transformer struct {
	ContentType string
	Write       func(w io.Writer, resp *models.QueryResponse) error
}

// Transformers maps transformer ids to their renderers.
type Transformers map[string]Transformer

// DefaultTransformers returns the built-in geojson and csv transformers.
func DefaultTransformers() Transformers {
	return Transformers{
		"geojson": {ContentType: "application/geo+json", Write: writeGeoJSON},
		"csv":     {ContentType: "text/csv; charset=utf-8", Write: writeCSV},
	}
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Geometry   interface{}            `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// writeGeoJSON emits a FeatureCollection. A result's "geometry" property
// becomes the feature geometry; results without one get a null geometry.
func writeGeoJSON(w io.Writer, resp *models.QueryResponse) error {
	out := geoJSONCollection{Type: "FeatureCollection", Features: make([]geoJSONFeature, 0, resp.ResultCount())}
	for _, r := range resp.Results {
		props := make(map[string]interface{}, len(r.Properties)+2)
		for k, v := range r.Properties {
			if k != geometryProperty {
				props[k] = v
			}
		}
		props["source"] = r.Source
		props["relevance"] = r.RelevanceScore
		out.Features = append(out.Features, geoJSONFeature{
			Type:       "Feature",
			ID:         r.ID,
			Geometry:   r.Properties[geometryProperty],
			Properties: props,
		})
	}
	return json.NewEncoder(w).Encode(out)
}

// writeCSV emits one row per result: id, source, relevance, then the union
// of property names in sorted order. Nested values are JSON encoded.
func writeCSV(w io.Writer, resp *models.QueryResponse) error {
	seen := map[string]bool{}
	var columns []string
	for _, r := range resp.Results {
		for k := range r.Properties {
			if k != geometryProperty && !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"id", "source", "relevance"}, columns...)); err != nil {
		return err
	}
	for _, r := range resp.Results {
		row := []string{r.ID, r.Source, strconv.FormatFloat(r.RelevanceScore, 'f', -1, 64)}
		for _, c := range columns {
			row = append(row, csvValue(r.Properties[c]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

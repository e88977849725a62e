// internal/models/geofeature.go
package models

import "encoding/json"

// Suggestion is a gazetteer name match.
type Suggestion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GeoFeature is a GeoJSON Feature. Geometry is kept raw.
type GeoFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

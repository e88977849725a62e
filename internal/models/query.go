// internal/models/query.go
package models

// QueryRequest is the CQL request accepted by the gateway.
// ID is set for saved (subscribed) queries and empty for ad-hoc ones.
type QueryRequest struct {
	ID      string   `json:"id,omitempty"`
	Src     string   `json:"src,omitempty"`
	Srcs    []string `json:"srcs,omitempty"`
	CQL     string   `json:"cql"`
	Start   int      `json:"start,omitempty"` // 1-based
	Count   int      `json:"count,omitempty"`
	Sorts   []Sort   `json:"sorts,omitempty"`
	Timeout int64    `json:"timeout,omitempty"` // milliseconds
}

// Sources returns the requested source ids, Srcs taking precedence over Src.
func (r *QueryRequest) Sources() []string {
	if len(r.Srcs) > 0 {
		return r.Srcs
	}
	if r.Src != "" {
		return []string{r.Src}
	}
	return nil
}

type Sort struct {
	Attribute string `json:"attribute"`
	Direction string `json:"direction"` // ascending, descending
}

// QueryResponse is produced once per executed query and must not be
// modified after it has been returned by the catalog engine.
type QueryResponse struct {
	ID      string         `json:"id,omitempty"`
	Results []Result       `json:"results"`
	Hits    int64          `json:"hits"`
	Elapsed int64          `json:"elapsed"` // milliseconds
	Status  []SourceStatus `json:"status"`
}

// ResultCount is the number of results in this page.
func (r *QueryResponse) ResultCount() int {
	if r == nil {
		return 0
	}
	return len(r.Results)
}

type Result struct {
	ID             string                 `json:"id"`
	Source         string                 `json:"source"`
	RelevanceScore float64                `json:"relevance"`
	Properties     map[string]interface{} `json:"properties"`
}

type SourceStatus struct {
	ID         string   `json:"id"`
	Count      int      `json:"count"`
	Hits       int64    `json:"hits"`
	Elapsed    int64    `json:"elapsed"`
	Successful bool     `json:"successful"`
	Warnings   []string `json:"warnings,omitempty"`
}

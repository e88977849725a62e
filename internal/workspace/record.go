package workspace

import (
	"fmt"

	"catalog-gateway/internal/models"
)

// FromResult reads a workspace out of a catalog record. Missing attributes
// stay empty; the record id is used when the document carries no id.
func FromResult(r models.Result) *models.Workspace {
	ws := &models.Workspace{
		ID:                 stringAttr(r.Properties, "id"),
		Title:              stringAttr(r.Properties, "title"),
		Owner:              stringAttr(r.Properties, "owner"),
		Tags:               stringsAttr(r.Properties, attrTags),
		SubscribedQueryIDs: stringsAttr(r.Properties, attrSubscribedQuery),
	}
	if ws.ID == "" {
		ws.ID = r.ID
	}
	return ws
}

func stringAttr(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// stringsAttr accepts both a single value and a list.
func stringsAttr(props map[string]interface{}, key string) []string {
	switch v := props[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

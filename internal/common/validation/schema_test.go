package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCQLRequest(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
		field string
	}{
		{"minimal", `{"cql":"title LIKE 'harbour%'"}`, true, ""},
		{"saved query", `{"id":"q-42","srcs":["catalog"],"cql":"anyText ILIKE '%'","start":1,"count":25,"sorts":[{"attribute":"modified","direction":"descending"}]}`, true, ""},
		{"extra fields allowed", `{"cql":"a = 1","facets":["type"]}`, true, ""},
		{"missing cql", `{"src":"catalog"}`, false, "(root)"},
		{"empty cql", `{"cql":""}`, false, "cql"},
		{"zero start", `{"cql":"a = 1","start":0}`, false, "start"},
		{"bad sort direction", `{"cql":"a = 1","sorts":[{"attribute":"a","direction":"up"}]}`, false, "sorts.0.direction"},
		{"not json", `{"cql":`, false, "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CQLRequest.ValidateBytes([]byte(tt.body))
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.field, res.Errors[0].Field)
			}
		})
	}
}

func TestRPCEnvelope(t *testing.T) {
	ok := RPCEnvelope.ValidateValue(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": "query", "params": []interface{}{"{}"},
	})
	assert.True(t, ok.Valid)

	bad := RPCEnvelope.ValidateValue(map[string]interface{}{"jsonrpc": "1.0"})
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)
	assert.Contains(t, bad.Summary(), "jsonrpc")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `{`) })
}

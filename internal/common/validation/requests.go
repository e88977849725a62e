package validation

// CQLRequest accepts the query request body. Unknown properties are allowed
// so clients sending extra presentation fields are not rejected.
var CQLRequest = MustCompile("cql request", `{
  "type": "object",
  "required": ["cql"],
  "properties": {
    "id":      {"type": "string"},
    "src":     {"type": "string"},
    "srcs":    {"type": "array", "items": {"type": "string", "minLength": 1}},
    "cql":     {"type": "string", "minLength": 1},
    "start":   {"type": "integer", "minimum": 1},
    "count":   {"type": "integer", "minimum": 0},
    "timeout": {"type": "integer", "minimum": 0},
    "sorts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["attribute"],
        "properties": {
          "attribute": {"type": "string", "minLength": 1},
          "direction": {"enum": ["ascending", "descending", "asc", "desc"]}
        }
      }
    }
  }
}`)

// RPCEnvelope is a JSON-RPC 2.0 request. Params are checked by the handler.
var RPCEnvelope = MustCompile("json-rpc envelope", `{
  "type": "object",
  "required": ["jsonrpc", "method"],
  "properties": {
    "jsonrpc": {"enum": ["2.0"]},
    "method":  {"type": "string", "minLength": 1},
    "id":      {"type": ["string", "number", "null"]}
  }
}`)

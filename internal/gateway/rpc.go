package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/catalog"
	"catalog-gateway/internal/common/validation"
	"catalog-gateway/internal/models"
)

// JSON-RPC 2.0 error codes. Query failures reuse the HTTP status as code.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602

	rpcMethodQuery = "query"

	msgRPCNotFound = "Could not find what you were looking for"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func invalidParams(message string, data interface{}) *rpcError {
	return &rpcError{Code: rpcInvalidParams, Message: message, Data: data}
}

// rpc serves the "query" method. Its params must be a list holding exactly
// one string, which is a CQL request encoded as JSON. Errors are reported in
// the JSON-RPC envelope with HTTP 200.
func (s *Server) rpc(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, "rpc", start, err)
		return
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeRPC(w, nil, nil, &rpcError{Code: rpcParseError, Message: "parse error"})
		return
	}
	if res := validation.RPCEnvelope.ValidateValue(raw); !res.Valid {
		writeRPC(w, nil, nil, &rpcError{Code: rpcInvalidRequest, Message: "invalid request", Data: res.Errors})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, nil, nil, &rpcError{Code: rpcInvalidRequest, Message: "invalid request"})
		return
	}
	if req.Method != rpcMethodQuery {
		writeRPC(w, req.ID, nil, &rpcError{Code: rpcMethodNotFound, Message: "method not found", Data: req.Method})
		return
	}

	cqlReq, rpcErr := decodeQueryParams(req.Params)
	if rpcErr != nil {
		s.recordQuery(r.Context(), "rpc", string(apperrors.ErrCodeInvalidRequest), start)
		writeRPC(w, req.ID, nil, rpcErr)
		return
	}

	resp, err := s.service.Query(r.Context(), cqlReq)
	if err != nil {
		se, status := s.errors.Handle(r.Context(), "rpc", err)
		s.recordQuery(r.Context(), "rpc", string(se.Code), start)
		code, message := status, msgInternal
		switch {
		case se.Code == apperrors.ErrCodeUnsupportedQuery:
			message = msgUnsupported
		case se.Code == apperrors.ErrCodeNotFound || errors.Is(err, catalog.ErrSourceNotFound):
			code, message = http.StatusNotFound, msgRPCNotFound
		}
		writeRPC(w, req.ID, nil, &rpcError{Code: code, Message: message})
		return
	}

	s.recordQuery(r.Context(), "rpc", "success", start)
	writeRPC(w, req.ID, resp, nil)
}

// decodeQueryParams checks the params shape before any query runs.
func decodeQueryParams(params json.RawMessage) (*models.QueryRequest, *rpcError) {
	var list []json.RawMessage
	if err := json.Unmarshal(params, &list); err != nil || list == nil {
		return nil, invalidParams("params not list", params)
	}
	if len(list) != 1 {
		return nil, invalidParams("must pass exactly 1 param", list)
	}

	var encoded string
	if err := json.Unmarshal(list[0], &encoded); err != nil {
		return nil, invalidParams("param not string", list[0])
	}

	res := validation.CQLRequest.ValidateBytes([]byte(encoded))
	if !res.Valid {
		if len(res.Errors) == 1 && res.Errors[0].Code == "INVALID_JSON" {
			return nil, invalidParams("param not valid json", encoded)
		}
		return nil, invalidParams("param not a valid query request", res.Errors)
	}

	var req models.QueryRequest
	if err := json.Unmarshal([]byte(encoded), &req); err != nil {
		return nil, invalidParams("param not valid json", encoded)
	}
	return &req, nil
}

func writeRPC(w http.ResponseWriter, id json.RawMessage, result interface{}, rpcErr *rpcError) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr})
}

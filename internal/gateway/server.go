package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-gateway/internal/common/database"
	apperrors "catalog-gateway/internal/common/errors"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/metrics"
	"catalog-gateway/internal/common/observability"
	"catalog-gateway/internal/common/validation"
	"catalog-gateway/internal/geofeature"
	"catalog-gateway/internal/identity"
	"catalog-gateway/internal/models"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	msgUnsupported     = "Unsupported query request."
	msgInternal        = "Error while processing query request."
	msgFeatureNotFound = "Feature not found"
	msgNoTransformer   = "Transformer not found"
)

type Options struct {
	BasePath       string
	MaxBodyBytes   int64
	IdentityHeader string
	Checkers       []database.Checker
	// Transformers defaults to DefaultTransformers.
	Transformers   Transformers
}

type Server struct {
	service  *Service
	features geofeature.Finder
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
	opts     Options

	errorHandlers []errorHandler
}

// errorHandler writes a response for err and reports whether it did.
type errorHandler func(w http.ResponseWriter, se *apperrors.StandardError, status int) bool

func NewServer(service *Service, features geofeature.Finder, obs *observability.Observability, log logger.Logger, opts Options) *Server {
	s := &Server{
		service:  service,
		features: features,
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "http"}),
		opts:     opts,
	}
	if s.opts.Transformers == nil {
		s.opts.Transformers = DefaultTransformers()
	}
	s.errorHandlers = []errorHandler{
		codeHandler(apperrors.ErrCodeUnsupportedQuery, msgUnsupported),
		codeHandler(apperrors.ErrCodeInvalidRequest, ""),
		codeHandler(apperrors.ErrCodeRequestTooLarge, ""),
		codeHandler(apperrors.ErrCodeNotFound, ""),
	}
	return s
}

// Router mounts the query endpoints under the base path and the operational
// endpoints at the root.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(metricsMiddleware)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route(s.opts.BasePath, func(r chi.Router) {
		r.Use(traceMiddleware(s.obs))
		r.Use(identity.Middleware(s.opts.IdentityHeader))
		r.With(chiMiddleware.Compress(5, "application/json")).Post("/cql", s.cql)
		r.Post("/cql/transform/{transformerId}", s.transform)
		r.Post("/rpc", s.rpc)
		r.Get("/geofeature/suggestions", s.suggestions)
		r.Get("/geofeature", s.feature)
	})
	return r
}

func (s *Server) cql(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := s.decodeCQL(w, r)
	if err != nil {
		s.fail(w, r, "cql", start, err)
		return
	}

	resp, err := s.service.Query(r.Context(), req)
	if err != nil {
		s.fail(w, r, "cql", start, err)
		return
	}
	s.recordQuery(r.Context(), "cql", "success", start)
	writeJSON(w, http.StatusOK, resp)
}

// transform runs a CQL query and renders the response with the named
// transformer. Unknown transformers are rejected before the query runs.
func (s *Server) transform(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.opts.Transformers[chi.URLParam(r, "transformerId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgNoTransformer})
		return
	}
	req, err := s.decodeCQL(w, r)
	if err != nil {
		s.fail(w, r, "cql-transform", start, err)
		return
	}

	resp, err := s.service.Query(r.Context(), req)
	if err != nil {
		s.fail(w, r, "cql-transform", start, err)
		return
	}

	var buf bytes.Buffer
	if err := t.Write(&buf, resp); err != nil {
		s.fail(w, r, "cql-transform", start, fmt.Errorf("transform response: %w", err))
		return
	}
	s.recordQuery(r.Context(), "cql-transform", "success", start)
	w.Header().Set("Content-Type", t.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decodeCQL reads and validates a CQL request body.
func (s *Server) decodeCQL(w http.ResponseWriter, r *http.Request) (*models.QueryRequest, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	if res := validation.CQLRequest.ValidateBytes(body); !res.Valid {
		return nil, apperrors.NewInvalidRequestError(res.Summary())
	}
	var req models.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	return &req, nil
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	out, err := s.features.Suggestions(r.Context(), r.URL.Query().Get("q"), geofeature.DefaultSuggestionLimit)
	if err != nil {
		s.writeError(w, r, "geofeature-suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) feature(w http.ResponseWriter, r *http.Request) {
	f, err := s.features.FeatureByID(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		s.writeError(w, r, "geofeature", err)
		return
	}
	if f == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgFeatureNotFound})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	status, err := database.CheckAll(r.Context(), 2*time.Second, s.opts.Checkers...)
	if err != nil {
		s.logger.Warn("readiness check failed", map[string]interface{}{"error": err})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "checks": status})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "checks": status})
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := r.Body
	if s.opts.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewRequestTooLargeError(tooLarge.Limit)
		}
		return nil, apperrors.NewInvalidRequestError("could not read request body")
	}
	return body, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, err error) {
	se := s.writeError(w, r, endpoint, err)
	s.recordQuery(r.Context(), endpoint, string(se.Code), start)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) *apperrors.StandardError {
	se, status := s.errors.Handle(r.Context(), operation, err)
	for _, h := range s.errorHandlers {
		if h(w, se, status) {
			return se
		}
	}
	writeJSON(w, status, errorBody{Code: se.Code, Message: msgInternal})
	return se
}

func (s *Server) recordQuery(ctx context.Context, endpoint, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.QueriesTotal.WithLabelValues(endpoint, status).Inc()
	metrics.QueryDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	s.obs.RecordQuery(ctx, endpoint, status, elapsed)
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

// codeHandler answers errors with the given code. An empty message keeps the
// error's own message and details.
func codeHandler(code apperrors.ErrorCode, message string) errorHandler {
	return func(w http.ResponseWriter, se *apperrors.StandardError, status int) bool {
		if se.Code != code {
			return false
		}
		if message != "" {
			writeJSON(w, status, errorBody{Code: se.Code, Message: message})
			return true
		}
		writeJSON(w, status, errorBody{Code: se.Code, Message: se.Message, Details: se.Details})
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

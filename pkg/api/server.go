package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/provenance"
	"github.com/openfroyo/typesynth/pkg/stores"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// maxRequestBodySize limits POST body sizes.
const maxRequestBodySize = 1 << 20

// requestTimeout bounds a single API request.
const requestTimeout = 60 * time.Second

// Server serves the Service over HTTP.
type Server struct {
	svc *Service
	tel *telemetry.Telemetry
}

// NewServer creates a server. tel may be nil.
func NewServer(svc *Service, tel *telemetry.Telemetry) *Server {
	return &Server{svc: svc, tel: tel}
}

// Handler returns the HTTP handler with these routes:
//
//	POST /v1/search
//	POST /v1/execute
//	GET  /v1/runs
//	GET  /v1/runs/{id}
//	GET  /v1/runs/{id}/provenance?format=turtle|ntriples|json
//	GET  /v1/catalog/dot
//	GET  /healthz
//	GET  /metrics
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	if s.tel != nil && s.tel.Metrics != nil {
		r.Handle("/metrics", s.tel.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/execute", s.handleExecute)
		r.Get("/catalog/dot", s.handleCatalogDOT)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Get("/{id}/provenance", s.handleProvenance)
		})
	})
	return r
}

// requestLogger logs each request and puts the telemetry into its context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := telemetry.NewNopLogger()
		if s.tel != nil {
			ctx = s.tel.WithContext(ctx)
			logger = s.tel.Logger
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(ctx),
		}).Debug("Request served")
	})
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	status := map[string]any{
		"status":    "ok",
		"types":     len(cat.Types()),
		"functions": len(cat.Functions()),
	}
	if hc, ok := s.svc.Store().(healthChecker); ok {
		if err := hc.HealthCheck(r.Context()); err != nil {
			status["status"] = "degraded"
			status["store"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plans, err := s.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	executions, err := s.svc.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": executions})
}

func (s *Server) handleCatalogDOT(w http.ResponseWriter, r *http.Request) {
	g := engine.NewGraphBuilder().Build(s.svc.Catalog())
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(g.ToDOT(nil)))
}

func (s *Server) store(w http.ResponseWriter) (RunStore, bool) {
	st := s.svc.Store()
	if st == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "run store is disabled", Code: "STORE_DISABLED"})
		return nil, false
	}
	return st, true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := st.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*stores.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	run, err := st.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	steps, err := st.ListSteps(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if steps == nil {
		steps = []*stores.Step{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "steps": steps})
}

func (s *Server) handleProvenance(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	doc, err := LoadProvenance(r.Context(), st, chi.URLParam(r, "id"), format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", provenance.Formats[provenanceFormat(format)].MIMEType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func provenanceFormat(format string) provenance.Format {
	if format == "" {
		return provenance.FormatTurtle
	}
	return provenance.Format(format)
}

// LoadProvenance returns the provenance of a stored run in format, turtle
// when empty. Formats that were not stored are re-encoded from the stored
// JSON graph.
func LoadProvenance(ctx context.Context, st RunStore, runID, format string) (string, error) {
	f := provenanceFormat(format)
	if _, ok := provenance.Formats[f]; !ok {
		return "", argumentError("unknown provenance format " + strconv.Quote(format))
	}

	doc, err := st.GetProvenance(ctx, runID, string(f))
	if err == nil {
		return doc.Document, nil
	}
	if f == provenance.FormatJSON || !errors.Is(err, engine.ErrNotFound) {
		return "", err
	}

	jsonDoc, jerr := st.GetProvenance(ctx, runID, string(provenance.FormatJSON))
	if jerr != nil {
		return "", err
	}
	g, err := provenance.ParseJSON([]byte(jsonDoc.Document))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := provenance.Encode(&buf, g, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engine.ErrCodeValidation, engine.ErrCodeArgument, engine.ErrCodeParse,
		engine.ErrCodeDimensionMismatch, engine.ErrCodeUnknownUnit:
		return http.StatusBadRequest
	case engine.ErrCodePolicyDenied:
		return http.StatusForbidden
	case engine.ErrCodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := engine.CodeOf(err)
	body := errorBody{Error: err.Error(), Code: code}
	var e *engine.Error
	if errors.As(err, &e) && len(e.Details) > 0 {
		body.Details = e.Details
	}
	writeJSON(w, statusFor(code), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Code: engine.ErrCodeValidation})
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, argumentError(name + " must be a non-negative integer")
	}
	return n, nil
}

func argumentError(msg string) error {
	return engine.NewPermanentError(msg, nil).WithCode(engine.ErrCodeArgument)
}

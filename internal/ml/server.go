package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
	"loan-predictor/internal/storage"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
	historyLimit    = 50
)

// HistoryStore lists previous model loads.
type HistoryStore interface {
	ModelLoads(limit int) ([]storage.ModelRecord, error)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ModelServer provides the HTTP API for loan predictions.
type ModelServer struct {
	predictor *Predictor
	model     *LoadedModel
	aligner   *features.Aligner
	validator *RequestValidator
	history   HistoryStore
	metrics   MetricsInterface
	started   time.Time
	handler   http.Handler
	server    *http.Server
}

// ServerOption customizes a ModelServer.
type ServerOption func(*ModelServer, *http.ServeMux)

// WithHistory exposes GET /model/history backed by h.
func WithHistory(h HistoryStore) ServerOption {
	return func(ms *ModelServer, _ *http.ServeMux) { ms.history = h }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(_ *ModelServer, mux *http.ServeMux) { mux.Handle("GET /metrics", h) }
}

// WithMetrics reports validation rejections to m.
func WithMetrics(m MetricsInterface) ServerOption {
	return func(ms *ModelServer, _ *http.ServeMux) { ms.metrics = m }
}

// NewModelServer creates a new HTTP server for model serving.
func NewModelServer(predictor *Predictor, model *LoadedModel, cfg ServerConfig, opts ...ServerOption) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		model:     model,
		aligner:   predictor.aligner,
		validator: NewRequestValidator(),
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", ms.handlePredict)
	mux.HandleFunc("GET /health", ms.handleHealth)
	mux.HandleFunc("GET /model/info", ms.handleModelInfo)
	mux.HandleFunc("GET /model/history", ms.handleModelHistory)
	for _, opt := range opts {
		opt(ms, mux)
	}

	ms.handler = requestID(accessLog(cors(mux)))

	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	ms.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           ms.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return ms
}

// Handler returns the fully wrapped HTTP handler.
func (ms *ModelServer) Handler() http.Handler { return ms.handler }

// Addr returns the listen address.
func (ms *ModelServer) Addr() string { return ms.server.Addr }

// Start begins serving HTTP requests. It returns http.ErrServerClosed after Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.rejected()
		msg := fmt.Sprintf("invalid request: %v", err)
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	fields, err := ms.validator.Validate(req)
	if err != nil {
		ms.rejected()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(fields) > 0 {
		ms.rejected()
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fields})
		return
	}

	decision, err := ms.predictor.Predict(req.Record())
	if err != nil {
		log.Error().Err(err).Str("request_id", w.Header().Get(requestIDHeader)).Msg("prediction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (ms *ModelServer) rejected() {
	if ms.metrics != nil {
		ms.metrics.ValidationErrorInc()
	}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Healthy       bool    `json:"healthy"`
	ModelLoaded   bool    `json:"model_loaded"`
	ModelVersion  string  `json:"model_version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := ms.model.Loaded()
	health := HealthStatus{
		Healthy:       loaded,
		ModelLoaded:   loaded,
		ModelVersion:  ms.model.Info().Version,
		UptimeSeconds: time.Since(ms.started).Seconds(),
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// ModelInfoResponse is the body of GET /model/info.
type ModelInfoResponse struct {
	ModelInfo
	Capabilities     Capabilities    `json:"capabilities"`
	FeatureNames     features.Schema `json:"feature_names"`
	UnmappedFeatures []string        `json:"unmapped_features"`
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	unmapped := ms.aligner.Unmapped(ms.model.Schema())
	if unmapped == nil {
		unmapped = []string{}
	}
	writeJSON(w, http.StatusOK, ModelInfoResponse{
		ModelInfo:        ms.model.Info(),
		Capabilities:     ms.model.Capabilities(),
		FeatureNames:     ms.model.Schema(),
		UnmappedFeatures: unmapped,
	})
}

func (ms *ModelServer) handleModelHistory(w http.ResponseWriter, r *http.Request) {
	if ms.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "model history is not enabled"})
		return
	}
	records, err := ms.history.ModelLoads(historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read model history")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read model history"})
		return
	}
	if records == nil {
		records = []storage.ModelRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// cors allows every origin, method and header and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := r.Header.Get("Origin")
		if origin != "" {
			// Credentials are allowed, so the wildcard origin must be echoed back.
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", r.Header.Get("Access-Control-Request-Method"))
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			} else {
				h.Set("Access-Control-Allow-Headers", "*")
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("request_id", w.Header().Get(requestIDHeader)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	})
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/model"
)

// Request body limits.
const (
	maxPredictBody = 1 << 20
	maxBatchBody   = 16 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predict(ctx context.Context, req *model.FlightRequest) (*model.Result, error)
	PredictBatch(ctx context.Context, reqs []model.FlightRequest) ([]model.BatchItem, error)
	Models() []service.ModelInfo
	IsReady() bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	predictHandler *PredictHandler
	batchHandler   *BatchHandler
	modelsHandler  *ModelsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	v := validator.New()
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		predictHandler: NewPredictHandler(deps, v),
		batchHandler:   NewBatchHandler(deps, v),
		modelsHandler:  NewModelsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/models", MetricsMiddleware(s.modelsHandler.HandleModels, "models"))
	mux.HandleFunc("/predict", MetricsMiddleware(withCORS(s.predictHandler.HandlePredict), "predict"))
	mux.HandleFunc("/predict-cancellation", MetricsMiddleware(withCORS(s.predictHandler.HandlePredict), "predict"))
	mux.HandleFunc("/predict/batch", MetricsMiddleware(withCORS(s.batchHandler.HandleBatch), "predict_batch"))
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// withCORS allows browser clients from any origin and answers preflights.
func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

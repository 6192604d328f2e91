package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/model"
)

type batchRequest struct {
	Flights []model.FlightRequest `json:"flights" validate:"required,min=1,dive"`
}

type batchResponse struct {
	Results []model.BatchItem `json:"results"`
}

// BatchHandler handles batch predictions.
type BatchHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps Dependencies, v *validator.Validate) *BatchHandler {
	return &BatchHandler{deps: deps, validate: v}
}

// HandleBatch handles POST /predict/batch requests.
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict_batch"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("decode body: %w", err)))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	items, err := h.deps.PredictBatch(r.Context(), req.Flights)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, batchResponse{Results: items})
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrPrediction, err))
	}
}

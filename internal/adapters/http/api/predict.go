package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/model"
)

// predictEnvelope is the shape sent by the web client. A bare
// FlightRequest body is accepted as well.
type predictEnvelope struct {
	FlightData json.RawMessage `json:"flightData"`
}

// PredictHandler handles single flight predictions.
type PredictHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, v *validator.Validate) *PredictHandler {
	return &PredictHandler{deps: deps, validate: v}
}

// HandlePredict handles POST /predict and POST /predict-cancellation.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	req, err := decodeFlight(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Predict(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, model.ErrorType(err), WrapKind(op, ErrPrediction, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeFlight(body io.Reader) (*model.FlightRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var env predictEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if len(env.FlightData) > 0 && string(env.FlightData) != "null" {
		raw = env.FlightData
	}
	var req model.FlightRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode flight: %w", err)
	}
	return &req, nil
}

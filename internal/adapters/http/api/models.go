package api

import (
	"net/http"

	service "github.com/okian/flightrisk/internal/app"
)

type modelsResponse struct {
	Models []service.ModelInfo `json:"models"`
}

// ModelsHandler reports trained and loaded models.
type ModelsHandler struct {
	deps Dependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps Dependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// HandleModels handles GET /models requests.
func (h *ModelsHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.models", ErrMethodNotAllowed))
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: h.deps.Models()})
}

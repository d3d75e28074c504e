package gateway

import (
	"net/http"

	"github.com/mcdev12/burgerrush/go/internal/game/session"
)

// StateProvider exposes the current session for REST reads
type StateProvider interface {
	Snapshot() session.Snapshot
}

// StateHandler serves read-only session state over HTTP
type StateHandler struct {
	provider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleGetSession returns the running flag, remaining time and score table
func (h *StateHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Snapshot())
}

// RegisterStateRoutes registers the REST endpoints
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/session", h.HandleGetSession)
}

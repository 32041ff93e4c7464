package handlers

import (
	"net/http"

	"github.com/vinoteca/sommelier/internal/api/response"
)

// HealthHandler answers liveness probes. It deliberately checks nothing
// downstream: the matcher and ask pipeline degrade rather than fail when a
// dependency is out, so a dependency outage is not a reason to restart the
// process.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

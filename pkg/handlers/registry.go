package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/services"
)

// RegistryHandler serves bulk operations over the whole registry.
type RegistryHandler struct {
	importService   services.ImportService
	outreachService services.OutreachService
	logger          *zap.Logger
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(
	importService services.ImportService,
	outreachService services.OutreachService,
	logger *zap.Logger,
) *RegistryHandler {
	return &RegistryHandler{
		importService:   importService,
		outreachService: outreachService,
		logger:          logger,
	}
}

// RegisterRoutes registers the registry handler's routes on the given mux.
func (h *RegistryHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/import", scope(h.Import))
	mux.HandleFunc("GET /api/outreach/recipients", scope(h.Recipients))
}

// Import handles POST /api/import
func (h *RegistryHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "rows must not be empty", h.logger)
		return
	}

	result, err := h.importService.Import(r.Context(), req.Rows)
	if err != nil {
		writeServiceError(w, err, "import_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Recipients handles GET /api/outreach/recipients?limit=
func (h *RegistryHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	limit, ok := ParseLimit(w, r, h.logger)
	if !ok {
		return
	}

	people, err := h.outreachService.Recipients(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "list_recipients_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toPeopleResponse(people), h.logger)
}

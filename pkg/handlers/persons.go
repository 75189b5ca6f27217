package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/services"
)

// PersonHandler serves the family registry: search, member cards and household edits.
type PersonHandler struct {
	personService    services.PersonService
	householdService services.HouseholdService
	editService      services.HouseholdEditService
	logger           *zap.Logger
}

// NewPersonHandler creates a new person handler.
func NewPersonHandler(
	personService services.PersonService,
	householdService services.HouseholdService,
	editService services.HouseholdEditService,
	logger *zap.Logger,
) *PersonHandler {
	return &PersonHandler{
		personService:    personService,
		householdService: householdService,
		editService:      editService,
		logger:           logger,
	}
}

// RegisterRoutes registers the person handler's routes on the given mux.
func (h *PersonHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/persons"

	mux.HandleFunc("GET "+base, scope(h.Search))
	mux.HandleFunc("GET "+base+"/{id}", scope(h.Get))
	mux.HandleFunc("GET "+base+"/{id}/household", scope(h.Household))
	mux.HandleFunc("POST "+base+"/{id}/household", scope(h.EditHousehold))
}

// Search handles GET /api/persons?q=
func (h *PersonHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	people, err := h.personService.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, err, "search_persons_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toPeopleResponse(people), h.logger)
}

// Get handles GET /api/persons/{id}
func (h *PersonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePersonID(w, r, h.logger)
	if !ok {
		return
	}

	card, err := h.personService.MemberCard(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_person_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toMemberCardResponse(card), h.logger)
}

// Household handles GET /api/persons/{id}/household
func (h *PersonHandler) Household(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePersonID(w, r, h.logger)
	if !ok {
		return
	}

	household, err := h.householdService.Household(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_household_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toPeopleResponse(household), h.logger)
}

// EditHousehold handles POST /api/persons/{id}/household
// The owner of the batch is always the person in the path.
func (h *PersonHandler) EditHousehold(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePersonID(w, r, h.logger)
	if !ok {
		return
	}

	var edit models.HouseholdEdit
	if !decodeJSON(w, r, &edit, h.logger) {
		return
	}
	edit.PinOwner(id)

	result, err := h.editService.Apply(r.Context(), &edit)
	if err != nil {
		writeServiceError(w, err, "edit_household_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

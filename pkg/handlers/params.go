package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ParsePersonID extracts and validates the person ID from the request path.
// Returns the parsed id and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParsePersonID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_person_id", "Invalid person ID", logger)
		return 0, false
	}
	return id, true
}

// ParseLimit reads the optional "limit" query parameter. Missing means 0 (no limit).
func ParseLimit(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", logger)
		return 0, false
	}
	return limit, true
}

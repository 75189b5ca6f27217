package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/services"
)

// AttendanceHandler serves the event calendar and household attendance.
type AttendanceHandler struct {
	attendanceService services.AttendanceService
	calendarService   services.CalendarService
	logger            *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(
	attendanceService services.AttendanceService,
	calendarService services.CalendarService,
	logger *zap.Logger,
) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		calendarService:   calendarService,
		logger:            logger,
	}
}

// RegisterRoutes registers the attendance handler's routes on the given mux.
func (h *AttendanceHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/calendar", scope(h.Calendar))
	mux.HandleFunc("GET /api/persons/{id}/attendance", scope(h.Get))
	mux.HandleFunc("PUT /api/persons/{id}/attendance", scope(h.Save))
}

// Calendar handles GET /api/calendar
func (h *AttendanceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.calendarService.Schedule(r.Context())
	if err != nil {
		writeServiceError(w, err, "get_calendar_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toCalendarResponse(schedule), h.logger)
}

// Get handles GET /api/persons/{id}/attendance
func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePersonID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.attendanceService.BuildView(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_attendance_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toAttendanceResponse(view), h.logger)
}

// Save handles PUT /api/persons/{id}/attendance
// Every household member x slot not listed in the request is cleared.
func (h *AttendanceHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePersonID(w, r, h.logger)
	if !ok {
		return
	}

	var req AttendanceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.attendanceService.SaveHousehold(r.Context(), id, req.answered()); err != nil {
		writeServiceError(w, err, "save_attendance_failed", h.logger)
		return
	}

	view, err := h.attendanceService.BuildView(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_attendance_failed", h.logger)
		return
	}

	writeData(w, http.StatusOK, toAttendanceResponse(view), h.logger)
}

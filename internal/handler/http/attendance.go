package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler interface {
	Scan(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Correct(w http.ResponseWriter, r *http.Request)
	ListCorrections(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
	loc               *time.Location
	now               func() time.Time
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService, loc *time.Location) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		loc:               loc,
		now:               time.Now,
	}
}

// Scan implements AttendanceHandler.
func (h *attendanceHandlerImpl) Scan(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode scan request", "error", err)
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	// The scanning person and instant come from the server, never the body.
	req.PersonID = identity.UserID
	req.ScannedAt = h.now()

	result, err := h.attendanceService.ProcessScan(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp := attendance.ScanResponse{
		Action:     result.Transition.String(),
		Message:    result.Message,
		Attendance: attendance.NewAttendanceResponse(result.Attendance, h.loc),
	}

	if result.Transition == attendance.StateClockedIn {
		response.Created(w, result.Message, resp)
		return
	}
	response.SuccessWithMessage(w, result.Message, resp)
}

// History implements AttendanceHandler.
func (h *attendanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	query := r.URL.Query()
	filter := attendance.HistoryFilter{
		StartDate: queryString(query.Get("start_date")),
		EndDate:   queryString(query.Get("end_date")),
		Page:      queryInt(query.Get("page")),
		Limit:     queryInt(query.Get("limit")),
	}

	results, err := h.attendanceService.GetHistory(r.Context(), identity.UserID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := attendance.AttendanceFilter{
		PersonID:       queryString(query.Get("person_id")),
		StartDate:      queryString(query.Get("start_date")),
		EndDate:        queryString(query.Get("end_date")),
		ClockInStatus:  queryString(query.Get("clock_in_status")),
		ClockOutStatus: queryString(query.Get("clock_out_status")),
		Page:           queryInt(query.Get("page")),
		Limit:          queryInt(query.Get("limit")),
		SortOrder:      query.Get("sort_order"),
	}

	results, err := h.attendanceService.ListAttendance(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.attendanceService.GetAttendance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Correct implements AttendanceHandler.
func (h *attendanceHandlerImpl) Correct(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode correction request", "error", err)
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	req.AttendanceID = chi.URLParam(r, "id")
	req.CorrectorID = identity.UserID
	req.CorrectorName = identity.Name
	req.CorrectorIP = clientIP(r)

	result, err := h.attendanceService.CorrectAttendance(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance corrected successfully", attendance.NewAttendanceResponse(result, h.loc))
}

// ListCorrections implements AttendanceHandler.
func (h *attendanceHandlerImpl) ListCorrections(w http.ResponseWriter, r *http.Request) {
	results, err := h.attendanceService.ListCorrections(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

func queryString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// queryInt returns 0 for a missing or malformed value so the filter applies
// its default.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func clientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return nil
	}
	return &host
}

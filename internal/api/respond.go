package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timesheet/internal/db/models"
	"timesheet/internal/logging"
	"timesheet/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", service.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Errorf("Event ID: HTTP_ENCODE_FAILED, Description: Error encoding response: %v", err)
	}
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	default:
		logging.Logger.Errorf("Event ID: HTTP_HANDLER_FAILED, Description: %s %s failed: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request payload: %v", err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}
	return id, nil
}

// dateRange reads the required startDate and endDate query parameters.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := service.ParseDate(q.Get("startDate"))
	if err != nil {
		return time.Time{}, time.Time{}, badRequest("startDate: %v", err)
	}
	end, err := service.ParseDate(q.Get("endDate"))
	if err != nil {
		return time.Time{}, time.Time{}, badRequest("endDate: %v", err)
	}
	return start.Time, end.Time, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid %s", name)
	}
	return n, nil
}

// queryStatuses accepts repeated or comma separated status names or numbers.
func queryStatuses(r *http.Request) ([]models.TimesheetStatus, error) {
	var statuses []models.TimesheetStatus
	for _, v := range r.URL.Query()["status"] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			s, ok := models.ParseStatus(part)
			if !ok {
				return nil, badRequest("invalid status %q", part)
			}
			statuses = append(statuses, s)
		}
	}
	return statuses, nil
}

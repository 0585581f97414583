package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/hospital"
	"github.com/hackgods/hospital-directory/internal/registry"
	redisclient "github.com/hackgods/hospital-directory/internal/redis"
	"github.com/hackgods/hospital-directory/internal/snapshot"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body + "\n"))
}

func writeError(w http.ResponseWriter, status int, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decode reads a JSON body into dst and runs its Validate method when it has one.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err)
			return false
		}
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be omitted entirely.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case errors.Is(err, io.EOF):
		return true
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err)
			return false
		}
	}
	return true
}

// handleError maps registry errors onto HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *registry.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "appointment_conflict", conflict.Conflicts)
	case errors.Is(err, hospital.ErrValidation),
		errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, hospital.ErrDepartmentNotFound):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, hospital.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, hospital.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, snapshot.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, "snapshot_not_found", err.Error())
	case errors.Is(err, hospital.ErrDepartmentExists),
		errors.Is(err, hospital.ErrAlreadyPlaced):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, hospital.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, "capacity_exceeded", err.Error())
	case errors.Is(err, hospital.ErrAlreadyDischarged):
		writeError(w, http.StatusUnprocessableEntity, "already_discharged", err.Error())
	case errors.Is(err, snapshot.ErrUnsupportedVersion):
		writeError(w, http.StatusUnprocessableEntity, "unsupported_snapshot", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "snapshot_in_progress", "another replica is writing a snapshot, please retry shortly")
	case errors.Is(err, registry.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, "no_snapshot_store", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

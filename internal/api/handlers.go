package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/checkpoint"
	"github.com/hackgods/hospital-directory/internal/hospital"
	redisclient "github.com/hackgods/hospital-directory/internal/redis"
	"github.com/hackgods/hospital-directory/internal/registry"
)

func listDepartmentsHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Departments())
	}
}

func createDepartmentHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDepartmentRequest
		if !decode(w, r, &req) {
			return
		}
		dept, err := svc.CreateDepartment(r.Context(), req.Name, req.Capacity)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, dept)
	}
}

func getDepartmentHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := svc.Department(chi.URLParam(r, "name"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dept)
	}
}

func listPatientsHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := false
		if raw := r.URL.Query().Get("active"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_query", "active must be a boolean")
				return
			}
			activeOnly = v
		}
		patients, err := svc.Patients(chi.URLParam(r, "name"), activeOnly)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, patients)
	}
}

func admitPatientHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdmitPatientRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := svc.AdmitPatient(r.Context(), chi.URLParam(r, "name"), registry.AdmitRequest{
			Name:          req.Name,
			Age:           req.Age,
			MedicalRecord: req.MedicalRecord,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func listStaffHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staff, err := svc.Staff(chi.URLParam(r, "name"), r.URL.Query().Get("position"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	}
}

func hireStaffHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HireStaffRequest
		if !decode(w, r, &req) {
			return
		}
		st, err := svc.HireStaff(r.Context(), chi.URLParam(r, "name"), registry.StaffRequest{
			Name:     req.Name,
			Age:      req.Age,
			Position: req.Position,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	}
}

// listAllPatientsHandler serves GET /patients?q=&status=&min_age=&max_age=.
func listAllPatientsHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		minAge, err := queryInt(query.Get("min_age"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "min_age must be an integer")
			return
		}
		maxAge, err := queryInt(query.Get("max_age"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "max_age must be an integer")
			return
		}
		patients, err := svc.SearchPatients(hospital.PatientQuery{
			Term:   query.Get("q"),
			Status: query.Get("status"),
			MinAge: minAge,
			MaxAge: maxAge,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, patients)
	}
}

func updatePatientHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdatePatientRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := svc.UpdatePatient(r.Context(), chi.URLParam(r, "id"), hospital.PatientUpdate{
			Name:          req.Name,
			Age:           req.Age,
			MedicalRecord: req.MedicalRecord,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func appendRecordHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppendRecordRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := svc.AppendRecord(r.Context(), chi.URLParam(r, "id"), req.Note)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func getPatientHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Patient(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func patientRecordHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.PatientRecord(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeText(w, record)
	}
}

func dischargePatientHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DischargeRequest
		if !decodeOptional(w, r, &req) {
			return
		}
		p, err := svc.DischargePatient(r.Context(), chi.URLParam(r, "id"), req.Notes)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func bulkDischargeHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkDischargeRequest
		if !decode(w, r, &req) {
			return
		}
		done, failed := svc.DischargePatients(r.Context(), req.PatientIDs, req.Notes)
		resp := BulkDischargeResponse{Discharged: done, Failed: make(map[string]string, len(failed))}
		if done == nil {
			resp.Discharged = []registry.PatientView{}
		}
		for id, err := range failed {
			resp.Failed[id] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func movePatientHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MovePatientRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := svc.MovePatient(r.Context(), chi.URLParam(r, "id"), req.Department)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// listAllStaffHandler serves GET /staff?q=&status=&position=.
func listAllStaffHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		staff, err := svc.SearchStaff(hospital.StaffQuery{
			Term:     query.Get("q"),
			Status:   query.Get("status"),
			Position: query.Get("position"),
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	}
}

func staffInfoHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.StaffInfo(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeText(w, info)
	}
}

func toggleStaffHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.ToggleStaff(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func transferStaffHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransferStaffRequest
		if !decode(w, r, &req) {
			return
		}
		st, err := svc.TransferStaff(r.Context(), chi.URLParam(r, "id"), req.Department)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func findConflictsHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConflictCheckRequest
		if !decode(w, r, &req) {
			return
		}
		conflicts, err := svc.FindConflicts(registry.ConflictRequest{
			PatientID: req.PatientID,
			StaffID:   req.StaffID,
			Start:     req.Start,
			End:       req.End,
			ExcludeID: req.ExcludeID,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conflicts)
	}
}

func bookAppointmentHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decode(w, r, &req) {
			return
		}
		appt, err := svc.BookAppointment(r.Context(), registry.BookRequest{
			PatientID:      req.PatientID,
			StaffID:        req.StaffID,
			Department:     req.Department,
			Start:          req.Start,
			End:            req.End,
			Notes:          req.Notes,
			AllowConflicts: req.AllowConflicts,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.Filter

		if raw := q.Get("day"); raw != "" {
			day, err := parseDay(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_query", "day must be YYYY-MM-DD")
				return
			}
			f.Day = day
		}
		f.Department = q.Get("department")
		if raw := q.Get("status"); raw != "" && raw != appointment.All {
			status, err := appointment.ParseStatus(raw)
			if err != nil {
				handleError(w, r, err)
				return
			}
			f.Status = status
		}

		writeJSON(w, http.StatusOK, svc.ListAppointments(f))
	}
}

func getAppointmentHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Appointment(chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func updateStatusHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if !decode(w, r, &req) {
			return
		}
		status, _ := appointment.ParseStatus(req.Status)
		appt, err := svc.UpdateAppointmentStatus(r.Context(), chi.URLParam(r, "id"), status)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rescheduleHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescheduleRequest
		if !decode(w, r, &req) {
			return
		}
		appt, err := svc.RescheduleAppointment(r.Context(), chi.URLParam(r, "id"), req.Start, req.End, req.AllowConflicts)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func removeAppointmentHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveAppointment(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func summaryHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day := time.Now().UTC().Truncate(24 * time.Hour)
		if raw := r.URL.Query().Get("day"); raw != "" {
			d, err := parseDay(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_query", "day must be YYYY-MM-DD")
				return
			}
			day = d
		}
		writeJSON(w, http.StatusOK, svc.Summary(day))
	}
}

func exportSnapshotHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Snapshot())
	}
}

func saveSnapshotHandler(svc *registry.Service, locker redisclient.Locker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := locker.WithLock(r.Context(), checkpoint.LockName(svc.HospitalName()), func(ctx context.Context) error {
			return svc.Save(ctx)
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Msg("snapshot saved on request")
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func restoreSnapshotHandler(svc *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Load(r.Context()); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Summary(time.Now().UTC().Truncate(24*time.Hour)))
	}
}

// parseDay reads a calendar date as midnight UTC.
func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseDay(raw string) (time.Time, error) {
	return time.Parse(time.DateOnly, raw)
}

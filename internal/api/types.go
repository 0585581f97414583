package api

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hackgods/hospital-directory/internal/appointment"
)

var errEndBeforeStart = errors.New("must be after start")

type CreateDepartmentRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func (r CreateDepartmentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.By(notBlank), validation.Length(1, 100)),
	)
}

type AdmitPatientRequest struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	MedicalRecord string `json:"medical_record"`
}

func (r AdmitPatientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.By(notBlank)),
		validation.Field(&r.Age, validation.Required, validation.Min(1), validation.Max(150)),
	)
}

type HireStaffRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Position string `json:"position"`
}

func (r HireStaffRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.By(notBlank)),
		validation.Field(&r.Age, validation.Required, validation.Min(1), validation.Max(150)),
		validation.Field(&r.Position, validation.Required, validation.By(notBlank)),
	)
}

// UpdatePatientRequest edits the fields that are present in the body.
type UpdatePatientRequest struct {
	Name          *string `json:"name"`
	Age           *int    `json:"age"`
	MedicalRecord *string `json:"medical_record"`
}

func (r UpdatePatientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Age, validation.NilOrNotEmpty, validation.Min(1), validation.Max(150)),
	)
}

type AppendRecordRequest struct {
	Note string `json:"note"`
}

func (r AppendRecordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Required, validation.By(notBlank)),
	)
}

type DischargeRequest struct {
	Notes string `json:"notes"`
}

type MovePatientRequest struct {
	Department string `json:"department"`
}

func (r MovePatientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Department, validation.Required, validation.By(notBlank)),
	)
}

type TransferStaffRequest struct {
	Department string `json:"department"`
}

func (r TransferStaffRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Department, validation.Required, validation.By(notBlank)),
	)
}

type ConflictCheckRequest struct {
	PatientID string    `json:"patient_id"`
	StaffID   string    `json:"staff_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	ExcludeID string    `json:"exclude_id"`
}

func (r ConflictCheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required),
		validation.Field(&r.Start, validation.Required),
		validation.Field(&r.End, validation.Required, validation.By(after(r.Start))),
	)
}

type BookAppointmentRequest struct {
	PatientID      string    `json:"patient_id"`
	StaffID        string    `json:"staff_id"`
	Department     string    `json:"department"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Notes          string    `json:"notes"`
	AllowConflicts bool      `json:"allow_conflicts"`
}

func (r BookAppointmentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required),
		validation.Field(&r.Start, validation.Required),
		validation.Field(&r.End, validation.Required, validation.By(after(r.Start))),
	)
}

type RescheduleRequest struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllowConflicts bool      `json:"allow_conflicts"`
}

func (r RescheduleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Start, validation.Required),
		validation.Field(&r.End, validation.Required, validation.By(after(r.Start))),
	)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.By(knownStatus)),
	)
}

type BulkDischargeRequest struct {
	PatientIDs []string `json:"patient_ids"`
	Notes      string   `json:"notes"`
}

func (r BulkDischargeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientIDs, validation.Required, validation.Each(validation.Required)),
	)
}

type BulkDischargeResponse struct {
	Discharged any               `json:"discharged"`
	Failed     map[string]string `json:"failed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func after(start time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		end, _ := value.(time.Time)
		if !end.After(start) {
			return errEndBeforeStart
		}
		return nil
	}
}

func knownStatus(value interface{}) error {
	s, _ := value.(string)
	_, err := appointment.ParseStatus(s)
	return err
}

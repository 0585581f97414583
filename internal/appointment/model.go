package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/hospital-directory/internal/hospital"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCheckedIn Status = "checked-in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidStatus       = errors.New("invalid appointment status")
)

// Statuses lists every valid status in display order.
func Statuses() []Status {
	return []Status{StatusScheduled, StatusCheckedIn, StatusCompleted, StatusCancelled}
}

// ParseStatus accepts a status value, ignoring case and surrounding space.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether appointments in this status take part in conflict checks.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusCheckedIn
}

// Appointment references its patient and staff member by person id only.
// StaffID is empty when no staff member is attached.
type Appointment struct {
	ID         string
	PatientID  string
	StaffID    string
	Department string
	Start      time.Time
	End        time.Time
	Status     Status
	Notes      string
}

// New validates the interval and builds a scheduled appointment.
func New(id, patientID, staffID, department string, start, end time.Time, notes string) (*Appointment, error) {
	a := &Appointment{
		ID:         id,
		PatientID:  patientID,
		StaffID:    staffID,
		Department: strings.TrimSpace(department),
		Start:      start,
		End:        end,
		Status:     StatusScheduled,
		Notes:      strings.TrimSpace(notes),
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Appointment) validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: appointment id is required", hospital.ErrValidation)
	case a.PatientID == "":
		return fmt.Errorf("%w: patient id is required", hospital.ErrValidation)
	case a.Department == "":
		return fmt.Errorf("%w: department is required", hospital.ErrValidation)
	case !a.End.After(a.Start):
		return fmt.Errorf("%w: end time must be after start time", hospital.ErrValidation)
	case !a.Status.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	return nil
}

// Overlaps uses half-open intervals: [aStart,aEnd) and [bStart,bEnd) overlap
// iff aStart < bEnd and aEnd > bStart. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

type Reason string

const (
	ReasonPatient Reason = "patient"
	ReasonStaff   Reason = "staff"
)

// Conflict is an existing active appointment that overlaps a candidate
// interval and shares its patient and/or staff member.
type Conflict struct {
	Appointment Appointment
	Reasons     []Reason
}

func (c Conflict) Has(r Reason) bool {
	for _, got := range c.Reasons {
		if got == r {
			return true
		}
	}
	return false
}

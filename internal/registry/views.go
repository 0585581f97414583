package registry

import (
	"time"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/hospital"
)

// Views are value copies handed out of the registry so callers never hold
// pointers into state guarded by the registry lock.

type PatientView struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	Name          string     `json:"name"`
	Age           int        `json:"age"`
	Department    string     `json:"department"`
	Status        string     `json:"status"`
	MedicalRecord string     `json:"medical_record"`
	AdmittedAt    time.Time  `json:"admitted_at"`
	Discharged    bool       `json:"discharged"`
	DischargedAt  *time.Time `json:"discharged_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type StaffView struct {
	ID         string    `json:"id"`
	StaffID    string    `json:"staff_id"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type DepartmentSummary struct {
	Name           string `json:"name"`
	Code           string `json:"code"`
	Capacity       int    `json:"capacity"`
	Patients       int    `json:"patients"`
	ActivePatients int    `json:"active_patients"`
	Staff          int    `json:"staff"`
}

type AppointmentView struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	StaffID     string    `json:"staff_id,omitempty"`
	StaffName   string    `json:"staff_name,omitempty"`
	Department  string    `json:"department"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
}

type ConflictView struct {
	Appointment AppointmentView `json:"appointment"`
	Reasons     []string        `json:"reasons"`
}

type MoveResult struct {
	Patient             PatientView `json:"patient"`
	From                string      `json:"from"`
	To                  string      `json:"to"`
	AppointmentsUpdated int         `json:"appointments_updated"`
}

type Summary struct {
	Hospital          string              `json:"hospital"`
	Location          string              `json:"location"`
	Day               string              `json:"day"`
	Departments       []DepartmentSummary `json:"departments"`
	TotalPatients     int                 `json:"total_patients"`
	ActivePatients    int                 `json:"active_patients"`
	TotalStaff        int                 `json:"total_staff"`
	AppointmentsOnDay int                 `json:"appointments_on_day"`
	ByStatus          map[string]int      `json:"by_status"`
}

func patientView(p *hospital.Patient, department string) PatientView {
	v := PatientView{
		ID:            p.ID,
		PatientID:     p.PatientID,
		Name:          p.Name,
		Age:           p.Age,
		Department:    department,
		Status:        p.Status(),
		MedicalRecord: p.MedicalRecord,
		AdmittedAt:    p.AdmittedAt,
		Discharged:    p.Discharged,
		CreatedAt:     p.CreatedAt,
	}
	if p.DischargedAt != nil {
		at := *p.DischargedAt
		v.DischargedAt = &at
	}
	return v
}

func staffView(s *hospital.Staff) StaffView {
	return StaffView{
		ID:         s.ID,
		StaffID:    s.StaffID,
		Name:       s.Name,
		Age:        s.Age,
		Position:   s.Position,
		Department: s.Department,
		Active:     s.Active,
		CreatedAt:  s.CreatedAt,
	}
}

func departmentSummary(d *hospital.Department) DepartmentSummary {
	return DepartmentSummary{
		Name:           d.Name,
		Code:           d.Code,
		Capacity:       d.Capacity,
		Patients:       d.PatientCount(),
		ActivePatients: len(d.ActivePatients()),
		Staff:          len(d.Staff()),
	}
}

func appointmentView(l *appointment.Ledger, a *appointment.Appointment) AppointmentView {
	v := AppointmentView{
		ID:         a.ID,
		PatientID:  a.PatientID,
		StaffID:    a.StaffID,
		Department: a.Department,
		Start:      a.Start,
		End:        a.End,
		Status:     string(a.Status),
		Notes:      a.Notes,
	}
	if p := l.PatientOf(a); p != nil {
		v.PatientName = p.Name
	}
	if s := l.StaffOf(a); s != nil {
		v.StaffName = s.Name
	}
	return v
}

func conflictViews(l *appointment.Ledger, conflicts []appointment.Conflict) []ConflictView {
	out := make([]ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		a := c.Appointment
		reasons := make([]string, 0, len(c.Reasons))
		for _, r := range c.Reasons {
			reasons = append(reasons, string(r))
		}
		out = append(out, ConflictView{Appointment: appointmentView(l, &a), Reasons: reasons})
	}
	return out
}

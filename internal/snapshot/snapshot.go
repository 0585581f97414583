// Package snapshot converts a Directory and its Ledger to a plain record and
// back, and stores those records.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/hospital"
)

const Version = 1

var (
	ErrNoSnapshot         = errors.New("no snapshot saved")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

type Snapshot struct {
	Version      int                `json:"version"`
	SavedAt      time.Time          `json:"saved_at"`
	Hospital     HospitalRecord     `json:"hospital"`
	Appointments AppointmentsRecord `json:"appointments"`
}

type HospitalRecord struct {
	Name        string             `json:"name"`
	Location    string             `json:"location"`
	Departments []DepartmentRecord `json:"departments"`
}

type DepartmentRecord struct {
	Name     string          `json:"name"`
	Capacity int             `json:"capacity"`
	Code     string          `json:"code"`
	Patients []PatientRecord `json:"patients"`
	Staff    []StaffRecord   `json:"staff"`
}

type PatientRecord struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	Name          string     `json:"name"`
	Age           int        `json:"age"`
	CreatedAt     time.Time  `json:"created_at"`
	MedicalRecord string     `json:"medical_record"`
	AdmissionDate time.Time  `json:"admission_date"`
	IsDischarged  bool       `json:"is_discharged"`
	DischargeDate *time.Time `json:"discharge_date"`
}

type StaffRecord struct {
	ID         string    `json:"id"`
	StaffID    string    `json:"staff_id"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type AppointmentsRecord struct {
	Items []AppointmentRecord `json:"items"`
}

type AppointmentRecord struct {
	ID              string    `json:"id"`
	PatientPersonID string    `json:"patient_person_id"`
	StaffPersonID   string    `json:"staff_person_id,omitempty"`
	DeptName        string    `json:"dept_name"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
}

// Capture records the full state of dir and ledger.
func Capture(dir *hospital.Directory, ledger *appointment.Ledger) Snapshot {
	s := Snapshot{
		Version: Version,
		SavedAt: dir.Now(),
		Hospital: HospitalRecord{
			Name:        dir.Name,
			Location:    dir.Location,
			Departments: []DepartmentRecord{},
		},
		Appointments: AppointmentsRecord{Items: []AppointmentRecord{}},
	}

	for _, d := range dir.Departments() {
		rec := DepartmentRecord{
			Name:     d.Name,
			Capacity: d.Capacity,
			Code:     d.Code,
			Patients: []PatientRecord{},
			Staff:    []StaffRecord{},
		}
		for _, p := range d.Patients() {
			rec.Patients = append(rec.Patients, PatientRecord{
				ID:            p.ID,
				PatientID:     p.PatientID,
				Name:          p.Name,
				Age:           p.Age,
				CreatedAt:     p.CreatedAt,
				MedicalRecord: p.MedicalRecord,
				AdmissionDate: p.AdmittedAt,
				IsDischarged:  p.Discharged,
				DischargeDate: p.DischargedAt,
			})
		}
		for _, st := range d.Staff() {
			rec.Staff = append(rec.Staff, StaffRecord{
				ID:         st.ID,
				StaffID:    st.StaffID,
				Name:       st.Name,
				Age:        st.Age,
				Position:   st.Position,
				Department: st.Department,
				IsActive:   st.Active,
				CreatedAt:  st.CreatedAt,
			})
		}
		s.Hospital.Departments = append(s.Hospital.Departments, rec)
	}

	if ledger != nil {
		for _, a := range ledger.Items() {
			s.Appointments.Items = append(s.Appointments.Items, AppointmentRecord{
				ID:              a.ID,
				PatientPersonID: a.PatientID,
				StaffPersonID:   a.StaffID,
				DeptName:        a.Department,
				Start:           a.Start,
				End:             a.End,
				Status:          string(a.Status),
				Notes:           a.Notes,
			})
		}
	}
	return s
}

// RestoreOptions are applied to the rebuilt Directory and Ledger. Department
// seeding is always disabled; the snapshot is the only source of departments.
type RestoreOptions struct {
	Directory []hospital.Option
	Ledger    []appointment.Option
}

// Restore rebuilds a Directory and a Ledger bound to it. Identifiers,
// timestamps, ordering and status flags are kept exactly.
func Restore(s Snapshot, opts RestoreOptions) (*hospital.Directory, *appointment.Ledger, error) {
	if s.Version != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}

	dirOpts := append(append([]hospital.Option(nil), opts.Directory...), hospital.WithDepartments())
	dir, err := hospital.NewDirectory(s.Hospital.Name, s.Hospital.Location, dirOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("restore hospital: %w", err)
	}

	for _, rec := range s.Hospital.Departments {
		dept, err := restoreDepartment(rec)
		if err != nil {
			return nil, nil, err
		}
		if err := dir.AddDepartment(dept); err != nil {
			return nil, nil, fmt.Errorf("restore department %q: %w", rec.Name, err)
		}
	}

	ledger := appointment.NewLedger(dir, opts.Ledger...)
	items := make([]*appointment.Appointment, 0, len(s.Appointments.Items))
	for _, rec := range s.Appointments.Items {
		items = append(items, &appointment.Appointment{
			ID:         rec.ID,
			PatientID:  rec.PatientPersonID,
			StaffID:    rec.StaffPersonID,
			Department: rec.DeptName,
			Start:      rec.Start,
			End:        rec.End,
			Status:     appointment.Status(rec.Status),
			Notes:      rec.Notes,
		})
	}
	if err := ledger.Restore(items); err != nil {
		return nil, nil, err
	}
	return dir, ledger, nil
}

func restoreDepartment(rec DepartmentRecord) (*hospital.Department, error) {
	dept, err := hospital.NewDepartment(rec.Name, rec.Capacity)
	if err != nil {
		return nil, fmt.Errorf("restore department %q: %w", rec.Name, err)
	}
	if rec.Code != "" {
		dept.Code = rec.Code
	}

	for _, pr := range rec.Patients {
		p, err := hospital.NewPatient(pr.ID, pr.Name, pr.Age, "", pr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("restore patient %q: %w", pr.ID, err)
		}
		if pr.PatientID != "" {
			p.PatientID = pr.PatientID
		}
		p.MedicalRecord = pr.MedicalRecord
		p.AdmittedAt = pr.AdmissionDate
		p.Discharged = pr.IsDischarged
		p.DischargedAt = pr.DischargeDate
		if err := dept.Admit(p); err != nil {
			return nil, fmt.Errorf("restore patient %q: %w", pr.ID, err)
		}
	}

	for _, sr := range rec.Staff {
		st, err := hospital.NewStaff(sr.ID, sr.Name, sr.Age, sr.Position, dept.Name, sr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("restore staff %q: %w", sr.ID, err)
		}
		if sr.StaffID != "" {
			st.StaffID = sr.StaffID
		}
		st.Active = sr.IsActive
		dept.AssignStaff(st)
	}
	return dept, nil
}

func Encode(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != Version {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	return s, nil
}

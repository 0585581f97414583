package hospital

import (
	"fmt"
	"strings"
)

const (
	PatientStatusAdmitted   = "admitted"
	PatientStatusDischarged = "discharged"
	StaffStatusActive       = "active"
	StaffStatusInactive     = "inactive"
)

// PatientQuery filters patients across every department. Zero values match
// everything; MaxAge of zero leaves the upper bound open.
type PatientQuery struct {
	Term   string // substring of name or patient id, case-insensitive
	Status string // "", PatientStatusAdmitted or PatientStatusDischarged
	MinAge int
	MaxAge int
}

// StaffQuery filters staff across every department.
type StaffQuery struct {
	Term     string // substring of name or staff id, case-insensitive
	Status   string // "", StaffStatusActive or StaffStatusInactive
	Position string // substring of position, case-insensitive
}

func (q PatientQuery) validate() error {
	switch strings.ToLower(q.Status) {
	case "", PatientStatusAdmitted, PatientStatusDischarged:
	default:
		return fmt.Errorf("%w: unknown patient status %q", ErrValidation, q.Status)
	}
	if q.MinAge < 0 || q.MaxAge < 0 {
		return fmt.Errorf("%w: age bounds must not be negative", ErrValidation)
	}
	if q.MaxAge > 0 && q.MinAge > q.MaxAge {
		return fmt.Errorf("%w: min age is above max age", ErrValidation)
	}
	return nil
}

func (q PatientQuery) match(p *Patient) bool {
	if term := strings.ToLower(strings.TrimSpace(q.Term)); term != "" &&
		!strings.Contains(strings.ToLower(p.Name+" "+p.PatientID), term) {
		return false
	}
	switch strings.ToLower(q.Status) {
	case PatientStatusAdmitted:
		if p.Discharged {
			return false
		}
	case PatientStatusDischarged:
		if !p.Discharged {
			return false
		}
	}
	if p.Age < q.MinAge {
		return false
	}
	return q.MaxAge == 0 || p.Age <= q.MaxAge
}

func (q StaffQuery) validate() error {
	switch strings.ToLower(q.Status) {
	case "", StaffStatusActive, StaffStatusInactive:
		return nil
	default:
		return fmt.Errorf("%w: unknown staff status %q", ErrValidation, q.Status)
	}
}

func (q StaffQuery) match(s *Staff) bool {
	if term := strings.ToLower(strings.TrimSpace(q.Term)); term != "" &&
		!strings.Contains(strings.ToLower(s.Name+" "+s.StaffID), term) {
		return false
	}
	switch strings.ToLower(q.Status) {
	case StaffStatusActive:
		if !s.Active {
			return false
		}
	case StaffStatusInactive:
		if s.Active {
			return false
		}
	}
	pos := strings.ToLower(strings.TrimSpace(q.Position))
	return pos == "" || strings.Contains(strings.ToLower(s.Position), pos)
}

// SearchPatients returns matching patients department by department.
func (d *Directory) SearchPatients(q PatientQuery) ([]Placement, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var out []Placement
	for _, pl := range d.AllPatients() {
		if q.match(pl.Patient) {
			out = append(out, pl)
		}
	}
	return out, nil
}

func (d *Directory) SearchStaff(q StaffQuery) ([]*Staff, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var out []*Staff
	for _, s := range d.AllStaff() {
		if q.match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

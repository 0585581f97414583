package appointment

import (
	"fmt"
	"sort"
	"time"

	"github.com/hackgods/hospital-directory/internal/hospital"
)

// All is the "no filter" sentinel accepted by Filter fields.
const All = "__ALL__"

// Ledger owns the appointments of one Directory. It keeps a person index for
// display lookups; the index is a cache and can be rebuilt at any time from
// the directory.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	dir   *hospital.Directory
	ids   hospital.IDGenerator
	items []*Appointment

	patients map[string]*hospital.Patient
	staff    map[string]*hospital.Staff
}

type Option func(*Ledger)

func WithIDGenerator(g hospital.IDGenerator) Option {
	return func(l *Ledger) { l.ids = g }
}

func NewLedger(dir *hospital.Directory, opts ...Option) *Ledger {
	l := &Ledger{
		dir: dir,
		ids: hospital.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.RebuildIndexes()
	return l
}

func (l *Ledger) Directory() *hospital.Directory { return l.dir }

// BindDirectory swaps the directory and rebuilds the person index.
func (l *Ledger) BindDirectory(dir *hospital.Directory) {
	l.dir = dir
	l.RebuildIndexes()
}

// RebuildIndexes recomputes the person index from the directory's current contents.
func (l *Ledger) RebuildIndexes() {
	l.patients = make(map[string]*hospital.Patient)
	l.staff = make(map[string]*hospital.Staff)
	if l.dir == nil {
		return
	}
	for _, dept := range l.dir.Departments() {
		for _, p := range dept.Patients() {
			l.patients[p.ID] = p
		}
		for _, s := range dept.Staff() {
			l.staff[s.ID] = s
		}
	}
}

// ConflictQuery describes a candidate booking. StaffID and ExcludeID are optional.
type ConflictQuery struct {
	PatientID string
	StaffID   string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// FindConflicts returns every active appointment overlapping the candidate
// interval that shares its patient or staff member, in ledger order.
// Appointments that only overlap in time are not conflicts.
func (l *Ledger) FindConflicts(q ConflictQuery) []Conflict {
	var out []Conflict
	for _, a := range l.items {
		if q.ExcludeID != "" && a.ID == q.ExcludeID {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if !Overlaps(q.Start, q.End, a.Start, a.End) {
			continue
		}

		var reasons []Reason
		if q.PatientID == a.PatientID {
			reasons = append(reasons, ReasonPatient)
		}
		if q.StaffID != "" && q.StaffID == a.StaffID {
			reasons = append(reasons, ReasonStaff)
		}
		if len(reasons) > 0 {
			out = append(out, Conflict{Appointment: *a, Reasons: reasons})
		}
	}
	return out
}

// Book records a scheduled appointment. It does not reject conflicting
// bookings; callers run FindConflicts first and decide.
func (l *Ledger) Book(patient *hospital.Patient, dept *hospital.Department, start, end time.Time, staff *hospital.Staff, notes string) (*Appointment, error) {
	if patient == nil {
		return nil, fmt.Errorf("%w: patient is required", hospital.ErrValidation)
	}
	if dept == nil {
		return nil, fmt.Errorf("%w: department is required", hospital.ErrValidation)
	}

	var staffID string
	if staff != nil {
		staffID = staff.ID
	}

	id, err := l.newID()
	if err != nil {
		return nil, err
	}
	a, err := New(id, patient.ID, staffID, dept.Name, start, end, notes)
	if err != nil {
		return nil, err
	}

	l.items = append(l.items, a)
	l.patients[patient.ID] = patient
	if staff != nil {
		l.staff[staff.ID] = staff
	}
	return a, nil
}

// newID draws identifiers until one is unused. A sequence generator paired
// with restored appointments skips past the ids already taken.
func (l *Ledger) newID() (string, error) {
	for range len(l.items) + 1 {
		id := l.ids.NewID()
		if _, err := l.Get(id); err != nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: id generator keeps returning existing appointment ids", hospital.ErrValidation)
}

func (l *Ledger) Get(id string) (*Appointment, error) {
	for _, a := range l.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
}

// UpdateStatus sets any valid status regardless of the current one.
func (l *Ledger) UpdateStatus(id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	a, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	return a, nil
}

// Reschedule moves an appointment to a new interval. Like Book it does not
// check conflicts; pass the appointment id as ConflictQuery.ExcludeID first.
func (l *Ledger) Reschedule(id string, start, end time.Time) (*Appointment, error) {
	a, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", hospital.ErrValidation)
	}
	a.Start, a.End = start, end
	return a, nil
}

// Remove deletes an appointment. Patient and staff records are untouched.
func (l *Ledger) Remove(id string) error {
	for i, a := range l.items {
		if a.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
}

// Filter narrows List. Zero values and All match everything. Day compares the
// calendar date of Start in Day's location.
type Filter struct {
	Day        time.Time
	Department string
	Status     Status
}

// List returns appointments matching every set filter, ordered by start time.
func (l *Ledger) List(f Filter) []*Appointment {
	var out []*Appointment
	for _, a := range l.items {
		if !f.Day.IsZero() && !sameDay(a.Start, f.Day) {
			continue
		}
		if f.Department != "" && f.Department != All && a.Department != f.Department {
			continue
		}
		if f.Status != "" && f.Status != All && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ReassignDepartment points every active appointment of patientID at
// department and returns how many were changed. Completed and cancelled
// appointments keep their historical department.
func (l *Ledger) ReassignDepartment(patientID, department string) int {
	n := 0
	for _, a := range l.items {
		if a.PatientID == patientID && a.Status.Active() {
			a.Department = department
			n++
		}
	}
	return n
}

// CountByStatus counts the appointments starting on day, by status.
func (l *Ledger) CountByStatus(day time.Time) map[Status]int {
	counts := make(map[Status]int, len(Statuses()))
	for _, s := range Statuses() {
		counts[s] = 0
	}
	for _, a := range l.items {
		if sameDay(a.Start, day) {
			counts[a.Status]++
		}
	}
	return counts
}

// PatientOf resolves the appointment's patient through the index.
func (l *Ledger) PatientOf(a *Appointment) *hospital.Patient {
	return l.patients[a.PatientID]
}

func (l *Ledger) StaffOf(a *Appointment) *hospital.Staff {
	if a.StaffID == "" {
		return nil
	}
	return l.staff[a.StaffID]
}

// Items returns the appointments in ledger order.
func (l *Ledger) Items() []*Appointment {
	return append([]*Appointment(nil), l.items...)
}

func (l *Ledger) Len() int { return len(l.items) }

// Restore replaces the ledger contents with previously saved appointments,
// keeping their identifiers and statuses.
func (l *Ledger) Restore(items []*Appointment) error {
	seen := make(map[string]struct{}, len(items))
	for _, a := range items {
		if a == nil {
			return fmt.Errorf("%w: nil appointment", hospital.ErrValidation)
		}
		if err := a.validate(); err != nil {
			return fmt.Errorf("restore appointment %q: %w", a.ID, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate appointment id %s", hospital.ErrValidation, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	l.items = append([]*Appointment(nil), items...)
	return nil
}

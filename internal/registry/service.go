// Package registry coordinates the hospital directory and its appointment
// ledger for callers that may run concurrently, such as HTTP handlers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/events"
	"github.com/hackgods/hospital-directory/internal/hospital"
	"github.com/hackgods/hospital-directory/internal/snapshot"
)

var (
	ErrConflict = errors.New("appointment conflicts with existing bookings")
	ErrNoStore  = errors.New("no snapshot store configured")
)

// ConflictError is returned when a booking overlaps active appointments of
// the same patient or staff member and the caller did not allow it.
type ConflictError struct {
	Conflicts []ConflictView
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting appointment(s)", ErrConflict, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Service serializes every operation on the single-threaded core behind one
// lock. Capacity limits are enforced unconditionally; appointment conflicts
// are refused unless the request explicitly allows them. Domain events are
// published after the lock is released.
type Service struct {
	mu     sync.Mutex
	dir    *hospital.Directory
	ledger *appointment.Ledger
	outbox []events.Event

	// publishMu orders flushes so events leave in emission order.
	publishMu sync.Mutex

	store       snapshot.Store
	restoreOpts snapshot.RestoreOptions
	publisher   events.Publisher
	eventIDs    hospital.IDGenerator
	logger      zerolog.Logger
}

type Option func(*Service)

func WithStore(store snapshot.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRestoreOptions sets the options used to rebuild state on Load.
func WithRestoreOptions(opts snapshot.RestoreOptions) Option {
	return func(s *Service) { s.restoreOpts = opts }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventIDs(g hospital.IDGenerator) Option {
	return func(s *Service) { s.eventIDs = g }
}

func NewService(dir *hospital.Directory, ledger *appointment.Ledger, opts ...Option) *Service {
	s := &Service{
		dir:       dir,
		ledger:    ledger,
		publisher: events.Nop{},
		eventIDs:  hospital.UUIDGenerator{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) HospitalName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir.Name
}

// Departments

func (s *Service) CreateDepartment(ctx context.Context, name string, capacity int) (DepartmentSummary, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.dir.CreateDepartment(name, capacity)
	if err != nil {
		return DepartmentSummary{}, err
	}
	s.emit(events.DepartmentCreated, dept.Name, map[string]any{
		"capacity": dept.Capacity,
		"code":     dept.Code,
	})
	return departmentSummary(dept), nil
}

func (s *Service) Departments() []DepartmentSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	depts := s.dir.Departments()
	out := make([]DepartmentSummary, 0, len(depts))
	for _, d := range depts {
		out = append(out, departmentSummary(d))
	}
	return out
}

func (s *Service) Department(name string) (DepartmentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.department(name)
	if err != nil {
		return DepartmentSummary{}, err
	}
	return departmentSummary(dept), nil
}

// Patients lists a department's patients in admission order.
func (s *Service) Patients(deptName string, activeOnly bool) ([]PatientView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.department(deptName)
	if err != nil {
		return nil, err
	}
	patients := dept.Patients()
	if activeOnly {
		patients = dept.ActivePatients()
	}
	out := make([]PatientView, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientView(p, dept.Name))
	}
	return out, nil
}

// Staff lists a department's staff. A non-empty position restricts the result
// to active staff holding that position.
func (s *Service) Staff(deptName, position string) ([]StaffView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.department(deptName)
	if err != nil {
		return nil, err
	}
	staff := dept.Staff()
	if strings.TrimSpace(position) != "" {
		staff = dept.StaffByPosition(position)
	}
	out := make([]StaffView, 0, len(staff))
	for _, st := range staff {
		out = append(out, staffView(st))
	}
	return out, nil
}

// Patients and staff

type AdmitRequest struct {
	Name          string
	Age           int
	MedicalRecord string
}

func (s *Service) AdmitPatient(ctx context.Context, deptName string, req AdmitRequest) (PatientView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.department(deptName)
	if err != nil {
		return PatientView{}, err
	}
	p, err := s.dir.NewPatient(req.Name, req.Age, req.MedicalRecord)
	if err != nil {
		return PatientView{}, err
	}
	if err := s.dir.AdmitPatient(dept.Name, p); err != nil {
		return PatientView{}, err
	}

	s.emit(events.PatientAdmitted, p.ID, map[string]any{
		"patient_id": p.PatientID,
		"department": dept.Name,
	})
	return patientView(p, dept.Name), nil
}

// AllPatients lists every patient in the hospital, department by department.
func (s *Service) AllPatients() []PatientView {
	s.mu.Lock()
	defer s.mu.Unlock()

	placements := s.dir.AllPatients()
	out := make([]PatientView, 0, len(placements))
	for _, pl := range placements {
		out = append(out, patientView(pl.Patient, pl.Department))
	}
	return out
}

func (s *Service) Patient(id string) (PatientView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, dept := s.dir.FindPatient(id)
	if p == nil {
		return PatientView{}, fmt.Errorf("%w: %s", hospital.ErrPatientNotFound, id)
	}
	return patientView(p, dept.Name), nil
}

// PatientRecord returns the printable medical record of a patient.
func (s *Service) PatientRecord(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.dir.FindPatient(id)
	if p == nil {
		return "", fmt.Errorf("%w: %s", hospital.ErrPatientNotFound, id)
	}
	return p.Record(), nil
}

// SearchPatients filters patients across every department.
func (s *Service) SearchPatients(q hospital.PatientQuery) ([]PatientView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placements, err := s.dir.SearchPatients(q)
	if err != nil {
		return nil, err
	}
	out := make([]PatientView, 0, len(placements))
	for _, pl := range placements {
		out = append(out, patientView(pl.Patient, pl.Department))
	}
	return out, nil
}

// UpdatePatient edits a patient's name, age or medical record.
func (s *Service) UpdatePatient(ctx context.Context, id string, u hospital.PatientUpdate) (PatientView, error) {
	if u.Empty() {
		return PatientView{}, fmt.Errorf("%w: nothing to update", hospital.ErrValidation)
	}

	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.dir.UpdatePatient(id, u)
	if err != nil {
		return PatientView{}, err
	}
	_, dept := s.dir.FindPatient(id)
	s.emit(events.PatientUpdated, p.ID, map[string]any{
		"patient_id":     p.PatientID,
		"name":           p.Name,
		"age":            p.Age,
		"record_changed": u.MedicalRecord != nil,
	})
	return patientView(p, dept.Name), nil
}

// AppendRecord adds a note to a patient's medical record.
func (s *Service) AppendRecord(ctx context.Context, id, note string) (PatientView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.dir.AppendPatientRecord(id, note)
	if err != nil {
		return PatientView{}, err
	}
	_, dept := s.dir.FindPatient(id)
	s.emit(events.PatientRecordAppended, p.ID, map[string]any{"patient_id": p.PatientID})
	return patientView(p, dept.Name), nil
}

func (s *Service) DischargePatient(ctx context.Context, id, notes string) (PatientView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discharge(id, notes)
}

// DischargePatients discharges each id independently; failures do not stop
// the remaining discharges.
func (s *Service) DischargePatients(ctx context.Context, ids []string, notes string) ([]PatientView, map[string]error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var done []PatientView
	failed := make(map[string]error)
	for _, id := range ids {
		v, err := s.discharge(id, notes)
		if err != nil {
			failed[id] = err
			continue
		}
		done = append(done, v)
	}
	return done, failed
}

func (s *Service) discharge(id, notes string) (PatientView, error) {
	p, err := s.dir.DischargePatient(id, notes)
	if err != nil {
		return PatientView{}, err
	}
	_, dept := s.dir.FindPatient(id)
	s.emit(events.PatientDischarged, p.ID, map[string]any{
		"patient_id": p.PatientID,
		"department": dept.Name,
	})
	return patientView(p, dept.Name), nil
}

// MovePatient relocates an admitted patient and points its active
// appointments at the new department.
func (s *Service) MovePatient(ctx context.Context, id, toDept string) (MoveResult, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to, err := s.dir.MovePatient(id, toDept)
	if err != nil {
		return MoveResult{}, err
	}
	updated := s.ledger.ReassignDepartment(id, to.Name)
	p, _ := s.dir.FindPatient(id)

	s.emit(events.PatientMoved, id, map[string]any{
		"from":                 from.Name,
		"to":                   to.Name,
		"appointments_updated": updated,
	})
	return MoveResult{
		Patient:             patientView(p, to.Name),
		From:                from.Name,
		To:                  to.Name,
		AppointmentsUpdated: updated,
	}, nil
}

type StaffRequest struct {
	Name     string
	Age      int
	Position string
}

// HireStaff creates a staff member and assigns it to the department.
func (s *Service) HireStaff(ctx context.Context, deptName string, req StaffRequest) (StaffView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.department(deptName)
	if err != nil {
		return StaffView{}, err
	}
	st, err := s.dir.NewStaff(req.Name, req.Age, req.Position, "")
	if err != nil {
		return StaffView{}, err
	}
	if err := s.dir.AssignStaff(dept.Name, st); err != nil {
		return StaffView{}, err
	}

	s.emit(events.StaffAssigned, st.ID, map[string]any{
		"staff_id":   st.StaffID,
		"department": dept.Name,
		"position":   st.Position,
	})
	return staffView(st), nil
}

// AllStaff lists every staff member in the hospital.
func (s *Service) AllStaff() []StaffView {
	s.mu.Lock()
	defer s.mu.Unlock()

	staff := s.dir.AllStaff()
	out := make([]StaffView, 0, len(staff))
	for _, st := range staff {
		out = append(out, staffView(st))
	}
	return out
}

// SearchStaff filters staff across every department.
func (s *Service) SearchStaff(q hospital.StaffQuery) ([]StaffView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staff, err := s.dir.SearchStaff(q)
	if err != nil {
		return nil, err
	}
	out := make([]StaffView, 0, len(staff))
	for _, st := range staff {
		out = append(out, staffView(st))
	}
	return out, nil
}

// StaffInfo returns the printable summary of a staff member.
func (s *Service) StaffInfo(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.dir.FindStaff(id)
	if st == nil {
		return "", fmt.Errorf("%w: %s", hospital.ErrStaffNotFound, id)
	}
	return st.Info(), nil
}

// TransferStaff moves an existing staff member to another department.
func (s *Service) TransferStaff(ctx context.Context, id, deptName string) (StaffView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.dir.FindStaff(id)
	if st == nil {
		return StaffView{}, fmt.Errorf("%w: %s", hospital.ErrStaffNotFound, id)
	}
	dept, err := s.department(deptName)
	if err != nil {
		return StaffView{}, err
	}
	if err := s.dir.AssignStaff(dept.Name, st); err != nil {
		return StaffView{}, err
	}
	s.emit(events.StaffAssigned, st.ID, map[string]any{
		"staff_id":   st.StaffID,
		"department": dept.Name,
	})
	return staffView(st), nil
}

func (s *Service) ToggleStaff(ctx context.Context, id string) (StaffView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.dir.ToggleStaff(id)
	if err != nil {
		return StaffView{}, err
	}
	s.emit(events.StaffToggled, st.ID, map[string]any{"active": st.Active})
	return staffView(st), nil
}

// Appointments

type ConflictRequest struct {
	PatientID string
	StaffID   string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

func (s *Service) FindConflicts(req ConflictRequest) ([]ConflictView, error) {
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("%w: end time must be after start time", hospital.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conflicts := s.ledger.FindConflicts(appointment.ConflictQuery{
		PatientID: req.PatientID,
		StaffID:   req.StaffID,
		Start:     req.Start,
		End:       req.End,
		ExcludeID: req.ExcludeID,
	})
	return conflictViews(s.ledger, conflicts), nil
}

type BookRequest struct {
	PatientID  string
	StaffID    string
	Department string // defaults to the patient's current department
	Start      time.Time
	End        time.Time
	Notes      string
	// AllowConflicts books even when FindConflicts reports matches.
	AllowConflicts bool
}

func (s *Service) BookAppointment(ctx context.Context, req BookRequest) (AppointmentView, error) {
	if !req.End.After(req.Start) {
		return AppointmentView{}, fmt.Errorf("%w: end time must be after start time", hospital.ErrValidation)
	}

	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	patient, home := s.dir.FindPatient(req.PatientID)
	if patient == nil {
		return AppointmentView{}, fmt.Errorf("%w: %s", hospital.ErrPatientNotFound, req.PatientID)
	}
	if patient.Discharged {
		return AppointmentView{}, fmt.Errorf("%w: %s cannot be booked", hospital.ErrAlreadyDischarged, patient.PatientID)
	}

	dept := home
	if strings.TrimSpace(req.Department) != "" {
		d, err := s.department(req.Department)
		if err != nil {
			return AppointmentView{}, err
		}
		dept = d
	}

	var staff *hospital.Staff
	if req.StaffID != "" {
		staff, _ = s.dir.FindStaff(req.StaffID)
		if staff == nil {
			return AppointmentView{}, fmt.Errorf("%w: %s", hospital.ErrStaffNotFound, req.StaffID)
		}
	}

	conflicts := s.ledger.FindConflicts(appointment.ConflictQuery{
		PatientID: patient.ID,
		StaffID:   req.StaffID,
		Start:     req.Start,
		End:       req.End,
	})
	if len(conflicts) > 0 {
		if !req.AllowConflicts {
			return AppointmentView{}, &ConflictError{Conflicts: conflictViews(s.ledger, conflicts)}
		}
		s.logger.Warn().
			Str("patient_id", patient.ID).
			Int("conflicts", len(conflicts)).
			Msg("booking over existing appointments")
	}

	a, err := s.ledger.Book(patient, dept, req.Start, req.End, staff, req.Notes)
	if err != nil {
		return AppointmentView{}, err
	}

	s.emit(events.AppointmentBooked, a.ID, map[string]any{
		"patient_id": a.PatientID,
		"staff_id":   a.StaffID,
		"department": a.Department,
		"start":      a.Start,
		"end":        a.End,
		"overridden": len(conflicts) > 0,
	})
	return appointmentView(s.ledger, a), nil
}

// RescheduleAppointment moves an appointment, checking conflicts against
// every other appointment.
func (s *Service) RescheduleAppointment(ctx context.Context, id string, start, end time.Time, allowConflicts bool) (AppointmentView, error) {
	if !end.After(start) {
		return AppointmentView{}, fmt.Errorf("%w: end time must be after start time", hospital.ErrValidation)
	}

	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ledger.Get(id)
	if err != nil {
		return AppointmentView{}, err
	}
	conflicts := s.ledger.FindConflicts(appointment.ConflictQuery{
		PatientID: a.PatientID,
		StaffID:   a.StaffID,
		Start:     start,
		End:       end,
		ExcludeID: a.ID,
	})
	if len(conflicts) > 0 && !allowConflicts {
		return AppointmentView{}, &ConflictError{Conflicts: conflictViews(s.ledger, conflicts)}
	}

	a, err = s.ledger.Reschedule(id, start, end)
	if err != nil {
		return AppointmentView{}, err
	}
	s.emit(events.AppointmentRescheduled, a.ID, map[string]any{
		"start":      a.Start,
		"end":        a.End,
		"overridden": len(conflicts) > 0,
	})
	return appointmentView(s.ledger, a), nil
}

func (s *Service) Appointment(id string) (AppointmentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ledger.Get(id)
	if err != nil {
		return AppointmentView{}, err
	}
	return appointmentView(s.ledger, a), nil
}

func (s *Service) UpdateAppointmentStatus(ctx context.Context, id string, status appointment.Status) (AppointmentView, error) {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ledger.UpdateStatus(id, status)
	if err != nil {
		return AppointmentView{}, err
	}
	s.emit(events.AppointmentStatusChanged, a.ID, map[string]any{"status": a.Status})
	return appointmentView(s.ledger, a), nil
}

func (s *Service) RemoveAppointment(ctx context.Context, id string) error {
	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Remove(id); err != nil {
		return err
	}
	s.emit(events.AppointmentRemoved, id, nil)
	return nil
}

func (s *Service) ListAppointments(f appointment.Filter) []AppointmentView {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.ledger.List(f)
	out := make([]AppointmentView, 0, len(items))
	for _, a := range items {
		out = append(out, appointmentView(s.ledger, a))
	}
	return out
}

// Summary reports occupancy per department and the appointments starting on day.
func (s *Service) Summary(day time.Time) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Hospital: s.dir.Name,
		Location: s.dir.Location,
		Day:      day.Format(time.DateOnly),
		ByStatus: make(map[string]int),
	}
	for _, d := range s.dir.Departments() {
		ds := departmentSummary(d)
		sum.Departments = append(sum.Departments, ds)
		sum.TotalPatients += ds.Patients
		sum.ActivePatients += ds.ActivePatients
		sum.TotalStaff += ds.Staff
	}
	for status, n := range s.ledger.CountByStatus(day) {
		sum.ByStatus[string(status)] = n
		sum.AppointmentsOnDay += n
	}
	return sum
}

// Snapshots

func (s *Service) Snapshot() snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Capture(s.dir, s.ledger)
}

// Save captures the current state and writes it to the configured store.
func (s *Service) Save(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	snap := s.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load replaces the current state with the newest stored snapshot.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	return s.Restore(ctx, snap)
}

// Restore swaps in the state held by snap. The current state is kept if snap
// cannot be restored.
func (s *Service) Restore(ctx context.Context, snap snapshot.Snapshot) error {
	dir, ledger, err := snapshot.Restore(snap, s.restoreOpts)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	defer s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dir = dir
	s.ledger = ledger
	s.ledger.RebuildIndexes()

	s.emit(events.SnapshotRestored, dir.Name, map[string]any{
		"departments":  len(snap.Hospital.Departments),
		"appointments": len(snap.Appointments.Items),
		"saved_at":     snap.SavedAt,
	})
	return nil
}

func (s *Service) department(name string) (*hospital.Department, error) {
	dept := s.dir.FindDepartment(name)
	if dept == nil {
		return nil, fmt.Errorf("%w: %s", hospital.ErrDepartmentNotFound, name)
	}
	return dept, nil
}

// emit queues a domain event. It runs under s.mu; the queue is published by
// flush once the lock is released.
func (s *Service) emit(eventType, aggregateID string, payload map[string]any) {
	s.outbox = append(s.outbox, events.Event{
		ID:          s.eventIDs.NewID(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  s.dir.Now(),
	})
}

// flush publishes queued events in the order they were emitted. Publishing
// failures are logged and never fail the operation that produced the event.
// Must be called without s.mu held.
func (s *Service) flush(ctx context.Context) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	pending := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	for _, ev := range pending {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error().Err(err).
				Str("event_type", ev.Type).
				Str("aggregate_id", ev.AggregateID).
				Msg("failed to publish event")
		}
	}
}

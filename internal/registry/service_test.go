package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/events"
	"github.com/hackgods/hospital-directory/internal/hospital"
	"github.com/hackgods/hospital-directory/internal/snapshot"
)

var day = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newService(t *testing.T, opts ...Option) (*Service, *recorder) {
	t.Helper()
	dir, err := hospital.NewDirectory("General", "Downtown",
		hospital.WithIDGenerator(hospital.NewSequenceGenerator("person-")),
		hospital.WithClock(hospital.FixedClock(day)),
	)
	require.NoError(t, err)
	ledger := appointment.NewLedger(dir, appointment.WithIDGenerator(hospital.NewSequenceGenerator("appt-")))

	rec := &recorder{}
	opts = append([]Option{WithPublisher(rec), WithEventIDs(hospital.NewSequenceGenerator("ev-"))}, opts...)
	return NewService(dir, ledger, opts...), rec
}

func admit(t *testing.T, s *Service, dept, name string) PatientView {
	t.Helper()
	p, err := s.AdmitPatient(context.Background(), dept, AdmitRequest{Name: name, Age: 40})
	require.NoError(t, err)
	return p
}

func hire(t *testing.T, s *Service, dept, name string) StaffView {
	t.Helper()
	st, err := s.HireStaff(context.Background(), dept, StaffRequest{Name: name, Age: 45, Position: "Doctor"})
	require.NoError(t, err)
	return st
}

func TestDefaultDepartments(t *testing.T) {
	s, _ := newService(t)

	var names []string
	for _, d := range s.Departments() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Cardiology", "Pediatrics", "Emergency", "Surgery"}, names)

	_, err := s.Department("nope")
	assert.ErrorIs(t, err, hospital.ErrDepartmentNotFound)
}

func TestCreateDepartment(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()

	d, err := s.CreateDepartment(ctx, "Oncology", 4)
	require.NoError(t, err)
	assert.Equal(t, hospital.MinCapacity, d.Capacity)

	_, err = s.CreateDepartment(ctx, "Oncology", 20)
	assert.ErrorIs(t, err, hospital.ErrDepartmentExists)
	assert.Equal(t, []string{events.DepartmentCreated}, rec.types())
}

func TestAdmitAndList(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()

	p := admit(t, s, "cardiology", "Ann")
	assert.Equal(t, "Cardiology", p.Department)
	admit(t, s, "Cardiology", "Ben")

	_, err := s.DischargePatient(ctx, p.ID, "stable")
	require.NoError(t, err)

	all, err := s.Patients("Cardiology", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.Patients("Cardiology", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Ben", active[0].Name)

	_, err = s.AdmitPatient(ctx, "Cardiology", AdmitRequest{Name: " ", Age: 10})
	assert.ErrorIs(t, err, hospital.ErrValidation)

	assert.Equal(t, []string{events.PatientAdmitted, events.PatientAdmitted, events.PatientDischarged}, rec.types())

	admit(t, s, "Surgery", "Cy")
	everyone := s.AllPatients()
	require.Len(t, everyone, 3)
	assert.Equal(t, "Surgery", everyone[2].Department)
}

func TestAdmitCapacity(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.CreateDepartment(ctx, "Tiny", 1)
	require.NoError(t, err)
	for i := 0; i < hospital.MinCapacity; i++ {
		admit(t, s, "Tiny", "Patient")
	}
	_, err = s.AdmitPatient(ctx, "Tiny", AdmitRequest{Name: "Extra", Age: 30})
	assert.ErrorIs(t, err, hospital.ErrCapacityExceeded)
}

func TestDischargePatients(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	a := admit(t, s, "Surgery", "Ann")
	b := admit(t, s, "Surgery", "Ben")
	_, err := s.DischargePatient(ctx, b.ID, "")
	require.NoError(t, err)

	done, failed := s.DischargePatients(ctx, []string{a.ID, b.ID, "missing"}, "bulk")
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)
	assert.Contains(t, done[0].MedicalRecord, "[Discharge Note] bulk")
	assert.ErrorIs(t, failed[b.ID], hospital.ErrAlreadyDischarged)
	assert.ErrorIs(t, failed["missing"], hospital.ErrPatientNotFound)
}

func TestStaff(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()

	doc := hire(t, s, "Emergency", "Dr. Grey")
	assert.Equal(t, "Emergency", doc.Department)
	_, err := s.HireStaff(ctx, "Emergency", StaffRequest{Name: "Nobody", Age: 30})
	assert.ErrorIs(t, err, hospital.ErrValidation)

	byPos, err := s.Staff("Emergency", "doctor")
	require.NoError(t, err)
	assert.Len(t, byPos, 1)

	toggled, err := s.ToggleStaff(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	byPos, err = s.Staff("Emergency", "Doctor")
	require.NoError(t, err)
	assert.Empty(t, byPos)
	everyone, err := s.Staff("Emergency", "")
	require.NoError(t, err)
	assert.Len(t, everyone, 1)

	assert.Len(t, s.AllStaff(), 1)

	moved, err := s.TransferStaff(ctx, doc.ID, "Surgery")
	require.NoError(t, err)
	assert.Equal(t, "Surgery", moved.Department)
	everyone, err = s.Staff("Emergency", "")
	require.NoError(t, err)
	assert.Empty(t, everyone)

	_, err = s.ToggleStaff(ctx, "missing")
	assert.ErrorIs(t, err, hospital.ErrStaffNotFound)

	assert.Equal(t, []string{events.StaffAssigned, events.StaffToggled, events.StaffAssigned}, rec.types())
}

func TestBookRejectsConflicts(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	p1 := admit(t, s, "Cardiology", "Ann")
	p2 := admit(t, s, "Cardiology", "Ben")
	doc := hire(t, s, "Cardiology", "Dr. House")

	first, err := s.BookAppointment(ctx, BookRequest{PatientID: p1.ID, StaffID: doc.ID, Start: at(9, 0), End: at(9, 30)})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", first.Department)
	assert.Equal(t, "Ann", first.PatientName)
	assert.Equal(t, "Dr. House", first.StaffName)
	assert.Equal(t, string(appointment.StatusScheduled), first.Status)

	_, err = s.BookAppointment(ctx, BookRequest{PatientID: p2.ID, StaffID: doc.ID, Start: at(9, 15), End: at(9, 45)})
	var cerr *ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, ErrConflict)
	require.Len(t, cerr.Conflicts, 1)
	assert.Equal(t, first.ID, cerr.Conflicts[0].Appointment.ID)
	assert.Equal(t, []string{string(appointment.ReasonStaff)}, cerr.Conflicts[0].Reasons)

	// Touching intervals do not overlap.
	_, err = s.BookAppointment(ctx, BookRequest{PatientID: p2.ID, StaffID: doc.ID, Start: at(9, 30), End: at(10, 0)})
	require.NoError(t, err)

	forced, err := s.BookAppointment(ctx, BookRequest{PatientID: p1.ID, Start: at(9, 10), End: at(9, 20), AllowConflicts: true})
	require.NoError(t, err)
	assert.NotEmpty(t, forced.ID)
	assert.Len(t, s.ListAppointments(appointment.Filter{}), 3)
}

func TestBookValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Cardiology", "Ann")

	_, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(10, 0), End: at(10, 0)})
	assert.ErrorIs(t, err, hospital.ErrValidation)

	_, err = s.BookAppointment(ctx, BookRequest{PatientID: "missing", Start: at(10, 0), End: at(11, 0)})
	assert.ErrorIs(t, err, hospital.ErrPatientNotFound)

	_, err = s.BookAppointment(ctx, BookRequest{PatientID: p.ID, StaffID: "missing", Start: at(10, 0), End: at(11, 0)})
	assert.ErrorIs(t, err, hospital.ErrStaffNotFound)

	_, err = s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Department: "Nowhere", Start: at(10, 0), End: at(11, 0)})
	assert.ErrorIs(t, err, hospital.ErrDepartmentNotFound)

	_, err = s.DischargePatient(ctx, p.ID, "")
	require.NoError(t, err)
	_, err = s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(10, 0), End: at(11, 0)})
	assert.ErrorIs(t, err, hospital.ErrAlreadyDischarged)
}

func TestFindConflicts(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Pediatrics", "Kid")

	booked, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(8, 0), End: at(9, 0)})
	require.NoError(t, err)

	got, err := s.FindConflicts(ConflictRequest{PatientID: p.ID, Start: at(8, 30), End: at(9, 30)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{string(appointment.ReasonPatient)}, got[0].Reasons)

	got, err = s.FindConflicts(ConflictRequest{PatientID: p.ID, Start: at(8, 30), End: at(9, 30), ExcludeID: booked.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.FindConflicts(ConflictRequest{PatientID: p.ID, Start: at(9, 0), End: at(8, 0)})
	assert.ErrorIs(t, err, hospital.ErrValidation)
}

func TestAppointmentLifecycle(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Cardiology", "Ann")

	a, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(11, 0), End: at(11, 30), Notes: "follow-up"})
	require.NoError(t, err)

	updated, err := s.UpdateAppointmentStatus(ctx, a.ID, appointment.StatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, string(appointment.StatusCheckedIn), updated.Status)

	_, err = s.UpdateAppointmentStatus(ctx, a.ID, appointment.Status("lost"))
	assert.ErrorIs(t, err, appointment.ErrInvalidStatus)

	moved, err := s.RescheduleAppointment(ctx, a.ID, at(14, 0), at(14, 30), false)
	require.NoError(t, err)
	assert.Equal(t, at(14, 0), moved.Start)

	got, err := s.Appointment(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "follow-up", got.Notes)

	require.NoError(t, s.RemoveAppointment(ctx, a.ID))
	assert.ErrorIs(t, s.RemoveAppointment(ctx, a.ID), appointment.ErrAppointmentNotFound)
	_, err = s.Appointment(a.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	assert.Contains(t, rec.types(), events.AppointmentRemoved)
}

func TestMovePatientUpdatesActiveAppointments(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Cardiology", "Ann")

	active, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	done, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(7, 0), End: at(8, 0)})
	require.NoError(t, err)
	_, err = s.UpdateAppointmentStatus(ctx, done.ID, appointment.StatusCompleted)
	require.NoError(t, err)

	res, err := s.MovePatient(ctx, p.ID, "Surgery")
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", res.From)
	assert.Equal(t, "Surgery", res.To)
	assert.Equal(t, 1, res.AppointmentsUpdated)
	assert.Equal(t, "Surgery", res.Patient.Department)

	got, err := s.Appointment(active.ID)
	require.NoError(t, err)
	assert.Equal(t, "Surgery", got.Department)
	got, err = s.Appointment(done.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", got.Department)

	_, err = s.MovePatient(ctx, p.ID, "Surgery")
	assert.ErrorIs(t, err, hospital.ErrValidation)
	_, err = s.MovePatient(ctx, p.ID, "Nowhere")
	assert.ErrorIs(t, err, hospital.ErrDepartmentNotFound)

	assert.Contains(t, rec.types(), events.PatientMoved)
}

func TestListAndSummary(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	ann := admit(t, s, "Cardiology", "Ann")
	ben := admit(t, s, "Surgery", "Ben")

	late, err := s.BookAppointment(ctx, BookRequest{PatientID: ann.ID, Start: at(15, 0), End: at(15, 30)})
	require.NoError(t, err)
	early, err := s.BookAppointment(ctx, BookRequest{PatientID: ben.ID, Start: at(8, 0), End: at(8, 30)})
	require.NoError(t, err)
	_, err = s.BookAppointment(ctx, BookRequest{PatientID: ben.ID, Start: at(8, 0).Add(24 * time.Hour), End: at(9, 0).Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = s.UpdateAppointmentStatus(ctx, late.ID, appointment.StatusCancelled)
	require.NoError(t, err)

	onDay := s.ListAppointments(appointment.Filter{Day: day})
	require.Len(t, onDay, 2)
	assert.Equal(t, early.ID, onDay[0].ID)
	assert.Equal(t, late.ID, onDay[1].ID)

	surgery := s.ListAppointments(appointment.Filter{Department: "Surgery", Status: appointment.All})
	assert.Len(t, surgery, 2)

	cancelled := s.ListAppointments(appointment.Filter{Status: appointment.StatusCancelled})
	require.Len(t, cancelled, 1)
	assert.Equal(t, late.ID, cancelled[0].ID)

	sum := s.Summary(day)
	assert.Equal(t, "General", sum.Hospital)
	assert.Equal(t, "2024-05-06", sum.Day)
	assert.Equal(t, 2, sum.TotalPatients)
	assert.Equal(t, 2, sum.ActivePatients)
	assert.Equal(t, 2, sum.AppointmentsOnDay)
	assert.Equal(t, 1, sum.ByStatus["scheduled"])
	assert.Equal(t, 1, sum.ByStatus["cancelled"])
	assert.Len(t, sum.Departments, 4)
}

func TestSaveAndLoad(t *testing.T) {
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "hospital.json"))
	s, rec := newService(t,
		WithStore(store),
		WithRestoreOptions(snapshot.RestoreOptions{
			Directory: []hospital.Option{hospital.WithClock(hospital.FixedClock(day))},
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, s.Load(ctx), snapshot.ErrNoSnapshot)

	p := admit(t, s, "Cardiology", "Ann")
	a, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(9, 0), End: at(9, 30)})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	require.NoError(t, s.RemoveAppointment(ctx, a.ID))
	_, err = s.CreateDepartment(ctx, "Oncology", 12)
	require.NoError(t, err)

	require.NoError(t, s.Load(ctx))
	got, err := s.Appointment(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.PatientName)
	_, err = s.Department("Oncology")
	assert.ErrorIs(t, err, hospital.ErrDepartmentNotFound)
	assert.Contains(t, rec.types(), events.SnapshotRestored)
}

func TestSaveWithoutStore(t *testing.T) {
	s, _ := newService(t)
	assert.ErrorIs(t, s.Save(context.Background()), ErrNoStore)
	assert.ErrorIs(t, s.Load(context.Background()), ErrNoStore)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	s, rec := newService(t)
	rec.err = errors.New("broker down")

	_, err := s.AdmitPatient(context.Background(), "Emergency", AdmitRequest{Name: "Ann", Age: 20})
	require.NoError(t, err)
	assert.Len(t, rec.types(), 1)
}

func TestConcurrentAdmissionsRespectCapacity(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.CreateDepartment(ctx, "Ward", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdmitPatient(ctx, "Ward", AdmitRequest{Name: "P", Age: 30}); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, admitted)
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) Publish(ctx context.Context, _ events.Event) error {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSlowPublisherDoesNotBlockReaders(t *testing.T) {
	pub := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, _ := newService(t, WithPublisher(pub))

	admitted := make(chan error, 1)
	go func() {
		_, err := s.AdmitPatient(context.Background(), "Cardiology", AdmitRequest{Name: "Ann", Age: 40})
		admitted <- err
	}()

	select {
	case <-pub.entered:
	case <-time.After(time.Second):
		t.Fatal("publisher was never called")
	}

	read := make(chan []DepartmentSummary, 1)
	go func() { read <- s.Departments() }()
	select {
	case depts := <-read:
		assert.Equal(t, 1, depts[0].Patients, "the admission is visible while its event is in flight")
	case <-time.After(time.Second):
		t.Fatal("read blocked behind an event publish")
	}

	close(pub.release)
	require.NoError(t, <-admitted)
}

func TestEventsPublishedInOrder(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Cardiology", "Ann")

	a, err := s.BookAppointment(ctx, BookRequest{PatientID: p.ID, Start: at(9, 0), End: at(9, 30)})
	require.NoError(t, err)
	_, err = s.RescheduleAppointment(ctx, a.ID, at(10, 0), at(10, 30), false)
	require.NoError(t, err)
	_, err = s.UpdateAppointmentStatus(ctx, a.ID, appointment.StatusCheckedIn)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.PatientAdmitted,
		events.AppointmentBooked,
		events.AppointmentRescheduled,
		events.AppointmentStatusChanged,
	}, rec.types())
	assert.Equal(t, at(10, 0), rec.events[2].Payload["start"])
}

func TestSearchPatientsAndStaff(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	ann := admit(t, s, "Cardiology", "Ann Lee")
	admit(t, s, "Surgery", "Joanna Ray")
	bob := admit(t, s, "Surgery", "Bob Stone")
	_, err := s.DischargePatient(ctx, bob.ID, "")
	require.NoError(t, err)

	found, err := s.SearchPatients(hospital.PatientQuery{Term: "ann", Status: hospital.PatientStatusAdmitted})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, ann.ID, found[0].ID)
	assert.Equal(t, "Surgery", found[1].Department)

	_, err = s.SearchPatients(hospital.PatientQuery{Status: "gone"})
	assert.ErrorIs(t, err, hospital.ErrValidation)

	doc := hire(t, s, "Cardiology", "Dr. Grey")
	_, err = s.HireStaff(ctx, "Surgery", StaffRequest{Name: "Nurse Bailey", Age: 39, Position: "Nurse"})
	require.NoError(t, err)
	_, err = s.ToggleStaff(ctx, doc.ID)
	require.NoError(t, err)

	staff, err := s.SearchStaff(hospital.StaffQuery{Status: hospital.StaffStatusInactive})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, doc.ID, staff[0].ID)

	staff, err = s.SearchStaff(hospital.StaffQuery{Position: "nur"})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "Nurse Bailey", staff[0].Name)
}

func TestUpdatePatientAndAppendRecord(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	p := admit(t, s, "Cardiology", "Ann")

	name, age := "Ann Marie", 41
	v, err := s.UpdatePatient(ctx, p.ID, hospital.PatientUpdate{Name: &name, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "Ann Marie", v.Name)
	assert.Equal(t, 41, v.Age)
	assert.Equal(t, p.PatientID, v.PatientID)

	_, err = s.UpdatePatient(ctx, p.ID, hospital.PatientUpdate{})
	assert.ErrorIs(t, err, hospital.ErrValidation)
	neg := -1
	_, err = s.UpdatePatient(ctx, p.ID, hospital.PatientUpdate{Age: &neg})
	assert.ErrorIs(t, err, hospital.ErrValidation)

	v, err = s.AppendRecord(ctx, p.ID, "allergic to penicillin")
	require.NoError(t, err)
	assert.Equal(t, "allergic to penicillin", v.MedicalRecord)

	_, err = s.DischargePatient(ctx, p.ID, "recovered")
	require.NoError(t, err)
	v, err = s.AppendRecord(ctx, p.ID, "follow-up call done")
	require.NoError(t, err)
	assert.Equal(t, "allergic to penicillin\n[Discharge Note] recovered\nfollow-up call done", v.MedicalRecord)

	_, err = s.AppendRecord(ctx, "missing", "x")
	assert.ErrorIs(t, err, hospital.ErrPatientNotFound)

	assert.Contains(t, rec.types(), events.PatientUpdated)
	assert.Contains(t, rec.types(), events.PatientRecordAppended)
}

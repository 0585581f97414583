package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-directory/internal/hospital"
)

var day = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	dir    *hospital.Directory
	ledger *Ledger
	dept   *hospital.Department
	other  *hospital.Department
	p1, p2 *hospital.Patient
	s1, s2 *hospital.Staff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := hospital.NewDirectory("General", "Downtown",
		hospital.WithIDGenerator(hospital.NewSequenceGenerator("person-")),
		hospital.WithClock(hospital.FixedClock(day)),
		hospital.WithDepartments(
			hospital.DepartmentSeed{Name: "Cardiology", Capacity: 20},
			hospital.DepartmentSeed{Name: "Surgery", Capacity: 20},
		),
	)
	require.NoError(t, err)

	f := &fixture{dir: dir, dept: dir.FindDepartment("Cardiology"), other: dir.FindDepartment("Surgery")}
	f.p1, _ = dir.NewPatient("Pat One", 30, "")
	f.p2, _ = dir.NewPatient("Pat Two", 40, "")
	require.NoError(t, dir.AdmitPatient("Cardiology", f.p1))
	require.NoError(t, dir.AdmitPatient("Cardiology", f.p2))
	f.s1, _ = dir.NewStaff("Doc One", 50, "Doctor", "")
	f.s2, _ = dir.NewStaff("Doc Two", 51, "Doctor", "")
	require.NoError(t, dir.AssignStaff("Cardiology", f.s1))
	require.NoError(t, dir.AssignStaff("Cardiology", f.s2))

	f.ledger = NewLedger(dir, WithIDGenerator(hospital.NewSequenceGenerator("appt-")))
	return f
}

func (f *fixture) book(t *testing.T, p *hospital.Patient, s *hospital.Staff, start, end time.Time) *Appointment {
	t.Helper()
	a, err := f.ledger.Book(p, f.dept, start, end, s, "")
	require.NoError(t, err)
	return a
}

func TestOverlaps_HalfOpen(t *testing.T) {
	assert.False(t, Overlaps(at(10, 0), at(10, 30), at(10, 30), at(11, 0)))
	assert.False(t, Overlaps(at(10, 30), at(11, 0), at(10, 0), at(10, 30)))
	assert.True(t, Overlaps(at(10, 0), at(10, 30), at(10, 15), at(10, 45)))
	assert.True(t, Overlaps(at(10, 0), at(12, 0), at(10, 15), at(10, 45)))
	assert.False(t, Overlaps(at(8, 0), at(9, 0), at(10, 0), at(11, 0)))
}

func TestNew_RejectsBadInterval(t *testing.T) {
	_, err := New("a1", "p1", "", "Cardiology", at(10, 0), at(10, 0), "")
	assert.ErrorIs(t, err, hospital.ErrValidation)

	_, err = New("a1", "p1", "", "Cardiology", at(10, 0), at(9, 0), "")
	assert.ErrorIs(t, err, hospital.ErrValidation)

	a, err := New("a1", "p1", "", "Cardiology", at(10, 0), at(10, 30), " bring scans ")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, "bring scans", a.Notes)
}

func TestLedger_BookValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Book(f.p1, f.dept, at(10, 0), at(9, 0), nil, "")
	assert.ErrorIs(t, err, hospital.ErrValidation)
	_, err = f.ledger.Book(nil, f.dept, at(10, 0), at(11, 0), nil, "")
	assert.ErrorIs(t, err, hospital.ErrValidation)
	_, err = f.ledger.Book(f.p1, nil, at(10, 0), at(11, 0), nil, "")
	assert.ErrorIs(t, err, hospital.ErrValidation)
	assert.Zero(t, f.ledger.Len())

	a := f.book(t, f.p1, nil, at(10, 0), at(11, 0))
	assert.Equal(t, "appt-000001", a.ID)
	assert.Empty(t, a.StaffID)
	assert.Equal(t, "Cardiology", a.Department)
}

func TestLedger_FindConflicts_TouchingAndOverlapping(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.p1, nil, at(10, 0), at(10, 30))

	assert.Empty(t, f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, Start: at(10, 30), End: at(11, 0)}))

	conflicts := f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, Start: at(10, 15), End: at(10, 45)})
	require.Len(t, conflicts, 1)
	assert.Equal(t, []Reason{ReasonPatient}, conflicts[0].Reasons)
}

func TestLedger_FindConflicts_PatientOnlyReason(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))

	conflicts := f.ledger.FindConflicts(ConflictQuery{
		PatientID: f.p1.ID,
		StaffID:   f.s2.ID,
		Start:     at(9, 15),
		End:       at(9, 45),
	})
	require.Len(t, conflicts, 1)
	assert.Equal(t, []Reason{ReasonPatient}, conflicts[0].Reasons)
	assert.True(t, conflicts[0].Has(ReasonPatient))
	assert.False(t, conflicts[0].Has(ReasonStaff))
}

func TestLedger_FindConflicts_StaffAndBothReasons(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.p1, f.s1, at(9, 0), at(10, 0))

	staffOnly := f.ledger.FindConflicts(ConflictQuery{PatientID: f.p2.ID, StaffID: f.s1.ID, Start: at(9, 30), End: at(10, 30)})
	require.Len(t, staffOnly, 1)
	assert.Equal(t, []Reason{ReasonStaff}, staffOnly[0].Reasons)

	both := f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, StaffID: f.s1.ID, Start: at(9, 30), End: at(10, 30)})
	require.Len(t, both, 1)
	assert.Equal(t, []Reason{ReasonPatient, ReasonStaff}, both[0].Reasons)

	// same time, different people
	assert.Empty(t, f.ledger.FindConflicts(ConflictQuery{PatientID: f.p2.ID, StaffID: f.s2.ID, Start: at(9, 0), End: at(10, 0)}))
	// no staff given never matches on staff, even against appointments without staff
	f.book(t, f.p2, nil, at(11, 0), at(12, 0))
	assert.Empty(t, f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, Start: at(11, 0), End: at(12, 0)}))
}

func TestLedger_FindConflicts_Symmetric(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))
	b := f.book(t, f.p1, f.s2, at(9, 15), at(9, 45))

	fromA := f.ledger.FindConflicts(ConflictQuery{PatientID: a.PatientID, StaffID: a.StaffID, Start: a.Start, End: a.End, ExcludeID: a.ID})
	fromB := f.ledger.FindConflicts(ConflictQuery{PatientID: b.PatientID, StaffID: b.StaffID, Start: b.Start, End: b.End, ExcludeID: b.ID})

	require.Len(t, fromA, 1)
	require.Len(t, fromB, 1)
	assert.Equal(t, b.ID, fromA[0].Appointment.ID)
	assert.Equal(t, a.ID, fromB[0].Appointment.ID)
	assert.True(t, fromA[0].Has(ReasonPatient))
	assert.True(t, fromB[0].Has(ReasonPatient))
}

func TestLedger_FindConflicts_ExcludeSelf(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, nil, at(9, 0), at(9, 30))

	assert.Len(t, f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, Start: at(9, 0), End: at(9, 30)}), 1)
	assert.Empty(t, f.ledger.FindConflicts(ConflictQuery{PatientID: f.p1.ID, Start: at(9, 0), End: at(9, 30), ExcludeID: a.ID}))
}

func TestLedger_InactiveStatusesNeverConflict(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))
	q := ConflictQuery{PatientID: f.p1.ID, StaffID: f.s1.ID, Start: at(9, 0), End: at(9, 30)}

	_, err := f.ledger.UpdateStatus(a.ID, StatusCheckedIn)
	require.NoError(t, err)
	assert.Len(t, f.ledger.FindConflicts(q), 1)

	_, err = f.ledger.UpdateStatus(a.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Empty(t, f.ledger.FindConflicts(q))

	_, err = f.ledger.UpdateStatus(a.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, f.ledger.FindConflicts(q))

	// any transition is allowed, including back to scheduled
	_, err = f.ledger.UpdateStatus(a.ID, StatusScheduled)
	require.NoError(t, err)
	assert.Len(t, f.ledger.FindConflicts(q), 1)
}

func TestLedger_BookDoesNotRejectConflicts(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))
	f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))
	assert.Equal(t, 2, f.ledger.Len())
}

func TestLedger_UpdateStatusAndRemove(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, nil, at(9, 0), at(9, 30))

	_, err := f.ledger.UpdateStatus("missing", StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = f.ledger.UpdateStatus(a.ID, Status("lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := f.ledger.UpdateStatus(a.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	assert.ErrorIs(t, f.ledger.Remove("missing"), ErrAppointmentNotFound)
	require.NoError(t, f.ledger.Remove(a.ID))
	assert.Zero(t, f.ledger.Len())
	_, err = f.ledger.Get(a.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	p, _ := f.dir.FindPatient(f.p1.ID)
	assert.NotNil(t, p)
}

func TestLedger_ListFiltered(t *testing.T) {
	f := newFixture(t)
	late := f.book(t, f.p1, nil, at(15, 0), at(15, 30))
	early := f.book(t, f.p2, nil, at(8, 0), at(8, 30))
	other, err := f.ledger.Book(f.p2, f.other, at(12, 0), at(12, 30), nil, "")
	require.NoError(t, err)
	tomorrow := f.book(t, f.p1, nil, at(24+9, 0), at(24+9, 30))
	_, err = f.ledger.UpdateStatus(late.ID, StatusCancelled)
	require.NoError(t, err)

	all := f.ledger.List(Filter{})
	require.Len(t, all, 4)
	assert.Equal(t, []string{early.ID, other.ID, late.ID, tomorrow.ID}, ids(all))

	assert.Equal(t, []string{early.ID, other.ID, late.ID}, ids(f.ledger.List(Filter{Day: day.Add(13 * time.Hour)})))
	assert.Equal(t, []string{other.ID}, ids(f.ledger.List(Filter{Department: "Surgery"})))
	assert.Equal(t, []string{late.ID}, ids(f.ledger.List(Filter{Status: StatusCancelled})))
	assert.Equal(t, []string{early.ID}, ids(f.ledger.List(Filter{Day: day, Department: "Cardiology", Status: StatusScheduled})))
	assert.Len(t, f.ledger.List(Filter{Department: All, Status: All}), 4)
}

func TestLedger_ReassignDepartmentOnlyActive(t *testing.T) {
	f := newFixture(t)
	active := f.book(t, f.p1, nil, at(9, 0), at(9, 30))
	checkedIn := f.book(t, f.p1, nil, at(10, 0), at(10, 30))
	done := f.book(t, f.p1, nil, at(11, 0), at(11, 30))
	otherPatient := f.book(t, f.p2, nil, at(9, 0), at(9, 30))
	_, _ = f.ledger.UpdateStatus(checkedIn.ID, StatusCheckedIn)
	_, _ = f.ledger.UpdateStatus(done.ID, StatusCompleted)

	n := f.ledger.ReassignDepartment(f.p1.ID, "Surgery")
	assert.Equal(t, 2, n)
	assert.Equal(t, "Surgery", active.Department)
	assert.Equal(t, "Surgery", checkedIn.Department)
	assert.Equal(t, "Cardiology", done.Department)
	assert.Equal(t, "Cardiology", otherPatient.Department)
}

func TestLedger_IndexLookupsAndRebuild(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, f.s1, at(9, 0), at(9, 30))
	b := f.book(t, f.p2, nil, at(9, 0), at(9, 30))

	assert.Same(t, f.p1, f.ledger.PatientOf(a))
	assert.Same(t, f.s1, f.ledger.StaffOf(a))
	assert.Nil(t, f.ledger.StaffOf(b))

	empty, err := hospital.NewDirectory("Empty", "Nowhere", hospital.WithDepartments())
	require.NoError(t, err)
	f.ledger.BindDirectory(empty)
	assert.Nil(t, f.ledger.PatientOf(a))
	assert.Equal(t, 2, f.ledger.Len())

	f.ledger.BindDirectory(f.dir)
	assert.Same(t, f.p1, f.ledger.PatientOf(a))
}

func TestLedger_CountByStatus(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, nil, at(9, 0), at(9, 30))
	f.book(t, f.p2, nil, at(10, 0), at(10, 30))
	f.book(t, f.p2, nil, at(24+10, 0), at(24+10, 30))
	_, _ = f.ledger.UpdateStatus(a.ID, StatusCompleted)

	counts := f.ledger.CountByStatus(day)
	assert.Equal(t, map[Status]int{
		StatusScheduled: 1,
		StatusCheckedIn: 0,
		StatusCompleted: 1,
		StatusCancelled: 0,
	}, counts)
}

func TestLedger_Restore(t *testing.T) {
	f := newFixture(t)
	good := &Appointment{ID: "x1", PatientID: f.p1.ID, Department: "Cardiology", Start: at(9, 0), End: at(10, 0), Status: StatusCheckedIn}
	require.NoError(t, f.ledger.Restore([]*Appointment{good}))
	got, err := f.ledger.Get("x1")
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, got.Status)

	dup := *good
	assert.ErrorIs(t, f.ledger.Restore([]*Appointment{good, &dup}), hospital.ErrValidation)

	bad := &Appointment{ID: "x2", PatientID: f.p1.ID, Department: "Cardiology", Start: at(9, 0), End: at(9, 0), Status: StatusScheduled}
	assert.ErrorIs(t, f.ledger.Restore([]*Appointment{bad}), hospital.ErrValidation)

	weird := &Appointment{ID: "x3", PatientID: f.p1.ID, Department: "Cardiology", Start: at(9, 0), End: at(10, 0), Status: "lost"}
	assert.ErrorIs(t, f.ledger.Restore([]*Appointment{weird}), ErrInvalidStatus)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Checked-In ")
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, s)

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func ids(items []*Appointment) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out
}

func TestLedger_Reschedule(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.p1, nil, at(9, 0), at(9, 30))
	f.book(t, f.p1, nil, at(11, 0), at(11, 30))

	q := ConflictQuery{PatientID: f.p1.ID, Start: at(9, 15), End: at(9, 45), ExcludeID: a.ID}
	assert.Empty(t, f.ledger.FindConflicts(q))

	moved, err := f.ledger.Reschedule(a.ID, at(9, 15), at(9, 45))
	require.NoError(t, err)
	assert.Equal(t, at(9, 15), moved.Start)

	_, err = f.ledger.Reschedule(a.ID, at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, hospital.ErrValidation)
	assert.Equal(t, at(9, 15), a.Start)

	_, err = f.ledger.Reschedule("nope", at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

type constID string

func (c constID) NewID() string { return string(c) }

func TestLedger_BookSkipsRestoredIDs(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, f.p1, nil, at(9, 0), at(9, 30))
	second := f.book(t, f.p2, nil, at(9, 0), at(9, 30))
	saved := f.ledger.Items()

	restored := NewLedger(f.dir, WithIDGenerator(hospital.NewSequenceGenerator("appt-")))
	require.NoError(t, restored.Restore(saved))

	a, err := restored.Book(f.p1, f.dept, at(11, 0), at(11, 30), nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, a.ID)
	assert.NotEqual(t, second.ID, a.ID)
	assert.Equal(t, "appt-000003", a.ID)
	assert.Equal(t, 3, restored.Len())

	stuck := NewLedger(f.dir, WithIDGenerator(constID(first.ID)))
	require.NoError(t, stuck.Restore(saved))
	_, err = stuck.Book(f.p1, f.dept, at(12, 0), at(12, 30), nil, "")
	assert.ErrorIs(t, err, hospital.ErrValidation)
	assert.Equal(t, 2, stuck.Len())
}

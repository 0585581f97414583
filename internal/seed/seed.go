// Package seed fills a registry with fake departments, people and appointments.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/hospital-directory/internal/appointment"
	"github.com/hackgods/hospital-directory/internal/registry"
)

var positions = []string{"Doctor", "Nurse", "Surgeon", "Technician", "Therapist"}

var notes = []string{
	"routine check",
	"follow-up visit",
	"lab results review",
	"post-op assessment",
	"medication review",
	"",
}

type Options struct {
	PatientsPerDepartment int
	StaffPerDepartment    int
	Appointments          int
	// Day is the calendar day appointments are spread over, 08:00 to 18:00.
	Day time.Time
}

type Result struct {
	Patients     int
	Staff        int
	Appointments int
	Conflicts    int
}

// Populate adds people to every existing department and books appointments
// between them. Bookings that would conflict are skipped and counted.
func Populate(ctx context.Context, svc *registry.Service, f *gofakeit.Faker, opts Options) (Result, error) {
	var res Result
	var patients []registry.PatientView
	staffByDept := make(map[string][]registry.StaffView)

	for _, dept := range svc.Departments() {
		for i := 0; i < opts.StaffPerDepartment; i++ {
			st, err := svc.HireStaff(ctx, dept.Name, registry.StaffRequest{
				Name:     f.Name(),
				Age:      f.Number(25, 67),
				Position: f.RandomString(positions),
			})
			if err != nil {
				return res, fmt.Errorf("hire staff in %s: %w", dept.Name, err)
			}
			staffByDept[dept.Name] = append(staffByDept[dept.Name], st)
			res.Staff++
		}

		free := dept.Capacity - dept.Patients
		n := min(opts.PatientsPerDepartment, free)
		for i := 0; i < n; i++ {
			p, err := svc.AdmitPatient(ctx, dept.Name, registry.AdmitRequest{
				Name:          f.Name(),
				Age:           f.Number(1, 95),
				MedicalRecord: f.RandomString(notes),
			})
			if err != nil {
				return res, fmt.Errorf("admit patient in %s: %w", dept.Name, err)
			}
			patients = append(patients, p)
			res.Patients++
		}
	}

	if len(patients) == 0 {
		return res, nil
	}

	day := opts.Day.Truncate(24 * time.Hour)
	for i := 0; i < opts.Appointments; i++ {
		p := patients[f.Number(0, len(patients)-1)]
		start := day.Add(8*time.Hour + time.Duration(f.Number(0, 19))*30*time.Minute)
		end := start.Add(time.Duration(f.Number(1, 3)) * 30 * time.Minute)

		req := registry.BookRequest{
			PatientID: p.ID,
			Start:     start,
			End:       end,
			Notes:     f.RandomString(notes),
		}
		if staff := staffByDept[p.Department]; len(staff) > 0 {
			req.StaffID = staff[f.Number(0, len(staff)-1)].ID
		}

		appt, err := svc.BookAppointment(ctx, req)
		var conflict *registry.ConflictError
		if errors.As(err, &conflict) {
			res.Conflicts++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("book appointment: %w", err)
		}
		res.Appointments++

		if f.Number(0, 3) == 0 {
			status := f.RandomString([]string{
				string(appointment.StatusCheckedIn),
				string(appointment.StatusCompleted),
				string(appointment.StatusCancelled),
			})
			if _, err := svc.UpdateAppointmentStatus(ctx, appt.ID, appointment.Status(status)); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

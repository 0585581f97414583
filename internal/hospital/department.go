package hospital

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// MinCapacity is the floor applied to every department capacity.
const MinCapacity = 10

// Department owns its patients and staff in admission order. Admission is
// guarded by the department's own lock so the capacity check and the append
// form a single critical section.
type Department struct {
	Name     string
	Capacity int
	Code     string

	mu       sync.Mutex
	patients []*Patient
	staff    []*Staff
}

// NewDepartment trims name and floors capacity at MinCapacity.
func NewDepartment(name string, capacity int) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrValidation)
	}
	return &Department{
		Name:     name,
		Capacity: max(MinCapacity, capacity),
		Code:     departmentCode(name),
	}, nil
}

// departmentCode is a display-only short code: first three letters plus a
// three digit hash of the name.
func departmentCode(name string) string {
	prefix := name
	if utf8.RuneCountInString(name) > 3 {
		prefix = string([]rune(name)[:3])
	}
	return fmt.Sprintf("%s%03d", strings.ToUpper(prefix), xxhash.Sum64String(name)%1000)
}

// Admit appends p unless the department is full. On failure the patient list
// is left untouched.
func (d *Department) Admit(p *Patient) error {
	if p == nil {
		return fmt.Errorf("%w: patient is required", ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.patients) >= d.Capacity {
		return fmt.Errorf("%w: cannot admit %s to %s", ErrCapacityExceeded, p.Name, d.Name)
	}
	for _, existing := range d.patients {
		if existing.ID == p.ID {
			return fmt.Errorf("%w: %s", ErrAlreadyPlaced, p.ID)
		}
	}
	d.patients = append(d.patients, p)
	return nil
}

// AssignStaff points the staff member at this department and appends it.
// Staff have no capacity limit.
func (d *Department) AssignStaff(s *Staff) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s.TransferTo(d.Name)
	d.staff = append(d.staff, s)
}

func (d *Department) Patients() []*Patient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Patient(nil), d.patients...)
}

func (d *Department) Staff() []*Staff {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Staff(nil), d.staff...)
}

func (d *Department) PatientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.patients)
}

// ActivePatients returns the patients not yet discharged, in admission order.
func (d *Department) ActivePatients() []*Patient {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Patient
	for _, p := range d.patients {
		if !p.Discharged {
			out = append(out, p)
		}
	}
	return out
}

// StaffByPosition matches position case-insensitively among active staff.
func (d *Department) StaffByPosition(position string) []*Staff {
	want := normalize(position)

	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Staff
	for _, s := range d.staff {
		if s.Active && normalize(s.Position) == want {
			out = append(out, s)
		}
	}
	return out
}

func (d *Department) findPatient(id string) *Patient {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (d *Department) findStaff(id string) *Staff {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.staff {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (d *Department) removePatient(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.patients {
		if p.ID == id {
			d.patients = append(d.patients[:i], d.patients[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Department) removeStaff(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.staff {
		if s.ID == id {
			d.staff = append(d.staff[:i], d.staff[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Department) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Code)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package hospital

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DepartmentSeed describes a department created when a Directory is built.
type DepartmentSeed struct {
	Name     string
	Capacity int
}

// DefaultDepartments is the starter set used unless overridden.
var DefaultDepartments = []DepartmentSeed{
	{Name: "Cardiology", Capacity: 40},
	{Name: "Pediatrics", Capacity: 35},
	{Name: "Emergency", Capacity: 60},
	{Name: "Surgery", Capacity: 30},
}

// Placement pairs a patient with the department that holds it.
type Placement struct {
	Patient    *Patient
	Department string
}

// Directory is the top-level registry of departments for one hospital.
type Directory struct {
	Name     string
	Location string

	mu          sync.RWMutex
	departments map[string]*Department
	order       []string

	ids   IDGenerator
	clock Clock
	seeds []DepartmentSeed
}

type Option func(*Directory)

func WithIDGenerator(g IDGenerator) Option {
	return func(d *Directory) { d.ids = g }
}

func WithClock(c Clock) Option {
	return func(d *Directory) { d.clock = c }
}

// WithDepartments replaces the starter set. Pass nothing to start empty.
func WithDepartments(seeds ...DepartmentSeed) Option {
	return func(d *Directory) { d.seeds = seeds }
}

func NewDirectory(name, location string, opts ...Option) (*Directory, error) {
	d := &Directory{
		Name:        strings.TrimSpace(name),
		Location:    strings.TrimSpace(location),
		departments: make(map[string]*Department),
		ids:         UUIDGenerator{},
		clock:       time.Now,
		seeds:       DefaultDepartments,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: hospital name is required", ErrValidation)
	}

	for _, seed := range d.seeds {
		if _, err := d.CreateDepartment(seed.Name, seed.Capacity); err != nil {
			return nil, fmt.Errorf("seed department %q: %w", seed.Name, err)
		}
	}
	return d, nil
}

func (d *Directory) IDs() IDGenerator { return d.ids }

func (d *Directory) Now() time.Time { return d.clock() }

func (d *Directory) Clock() Clock { return d.clock }

// AddDepartment inserts dept, refusing to overwrite an existing name.
func (d *Directory) AddDepartment(dept *Department) error {
	if dept == nil {
		return fmt.Errorf("%w: department is required", ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.departments[dept.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDepartmentExists, dept.Name)
	}
	d.departments[dept.Name] = dept
	d.order = append(d.order, dept.Name)
	return nil
}

func (d *Directory) CreateDepartment(name string, capacity int) (*Department, error) {
	dept, err := NewDepartment(name, capacity)
	if err != nil {
		return nil, err
	}
	if err := d.AddDepartment(dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// FindDepartment looks a department up by name, ignoring case. It returns
// nil when there is no match.
func (d *Directory) FindDepartment(name string) *Department {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name = strings.TrimSpace(name)
	if dept, ok := d.departments[name]; ok {
		return dept
	}
	want := strings.ToLower(name)
	for _, key := range d.order {
		if strings.ToLower(key) == want {
			return d.departments[key]
		}
	}
	return nil
}

// Departments returns every department in insertion order.
func (d *Directory) Departments() []*Department {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Department, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.departments[key])
	}
	return out
}

// NewPatient builds a patient with an identifier from the directory's generator.
func (d *Directory) NewPatient(name string, age int, medicalRecord string) (*Patient, error) {
	return NewPatient(d.ids.NewID(), name, age, medicalRecord, d.clock())
}

func (d *Directory) NewStaff(name string, age int, position, department string) (*Staff, error) {
	return NewStaff(d.ids.NewID(), name, age, position, department, d.clock())
}

func (d *Directory) department(name string) (*Department, error) {
	dept := d.FindDepartment(name)
	if dept == nil {
		return nil, fmt.Errorf("%w: %s", ErrDepartmentNotFound, name)
	}
	return dept, nil
}

// AdmitPatient places a new patient in the named department.
func (d *Directory) AdmitPatient(deptName string, p *Patient) error {
	dept, err := d.department(deptName)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: patient is required", ErrValidation)
	}
	if existing, _ := d.FindPatient(p.ID); existing != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyPlaced, p.ID)
	}
	return dept.Admit(p)
}

// AssignStaff moves s into the named department, dropping it from any
// department it was listed under before.
func (d *Directory) AssignStaff(deptName string, s *Staff) error {
	dept, err := d.department(deptName)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: staff member is required", ErrValidation)
	}
	for _, other := range d.Departments() {
		other.removeStaff(s.ID)
	}
	dept.AssignStaff(s)
	return nil
}

// FindPatient returns the patient with the given person id and its department.
func (d *Directory) FindPatient(id string) (*Patient, *Department) {
	for _, dept := range d.Departments() {
		if p := dept.findPatient(id); p != nil {
			return p, dept
		}
	}
	return nil, nil
}

func (d *Directory) FindStaff(id string) (*Staff, *Department) {
	for _, dept := range d.Departments() {
		if s := dept.findStaff(id); s != nil {
			return s, dept
		}
	}
	return nil, nil
}

// AllPatients lists every patient with its department, department by department.
func (d *Directory) AllPatients() []Placement {
	var out []Placement
	for _, dept := range d.Departments() {
		for _, p := range dept.Patients() {
			out = append(out, Placement{Patient: p, Department: dept.Name})
		}
	}
	return out
}

func (d *Directory) AllStaff() []*Staff {
	var out []*Staff
	for _, dept := range d.Departments() {
		out = append(out, dept.Staff()...)
	}
	return out
}

func (d *Directory) DischargePatient(id, notes string) (*Patient, error) {
	p, _ := d.FindPatient(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if err := p.Discharge(notes, d.clock()); err != nil {
		return p, err
	}
	return p, nil
}

// UpdatePatient edits a patient in place. Discharged patients can still be
// corrected.
func (d *Directory) UpdatePatient(id string, u PatientUpdate) (*Patient, error) {
	p, _ := d.FindPatient(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if err := p.Update(u); err != nil {
		return nil, err
	}
	return p, nil
}

// AppendPatientRecord adds a note to a patient's medical record.
func (d *Directory) AppendPatientRecord(id, note string) (*Patient, error) {
	p, _ := d.FindPatient(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("%w: note is required", ErrValidation)
	}
	p.AppendRecord(note)
	return p, nil
}

func (d *Directory) ToggleStaff(id string) (*Staff, error) {
	s, _ := d.FindStaff(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrStaffNotFound, id)
	}
	s.ToggleActive()
	return s, nil
}

// MovePatient relocates an admitted patient. The target's capacity is checked
// before the patient leaves its current department, so a failed move changes
// nothing. It returns the source and target departments.
func (d *Directory) MovePatient(id, toDept string) (*Department, *Department, error) {
	p, from := d.FindPatient(id)
	if p == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if p.Discharged {
		return nil, nil, fmt.Errorf("%w: %s cannot be moved", ErrAlreadyDischarged, p.PatientID)
	}
	to, err := d.department(toDept)
	if err != nil {
		return nil, nil, err
	}
	if to == from {
		return nil, nil, fmt.Errorf("%w: patient is already in %s", ErrValidation, to.Name)
	}
	if err := to.Admit(p); err != nil {
		return nil, nil, err
	}
	from.removePatient(p.ID)
	return from, to, nil
}

package hospital

import (
	"fmt"
	"strings"
	"time"
)

const UnassignedDepartment = "Unassigned"

// Staff members start active; the active flag can be flipped any number of times.
type Staff struct {
	Person
	StaffID    string
	Position   string
	Department string
	Active     bool
}

func NewStaff(id, name string, age int, position, department string, now time.Time) (*Staff, error) {
	person, err := newPerson(id, name, age, now)
	if err != nil {
		return nil, err
	}
	position = strings.TrimSpace(position)
	if position == "" {
		return nil, fmt.Errorf("%w: position is required", ErrValidation)
	}
	department = strings.TrimSpace(department)
	if department == "" {
		department = UnassignedDepartment
	}
	return &Staff{
		Person:     person,
		StaffID:    "STF-" + shortID(id),
		Position:   position,
		Department: department,
		Active:     true,
	}, nil
}

// ToggleActive flips the active flag and returns the new value.
func (s *Staff) ToggleActive() bool {
	s.Active = !s.Active
	return s.Active
}

func (s *Staff) TransferTo(department string) {
	department = strings.TrimSpace(department)
	if department == "" {
		department = UnassignedDepartment
	}
	s.Department = department
}

func (s *Staff) Info() string {
	status := "Inactive"
	if s.Active {
		status = "Active"
	}
	return fmt.Sprintf("Staff ID: %s\nName: %s\nPosition: %s\nDepartment: %s\nStatus: %s",
		s.StaffID, s.Name, s.Position, s.Department, status)
}

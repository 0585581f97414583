package hospital

import (
	"fmt"
	"strings"
	"time"
)

// Person holds the identity fields shared by patients and staff.
type Person struct {
	ID        string
	Name      string
	Age       int
	CreatedAt time.Time
}

func newPerson(id, name string, age int, now time.Time) (Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Person{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if age <= 0 {
		return Person{}, fmt.Errorf("%w: age must be a positive number", ErrValidation)
	}
	if id == "" {
		return Person{}, fmt.Errorf("%w: id is required", ErrValidation)
	}
	return Person{
		ID:        id,
		Name:      name,
		Age:       age,
		CreatedAt: now,
	}, nil
}

func (p Person) String() string {
	return fmt.Sprintf("ID: %s | Name: %s | Age: %d", p.ID, p.Name, p.Age)
}

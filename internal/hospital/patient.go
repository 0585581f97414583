package hospital

import (
	"fmt"
	"strings"
	"time"
)

const dischargeNotePrefix = "[Discharge Note]"

// Patient is admitted on construction. Discharge is one-way.
type Patient struct {
	Person
	PatientID     string
	MedicalRecord string
	AdmittedAt    time.Time
	Discharged    bool
	DischargedAt  *time.Time
}

func NewPatient(id, name string, age int, medicalRecord string, now time.Time) (*Patient, error) {
	person, err := newPerson(id, name, age, now)
	if err != nil {
		return nil, err
	}
	return &Patient{
		Person:        person,
		PatientID:     "PAT-" + shortID(id),
		MedicalRecord: strings.TrimSpace(medicalRecord),
		AdmittedAt:    now,
	}, nil
}

// PatientUpdate carries the editable patient fields. Nil fields are left as
// they are; MedicalRecord replaces the whole record.
type PatientUpdate struct {
	Name          *string
	Age           *int
	MedicalRecord *string
}

func (u PatientUpdate) Empty() bool {
	return u.Name == nil && u.Age == nil && u.MedicalRecord == nil
}

// Update validates every set field before changing any of them. Identifiers
// and admission state are not editable.
func (p *Patient) Update(u PatientUpdate) error {
	name, age := p.Name, p.Age
	if u.Name != nil {
		name = *u.Name
	}
	if u.Age != nil {
		age = *u.Age
	}
	person, err := newPerson(p.ID, name, age, p.CreatedAt)
	if err != nil {
		return err
	}
	p.Person = person
	if u.MedicalRecord != nil {
		p.MedicalRecord = strings.TrimSpace(*u.MedicalRecord)
	}
	return nil
}

// AppendRecord adds a line to the medical record.
func (p *Patient) AppendRecord(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if p.MedicalRecord == "" {
		p.MedicalRecord = note
		return
	}
	p.MedicalRecord += "\n" + note
}

// Discharge marks the patient discharged at now and annotates the record.
// A second call returns ErrAlreadyDischarged and changes nothing.
func (p *Patient) Discharge(notes string, now time.Time) error {
	if p.Discharged {
		return fmt.Errorf("%w: %s", ErrAlreadyDischarged, p.PatientID)
	}
	p.Discharged = true
	at := now
	p.DischargedAt = &at
	p.AppendRecord(strings.TrimSpace(dischargeNotePrefix + " " + notes))
	return nil
}

func (p *Patient) Status() string {
	if p.Discharged {
		return "Discharged"
	}
	return "Admitted"
}

// Record returns the printable medical record with admission status.
func (p *Patient) Record() string {
	return fmt.Sprintf("Patient ID: %s\nStatus: %s\nRecord: %s", p.PatientID, p.Status(), p.MedicalRecord)
}

package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	DepartmentCreated        = "DEPARTMENT_CREATED"
	PatientAdmitted          = "PATIENT_ADMITTED"
	PatientDischarged        = "PATIENT_DISCHARGED"
	PatientMoved             = "PATIENT_MOVED"
	PatientUpdated           = "PATIENT_UPDATED"
	PatientRecordAppended    = "PATIENT_RECORD_APPENDED"
	StaffAssigned            = "STAFF_ASSIGNED"
	StaffToggled             = "STAFF_STATUS_TOGGLED"
	AppointmentBooked        = "APPOINTMENT_BOOKED"
	AppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	AppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	AppointmentRemoved       = "APPOINTMENT_REMOVED"
	SnapshotRestored         = "SNAPSHOT_RESTORED"
)

// Event is a fact about the hospital state, keyed by the entity it concerns.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(_ context.Context, ev Event) error {
	l.logger.Debug().
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("aggregate_id", ev.AggregateID).
		Interface("payload", ev.Payload).
		Msg("domain event")
	return nil
}

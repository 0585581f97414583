package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS event_logs (
	id           BIGSERIAL PRIMARY KEY,
	event_id     TEXT        NOT NULL,
	event_type   TEXT        NOT NULL,
	aggregate_id TEXT        NOT NULL,
	payload      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PgEventLog appends events to the event_logs table.
type PgEventLog struct {
	pool *pgxpool.Pool
}

func NewPgEventLog(pool *pgxpool.Pool) *PgEventLog {
	return &PgEventLog{pool: pool}
}

func (r *PgEventLog) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create event log schema: %w", err)
	}
	return nil
}

func (r *PgEventLog) Publish(ctx context.Context, ev Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		payload = data
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.ID, ev.Type, ev.AggregateID, payload, nullableTime(ev.OccurredAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS hospital_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	hospital   TEXT        NOT NULL,
	version    INT         NOT NULL,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS hospital_snapshots_hospital_id_idx
	ON hospital_snapshots (hospital, id DESC);
`

// PgStore appends every saved snapshot as a row and loads the newest one for
// its hospital.
type PgStore struct {
	pool     *pgxpool.Pool
	hospital string
}

func NewPgStore(pool *pgxpool.Pool, hospital string) *PgStore {
	return &PgStore{pool: pool, hospital: hospital}
}

func (r *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

func (r *PgStore) Save(ctx context.Context, s Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO hospital_snapshots (hospital, version, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, r.hospital, s.Version, data, nullableTime(s.SavedAt))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *PgStore) Load(ctx context.Context) (Snapshot, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT payload
		FROM hospital_snapshots
		WHERE hospital = $1
		ORDER BY id DESC
		LIMIT 1
	`, r.hospital).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return Decode(data)
}

// Prune keeps the newest keep rows for the hospital and deletes the rest.
func (r *PgStore) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM hospital_snapshots
		WHERE hospital = $1
		  AND id NOT IN (
			SELECT id FROM hospital_snapshots
			WHERE hospital = $1
			ORDER BY id DESC
			LIMIT $2
		  )
	`, r.hospital, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

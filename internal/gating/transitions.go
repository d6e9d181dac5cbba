package gating

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/saaga0h/motion-gate/internal/motion"
	"github.com/saaga0h/motion-gate/pkg/postgres"
)

// Transition is a persisted moving/still change of a device
type Transition struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"device_id"`
	Moving      bool      `json:"moving"`
	OccurredAt  time.Time `json:"occurred_at"`
	MovingForMs int64     `json:"moving_for_ms"`
	StillForMs  int64     `json:"still_for_ms"`
	RMSAccel    float64   `json:"rms_accel"`
}

// FixRecord is a persisted GPS fix
type FixRecord struct {
	ID        uuid.UUID `json:"id"`
	DeviceID  string    `json:"device_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AccuracyM float64   `json:"accuracy_m"`
	FixedAt   time.Time `json:"fixed_at"`
}

const schemaTransitions = `
	CREATE TABLE IF NOT EXISTS motion_transitions (
		id UUID PRIMARY KEY,
		device_id TEXT NOT NULL,
		moving BOOLEAN NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		moving_for_ms BIGINT NOT NULL,
		still_for_ms BIGINT NOT NULL,
		rms_accel DOUBLE PRECISION NOT NULL
	)
`

const schemaTransitionsIndex = `
	CREATE INDEX IF NOT EXISTS motion_transitions_device_time_idx
		ON motion_transitions (device_id, occurred_at DESC)
`

const schemaFixes = `
	CREATE TABLE IF NOT EXISTS gps_fixes (
		id UUID PRIMARY KEY,
		device_id TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		accuracy_m DOUBLE PRECISION NOT NULL,
		fixed_at TIMESTAMPTZ NOT NULL
	)
`

// TransitionStore persists transitions and fixes in Postgres
type TransitionStore struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewTransitionStore creates a new transition store
func NewTransitionStore(db postgres.Client, logger *slog.Logger) *TransitionStore {
	return &TransitionStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the tables if they do not exist
func (s *TransitionStore) EnsureSchema(ctx context.Context) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{schemaTransitions, schemaTransitionsIndex, schemaFixes} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	s.logger.Info("Postgres schema ready")
	return nil
}

// RecordTransition stores the state that completed a transition
func (s *TransitionStore) RecordTransition(ctx context.Context, deviceID string, state motion.State) (*Transition, error) {
	t := &Transition{
		ID:          uuid.New(),
		DeviceID:    deviceID,
		Moving:      state.IsMoving,
		OccurredAt:  time.UnixMilli(state.Timestamp).UTC(),
		MovingForMs: state.MovingForMs,
		StillForMs:  state.StillForMs,
		RMSAccel:    state.RMSAccel,
	}

	query := `
		INSERT INTO motion_transitions (
			id, device_id, moving, occurred_at, moving_for_ms, still_for_ms, rms_accel
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		t.ID,
		t.DeviceID,
		t.Moving,
		t.OccurredAt,
		t.MovingForMs,
		t.StillForMs,
		t.RMSAccel,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transition: %w", err)
	}

	return t, nil
}

// RecordFix stores a GPS fix
func (s *TransitionStore) RecordFix(ctx context.Context, fix *Fix) (*FixRecord, error) {
	rec := &FixRecord{
		ID:        uuid.New(),
		DeviceID:  fix.DeviceID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		AccuracyM: fix.AccuracyM,
		FixedAt:   time.UnixMilli(fix.Timestamp).UTC(),
	}

	query := `
		INSERT INTO gps_fixes (id, device_id, latitude, longitude, accuracy_m, fixed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.DeviceID,
		rec.Latitude,
		rec.Longitude,
		rec.AccuracyM,
		rec.FixedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert fix: %w", err)
	}

	return rec, nil
}

// RecentTransitions returns the newest transitions of the given devices,
// newest first
func (s *TransitionStore) RecentTransitions(ctx context.Context, deviceIDs []string, limit int) ([]Transition, error) {
	query := `
		SELECT id, device_id, moving, occurred_at, moving_for_ms, still_for_ms, rms_accel
		FROM motion_transitions
		WHERE device_id = ANY($1)
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, pq.Array(deviceIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(
			&t.ID,
			&t.DeviceID,
			&t.Moving,
			&t.OccurredAt,
			&t.MovingForMs,
			&t.StillForMs,
			&t.RMSAccel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return transitions, nil
}

package gating

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/motion-gate/internal/motion"
	"github.com/saaga0h/motion-gate/pkg/config"
	"github.com/saaga0h/motion-gate/pkg/postgres"
)

func setupMockStore(t *testing.T) (*TransitionStore, sqlmock.Sqlmock, postgres.Client) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := postgres.NewClientWithDB(db, config.NewConfig(), newTestLogger())
	return NewTransitionStore(client, newTestLogger()), mock, client
}

func TestEnsureSchema(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS motion_transitions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS motion_transitions_device_time_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS gps_fixes`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaRollsBack(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS motion_transitions`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := store.EnsureSchema(context.Background())
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransition(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	state := motion.State{IsMoving: true, MovingForMs: 3050, RMSAccel: 0.95, Timestamp: 1700000000000}
	mock.ExpectExec(`INSERT INTO motion_transitions`).
		WithArgs(sqlmock.AnyArg(), "phone-1", true, time.UnixMilli(1700000000000).UTC(), int64(3050), int64(0), 0.95).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := store.RecordTransition(context.Background(), "phone-1", state)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.True(t, rec.Moving)
	assert.Equal(t, int64(3050), rec.MovingForMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransitionError(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO motion_transitions`).WillReturnError(errors.New("connection reset"))

	_, err := store.RecordTransition(context.Background(), "phone-1", motion.State{})
	assert.ErrorContains(t, err, "failed to insert transition")
}

func TestRecordFix(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	fix := &Fix{DeviceID: "phone-1", Latitude: 60.17, Longitude: 24.94, AccuracyM: 5, Timestamp: 1700000001000}
	mock.ExpectExec(`INSERT INTO gps_fixes`).
		WithArgs(sqlmock.AnyArg(), "phone-1", 60.17, 24.94, 5.0, time.UnixMilli(1700000001000).UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := store.RecordFix(context.Background(), fix)
	require.NoError(t, err)
	assert.Equal(t, "phone-1", rec.DeviceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentTransitions(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	id1, id2 := uuid.New(), uuid.New()
	t1 := time.UnixMilli(1700000005000).UTC()
	t2 := time.UnixMilli(1700000001000).UTC()
	rows := sqlmock.NewRows([]string{"id", "device_id", "moving", "occurred_at", "moving_for_ms", "still_for_ms", "rms_accel"}).
		AddRow(id1.String(), "phone-1", false, t1, int64(0), int64(1550), 0.1).
		AddRow(id2.String(), "phone-1", true, t2, int64(3050), int64(0), 0.9)

	mock.ExpectQuery(`SELECT id, device_id, moving, occurred_at`).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	transitions, err := store.RecentTransitions(context.Background(), []string{"phone-1"}, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, id1, transitions[0].ID)
	assert.False(t, transitions[0].Moving)
	assert.Equal(t, int64(1550), transitions[0].StillForMs)
	assert.Equal(t, t2, transitions[1].OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentTransitionsQueryError(t *testing.T) {
	store, mock, _ := setupMockStore(t)

	mock.ExpectQuery(`SELECT id, device_id`).WillReturnError(errors.New("timeout"))

	_, err := store.RecentTransitions(context.Background(), []string{"phone-1"}, 10)
	assert.ErrorContains(t, err, "failed to query transitions")
}

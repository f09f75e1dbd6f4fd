package execution

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSink_Write_InsertsOnConflictDoNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := &PostgresSink{db: db}

	rec := Record{
		TaskID:    "task-1",
		RequestID: "r1",
		Algorithm: "double",
		Version:   "v1",
		Status:    StatusSuccess,
		WorkerPID: 4242,
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	}

	mock.ExpectExec("INSERT INTO execution_audit_log").
		WithArgs(rec.TaskID, rec.RequestID, rec.Algorithm, rec.Version, rec.Status,
			rec.WorkerPID, rec.ErrorKind, rec.ErrorDetail, rec.StartedAt, rec.EndedAt, []byte(nil)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sink.Write(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Write_PropagatesDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := &PostgresSink{db: db}

	mock.ExpectExec("INSERT INTO execution_audit_log").WillReturnError(assert.AnError)

	err = sink.Write(context.Background(), Record{TaskID: "task-1"})
	assert.Error(t, err)
}

package postgres

import (
	"context"
	"testing"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdempotencyRecord() *domain.IdempotencyRecord {
	return &domain.IdempotencyRecord{
		Operation:  "deposit",
		ActorID:    uuid.New(),
		Key:        "idem-123",
		TransferID: uuid.New(),
		Response:   []byte(`{"id":"x"}`),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func idempotencyCols() []string {
	return []string{"operation", "actor_id", "key", "transfer_id", "response", "created_at"}
}

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := newTestIdempotencyRecord()

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs(rec.Operation, rec.ActorID, rec.Key, rec.TransferID, rec.Response, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Create_KeyAlreadyUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := newTestIdempotencyRecord()

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs(rec.Operation, rec.ActorID, rec.Key, rec.TransferID, rec.Response, rec.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idempotency_records_pkey"})

	err = repo.Create(context.Background(), rec)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := newTestIdempotencyRecord()

	mock.ExpectQuery("SELECT .+ FROM idempotency_records").
		WithArgs(rec.Operation, rec.ActorID, rec.Key).
		WillReturnRows(pgxmock.NewRows(idempotencyCols()).AddRow(
			rec.Operation, rec.ActorID, rec.Key, rec.TransferID, rec.Response, rec.CreatedAt))

	got, err := repo.Get(context.Background(), rec.Operation, rec.ActorID, rec.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.TransferID, got.TransferID)
	assert.Equal(t, rec.Response, got.Response)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	actor := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM idempotency_records").
		WithArgs("withdraw", actor, "missing").
		WillReturnRows(pgxmock.NewRows(idempotencyCols()))

	got, err := repo.Get(context.Background(), "withdraw", actor, "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

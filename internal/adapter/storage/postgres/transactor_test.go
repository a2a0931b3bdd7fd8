package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		_, ok := txFrom(ctx)
		assert.True(t, ok, "scope must carry the transaction")
		_, err := conn(ctx, mock).Exec(ctx, "UPDATE wallets SET active = false")
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())
	boom := errors.New("insufficient funds")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_NestedScopeJoinsOuter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transfers").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE wallets").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		outer, _ := txFrom(ctx)
		if _, err := conn(ctx, mock).Exec(ctx, "INSERT INTO transfers DEFAULT VALUES"); err != nil {
			return err
		}
		return tr.WithinTx(ctx, func(ctx context.Context) error {
			inner, _ := txFrom(ctx)
			assert.Equal(t, outer, inner)
			_, err := conn(ctx, mock).Exec(ctx, "UPDATE wallets SET active = true")
			return err
		})
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RetriesOnceOnSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	attempts := 0
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		attempts++
		_, err := conn(ctx, mock).Exec(ctx, "UPDATE wallets SET solde = 0")
		return err
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_GivesUpAfterSecondDeadlock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE wallets").WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := conn(ctx, mock).Exec(ctx, "UPDATE wallets SET solde = 0")
		return err
	})
	require.Error(t, err)
	assert.True(t, isRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransactor(mock, zerolog.Nop())
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}

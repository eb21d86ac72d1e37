package tx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRunCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profiles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := Run(context.Background(), db, func(ctx context.Context, t *sql.Tx) error {
		_, err := t.ExecContext(ctx, "UPDATE profiles SET display_name = $1", "Rosa")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("phone already taken")
	err := Run(context.Background(), db, func(context.Context, *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedRunJoinsOuter(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := Run(context.Background(), db, func(ctx context.Context, outer *sql.Tx) error {
		got, ok := From(ctx)
		require.True(t, ok)
		assert.Same(t, outer, got)
		return Run(ctx, db, func(_ context.Context, inner *sql.Tx) error {
			assert.Same(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = Run(context.Background(), db, func(context.Context, *sql.Tx) error { panic("store bug") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFromWithoutTransaction(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}

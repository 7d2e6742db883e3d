package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	sql  string
	args []any
	err  error
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestAttemptRepository_RecordAttempt(t *testing.T) {
	db := &fakeDB{}
	repo := NewAttemptRepository(db)
	a := &session.Attempt{
		ID:        uuid.New(),
		SessionID: "s-1",
		Code:      "10",
		Status:    sheet.CouponAccepted,
		Reason:    "none",
		Total:     decimal.RequireFromString("21.19"),
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.RecordAttempt(context.Background(), a))

	assert.Contains(t, db.sql, "INSERT INTO coupon_attempts")
	require.Len(t, db.args, 8)
	assert.Equal(t, a.ID, db.args[0])
	assert.Equal(t, "accepted", db.args[3])
	assert.Equal(t, "21.19", db.args[5])
}

func TestAttemptRepository_RecordAttemptError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	repo := NewAttemptRepository(db)

	err := repo.RecordAttempt(context.Background(), &session.Attempt{ID: uuid.New()})

	assert.ErrorContains(t, err, "insert coupon attempt")
	assert.ErrorIs(t, err, db.err)
}

func TestAttemptRepository_ListBySessionError(t *testing.T) {
	repo := NewAttemptRepository(&fakeDB{})

	_, err := repo.ListBySession(context.Background(), "s-1", 10)

	assert.ErrorContains(t, err, "list coupon attempts")
}

var _ session.AttemptRecorder = (*AttemptRepository)(nil)

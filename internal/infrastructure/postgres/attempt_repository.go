package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AttemptRepository stores the coupon attempt audit trail.
type AttemptRepository struct {
	db DBTX
}

func NewAttemptRepository(db DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) RecordAttempt(ctx context.Context, a *session.Attempt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO coupon_attempts (id, session_id, coupon_code, status, reason, total, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.SessionID, a.Code, string(a.Status), a.Reason, a.Total.String(), a.Currency, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert coupon attempt: %w", err)
	}
	return nil
}

// ListBySession returns a session's attempts, oldest first.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*session.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, coupon_code, status, reason, total::text, currency, created_at
		 FROM coupon_attempts WHERE session_id = $1
		 ORDER BY created_at ASC LIMIT $2`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list coupon attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*session.Attempt, error) {
		var (
			a      session.Attempt
			status string
			total  string
		)
		if err := row.Scan(&a.ID, &a.SessionID, &a.Code, &status, &a.Reason, &total, &a.Currency, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = sheet.CouponUpdateStatus(status)
		amount, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total %q: %w", total, err)
		}
		a.Total = amount
		return &a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan coupon attempts: %w", err)
	}
	return attempts, nil
}

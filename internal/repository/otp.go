package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ink-panels/internal/model"
)

// CreateOTPIfAllowed сохраняет новый код, если для email не выдавалось кодов позже notBefore.
// Проверка и вставка выполняются под транзакционной advisory-блокировкой по email.
func (r *PostgresRepository) CreateOTPIfAllowed(ctx context.Context, rec *model.OTPVerification, notBefore time.Time) (bool, error) {
	created := false

	err := r.withRetry(ctx, func() error {
		created = false
		return inTx(ctx, r.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, rec.Email); err != nil {
				return fmt.Errorf("lock otp email: %w", err)
			}

			var recent bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM otp_verifications WHERE email = $1 AND created_at > $2)`,
				rec.Email, notBefore,
			).Scan(&recent); err != nil {
				return fmt.Errorf("check recent otp: %w", err)
			}
			if recent {
				return nil
			}

			if err := tx.QueryRow(ctx,
				`INSERT INTO otp_verifications (email, purpose, code_hash, created_at, expires_at)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				rec.Email, rec.Purpose, rec.CodeHash, rec.CreatedAt, rec.ExpiresAt,
			).Scan(&rec.ID); err != nil {
				return fmt.Errorf("insert otp: %w", err)
			}
			created = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// DeleteOTP удаляет запись кода.
func (r *PostgresRepository) DeleteOTP(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM otp_verifications WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// RecentUnusedOTPs возвращает до limit последних неиспользованных кодов для email, новые первыми.
func (r *PostgresRepository) RecentUnusedOTPs(ctx context.Context, email string, limit int) ([]model.OTPVerification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, purpose, code_hash, attempts, used, created_at, expires_at
		 FROM otp_verifications
		 WHERE email = $1 AND used = FALSE
		 ORDER BY created_at DESC
		 LIMIT $2`,
		email, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select otp: %w", err)
	}
	defer rows.Close()

	var res []model.OTPVerification
	for rows.Next() {
		var v model.OTPVerification
		if err := rows.Scan(&v.ID, &v.Email, &v.Purpose, &v.CodeHash, &v.Attempts, &v.Used, &v.CreatedAt, &v.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan otp: %w", err)
		}
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// IncrementOTPAttempts увеличивает счётчик неудачных попыток.
func (r *PostgresRepository) IncrementOTPAttempts(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = $1`,
		id,
	); err != nil {
		return fmt.Errorf("increment otp attempts: %w", err)
	}
	return nil
}

// MarkOTPUsed атомарно отмечает код использованным. Возвращает false, если код уже был использован.
func (r *PostgresRepository) MarkOTPUsed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE otp_verifications SET used = TRUE WHERE id = $1 AND used = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark otp used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpiredOTPs удаляет коды, истёкшие раньше before, и возвращает их количество.
func (r *PostgresRepository) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM otp_verifications WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired otp: %w", err)
	}
	return tag.RowsAffected(), nil
}

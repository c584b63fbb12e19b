package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// RecordLoginAttempt сохраняет попытку входа.
func (s *Storage) RecordLoginAttempt(ctx context.Context, a models.LoginAttempt) error {
	const op = "storage.RecordLoginAttempt"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if a.AttemptTime.IsZero() {
		a.AttemptTime = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO login_attempts (ip_address, username, success, login_type, attempt_time)
		VALUES ($1, $2, $3, $4, $5)`, a.IPAddress, a.Username, a.Success, a.LoginType, a.AttemptTime)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeLoginAttempts удаляет попытки старше before.
func (s *Storage) PurgeLoginAttempts(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.PurgeLoginAttempts"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountFailedAttempts считает неуспешные попытки с адреса ip для типа входа с момента since.
func (s *Storage) CountFailedAttempts(ctx context.Context, ip, loginType string, since time.Time) (int, error) {
	const op = "storage.CountFailedAttempts"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND login_type = $2 AND success = FALSE AND attempt_time >= $3`,
		ip, loginType, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

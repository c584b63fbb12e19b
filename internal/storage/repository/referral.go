package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// GetReferralCode возвращает код реферера из строки-носителя кода.
func (s *Storage) GetReferralCode(ctx context.Context, referrer string) (string, error) {
	const op = "storage.GetReferralCode"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var code string
	err := s.DB.QueryRowContext(ctx, `SELECT referral_code FROM referrals
		WHERE referrer_username = $1 AND referred_username IS NULL
		ORDER BY id LIMIT 1`, referrer).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

// CreateReferralCode сохраняет строку-носитель кода. Уже существующий код не является ошибкой.
func (s *Storage) CreateReferralCode(ctx context.Context, referrer, code string, bonusDays int) error {
	const op = "storage.CreateReferralCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO referrals (referrer_username, referral_code, bonus_days, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (referral_code) WHERE referred_username IS NULL DO NOTHING`,
		referrer, code, bonusDays, models.ReferralStatusPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetReferrerByCode находит владельца кода.
func (s *Storage) GetReferrerByCode(ctx context.Context, code string) (string, error) {
	const op = "storage.GetReferrerByCode"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var referrer string
	err := s.DB.QueryRowContext(ctx, `SELECT referrer_username FROM referrals
		WHERE referral_code = $1 AND referred_username IS NULL`, code).Scan(&referrer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return referrer, nil
}

// RegisterReferred добавляет приглашённого пользователя в статусе pending.
// Пользователь может быть приглашён только один раз: повтор даёт models.ErrConflict.
func (s *Storage) RegisterReferred(ctx context.Context, referrer, code, referred string, bonusDays int) error {
	const op = "storage.RegisterReferred"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO referrals
		(referrer_username, referral_code, referred_username, bonus_days, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (referred_username) WHERE referred_username IS NOT NULL DO NOTHING`,
		referrer, code, referred, bonusDays, models.ReferralStatusPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConflict)
	}
	return nil
}

// ActivateReferral активирует пару реферер/приглашённый ровно один раз.
// Если pending-строки нет, вставляется сразу активированная. Возвращает true
// только для вызова, который действительно изменил состояние.
func (s *Storage) ActivateReferral(ctx context.Context, referrer, code, referred string, bonusDays int) (bool, error) {
	const op = "storage.ActivateReferral"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE referrals SET status = $1, activated_at = NOW()
		WHERE referrer_username = $2 AND referred_username = $3 AND status = $4`,
		models.ReferralStatusActivated, referrer, referred, models.ReferralStatusPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return true, nil
	}

	res, err = s.DB.ExecContext(ctx, `INSERT INTO referrals
		(referrer_username, referral_code, referred_username, bonus_days, status, activated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (referred_username) WHERE referred_username IS NOT NULL DO NOTHING`,
		referrer, code, referred, bonusDays, models.ReferralStatusActivated)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// GetReferralByReferred возвращает строку журнала приглашённого пользователя.
func (s *Storage) GetReferralByReferred(ctx context.Context, referred string) (*models.Referral, error) {
	const op = "storage.GetReferralByReferred"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		r            models.Referral
		referredName sql.NullString
		activated    sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id, referrer_username, referral_code, referred_username,
			bonus_days, status, created_at, activated_at
		FROM referrals WHERE referred_username = $1`, referred).
		Scan(&r.ID, &r.ReferrerUsername, &r.ReferralCode, &referredName, &r.BonusDays, &r.Status, &r.CreatedAt, &activated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if referredName.Valid {
		r.ReferredUsername = &referredName.String
	}
	if activated.Valid {
		r.ActivatedAt = &activated.Time
	}
	return &r, nil
}

// ReferralStats считает приглашённых реферера. Строка-носитель кода не учитывается.
func (s *Storage) ReferralStats(ctx context.Context, referrer string) (models.ReferralStats, error) {
	const op = "storage.ReferralStats"
	select {
	case <-ctx.Done():
		return models.ReferralStats{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var stats models.ReferralStats
	err := s.DB.QueryRowContext(ctx, `SELECT
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COALESCE(SUM(bonus_days) FILTER (WHERE status = $2), 0)
		FROM referrals
		WHERE referrer_username = $1 AND referred_username IS NOT NULL`,
		referrer, models.ReferralStatusActivated, models.ReferralStatusPending).
		Scan(&stats.Activated, &stats.Pending, &stats.TotalBonusDays)
	if err != nil {
		return models.ReferralStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

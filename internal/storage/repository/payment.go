package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

const paymentColumns = `id, payment_id, username, email, amount::text, currency, status, plan_id,
	plan_name, plan_days, source, referral_code, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	var planID sql.NullInt64
	if err := row.Scan(&p.ID, &p.PaymentID, &p.Username, &p.Email, &p.Amount, &p.Currency, &p.Status,
		&planID, &p.PlanName, &p.PlanDays, &p.Source, &p.ReferralCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	return &p, nil
}

// CreatePayment сохраняет платёж. Повтор payment_id даёт models.ErrConflict.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	if p.Source == "" {
		p.Source = models.PaymentSourceYooKassa
	}
	query := `INSERT INTO payments (payment_id, username, email, amount, currency, status, plan_id,
				plan_name, plan_days, source, referral_code)
			  VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (payment_id) DO NOTHING
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query, p.PaymentID, p.Username, p.Email, p.Amount, p.Currency,
		p.Status, p.PlanID, p.PlanName, p.PlanDays, p.Source, p.ReferralCode).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrConflict)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetPayment возвращает платёж по идентификатору платёжной системы.
func (s *Storage) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// MarkPaymentSucceeded переводит платёж из pending в succeeded.
// Возвращает false, если платёж уже не в статусе pending: повторное
// уведомление не должно запускать выдачу доступа второй раз.
func (s *Storage) MarkPaymentSucceeded(ctx context.Context, paymentID string) (bool, error) {
	const op = "storage.MarkPaymentSucceeded"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE payments SET status = $1, updated_at = NOW()
		WHERE payment_id = $2 AND status = $3`,
		models.PaymentStatusSucceeded, paymentID, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ListPayments возвращает платежи по фильтру, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		conds []string
		args  []any
	)
	if filter.Username != "" {
		args = append(args, filter.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeletePaymentsByUsername удаляет историю платежей пользователя.
func (s *Storage) DeletePaymentsByUsername(ctx context.Context, username string) (int64, error) {
	const op = "storage.DeletePaymentsByUsername"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM payments WHERE username = $1`, username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

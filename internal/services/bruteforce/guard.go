// Package bruteforce ограничивает число неудачных попыток входа с одного адреса.
package bruteforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/metrics"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Repository хранилище попыток входа.
type Repository interface {
	RecordLoginAttempt(ctx context.Context, a models.LoginAttempt) error
	PurgeLoginAttempts(ctx context.Context, before time.Time) (int64, error)
	CountFailedAttempts(ctx context.Context, ip, loginType string, since time.Time) (int, error)
}

// Settings параметры защиты.
type Settings struct {
	Window    time.Duration
	Threshold int
	Retention time.Duration
}

// Guard защита от перебора паролей. Счётчик ведётся по паре (ip, тип входа).
type Guard struct {
	log      *slog.Logger
	repo     Repository
	settings Settings
	now      func() time.Time
}

// New создаёт Guard. Нулевые параметры заменяются значениями по умолчанию:
// окно 15 минут, порог 3, хранение 24 часа.
func New(log *slog.Logger, repo Repository, settings Settings) *Guard {
	if settings.Window <= 0 {
		settings.Window = 15 * time.Minute
	}
	if settings.Threshold <= 0 {
		settings.Threshold = 3
	}
	if settings.Retention <= 0 {
		settings.Retention = 24 * time.Hour
	}
	return &Guard{log: log, repo: repo, settings: settings, now: time.Now}
}

// Check удаляет устаревшие записи и возвращает models.ErrRateLimited, если за
// последнее окно с адреса ip было не меньше Threshold неудачных попыток.
func (g *Guard) Check(ctx context.Context, ip, loginType string) error {
	const op = "bruteforce.Check"
	now := g.now()

	if _, err := g.repo.PurgeLoginAttempts(ctx, now.Add(-g.settings.Retention)); err != nil {
		g.log.Warn("failed to purge login attempts", slog.String("op", op), sl.Err(err))
	}
	failed, err := g.repo.CountFailedAttempts(ctx, ip, loginType, now.Add(-g.settings.Window))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if failed >= g.settings.Threshold {
		metrics.LoginBlocked.WithLabelValues(loginType).Inc()
		g.log.Warn("login blocked",
			slog.String("op", op),
			slog.String("ip", ip),
			slog.String("login_type", loginType),
			slog.Int("failed", failed),
		)
		return fmt.Errorf("%s: %w", op, models.ErrRateLimited)
	}
	return nil
}

// Record сохраняет результат попытки входа.
func (g *Guard) Record(ctx context.Context, a models.LoginAttempt) error {
	const op = "bruteforce.Record"
	if a.AttemptTime.IsZero() {
		a.AttemptTime = g.now()
	}
	if err := g.repo.RecordLoginAttempt(ctx, a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Package referral ведёт реферальный журнал: коды рефереров, приглашённых
// пользователей и однократное начисление бонусных дней обеим сторонам.
package referral

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/metrics"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// DefaultBonusDays бонус каждой стороне за активированное приглашение.
const DefaultBonusDays = 7

// Repository хранилище реферального журнала.
type Repository interface {
	GetReferralCode(ctx context.Context, referrer string) (string, error)
	CreateReferralCode(ctx context.Context, referrer, code string, bonusDays int) error
	GetReferrerByCode(ctx context.Context, code string) (string, error)
	RegisterReferred(ctx context.Context, referrer, code, referred string, bonusDays int) error
	ActivateReferral(ctx context.Context, referrer, code, referred string, bonusDays int) (bool, error)
	GetReferralByReferred(ctx context.Context, referred string) (*models.Referral, error)
	ReferralStats(ctx context.Context, referrer string) (models.ReferralStats, error)
}

// Extender продлевает доступ пользователя на заданное число дней.
type Extender interface {
	Extend(ctx context.Context, username string, days int) (time.Time, error)
}

// Service реферальный журнал.
type Service struct {
	log       *slog.Logger
	repo      Repository
	extender  Extender
	bonusDays int
}

// New создаёт Service. bonusDays <= 0 заменяется на DefaultBonusDays.
func New(log *slog.Logger, repo Repository, extender Extender, bonusDays int) *Service {
	if bonusDays <= 0 {
		bonusDays = DefaultBonusDays
	}
	return &Service{
		log:       log,
		repo:      repo,
		extender:  extender,
		bonusDays: bonusDays,
	}
}

// maxCodeAttempts сколько вариантов кода перебирается при коллизии.
const maxCodeAttempts = 5

// Code детерминированный код реферера: первые 4 байта SHA-256 от username в hex верхнего регистра.
func Code(referrer string) string {
	return codeVariant(referrer, 0)
}

// codeVariant n-й вариант кода. Нулевой совпадает с Code, остальные
// считаются от "username:n" и нужны, когда код уже занят другим реферером.
func codeVariant(referrer string, n int) string {
	src := referrer
	if n > 0 {
		src = referrer + ":" + strconv.Itoa(n)
	}
	sum := sha256.Sum256([]byte(src))
	return strings.ToUpper(hex.EncodeToString(sum[:4]))
}

// GetOrCreateCode возвращает код реферера, создавая строку-носитель при первом обращении.
// Возвращается код, прочитанный после вставки: при гонке это код победителя,
// при коллизии с чужим кодом пробуется следующий вариант.
func (s *Service) GetOrCreateCode(ctx context.Context, referrer string) (string, error) {
	const op = "referral.GetOrCreateCode"
	if referrer == "" {
		return "", fmt.Errorf("%s: username is required: %w", op, models.ErrValidation)
	}

	code, err := s.repo.GetReferralCode(ctx, referrer)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	for n := 0; n < maxCodeAttempts; n++ {
		candidate := codeVariant(referrer, n)
		if err = s.repo.CreateReferralCode(ctx, referrer, candidate, s.bonusDays); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		code, err = s.repo.GetReferralCode(ctx, referrer)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn("referral code collision", slog.String("op", op), slog.String("code", candidate), slog.Int("attempt", n))
	}
	return "", fmt.Errorf("%s: no free code for %s: %w", op, referrer, models.ErrConflict)
}

// codeOf код реферера из журнала, для рефереров без строки-носителя Code.
func (s *Service) codeOf(ctx context.Context, referrer string) (string, error) {
	code, err := s.repo.GetReferralCode(ctx, referrer)
	switch {
	case err == nil:
		return code, nil
	case errors.Is(err, models.ErrNotFound):
		return Code(referrer), nil
	default:
		return "", err
	}
}

// RegisterReferred привязывает приглашённого пользователя к владельцу кода.
// Неизвестный код даёт models.ErrNotFound, повторная привязка models.ErrConflict.
func (s *Service) RegisterReferred(ctx context.Context, code, referred string) error {
	const op = "referral.RegisterReferred"
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || referred == "" {
		return fmt.Errorf("%s: code and username are required: %w", op, models.ErrValidation)
	}

	referrer, err := s.repo.GetReferrerByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if referrer == referred {
		return fmt.Errorf("%s: self referral: %w", op, models.ErrValidation)
	}
	if err = s.repo.RegisterReferred(ctx, referrer, code, referred, s.bonusDays); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("referral registered", slog.String("op", op), slog.String("referrer", referrer), slog.String("referred", referred))
	return nil
}

// Activate активирует пару и при первой активации продлевает доступ обеим
// сторонам на бонусные дни. Продления выполняются независимо: ошибка одного
// не отменяет другое и не откатывает активацию. credited=true означает,
// что этот вызов начислил бонус; err в этом случае содержит ошибки продлений.
func (s *Service) Activate(ctx context.Context, referrer, referred string) (credited bool, err error) {
	const op = "referral.Activate"
	if referrer == "" || referred == "" {
		return false, fmt.Errorf("%s: referrer and referred are required: %w", op, models.ErrValidation)
	}
	if referrer == referred {
		return false, fmt.Errorf("%s: self referral: %w", op, models.ErrValidation)
	}

	code, err := s.codeOf(ctx, referrer)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	credited, err = s.repo.ActivateReferral(ctx, referrer, code, referred, s.bonusDays)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !credited {
		s.log.Debug("referral already activated", slog.String("op", op), slog.String("referred", referred))
		return false, nil
	}
	metrics.ReferralActivations.Inc()

	var errs []error
	for _, username := range []string{referrer, referred} {
		if _, extErr := s.extender.Extend(ctx, username, s.bonusDays); extErr != nil {
			s.log.Error("referral bonus extension failed",
				slog.String("op", op),
				slog.String("username", username),
				sl.Err(extErr),
			)
			errs = append(errs, fmt.Errorf("extend %s: %w", username, extErr))
		}
	}
	if len(errs) > 0 {
		return true, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	s.log.Info("referral activated", slog.String("op", op), slog.String("referrer", referrer), slog.String("referred", referred))
	return true, nil
}

// ActivateForPayment активирует приглашение после первой оплаты пользователя.
// Реферер берётся из кода, переданного с платежом, либо из pending-записи журнала.
// Отсутствие реферера не является ошибкой.
func (s *Service) ActivateForPayment(ctx context.Context, referred, code string) (bool, error) {
	const op = "referral.ActivateForPayment"

	var referrer string
	if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
		owner, err := s.repo.GetReferrerByCode(ctx, code)
		switch {
		case err == nil:
			referrer = owner
		case errors.Is(err, models.ErrNotFound):
			s.log.Warn("unknown referral code on payment", slog.String("op", op), slog.String("code", code))
		default:
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	if referrer == "" {
		r, err := s.repo.GetReferralByReferred(ctx, referred)
		switch {
		case errors.Is(err, models.ErrNotFound):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("%s: %w", op, err)
		case r.Status != models.ReferralStatusPending:
			return false, nil
		}
		referrer = r.ReferrerUsername
	}
	if referrer == referred {
		return false, nil
	}
	return s.Activate(ctx, referrer, referred)
}

// GetStats возвращает статистику приглашений реферера.
func (s *Service) GetStats(ctx context.Context, referrer string) (models.ReferralStats, error) {
	const op = "referral.GetStats"
	if referrer == "" {
		return models.ReferralStats{}, fmt.Errorf("%s: username is required: %w", op, models.ErrValidation)
	}
	stats, err := s.repo.ReferralStats(ctx, referrer)
	if err != nil {
		return models.ReferralStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

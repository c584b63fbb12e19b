// Package auth отвечает за вход администратора и серверные сессии.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/password"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

const (
	sessionPrefix = "admin_session:"
	adminSubject  = "admin"
)

// Guard защита от перебора.
type Guard interface {
	Check(ctx context.Context, ip, loginType string) error
	Record(ctx context.Context, a models.LoginAttempt) error
}

// SessionStore серверное хранилище идентификаторов сессий.
type SessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Credentials способы проверки пароля администратора. Если задан bcrypt-хеш,
// статический пароль для входа не используется.
type Credentials struct {
	PasswordHash string
	Password     string
}

// Service вход, проверка и завершение сессий администратора.
type Service struct {
	log      *slog.Logger
	guard    Guard
	sessions SessionStore
	jwtMaker jwt.Maker
	creds    Credentials
	now      func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, guard Guard, sessions SessionStore, jwtMaker jwt.Maker, creds Credentials) *Service {
	return &Service{
		log:      log,
		guard:    guard,
		sessions: sessions,
		jwtMaker: jwtMaker,
		creds:    creds,
		now:      time.Now,
	}
}

// Login проверяет пароль и выпускает токен сессии. Перед проверкой пароля
// адрес сверяется с защитой от перебора, результат попытки сохраняется.
func (s *Service) Login(ctx context.Context, ip, rawPassword string) (models.AdminSession, error) {
	const op = "auth.Login"
	log := s.log.With(slog.String("op", op), slog.String("ip", ip))

	if err := s.guard.Check(ctx, ip, models.LoginTypeAdmin); err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}

	ok := s.verify(rawPassword)
	if err := s.guard.Record(ctx, models.LoginAttempt{
		IPAddress: ip,
		Username:  adminSubject,
		Success:   ok,
		LoginType: models.LoginTypeAdmin,
	}); err != nil {
		log.Error("failed to record login attempt", sl.Err(err))
	}
	if !ok {
		log.Warn("admin login failed")
		return models.AdminSession{}, fmt.Errorf("%s: invalid credentials: %w", op, models.ErrUnauthorized)
	}

	token, claims, err := s.jwtMaker.GenerateToken(adminSubject)
	if err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}
	expiresAt := claims.ExpiresAt.Time
	if err = s.sessions.Set(ctx, sessionPrefix+claims.ID, claims.Subject, expiresAt.Sub(s.now())); err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("admin logged in")
	return models.AdminSession{Token: token, ExpiresAt: expiresAt}, nil
}

// Validate проверяет подпись, срок действия и то, что сессия не завершена.
func (s *Service) Validate(ctx context.Context, token string) (*jwt.SessionClaims, error) {
	const op = "auth.Validate"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUnauthorized, err)
	}
	active, err := s.sessions.Exists(ctx, sessionPrefix+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !active {
		return nil, fmt.Errorf("%s: session revoked: %w", op, models.ErrUnauthorized)
	}
	return claims, nil
}

// Logout завершает сессию.
func (s *Service) Logout(ctx context.Context, token string) error {
	const op = "auth.Logout"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrUnauthorized, err)
	}
	if err = s.sessions.Invalidate(ctx, sessionPrefix+claims.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) verify(rawPassword string) bool {
	if rawPassword == "" {
		return false
	}
	if s.creds.PasswordHash != "" {
		return password.CompareHash(s.creds.PasswordHash, rawPassword) == nil
	}
	return password.EqualSecret(s.creds.Password, rawPassword)
}

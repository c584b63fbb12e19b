// Package vpn управляет учётными записями пользователей во внешней панели VPN.
//
// Панель адресует пользователей по UUID, а сайт по username. Соответствие
// хранится в локальном кеше (таблица user_uuids); при промахе выполняется
// полный постраничный обход пользователей панели с записью результата в кеш.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/clients/remnawave"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/expiry"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/metrics"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// PanelClient операции панели VPN.
type PanelClient interface {
	CreateUser(ctx context.Context, req remnawave.UserRequest) (*models.VPNUser, error)
	UpdateUser(ctx context.Context, req remnawave.UserRequest) (*models.VPNUser, error)
	GetUser(ctx context.Context, uuid string) (*models.VPNUser, error)
	DeleteUser(ctx context.Context, uuid string) error
	ListUsers(ctx context.Context) ([]models.VPNUser, error)
}

// UUIDStore локальный кеш username -> uuid.
type UUIDStore interface {
	GetLatestUUID(ctx context.Context, username string) (string, error)
	SaveUUID(ctx context.Context, username, uuid string) error
	DeleteUUIDs(ctx context.Context, username string) error
	ListUUIDs(ctx context.Context) ([]models.UserUUID, error)
}

// Defaults параметры выдачи доступа по умолчанию.
type Defaults struct {
	SquadUUID      string
	TrafficLimitGB int64
}

// Service шлюз выдачи доступа.
type Service struct {
	log      *slog.Logger
	panel    PanelClient
	store    UUIDStore
	defaults Defaults
	now      func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, panel PanelClient, store UUIDStore, defaults Defaults) *Service {
	return &Service{
		log:      log,
		panel:    panel,
		store:    store,
		defaults: defaults,
		now:      time.Now,
	}
}

type attemptOutcome int

const (
	attemptFailed attemptOutcome = iota
	attemptCreated
	attemptExists
)

// upsertAttempt пытается создать пользователя и классифицирует ответ панели.
func (s *Service) upsertAttempt(ctx context.Context, req remnawave.UserRequest) (attemptOutcome, *models.VPNUser, error) {
	user, err := s.panel.CreateUser(ctx, req)
	switch {
	case err == nil:
		return attemptCreated, user, nil
	case remnawave.IsAlreadyExists(err):
		return attemptExists, nil, err
	default:
		return attemptFailed, nil, err
	}
}

// CreateOrUpdate создаёт пользователя с датой окончания expireAt, а если
// username уже занят, обновляет существующего по его UUID.
func (s *Service) CreateOrUpdate(ctx context.Context, username string, expireAt time.Time, plan models.ProvisionPlan) (*models.VPNUser, error) {
	const op = "vpn.CreateOrUpdate"
	if username == "" {
		return nil, fmt.Errorf("%s: username is required: %w", op, models.ErrValidation)
	}
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	req := s.userRequest(username, expireAt, plan)
	outcome, user, err := s.upsertAttempt(ctx, req)
	switch outcome {
	case attemptCreated:
		metrics.PanelCalls.WithLabelValues("create", "ok").Inc()
		s.remember(ctx, username, user.UUID)
		log.Info("vpn user created", slog.String("uuid", user.UUID))
		return user, nil
	case attemptExists:
		log.Debug("vpn user exists, switching to update")
	default:
		metrics.PanelCalls.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Username = ""
	err = s.withUUID(ctx, username, func(uuid string) error {
		req.UUID = uuid
		var uerr error
		user, uerr = s.panel.UpdateUser(ctx, req)
		metrics.PanelCalls.WithLabelValues("update", metrics.Result(uerr)).Inc()
		return uerr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("vpn user updated", slog.String("uuid", req.UUID))
	return user, nil
}

// withUUID вызывает call с UUID пользователя. Если панель отвечает, что такого
// UUID нет, запись кеша устарела: она сбрасывается, UUID ищется обходом панели
// и call повторяется один раз.
func (s *Service) withUUID(ctx context.Context, username string, call func(uuid string) error) error {
	uuid, err := s.ResolveUUID(ctx, username)
	if err != nil {
		return err
	}
	err = call(uuid)
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	s.log.Debug("cached vpn uuid is stale", slog.String("username", username), slog.String("uuid", uuid))
	if err = s.store.DeleteUUIDs(ctx, username); err != nil {
		return err
	}
	if uuid, err = s.ResolveUUID(ctx, username); err != nil {
		return err
	}
	return call(uuid)
}

// ResolveUUID возвращает UUID пользователя: из кеша, а при промахе полным
// обходом панели с записью найденного значения в кеш.
func (s *Service) ResolveUUID(ctx context.Context, username string) (string, error) {
	const op = "vpn.ResolveUUID"

	uuid, err := s.store.GetLatestUUID(ctx, username)
	if err == nil {
		metrics.UUIDCache.WithLabelValues("hit").Inc()
		return uuid, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.log.Warn("uuid cache lookup failed, scanning panel", slog.String("op", op), sl.Err(err))
	}
	metrics.UUIDCache.WithLabelValues("miss").Inc()

	users, err := s.panel.ListUsers(ctx)
	metrics.PanelCalls.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range users {
		if u.Username == username {
			s.remember(ctx, username, u.UUID)
			return u.UUID, nil
		}
	}
	return "", fmt.Errorf("%s: user %q: %w", op, username, models.ErrNotFound)
}

// Resync перечитывает всех пользователей панели и обновляет кеш.
// Возвращает число записанных соответствий.
func (s *Service) Resync(ctx context.Context) (int, error) {
	const op = "vpn.Resync"

	users, err := s.panel.ListUsers(ctx)
	metrics.PanelCalls.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	saved := 0
	var errs []error
	for _, u := range users {
		if u.Username == "" || u.UUID == "" {
			continue
		}
		if err := s.store.SaveUUID(ctx, u.Username, u.UUID); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	s.log.Info("uuid cache resynced", slog.String("op", op), slog.Int("users", len(users)), slog.Int("saved", saved))
	if len(errs) > 0 {
		return saved, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return saved, nil
}

// CachedUUIDs содержимое локального кеша соответствий username -> uuid.
func (s *Service) CachedUUIDs(ctx context.Context) ([]models.UserUUID, error) {
	uuids, err := s.store.ListUUIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("vpn.CachedUUIDs: %w", err)
	}
	return uuids, nil
}

// Get возвращает учётную запись пользователя из панели.
func (s *Service) Get(ctx context.Context, username string) (*models.VPNUser, error) {
	const op = "vpn.Get"
	var user *models.VPNUser
	err := s.withUUID(ctx, username, func(uuid string) error {
		var gerr error
		user, gerr = s.panel.GetUser(ctx, uuid)
		metrics.PanelCalls.WithLabelValues("get", metrics.Result(gerr)).Inc()
		return gerr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// List возвращает всех пользователей панели.
func (s *Service) List(ctx context.Context) ([]models.VPNUser, error) {
	users, err := s.panel.ListUsers(ctx)
	metrics.PanelCalls.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("vpn.List: %w", err)
	}
	return users, nil
}

// Extend продлевает доступ пользователя на days дней от max(текущая дата окончания, сейчас).
// Если текущую дату окончания получить не удалось, продление не выполняется.
func (s *Service) Extend(ctx context.Context, username string, days int) (time.Time, error) {
	const op = "vpn.Extend"

	user, err := s.Get(ctx, username)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: current expiry lookup: %w", op, err)
	}
	newExpire := expiry.Extend(user.ExpireAt, days, s.now())

	_, err = s.panel.UpdateUser(ctx, remnawave.UserRequest{
		UUID:     user.UUID,
		Status:   "ACTIVE",
		ExpireAt: expiry.FormatISO(newExpire),
	})
	metrics.PanelCalls.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("vpn access extended",
		slog.String("op", op),
		slog.String("username", username),
		slog.Int("days", days),
		slog.Time("expire_at", newExpire),
	)
	return newExpire, nil
}

// Provision выдаёт доступ по оплаченному тарифу: продлевает существующую
// учётную запись или создаёт новую с окончанием через plan.Days дней.
func (s *Service) Provision(ctx context.Context, username string, plan models.ProvisionPlan) (time.Time, error) {
	const op = "vpn.Provision"

	expireAt, err := s.Extend(ctx, username, plan.Days)
	if err == nil {
		return expireAt, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	expireAt = expiry.Extend(nil, plan.Days, s.now())
	if _, err = s.CreateOrUpdate(ctx, username, expireAt, plan); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return expireAt, nil
}

// Delete удаляет пользователя из панели и его записи из кеша UUID.
func (s *Service) Delete(ctx context.Context, username string) error {
	const op = "vpn.Delete"

	uuid, err := s.ResolveUUID(ctx, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = s.panel.DeleteUser(ctx, uuid)
	metrics.PanelCalls.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.store.DeleteUUIDs(ctx, username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("vpn user deleted", slog.String("op", op), slog.String("username", username))
	return nil
}

func (s *Service) remember(ctx context.Context, username, uuid string) {
	if uuid == "" {
		return
	}
	if err := s.store.SaveUUID(ctx, username, uuid); err != nil {
		s.log.Warn("failed to cache vpn uuid", slog.String("username", username), sl.Err(err))
	}
}

func (s *Service) userRequest(username string, expireAt time.Time, plan models.ProvisionPlan) remnawave.UserRequest {
	req := remnawave.UserRequest{
		Username: username,
		Status:   "ACTIVE",
		ExpireAt: expiry.FormatISO(expireAt),
	}
	limitGB := plan.TrafficLimitGB
	if limitGB == 0 {
		limitGB = s.defaults.TrafficLimitGB
	}
	limit := limitGB << 30
	req.TrafficLimitBytes = &limit
	req.TrafficLimitStrategy = "NO_RESET"
	if limitGB > 0 {
		req.TrafficLimitStrategy = "MONTH"
	}
	squad := plan.SquadUUID
	if squad == "" {
		squad = s.defaults.SquadUUID
	}
	if squad != "" {
		req.ActiveInternalSquads = []string{squad}
	}
	return req
}

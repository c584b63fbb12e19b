package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// ListSettings возвращает настройки сайта; publicOnly оставляет только публичные.
func (s *Storage) ListSettings(ctx context.Context, publicOnly bool) ([]models.Setting, error) {
	const op = "storage.ListSettings"

	query := `SELECT key, value, public, updated_at FROM site_settings`
	if publicOnly {
		query += ` WHERE public`
	}
	query += ` ORDER BY key`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Setting, 0)
	for rows.Next() {
		var st models.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Public, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// UpsertSetting создаёт или обновляет настройку.
func (s *Storage) UpsertSetting(ctx context.Context, st models.Setting) error {
	const op = "storage.UpsertSetting"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO site_settings (key, value, public, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, public = EXCLUDED.public, updated_at = NOW()`,
		st.Key, st.Value, st.Public)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteSetting удаляет настройку.
func (s *Storage) DeleteSetting(ctx context.Context, key string) error {
	const op = "storage.DeleteSetting"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM site_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res, op)
}

// ListSecrets возвращает все секреты с открытыми значениями. Маскирование
// выполняется на уровне HTTP-обработчика.
func (s *Storage) ListSecrets(ctx context.Context) ([]models.Secret, error) {
	const op = "storage.ListSecrets"

	rows, err := s.DB.QueryContext(ctx, `SELECT key, value, updated_at FROM secrets ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Secret, 0)
	for rows.Next() {
		var sc models.Secret
		if err := rows.Scan(&sc.Key, &sc.Value, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// SecretsMap возвращает секреты в виде key -> value для config.ApplySecrets.
func (s *Storage) SecretsMap(ctx context.Context) (map[string]string, error) {
	secrets, err := s.ListSecrets(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(secrets))
	for _, sc := range secrets {
		m[sc.Key] = sc.Value
	}
	return m, nil
}

// UpsertSecret создаёт или обновляет секрет.
func (s *Storage) UpsertSecret(ctx context.Context, sc models.Secret) error {
	const op = "storage.UpsertSecret"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO secrets (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, sc.Key, sc.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteSecret удаляет секрет.
func (s *Storage) DeleteSecret(ctx context.Context, key string) error {
	const op = "storage.DeleteSecret"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM secrets WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res, op)
}

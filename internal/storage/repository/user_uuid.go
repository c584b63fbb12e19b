package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// GetLatestUUID возвращает последний по created_at UUID пользователя из кеша.
func (s *Storage) GetLatestUUID(ctx context.Context, username string) (string, error) {
	const op = "storage.GetLatestUUID"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var uuid string
	err := s.DB.QueryRowContext(ctx, `SELECT uuid FROM user_uuids
		WHERE username = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, username).Scan(&uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uuid, nil
}

// SaveUUID записывает соответствие username -> uuid. Повторная запись
// той же пары обновляет created_at, делая её последней.
func (s *Storage) SaveUUID(ctx context.Context, username, uuid string) error {
	const op = "storage.SaveUUID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO user_uuids (username, uuid) VALUES ($1, $2)
		ON CONFLICT (username, uuid) DO UPDATE SET created_at = NOW()`, username, uuid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUUIDs удаляет все закешированные UUID пользователя.
func (s *Storage) DeleteUUIDs(ctx context.Context, username string) error {
	const op = "storage.DeleteUUIDs"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM user_uuids WHERE username = $1`, username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUUIDs возвращает кеш целиком, последние записи первыми.
func (s *Storage) ListUUIDs(ctx context.Context) ([]models.UserUUID, error) {
	const op = "storage.ListUUIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT username, uuid, created_at FROM user_uuids
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.UserUUID
	for rows.Next() {
		var u models.UserUUID
		if err := rows.Scan(&u.Username, &u.UUID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

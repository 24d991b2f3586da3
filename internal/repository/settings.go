package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// SettingGlobalLimit — ключ глобального лимита хранилища в байтах.
// Значение 0 означает отсутствие лимита.
const SettingGlobalLimit = "global_storage_limit_bytes"

// SettingsRepository — разреженное key/value хранилище настроек.
type SettingsRepository interface {
	// GetInt64 возвращает числовое значение настройки.
	// Отсутствующий ключ трактуется как 0.
	GetInt64(ctx context.Context, key string) (int64, error)
	// SetInt64 записывает числовое значение настройки (upsert).
	SetInt64(ctx context.Context, key string, value int64) error
}

// settingsRepo — реализация SettingsRepository.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) GetInt64(ctx context.Context, key string) (int64, error) {
	var raw string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка чтения настройки %s: %w", key, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное числовое значение настройки %s: %q", key, raw)
	}
	return n, nil
}

func (r *settingsRepo) SetInt64(ctx context.Context, key string, value int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, strconv.FormatInt(value, 10),
	)
	if err != nil {
		return fmt.Errorf("ошибка записи настройки %s: %w", key, err)
	}
	return nil
}

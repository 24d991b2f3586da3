package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosharebin/internal/domain/model"
)

// UserRepository — доступ к пользователям.
// Пользователи создаются внешним слоем аутентификации; ядру нужна
// только квота для арифметики.
type UserRepository interface {
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Upsert создаёт или обновляет пользователя.
	Upsert(ctx context.Context, u *model.User) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, quota_bytes FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.QuotaBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, quota_bytes) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET quota_bytes = EXCLUDED.quota_bytes`,
		u.ID, u.QuotaBytes,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return nil
}

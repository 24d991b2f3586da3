package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosharebin/internal/domain/model"
)

// GroupRepository — интерфейс CRUD для таблицы groups.
// Коды участников хранятся как text[] в порядке добавления.
type GroupRepository interface {
	// Insert создаёт новую запись группы.
	// При занятом коде возвращает ErrConflict.
	Insert(ctx context.Context, g *model.GroupEntry) error
	// GetByCode возвращает группу по коду.
	GetByCode(ctx context.Context, code string) (*model.GroupEntry, error)
	// Delete удаляет запись группы.
	Delete(ctx context.Context, code string) error
	// ListContainingFile возвращает все группы, в списке участников
	// которых присутствует fileCode.
	ListContainingFile(ctx context.Context, fileCode string) ([]*model.GroupEntry, error)
	// SetFileCodes перезаписывает список участников группы.
	// Используется для ремонта ссылочной целостности при удалении файла.
	SetFileCodes(ctx context.Context, code string, fileCodes []string) error
}

// groupRepo — реализация GroupRepository.
type groupRepo struct {
	db DBTX
}

// NewGroupRepository создаёт репозиторий групп.
func NewGroupRepository(db DBTX) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) Insert(ctx context.Context, g *model.GroupEntry) error {
	query := `
		INSERT INTO groups (code, name, file_codes, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		g.Code, g.Name, g.FileCodes, g.OwnerID,
	).Scan(&g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: код %s уже занят", ErrConflict, g.Code)
		}
		return fmt.Errorf("ошибка вставки группы: %w", err)
	}
	return nil
}

func (r *groupRepo) GetByCode(ctx context.Context, code string) (*model.GroupEntry, error) {
	query := `
		SELECT code, name, file_codes, owner_id, created_at
		FROM groups
		WHERE code = $1`

	g := &model.GroupEntry{}
	err := r.db.QueryRow(ctx, query, code).Scan(
		&g.Code, &g.Name, &g.FileCodes, &g.OwnerID, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения группы: %w", err)
	}
	return g, nil
}

func (r *groupRepo) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM groups WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("ошибка удаления группы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepo) ListContainingFile(ctx context.Context, fileCode string) ([]*model.GroupEntry, error) {
	query := `
		SELECT code, name, file_codes, owner_id, created_at
		FROM groups
		WHERE $1 = ANY(file_codes)
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, fileCode)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска групп по файлу: %w", err)
	}
	defer rows.Close()

	var result []*model.GroupEntry
	for rows.Next() {
		g := &model.GroupEntry{}
		if err := rows.Scan(&g.Code, &g.Name, &g.FileCodes, &g.OwnerID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *groupRepo) SetFileCodes(ctx context.Context, code string, fileCodes []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE groups SET file_codes = $2 WHERE code = $1`,
		code, fileCodes,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления участников группы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
)

// CodeKind — вид сущности, занимающей код.
type CodeKind string

const (
	// CodeKindFile — код занят файлом.
	CodeKindFile CodeKind = "file"
	// CodeKindGroup — код занят группой.
	CodeKindGroup CodeKind = "group"
)

// CodeRepository — объединённое пространство кодов файлов и групп
// (таблица codes). Каждая запись files/groups обязана держать строку
// в codes; PRIMARY KEY таблицы не даёт коду указывать на файл и
// группу одновременно.
type CodeRepository interface {
	// InUse возвращает true, если код занят файлом или группой.
	InUse(ctx context.Context, code string) (bool, error)
	// Claim захватывает код под сущность вида kind.
	// Занятый код (любого вида) возвращает ErrConflict.
	Claim(ctx context.Context, code string, kind CodeKind) error
	// Release освобождает код. Идемпотентен.
	Release(ctx context.Context, code string) error
}

// codeRepo — реализация CodeRepository.
type codeRepo struct {
	db DBTX
}

// NewCodeRepository создаёт репозиторий кодов.
func NewCodeRepository(db DBTX) CodeRepository {
	return &codeRepo{db: db}
}

// InUse проверяет занятость по таблице codes.
// Проверка не атомарна с последующим захватом: узкое окно гонки
// закрывается PRIMARY KEY при Claim (ErrConflict → новый код).
func (r *codeRepo) InUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM codes WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки занятости кода: %w", err)
	}
	return exists, nil
}

func (r *codeRepo) Claim(ctx context.Context, code string, kind CodeKind) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO codes (code, kind) VALUES ($1, $2)`,
		code, string(kind),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: код %s уже занят", ErrConflict, code)
		}
		return fmt.Errorf("ошибка захвата кода: %w", err)
	}
	return nil
}

func (r *codeRepo) Release(ctx context.Context, code string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM codes WHERE code = $1`, code); err != nil {
		return fmt.Errorf("ошибка освобождения кода: %w", err)
	}
	return nil
}

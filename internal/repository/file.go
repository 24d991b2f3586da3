package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosharebin/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `code, visibility, size_bytes, stored_name, original_name,
	mime_type, owner_id, created_at`

// FileRepository — интерфейс CRUD для таблицы files.
type FileRepository interface {
	// Insert создаёт новую запись файла.
	// При занятом коде возвращает ErrConflict.
	Insert(ctx context.Context, f *model.FileEntry) error
	// GetByCode возвращает файл по коду.
	GetByCode(ctx context.Context, code string) (*model.FileEntry, error)
	// ListByOwner возвращает все файлы владельца.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileEntry, error)
	// Delete удаляет запись файла.
	Delete(ctx context.Context, code string) error
	// SumSizeByOwner возвращает суммарный размер всех файлов владельца.
	// Считается каждый файл независимо от членства в группах.
	SumSizeByOwner(ctx context.Context, ownerID string) (int64, error)
	// SumSizeTotal возвращает суммарный размер всех файлов в системе.
	SumSizeTotal(ctx context.Context) (int64, error)
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Insert(ctx context.Context, f *model.FileEntry) error {
	query := `
		INSERT INTO files (code, visibility, size_bytes, stored_name,
			original_name, mime_type, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.Code, f.Visibility, f.SizeBytes, f.StoredName,
		f.OriginalName, f.MimeType, f.OwnerID,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: код %s уже занят", ErrConflict, f.Code)
		}
		return fmt.Errorf("ошибка вставки файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByCode(ctx context.Context, code string) (*model.FileEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE code = $1`, fileColumns)

	f := &model.FileEntry{}
	err := r.db.QueryRow(ctx, query, code).Scan(
		&f.Code, &f.Visibility, &f.SizeBytes, &f.StoredName,
		&f.OriginalName, &f.MimeType, &f.OwnerID, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC`, fileColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileEntry
	for rows.Next() {
		f := &model.FileEntry{}
		if err := rows.Scan(
			&f.Code, &f.Visibility, &f.SizeBytes, &f.StoredName,
			&f.OriginalName, &f.MimeType, &f.OwnerID, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SumSizeByOwner пересчитывает занятое владельцем место агрегатом,
// отдельный счётчик не ведётся.
func (r *fileRepo) SumSizeByOwner(ctx context.Context, ownerID string) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = $1`,
		ownerID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта занятого места владельца: %w", err)
	}
	return sum, nil
}

func (r *fileRepo) SumSizeTotal(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM files`,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта общего занятого места: %w", err)
	}
	return sum, nil
}

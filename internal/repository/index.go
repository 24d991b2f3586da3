package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosharebin/internal/domain/model"
)

// IndexStore — транзакционные операции индекса, связывающие запись
// в БД с переносом байтов на диске и с таблицей codes: захват и
// освобождение кода идут в одной транзакции со вставкой и удалением
// строки. Любая коллизия кода, в том числе между файлом и группой,
// всплывает как ErrConflict из Claim.
type IndexStore struct {
	tx *TxRunner
}

// NewIndexStore создаёт IndexStore.
func NewIndexStore(tx *TxRunner) *IndexStore {
	return &IndexStore{tx: tx}
}

// InsertFileWithBytes захватывает код, вставляет запись файла и
// выполняет promote (атомарный rename staged-байтов) как один
// логический шаг: всё идёт внутри одной транзакции, ошибка promote
// откатывает и запись, и захват кода.
// Ни записи без байтов, ни байтов без записи при нормальной работе.
func (s *IndexStore) InsertFileWithBytes(ctx context.Context, f *model.FileEntry, promote func() error) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewCodeRepository(tx).Claim(ctx, f.Code, CodeKindFile); err != nil {
			return err
		}
		if err := NewFileRepository(tx).Insert(ctx, f); err != nil {
			return err
		}
		return promote()
	})
}

// InsertGroup захватывает код и вставляет запись группы в одной
// транзакции.
func (s *IndexStore) InsertGroup(ctx context.Context, g *model.GroupEntry) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewCodeRepository(tx).Claim(ctx, g.Code, CodeKindGroup); err != nil {
			return err
		}
		return NewGroupRepository(tx).Insert(ctx, g)
	})
}

// DeleteFile удаляет запись файла и освобождает её код в одной
// транзакции. Отсутствующая запись возвращает ErrNotFound.
func (s *IndexStore) DeleteFile(ctx context.Context, code string) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewFileRepository(tx).Delete(ctx, code); err != nil {
			return err
		}
		return NewCodeRepository(tx).Release(ctx, code)
	})
}

// DeleteGroup удаляет запись группы и освобождает её код в одной
// транзакции. Отсутствующая запись возвращает ErrNotFound.
func (s *IndexStore) DeleteGroup(ctx context.Context, code string) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewGroupRepository(tx).Delete(ctx, code); err != nil {
			return err
		}
		return NewCodeRepository(tx).Release(ctx, code)
	})
}

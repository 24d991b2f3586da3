// quota.go — квотная арифметика: остаток квоты владельца и остаток
// глобального лимита хранилища.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gosharebin/internal/repository"
)

// Remaining — остаток квоты. Либо безлимит, либо конечное число
// байт; отрицательный остаток — значимый сигнал (владелец уже
// превысил квоту).
type Remaining struct {
	// Unlimited — ограничение отсутствует (квота или лимит равны 0).
	Unlimited bool
	// Bytes — остаток в байтах; имеет смысл только при Unlimited == false.
	Bytes int64
}

// Unlimited — остаток без ограничения.
func UnlimitedRemaining() Remaining {
	return Remaining{Unlimited: true}
}

// FiniteRemaining — конечный остаток.
func FiniteRemaining(bytes int64) Remaining {
	return Remaining{Bytes: bytes}
}

// QuotaLedger — вычисление остатков квот.
// Оба остатка пересчитываются агрегатом на каждый вызов: живой
// счётчик не ведётся, что исключает целый класс ошибок дрейфа.
type QuotaLedger struct {
	users    repository.UserRepository
	files    repository.FileRepository
	settings repository.SettingsRepository
	logger   *slog.Logger
}

// NewQuotaLedger создаёт QuotaLedger.
func NewQuotaLedger(
	users repository.UserRepository,
	files repository.FileRepository,
	settings repository.SettingsRepository,
	logger *slog.Logger,
) *QuotaLedger {
	return &QuotaLedger{
		users:    users,
		files:    files,
		settings: settings,
		logger:   logger.With(slog.String("component", "quota_ledger")),
	}
}

// RemainingForUser возвращает остаток квоты владельца.
// Квота 0 (или отсутствующая запись пользователя) означает безлимит.
// Сумма считается по всем файлам владельца независимо от членства
// в группах: квота привязана к владельцу, а не к группе.
func (q *QuotaLedger) RemainingForUser(ctx context.Context, userID string) (Remaining, error) {
	user, err := q.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UnlimitedRemaining(), nil
		}
		return Remaining{}, fmt.Errorf("ошибка чтения квоты пользователя: %w", err)
	}
	if user.QuotaBytes == 0 {
		return UnlimitedRemaining(), nil
	}

	used, err := q.files.SumSizeByOwner(ctx, userID)
	if err != nil {
		return Remaining{}, err
	}
	return FiniteRemaining(user.QuotaBytes - used), nil
}

// RemainingGlobal возвращает остаток глобального лимита хранилища.
// Лимит 0 означает безлимит.
func (q *QuotaLedger) RemainingGlobal(ctx context.Context) (Remaining, error) {
	limit, err := q.settings.GetInt64(ctx, repository.SettingGlobalLimit)
	if err != nil {
		return Remaining{}, err
	}
	if limit == 0 {
		return UnlimitedRemaining(), nil
	}

	used, err := q.files.SumSizeTotal(ctx)
	if err != nil {
		return Remaining{}, err
	}
	return FiniteRemaining(limit - used), nil
}

// Usage возвращает занятое владельцем место и его квоту.
// totalBytes == 0 означает безлимит.
func (q *QuotaLedger) Usage(ctx context.Context, userID string) (usedBytes, totalBytes int64, err error) {
	usedBytes, err = q.files.SumSizeByOwner(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	user, err := q.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return usedBytes, 0, nil
		}
		return 0, 0, fmt.Errorf("ошибка чтения квоты пользователя: %w", err)
	}
	return usedBytes, user.QuotaBytes, nil
}

// SetGlobalLimit записывает глобальный лимит хранилища в байтах.
// 0 снимает ограничение.
func (q *QuotaLedger) SetGlobalLimit(ctx context.Context, limitBytes int64) error {
	if limitBytes < 0 {
		return fmt.Errorf("%w: лимит не может быть отрицательным", ErrValidation)
	}
	if err := q.settings.SetInt64(ctx, repository.SettingGlobalLimit, limitBytes); err != nil {
		return err
	}
	q.logger.Info("Глобальный лимит хранилища обновлён", slog.Int64("limit_bytes", limitBytes))
	return nil
}

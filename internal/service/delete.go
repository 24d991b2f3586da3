// delete.go — каскадное удаление файлов и групп с проверкой
// владельца и ремонтом ссылок из групп на удаляемые файлы.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/repository"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// deletionsTotal — исходы операций удаления.
var deletionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shb_deletions_total",
		Help: "Количество операций удаления по исходам",
	},
	[]string{"outcome"},
)

// DeleteOutcome — терминальный исход удаления.
type DeleteOutcome string

const (
	// DeleteSuccess — сущность удалена.
	DeleteSuccess DeleteOutcome = "success"
	// DeleteNotFound — код не указывает ни на файл, ни на группу.
	DeleteNotFound DeleteOutcome = "not_found"
	// DeleteUnauthorized — владелец не совпадает; состояние не изменено.
	DeleteUnauthorized DeleteOutcome = "unauthorized"
	// DeleteFailed — ошибка хранилища; операция остановлена.
	DeleteFailed DeleteOutcome = "failed"
)

// DeletionEngine — удаление файлов и групп.
// Записи удаляются через IndexTx: код освобождается в одной
// транзакции с удалением строки.
type DeletionEngine struct {
	index  IndexTx
	files  repository.FileRepository
	groups repository.GroupRepository
	store  *filestore.FileStore
	cache  *CacheService
	logger *slog.Logger
}

// NewDeletionEngine создаёт движок удаления.
// cache может быть nil — тогда инвалидация кэша не выполняется.
func NewDeletionEngine(
	index IndexTx,
	files repository.FileRepository,
	groups repository.GroupRepository,
	store *filestore.FileStore,
	cache *CacheService,
	logger *slog.Logger,
) *DeletionEngine {
	return &DeletionEngine{
		index:  index,
		files:  files,
		groups: groups,
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "deletion_engine")),
	}
}

// Resolve разрешает код в файл, группу или ничего.
// Сначала проверяется таблица файлов, затем таблица групп.
func (d *DeletionEngine) Resolve(ctx context.Context, code string) (model.Resolved, error) {
	f, err := d.files.GetByCode(ctx, code)
	if err == nil {
		return model.Resolved{Kind: model.ResolvedFile, File: f}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Resolved{}, err
	}

	g, err := d.groups.GetByCode(ctx, code)
	if err == nil {
		return model.Resolved{Kind: model.ResolvedGroup, Group: g}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Resolved{}, err
	}

	return model.Resolved{Kind: model.ResolvedMissing}, nil
}

// Delete удаляет сущность по коду.
// owner == nil — административный вызов без проверки владельца;
// иначе несовпадение владельца возвращает DeleteUnauthorized без
// какой-либо мутации.
//
// Группа: при cascade каждый участник удаляется с тем же контекстом
// владельца; уже отсутствующий участник пропускается, любой иной
// сбой участника останавливает операцию с DeleteFailed — частичный
// каскад не фиксируется как успех, сама группа не трогается. После
// каскада удаляется запись группы. Вложенных групп в модели нет,
// рекурсия глубины 1.
//
// Файл: сначала из всех групп, ссылающихся на код, код выписывается
// (ремонт ссылочной целостности — строго до удаления файла, чтобы
// не возникало окна с висячей ссылкой), затем удаляются байты с
// диска (ошибка — DeleteFailed, запись сохраняется: неудаляемый
// файл предпочтительнее висячего указателя на байты), затем
// удаляется запись.
func (d *DeletionEngine) Delete(ctx context.Context, code string, cascade bool, owner *string) DeleteOutcome {
	outcome := d.delete(ctx, code, cascade, owner)
	deletionsTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (d *DeletionEngine) delete(ctx context.Context, code string, cascade bool, owner *string) DeleteOutcome {
	resolved, err := d.Resolve(ctx, code)
	if err != nil {
		d.logger.Error("Ошибка разрешения кода",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	}

	switch resolved.Kind {
	case model.ResolvedMissing:
		return DeleteNotFound

	case model.ResolvedFile, model.ResolvedGroup:
		if owner != nil && *owner != resolved.OwnerID() {
			return DeleteUnauthorized
		}
	}

	if resolved.Kind == model.ResolvedGroup {
		return d.deleteGroup(ctx, resolved.Group, cascade, owner)
	}
	return d.deleteFile(ctx, resolved.File)
}

func (d *DeletionEngine) deleteGroup(ctx context.Context, g *model.GroupEntry, cascade bool, owner *string) DeleteOutcome {
	if cascade {
		for _, memberCode := range g.FileCodes {
			switch out := d.delete(ctx, memberCode, cascade, owner); out {
			case DeleteSuccess:
			case DeleteNotFound:
				// Дубликат в списке или уже удалённый участник
			default:
				d.logger.Error("Каскад остановлен: сбой удаления участника",
					slog.String("group", g.Code),
					slog.String("member", memberCode),
					slog.String("outcome", string(out)),
				)
				return DeleteFailed
			}
		}
	}

	if err := d.index.DeleteGroup(ctx, g.Code); err != nil && !errors.Is(err, repository.ErrNotFound) {
		d.logger.Error("Ошибка удаления записи группы",
			slog.String("code", g.Code),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	}

	d.logger.Info("Группа удалена",
		slog.String("code", g.Code),
		slog.Bool("cascade", cascade),
	)
	return DeleteSuccess
}

func (d *DeletionEngine) deleteFile(ctx context.Context, f *model.FileEntry) DeleteOutcome {
	// 1. Ремонт ссылок: выписываем код из всех групп-держателей
	holders, err := d.groups.ListContainingFile(ctx, f.Code)
	if err != nil {
		d.logger.Error("Ошибка поиска групп-держателей",
			slog.String("code", f.Code),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	}
	for _, g := range holders {
		repaired := removeCode(g.FileCodes, f.Code)
		if err := d.groups.SetFileCodes(ctx, g.Code, repaired); err != nil && !errors.Is(err, repository.ErrNotFound) {
			d.logger.Error("Ошибка ремонта участников группы",
				slog.String("group", g.Code),
				slog.String("member", f.Code),
				slog.String("error", err.Error()),
			)
			return DeleteFailed
		}
	}

	// 2. Байты с диска — до записи индекса
	if err := d.store.Delete(f.StoredName); err != nil {
		d.logger.Error("Ошибка удаления байтов, запись сохранена",
			slog.String("code", f.Code),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	}

	// 3. Запись индекса вместе с освобождением кода
	if err := d.index.DeleteFile(ctx, f.Code); err != nil && !errors.Is(err, repository.ErrNotFound) {
		d.logger.Error("Ошибка удаления записи файла",
			slog.String("code", f.Code),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	}

	if d.cache != nil {
		d.cache.Delete(f.Code)
	}

	d.logger.Info("Файл удалён",
		slog.String("code", f.Code),
		slog.Int64("size_bytes", f.SizeBytes),
	)
	return DeleteSuccess
}

// removeCode возвращает список участников без всех вхождений code.
func removeCode(codes []string, code string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c != code {
			out = append(out, c)
		}
	}
	return out
}

// upload.go — фиксация загрузки: вставка записи файла и перенос
// staged-байтов в директорию данных как один логический шаг.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/repository"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// uploadsTotal — количество фиксаций загрузок по результату.
var uploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shb_uploads_total",
		Help: "Количество фиксаций загрузок",
	},
	[]string{"result"},
)

// maxInsertAttempts — предел повторов вставки при гонке за код.
// Каждый повтор идёт со свежим кодом, так что два повтора подряд
// практически невозможны; предел защищает от деградации БД.
const maxInsertAttempts = 5

// IndexTx — транзакционные операции индекса.
// Реализуется repository.IndexStore. Вставки захватывают код в
// объединённом пространстве кодов; занятый код (файлом или группой)
// возвращает repository.ErrConflict. Удаления освобождают код вместе
// с записью.
type IndexTx interface {
	// InsertFileWithBytes захватывает код, вставляет запись файла и
	// выполняет promote как один логический шаг; любая ошибка
	// откатывает всё.
	InsertFileWithBytes(ctx context.Context, f *model.FileEntry, promote func() error) error
	// InsertGroup захватывает код и вставляет запись группы.
	InsertGroup(ctx context.Context, g *model.GroupEntry) error
	// DeleteFile удаляет запись файла и освобождает её код.
	DeleteFile(ctx context.Context, code string) error
	// DeleteGroup удаляет запись группы и освобождает её код.
	DeleteGroup(ctx context.Context, code string) error
}

// CommitParams — параметры фиксации загрузки.
type CommitParams struct {
	// ReservedCode — код, зарезервированный при допуске.
	ReservedCode string
	// OwnerID — идентификатор владельца.
	OwnerID string
	// OriginalName — пользовательское имя файла.
	OriginalName string
	// MimeType — MIME-тип файла.
	MimeType string
	// Visibility — видимость файла; пустое значение — normal.
	Visibility model.Visibility
	// Staged — незафиксированные байты в staging-директории.
	Staged *filestore.StagedFile
}

// UploadService — фиксация загрузок в индексе.
type UploadService struct {
	index  IndexTx
	store  *filestore.FileStore
	alloc  *CodeAllocator
	logger *slog.Logger
}

// NewUploadService создаёт сервис фиксации загрузок.
func NewUploadService(
	index IndexTx,
	store *filestore.FileStore,
	alloc *CodeAllocator,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		index:  index,
		store:  store,
		alloc:  alloc,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Stage записывает поток в staging-директорию под потолком ceiling.
// Превышение потолка возвращает filestore.ErrCeilingExceeded,
// частично записанные байты удалены.
func (s *UploadService) Stage(reader io.Reader, ceiling int64) (*filestore.StagedFile, error) {
	return s.store.SaveStaged(reader, ceiling)
}

// CommitUpload фиксирует загрузку: вставляет запись файла и
// атомарно переносит staged-байты под окончательное имя.
//
// Если зарезервированный код успели занять (узкое окно между
// выделением и вставкой), вставка ловит нарушение уникальности,
// выделяется свежий код и попытка повторяется.
//
// При любой ошибке staged-байты удаляются: прерванная загрузка не
// оставляет ни записи, ни осиротевших байтов.
func (s *UploadService) CommitUpload(ctx context.Context, p CommitParams) (*model.FileEntry, error) {
	if p.Staged == nil {
		return nil, fmt.Errorf("%w: отсутствуют staged-байты", ErrValidation)
	}

	originalName := p.OriginalName
	if originalName == "" {
		originalName = "file"
	}
	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	visibility := p.Visibility
	if visibility == "" {
		visibility = model.VisibilityNormal
	}

	entry := &model.FileEntry{
		Code:         p.ReservedCode,
		Visibility:   visibility,
		SizeBytes:    p.Staged.Size,
		StoredName:   filestore.GenerateStoredName(originalName, p.OwnerID),
		OriginalName: originalName,
		MimeType:     mimeType,
		OwnerID:      p.OwnerID,
	}

	code := p.ReservedCode
	for attempt := 1; ; attempt++ {
		entry.Code = code

		err := s.index.InsertFileWithBytes(ctx, entry, func() error {
			return s.store.Promote(p.Staged.Handle, entry.StoredName)
		})
		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrConflict) && attempt < maxInsertAttempts {
			s.logger.Warn("Код занят при вставке, выделяется новый",
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			code, err = s.alloc.Allocate(ctx)
			if err == nil {
				continue
			}
		}

		_ = s.store.DiscardStaged(p.Staged.Handle)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка фиксации загрузки: %w", err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Загрузка зафиксирована",
		slog.String("code", entry.Code),
		slog.String("owner_id", entry.OwnerID),
		slog.Int64("size_bytes", entry.SizeBytes),
	)
	return entry, nil
}

// Abort удаляет staged-байты прерванной загрузки.
// Идемпотентна: отсутствие staged-файла не считается ошибкой.
func (s *UploadService) Abort(staged *filestore.StagedFile) {
	if staged == nil {
		return
	}
	if err := s.store.DiscardStaged(staged.Handle); err != nil {
		s.logger.Error("Ошибка удаления staged-байтов",
			slog.String("handle", staged.Handle),
			slog.String("error", err.Error()),
		)
	}
}

// download.go — путь чтения: метаданные файла по коду (через
// LRU-кэш) и поток байтов с диска.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/repository"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// DownloadService — отдача файлов и метаданных по коду.
type DownloadService struct {
	files  repository.FileRepository
	groups repository.GroupRepository
	store  *filestore.FileStore
	cache  *CacheService
	logger *slog.Logger
}

// NewDownloadService создаёт сервис отдачи файлов.
func NewDownloadService(
	files repository.FileRepository,
	groups repository.GroupRepository,
	store *filestore.FileStore,
	cache *CacheService,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		files:  files,
		groups: groups,
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// FileMeta возвращает метаданные файла по коду, используя кэш.
func (s *DownloadService) FileMeta(ctx context.Context, code string) (*model.FileEntry, error) {
	if entry, ok := s.cache.Get(code); ok {
		return entry, nil
	}

	entry, err := s.files.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.cache.Set(code, entry)
	return entry, nil
}

// OpenFile возвращает метаданные и поток байтов файла.
// Вызывающий код обязан закрыть ReadCloser.
func (s *DownloadService) OpenFile(ctx context.Context, code string) (*model.FileEntry, io.ReadCloser, error) {
	entry, err := s.FileMeta(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.store.Open(entry.StoredName)
	if err != nil {
		// Запись без байтов — нарушение владения, наружу как ошибка
		s.logger.Error("Запись индекса без байтов на диске",
			slog.String("code", code),
			slog.String("stored_name", entry.StoredName),
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}
	return entry, f, nil
}

// GroupMeta возвращает группу и её разрешимых участников.
// Отсутствующие участники пропускаются — согласовано с семантикой
// ремонта ссылок при удалении.
func (s *DownloadService) GroupMeta(ctx context.Context, code string) (*model.GroupEntry, []*model.FileEntry, error) {
	g, err := s.groups.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	members := make([]*model.FileEntry, 0, len(g.FileCodes))
	for _, mc := range g.FileCodes {
		entry, err := s.FileMeta(ctx, mc)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		members = append(members, entry)
	}
	return g, members, nil
}

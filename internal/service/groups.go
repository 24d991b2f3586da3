// groups.go — групповые загрузки: допуск с общим потолком,
// последовательная фиксация участников, вставка группы только после
// всех участников, откат участников при любом сбое партии.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/repository"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// GroupMemberInput — один файл групповой загрузки.
type GroupMemberInput struct {
	// OriginalName — пользовательское имя файла.
	OriginalName string
	// MimeType — MIME-тип файла.
	MimeType string
	// Reader — поток байтов файла.
	Reader io.Reader
}

// GroupMemberSource выдаёт участников партии по одному.
// io.EOF означает конец партии. Reader каждого участника вычитывается
// полностью до запроса следующего, так что источником может служить
// последовательный multipart.Reader без буферизации тел в памяти.
type GroupMemberSource func() (*GroupMemberInput, error)

// GroupService — создание групп файлов.
type GroupService struct {
	index       IndexTx
	files       repository.FileRepository
	groups      repository.GroupRepository
	store       *filestore.FileStore
	alloc       *CodeAllocator
	admission   *AdmissionService
	uploads     *UploadService
	maxFileSize int64
	logger      *slog.Logger
}

// NewGroupService создаёт сервис групповых загрузок.
func NewGroupService(
	index IndexTx,
	files repository.FileRepository,
	groups repository.GroupRepository,
	store *filestore.FileStore,
	alloc *CodeAllocator,
	admission *AdmissionService,
	uploads *UploadService,
	maxFileSize int64,
	logger *slog.Logger,
) *GroupService {
	return &GroupService{
		index:       index,
		files:       files,
		groups:      groups,
		store:       store,
		alloc:       alloc,
		admission:   admission,
		uploads:     uploads,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "group_service")),
	}
}

// UploadGroup выполняет групповую загрузку целиком: допуск с общим
// потолком, по одному коду и фиксации на участника, затем вставка
// группы. Участники читаются из next по одному и сразу уходят в
// staging — тела не буферизуются. Любой сбой партии (превышение
// потолка, ошибка фиксации, ошибка вставки группы) откатывает уже
// зафиксированных участников — партия не оставляет негруппированных
// сирот.
func (s *GroupService) UploadGroup(ctx context.Context, ownerID, name string, next GroupMemberSource) (*model.GroupEntry, []*model.FileEntry, error) {
	if next == nil {
		return nil, nil, fmt.Errorf("%w: групповая загрузка без файлов", ErrValidation)
	}

	adm, err := s.admission.PrepareGroupUpload(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	// Общий потолок партии: каждый участник уменьшает остаток
	remaining := adm.TransferCeiling(s.maxFileSize)

	var committed []*model.FileEntry
	rollback := func() {
		s.RollbackMembers(ctx, committed)
	}

	for i := 1; ; i++ {
		m, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rollback()
			return nil, nil, fmt.Errorf("участник %d: %w", i, err)
		}

		staged, err := s.store.SaveStaged(m.Reader, remaining)
		if err != nil {
			// В том числе filestore.ErrCeilingExceeded: превышение
			// общего потолка партии любым участником срывает партию
			rollback()
			return nil, nil, fmt.Errorf("участник %d: %w", i, err)
		}

		memberCode, err := s.alloc.Allocate(ctx)
		if err != nil {
			_ = s.store.DiscardStaged(staged.Handle)
			rollback()
			return nil, nil, err
		}

		entry, err := s.uploads.CommitUpload(ctx, CommitParams{
			ReservedCode: memberCode,
			OwnerID:      ownerID,
			OriginalName: m.OriginalName,
			MimeType:     m.MimeType,
			Staged:       staged,
		})
		if err != nil {
			rollback()
			return nil, nil, err
		}

		committed = append(committed, entry)
		remaining -= entry.SizeBytes
	}

	if len(committed) == 0 {
		return nil, nil, fmt.Errorf("%w: групповая загрузка без файлов", ErrValidation)
	}

	memberCodes := make([]string, len(committed))
	for i, e := range committed {
		memberCodes[i] = e.Code
	}

	group, err := s.FinalizeGroup(ctx, adm.Code, name, memberCodes, ownerID)
	if err != nil {
		rollback()
		return nil, nil, err
	}
	return group, committed, nil
}

// FinalizeGroup вставляет запись группы. Вызывается только после
// успешной фиксации всех участников. Каждый участник обязан
// существовать и принадлежать владельцу группы.
//
// Занятый код группы (гонка с момента резервирования) приводит к
// выделению свежего кода и повтору вставки, как при фиксации файла.
func (s *GroupService) FinalizeGroup(ctx context.Context, reservedCode, name string, memberCodes []string, ownerID string) (*model.GroupEntry, error) {
	if len(memberCodes) == 0 {
		return nil, fmt.Errorf("%w: группа без участников", ErrValidation)
	}
	if name == "" {
		name = model.DefaultGroupName
	}

	for _, mc := range memberCodes {
		f, err := s.files.GetByCode(ctx, mc)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: участник %s не существует", ErrValidation, mc)
			}
			return nil, err
		}
		if f.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: участник %s принадлежит другому владельцу", ErrValidation, mc)
		}
	}

	group := &model.GroupEntry{
		Code:      reservedCode,
		Name:      name,
		FileCodes: memberCodes,
		OwnerID:   ownerID,
	}

	code := reservedCode
	for attempt := 1; ; attempt++ {
		group.Code = code

		err := s.index.InsertGroup(ctx, group)
		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrConflict) && attempt < maxInsertAttempts {
			s.logger.Warn("Код группы занят при вставке, выделяется новый",
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			code, err = s.alloc.Allocate(ctx)
			if err == nil {
				continue
			}
		}
		return nil, fmt.Errorf("ошибка вставки группы: %w", err)
	}

	s.logger.Info("Группа создана",
		slog.String("code", group.Code),
		slog.String("owner_id", ownerID),
		slog.Int("members", len(memberCodes)),
	)
	return group, nil
}

// RollbackMembers удаляет зафиксированных участников сорвавшейся
// партии: байты с диска, записи из индекса, коды. Best-effort —
// ошибки логируются, откат продолжается.
func (s *GroupService) RollbackMembers(ctx context.Context, members []*model.FileEntry) {
	for _, e := range members {
		if err := s.store.Delete(e.StoredName); err != nil {
			s.logger.Error("Откат партии: ошибка удаления байтов",
				slog.String("code", e.Code),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.index.DeleteFile(ctx, e.Code); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Откат партии: ошибка удаления записи",
				slog.String("code", e.Code),
				slog.String("error", err.Error()),
			)
		}
	}
}

// groups.go — обработчики групповых загрузок и чтения групп.
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gosharebin/internal/api/errors"
	"github.com/bigkaa/gosharebin/internal/api/middleware"
	"github.com/bigkaa/gosharebin/internal/service"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// CreateGroup — POST /api/v1/groups (multipart/form-data).
// Поля: name (опциональное, до первой части files), files (одна и
// более частей). Части стримятся в staging по одной, тела в памяти
// не буферизуются. Вся партия проходит под общим потолком допуска;
// любой сбой откатывает уже зафиксированных участников.
func (h *APIHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data: "+err.Error())
		return
	}

	// Читаем поля до первой части files: имя группы нужно до начала
	// партии
	var name string
	var pending *multipart.Part
	for pending == nil {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "Требуется хотя бы одна часть files")
			return
		}
		if err != nil {
			apierrors.ValidationError(w, "Ошибка чтения multipart: "+err.Error())
			return
		}

		switch part.FormName() {
		case "name":
			val, err := readSmallField(part)
			if err != nil {
				apierrors.ValidationError(w, "Ошибка чтения поля name")
				return
			}
			name = val
			part.Close()
		case "files":
			pending = part
		default:
			part.Close()
		}
	}

	next := func() (*service.GroupMemberInput, error) {
		for {
			part := pending
			pending = nil
			if part == nil {
				var err error
				part, err = mr.NextPart()
				if err != nil {
					// io.EOF — штатный конец партии
					return nil, err
				}
			}
			if part.FormName() != "files" {
				part.Close()
				continue
			}
			return &service.GroupMemberInput{
				OriginalName: part.FileName(),
				MimeType:     part.Header.Get("Content-Type"),
				Reader:       part,
			}, nil
		}
	}

	group, files, err := h.groups.UploadGroup(r.Context(), claims.Subject, name, next)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrCeilingExceeded):
			apierrors.CeilingExceeded(w, "Партия превышает остаток квоты")
		case errors.Is(err, service.ErrGlobalLimitReached),
			errors.Is(err, service.ErrQuotaExceeded):
			h.writeAdmissionError(w, err)
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка групповой загрузки", "error", err)
			apierrors.InternalError(w, "Ошибка групповой загрузки")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(group, files))
}

// GetGroup — GET /api/v1/groups/{code}.
// Возвращает группу и её разрешимых участников.
func (h *APIHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	group, members, err := h.download.GroupMeta(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Группа не найдена")
			return
		}
		h.logger.Error("Ошибка получения группы", "code", code, "error", err)
		apierrors.InternalError(w, "Ошибка получения группы")
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(group, members))
}

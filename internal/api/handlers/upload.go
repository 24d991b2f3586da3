// upload.go — обработчик POST /api/v1/uploads.
// Поток: допуск (квота + глобальный лимит) → streaming-запись в
// staging под потолком → фиксация (запись индекса + rename).
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	apierrors "github.com/bigkaa/gosharebin/internal/api/errors"
	"github.com/bigkaa/gosharebin/internal/api/middleware"
	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/service"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

// Upload — POST /api/v1/uploads (multipart/form-data).
// Поля: file (обязательное), visibility (опциональное).
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	adm, err := h.admission.PrepareUpload(r.Context(), claims.Subject)
	if err != nil {
		h.writeAdmissionError(w, err)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data: "+err.Error())
		return
	}

	ceiling := adm.TransferCeiling(h.maxFileSize)

	// Поля формы читаются последовательно; visibility должна идти
	// до части file, иначе применится значение по умолчанию. После
	// фиксации части file чтение прекращается: зафиксированная
	// загрузка не может быть сорвана ошибкой в хвосте формы.
	visibility := model.VisibilityNormal
	var entry *model.FileEntry

readParts:
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			apierrors.ValidationError(w, "Ошибка чтения multipart: "+err.Error())
			return
		}

		switch part.FormName() {
		case "visibility":
			val, err := readSmallField(part)
			if err != nil {
				apierrors.ValidationError(w, "Ошибка чтения поля visibility")
				return
			}
			if val != "" {
				if val != string(model.VisibilityNormal) && val != string(model.VisibilityUnlisted) {
					apierrors.ValidationError(w, "visibility: допустимые значения — normal, unlisted")
					return
				}
				visibility = model.Visibility(val)
			}

		case "file":
			staged, err := h.uploads.Stage(part, ceiling)
			if err != nil {
				if errors.Is(err, filestore.ErrCeilingExceeded) {
					apierrors.CeilingExceeded(w, "Передача превышает остаток квоты")
					return
				}
				h.logger.Error("Ошибка записи в staging", "error", err)
				apierrors.InternalError(w, "Ошибка сохранения файла")
				return
			}

			entry, err = h.uploads.CommitUpload(r.Context(), service.CommitParams{
				ReservedCode: adm.Code,
				OwnerID:      claims.Subject,
				OriginalName: part.FileName(),
				MimeType:     part.Header.Get("Content-Type"),
				Visibility:   visibility,
				Staged:       staged,
			})
			if err != nil {
				h.logger.Error("Ошибка фиксации загрузки", "error", err)
				apierrors.InternalError(w, "Ошибка фиксации загрузки")
				return
			}

			part.Close()
			break readParts
		}

		part.Close()
	}

	if entry == nil {
		apierrors.ValidationError(w, "Часть file обязательна")
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(entry))
}

// writeAdmissionError мапит ошибки допуска на HTTP-ответы.
func (h *APIHandler) writeAdmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrGlobalLimitReached):
		apierrors.GlobalLimitReached(w, "Глобальный лимит хранилища исчерпан")
	case errors.Is(err, service.ErrQuotaExceeded):
		apierrors.QuotaExceeded(w, "Квота пользователя исчерпана")
	default:
		h.logger.Error("Ошибка допуска загрузки", "error", err)
		apierrors.InternalError(w, "Ошибка допуска загрузки")
	}
}

// readSmallField читает небольшое текстовое поле multipart-формы.
func readSmallField(part *multipart.Part) (string, error) {
	const maxFieldSize = 1024
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

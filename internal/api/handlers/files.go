// files.go — обработчики чтения и удаления по коду.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gosharebin/internal/api/errors"
	"github.com/bigkaa/gosharebin/internal/api/middleware"
	"github.com/bigkaa/gosharebin/internal/service"
)

// GetFile — GET /api/v1/files/{code}.
// Отдаёт байты файла с оригинальным именем в Content-Disposition.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	entry, rc, err := h.download.OpenFile(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка отдачи файла", "code", code, "error", err)
		apierrors.InternalError(w, "Ошибка отдачи файла")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", entry.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(entry.SizeBytes, 10))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": entry.OriginalName}))

	if _, err := io.Copy(w, rc); err != nil {
		// Ответ уже начат, клиенту отправить нечего
		h.logger.Warn("Передача файла прервана", "code", code, "error", err)
	}
}

// GetFileMeta — GET /api/v1/files/{code}/meta.
// Возвращает метаданные файла без байтов.
func (h *APIHandler) GetFileMeta(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	entry, err := h.download.FileMeta(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных", "code", code, "error", err)
		apierrors.InternalError(w, "Ошибка получения метаданных")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(entry))
}

// DeleteItem — DELETE /api/v1/items/{code}?cascade=true|false.
// Код разрешается в файл или группу. Администратор удаляет без
// проверки владельца.
func (h *APIHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	code := chi.URLParam(r, "code")
	cascade := r.URL.Query().Get("cascade") == "true"

	var owner *string
	if !claims.IsAdmin {
		owner = &claims.Subject
	}

	switch outcome := h.deletion.Delete(r.Context(), code, cascade, owner); outcome {
	case service.DeleteSuccess:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "code": code})
	case service.DeleteNotFound:
		apierrors.NotFound(w, fmt.Sprintf("Код %s не найден", code))
	case service.DeleteUnauthorized:
		apierrors.Forbidden(w, "Сущность принадлежит другому владельцу")
	default:
		apierrors.InternalError(w, "Ошибка удаления")
	}
}

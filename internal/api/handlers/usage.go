// usage.go — занятое место вызывающего и глобальный лимит.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/gosharebin/internal/api/errors"
	"github.com/bigkaa/gosharebin/internal/api/middleware"
	"github.com/bigkaa/gosharebin/internal/service"
)

// GetUsage — GET /api/v1/usage.
// Возвращает занятое вызывающим место и его квоту (0 = безлимит).
func (h *APIHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	used, total, err := h.ledger.Usage(r.Context(), claims.Subject)
	if err != nil {
		h.logger.Error("Ошибка подсчёта занятого места", "user_id", claims.Subject, "error", err)
		apierrors.InternalError(w, "Ошибка подсчёта занятого места")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"used_bytes":  used,
		"total_bytes": total,
	})
}

// SetGlobalLimit — PUT /api/v1/settings/global-limit.
// Доступ: только администратор. 0 снимает ограничение.
func (h *APIHandler) SetGlobalLimit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	if !claims.IsAdmin {
		apierrors.Forbidden(w, "Требуется административная роль")
		return
	}

	var req struct {
		LimitBytes int64 `json:"limit_bytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.ledger.SetGlobalLimit(r.Context(), req.LimitBytes); err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка записи глобального лимита", "error", err)
		apierrors.InternalError(w, "Ошибка записи глобального лимита")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"limit_bytes": req.LimitBytes})
}

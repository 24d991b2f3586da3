// handler.go — основной обработчик API Sharebin.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/service"
)

// APIHandler — основной обработчик API Sharebin.
type APIHandler struct {
	health      *HealthHandler
	admission   *service.AdmissionService
	uploads     *service.UploadService
	groups      *service.GroupService
	deletion    *service.DeletionEngine
	download    *service.DownloadService
	ledger      *service.QuotaLedger
	maxFileSize int64
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	admission *service.AdmissionService,
	uploads *service.UploadService,
	groups *service.GroupService,
	deletion *service.DeletionEngine,
	download *service.DownloadService,
	ledger *service.QuotaLedger,
	maxFileSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		admission:   admission,
		uploads:     uploads,
		groups:      groups,
		deletion:    deletion,
		download:    download,
		ledger:      ledger,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- DTO ---

// fileResponse — представление файла в API.
type fileResponse struct {
	Code         string    `json:"code"`
	Visibility   string    `json:"visibility"`
	SizeBytes    int64     `json:"size_bytes"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	OwnerID      string    `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFileResponse(f *model.FileEntry) fileResponse {
	return fileResponse{
		Code:         f.Code,
		Visibility:   string(f.Visibility),
		SizeBytes:    f.SizeBytes,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		OwnerID:      f.OwnerID,
		CreatedAt:    f.CreatedAt,
	}
}

// groupResponse — представление группы в API.
type groupResponse struct {
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id"`
	CreatedAt time.Time      `json:"created_at"`
	Files     []fileResponse `json:"files"`
}

func toGroupResponse(g *model.GroupEntry, members []*model.FileEntry) groupResponse {
	files := make([]fileResponse, 0, len(members))
	for _, m := range members {
		files = append(files, toFileResponse(m))
	}
	return groupResponse{
		Code:      g.Code,
		Name:      g.Name,
		OwnerID:   g.OwnerID,
		CreatedAt: g.CreatedAt,
		Files:     files,
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// admission.go — допуск загрузок: проверка глобального лимита и
// квоты владельца, вычисление потолка передачи, резервирование кода.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// admissionRejectionsTotal — отклонённые допуски по причинам.
var admissionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shb_admission_rejections_total",
		Help: "Количество отклонённых допусков загрузки",
	},
	[]string{"reason"},
)

// Admission — разрешение на загрузку: зарезервированный код и
// потолок байт для слоя передачи.
type Admission struct {
	// Code — зарезервированный код будущего файла или группы.
	Code string
	// Ceiling — потолок передачи в байтах.
	Ceiling Remaining
}

// TransferCeiling возвращает потолок для слоя передачи с учётом
// абсолютного предохранителя maxFileSize: строжайший из конечных
// пределов. Результат всегда конечен — безлимитный допуск
// ограничивается предохранителем.
func (a *Admission) TransferCeiling(maxFileSize int64) int64 {
	if a.Ceiling.Unlimited {
		return maxFileSize
	}
	if a.Ceiling.Bytes < maxFileSize {
		return a.Ceiling.Bytes
	}
	return maxFileSize
}

// AdmissionService — допуск загрузок.
type AdmissionService struct {
	ledger *QuotaLedger
	alloc  *CodeAllocator
	logger *slog.Logger
}

// NewAdmissionService создаёт сервис допуска.
func NewAdmissionService(ledger *QuotaLedger, alloc *CodeAllocator, logger *slog.Logger) *AdmissionService {
	return &AdmissionService{
		ledger: ledger,
		alloc:  alloc,
		logger: logger.With(slog.String("component", "admission")),
	}
}

// PrepareUpload проверяет допустимость загрузки для владельца и
// резервирует код будущего файла.
//
// Порядок проверок фиксирован:
//  1. Глобальный остаток: конечный и <= 0 — ErrGlobalLimitReached.
//     Проверяется до квоты владельца, чтобы переполненная система
//     отказывала быстро любому пользователю.
//  2. Остаток владельца: конечный и < 0 — ErrQuotaExceeded.
//  3. Потолок = минимум конечных остатков; оба безлимитны — потолок
//     не задаётся (слой передачи применяет абсолютный предохранитель).
//
// Остатки читаются без сериализации с конкурентными загрузками:
// второй конкурентный допуск того же владельца может пройти по
// устаревшему остатку. Это принятая мягкая семантика лимита,
// жёсткой гарантии здесь нет.
func (s *AdmissionService) PrepareUpload(ctx context.Context, userID string) (*Admission, error) {
	return s.prepare(ctx, userID)
}

// PrepareGroupUpload — допуск групповой загрузки: та же проверка,
// резервируется код будущей группы (пространство кодов общее).
func (s *AdmissionService) PrepareGroupUpload(ctx context.Context, userID string) (*Admission, error) {
	return s.prepare(ctx, userID)
}

func (s *AdmissionService) prepare(ctx context.Context, userID string) (*Admission, error) {
	globalRem, err := s.ledger.RemainingGlobal(ctx)
	if err != nil {
		return nil, err
	}
	if !globalRem.Unlimited && globalRem.Bytes <= 0 {
		admissionRejectionsTotal.WithLabelValues("global_limit").Inc()
		s.logger.Warn("Допуск отклонён: глобальный лимит исчерпан",
			slog.String("user_id", userID),
			slog.Int64("global_remaining", globalRem.Bytes),
		)
		return nil, ErrGlobalLimitReached
	}

	userRem, err := s.ledger.RemainingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !userRem.Unlimited && userRem.Bytes < 0 {
		admissionRejectionsTotal.WithLabelValues("quota").Inc()
		s.logger.Warn("Допуск отклонён: квота владельца исчерпана",
			slog.String("user_id", userID),
			slog.Int64("user_remaining", userRem.Bytes),
		)
		return nil, ErrQuotaExceeded
	}

	ceiling := minRemaining(userRem, globalRem)

	code, err := s.alloc.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	return &Admission{Code: code, Ceiling: ceiling}, nil
}

// minRemaining возвращает строжайший из двух остатков:
// минимум конечных значений; безлимит только если безлимитны оба.
func minRemaining(a, b Remaining) Remaining {
	switch {
	case a.Unlimited && b.Unlimited:
		return UnlimitedRemaining()
	case a.Unlimited:
		return b
	case b.Unlimited:
		return a
	case a.Bytes < b.Bytes:
		return a
	default:
		return b
	}
}

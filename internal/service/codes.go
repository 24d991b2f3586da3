// codes.go — выделение коротких уникальных кодов файлов и групп.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gosharebin/internal/repository"
)

// codeAlphabet — алфавит кодов: 26 строчных латинских букв.
// При длине 6 пространство кодов ~309M; вероятность коллизии на
// рабочих объёмах пренебрежимо мала.
const codeAlphabet = "abcdefghijklmnopqrstuvwxyz"

// codeCollisionsTotal — количество повторных выборок из-за занятого кода.
var codeCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "shb_code_collisions_total",
	Help: "Количество коллизий при выделении кодов (повторные выборки)",
})

// CodeAllocator — генератор кодов, уникальных в объединённом
// пространстве кодов файлов и групп.
type CodeAllocator struct {
	codes  repository.CodeRepository
	length int
	logger *slog.Logger
}

// NewCodeAllocator создаёт аллокатор кодов длины length.
func NewCodeAllocator(codes repository.CodeRepository, length int, logger *slog.Logger) *CodeAllocator {
	return &CodeAllocator{
		codes:  codes,
		length: length,
		logger: logger.With(slog.String("component", "code_allocator")),
	}
}

// Allocate возвращает свободный код.
// Кандидат выбирается равномерно случайно и проверяется по
// объединённому пространству кодов; занятый код приводит к новой
// выборке без ограничения числа попыток. Ошибка возвращается только
// от самой проверки — неуникальный код не возвращается никогда.
//
// Проверка не атомарна с последующей вставкой: гонку двух
// конкурентных выделений одного кода закрывает PRIMARY KEY таблицы
// codes при вставке (сервис вставки выделяет новый код и повторяет).
func (a *CodeAllocator) Allocate(ctx context.Context) (string, error) {
	for {
		code, err := randomCode(a.length)
		if err != nil {
			return "", fmt.Errorf("ошибка генерации кода: %w", err)
		}

		inUse, err := a.codes.InUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("ошибка проверки кода: %w", err)
		}
		if !inUse {
			return code, nil
		}

		codeCollisionsTotal.Inc()
		a.logger.Debug("Код занят, повторная выборка", slog.String("code", code))
	}
}

// randomCode возвращает случайный код указанной длины.
// Равномерность обеспечивается rejection sampling: байты, дающие
// смещение по модулю 26, отбрасываются.
func randomCode(length int) (string, error) {
	// Наибольшее кратное len(codeAlphabet), не превышающее 256
	const max = byte(256 - 256%len(codeAlphabet))

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — код не указывает ни на файл, ни на группу.
	ErrNotFound = errors.New("код не найден")
	// ErrUnauthorized — сущность принадлежит другому владельцу.
	ErrUnauthorized = errors.New("сущность принадлежит другому владельцу")
	// ErrQuotaExceeded — персональная квота владельца исчерпана.
	ErrQuotaExceeded = errors.New("квота пользователя исчерпана")
	// ErrGlobalLimitReached — глобальный лимит хранилища исчерпан.
	ErrGlobalLimitReached = errors.New("глобальный лимит хранилища исчерпан")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

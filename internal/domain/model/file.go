package model

import "time"

// Visibility — видимость файла.
type Visibility string

const (
	// VisibilityNormal — обычный файл (по умолчанию).
	VisibilityNormal Visibility = "normal"
	// VisibilityUnlisted — файл доступен только по прямому коду.
	VisibilityUnlisted Visibility = "unlisted"
)

// FileEntry — запись файла в индексе.
// Хранится в таблице files, ключ — шестисимвольный код.
type FileEntry struct {
	// Code — шестисимвольный код файла (общее пространство с кодами групп)
	Code string
	// Visibility — видимость файла (normal, unlisted)
	Visibility Visibility
	// SizeBytes — размер файла в байтах
	SizeBytes int64
	// StoredName — имя файла на диске (не совпадает с пользовательским)
	StoredName string
	// OriginalName — оригинальное имя файла (произвольный UTF-8)
	OriginalName string
	// MimeType — MIME-тип файла
	MimeType string
	// OwnerID — идентификатор владельца
	OwnerID string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

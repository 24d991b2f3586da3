package model

import "time"

// DefaultGroupName — имя группы, если пользователь его не указал.
const DefaultGroupName = "Untitled Group"

// GroupEntry — запись группы файлов в индексе.
// Хранится в таблице groups, ключ — шестисимвольный код
// из того же пространства, что и коды файлов: код никогда не
// является одновременно файлом и группой.
type GroupEntry struct {
	// Code — шестисимвольный код группы
	Code string
	// Name — отображаемое имя группы
	Name string
	// FileCodes — упорядоченный список кодов файлов-участников.
	// Уникальность не навязывается, но ожидается; при удалении
	// файла-участника код обязан удаляться из списка.
	FileCodes []string
	// OwnerID — идентификатор владельца
	OwnerID string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

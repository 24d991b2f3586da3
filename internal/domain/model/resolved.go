package model

// ResolvedKind — вид сущности, на которую указывает код.
type ResolvedKind int

const (
	// ResolvedMissing — код не указывает ни на файл, ни на группу.
	ResolvedMissing ResolvedKind = iota
	// ResolvedFile — код указывает на файл.
	ResolvedFile
	// ResolvedGroup — код указывает на группу.
	ResolvedGroup
)

// Resolved — результат разрешения кода: файл, группа или ничего.
// Tagged union: заполнено ровно одно из полей File/Group в
// соответствии с Kind.
type Resolved struct {
	Kind  ResolvedKind
	File  *FileEntry
	Group *GroupEntry
}

// OwnerID возвращает владельца разрешённой сущности.
// Для ResolvedMissing — пустая строка.
func (r Resolved) OwnerID() string {
	switch r.Kind {
	case ResolvedFile:
		return r.File.OwnerID
	case ResolvedGroup:
		return r.Group.OwnerID
	default:
		return ""
	}
}

// Пакет filestore — операции с физическими файлами на диске.
// Байты загрузки пишутся в staging-директорию с жёстким потолком
// размера, затем атомарно переносятся (rename) в директорию данных
// при фиксации записи в индексе.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCeilingExceeded — передача превышает допустимый потолок байт.
// Частично записанные байты удалены, запись в индексе не создаётся.
var ErrCeilingExceeded = errors.New("передача превышает допустимый потолок байт")

// stagingDir — поддиректория для незафиксированных загрузок.
const stagingDir = ".staging"

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (SHB_DATA_DIR)
	dataDir string
}

// StagedFile — незафиксированная загрузка в staging-директории.
type StagedFile struct {
	// Handle — имя файла в staging-директории
	Handle string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт новый FileStore. Проверяет и создаёт директорию данных
// и staging-поддиректорию, если они не существуют.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, stagingDir), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать staging-директорию: %w", err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveStaged записывает данные из reader в staging-директорию.
// ceiling — максимально допустимое число байт; отрицательное значение
// и math.MaxInt64 означают отсутствие потолка. Превышение потолка
// обрывает передачу: временный файл удаляется, возвращается
// ErrCeilingExceeded.
//
// Паттерн: staging файл → запись → fsync. Атомарный rename в
// директорию данных выполняется отдельно через Promote при фиксации
// записи в индексе.
func (fs *FileStore) SaveStaged(reader io.Reader, ceiling int64) (*StagedFile, error) {
	handle := uuid.New().String() + ".part"
	stagedPath := filepath.Join(fs.dataDir, stagingDir, handle)

	f, err := os.Create(stagedPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания staging-файла: %w", err)
	}

	var size int64
	if ceiling >= 0 && ceiling < math.MaxInt64 {
		// Читаем не больше ceiling+1: лишний байт означает превышение.
		// MaxInt64 исключён из ветки — ceiling+1 переполнился бы.
		size, err = io.Copy(f, io.LimitReader(reader, ceiling+1))
		if err == nil && size > ceiling {
			f.Close()
			os.Remove(stagedPath)
			return nil, ErrCeilingExceeded
		}
	} else {
		size, err = io.Copy(f, reader)
	}
	if err != nil {
		f.Close()
		os.Remove(stagedPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(stagedPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(stagedPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &StagedFile{Handle: handle, Size: size}, nil
}

// Promote атомарно переносит staged-файл в директорию данных
// под именем storedName.
func (fs *FileStore) Promote(handle, storedName string) error {
	stagedPath := filepath.Join(fs.dataDir, stagingDir, handle)
	finalPath := filepath.Join(fs.dataDir, storedName)

	if err := os.Rename(stagedPath, finalPath); err != nil {
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// DiscardStaged удаляет незафиксированный staged-файл.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) DiscardStaged(handle string) error {
	stagedPath := filepath.Join(fs.dataDir, stagingDir, handle)

	err := os.Remove(stagedPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления staging-файла %s: %w", handle, err)
	}
	return nil
}

// Open открывает файл для чтения и возвращает io.ReadCloser.
// Вызывающий код обязан закрыть его.
func (fs *FileStore) Open(storedName string) (*os.File, error) {
	f, err := os.Open(filepath.Join(fs.dataDir, storedName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storedName)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedName, err)
	}
	return f, nil
}

// Delete удаляет файл из директории данных.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) Delete(storedName string) error {
	err := os.Remove(filepath.Join(fs.dataDir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// Exists проверяет существование файла в директории данных.
func (fs *FileStore) Exists(storedName string) bool {
	_, err := os.Stat(filepath.Join(fs.dataDir, storedName))
	return err == nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// GenerateStoredName генерирует имя файла для хранения на диске,
// не совпадающее с пользовательским именем.
// Формат: {name}_{owner}_{timestamp}_{uuid}.{ext}
// Пример: photo_alice_20260901150405_a1b2c3d4.jpg
func GenerateStoredName(originalName, ownerID string) string {
	ext := filepath.Ext(originalName)
	name := strings.TrimSuffix(originalName, ext)

	// Убираем небезопасные символы из имени и владельца
	name = sanitize(name)
	owner := sanitize(ownerID)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}
	if len(owner) > 20 {
		owner = owner[:20]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s_%s%s", name, owner, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s_%s", name, owner, ts, uid)
}

// sanitize заменяет небезопасные для файловой системы символы на "_".
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "file"
	}
	return out
}

package filestore

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNew_CreatesDirectories проверяет создание директории данных и staging.
func TestNew_CreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}

	info, err := os.Stat(filepath.Join(dir, stagingDir))
	if err != nil {
		t.Fatalf("staging-директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("staging-путь не является директорией")
	}
}

// TestSaveStaged проверяет запись байтов в staging-директорию.
func TestSaveStaged(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("Hello, World! Тестовые данные для проверки.")
	staged, err := fs.SaveStaged(bytes.NewReader(content), 1000)
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if staged.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), staged.Size)
	}

	data, err := os.ReadFile(filepath.Join(fs.DataDir(), stagingDir, staged.Handle))
	if err != nil {
		t.Fatalf("staged-файл не найден: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое staged-файла не совпадает")
	}
}

// TestSaveStaged_CeilingExceeded проверяет обрыв передачи при
// превышении потолка и удаление частично записанных байтов.
func TestSaveStaged_CeilingExceeded(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := bytes.Repeat([]byte("x"), 100)
	_, err = fs.SaveStaged(bytes.NewReader(content), 99)
	if !errors.Is(err, ErrCeilingExceeded) {
		t.Fatalf("ожидалась ErrCeilingExceeded, получено %v", err)
	}

	// Staging-директория должна остаться пустой
	entries, err := os.ReadDir(filepath.Join(fs.DataDir(), stagingDir))
	if err != nil {
		t.Fatalf("ошибка чтения staging-директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("частично записанные байты не удалены: %d файлов", len(entries))
	}
}

// TestSaveStaged_ExactCeiling проверяет, что размер ровно в потолок
// не считается превышением.
func TestSaveStaged_ExactCeiling(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := bytes.Repeat([]byte("y"), 100)
	staged, err := fs.SaveStaged(bytes.NewReader(content), 100)
	if err != nil {
		t.Fatalf("размер ровно в потолок не должен быть ошибкой: %v", err)
	}
	if staged.Size != 100 {
		t.Errorf("размер: ожидалось 100, получено %d", staged.Size)
	}
}

// TestSaveStaged_NegativeCeiling проверяет запись без потолка.
func TestSaveStaged_NegativeCeiling(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := bytes.Repeat([]byte("z"), 4096)
	staged, err := fs.SaveStaged(bytes.NewReader(content), -1)
	if err != nil {
		t.Fatalf("отрицательный потолок означает отсутствие ограничения: %v", err)
	}
	if staged.Size != 4096 {
		t.Errorf("размер: ожидалось 4096, получено %d", staged.Size)
	}
}

// TestSaveStaged_MaxInt64Ceiling проверяет, что потолок MaxInt64
// трактуется как его отсутствие: ceiling+1 не переполняется и данные
// записываются целиком.
func TestSaveStaged_MaxInt64Ceiling(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := bytes.Repeat([]byte("z"), 4096)
	staged, err := fs.SaveStaged(bytes.NewReader(content), math.MaxInt64)
	if err != nil {
		t.Fatalf("потолок MaxInt64 означает отсутствие ограничения: %v", err)
	}
	if staged.Size != 4096 {
		t.Errorf("размер: ожидалось 4096, получено %d", staged.Size)
	}
}

// TestPromote проверяет атомарный перенос staged-файла в директорию данных.
func TestPromote(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("promote me")
	staged, err := fs.SaveStaged(bytes.NewReader(content), -1)
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := fs.Promote(staged.Handle, "stored_file.bin"); err != nil {
		t.Fatalf("ошибка переноса: %v", err)
	}

	if !fs.Exists("stored_file.bin") {
		t.Error("файл должен существовать в директории данных")
	}

	// Staged-файл больше не существует
	stagedPath := filepath.Join(fs.DataDir(), stagingDir, staged.Handle)
	if _, err := os.Stat(stagedPath); !os.IsNotExist(err) {
		t.Error("staged-файл должен исчезнуть после переноса")
	}

	f, err := fs.Open("stored_file.bin")
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое после переноса не совпадает")
	}
}

// TestDiscardStaged проверяет удаление staged-файла и идемпотентность.
func TestDiscardStaged(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	staged, err := fs.SaveStaged(bytes.NewReader([]byte("discard")), -1)
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := fs.DiscardStaged(staged.Handle); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	// Повторное удаление не ошибка
	if err := fs.DiscardStaged(staged.Handle); err != nil {
		t.Errorf("повторное удаление не должно быть ошибкой: %v", err)
	}
}

// TestDelete_NotFound проверяет, что удаление несуществующего файла не ошибка.
func TestDelete_NotFound(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if err := fs.Delete("nonexistent.bin"); err != nil {
		t.Errorf("удаление несуществующего файла не должно быть ошибкой: %v", err)
	}
}

// TestOpen_NotFound проверяет ошибку при открытии несуществующего файла.
func TestOpen_NotFound(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	_, err = fs.Open("nonexistent.bin")
	if err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}

// TestGenerateStoredName проверяет генерацию имени файла для диска.
func TestGenerateStoredName(t *testing.T) {
	name := GenerateStoredName("My Photo.jpg", "alice")

	if !strings.HasSuffix(name, ".jpg") {
		t.Errorf("должно сохраняться расширение .jpg: %s", name)
	}
	if !strings.Contains(name, "alice") {
		t.Errorf("должно содержать владельца: %s", name)
	}
	if strings.Contains(name, " ") {
		t.Errorf("не должно содержать пробелов: %s", name)
	}
	if name == "My Photo.jpg" {
		t.Error("имя на диске не должно совпадать с пользовательским")
	}
}

// TestGenerateStoredName_NoExtension проверяет имя без расширения.
func TestGenerateStoredName_NoExtension(t *testing.T) {
	name := GenerateStoredName("README", "bob")

	if !strings.Contains(name, "README") {
		t.Errorf("должно содержать оригинальное имя: %s", name)
	}
	if !strings.Contains(name, "bob") {
		t.Errorf("должно содержать владельца: %s", name)
	}
}

// TestGenerateStoredName_Unique проверяет уникальность имён для
// одинаковых входных данных.
func TestGenerateStoredName_Unique(t *testing.T) {
	a := GenerateStoredName("same.txt", "user")
	b := GenerateStoredName("same.txt", "user")

	if a == b {
		t.Errorf("имена должны различаться: %s", a)
	}
}

// TestSanitize проверяет очистку строк для имени файла.
func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"hello world", "hello_world"},
		{"test-file.01", "test-file.01"},
		{"a/b\\c", "a_b_c"},
		{"", "file"},
	}

	for _, tt := range tests {
		result := sanitize(tt.input)
		if result != tt.expected {
			t.Errorf("sanitize(%q): ожидалось %q, получено %q", tt.input, tt.expected, result)
		}
	}
}

package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
)

type uploadFixture struct {
	uploads *UploadService
	files   *fakeFileRepo
	groups  *fakeGroupRepo
	store   *filestore.FileStore
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	files := newFakeFileRepo()
	groups := newFakeGroupRepo()
	index := newFakeIndexTx(files, groups)
	alloc := NewCodeAllocator(newFakeCodeRepo(files, groups), 6, testLogger())
	return &uploadFixture{
		uploads: NewUploadService(index, store, alloc, testLogger()),
		files:   files,
		groups:  groups,
		store:   store,
	}
}

func (fx *uploadFixture) stage(t *testing.T, content []byte) *filestore.StagedFile {
	t.Helper()
	staged, err := fx.uploads.Stage(bytes.NewReader(content), -1)
	if err != nil {
		t.Fatalf("ошибка staging: %v", err)
	}
	return staged
}

// TestCommitUpload проверяет фиксацию: запись в индексе и байты на
// диске появляются вместе.
func TestCommitUpload(t *testing.T) {
	fx := newUploadFixture(t)
	content := []byte("file content")

	entry, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "alice",
		OriginalName: "report.pdf",
		MimeType:     "application/pdf",
		Staged:       fx.stage(t, content),
	})
	if err != nil {
		t.Fatalf("ошибка фиксации: %v", err)
	}

	if entry.Code != "abcdef" {
		t.Errorf("код: ожидалось abcdef, получено %q", entry.Code)
	}
	if entry.SizeBytes != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), entry.SizeBytes)
	}
	if entry.StoredName == "report.pdf" {
		t.Error("имя на диске не должно совпадать с пользовательским")
	}
	if entry.Visibility != model.VisibilityNormal {
		t.Errorf("видимость по умолчанию: ожидалось normal, получено %q", entry.Visibility)
	}

	// Запись в индексе
	got, err := fx.files.GetByCode(context.Background(), "abcdef")
	if err != nil {
		t.Fatalf("запись не найдена в индексе: %v", err)
	}
	if got.OwnerID != "alice" {
		t.Errorf("владелец: ожидалось alice, получено %q", got.OwnerID)
	}

	// Байты на диске под окончательным именем
	if !fx.store.Exists(entry.StoredName) {
		t.Error("байты не найдены в директории данных")
	}
}

// TestCommitUpload_Defaults проверяет подстановку значений по
// умолчанию для пустых имени и MIME-типа.
func TestCommitUpload_Defaults(t *testing.T) {
	fx := newUploadFixture(t)

	entry, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "bob",
		Staged:       fx.stage(t, []byte("x")),
	})
	if err != nil {
		t.Fatalf("ошибка фиксации: %v", err)
	}
	if entry.OriginalName != "file" {
		t.Errorf("имя по умолчанию: ожидалось file, получено %q", entry.OriginalName)
	}
	if entry.MimeType != "application/octet-stream" {
		t.Errorf("MIME по умолчанию: ожидалось application/octet-stream, получено %q", entry.MimeType)
	}
}

// TestCommitUpload_RetriesOnConflict проверяет гонку за код:
// занятый при вставке код приводит к выделению свежего и повтору.
func TestCommitUpload_RetriesOnConflict(t *testing.T) {
	fx := newUploadFixture(t)

	// Код abcdef уже занят другим файлом
	mustInsertFile(t, fx.files, "abcdef", "someone", 10)

	entry, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "carol",
		OriginalName: "a.txt",
		Staged:       fx.stage(t, []byte("data")),
	})
	if err != nil {
		t.Fatalf("ошибка фиксации: %v", err)
	}
	if entry.Code == "abcdef" {
		t.Error("при конфликте должен быть выделен новый код")
	}
	if len(entry.Code) != 6 {
		t.Errorf("длина нового кода: ожидалось 6, получено %d", len(entry.Code))
	}
	if !fx.store.Exists(entry.StoredName) {
		t.Error("байты не найдены после повтора")
	}
}

// TestCommitUpload_GroupCodeConflict проверяет объединённое
// пространство кодов: код, занятый группой, не достаётся файлу —
// вставка ловит конфликт и повторяется со свежим кодом.
func TestCommitUpload_GroupCodeConflict(t *testing.T) {
	fx := newUploadFixture(t)

	if err := fx.groups.Insert(context.Background(), &model.GroupEntry{
		Code: "abcdef", Name: "x", OwnerID: "someone",
	}); err != nil {
		t.Fatalf("ошибка вставки группы: %v", err)
	}

	entry, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "carol",
		OriginalName: "a.txt",
		Staged:       fx.stage(t, []byte("data")),
	})
	if err != nil {
		t.Fatalf("ошибка фиксации: %v", err)
	}
	if entry.Code == "abcdef" {
		t.Error("код группы не должен достаться файлу")
	}

	// Код по-прежнему разрешается только в группу
	if _, err := fx.files.GetByCode(context.Background(), "abcdef"); err == nil {
		t.Error("код abcdef не должен указывать на файл")
	}
	if _, err := fx.groups.GetByCode(context.Background(), "abcdef"); err != nil {
		t.Errorf("группа abcdef потеряна: %v", err)
	}
}

// TestCommitUpload_NoStagedBytes проверяет отказ без staged-байтов.
func TestCommitUpload_NoStagedBytes(t *testing.T) {
	fx := newUploadFixture(t)

	_, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "dave",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
}

// TestCommitUpload_FailureDiscardsStaged проверяет, что сбой
// фиксации не оставляет ни записи, ни staged-байтов.
func TestCommitUpload_FailureDiscardsStaged(t *testing.T) {
	fx := newUploadFixture(t)
	fx.files.insertErr = errors.New("отказ БД")

	staged := fx.stage(t, []byte("doomed"))
	_, err := fx.uploads.CommitUpload(context.Background(), CommitParams{
		ReservedCode: "abcdef",
		OwnerID:      "eve",
		Staged:       staged,
	})
	if err == nil {
		t.Fatal("ожидалась ошибка фиксации")
	}

	if _, err := fx.files.GetByCode(context.Background(), "abcdef"); err == nil {
		t.Error("запись не должна существовать после сбоя")
	}
	if stagingEmpty := stagingDirEmpty(t, fx.store.DataDir()); !stagingEmpty {
		t.Error("staged-байты не удалены после сбоя")
	}
}

// TestAbort проверяет удаление staged-байтов прерванной загрузки.
func TestAbort(t *testing.T) {
	fx := newUploadFixture(t)
	staged := fx.stage(t, []byte("aborted"))

	fx.uploads.Abort(staged)
	if !stagingDirEmpty(t, fx.store.DataDir()) {
		t.Error("staged-байты не удалены")
	}

	// Повторный и nil-вызовы безопасны
	fx.uploads.Abort(staged)
	fx.uploads.Abort(nil)
}

// stagingDirEmpty возвращает true, если staging-директория пуста.
func stagingDirEmpty(t *testing.T, dataDir string) bool {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dataDir, ".staging"))
	if err != nil {
		t.Fatalf("ошибка чтения staging-директории: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			return false
		}
	}
	return true
}

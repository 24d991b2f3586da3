package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/gosharebin/internal/domain/model"
	"github.com/bigkaa/gosharebin/internal/repository"
)

// testLogger возвращает логгер, не пишущий никуда.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFileRepo — in-memory реализация repository.FileRepository.
type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*model.FileEntry

	// insertErr подменяет результат Insert (один раз), если задан
	insertErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[string]*model.FileEntry{}}
}

func (r *fakeFileRepo) Insert(ctx context.Context, f *model.FileEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		err := r.insertErr
		r.insertErr = nil
		return err
	}
	if _, ok := r.files[f.Code]; ok {
		return repository.ErrConflict
	}
	f.CreatedAt = time.Now().UTC()
	cp := *f
	r.files[f.Code] = &cp
	return nil
}

func (r *fakeFileRepo) GetByCode(ctx context.Context, code string) (*model.FileEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FileEntry
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[code]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, code)
	return nil
}

func (r *fakeFileRepo) SumSizeByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			sum += f.SizeBytes
		}
	}
	return sum, nil
}

func (r *fakeFileRepo) SumSizeTotal(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, f := range r.files {
		sum += f.SizeBytes
	}
	return sum, nil
}

// fakeGroupRepo — in-memory реализация repository.GroupRepository.
type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*model.GroupEntry
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: map[string]*model.GroupEntry{}}
}

func (r *fakeGroupRepo) Insert(ctx context.Context, g *model.GroupEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.Code]; ok {
		return repository.ErrConflict
	}
	g.CreatedAt = time.Now().UTC()
	cp := *g
	cp.FileCodes = append([]string(nil), g.FileCodes...)
	r.groups[g.Code] = &cp
	return nil
}

func (r *fakeGroupRepo) GetByCode(ctx context.Context, code string) (*model.GroupEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	cp.FileCodes = append([]string(nil), g.FileCodes...)
	return &cp, nil
}

func (r *fakeGroupRepo) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[code]; !ok {
		return repository.ErrNotFound
	}
	delete(r.groups, code)
	return nil
}

func (r *fakeGroupRepo) ListContainingFile(ctx context.Context, fileCode string) ([]*model.GroupEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.GroupEntry
	for _, g := range r.groups {
		for _, c := range g.FileCodes {
			if c == fileCode {
				cp := *g
				cp.FileCodes = append([]string(nil), g.FileCodes...)
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) SetFileCodes(ctx context.Context, code string, fileCodes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[code]
	if !ok {
		return repository.ErrNotFound
	}
	g.FileCodes = append([]string(nil), fileCodes...)
	return nil
}

// fakeCodeRepo — проверка занятости кода по обоим фейковым репозиториям.
type fakeCodeRepo struct {
	files  *fakeFileRepo
	groups *fakeGroupRepo
	// busy — дополнительные занятые коды (для теста коллизий)
	busy map[string]bool
}

func newFakeCodeRepo(files *fakeFileRepo, groups *fakeGroupRepo) *fakeCodeRepo {
	return &fakeCodeRepo{files: files, groups: groups, busy: map[string]bool{}}
}

func (r *fakeCodeRepo) InUse(ctx context.Context, code string) (bool, error) {
	if r.busy[code] {
		return true, nil
	}
	if _, err := r.files.GetByCode(ctx, code); err == nil {
		return true, nil
	}
	if _, err := r.groups.GetByCode(ctx, code); err == nil {
		return true, nil
	}
	return false, nil
}

func (r *fakeCodeRepo) Claim(ctx context.Context, code string, kind repository.CodeKind) error {
	inUse, err := r.InUse(ctx, code)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: код %s уже занят", repository.ErrConflict, code)
	}
	r.busy[code] = true
	return nil
}

func (r *fakeCodeRepo) Release(ctx context.Context, code string) error {
	delete(r.busy, code)
	return nil
}

// fakeUserRepo — in-memory реализация repository.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Upsert(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// fakeSettingsRepo — in-memory реализация repository.SettingsRepository.
type fakeSettingsRepo struct {
	mu     sync.Mutex
	values map[string]int64
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: map[string]int64{}}
}

func (r *fakeSettingsRepo) GetInt64(ctx context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Отсутствующий ключ трактуется как 0, как в SQL-реализации
	return r.values[key], nil
}

func (r *fakeSettingsRepo) SetInt64(ctx context.Context, key string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

// fakeIndexTx — реализация IndexTx поверх фейковых репозиториев.
// Имитирует транзакционную семантику: ошибка promote откатывает
// вставленную запись файла, а код проверяется по объединённому
// пространству — как PRIMARY KEY таблицы codes у настоящего
// IndexStore.
type fakeIndexTx struct {
	files  *fakeFileRepo
	groups *fakeGroupRepo
}

func newFakeIndexTx(files *fakeFileRepo, groups *fakeGroupRepo) *fakeIndexTx {
	return &fakeIndexTx{files: files, groups: groups}
}

// claim возвращает ErrConflict, если код занят файлом или группой.
func (t *fakeIndexTx) claim(ctx context.Context, code string) error {
	if _, err := t.files.GetByCode(ctx, code); err == nil {
		return fmt.Errorf("%w: код %s уже занят", repository.ErrConflict, code)
	}
	if _, err := t.groups.GetByCode(ctx, code); err == nil {
		return fmt.Errorf("%w: код %s уже занят", repository.ErrConflict, code)
	}
	return nil
}

func (t *fakeIndexTx) InsertFileWithBytes(ctx context.Context, f *model.FileEntry, promote func() error) error {
	if err := t.claim(ctx, f.Code); err != nil {
		return err
	}
	if err := t.files.Insert(ctx, f); err != nil {
		return err
	}
	if err := promote(); err != nil {
		_ = t.files.Delete(ctx, f.Code)
		return err
	}
	return nil
}

func (t *fakeIndexTx) InsertGroup(ctx context.Context, g *model.GroupEntry) error {
	if err := t.claim(ctx, g.Code); err != nil {
		return err
	}
	return t.groups.Insert(ctx, g)
}

func (t *fakeIndexTx) DeleteFile(ctx context.Context, code string) error {
	return t.files.Delete(ctx, code)
}

func (t *fakeIndexTx) DeleteGroup(ctx context.Context, code string) error {
	return t.groups.Delete(ctx, code)
}

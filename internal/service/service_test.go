package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/datafixer/internal/diff"
	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/fixclient"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Fake-реализации ---

// fakeFileRepo — in-memory реализация repository.FileRecordRepository.
type fakeFileRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{records: make(map[string]*model.FileRecord)}
}

func (r *fakeFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[f.ID]; ok {
		return repository.ErrConflict
	}
	f.CreatedAt = time.Now().UTC()
	cp := *f
	r.records[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id, owner string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Owner != owner {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) List(_ context.Context, owner string, filters repository.FileListFilters, limit, offset int) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.FileRecord
	for _, f := range r.records {
		if f.Owner != owner {
			continue
		}
		if filters.FileType != nil && f.FileType != *filters.FileType {
			continue
		}
		if filters.Status != nil && f.Status != *filters.Status {
			continue
		}
		cp := *f
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeFileRepo) Count(ctx context.Context, owner string, filters repository.FileListFilters) (int, error) {
	list, err := r.List(ctx, owner, filters, len(r.records)+1, 0)
	return len(list), err
}

func (r *fakeFileRepo) Recent(ctx context.Context, owner string, limit int) ([]*model.FileRecord, error) {
	return r.List(ctx, owner, repository.FileListFilters{}, limit, 0)
}

func (r *fakeFileRepo) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Status != model.StatusProcessing || f.ClaimedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	f.ClaimedAt = &now
	return true, nil
}

func (r *fakeFileRepo) MarkFixed(_ context.Context, id, fixedRef string, changes []model.FileChange, processingTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Status != model.StatusProcessing {
		return repository.ErrNotFound
	}
	f.Status = model.StatusFixed
	f.FixedRef = &fixedRef
	f.Changes = changes
	f.ProcessingTime = &processingTime
	return nil
}

func (r *fakeFileRepo) MarkFailed(_ context.Context, id, errorMessage string, processingTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Status != model.StatusProcessing {
		return repository.ErrNotFound
	}
	f.Status = model.StatusFailed
	f.ErrorMessage = &errorMessage
	f.ProcessingTime = &processingTime
	return nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.records[id]
	if !ok || f.Owner != owner {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeFileRepo) Stats(ctx context.Context, owner string) (*repository.FileStats, error) {
	list, err := r.List(ctx, owner, repository.FileListFilters{}, len(r.records)+1, 0)
	if err != nil {
		return nil, err
	}
	stats := &repository.FileStats{ByType: make(map[model.FileType]int)}
	for _, f := range list {
		stats.Total++
		stats.TotalSize += f.FileSize
		stats.TotalChanges += len(f.Changes)
		stats.ByType[f.FileType]++
		switch f.Status {
		case model.StatusFixed:
			stats.Fixed++
		case model.StatusFailed:
			stats.Failed++
		case model.StatusProcessing:
			stats.Processing++
		}
	}
	return stats, nil
}

// fakeFixer — подменяемый клиент сервиса коррекции.
type fakeFixer struct {
	fn func(ctx context.Context, content string, fileType model.FileType) (*fixclient.FixResult, error)
}

func (f *fakeFixer) Fix(ctx context.Context, content string, fileType model.FileType) (*fixclient.FixResult, error) {
	return f.fn(ctx, content, fileType)
}

// fakeEnqueuer — очередь, записывающая задачи или возвращающая ошибку.
type fakeEnqueuer struct {
	tasks []RepairTask
	err   error
}

func (e *fakeEnqueuer) Enqueue(task RepairTask) error {
	if e.err != nil {
		return e.err
	}
	e.tasks = append(e.tasks, task)
	return nil
}

func newTestBlobs(t *testing.T) *blobstore.BlobStore {
	t.Helper()
	bs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("создание BlobStore: %v", err)
	}
	return bs
}

// --- Тесты UploadService ---

func TestUpload_Success(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	queue := &fakeEnqueuer{}
	svc := NewUploadService(repo, blobs, queue, 1024, testLogger())

	rec, err := svc.Upload(context.Background(), "user-1", "data.csv", "auto", []byte("a;b\n1;2\n"))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	if rec.Status != model.StatusProcessing {
		t.Errorf("Status = %q, хотели processing", rec.Status)
	}
	if rec.FileType != model.FileTypeCSV {
		t.Errorf("FileType = %q, хотели csv (из суффикса)", rec.FileType)
	}
	if rec.FileSize != 8 {
		t.Errorf("FileSize = %d, хотели 8", rec.FileSize)
	}
	if !blobs.Exists(rec.OriginalRef) {
		t.Error("оригинал не сохранён в blob-хранилище")
	}

	if len(queue.tasks) != 1 || queue.tasks[0].ID != rec.ID {
		t.Errorf("задача не поставлена в очередь: %+v", queue.tasks)
	}

	stored, err := repo.GetByID(context.Background(), rec.ID, "user-1")
	if err != nil {
		t.Fatalf("запись не создана: %v", err)
	}
	if stored.Status != model.StatusProcessing {
		t.Errorf("статус в репозитории = %q", stored.Status)
	}
}

func TestUpload_Validation(t *testing.T) {
	repo := newFakeFileRepo()
	svc := NewUploadService(repo, newTestBlobs(t), &fakeEnqueuer{}, 10, testLogger())
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "u", "big.txt", "txt", []byte("слишком большой файл")); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("превышение лимита: ожидали ErrFileTooLarge, получили %v", err)
	}
	if _, err := svc.Upload(ctx, "u", "empty.txt", "txt", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("пустой файл: ожидали ErrEmptyFile, получили %v", err)
	}
	if _, err := svc.Upload(ctx, "u", "x.txt", "xml", []byte("x")); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("недопустимый тип: ожидали ErrInvalidFileType, получили %v", err)
	}
	if _, err := svc.Upload(ctx, "u", "", "txt", []byte("x")); !errors.Is(err, ErrValidation) {
		t.Errorf("пустое имя: ожидали ErrValidation, получили %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("невалидные загрузки создали записи: %d", len(repo.records))
	}
}

func TestUpload_QueueFull(t *testing.T) {
	repo := newFakeFileRepo()
	queue := &fakeEnqueuer{err: ErrQueueFull}
	svc := NewUploadService(repo, newTestBlobs(t), queue, 1024, testLogger())

	rec, err := svc.Upload(context.Background(), "user-1", "data.json", "json", []byte("{}"))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	// Запись создана, но сразу переведена в failed
	if rec.Status != model.StatusFailed {
		t.Errorf("Status = %q, хотели failed", rec.Status)
	}
	stored, _ := repo.GetByID(context.Background(), rec.ID, "user-1")
	if stored.Status != model.StatusFailed {
		t.Errorf("статус в репозитории = %q, хотели failed", stored.Status)
	}
	if stored.ErrorMessage == nil || *stored.ErrorMessage != ErrQueueFull.Error() {
		t.Errorf("ErrorMessage = %v", stored.ErrorMessage)
	}
}

// --- Тесты RepairService ---

func makeProcessingRecord(t *testing.T, repo *fakeFileRepo, blobs *blobstore.BlobStore, id, content string) *model.FileRecord {
	t.Helper()
	ref, err := blobs.Store(blobstore.FolderOriginal, id, []byte(content))
	if err != nil {
		t.Fatalf("запись оригинала: %v", err)
	}
	rec := &model.FileRecord{
		ID:           id,
		Owner:        "user-1",
		OriginalName: id + ".csv",
		FileType:     model.FileTypeCSV,
		FileSize:     int64(len(content)),
		OriginalRef:  ref,
		Status:       model.StatusProcessing,
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("создание записи: %v", err)
	}
	return rec
}

func TestRepair_ProcessFixed(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	fixer := &fakeFixer{fn: func(_ context.Context, content string, _ model.FileType) (*fixclient.FixResult, error) {
		return &fixclient.FixResult{
			FixedContent: "a,b\n1,2\n",
			Changes: []model.FileChange{
				{Line: 1, Description: "исправлен разделитель", Before: "a;b", After: "a,b"},
			},
		}, nil
	}}
	svc := NewRepairService(repo, blobs, fixer, 8, 1, testLogger())

	rec := makeProcessingRecord(t, repo, blobs, "fix-1", "a;b\n1;2\n")
	svc.process(context.Background(), RepairTask{ID: rec.ID, Owner: rec.Owner}, testLogger())

	got, err := repo.GetByID(context.Background(), rec.ID, "user-1")
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusFixed {
		t.Fatalf("Status = %q, хотели fixed", got.Status)
	}
	if got.FixedRef == nil {
		t.Fatal("FixedRef = nil")
	}
	fixed, err := blobs.Read(*got.FixedRef)
	if err != nil {
		t.Fatalf("чтение исправленного содержимого: %v", err)
	}
	if string(fixed) != "a,b\n1,2\n" {
		t.Errorf("исправленное содержимое = %q", fixed)
	}
	if len(got.Changes) != 1 || got.Changes[0].Line != 1 {
		t.Errorf("Changes = %+v", got.Changes)
	}
	if got.ProcessingTime == nil {
		t.Error("ProcessingTime не установлен")
	}
}

func TestRepair_ProcessFailed(t *testing.T) {
	cases := []struct {
		name    string
		fixErr  error
		wantMsg string
	}{
		{
			name:    "отклонено сервисом",
			fixErr:  errors.New("непарсимое содержимое"),
			wantMsg: "сервис коррекции недоступен",
		},
		{
			name:    "ответ превысил лимит",
			fixErr:  fixclient.ErrResponseTooLarge,
			wantMsg: "файл слишком велик для обработки",
		},
		{
			name:    "таймаут",
			fixErr:  context.DeadlineExceeded,
			wantMsg: "превышен таймаут сервиса коррекции",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeFileRepo()
			blobs := newTestBlobs(t)
			fixer := &fakeFixer{fn: func(_ context.Context, _ string, _ model.FileType) (*fixclient.FixResult, error) {
				return nil, tc.fixErr
			}}
			svc := NewRepairService(repo, blobs, fixer, 8, 1, testLogger())

			rec := makeProcessingRecord(t, repo, blobs, "fail-1", "данные")
			svc.process(context.Background(), RepairTask{ID: rec.ID, Owner: rec.Owner}, testLogger())

			got, _ := repo.GetByID(context.Background(), rec.ID, "user-1")
			if got.Status != model.StatusFailed {
				t.Fatalf("Status = %q, хотели failed", got.Status)
			}
			if got.ErrorMessage == nil {
				t.Fatal("ErrorMessage = nil")
			}
			if msg := *got.ErrorMessage; !strings.Contains(msg, tc.wantMsg) {
				t.Errorf("ErrorMessage = %q, хотели подстроку %q", msg, tc.wantMsg)
			}
			if got.FixedRef != nil {
				t.Errorf("FixedRef = %v для failed записи", got.FixedRef)
			}
		})
	}
}

func TestRepair_ClaimedOnce(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	var calls int
	fixer := &fakeFixer{fn: func(_ context.Context, _ string, _ model.FileType) (*fixclient.FixResult, error) {
		calls++
		return &fixclient.FixResult{FixedContent: "ok", Changes: []model.FileChange{}}, nil
	}}
	svc := NewRepairService(repo, blobs, fixer, 8, 1, testLogger())

	rec := makeProcessingRecord(t, repo, blobs, "claim-1", "данные")
	task := RepairTask{ID: rec.ID, Owner: rec.Owner}

	svc.process(context.Background(), task, testLogger())
	// Повторная доставка той же задачи: запись уже захвачена
	svc.process(context.Background(), task, testLogger())

	if calls != 1 {
		t.Errorf("сервис коррекции вызван %d раз, хотели 1", calls)
	}
}

// ctxCheckingRepo отклоняет терминальные записи при отменённом контексте,
// как это сделал бы реальный драйвер БД.
type ctxCheckingRepo struct {
	*fakeFileRepo
}

func (r *ctxCheckingRepo) MarkFixed(ctx context.Context, id, fixedRef string, changes []model.FileChange, processingTime float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.fakeFileRepo.MarkFixed(ctx, id, fixedRef, changes, processingTime)
}

func (r *ctxCheckingRepo) MarkFailed(ctx context.Context, id, errorMessage string, processingTime float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.fakeFileRepo.MarkFailed(ctx, id, errorMessage, processingTime)
}

func TestRepair_TerminalWriteSurvivesCancel(t *testing.T) {
	// Контекст воркера отменён посреди задачи (остановка диспетчера):
	// терминальный переход всё равно должен состояться, иначе захваченная
	// запись навсегда останется в processing.
	t.Run("fixed", func(t *testing.T) {
		base := newFakeFileRepo()
		blobs := newTestBlobs(t)
		fixer := &fakeFixer{fn: func(_ context.Context, _ string, _ model.FileType) (*fixclient.FixResult, error) {
			return &fixclient.FixResult{FixedContent: "исправлено", Changes: []model.FileChange{}}, nil
		}}
		svc := NewRepairService(&ctxCheckingRepo{fakeFileRepo: base}, blobs, fixer, 8, 1, testLogger())

		rec := makeProcessingRecord(t, base, blobs, "cancel-1", "данные")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc.process(ctx, RepairTask{ID: rec.ID, Owner: rec.Owner}, testLogger())

		got, _ := base.GetByID(context.Background(), rec.ID, "user-1")
		if got.Status != model.StatusFixed {
			t.Errorf("Status = %q, хотели fixed", got.Status)
		}
	})

	t.Run("failed", func(t *testing.T) {
		base := newFakeFileRepo()
		blobs := newTestBlobs(t)
		fixer := &fakeFixer{fn: func(_ context.Context, _ string, _ model.FileType) (*fixclient.FixResult, error) {
			return nil, fixclient.ErrFixRejected
		}}
		svc := NewRepairService(&ctxCheckingRepo{fakeFileRepo: base}, blobs, fixer, 8, 1, testLogger())

		rec := makeProcessingRecord(t, base, blobs, "cancel-2", "данные")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc.process(ctx, RepairTask{ID: rec.ID, Owner: rec.Owner}, testLogger())

		got, _ := base.GetByID(context.Background(), rec.ID, "user-1")
		if got.Status != model.StatusFailed {
			t.Errorf("Status = %q, хотели failed", got.Status)
		}
	})
}

func TestRepair_EnqueueFull(t *testing.T) {
	svc := NewRepairService(newFakeFileRepo(), newTestBlobs(t), &fakeFixer{}, 1, 1, testLogger())

	if err := svc.Enqueue(RepairTask{ID: "a"}); err != nil {
		t.Fatalf("первый Enqueue() ошибка: %v", err)
	}
	if err := svc.Enqueue(RepairTask{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("ожидали ErrQueueFull, получили: %v", err)
	}
}

func TestRepair_StartStop(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	fixer := &fakeFixer{fn: func(_ context.Context, _ string, _ model.FileType) (*fixclient.FixResult, error) {
		return &fixclient.FixResult{FixedContent: "исправлено", Changes: []model.FileChange{}}, nil
	}}
	svc := NewRepairService(repo, blobs, fixer, 8, 2, testLogger())

	rec := makeProcessingRecord(t, repo, blobs, "async-1", "данные")

	svc.Start(context.Background())
	if err := svc.Enqueue(RepairTask{ID: rec.ID, Owner: rec.Owner}); err != nil {
		t.Fatalf("Enqueue() ошибка: %v", err)
	}

	// Ждём терминального статуса
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := repo.GetByID(context.Background(), rec.ID, "user-1")
		if got.Terminal() {
			if got.Status != model.StatusFixed {
				t.Errorf("Status = %q, хотели fixed", got.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("запись не достигла терминального статуса")
		}
		time.Sleep(10 * time.Millisecond)
	}

	svc.Stop()
}

// --- Тесты FileService ---

func makeFixedRecord(t *testing.T, repo *fakeFileRepo, blobs *blobstore.BlobStore, id, original, fixed string) *model.FileRecord {
	t.Helper()
	makeProcessingRecord(t, repo, blobs, id, original)
	fixedRef, err := blobs.Store(blobstore.FolderFixed, id, []byte(fixed))
	if err != nil {
		t.Fatalf("запись исправленного содержимого: %v", err)
	}
	if err := repo.MarkFixed(context.Background(), id, fixedRef, nil, 1.0); err != nil {
		t.Fatalf("MarkFixed: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), id, "user-1")
	return got
}

func TestFileService_Download(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	svc := NewFileService(repo, blobs, testLogger())
	ctx := context.Background()

	makeFixedRecord(t, repo, blobs, "dl-1", "оригинал", "исправлено")

	// По умолчанию — fixed
	f, rec, err := svc.Download(ctx, "dl-1", "user-1", "")
	if err != nil {
		t.Fatalf("Download() ошибка: %v", err)
	}
	content, _ := io.ReadAll(f)
	f.Close()
	if string(content) != "исправлено" {
		t.Errorf("содержимое = %q, хотели исправленное", content)
	}
	if rec.ID != "dl-1" {
		t.Errorf("ID записи = %q", rec.ID)
	}

	// Явно original
	f2, _, err := svc.Download(ctx, "dl-1", "user-1", DownloadOriginal)
	if err != nil {
		t.Fatalf("Download(original) ошибка: %v", err)
	}
	content2, _ := io.ReadAll(f2)
	f2.Close()
	if string(content2) != "оригинал" {
		t.Errorf("содержимое = %q, хотели оригинал", content2)
	}

	// Недопустимый вариант
	if _, _, err := svc.Download(ctx, "dl-1", "user-1", "draft"); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидали ErrValidation, получили: %v", err)
	}
}

func TestFileService_DownloadFixedNotReady(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	svc := NewFileService(repo, blobs, testLogger())

	makeProcessingRecord(t, repo, blobs, "proc-1", "данные")

	if _, _, err := svc.Download(context.Background(), "proc-1", "user-1", DownloadFixed); !errors.Is(err, ErrNotFixed) {
		t.Errorf("ожидали ErrNotFixed, получили: %v", err)
	}
	// Оригинал доступен в любом статусе
	f, _, err := svc.Download(context.Background(), "proc-1", "user-1", DownloadOriginal)
	if err != nil {
		t.Fatalf("Download(original) ошибка: %v", err)
	}
	f.Close()

	// Без явного варианта — fallback на оригинал, пока исправления нет
	f2, _, err := svc.Download(context.Background(), "proc-1", "user-1", "")
	if err != nil {
		t.Fatalf("Download(\"\") ошибка: %v", err)
	}
	content, _ := io.ReadAll(f2)
	f2.Close()
	if string(content) != "данные" {
		t.Errorf("содержимое = %q, хотели оригинал", content)
	}
}

func TestFileService_Delete(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	svc := NewFileService(repo, blobs, testLogger())
	ctx := context.Background()

	rec := makeFixedRecord(t, repo, blobs, "del-1", "оригинал", "исправлено")

	if err := svc.Delete(ctx, "del-1", "user-1"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	if _, err := svc.Get(ctx, "del-1", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("запись существует после удаления: %v", err)
	}
	if blobs.Exists(rec.OriginalRef) {
		t.Error("оригинал не удалён из blob-хранилища")
	}
	if rec.FixedRef != nil && blobs.Exists(*rec.FixedRef) {
		t.Error("исправленное содержимое не удалено из blob-хранилища")
	}

	// Чужой владелец не может удалить
	makeProcessingRecord(t, repo, blobs, "del-2", "данные")
	if err := svc.Delete(ctx, "del-2", "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("удаление чужой записи: ожидали ErrNotFound, получили %v", err)
	}
}

// --- Тесты DiffService ---

func TestDiffService_Modes(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	files := NewFileService(repo, blobs, testLogger())
	svc := NewDiffService(files, blobs, 16, time.Minute, testLogger())
	ctx := context.Background()

	makeFixedRecord(t, repo, blobs, "diff-1", "a;b\nc\n", "a,b\nc\n")

	// Режим по умолчанию — split
	res, err := svc.Diff(ctx, "diff-1", "user-1", "")
	if err != nil {
		t.Fatalf("Diff() ошибка: %v", err)
	}
	if res.Mode != DiffModeSplit {
		t.Errorf("Mode = %q, хотели split", res.Mode)
	}
	// "a;b\nc\n" → ["a;b", "c", ""] — по строке на строку оригинала
	if len(res.Split) != 3 {
		t.Fatalf("Split: %d строк, хотели 3", len(res.Split))
	}
	if !res.Split[0].Original.Changed || res.Split[0].Fixed.Text != "a,b" {
		t.Errorf("первая строка split: %+v", res.Split[0])
	}
	if res.Split[1].Original.Changed {
		t.Errorf("вторая строка не изменялась: %+v", res.Split[1])
	}

	uni, err := svc.Diff(ctx, "diff-1", "user-1", DiffModeUnified)
	if err != nil {
		t.Fatalf("Diff(unified) ошибка: %v", err)
	}
	if uni.Mode != DiffModeUnified || len(uni.Unified) == 0 {
		t.Errorf("unified: %+v", uni)
	}
	if uni.Unified[0].Kind != diff.KindRemoved || uni.Unified[0].Text != "a;b" {
		t.Errorf("первая строка unified: %+v", uni.Unified[0])
	}

	// Недопустимый режим
	if _, err := svc.Diff(ctx, "diff-1", "user-1", "inline"); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидали ErrValidation, получили: %v", err)
	}
}

func TestDiffService_NotFixed(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	files := NewFileService(repo, blobs, testLogger())
	svc := NewDiffService(files, blobs, 16, time.Minute, testLogger())

	makeProcessingRecord(t, repo, blobs, "pending-1", "данные")

	if _, err := svc.Diff(context.Background(), "pending-1", "user-1", DiffModeSplit); !errors.Is(err, ErrNotFixed) {
		t.Errorf("ожидали ErrNotFixed, получили: %v", err)
	}
}

func TestDiffService_Cached(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newTestBlobs(t)
	files := NewFileService(repo, blobs, testLogger())
	svc := NewDiffService(files, blobs, 16, time.Minute, testLogger())
	ctx := context.Background()

	rec := makeFixedRecord(t, repo, blobs, "cache-1", "до", "после")

	first, err := svc.Diff(ctx, "cache-1", "user-1", DiffModeSplit)
	if err != nil {
		t.Fatalf("Diff() ошибка: %v", err)
	}

	// Меняем содержимое на диске: закэшированный результат не пересчитывается
	if _, err := blobs.Store(blobstore.FolderFixed, rec.ID, []byte("другое")); err != nil {
		t.Fatalf("перезапись blob: %v", err)
	}
	second, err := svc.Diff(ctx, "cache-1", "user-1", DiffModeSplit)
	if err != nil {
		t.Fatalf("повторный Diff() ошибка: %v", err)
	}
	if second.Split[0].Fixed.Text != first.Split[0].Fixed.Text {
		t.Error("результат пересчитан, кэш не сработал")
	}

	// После инвалидации — пересчёт
	svc.Invalidate("cache-1")
	third, err := svc.Diff(ctx, "cache-1", "user-1", DiffModeSplit)
	if err != nil {
		t.Fatalf("Diff() после инвалидации ошибка: %v", err)
	}
	if third.Split[0].Fixed.Text != "другое" {
		t.Errorf("после инвалидации Fixed.Text = %q, хотели %q", third.Split[0].Fixed.Text, "другое")
	}
}

// Пакет blobstore — хранение содержимого файлов на диске.
// В базе данных хранятся только ссылки (ref), само содержимое —
// в директориях original/ и fixed/ под корнем DataDir.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Директории blob-хранилища.
const (
	// FolderOriginal — оригинальное содержимое загруженных файлов.
	FolderOriginal = "original"
	// FolderFixed — исправленное содержимое.
	FolderFixed = "fixed"
)

// BlobStore — управление содержимым файлов на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения (DF_DATA_DIR)
	dataDir string
}

// New создаёт новый BlobStore. Проверяет и создаёт директории
// original/ и fixed/, если они не существуют.
func New(dataDir string) (*BlobStore, error) {
	for _, folder := range []string{FolderOriginal, FolderFixed} {
		if err := os.MkdirAll(filepath.Join(dataDir, folder), 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", folder, err)
		}
	}
	return &BlobStore{dataDir: dataDir}, nil
}

// Store записывает содержимое под ключом {folder}/{id} и возвращает ref.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) Store(folder, id string, content []byte) (string, error) {
	ref, err := buildRef(folder, id)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(bs.dataDir, ref)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return ref, nil
}

// Read возвращает содержимое по ref.
func (bs *BlobStore) Read(ref string) ([]byte, error) {
	fullPath, err := bs.resolve(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("содержимое не найдено: %s", ref)
		}
		return nil, fmt.Errorf("ошибка чтения содержимого %s: %w", ref, err)
	}
	return content, nil
}

// Open открывает содержимое для streaming-чтения.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(ref string) (*os.File, error) {
	fullPath, err := bs.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("содержимое не найдено: %s", ref)
		}
		return nil, fmt.Errorf("ошибка открытия содержимого %s: %w", ref, err)
	}
	return f, nil
}

// Delete удаляет содержимое по ref.
// Возвращает nil, если содержимого уже нет.
func (bs *BlobStore) Delete(ref string) error {
	fullPath, err := bs.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления содержимого %s: %w", ref, err)
	}
	return nil
}

// Exists проверяет существование содержимого по ref.
func (bs *BlobStore) Exists(ref string) bool {
	fullPath, err := bs.resolve(ref)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// buildRef валидирует компоненты и собирает относительный ref.
// Защита от path traversal: компоненты не могут содержать разделители.
func buildRef(folder, id string) (string, error) {
	if folder != FolderOriginal && folder != FolderFixed {
		return "", fmt.Errorf("недопустимая директория хранилища: %q", folder)
	}
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("недопустимый идентификатор содержимого: %q", id)
	}
	return folder + "/" + id, nil
}

// resolve преобразует ref в абсолютный путь с проверкой на path traversal.
func (bs *BlobStore) resolve(ref string) (string, error) {
	cleaned := filepath.Clean(ref)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("недопустимый ref: %q", ref)
	}
	return filepath.Join(bs.dataDir, cleaned), nil
}

package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay: пауза между попытками взять файловую блокировку.
const lockRetryDelay = 25 * time.Millisecond

// FileBackend хранит каждый ключ в отдельном файле внутри dir.
//
// Запись атомарная: пишем во временный файл и переименовываем поверх.
// Межпроцессная блокировка идёт через flock на файле "<key>.lock".
type FileBackend struct {
	mu  sync.RWMutex // защищает файлы от параллельного I/O внутри процесса
	dir string
}

// NewFileBackend создаёт директорию данных (если её нет) и возвращает бэкенд.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir возвращает директорию данных.
func (f *FileBackend) Dir() string { return f.dir }

// path превращает ключ в "<dir>/<escaped key>.json", например "@tasks" в "@tasks.json".
//
// url.PathEscape обратим, поэтому разные ключи не делят один файл,
// а "/" в ключе не выводит за пределы dir.
func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			// Файла нет: нормальная ситуация для первого запуска.
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(key)
	tmp := path + ".tmp"

	// 0644 - права доступа (rw-r--r--)
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (f *FileBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Lock берёт эксклюзивную файловую блокировку ключа.
//
// Ожидание прерывается по ctx.Done().
func (f *FileBackend) Lock(ctx context.Context, key string) (func() error, error) {
	fl := flock.New(f.path(key) + ".lock")

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", key)
	}
	return fl.Unlock, nil
}

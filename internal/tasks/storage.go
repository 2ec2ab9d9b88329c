package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// load читает и разбирает весь список задач.
//
// Отсутствующий ключ или пустая строка не ошибка: задач просто нет.
func (s *Store) load(ctx context.Context) ([]Task, error) {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []Task{}, nil
	}

	var tasks []Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}

	seen := make(map[string]struct{}, len(tasks))
	for i := range tasks {
		if err := tasks[i].check(); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.key, err)
		}
		if _, dup := seen[tasks[i].ID]; dup {
			return nil, fmt.Errorf("decode %s: duplicate id %s", s.key, tasks[i].ID)
		}
		seen[tasks[i].ID] = struct{}{}
		tasks[i].normalize()
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// save сериализует весь список и записывает его под ключом хранилища.
func (s *Store) save(ctx context.Context, tasks []Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.backend.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// mutation это чистая функция над снимком коллекции.
//
// Возвращает новую коллекцию, значение для вызывающего и признак,
// нужно ли записывать коллекцию обратно.
type mutation[T any] func(tasks []Task) (next []Task, value T, write bool, err error)

// exclusive выполняет fn, держа мьютекс Store и, если бэкенд умеет,
// блокировку ключа (storage.Locker). Через неё проходят все записи ключа.
func (s *Store) exclusive(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.key)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(); err != nil {
				s.logger.Printf("tasks: unlock %s: %v", s.key, err)
			}
		}()
	}
	return fn()
}

// withCollection выполняет одну транзакцию "прочитать всё, изменить, записать всё".
//
// Ошибка мутатора отменяет запись.
func withCollection[T any](ctx context.Context, s *Store, mutate mutation[T]) (T, error) {
	var value T
	err := s.exclusive(ctx, func() error {
		current, err := s.load(ctx)
		if err != nil {
			return err
		}

		next, v, write, err := mutate(current)
		if err != nil {
			return err
		}
		if write {
			if err := s.save(ctx, next); err != nil {
				return err
			}
		}
		value = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

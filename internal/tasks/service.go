package tasks

import (
	"context"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"taskkeeper/internal/storage"

	"github.com/google/uuid"
)

// DefaultKey — ключ, под которым лежит весь список задач.
const DefaultKey = "@tasks"

// DefaultUpcomingDays используется в Upcoming, если days <= 0.
const DefaultUpcomingDays = 7

// Store — единственный источник истины для списка задач.
//
// Каждая операция заново читает весь список из бэкенда (кеша между
// вызовами нет), мутации записывают весь список обратно.
// Store создаётся один раз при старте и передаётся явно: handler -> store -> backend.
type Store struct {
	backend storage.Backend
	locker  storage.Locker
	key     string

	now          func() time.Time
	loc          *time.Location
	newID        func() string
	upcomingDays int
	logger       *log.Logger

	mu sync.Mutex // сериализует циклы чтение-изменение-запись
}

// Option настраивает Store.
type Option func(*Store)

// WithKey меняет ключ хранения списка.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation задаёт часовой пояс для сравнения календарных дней.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger задаёт логгер для диагностики поглощённых ошибок.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		s.logger = l
	}
}

// WithIDGenerator подменяет генератор id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithUpcomingDays задаёт горизонт Upcoming по умолчанию.
func WithUpcomingDays(days int) Option {
	return func(s *Store) {
		if days > 0 {
			s.upcomingDays = days
		}
	}
}

// NewStore создаёт хранилище задач поверх бэкенда.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		key:          DefaultKey,
		now:          time.Now,
		loc:          time.Local,
		newID:        newTaskID,
		upcomingDays: DefaultUpcomingDays,
		logger:       log.Default(),
	}
	if l, ok := backend.(storage.Locker); ok {
		s.locker = l
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newTaskID выдаёт UUIDv7: id растут вместе со временем создания.
func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Location возвращает часовой пояс хранилища.
func (s *Store) Location() *time.Location { return s.loc }

// timestamp возвращает "сейчас", но не раньше prev:
// updatedAt не должен уходить назад при грубых или сбитых часах.
func (s *Store) timestamp(prev time.Time) time.Time {
	now := s.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

// GetAll возвращает все задачи в порядке вставки.
//
// Ошибки чтения не пробрасываются: пишем в лог и отдаём пустой список.
func (s *Store) GetAll(ctx context.Context) []Task {
	tasks, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("tasks: load: %v", err)
		return []Task{}
	}
	return tasks
}

// GetByID возвращает задачу по id.
func (s *Store) GetByID(ctx context.Context, id string) (Task, bool) {
	for _, t := range s.GetAll(ctx) {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Create валидирует поля, собирает новую задачу и дописывает её в конец списка.
func (s *Store) Create(ctx context.Context, f Fields) Result {
	if err := validateFields(f, true); err != nil {
		s.logger.Printf("tasks: create: %v", err)
		return failed(err)
	}

	created, err := withCollection(ctx, s, func(tasks []Task) ([]Task, Task, bool, error) {
		id := s.newID()
		// id с коллизией перевыпускаем: при UUIDv7 это практически не случается.
		for slices.ContainsFunc(tasks, func(t Task) bool { return t.ID == id }) {
			id = s.newID()
		}

		t := newTask(id, f, s.now(), s.loc)
		return append(tasks, t), t, true, nil
	})
	if err != nil {
		s.logger.Printf("tasks: create: %v", err)
		return failed(err)
	}
	return succeeded(&created)
}

// Update накладывает поля на задачу с указанным id и обновляет UpdatedAt.
func (s *Store) Update(ctx context.Context, id string, f Fields) Result {
	if err := validateFields(f, false); err != nil {
		s.logger.Printf("tasks: update %s: %v", id, err)
		return failed(err)
	}

	return s.modify(ctx, "update", id, func(t *Task) {
		applyFields(t, f)
		// Срок или напоминание поменялись, а время напоминания не передано: пересчитываем.
		if f.Date != nil || f.Time != nil || f.Reminder != nil {
			if f.Reminder == nil || f.Reminder.ReminderTime == nil {
				t.Reminder.ReminderTime = nil
			}
		}
	})
}

// ToggleCompletion переключает Completed: pending <-> completed.
func (s *Store) ToggleCompletion(ctx context.Context, id string) Result {
	return s.modify(ctx, "toggle", id, func(t *Task) {
		t.Completed = !t.Completed
	})
}

// modify: общий цикл для Update и ToggleCompletion.
func (s *Store) modify(ctx context.Context, op, id string, change func(*Task)) Result {
	updated, err := withCollection(ctx, s, func(tasks []Task) ([]Task, Task, bool, error) {
		idx := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
		if idx == -1 {
			return nil, Task{}, false, ErrNotFound
		}

		next := slices.Clone(tasks)
		t := next[idx]
		change(&t)
		t.normalize()
		t.syncReminder(s.loc)
		t.UpdatedAt = s.timestamp(t.UpdatedAt)
		next[idx] = t
		return next, t, true, nil
	})
	if err != nil {
		s.logger.Printf("tasks: %s %s: %v", op, id, err)
		return failed(err)
	}
	return succeeded(&updated)
}

// Delete удаляет задачу по id.
//
// Удаление идемпотентно: если задачи нет, список всё равно записывается
// и операция считается успешной.
func (s *Store) Delete(ctx context.Context, id string) Result {
	_, err := withCollection(ctx, s, func(tasks []Task) ([]Task, struct{}, bool, error) {
		next := slices.DeleteFunc(slices.Clone(tasks), func(t Task) bool { return t.ID == id })
		return next, struct{}{}, true, nil
	})
	if err != nil {
		s.logger.Printf("tasks: delete %s: %v", id, err)
		return failed(err)
	}
	return succeeded(nil)
}

// ClearAll удаляет весь список задач из хранилища.
//
// Удаление сериализуется с остальными мутациями (мьютекс + Locker).
func (s *Store) ClearAll(ctx context.Context) Result {
	err := s.exclusive(ctx, func() error {
		return s.backend.Remove(ctx, s.key)
	})
	if err != nil {
		s.logger.Printf("tasks: clear: %v", err)
		return failed(err)
	}
	return succeeded(nil)
}

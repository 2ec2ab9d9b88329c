// Package storage описывает контракт "носителя" данных, которым пользуется
// хранилище задач: один ключ → одна строка (весь сериализованный блоб).
//
// Реализации: MemoryBackend (тесты, демо), FileBackend (файл на ключ + flock)
// и GormBackend (таблица ключ-значение в Postgres).
package storage

import "context"

// Backend — минимальный контракт носителя.
//
// Get возвращает ok=false, если ключа нет (аналог null), это НЕ ошибка.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Locker — необязательное расширение Backend.
//
// Если бэкенд его реализует, хранилище задач держит эксклюзивную блокировку
// ключа на весь цикл чтение-изменение-запись.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func() error, err error)
}

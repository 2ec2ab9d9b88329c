package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"taskkeeper/internal/storage"
)

// fakeClock: управляемые часы для тестов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testNow: "сейчас" во всех тестах, 2026-10-19 14:00 UTC.
var testNow = time.Date(2026, time.October, 19, 14, 0, 0, 0, time.UTC)

type fixture struct {
	store   *Store
	backend *storage.MemoryBackend
	clock   *fakeClock
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		backend: storage.NewMemoryBackend(),
		clock:   newFakeClock(testNow),
		logs:    &bytes.Buffer{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithLogger(log.New(f.logs, "", 0)),
	}
	f.store = NewStore(f.backend, append(base, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, fields Fields) Task {
	t.Helper()
	res := f.store.Create(context.Background(), fields)
	if !res.Success {
		t.Fatalf("create failed: %s", res.Error)
	}
	return *res.Task
}

func ptr[T any](v T) *T { return &v }

func titled(title string) Fields { return Fields{Title: ptr(title)} }

func ids(list []Task) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

// flakyBackend отказывает на выбранных операциях.
type flakyBackend struct {
	*storage.MemoryBackend
	failGet, failSet bool
}

func (b *flakyBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if b.failGet {
		return "", false, errors.New("read: device not ready")
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *flakyBackend) Set(ctx context.Context, key, value string) error {
	if b.failSet {
		return errors.New("write: disk full")
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

// barrierBackend задерживает каждый Get, пока n читателей не дойдут до барьера.
// Так два независимых цикла гарантированно читают один и тот же снимок.
type barrierBackend struct {
	*storage.MemoryBackend
	wg sync.WaitGroup
}

func newBarrierBackend(n int) *barrierBackend {
	b := &barrierBackend{MemoryBackend: storage.NewMemoryBackend()}
	b.wg.Add(n)
	return b
}

func (b *barrierBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.MemoryBackend.Get(ctx, key)
	b.wg.Done()
	b.wg.Wait()
	return v, ok, err
}

func seqIDs(list ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(list) {
			i++
			return fmt.Sprintf("extra-%d", i)
		}
		id := list[i]
		i++
		return id
	}
}

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"taskkeeper/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAppliesDefaults(t *testing.T) {
	f := newFixture(t, WithIDGenerator(seqIDs("t1")))

	task := f.create(t, titled("  Water plants  "))

	assert.Equal(t, "t1", task.ID)
	// заголовок хранится как передан, пробелы проверяются только при валидации
	assert.Equal(t, "  Water plants  ", task.Title)
	assert.Equal(t, "", task.Description)
	assert.Equal(t, CategoryWork, task.Category)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, testNow, task.Date)
	assert.Equal(t, "14:00", task.Time)
	assert.False(t, task.Completed)
	assert.Equal(t, testNow, task.CreatedAt)
	assert.Equal(t, testNow, task.UpdatedAt)
	assert.Equal(t, []string{}, task.Tags)
	assert.Equal(t, []string{}, task.Attachments)

	// напоминание включено по умолчанию, за 10 минут до срока
	assert.True(t, task.Reminder.Enabled)
	assert.Equal(t, 10, task.Reminder.Minutes)
	require.NotNil(t, task.Reminder.ReminderTime)
	assert.Equal(t, testNow.Add(-10*time.Minute), *task.Reminder.ReminderTime)
}

func TestStore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := time.Date(2026, time.October, 21, 0, 0, 0, 0, time.UTC)
	created := f.create(t, Fields{
		Title:       ptr("Dentist"),
		Description: ptr("Annual check-up"),
		Category:    ptr(CategoryHealth),
		Priority:    ptr(PriorityHigh),
		Date:        &due,
		Time:        ptr("09:30"),
		Reminder:    &Reminder{Enabled: true, Minutes: 60},
		Tags:        &[]string{"clinic"},
		Attachments: &[]string{"file://insurance.pdf"},
		Notes:       ptr("bring card"),
	})

	got, found := f.store.GetByID(ctx, created.ID)
	require.True(t, found)
	assert.Equal(t, created, got)

	require.NotNil(t, got.Reminder.ReminderTime)
	assert.Equal(t, time.Date(2026, time.October, 21, 8, 30, 0, 0, time.UTC), *got.Reminder.ReminderTime)
}

func TestStore_IDsAreUnique(t *testing.T) {
	f := newFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		task := f.create(t, titled("task"))
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
	assert.Len(t, f.store.GetAll(context.Background()), 50)
}

func TestStore_CreateReissuesCollidingID(t *testing.T) {
	f := newFixture(t, WithIDGenerator(seqIDs("same", "same", "other")))

	first := f.create(t, titled("one"))
	second := f.create(t, titled("two"))

	assert.Equal(t, "same", first.ID)
	assert.Equal(t, "other", second.ID)
}

func TestStore_CreateRejectsBlankTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, fields := range []Fields{{}, titled(""), titled("   ")} {
		res := f.store.Create(ctx, fields)
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err(), ErrInvalidTask)
	}
	assert.Empty(t, f.store.GetAll(ctx))
	assert.False(t, IsValidTask(" \t"))
	assert.True(t, IsValidTask("x"))
}

func TestStore_CreateRejectsUnknownPriority(t *testing.T) {
	f := newFixture(t)

	res := f.store.Create(context.Background(), Fields{Title: ptr("x"), Priority: ptr(Priority("urgent"))})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err(), ErrInvalidTask)
	assert.Contains(t, res.Error, "priority")
}

func TestStore_UpdateMergesShallow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig := f.create(t, Fields{
		Title:    ptr("Report"),
		Tags:     &[]string{"q3"},
		Reminder: &Reminder{Enabled: true, Minutes: 30},
	})
	f.clock.Advance(time.Minute)

	res := f.store.Update(ctx, orig.ID, Fields{
		Priority: ptr(PriorityHigh),
		Reminder: &Reminder{Enabled: false, Minutes: 30},
	})
	require.True(t, res.Success, res.Error)

	got := *res.Task
	assert.Equal(t, "Report", got.Title)
	assert.Equal(t, []string{"q3"}, got.Tags)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.Equal(t, testNow.Add(time.Minute), got.UpdatedAt)

	// reminder заменён целиком, у выключенного нет времени
	assert.False(t, got.Reminder.Enabled)
	assert.Nil(t, got.Reminder.ReminderTime)

	stored, _ := f.store.GetByID(ctx, orig.ID)
	assert.Equal(t, got, stored)
}

func TestStore_UpdateRecomputesReminderOnNewDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.create(t, Fields{Title: ptr("Call"), Time: ptr("10:00")})
	newDate := time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)

	res := f.store.Update(ctx, task.ID, Fields{Date: &newDate})
	require.True(t, res.Success)
	require.NotNil(t, res.Task.Reminder.ReminderTime)
	assert.Equal(t, time.Date(2026, time.November, 2, 9, 50, 0, 0, time.UTC), *res.Task.Reminder.ReminderTime)
}

func TestStore_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.store.Update(ctx, "missing", titled("x"))
	assert.False(t, res.Success)
	assert.Equal(t, "Task not found", res.Error)
	assert.ErrorIs(t, res.Err(), ErrNotFound)

	task := f.create(t, titled("keep"))
	res = f.store.Update(ctx, task.ID, titled("  "))
	assert.ErrorIs(t, res.Err(), ErrInvalidTask)

	got, _ := f.store.GetByID(ctx, task.ID)
	assert.Equal(t, "keep", got.Title)
}

func TestStore_ToggleIsInvolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.create(t, titled("Run"))

	f.clock.Advance(time.Second)
	first := f.store.ToggleCompletion(ctx, task.ID)
	require.True(t, first.Success)
	assert.True(t, first.Task.Completed)
	assert.True(t, first.Task.UpdatedAt.After(task.UpdatedAt))

	// грубые часы: время не сдвинулось, updatedAt не уменьшается
	second := f.store.ToggleCompletion(ctx, task.ID)
	require.True(t, second.Success)
	assert.False(t, second.Task.Completed)
	assert.False(t, second.Task.UpdatedAt.Before(first.Task.UpdatedAt))
	assert.Equal(t, task.CreatedAt, second.Task.CreatedAt)

	missing := f.store.ToggleCompletion(ctx, "nope")
	assert.False(t, missing.Success)
	assert.ErrorIs(t, missing.Err(), ErrNotFound)
}

func TestStore_UpdatedAtNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.create(t, titled("Skew"))
	f.clock.Advance(-time.Hour)

	res := f.store.ToggleCompletion(ctx, task.ID)
	require.True(t, res.Success)
	assert.Equal(t, task.UpdatedAt, res.Task.UpdatedAt)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, titled("a"))
	b := f.create(t, titled("b"))

	res := f.store.Delete(ctx, "does-not-exist")
	assert.True(t, res.Success)
	assert.Equal(t, []string{a.ID, b.ID}, ids(f.store.GetAll(ctx)))

	assert.True(t, f.store.Delete(ctx, a.ID).Success)
	assert.Equal(t, []string{b.ID}, ids(f.store.GetAll(ctx)))

	assert.True(t, f.store.Delete(ctx, a.ID).Success)
	_, found := f.store.GetByID(ctx, a.ID)
	assert.False(t, found)
}

func TestStore_GetAllKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t, WithIDGenerator(seqIDs("z", "a", "m")))

	f.create(t, titled("first"))
	f.create(t, titled("second"))
	f.create(t, titled("third"))

	assert.Equal(t, []string{"z", "a", "m"}, ids(f.store.GetAll(context.Background())))
}

func TestStore_ClearAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, titled("a"))

	assert.True(t, f.store.ClearAll(ctx).Success)
	assert.Empty(t, f.store.GetAll(ctx))

	_, ok, err := f.backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

// lockingBackend считает взятые блокировки ключа.
type lockingBackend struct {
	*storage.MemoryBackend
	mu    sync.Mutex
	locks int
	held  bool
}

func (b *lockingBackend) Lock(_ context.Context, key string) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locks++
	b.held = true
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.held = false
		return nil
	}, nil
}

func (b *lockingBackend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	held := b.held
	b.mu.Unlock()
	if !held {
		return errors.New("remove without lock")
	}
	return b.MemoryBackend.Remove(ctx, key)
}

func TestStore_ClearAllHoldsBackendLock(t *testing.T) {
	ctx := context.Background()
	backend := &lockingBackend{MemoryBackend: storage.NewMemoryBackend()}
	store := NewStore(backend, WithLogger(nil))

	require.True(t, store.Create(ctx, titled("a")).Success)
	require.True(t, store.ClearAll(ctx).Success)

	assert.Equal(t, 2, backend.locks)
	assert.Empty(t, store.GetAll(ctx))
}

func TestStore_ReadFailureDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.backend.Set(ctx, DefaultKey, `{not json`))

	assert.Equal(t, []Task{}, f.store.GetAll(ctx))
	assert.Nil(t, f.store.Stats(ctx))
	_, found := f.store.GetByID(ctx, "x")
	assert.False(t, found)
	assert.Empty(t, f.store.Overdue(ctx))
	assert.Contains(t, f.logs.String(), "decode @tasks")

	// мутация поверх битого блоба не затирает его
	res := f.store.Create(ctx, titled("new"))
	assert.False(t, res.Success)
	raw, _, _ := f.backend.Get(ctx, DefaultKey)
	assert.Equal(t, `{not json`, raw)
}

func TestStore_LoadRejectsMalformedRecords(t *testing.T) {
	ctx := context.Background()

	cases := map[string]string{
		"unknown priority": `[{"id":"1","title":"x","category":"work","priority":"urgent"}]`,
		"missing id":       `[{"title":"x","category":"work","priority":"low"}]`,
		"duplicate id":     `[{"id":"1","title":"x","category":"work","priority":"low"},{"id":"1","title":"y","category":"work","priority":"low"}]`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.backend.Set(ctx, DefaultKey, blob))
			assert.Empty(t, f.store.GetAll(ctx))
			assert.NotEmpty(t, f.logs.String())
		})
	}
}

func TestStore_LoadAcceptsOpenCategoryAndNullSlices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blob := `[{"id":"1","title":"x","category":"garden","priority":"low","tags":null}]`
	require.NoError(t, f.backend.Set(ctx, DefaultKey, blob))

	all := f.store.GetAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, Category("garden"), all[0].Category)
	assert.False(t, all[0].Category.Known())
	assert.Equal(t, []string{}, all[0].Tags)
}

func TestStore_WriteFailure(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: storage.NewMemoryBackend()}
	store := NewStore(backend, WithLogger(nil))
	ctx := context.Background()

	created := store.Create(ctx, titled("ok"))
	require.True(t, created.Success)

	backend.failSet = true
	for _, res := range []Result{
		store.Create(ctx, titled("lost")),
		store.Update(ctx, created.Task.ID, titled("lost")),
		store.ToggleCompletion(ctx, created.Task.ID),
		store.Delete(ctx, created.Task.ID),
	} {
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "disk full")
	}

	backend.failSet = false
	backend.failGet = true
	assert.Empty(t, store.GetAll(ctx))
	assert.False(t, store.ToggleCompletion(ctx, created.Task.ID).Success)
}

func TestStore_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.store.Create(ctx, titled("late"))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err(), context.Canceled)
}

func TestStore_PersistsJSONArray(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, titled("json"))

	raw, ok, err := f.backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	var generic []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &generic))
	require.Len(t, generic, 1)
	assert.Equal(t, task.ID, generic[0]["id"])
	assert.Contains(t, generic[0], "createdAt")
	assert.Contains(t, generic[0], "reminder")
}

func TestStore_ConcurrentCreatesThroughOneStore(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.store.Create(context.Background(), titled("parallel"))
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.GetAll(context.Background()), 20)
}

// Два независимых хранилища над бэкендом без блокировок теряют запись:
// последняя запись побеждает для всего списка целиком.
func TestStore_LastWriterWinsWithoutLocker(t *testing.T) {
	ctx := context.Background()
	backend := newBarrierBackend(2)

	seed := `[{"id":"a","title":"a","category":"work","priority":"low"},` +
		`{"id":"b","title":"b","category":"work","priority":"low"}]`
	require.NoError(t, backend.MemoryBackend.Set(ctx, DefaultKey, seed))

	s1 := NewStore(backend, WithLogger(nil))
	s2 := NewStore(backend, WithLogger(nil))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s1.ToggleCompletion(ctx, "a") }()
	go func() { defer wg.Done(); s2.ToggleCompletion(ctx, "b") }()
	wg.Wait()

	raw, _, err := backend.MemoryBackend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	var final []Task
	require.NoError(t, json.Unmarshal([]byte(raw), &final))

	completed := 0
	for _, task := range final {
		if task.Completed {
			completed++
		}
	}
	assert.Equal(t, 1, completed, "one of the two toggles is overwritten")
}

// С файловым бэкендом (flock) циклы двух хранилищ не пересекаются.
func TestStore_FileLockPreventsLostWrites(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	open := func() *Store {
		fb, err := storage.NewFileBackend(dir)
		require.NoError(t, err)
		return NewStore(fb, WithLogger(nil))
	}
	s1, s2 := open(), open()

	var wg sync.WaitGroup
	for _, s := range []*Store{s1, s2} {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(s *Store) {
				defer wg.Done()
				s.Create(ctx, titled("locked"))
			}(s)
		}
	}
	wg.Wait()

	assert.Len(t, s1.GetAll(ctx), 20)
}

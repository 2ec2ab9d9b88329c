package tasks

import (
	"context"
	"strings"
	"time"
)

// Stats содержит агрегаты по всему списку.
//
// Разбивки по приоритету и категории считаются только по незавершённым задачам.
type Stats struct {
	Total             int              `json:"total"`
	Completed         int              `json:"completed"`
	Pending           int              `json:"pending"`
	Overdue           int              `json:"overdue"`
	Today             int              `json:"today"`
	PriorityBreakdown PriorityCounts   `json:"priorityBreakdown"`
	CategoryBreakdown map[Category]int `json:"categoryBreakdown"`
}

// PriorityCounts: число незавершённых задач по уровням приоритета.
type PriorityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// filter: общий путь производных запросов, свежая загрузка + фильтр в памяти.
func (s *Store) filter(ctx context.Context, keep func(Task) bool) []Task {
	out := []Task{}
	for _, t := range s.GetAll(ctx) {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// ByCategory отдаёт задачи с точно совпадающей категорией.
func (s *Store) ByCategory(ctx context.Context, c Category) []Task {
	return s.filter(ctx, func(t Task) bool { return t.Category == c })
}

// ByPriority отдаёт задачи с точно совпадающим приоритетом.
func (s *Store) ByPriority(ctx context.Context, p Priority) []Task {
	return s.filter(ctx, func(t Task) bool { return t.Priority == p })
}

// Today отдаёт незавершённые задачи, чей календарный день Date совпадает с сегодняшним.
func (s *Store) Today(ctx context.Context) []Task {
	today := s.day(s.now())
	return s.filter(ctx, func(t Task) bool { return s.isToday(t, today) })
}

// Upcoming отдаёт незавершённые задачи с Date в [now, now+days] включительно.
func (s *Store) Upcoming(ctx context.Context, days int) []Task {
	if days <= 0 {
		days = s.upcomingDays
	}
	now := s.now()
	until := now.AddDate(0, 0, days)
	return s.filter(ctx, func(t Task) bool {
		return !t.Completed && !t.Date.Before(now) && !t.Date.After(until)
	})
}

// Overdue отдаёт незавершённые задачи, чей календарный день строго раньше сегодняшнего.
// Завершённая задача не бывает просроченной.
func (s *Store) Overdue(ctx context.Context) []Task {
	today := s.day(s.now())
	return s.filter(ctx, func(t Task) bool { return s.isOverdue(t, today) })
}

// Search ищет подстроку без учёта регистра в заголовке, описании и тегах.
// Пустая строка находит всё.
func (s *Store) Search(ctx context.Context, term string) []Task {
	term = strings.ToLower(term)
	return s.filter(ctx, func(t Task) bool {
		if strings.Contains(strings.ToLower(t.Title), term) ||
			strings.Contains(strings.ToLower(t.Description), term) {
			return true
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), term) {
				return true
			}
		}
		return false
	})
}

// DueReminders отдаёт незавершённые задачи с включённым напоминанием,
// время которого попадает в [from, to].
func (s *Store) DueReminders(ctx context.Context, from, to time.Time) []Task {
	return s.filter(ctx, func(t Task) bool {
		rt := t.Reminder.ReminderTime
		return !t.Completed && t.Reminder.Enabled && rt != nil &&
			!rt.Before(from) && !rt.After(to)
	})
}

// Stats считает агрегаты по одному снимку списка.
//
// Возвращает nil, если список не удалось прочитать.
func (s *Store) Stats(ctx context.Context) *Stats {
	tasks, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("tasks: stats: %v", err)
		return nil
	}

	today := s.day(s.now())
	st := &Stats{
		Total:             len(tasks),
		CategoryBreakdown: map[Category]int{},
	}
	for _, t := range tasks {
		if t.Completed {
			st.Completed++
			continue
		}
		st.Pending++
		if s.isOverdue(t, today) {
			st.Overdue++
		}
		if s.isToday(t, today) {
			st.Today++
		}
		switch t.Priority {
		case PriorityHigh:
			st.PriorityBreakdown.High++
		case PriorityMedium:
			st.PriorityBreakdown.Medium++
		case PriorityLow:
			st.PriorityBreakdown.Low++
		}
		st.CategoryBreakdown[t.Category]++
	}
	return st
}

// day отбрасывает время суток в часовом поясе хранилища.
func (s *Store) day(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *Store) isToday(t Task, today time.Time) bool {
	return !t.Completed && s.day(t.Date).Equal(today)
}

func (s *Store) isOverdue(t Task, today time.Time) bool {
	return !t.Completed && s.day(t.Date).Before(today)
}

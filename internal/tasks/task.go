package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category задаёт категорию задачи.
//
// UI предлагает только известные значения, но из хранилища принимается
// любая непустая строка.
type Category string

const (
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategoryShopping  Category = "shopping"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
)

// Categories перечисляет категории, которые предлагает UI, в порядке отображения.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryEducation}

// Known сообщает, входит ли категория в предлагаемый набор.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Priority задаёт приоритет задачи.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid сообщает, допустимо ли значение приоритета.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

const (
	DefaultCategory        = CategoryWork
	DefaultPriority        = PriorityMedium
	DefaultReminderMinutes = 10
)

// ReminderOptions: варианты упреждения напоминания в минутах, 1440 = сутки.
var ReminderOptions = []int{5, 10, 15, 30, 60, 120, 1440}

// Reminder хранит метаданные напоминания.
//
// ReminderTime = момент срока минус Minutes; nil, если не вычислено
// или напоминание выключено.
type Reminder struct {
	Enabled      bool       `json:"enabled"`
	Minutes      int        `json:"minutes" validate:"gte=0,lte=10080"`
	ReminderTime *time.Time `json:"reminderTime"`
}

// UnmarshalJSON считает отсутствующее "enabled" включённым напоминанием.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type plain Reminder
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Reminder(p)
	return nil
}

// Describe возвращает человекочитаемое описание упреждения.
func (r Reminder) Describe() string {
	if !r.Enabled {
		return "No reminder"
	}
	switch {
	case r.Minutes < 60:
		if r.Minutes == 1 {
			return "1 minute before"
		}
		return fmt.Sprintf("%d minutes before", r.Minutes)
	case r.Minutes == 60:
		return "1 hour before"
	case r.Minutes == 120:
		return "2 hours before"
	case r.Minutes == 1440:
		return "1 day before"
	default:
		return fmt.Sprintf("%d minutes before", r.Minutes)
	}
}

// Task — модель задачи.
//
// Весь список задач сериализуется в JSON и хранится под одним ключом.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Reminder    Reminder  `json:"reminder"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Tags        []string  `json:"tags"`
	Attachments []string  `json:"attachments"`
	Notes       string    `json:"notes"`
}

// Fields описывает частичную запись задачи для создания и обновления.
//
// nil-указатель означает "поле не передано". Reminder заменяется целиком.
type Fields struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category    *Category  `json:"category,omitempty" validate:"omitempty,min=1,max=40"`
	Priority    *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	Date        *time.Time `json:"date,omitempty"`
	Time        *string    `json:"time,omitempty" validate:"omitempty,max=40"`
	Reminder    *Reminder  `json:"reminder,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Tags        *[]string  `json:"tags,omitempty" validate:"omitempty,max=32,dive,max=64"`
	Attachments *[]string  `json:"attachments,omitempty" validate:"omitempty,max=64"`
	Notes       *string    `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// IsValidTask проверяет на стороне вызывающего, что заголовок непустой после trim.
func IsValidTask(title string) bool {
	return strings.TrimSpace(title) != ""
}

// newTask собирает новую задачу, подставляя значения по умолчанию.
func newTask(id string, f Fields, now time.Time, loc *time.Location) Task {
	t := Task{
		ID:          id,
		Category:    DefaultCategory,
		Priority:    DefaultPriority,
		Date:        now,
		Time:        now.In(loc).Format(clockLayout),
		Reminder:    Reminder{Enabled: true, Minutes: DefaultReminderMinutes},
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        []string{},
		Attachments: []string{},
	}
	applyFields(&t, f)
	if f.Reminder != nil && t.Reminder.Minutes == 0 {
		t.Reminder.Minutes = DefaultReminderMinutes
	}
	t.syncReminder(loc)
	return t
}

// applyFields накладывает переданные поля поверх задачи (shallow merge).
func applyFields(t *Task, f Fields) {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Date != nil {
		t.Date = *f.Date
	}
	if f.Time != nil {
		t.Time = *f.Time
	}
	if f.Reminder != nil {
		t.Reminder = *f.Reminder
	}
	if f.Completed != nil {
		t.Completed = *f.Completed
	}
	if f.Tags != nil {
		t.Tags = append([]string{}, *f.Tags...)
	}
	if f.Attachments != nil {
		t.Attachments = append([]string{}, *f.Attachments...)
	}
	if f.Notes != nil {
		t.Notes = *f.Notes
	}
}

// normalize убирает null-срезы, чтобы в JSON всегда были массивы.
func (t *Task) normalize() {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
}

// check проверяет запись, прочитанную из хранилища.
func (t Task) check() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("task without id")
	case !t.Priority.Valid():
		return fmt.Errorf("task %s: unknown priority %q", t.ID, t.Priority)
	case t.Category == "":
		return fmt.Errorf("task %s: empty category", t.ID)
	case t.Reminder.Minutes < 0:
		return fmt.Errorf("task %s: negative reminder minutes", t.ID)
	}
	return nil
}

package tasks

import (
	"strings"
	"time"
)

const clockLayout = "15:04"

// parseClock разбирает поле Time: "15:04", "15:04:05" или полный RFC 3339
// (старые клиенты присылали время как ISO-дату).
func parseClock(raw string, loc *time.Location) (h, m, s int, ok bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{clockLayout, "15:04:05"} {
		if c, err := time.Parse(layout, raw); err == nil {
			return c.Hour(), c.Minute(), c.Second(), true
		}
	}
	if c, err := time.Parse(time.RFC3339, raw); err == nil {
		c = c.In(loc)
		return c.Hour(), c.Minute(), c.Second(), true
	}
	return 0, 0, 0, false
}

// DueAt возвращает момент срока: календарный день Date + часы из Time.
//
// Если Time не разбирается, берётся сам Date.
func (t Task) DueAt(loc *time.Location) time.Time {
	d := t.Date.In(loc)
	h, m, s, ok := parseClock(t.Time, loc)
	if !ok {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, loc)
}

// syncReminder поддерживает ReminderTime в согласованном состоянии.
func (t *Task) syncReminder(loc *time.Location) {
	if !t.Reminder.Enabled {
		t.Reminder.ReminderTime = nil
		return
	}
	if t.Reminder.ReminderTime != nil {
		return
	}
	at := t.DueAt(loc).Add(-time.Duration(t.Reminder.Minutes) * time.Minute)
	t.Reminder.ReminderTime = &at
}

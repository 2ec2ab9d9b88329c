// Package tasks: модель задачи, хранилище и HTTP-мост к UI.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	appMiddleware "taskkeeper/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Handler — HTTP слой модуля задач.
//
// Здесь лежит всё, что относится к HTTP:
// роуты, парсинг JSON, коды ответов. Состояние живёт в Store.
type Handler struct {
	store   *Store
	timeout time.Duration
}

// NewHandler создаёт Handler поверх хранилища.
// timeout ограничивает обработку одного запроса (0 отключает таймаут).
func NewHandler(store *Store, timeout time.Duration) *Handler {
	return &Handler{store: store, timeout: timeout}
}

// Register навешивает роуты задач на r (обычно это /api/v1).
func (h *Handler) Register(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(appMiddleware.JSONHeaderMiddleware)
		if h.timeout > 0 {
			r.Use(appMiddleware.RequestTimeoutMiddleware(h.timeout))
		}

		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Delete("/", h.clearTasks)

		r.Get("/today", h.todayTasks)
		r.Get("/upcoming", h.upcomingTasks)
		r.Get("/overdue", h.overdueTasks)
		r.Get("/reminders", h.dueReminders)
		r.Get("/stats", h.stats)

		r.Get("/{id}", h.getTaskByID)
		r.Put("/{id}", h.updateTask)
		r.Patch("/{id}", h.updateTask)
		r.Post("/{id}/toggle", h.toggleTask)
		r.Delete("/{id}", h.deleteTask)
	})
}

// Router собирает самостоятельный роутер /api/v1/tasks (удобно в тестах).
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", h.Register)
	return r
}

// listTasks обрабатывает GET /tasks
//
// Без параметров отдаёт весь список. ?category=, ?priority=, ?q= выбирают
// соответствующий запрос (проверяются в этом порядке).
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var out []Task
	switch {
	case q.Has("category"):
		out = h.store.ByCategory(ctx, Category(q.Get("category")))
	case q.Has("priority"):
		p := Priority(q.Get("priority"))
		if !p.Valid() {
			http.Error(w, "Invalid priority. Use high, medium or low", http.StatusBadRequest)
			return
		}
		out = h.store.ByPriority(ctx, p)
	case q.Has("q"):
		out = h.store.Search(ctx, q.Get("q"))
	default:
		out = h.store.GetAll(ctx)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) todayTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Today(r.Context()))
}

func (h *Handler) overdueTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Overdue(r.Context()))
}

// upcomingTasks обрабатывает GET /tasks/upcoming?days=N
func (h *Handler) upcomingTasks(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, h.store.Upcoming(r.Context(), days))
}

// dueReminders обрабатывает GET /tasks/reminders?from=&to= (RFC 3339).
//
// По умолчанию окно равно ближайшим суткам.
func (h *Handler) dueReminders(w http.ResponseWriter, r *http.Request) {
	from := h.store.now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid from. Use RFC 3339", http.StatusBadRequest)
			return
		}
		from = t
	}
	to := from.Add(24 * time.Hour)
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid to. Use RFC 3339", http.StatusBadRequest)
			return
		}
		to = t
	}
	writeJSON(w, http.StatusOK, h.store.DueReminders(r.Context(), from, to))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st := h.store.Stats(r.Context())
	if st == nil {
		http.Error(w, "Failed to load tasks", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// createTask обрабатывает POST /tasks
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var f Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	res := h.store.Create(r.Context(), f)
	h.writeResult(w, http.StatusCreated, res)
}

// getTaskByID обрабатывает GET /tasks/{id}
func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request) {
	task, found := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if !found {
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// updateTask обрабатывает PUT/PATCH /tasks/{id}
//
// Переданные поля накладываются поверх существующих.
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var f Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	res := h.store.Update(r.Context(), chi.URLParam(r, "id"), f)
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) toggleTask(w http.ResponseWriter, r *http.Request) {
	res := h.store.ToggleCompletion(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, http.StatusOK, res)
}

// deleteTask обрабатывает DELETE /tasks/{id}. Удаление идемпотентно.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	res := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) clearTasks(w http.ResponseWriter, r *http.Request) {
	res := h.store.ClearAll(r.Context())
	h.writeResult(w, http.StatusOK, res)
}

// writeResult отдаёт Result, подбирая код ответа по исходной ошибке.
func (h *Handler) writeResult(w http.ResponseWriter, okStatus int, res Result) {
	if res.Success {
		writeJSON(w, okStatus, res)
		return
	}

	err := res.Err()
	if h.handleContextError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, res)
	case errors.Is(err, ErrInvalidTask):
		writeJSON(w, http.StatusBadRequest, res)
	default:
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

// handleContextError делает понятную обработку ошибок отмены/таймаута.
func (h *Handler) handleContextError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		// Клиент ушёл или сервер останавливается — отвечать уже некому.
		return true
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request timeout", http.StatusRequestTimeout) // 408
		return true
	default:
		return false
	}
}

// writeJSON пишет код ответа и тело. Content-Type выставляет JSONHeaderMiddleware.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

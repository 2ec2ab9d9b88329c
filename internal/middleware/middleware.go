// Package middleware содержит HTTP‑middleware локального моста к хранилищу задач:
// журнал запросов, заголовок JSON и таймаут на обработку.
package middleware

import (
	"log"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// LoggingMiddleware пишет в лог метод, путь, код ответа и длительность.
//
// Логирование идёт "после" next.ServeHTTP, поэтому в duration входит
// вся обработка запроса обработчиком и вложенными middleware.
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Printf("%s %s -> %d served in %v", r.Method, r.URL, ww.Status(), time.Since(start))
		})
	}
}

// JSONHeaderMiddleware проставляет заголовок Content-Type для JSON‑ответов.
//
// Заголовки нужно выставлять ДО записи тела ответа (до w.Write / Encode).
func JSONHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

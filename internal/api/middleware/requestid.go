// requestid.go — middleware присвоения идентификатора запроса.
// Пробрасывает входящий X-Request-Id или генерирует новый UUID,
// кладёт значение в контекст и заголовок ответа.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// ContextKeyRequestID — идентификатор запроса в контексте.
	ContextKeyRequestID contextKey = "request_id"

	// requestIDHeader — имя заголовка запроса/ответа.
	requestIDHeader = "X-Request-Id"
)

// RequestID возвращает middleware, присваивающий каждому запросу идентификатор.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, id)
			ctx := context.WithValue(r.Context(), ContextKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext извлекает идентификатор запроса из контекста.
// Возвращает пустую строку, если идентификатор не найден.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

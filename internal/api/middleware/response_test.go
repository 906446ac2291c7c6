// response_test.go — тесты общей обёртки http.ResponseWriter
// и использующих её middleware логирования и метрик.
package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestResponseWriter_CapturesStatusAndBytes проверяет, что обёртка
// фиксирует статус-код и объём записанного тела.
func TestResponseWriter_CapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	if _, err := rw.Write([]byte("short and stout")); err != nil {
		t.Fatalf("Write() вернул ошибку: %v", err)
	}

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, ожидается %d", rw.statusCode, http.StatusTeapot)
	}
	if rw.written != int64(len("short and stout")) {
		t.Errorf("written = %d, ожидается %d", rw.written, len("short and stout"))
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() должен возвращать оригинальный ResponseWriter")
	}
}

// TestResponseWriter_DefaultStatus проверяет, что без явного WriteHeader
// обёртка считает статус 200.
func TestResponseWriter_DefaultStatus(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() вернул ошибку: %v", err)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, ожидается %d", rw.statusCode, http.StatusOK)
	}
}

// TestLevelForStatus проверяет выбор уровня логирования по статус-коду.
func TestLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusNoContent, slog.LevelInfo},
		{http.StatusMovedPermanently, slog.LevelInfo},
		{http.StatusBadRequest, slog.LevelWarn},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusBadGateway, slog.LevelError},
	}

	for _, tt := range tests {
		if got := levelForStatus(tt.status); got != tt.want {
			t.Errorf("levelForStatus(%d) = %v, ожидается %v", tt.status, got, tt.want)
		}
	}
}

// TestRequestLogger_LogsStatusAndBytes проверяет, что middleware логирования
// видит статус и размер ответа через общую обёртку.
func TestRequestLogger_LogsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, `"status":404`) {
		t.Errorf("лог не содержит статус 404: %s", out)
	}
	if !strings.Contains(out, `"bytes":4`) {
		t.Errorf("лог не содержит размер ответа: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("статус 404 должен логироваться уровнем WARN: %s", out)
	}
}

// TestMetricsMiddleware_PassesStatus проверяет, что middleware метрик
// не искажает ответ обработчика.
func TestMetricsMiddleware_PassesStatus(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/data", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("statusCode = %d, ожидается %d", rec.Code, http.StatusCreated)
	}
	if rec.Body.String() != "created" {
		t.Errorf("тело ответа = %q, ожидается %q", rec.Body.String(), "created")
	}
}

// TestNormalizePath проверяет схлопывание неизвестных путей в "other".
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/data", "/api/data"},
		{"/api/history", "/api/history"},
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/data/../../etc/passwd", "other"},
		{"/unknown", "other"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
		}
	}
}

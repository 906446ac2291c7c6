package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/enerstat/dashboard-module/internal/api/handlers"
	"github.com/bigkaa/enerstat/dashboard-module/internal/api/middleware"
	"github.com/bigkaa/enerstat/dashboard-module/internal/config"
	"github.com/bigkaa/enerstat/dashboard-module/internal/repository"
	"github.com/bigkaa/enerstat/dashboard-module/internal/service"
)

const (
	testKeyID    = "test-key"
	testIssuer   = "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_TEST"
	testAudience = "test-client-id"
)

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// stubRepo — минимальный SnapshotRepository для сквозных тестов.
type stubRepo struct {
	docs map[string][]byte
}

func (s *stubRepo) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *stubRepo) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.docs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return data, nil
}

// testStack собирает полный HTTP-стек: request-id → metrics → logging →
// JWT → router, как в main. Возвращает handler и RSA ключ для подписи
// тестовых токенов.
func testStack(t *testing.T, docs map[string][]byte) (http.Handler, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatal("не удалось создать keyfunc из JWKS JSON:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	jwtAuth := middleware.NewJWTAuthWithKeyfunc(kf, testIssuer, testAudience, []string{"admin"}, 30*time.Second, logger)

	telemetry := service.NewTelemetryService(&stubRepo{docs: docs}, "latest/", "historical/", logger)
	healthHandler := handlers.NewHealthHandler(nil, nil)
	apiHandler := handlers.NewAPIHandler(healthHandler, telemetry, 5, 50, logger)

	cfg := &config.Config{
		Port:             8040,
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
	}

	srv := New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		JWTAuthWithExclusions(jwtAuth.Middleware(), "/health/", "/metrics"),
	)

	return srv.httpServer.Handler, key
}

// signToken подписывает тестовый токен указанным ключом.
func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

// adminClaims возвращает claims валидного admin-токена.
func adminClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":            "admin-sub",
		"iss":            testIssuer,
		"aud":            testAudience,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
		"email":          "admin@example.com",
		"cognito:groups": []string{"admin"},
	}
}

// TestServer_DataEndToEnd проверяет полный путь запроса:
// подписанный токен → JWT middleware → handler → конверт ответа.
func TestServer_DataEndToEnd(t *testing.T) {
	docs := map[string][]byte{
		"latest/device-E-001.json": []byte(`{"device_id":"E-001","total_kwh":1.5}`),
		"latest/device-E-002.json": []byte(`{"device_id":"E-002","total_kwh":2.5}`),
	}
	handler, key := testStack(t, docs)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, adminClaims()))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Role  string `json:"role"`
		Items []struct {
			DeviceID string `json:"device_id"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if resp.Role != "admin" || resp.Count != 2 {
		t.Errorf("неожиданный конверт: %s", rec.Body.String())
	}
	if len(resp.Items) != 2 || resp.Items[0].DeviceID != "E-001" {
		t.Errorf("неожиданные items: %s", rec.Body.String())
	}

	// Request-id middleware проставляет заголовок ответа
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("ожидался заголовок X-Request-Id в ответе")
	}
}

// TestServer_DataWithoutToken проверяет 401 на API без токена.
func TestServer_DataWithoutToken(t *testing.T) {
	handler, _ := testStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Errorf("ожидалось тело ошибки UNAUTHORIZED: %s", rec.Body.String())
	}
}

// TestServer_HistoryUserForbidden проверяет 403 истории для user
// через полный стек.
func TestServer_HistoryUserForbidden(t *testing.T) {
	handler, key := testStack(t, nil)

	claims := jwt.MapClaims{
		"sub":              "user-sub",
		"iss":              testIssuer,
		"aud":              testAudience,
		"exp":              time.Now().Add(time.Hour).Unix(),
		"iat":              time.Now().Unix(),
		"email":            "user@example.com",
		"cognito:groups":   []string{"tenants"},
		"custom:device_id": "E-042",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, claims))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ожидался статус 403, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestServer_HealthWithoutToken проверяет, что health endpoints
// исключены из JWT middleware.
func TestServer_HealthWithoutToken(t *testing.T) {
	handler, _ := testStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"service":"dashboard-module"`) {
		t.Errorf("неожиданное тело liveness: %s", rec.Body.String())
	}
}

// TestServer_MetricsWithoutToken проверяет доступность /metrics без токена.
func TestServer_MetricsWithoutToken(t *testing.T) {
	handler, _ := testStack(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestJWTAuthWithExclusions проверяет срабатывание исключений по префиксу.
func TestJWTAuthWithExclusions(t *testing.T) {
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := JWTAuthWithExclusions(blocked, "/health/", "/metrics")(inner)

	tests := []struct {
		path     string
		expected int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/data", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		if rec.Code != tt.expected {
			t.Errorf("%s: ожидался статус %d, получен %d", tt.path, tt.expected, rec.Code)
		}
	}
}

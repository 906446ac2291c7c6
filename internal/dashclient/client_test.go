package dashclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockServer создаёт mock HTTP-сервер.
func setupMockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newTestClient создаёт клиент, указывающий на mock-серверы.
func newTestClient(apiURL, cognitoURL string) *Client {
	return New(apiURL, cognitoURL, "test-client-id", "http://localhost:8040/callback", 5*time.Second, testLogger())
}

// TestExchangeCode проверяет обмен authorization code на токены.
func TestExchangeCode(t *testing.T) {
	cognito := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("разбор формы: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q, ожидался authorization_code", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") != "test-code" {
			t.Errorf("code = %q, ожидался test-code", r.PostForm.Get("code"))
		}
		if r.PostForm.Get("client_id") != "test-client-id" {
			t.Errorf("client_id = %q, ожидался test-client-id", r.PostForm.Get("client_id"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{
			IDToken:     "id-token-value",
			AccessToken: "access-token-value",
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	})

	client := newTestClient("", cognito.URL)
	tokens, err := client.ExchangeCode(context.Background(), "test-code")
	if err != nil {
		t.Fatalf("ExchangeCode ошибка: %v", err)
	}

	// id_token предпочтительнее access_token
	if tokens.BearerToken() != "id-token-value" {
		t.Errorf("BearerToken = %q, ожидался id-token-value", tokens.BearerToken())
	}
	if tokens.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, ожидалось 3600", tokens.ExpiresIn)
	}
}

// TestExchangeCode_ErrorStatus проверяет ошибку token endpoint.
func TestExchangeCode_ErrorStatus(t *testing.T) {
	cognito := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	client := newTestClient("", cognito.URL)
	if _, err := client.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("ожидалась ошибка, получен nil")
	}
}

// TestAuthorizeURL проверяет построение URL страницы входа.
func TestAuthorizeURL(t *testing.T) {
	client := New("http://api", "https://auth.example.com", "cid", "http://cb", time.Second, testLogger())

	u := client.AuthorizeURL()
	if !strings.HasPrefix(u, "https://auth.example.com/oauth2/authorize?") {
		t.Errorf("неожиданный префикс URL: %s", u)
	}
	for _, part := range []string{"client_id=cid", "response_type=code", "redirect_uri=http%3A%2F%2Fcb"} {
		if !strings.Contains(u, part) {
			t.Errorf("URL не содержит %s: %s", part, u)
		}
	}
}

// TestGetData проверяет запрос /api/data с Bearer-токеном.
func TestGetData(t *testing.T) {
	kwh := 12.5
	api := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/data" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("неожиданный Authorization: %q", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DataResponse{
			Role:  "admin",
			Items: []model.DeviceRecord{{DeviceID: "E-001", TotalKWh: &kwh}},
			Count: 1,
		})
	})

	client := newTestClient(api.URL, "")
	client.SetToken("test-token")

	data, err := client.GetData(context.Background())
	if err != nil {
		t.Fatalf("GetData ошибка: %v", err)
	}

	if data.Role != "admin" || data.Count != 1 {
		t.Errorf("неожиданный ответ: %+v", data)
	}
	if len(data.Items) != 1 || data.Items[0].DeviceID != "E-001" {
		t.Errorf("неожиданные items: %+v", data.Items)
	}
}

// TestGetHistory_FoldersLimit проверяет передачу folders_limit.
func TestGetHistory_FoldersLimit(t *testing.T) {
	api := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("folders_limit"); got != "3" {
			t.Errorf("folders_limit = %q, ожидалось 3", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DataResponse{Role: "admin", Items: []model.DeviceRecord{}, Count: 0})
	})

	client := newTestClient(api.URL, "")
	client.SetToken("test-token")

	if _, err := client.GetHistory(context.Background(), 3); err != nil {
		t.Fatalf("GetHistory ошибка: %v", err)
	}
}

// TestGetProfile_APIError проверяет декодирование тела ошибки {code,detail}.
func TestGetProfile_APIError(t *testing.T) {
	api := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":"FORBIDDEN","detail":"Недостаточно прав для доступа к данным"}`))
	})

	client := newTestClient(api.URL, "")
	client.SetToken("test-token")

	_, err := client.GetProfile(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
	if !strings.Contains(err.Error(), "FORBIDDEN") {
		t.Errorf("ошибка должна содержать код FORBIDDEN: %v", err)
	}
	if !strings.Contains(err.Error(), "Недостаточно прав") {
		t.Errorf("ошибка должна содержать detail: %v", err)
	}
}

// Пакет dashclient — HTTP-клиент Dashboard Module API.
// Обменивает authorization code на токены через Cognito hosted UI
// и выполняет типизированные запросы к /api/* с Bearer-токеном.
// Используется CLI-фронтендом dashboard-cli.
package dashclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
)

// Profile — ответ GET /api/profile.
type Profile struct {
	// Email — email вызывающего
	Email string `json:"email"`
	// Role — вычисленная роль (admin, user, unknown)
	Role string `json:"role"`
	// DeviceID — device claim, nil если отсутствует
	DeviceID *string `json:"device_id"`
}

// DataResponse — конверт ответа /api/data и /api/history.
type DataResponse struct {
	// Role — роль вызывающего
	Role string `json:"role"`
	// DeviceID — device claim вызывающего
	DeviceID *string `json:"device_id"`
	// Items — нормализованные записи
	Items []model.DeviceRecord `json:"items"`
	// Count — количество записей
	Count int `json:"count"`
}

// TokenResponse — ответ token endpoint Cognito.
type TokenResponse struct {
	// IDToken — id_token (предпочитаемый для Authorization: Bearer)
	IDToken string `json:"id_token"`
	// AccessToken — access_token (fallback при отсутствии id_token)
	AccessToken string `json:"access_token"`
	// ExpiresIn — время жизни в секундах
	ExpiresIn int `json:"expires_in"`
	// TokenType — тип токена (Bearer)
	TokenType string `json:"token_type"`
}

// BearerToken возвращает токен для заголовка Authorization:
// id_token, при его отсутствии — access_token.
func (t *TokenResponse) BearerToken() string {
	if t.IDToken != "" {
		return t.IDToken
	}
	return t.AccessToken
}

// apiError — тело ошибки Dashboard Module API.
type apiError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Client — HTTP-клиент Dashboard Module API.
type Client struct {
	httpClient    *http.Client
	apiURL        string
	cognitoDomain string
	clientID      string
	redirectURI   string
	token         string
	logger        *slog.Logger
}

// New создаёт клиент Dashboard Module API.
// apiURL — базовый URL backend (например, http://localhost:8040).
// cognitoDomain — домен hosted UI Cognito (https://<domain>.auth.<region>.amazoncognito.com).
// clientID — app client id, redirectURI — зарегистрированный callback URL.
func New(
	apiURL string,
	cognitoDomain string,
	clientID string,
	redirectURI string,
	timeout time.Duration,
	logger *slog.Logger,
) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		apiURL:        strings.TrimRight(apiURL, "/"),
		cognitoDomain: strings.TrimRight(cognitoDomain, "/"),
		clientID:      clientID,
		redirectURI:   strings.TrimRight(redirectURI, "/"),
		logger:        logger.With(slog.String("component", "dash_client")),
	}
}

// SetToken задаёт Bearer-токен для последующих API-запросов.
func (c *Client) SetToken(token string) {
	c.token = token
}

// AuthorizeURL возвращает URL страницы входа Cognito hosted UI
// (authorization code flow, scope openid email profile).
func (c *Client) AuthorizeURL() string {
	q := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"redirect_uri":  {c.redirectURI},
	}
	return c.cognitoDomain + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode обменивает authorization code на токены
// через token endpoint Cognito.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	tokenURL := c.cognitoDomain + "/oauth2/token"

	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {c.clientID},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации Cognito
	if err != nil {
		return nil, fmt.Errorf("запрос token к Cognito: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Cognito token endpoint вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("декодирование token response: %w", err)
	}

	if tokenResp.BearerToken() == "" {
		return nil, fmt.Errorf("ответ Cognito не содержит ни id_token, ни access_token")
	}

	c.logger.Debug("Токены получены от Cognito",
		slog.Int("expires_in", tokenResp.ExpiresIn),
	)

	return &tokenResp, nil
}

// GetProfile запрашивает GET /api/profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, "/api/profile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetData запрашивает GET /api/data.
func (c *Client) GetData(ctx context.Context) (*DataResponse, error) {
	var data DataResponse
	if err := c.getJSON(ctx, "/api/data", &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetHistory запрашивает GET /api/history?folders_limit=N.
// foldersLimit <= 0 — параметр не передаётся, действует значение
// по умолчанию сервера.
func (c *Client) GetHistory(ctx context.Context, foldersLimit int) (*DataResponse, error) {
	path := "/api/history"
	if foldersLimit > 0 {
		path += "?folders_limit=" + url.QueryEscape(fmt.Sprintf("%d", foldersLimit))
	}

	var data DataResponse
	if err := c.getJSON(ctx, path, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// getJSON выполняет GET-запрос с Bearer-токеном и декодирует JSON-ответ.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Detail != "" {
			return fmt.Errorf("API вернул статус %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Detail)
		}
		return fmt.Errorf("API вернул статус %d для %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", path, err)
	}

	return nil
}

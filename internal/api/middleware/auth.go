// auth.go — JWT middleware для аутентификации Dashboard Module.
// Валидирует Cognito JWT (RS256, issuer, audience) через JWKS user pool,
// извлекает claims и строит Identity: email, роль из cognito:groups,
// device claim. Авторизация по scope выполняется сервисным слоем.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/enerstat/dashboard-module/internal/api/errors"
	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity — Identity вызывающего в контексте запроса.
	ContextKeyIdentity contextKey = "identity"
)

// groupList — claim cognito:groups, который Cognito отдаёт то списком,
// то одиночной строкой. Нормализуется к списку при декодировании.
type groupList []string

// UnmarshalJSON принимает список строк, одиночную строку или null.
func (g *groupList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*g = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*g = nil
		} else {
			*g = []string{single}
		}
		return nil
	}

	return fmt.Errorf("cognito:groups: ожидался список или строка, получено %s", string(data))
}

// cognitoClaims — raw claims из Cognito JWT для парсинга.
type cognitoClaims struct {
	jwt.RegisteredClaims
	// Email — электронная почта.
	Email string `json:"email,omitempty"`
	// PreferredUsername — имя пользователя (OIDC-стандартный claim).
	PreferredUsername string `json:"preferred_username,omitempty"`
	// CognitoUsername — имя пользователя в user pool.
	CognitoUsername string `json:"cognito:username,omitempty"`
	// Groups — группы пользователя (список или строка).
	Groups groupList `json:"cognito:groups,omitempty"`
	// DeviceID — кастомный device claim.
	DeviceID string `json:"custom:device_id,omitempty"`
	// DeviceIDAlt — альтернативное имя device claim (старые пулы).
	DeviceIDAlt string `json:"device_id,omitempty"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Cognito.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	adminGroups []string
	issuer      string
	audience    string
	jwtLeeway   time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Cognito user pool.
// jwksURL — URL к JWKS endpoint (issuer + /.well-known/jwks.json).
// issuer — ожидаемый iss, audience — ожидаемый aud (client id приложения).
// adminGroups — группы, дающие роль admin.
// refreshInterval = 0 — ключи запрашиваются лениво при первой валидации
// и живут до перезапуска процесса.
func NewJWTAuth(
	jwksURL string,
	issuer string,
	audience string,
	adminGroups []string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}

	// JWKS Storage с ленивой первой загрузкой.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Cognito ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, audience, adminGroups, jwtLeeway, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовым keyfunc.
// Используется в тестах с локально сгенерированным JWKS.
func NewJWTAuthWithKeyfunc(
	k keyfunc.Keyfunc,
	issuer string,
	audience string,
	adminGroups []string,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:        k,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		adminGroups: adminGroups,
		issuer:      issuer,
		audience:    audience,
		jwtLeeway:   jwtLeeway,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), issuer и audience,
// строит Identity и помещает её в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization: Bearer <token>")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Парсинг и валидация JWT через JWKS
			rawClaims := &cognitoClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}
			if j.audience != "" {
				parserOpts = append(parserOpts, jwt.WithAudience(j.audience))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			// Извлекаем sub
			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			identity := j.buildIdentity(rawClaims)

			// Помещаем Identity в контекст
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildIdentity формирует Identity из raw Cognito claims.
// Здесь решения об отказе не принимаются: роль unknown и отсутствующий
// device claim — валидные выходы, отказ выносит сервисный слой.
func (j *JWTAuth) buildIdentity(raw *cognitoClaims) *model.Identity {
	identity := &model.Identity{
		Subject: raw.Subject,
		Email:   resolveEmail(raw),
		Role:    resolveRole(raw.Groups, j.adminGroups),
	}

	if deviceID := firstNonEmpty(raw.DeviceID, raw.DeviceIDAlt); deviceID != "" {
		identity.DeviceID = &deviceID
	}

	return identity
}

// resolveEmail выбирает email по приоритету claims:
// email → preferred_username → cognito:username → "unknown".
func resolveEmail(raw *cognitoClaims) string {
	if email := firstNonEmpty(raw.Email, raw.PreferredUsername, raw.CognitoUsername); email != "" {
		return email
	}
	return "unknown"
}

// resolveRole определяет роль по группам Cognito.
// admin — если группы пересекаются с adminGroups;
// user — если список групп непуст;
// unknown — пустой или отсутствующий claim.
func resolveRole(groups []string, adminGroups []string) model.Role {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		if adminSet[g] {
			return model.RoleAdmin
		}
	}
	if len(groups) > 0 {
		return model.RoleUser
	}
	return model.RoleUnknown
}

// firstNonEmpty возвращает первое непустое значение.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// --- Context helpers ---

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil, если Identity не найдена.
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*model.Identity)
	return identity
}

// --- ReadinessChecker для Cognito ---

// CognitoReadinessChecker — проверка доступности Cognito через JWKS endpoint.
type CognitoReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewCognitoReadinessChecker создаёт checker доступности Cognito.
func NewCognitoReadinessChecker(jwksURL string, readinessTimeout time.Duration) *CognitoReadinessChecker {
	return &CognitoReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: readinessTimeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Cognito.
func (c *CognitoReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, c.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := c.client.Do(req) //nolint:gosec // G704: URL из конфигурации Cognito
	if err != nil {
		return statusFail, fmt.Sprintf("Cognito JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Cognito JWKS вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Cognito JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Cognito JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}

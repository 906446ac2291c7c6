// Пакет config — загрузка и валидация конфигурации Dashboard Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Dashboard Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Cognito / JWT ---

	// Issuer Cognito user pool (https://cognito-idp.<region>.amazonaws.com/<poolId>)
	CognitoIssuer string
	// Client ID приложения Cognito — ожидаемый aud в JWT
	CognitoClientID string
	// URL JWKS endpoint (выводится из issuer)
	JWKSURL string
	// Таймаут HTTP-клиента JWKS (по умолчанию 10s)
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS-ключей.
	// 0 — без обновления: ключи живут до перезапуска процесса.
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT (по умолчанию 30s)
	JWTLeeway time.Duration
	// Группы Cognito, дающие роль admin (по умолчанию "admin")
	AdminGroups []string

	// --- Snapshot Store (Azure Blob) ---

	// Connection string Azure Storage Account
	AzureConnectionString string
	// Имя blob-контейнера со snapshot-документами
	AzureContainer string
	// Базовый URL blob endpoint (для dephealth-мониторинга, опционально)
	AzureBlobEndpoint string
	// Префикс актуальных документов (по умолчанию "latest/")
	LatestPrefix string
	// Префикс исторических snapshot-папок (по умолчанию "historical/")
	HistoricalPrefix string
	// Таймаут одной операции чтения из хранилища (по умолчанию 30s)
	StorageTimeout time.Duration

	// --- История ---

	// Количество snapshot-папок по умолчанию для /api/history (по умолчанию 5)
	HistoryDefaultFolders int
	// Максимально допустимое значение folders_limit (по умолчанию 50)
	HistoryMaxFolders int

	// --- Dephealth ---

	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей (по умолчанию 30s)
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("DM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}

	// DM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("DM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("DM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("DM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("DM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Cognito / JWT ---

	// DM_COGNITO_ISSUER — issuer user pool (обязательная)
	cfg.CognitoIssuer, err = getEnvRequired("DM_COGNITO_ISSUER")
	if err != nil {
		return nil, err
	}
	cfg.CognitoIssuer = strings.TrimRight(cfg.CognitoIssuer, "/")

	// DM_COGNITO_CLIENT_ID — app client id, проверяется как aud (обязательная)
	cfg.CognitoClientID, err = getEnvRequired("DM_COGNITO_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	// JWKS endpoint Cognito всегда по фиксированному пути от issuer
	cfg.JWKSURL = cfg.CognitoIssuer + "/.well-known/jwks.json"

	cfg.JWKSClientTimeout, err = getEnvDuration("DM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// DM_JWKS_REFRESH_INTERVAL — 0 отключает фоновое обновление ключей
	cfg.JWKSRefreshInterval, err = getEnvDuration("DM_JWKS_REFRESH_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("DM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("DM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_JWT_LEEWAY: %w", err)
	}

	// DM_ADMIN_GROUPS — группы Cognito с ролью admin, через запятую
	cfg.AdminGroups = splitCSV(getEnvDefault("DM_ADMIN_GROUPS", "admin"))
	if len(cfg.AdminGroups) == 0 {
		return nil, fmt.Errorf("DM_ADMIN_GROUPS: список групп пуст")
	}

	// --- Snapshot Store ---

	// DM_AZURE_CONNECTION_STRING — connection string Storage Account (обязательная)
	cfg.AzureConnectionString, err = getEnvRequired("DM_AZURE_CONNECTION_STRING")
	if err != nil {
		return nil, err
	}

	// DM_AZURE_CONTAINER — имя контейнера (обязательная)
	cfg.AzureContainer, err = getEnvRequired("DM_AZURE_CONTAINER")
	if err != nil {
		return nil, err
	}

	// DM_AZURE_BLOB_ENDPOINT — URL для dephealth HTTP-проверки (опционально)
	cfg.AzureBlobEndpoint = getEnvDefault("DM_AZURE_BLOB_ENDPOINT", "")

	cfg.LatestPrefix = getEnvDefault("DM_LATEST_PREFIX", "latest/")
	cfg.HistoricalPrefix = getEnvDefault("DM_HISTORICAL_PREFIX", "historical/")

	cfg.StorageTimeout, err = getEnvDuration("DM_STORAGE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_STORAGE_TIMEOUT: %w", err)
	}

	// --- История ---

	cfg.HistoryDefaultFolders, err = getEnvInt("DM_HISTORY_DEFAULT_FOLDERS", 5)
	if err != nil {
		return nil, fmt.Errorf("DM_HISTORY_DEFAULT_FOLDERS: %w", err)
	}
	if cfg.HistoryDefaultFolders < 1 {
		return nil, fmt.Errorf("DM_HISTORY_DEFAULT_FOLDERS: значение должно быть >= 1")
	}

	cfg.HistoryMaxFolders, err = getEnvInt("DM_HISTORY_MAX_FOLDERS", 50)
	if err != nil {
		return nil, fmt.Errorf("DM_HISTORY_MAX_FOLDERS: %w", err)
	}
	if cfg.HistoryMaxFolders < cfg.HistoryDefaultFolders {
		return nil, fmt.Errorf("DM_HISTORY_MAX_FOLDERS: значение должно быть >= DM_HISTORY_DEFAULT_FOLDERS")
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("DM_DEPHEALTH_GROUP", "enerstat")

	cfg.DephealthCheckInterval, err = getEnvDuration("DM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// splitCSV разбирает список значений через запятую, отбрасывая пустые элементы.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

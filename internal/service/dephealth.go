// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Dashboard Module мониторит:
//   - Cognito — HTTP checker к JWKS endpoint user pool (critical)
//   - Azure Blob — HTTP checker к blob endpoint Storage Account
//     (добавляется только при заданном DM_AZURE_BLOB_ENDPOINT)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("dashboard-module")
//   - group — имя группы в метриках (DM_DEPHEALTH_GROUP)
//   - cognitoIssuer — issuer user pool; проверяется JWKS path от него
//   - blobEndpoint — URL blob endpoint (пустая строка — зависимость не добавляется)
//   - checkInterval — интервал проверки зависимостей (DM_DEPHEALTH_CHECK_INTERVAL)
//   - isEntry — при true добавляет лейбл isentry=yes ко всем зависимостям (DEPHEALTH_ISENTRY)
func NewDephealthService(
	serviceID string,
	group string,
	cognitoIssuer string,
	blobEndpoint string,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, cognitoIssuer, blobEndpoint, checkInterval, isEntry, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	cognitoIssuer string,
	blobEndpoint string,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, cognitoIssuer, blobEndpoint, checkInterval, isEntry,
		logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	serviceID string,
	group string,
	cognitoIssuer string,
	blobEndpoint string,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	// Опции зависимости Cognito: HTTP-проверка JWKS endpoint.
	// Cognito — критическая зависимость: без валидации токенов
	// сервис не может обслужить ни один запрос.
	cognitoDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cognitoIssuer),
		dephealth.WithHTTPHealthPath(jwksPath(cognitoIssuer)),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
		dephealth.WithHTTPTLSSkipVerify(false),
	}
	if isEntry {
		cognitoDepOpts = append(cognitoDepOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("cognito", cognitoDepOpts...),
	)

	// Azure Blob endpoint мониторится только при явно заданном URL:
	// connection string не всегда содержит адрес, пригодный для проверки.
	if blobEndpoint != "" {
		blobDepOpts := []dephealth.DependencyOption{
			dephealth.FromURL(blobEndpoint),
			dephealth.WithHTTPHealthPath("/"),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		}
		if isEntry {
			blobDepOpts = append(blobDepOpts, dephealth.WithLabel("isentry", "yes"))
		}
		if parsed, err := url.Parse(blobEndpoint); err == nil && parsed.Scheme == "https" {
			blobDepOpts = append(blobDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("azure-blob", blobDepOpts...))
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksPath возвращает probe path JWKS endpoint относительно issuer.
// Issuer Cognito содержит path /<poolId>, JWKS лежит под ним.
func jwksPath(issuer string) string {
	parsed, err := url.Parse(issuer)
	if err != nil || parsed.Path == "" {
		return "/.well-known/jwks.json"
	}
	return parsed.Path + "/.well-known/jwks.json"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (Cognito + Azure Blob)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

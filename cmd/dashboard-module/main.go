// main.go — точка входа Dashboard Module.
// Сборка зависимостей: config → logger → repository → services →
// handlers → middleware → HTTP-сервер.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/bigkaa/enerstat/dashboard-module/internal/api/handlers"
	"github.com/bigkaa/enerstat/dashboard-module/internal/api/middleware"
	"github.com/bigkaa/enerstat/dashboard-module/internal/config"
	"github.com/bigkaa/enerstat/dashboard-module/internal/repository"
	"github.com/bigkaa/enerstat/dashboard-module/internal/server"
	"github.com/bigkaa/enerstat/dashboard-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Dashboard Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Snapshot Store (Azure Blob)
	repo, err := repository.NewAzureSnapshotRepository(
		cfg.AzureConnectionString,
		cfg.AzureContainer,
		cfg.StorageTimeout,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации Snapshot Store", slog.String("error", err.Error()))
		return
	}

	// 4. Сервис выборки показаний
	telemetry := service.NewTelemetryService(repo, cfg.LatestPrefix, cfg.HistoricalPrefix, logger)

	// 5. JWT middleware с JWKS Cognito
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWKSURL,
		cfg.CognitoIssuer,
		cfg.CognitoClientID,
		cfg.AdminGroups,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
		return
	}

	// 6. Health handler: проверки Cognito JWKS и Snapshot Store
	cognitoChecker := middleware.NewCognitoReadinessChecker(cfg.JWKSURL, cfg.JWKSClientTimeout)
	healthHandler := handlers.NewHealthHandler(cognitoChecker, repo)

	// 7. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		telemetry,
		cfg.HistoryDefaultFolders,
		cfg.HistoryMaxFolders,
		logger,
	)

	// 8. Мониторинг зависимостей (topologymetrics)
	dephealthSvc, err := service.NewDephealthService(
		"dashboard-module",
		cfg.DephealthGroup,
		cfg.CognitoIssuer,
		cfg.AzureBlobEndpoint,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации dephealth", slog.String("error", err.Error()))
		return
	}
	if err := dephealthSvc.Start(context.Background()); err != nil {
		logger.Error("Ошибка запуска dephealth", slog.String("error", err.Error()))
		return
	}
	defer dephealthSvc.Stop()

	// 9. HTTP-сервер: request-id → metrics → logging → JWT
	// (health и metrics — без JWT)
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		server.JWTAuthWithExclusions(jwtAuth.Middleware(), "/health/", "/metrics"),
	)

	// 10. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
	}
}

// handler.go — основной обработчик API Dashboard Module.
// Объединяет health и бизнес-обработчики, делегируя запросы
// в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
	"github.com/bigkaa/enerstat/dashboard-module/internal/service"
)

// APIHandler — основной обработчик API Dashboard Module.
type APIHandler struct {
	health    *HealthHandler
	telemetry *service.TelemetryService
	// historyDefaultFolders — значение folders_limit по умолчанию
	historyDefaultFolders int
	// historyMaxFolders — верхняя граница folders_limit
	historyMaxFolders int
	logger            *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	telemetry *service.TelemetryService,
	historyDefaultFolders int,
	historyMaxFolders int,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:                health,
		telemetry:             telemetry,
		historyDefaultFolders: historyDefaultFolders,
		historyMaxFolders:     historyMaxFolders,
		logger:                logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Типы ответов ---

// dataResponse — конверт ответа /api/data и /api/history.
// Ключ списка зафиксирован как items.
type dataResponse struct {
	Role     model.Role           `json:"role"`
	DeviceID *string              `json:"device_id"`
	Items    []model.DeviceRecord `json:"items"`
	Count    int                  `json:"count"`
}

// newDataResponse строит конверт ответа. Пустой результат
// сериализуется как [], не null.
func newDataResponse(identity *model.Identity, items []model.DeviceRecord) dataResponse {
	if items == nil {
		items = []model.DeviceRecord{}
	}
	return dataResponse{
		Role:     identity.Role,
		DeviceID: identity.DeviceID,
		Items:    items,
		Count:    len(items),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

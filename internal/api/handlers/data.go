// data.go — обработчик GET /api/data.
// Актуальные показания в области видимости вызывающего:
// admin — все устройства, user — только своё.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/enerstat/dashboard-module/internal/api/errors"
	"github.com/bigkaa/enerstat/dashboard-module/internal/api/middleware"
	"github.com/bigkaa/enerstat/dashboard-module/internal/service"
)

// Data — реализация GET /api/data.
func (h *APIHandler) Data(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует Identity в контексте запроса")
		return
	}

	items, err := h.telemetry.Latest(r.Context(), identity)
	if err != nil {
		h.writeTelemetryError(w, r, err, "выборка актуальных данных")
		return
	}

	writeJSON(w, http.StatusOK, newDataResponse(identity, items))
}

// writeTelemetryError маппит ошибки сервисного слоя в HTTP-ответы.
// 403 — валидная Identity без нужного scope, 404 — нет данных
// единственного устройства, 500 — отказ зависимости или некорректный
// единственный документ.
func (h *APIHandler) writeTelemetryError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, service.ErrForbiddenRole):
		apierrors.Forbidden(w, "Недостаточно прав для доступа к данным")
	case errors.Is(err, service.ErrForbiddenNoDevice):
		apierrors.Forbidden(w, "В токене отсутствует device claim")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Данные устройства не найдены")
	default:
		h.logger.Error("Ошибка выборки данных",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при выборке данных")
	}
}

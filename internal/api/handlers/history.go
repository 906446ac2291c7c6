// history.go — обработчик GET /api/history?folders_limit=N.
// Исторические показания из N последних snapshot-папок, только admin.
package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/enerstat/dashboard-module/internal/api/errors"
	"github.com/bigkaa/enerstat/dashboard-module/internal/api/middleware"
)

// History — реализация GET /api/history.
// folders_limit — сколько последних snapshot-папок выбрать:
// по умолчанию DM_HISTORY_DEFAULT_FOLDERS, значения выше
// DM_HISTORY_MAX_FOLDERS срезаются до максимума,
// нечисловые и меньше 1 — 400.
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует Identity в контексте запроса")
		return
	}

	limit := h.historyDefaultFolders
	if raw := r.URL.Query().Get("folders_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.ValidationError(w, "folders_limit: ожидается целое число")
			return
		}
		if n < 1 {
			apierrors.ValidationError(w, "folders_limit: значение должно быть >= 1")
			return
		}
		limit = n
	}
	if limit > h.historyMaxFolders {
		limit = h.historyMaxFolders
	}

	items, err := h.telemetry.History(r.Context(), identity, limit)
	if err != nil {
		h.writeTelemetryError(w, r, err, "выборка истории")
		return
	}

	writeJSON(w, http.StatusOK, newDataResponse(identity, items))
}

// profile.go — обработчик GET /api/profile.
// Возвращает Identity вызывающего: email, роль, device claim.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/enerstat/dashboard-module/internal/api/errors"
	"github.com/bigkaa/enerstat/dashboard-module/internal/api/middleware"
	"github.com/bigkaa/enerstat/dashboard-module/internal/domain/model"
)

// profileResponse — ответ GET /api/profile.
type profileResponse struct {
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	DeviceID *string    `json:"device_id"`
}

// Profile — реализация GET /api/profile.
// Аутентификация — на уровне JWT middleware; роль unknown профиль
// видит: отказ по роли относится только к данным.
func (h *APIHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует Identity в контексте запроса")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Email:    identity.Email,
		Role:     identity.Role,
		DeviceID: identity.DeviceID,
	})
}

// Пакет errors — конструкторы стандартных ошибок Dashboard Module.
// Единый формат: {"code": "...", "detail": "..."} — detail читают
// фронтенды, code — машиночитаемая категория.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib допустим внутри internal/api

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок Dashboard Module.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, detail — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Code:   code,
		Detail: detail,
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, detail)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, detail)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, detail)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, detail)
}

// InternalError — 500 внутренняя ошибка или недоступная зависимость.
func InternalError(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, detail)
}

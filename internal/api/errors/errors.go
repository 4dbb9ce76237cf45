// Пакет errors — ответы с ошибками Image Gate.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Ответы origin (в том числе ошибки) передаются клиенту как есть,
// этот формат используется только для ошибок самого gate.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeOriginUnavailable = "ORIGIN_UNAVAILABLE"
	CodeInternalError     = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// NotFound — 404 маршрут не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 невалидный токен администратора.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// OriginUnavailable — 502 origin не ответил.
func OriginUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeOriginUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// Package httpapi отдаёт HTTP/JSON-поверхность сервиса: тонкий транспорт
// над сервисами каталога и заказов. Личность вызывающего приходит уже
// проверенной от шлюза в заголовках X-User-*.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// jsonError — JSON-представление ошибки в ответе.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSONError пишет JSON-ошибку с заданным статусом.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeDomainError переводит доменную ошибку в HTTP-статус.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	details := ""
	if status != http.StatusInternalServerError {
		details = err.Error()
	}
	writeJSONError(w, status, code, details)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrIdempotencyKeyNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrCategoryNameTaken):
		return http.StatusConflict, "category_name_taken"
	case errors.Is(err, domain.ErrCategoryInUse):
		return http.StatusConflict, "category_in_use"
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrDuplicateProduct),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrPriceNegative),
		errors.Is(err, domain.ErrPriceScale),
		errors.Is(err, domain.ErrStockNegative),
		errors.Is(err, domain.ErrCategoryRequired),
		errors.Is(err, domain.ErrCategoryNameRequired),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusUnprocessableEntity, "validation_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

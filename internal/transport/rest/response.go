package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tripsplit/internal/domain"
)

type APIResponse struct {
	ErrorCode int    `json:"error_code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

func Response(w http.ResponseWriter, message string, data any, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("write response error", "error", err)
	}
}

func Success(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func SuccessAccepted(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// WriteDomainError maps the engine's error taxonomy onto the response
// envelope. Conflicts carry the authoritative record so clients can
// refresh and retry; quota errors get a dedicated code so clients can
// show an upgrade prompt instead of a form error.
func WriteDomainError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var quota *domain.QuotaExceededError
	var permission *domain.PermissionError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &validation):
		ErrorBadRequest(w, validation.Error())
	case errors.As(err, &quota):
		Response(w, quota.Error(), map[string]any{"ceiling": quota.Ceiling}, 402, "quota_exceeded", http.StatusPaymentRequired)
	case errors.As(err, &permission):
		Error(w, permission.Error(), 403, http.StatusForbidden)
	case errors.As(err, &conflict):
		Response(w, conflict.Error(), conflictData(conflict), 409, "conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		ErrorNotFound(w, err.Error())
	default:
		ErrorInternal(w, "internal error")
	}
}

func conflictData(conflict *domain.ConflictError) map[string]any {
	data := map[string]any{
		"expected_version": conflict.ExpectedVersion,
		"actual_version":   conflict.ActualVersion,
	}
	switch current := conflict.Current.(type) {
	case *domain.PaymentRequest:
		data["current"] = paymentJSON(current)
	case *domain.PaymentSplit:
		data["current"] = splitJSON(current)
	}
	return data
}

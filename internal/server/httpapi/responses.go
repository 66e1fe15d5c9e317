package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/logging"
)

type errorResponse struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

func writeJSON(ctx context.Context, logger logging.Logger, w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Error(ctx, "failed to marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		logger.Error(ctx, "failed to write response", "error", err)
	}
}

func writeError(ctx context.Context, logger logging.Logger, w http.ResponseWriter, status int, text string) {
	writeJSON(ctx, logger, w, status, errorResponse{Status: status, Text: text})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrItemBusy),
		errors.Is(err, common.ErrDrainInProgress),
		errors.Is(err, common.ErrNotRetryable),
		errors.Is(err, common.ErrTitleConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(ctx context.Context, logger logging.Logger, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "error", err)
		writeError(ctx, logger, w, status, "internal error")
		return
	}
	logger.Warn(ctx, "request rejected", "status", status, "error", err)
	writeError(ctx, logger, w, status, err.Error())
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/reqview/internal/domain"
	"go.uber.org/zap"
)

// RequestService Описываем, что нам нужно от сервиса
type RequestService interface {
	ListRequests(ctx context.Context) (*domain.Response, error)
}

type RequestHandler struct {
	service RequestService
	logger  *zap.Logger
}

func NewRequestHandler(s RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{service: s, logger: logger}
}

// List возвращает все заявки со встроенными Employee и RequestLog.
// GET /v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListRequests(r.Context())
	if err != nil {
		h.logger.Error("list requests failed", zap.Error(err))
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			w.Header().Set("Retry-After", "30")
		}
		h.writeJSON(w, status, &domain.APIError{Message: "upstream unavailable"})
		return
	}

	if !resp.OK() {
		// Ошибку PostgREST отдаем как есть, но статусом шлюза
		apiErr := resp.Error
		if apiErr == nil {
			apiErr = &domain.APIError{Message: http.StatusText(resp.Status)}
		}
		h.writeJSON(w, http.StatusBadGateway, apiErr)
		return
	}

	h.writeJSON(w, http.StatusOK, resp.Data)
}

func (h *RequestHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// заголовок уже ушел, остается только лог
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/reqview/internal/domain"
	"go.uber.org/zap"
)

// RequestFetcher описывает контракт источника данных (engine.Fetcher).
type RequestFetcher interface {
	Fetch(ctx context.Context, q domain.Query) (*domain.Response, error)
}

type RequestService struct {
	fetcher RequestFetcher
	logger  *zap.Logger
}

func NewRequestService(f RequestFetcher, logger *zap.Logger) *RequestService {
	return &RequestService{
		fetcher: f,
		logger:  logger.Named("request-service"),
	}
}

// ListRequests выполняет фиксированный запрос: заявки + согласующий + история.
// Ошибка API не считается ошибкой метода и возвращается внутри ответа.
func (s *RequestService) ListRequests(ctx context.Context) (*domain.Response, error) {
	q := domain.RequestsWithApproverAndLogs
	resp, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("request_service: failed to fetch requests: %w", err)
	}

	if resp.OK() {
		s.logger.Debug("requests fetched", zap.String("query", q.String()), zap.Int("rows", len(resp.Data)))
	} else {
		s.logger.Warn("requests query rejected",
			zap.String("query", q.String()), zap.Int("status", resp.Status), zap.Any("error", resp.Error))
	}
	return resp, nil
}

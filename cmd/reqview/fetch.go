package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/reqview/internal/connectors"
	"github.com/xela07ax/reqview/internal/domain"
	"github.com/xela07ax/reqview/internal/engine"
	"github.com/xela07ax/reqview/internal/infra"
	"github.com/xela07ax/reqview/internal/infra/auth"
	"github.com/xela07ax/reqview/internal/repository/postgres"
	"github.com/xela07ax/reqview/internal/report"
	"go.uber.org/zap"
)

// runFetch — основной сценарий: конфиг -> клиент -> запрос -> печать.
func runFetch(ctx context.Context, cfg *infra.Config, logger *zap.Logger, out io.Writer) error {
	fetcher, cleanup, err := buildFetcher(ctx, cfg, logger, engine.NewMetrics(nil))
	if err != nil {
		return err
	}
	defer cleanup()

	printer := report.NewPrinter(out)
	q := domain.RequestsWithApproverAndLogs

	start := time.Now()
	resp, err := fetcher.Fetch(ctx, q)
	if err != nil {
		logger.Error("fetch failed", zap.String("query", q.String()), zap.String("type", engine.ErrorType(err)), zap.Error(err))
		return printer.Print(report.ResponseFromError(err))
	}

	logger.Debug("fetch finished",
		zap.String("query", q.String()),
		zap.Int("status", resp.Status),
		zap.Int("rows", len(resp.Data)),
		zap.Duration("took", time.Since(start)))

	if resp.OK() {
		summarize(resp, logger)
	}
	return printer.Print(resp)
}

// summarize пишет в лог разбивку заявок по статусам и предупреждает о значениях вне enum.
// На вывод не влияет: записи печатаются в том виде, в каком пришли.
func summarize(resp *domain.Response, logger *zap.Logger) {
	reqs, err := resp.Requests()
	if err != nil {
		logger.Warn("rows do not match the Request shape", zap.Error(err))
		return
	}

	byStatus := make(map[domain.RequestStatus]int)
	for _, r := range reqs {
		byStatus[r.Status]++
		if err := r.Status.Validate(); err != nil {
			logger.Warn("request with unexpected status",
				zap.Int64("request_id", r.RequestID), zap.String("status", string(r.Status)))
		}
		if r.Approver == nil {
			logger.Debug("request without embedded approver", zap.Int64("request_id", r.RequestID))
		}
	}
	logger.Info("requests fetched", zap.Int("total", len(reqs)), zap.Any("by_status", byStatus))
}

// buildFetcher собирает цепочку: источник -> надежность -> кэш -> метрики.
// Конфиг проверяется до создания клиента, поэтому без ключей сеть не трогается.
func buildFetcher(ctx context.Context, cfg *infra.Config, logger *zap.Logger, metrics *engine.Metrics) (engine.Fetcher, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		fetcher engine.Fetcher
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Source {
	case infra.SourcePostgres:
		repo, err := postgres.NewRequestRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = repo.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("database unreachable: %w", err)
		}
		fetcher = repo

	default:
		logKeyInfo(cfg.Supabase.Key, logger)

		client, err := connectors.NewPostgRESTClient(cfg.Supabase.URL, cfg.Supabase.Key,
			connectors.WithTimeout(cfg.Client.Timeout))
		if err != nil {
			return nil, nil, err
		}

		opts := engine.DefaultReliabilityOptions()
		opts.Attempts = cfg.Client.Retries
		opts.RateLimit = cfg.Client.RateLimit
		opts.RateBurst = cfg.Client.RateBurst
		opts.MaxRequests = cfg.CB.MaxRequests
		opts.Interval = cfg.CB.Interval
		opts.Timeout = cfg.CB.Timeout
		opts.MaxFailures = cfg.CB.MaxFailures
		fetcher = engine.NewReliabilityWrapper(client, opts, metrics, logger)
	}

	if cfg.Cache.TTL > 0 && cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		fetcher = engine.NewCachedFetcher(fetcher, engine.NewRedisStore(rdb), cfg.Cache.TTL, cfg.Source, metrics, logger)
	}

	return engine.Instrument(fetcher, metrics, cfg.Source), cleanup, nil
}

// logKeyInfo сообщает, с какой ролью работает ключ; просроченный ключ — только предупреждение,
// окончательное решение за сервисом.
func logKeyInfo(key string, logger *zap.Logger) {
	info, err := auth.InspectKey(key)
	if err != nil {
		logger.Warn("SUPABASE_KEY is not a readable JWT", zap.Error(err))
		return
	}
	if info.Opaque {
		logger.Debug("using opaque supabase api key")
		return
	}
	logger.Debug("using supabase api key", zap.String("role", info.Role), zap.String("ref", info.Ref))
	if info.Expired(time.Now()) {
		logger.Warn("SUPABASE_KEY has expired", zap.Time("expires_at", info.ExpiresAt))
	}
}

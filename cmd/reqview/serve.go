package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xela07ax/reqview/internal/console/handler"
	"github.com/xela07ax/reqview/internal/console/server"
	"github.com/xela07ax/reqview/internal/console/service"
	"github.com/xela07ax/reqview/internal/engine"
	"github.com/xela07ax/reqview/internal/infra"
	"github.com/xela07ax/reqview/internal/infra/auth"
	"go.uber.org/zap"
)

func runServe(ctx context.Context, cfg *infra.Config, logger *zap.Logger) error {
	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	fetcher, cleanup, err := buildFetcher(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	var validator auth.TokenValidator
	if cfg.Supabase.JWTSecret != "" {
		v, err := auth.NewValidator(cfg.Supabase.JWTSecret)
		if err != nil {
			return err
		}
		validator = v
	} else {
		logger.Warn("SUPABASE_JWT_SECRET is not set, /v1/requests is served without auth")
	}

	requestService := service.NewRequestService(fetcher, logger)
	requestHandler := handler.NewRequestHandler(requestService, logger)
	console := server.NewConsoleServer(logger, validator, reg, requestHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      console,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr), zap.String("source", cfg.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("console API stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("console API exited properly")
	return nil
}

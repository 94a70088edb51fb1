// Package server оборачивает жизненный цикл HTTP-сервера: телеметрию,
// метрики, аудит и graceful shutdown по сигналу.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"routeopt/pkg/audit"
	"routeopt/pkg/config"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
	"routeopt/pkg/telemetry"
)

const shutdownTimeout = 30 * time.Second

// HTTPServer обёртка над http.Server
type HTTPServer struct {
	server      *http.Server
	serviceName string
	config      *config.Config
	telemetry   *telemetry.Provider
	auditLogger audit.Logger
}

// New создаёт сервер. handler - полностью собранный роутер сервиса.
func New(cfg *config.Config, handler http.Handler) *HTTPServer {
	var auditLogger audit.Logger
	if cfg.Audit.Enabled {
		var err error
		auditLogger, err = audit.New(&audit.Config{
			Enabled:     cfg.Audit.Enabled,
			Backend:     cfg.Audit.Backend,
			FilePath:    cfg.Audit.FilePath,
			BufferSize:  cfg.Audit.BufferSize,
			FlushPeriod: cfg.Audit.FlushPeriod,
		})
		if err != nil {
			logger.Warn("audit logger init failed, continuing without it", "error", err)
			auditLogger = nil
		} else {
			audit.SetGlobal(auditLogger)
			logger.Info("audit logger initialized", "backend", cfg.Audit.Backend)
		}
	}

	// h2c: HTTP/2 без TLS для внутренних клиентов за балансировщиком
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &HTTPServer{
		server:      srv,
		serviceName: cfg.App.Name,
		config:      cfg,
		auditLogger: auditLogger,
	}
}

// Run запускает сервер и блокируется до сигнала завершения
// либо фатальной ошибки listener'а.
func (s *HTTPServer) Run() error {
	ctx := context.Background()

	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     s.config.Tracing.Enabled,
			Endpoint:    s.config.Tracing.Endpoint,
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.App.Version,
			Environment: s.config.App.Environment,
			SampleRate:  s.config.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			s.telemetry = tp
			logger.Info("telemetry initialized",
				"endpoint", s.config.Tracing.Endpoint,
				"sample_rate", s.config.Tracing.SampleRate,
			)
		}
	}

	if s.config.Metrics.Enabled {
		go func() {
			logger.Info("starting metrics server",
				"port", s.config.Metrics.Port,
				"path", s.config.Metrics.Path,
			)
			if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		metrics.Get().SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			"service", s.serviceName,
			"port", s.config.HTTP.Port,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.auditLifecycle(ctx, "server.Start", audit.ActionCreate)

	return s.waitForShutdown(errCh)
}

func (s *HTTPServer) waitForShutdown(errCh chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	s.auditLifecycle(context.Background(), "server.Shutdown", audit.ActionUpdate)

	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warn("forcing server stop", "error", err)
		if closeErr := s.server.Close(); closeErr != nil {
			logger.Warn("server close failed", "error", closeErr)
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}

	if s.auditLogger != nil {
		if err := s.auditLogger.Close(); err != nil {
			logger.Warn("audit logger close failed", "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// Shutdown останавливает сервер снаружи (без сигнала)
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr возвращает адрес, на котором слушает сервер
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) auditLifecycle(ctx context.Context, method string, action audit.Action) {
	if s.auditLogger == nil {
		return
	}
	entry := audit.NewEntry().
		Service(s.serviceName).
		Method(method).
		Action(action).
		Outcome(audit.OutcomeSuccess).
		Meta("port", s.config.HTTP.Port).
		Meta("version", s.config.App.Version).
		Meta("environment", s.config.App.Environment).
		Build()
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		logger.Warn("audit entry failed", "error", err)
	}
}

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xtrack_api_request_duration_seconds",
		Help:    "Длительность запросов к бэкенду XTrack",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation", "status"})

	APIRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xtrack_api_request_total",
		Help: "Количество запросов к бэкенду XTrack",
	}, []string{"operation", "status"})

	JobRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xtrack_job_runs_total",
		Help: "Количество ручных запусков задач",
	})

	PlaygroundRunsRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xtrack_playground_runs_remaining",
		Help: "Остаток квоты запусков песочницы в скользящем окне",
	})

	WatcherRefreshSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xtrack_watcher_refresh_seconds",
		Help:    "Время полного обновления кэша задач",
		Buckets: prometheus.DefBuckets,
	})

	WatcherRefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xtrack_watcher_refresh_errors_total",
		Help: "Ошибки фонового обновления кэша задач",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		APIRequestDuration,
		APIRequestTotal,
		JobRunsTotal,
		PlaygroundRunsRemaining,
		WatcherRefreshSeconds,
		WatcherRefreshErrors,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveAPIRequest записывает длительность и статус запроса к бэкенду.
func ObserveAPIRequest(operation string, start time.Time, err error) {
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	APIRequestDuration.WithLabelValues(operation, status).Observe(duration)
	APIRequestTotal.WithLabelValues(operation, status).Inc()
}

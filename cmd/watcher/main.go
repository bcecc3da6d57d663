package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"xtrack-client/internal/adapters/api"
	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/config"
	"xtrack-client/internal/infra/log"
	"xtrack-client/internal/infra/metrics"
	"xtrack-client/internal/infra/store"
	"xtrack-client/internal/usecase/registry"
	"xtrack-client/internal/usecase/session"
)

// watcher периодически обновляет кэш задач и отдаёт их состояние локально:
// /status — JSON со статистикой, /metrics — Prometheus.
func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	durable, err := store.OpenSQLite(cfg.StatePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось открыть файл состояния")
	}
	defer durable.Close()

	creds := session.NewCredentialStore(store.NewMemory(), durable)
	sess := session.NewController(creds, logger.With().Str("component", "session").Logger())

	client, err := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(sess.Token),
		api.WithAuthFailureHook(sess.Invalidate),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher: не удалось создать API-клиент")
	}

	sess.Start(ctx, client)
	if !sess.IsAuthenticated() {
		logger.Fatal().Msg("watcher: нет сохранённой сессии, выполните login с «запомнить меня» в cli")
	}

	reg := registry.NewService(client, client, client, sess, logger.With().Str("component", "registry").Logger())

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.Watcher.MetricsAddr)
	startStatusServer(ctx, logger, cfg.Watcher.StatusAddr, reg)

	refresh(ctx, logger, reg)
	ticker := time.NewTicker(cfg.Watcher.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watcher: остановка")
			return
		case <-ticker.C:
			refresh(ctx, logger, reg)
		}
	}
}

// refresh перечитывает список задач и их коллекции одним пакетом.
func refresh(ctx context.Context, logger zerolog.Logger, reg *registry.Service) {
	start := time.Now()
	jobs := reg.List(ctx)
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	reg.Preload(ctx, ids)
	metrics.WatcherRefreshSeconds.Observe(time.Since(start).Seconds())

	for _, job := range jobs {
		st := reg.Stats(job.ID)
		logger.Debug().
			Int64("job_id", job.ID).
			Str("x_username", job.XUsername).
			Int("runs", st.RunCount).
			Int("tweets", st.TweetsAnalyzed).
			Msg("watcher: задача обновлена")
	}
	logger.Info().Int("jobs", len(jobs)).Dur("took", time.Since(start)).Msg("watcher: кэш обновлён")
}

type jobStatus struct {
	Job   domain.Job      `json:"job"`
	Stats domain.JobStats `json:"stats"`
}

func startStatusServer(ctx context.Context, logger zerolog.Logger, addr string, reg *registry.Service) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		jobs := reg.Jobs()
		statuses := make([]jobStatus, 0, len(jobs))
		for _, job := range jobs {
			statuses = append(statuses, jobStatus{Job: job, Stats: reg.Stats(job.ID)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statuses)
	})

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info().Str("addr", addr).Msg("watcher: статус-сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("watcher: статус-сервер остановлен")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

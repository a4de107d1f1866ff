package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chore-tracker/internal/bot"
	"chore-tracker/internal/config"
	"chore-tracker/internal/metrics"
	"chore-tracker/internal/repository"
	"chore-tracker/internal/service"
)

// NewRunCommand creates the run command: the Telegram bot plus scheduled
// backups, digests and the optional metrics endpoint.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.TelegramToken == "" {
				return fmt.Errorf("TELEGRAM_TOKEN is required")
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg, rootOpts.Verbose)
			return run(cmd.Context(), cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer closeDB(db)

	store, _, err := openStore(cfg, db, logger, m, true)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	chores := service.NewChoreService(store, service.WithLogger(logger), service.WithMetrics(m))
	summaries := service.NewSummaryService(chores)
	links := repository.NewChatLinkRepository(db)

	telegramBot, err := bot.New(cfg.TelegramToken, chores, summaries, links, logger)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewSchedulerService(time.Local, logger)
	if cfg.BackupDir != "" {
		if _, err := scheduler.ScheduleInterval("backup", cfg.BackupInterval, func() error {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			_, err := store.Backup(jobCtx, cfg.BackupDir)
			return err
		}); err != nil {
			return err
		}
	}
	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, func() error {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return telegramBot.SendDigests(jobCtx)
		}); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMetricsRouter(prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("chore tracker started", "backend", cfg.StorageBackend)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func newMetricsRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

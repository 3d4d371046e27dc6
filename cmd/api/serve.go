package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/contact"
	"github.com/PratikDhanave/portfolio-inbox/internal/httpserver"
	"github.com/PratikDhanave/portfolio-inbox/internal/metrics"
	"github.com/PratikDhanave/portfolio-inbox/internal/notify"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
	"github.com/PratikDhanave/portfolio-inbox/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server.

SIGINT or SIGTERM stops accepting connections and drains in-flight requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Ensure required tables/indexes exist so a fresh database is enough.
		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, closeStats := openStats(ctx, cfg.Stats, log)
		defer closeStats()

		limiter := ratelimit.NewHourlyLimiter(ratelimit.WithSweepEvery(cfg.Contact.SweepEvery))
		limiterDone := limiter.StartJanitor(ctx)

		mailer := notify.NewResendMailer(cfg.Email.ResendAPIKey, cfg.Email.To,
			notify.WithBaseURL(cfg.Email.ResendURL),
			notify.WithFrom(cfg.Email.ResendFrom),
		)
		if err := mailer.CheckConfig(); err != nil {
			log.Warn("contact email disabled", zap.Error(err))
		}

		m := metrics.New()
		gate := contact.NewGate(limiter, mailer,
			contact.WithSendTimeout(cfg.Contact.SendTimeout),
			contact.WithLogger(log),
			contact.WithOutcomeCounter(m.ContactOutcomes),
			contact.WithStats(stats),
		)

		authThrottle := ratelimit.NewBucketStore(cfg.Admin.AuthRPS, cfg.Admin.AuthBurst)
		authThrottle.StartJanitor(ctx, time.Minute)
		if !cfg.Admin.Configured() {
			log.Warn("admin credentials not set, admin API will answer 503")
		}

		objects := storage.NewObjectStore(cfg.Storage.URL, cfg.Storage.ServiceKey, cfg.Storage.Bucket)

		router := httpserver.NewRouter(httpserver.Deps{
			Config:       cfg,
			Store:        st,
			Gate:         gate,
			Mailer:       mailer,
			Objects:      objects,
			Stats:        stats,
			AuthThrottle: authThrottle,
			Metrics:      m,
			Log:          log,
		})

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server started",
				zap.String("addr", cfg.ListenAddr),
				zap.String("store", cfg.Store.Driver))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown", zap.Error(err))
			return err
		}

		stop()
		<-limiterDone
		log.Info("server stopped")
		return nil
	},
}

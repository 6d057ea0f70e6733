package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/httpapi"
	"tg_moderation_panel/internal/logging"
	"tg_moderation_panel/internal/risk"
	"tg_moderation_panel/internal/store"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	mongoQueryTimeout       = 10 * time.Second
	botListTimeout          = 5 * time.Second
	httpShutdownTimeout     = 10 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func newServeCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and Telegram listeners until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.logger.WithFields(logging.Fields{
				"event":    "startup",
				"mongo_db": app.cfg.MongoDB,
			}).Info("configuration loaded")

			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				return app.serve(cmd.Context(), manager)
			})
		},
	}
}

func (a *app) serve(ctx context.Context, manager *store.Manager) error {
	logger := a.logger

	indexCtx, cancelIndexes := context.WithTimeout(ctx, mongoIndexTimeout)
	err := manager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		logger.WithError(err).Error("mongo index setup error")
		return fmt.Errorf("mongo index setup error: %w", err)
	}
	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	stack, err := a.newKickStack(manager)
	if err != nil {
		return err
	}

	definitions := externalapi.NewManager(a.cfg.ExternalAPIFile, logger)
	if _, err := definitions.Load(); err != nil {
		logger.WithError(err).Error("external api load error")
		return fmt.Errorf("external api load error: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := definitions.Watch(signalCtx); err != nil {
			logger.WithError(err).Warn("external api watcher stopped")
		}
	}()

	server := httpapi.NewServer(a.cfg.HTTPPort, httpapi.Dependencies{
		Mongo:       manager,
		Definitions: definitions,
		Kicker:      stack.service,
		Accounts:    domain.NewAccountRepository(manager.Accounts()),
		Risk:        risk.NewClassifier(nil),
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	listCtx, cancelList := context.WithTimeout(ctx, botListTimeout)
	bots, err := stack.bots.ListActiveBots(listCtx)
	cancelList()
	if err != nil {
		logger.WithError(err).Warn("could not list bots, telegram listeners not started")
		bots = nil
	}

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	defer cancelTelegram()
	tgDone := make(chan struct{})

	go func() {
		if err := stack.pool.Listen(telegramCtx, bots); err != nil {
			logger.WithError(err).Warn("some telegram listeners failed to start")
		}
		close(tgDone)
	}()

	logger.WithFields(logging.Fields{
		"event": "telegram_ready",
		"bots":  len(bots),
	}).Info("telegram listeners started")

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("http server error")
			runErr = err
		}
	}

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := server.Shutdown(httpCtx); err != nil {
		logger.WithError(err).Warn("http server shutdown error")
	}
	cancelHTTP()

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram listeners to stop")
	}
	cancelWait()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
	return runErr
}

package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/accounts"
	"tg_moderation_panel/internal/config"
	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/feature/chat"
	"tg_moderation_panel/internal/kick"
	"tg_moderation_panel/internal/logging"
	"tg_moderation_panel/internal/presets"
	"tg_moderation_panel/internal/store"
	"tg_moderation_panel/internal/telegram"
)

type app struct {
	cfg    config.Config
	logger *logrus.Entry
}

// connectStore is overridable for tests.
var connectStore = store.NewManager

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		return nil, fmt.Errorf("logger setup error: %w", err)
	}

	return &app{cfg: cfg, logger: logger}, nil
}

// withStore connects to Mongo, runs fn, and disconnects.
func (a *app) withStore(ctx context.Context, fn func(*store.Manager) error) error {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	manager, err := connectStore(connectCtx, a.cfg)
	cancel()
	if err != nil {
		a.logger.WithError(err).Error("mongo connection error")
		return fmt.Errorf("mongo connection error: %w", err)
	}
	a.logger.WithField("event", "mongo_connect").Debug("connected to mongo")

	defer a.closeStore(manager)

	return fn(manager)
}

func (a *app) closeStore(manager *store.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()

	if err := manager.Close(ctx); err != nil {
		a.logger.WithError(err).Error("mongo disconnect error")
		return
	}
	a.logger.WithField("event", "mongo_disconnect").Debug("mongo client disconnected")
}

func (a *app) presetStore() (*presets.Store, error) {
	s, err := presets.NewStore(a.cfg.PresetsFile)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}
	return s, nil
}

// kickStack is everything needed to run kicks against the stored bots.
type kickStack struct {
	bots    *domain.BotRepository
	pool    *telegram.Pool
	service *kick.Service
}

func (a *app) newKickStack(manager *store.Manager) (*kickStack, error) {
	bots := domain.NewBotRepository(manager.Bots())
	chats := domain.NewChatRepository(manager.BotChats())
	chatRegistrar := chat.NewRegistrar(manager.BotChats(), a.logger)

	pool := telegram.NewPool(bots, chatRegistrar, a.cfg.TelegramCallTimeout, a.logger)

	var rejoiner *kick.Rejoiner
	if a.cfg.RejoinEnabled() {
		gateway, err := accounts.NewClient(a.cfg.AccountGatewayURL, nil, a.cfg.TelegramCallTimeout, a.logger)
		if err != nil {
			return nil, fmt.Errorf("account gateway: %w", err)
		}
		rejoiner = kick.NewRejoiner(pool, gateway, a.logger)
	}

	resolver := kick.NewResolver(bots, chats, a.logger)
	executor := kick.NewExecutor(pool, a.cfg.FanOutWorkers, a.logger)

	return &kickStack{
		bots:    bots,
		pool:    pool,
		service: kick.NewService(resolver, executor, pool, rejoiner, a.logger),
	}, nil
}

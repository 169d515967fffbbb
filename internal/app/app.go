// Package app assembles the marketplace agent from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/homeservice/marketplace-agent/internal/api"
	"github.com/homeservice/marketplace-agent/internal/api/handler"
	"github.com/homeservice/marketplace-agent/internal/api/metrics"
	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
	"github.com/homeservice/marketplace-agent/internal/core/service"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/config"
	mongostore "github.com/homeservice/marketplace-agent/internal/infrastructure/db/mongo"
	redisstore "github.com/homeservice/marketplace-agent/internal/infrastructure/db/redis"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/queue"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/rest"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/stomp"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/tokenstore"
	"github.com/homeservice/marketplace-agent/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// App is the wired object graph of the agent.
type App struct {
	Config        *config.Config
	Session       *service.SessionStore
	Notifications *service.NotificationState
	Marketplace   *service.Marketplace
	Channel       *service.ChannelManager
	Dispatcher    *queue.Dispatcher
	Archive       *mongostore.NotificationArchive

	log   zerolog.Logger
	redis *goredis.Client
	mongo *mongo.Database
}

// New connects the optional stores and wires every component. Nothing is
// started; call Initialize and Serve, or use the components directly.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, log: logger.Component("app")}

	if cfg.NeedsRedis() {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		a.redis = rdb
	}
	if cfg.Notify.Archive {
		db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.mongo = db
		a.Archive = mongostore.NewNotificationArchive(db)
		if err := a.Archive.EnsureIndexes(ctx); err != nil {
			a.log.Warn().Err(err).Msg("could not create archive indexes")
		}
	}

	tokens, err := a.tokenStore()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	restLog := logger.Component("rest")

	// Sign-in, sign-up and the profile lookup run without the session
	// middlewares: they happen before a session exists.
	authAPI, err := rest.NewClient(cfg.API.BaseURL, rest.Chain(httpClient,
		rest.RequestID(),
		rest.Instrument(metrics.ObserveBackendRequest),
		rest.Logging(restLog),
	))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Session = service.NewSessionStore(rest.NewAuthClient(authAPI), tokens, logger.Component("session"),
		service.WithUnauthorizedHook(func() {
			l := logger.Component("session")
			l.Warn().Msg("session rejected by the backend, sign in again")
		}),
	)
	a.Session.Subscribe(metrics.ObserveSessionEvent)

	resourceAPI, err := rest.NewClient(cfg.API.BaseURL, rest.Chain(httpClient,
		rest.RequestID(),
		rest.BearerToken(a.Session.Token),
		rest.OnUnauthorized(a.Session.HandleUnauthorized),
		rest.Instrument(metrics.ObserveBackendRequest),
		rest.Logging(restLog),
	))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var opts []service.NotificationOption
	if cfg.Notify.Dedup {
		opts = append(opts, service.WithDeduplicator(redisstore.NewDedupChecker(a.redis, cfg.Notify.DedupTTL)))
	}
	if a.Archive != nil {
		opts = append(opts, service.WithArchive(a.Archive))
	}
	a.Notifications = service.NewNotificationState(rest.NewNotificationClient(resourceAPI), logger.Component("notifications"), opts...)
	metrics.TrackUnread(a.Notifications.UnreadCount)

	a.Marketplace = service.NewMarketplace(
		rest.NewServiceClient(resourceAPI),
		rest.NewProviderClient(resourceAPI),
		rest.NewServiceRequestClient(resourceAPI),
		rest.NewReviewClient(resourceAPI),
	)

	channelLog := logger.Component("channel")
	router := service.NewNotificationRouter(countingReceiver{a.Notifications}, a.Session, channelLog)
	a.Dispatcher = queue.NewDispatcher(cfg.Notify.Workers, countingHandler{router}, channelLog)
	transport := stomp.NewTransport(stomp.Config{
		URL:       cfg.Channel.URL,
		Heartbeat: cfg.Channel.Heartbeat,
	}, channelLog)
	a.Channel = service.NewChannelManager(transport, a.Session, a.Dispatcher, service.ChannelConfig{
		PrivateTopic:  cfg.Channel.PrivateTopic,
		SharedTopic:   cfg.Channel.SharedTopic,
		RetryDelay:    cfg.Channel.RetryDelay,
		MaxRetryDelay: cfg.Channel.MaxRetryDelay,
		MaxRetries:    cfg.Channel.MaxRetries,
	}, channelLog, metrics.ObserveChannelStatus)

	return a, nil
}

func (a *App) tokenStore() (ports.TokenStore, error) {
	var store ports.TokenStore
	switch a.Config.Session.TokenStore {
	case "redis":
		store = redisstore.NewTokenStore(a.redis)
	default:
		store = tokenstore.NewMemory()
	}
	if a.Config.Session.EncryptionKey == "" {
		return store, nil
	}
	return tokenstore.NewSealed(store, a.Config.Session.EncryptionKey)
}

// Initialize restores the persisted session and blocks until done.
func (a *App) Initialize(ctx context.Context) {
	a.Session.Initialize(ctx)
}

// Serve runs the background components and the local HTTP API until ctx is
// cancelled, then shuts everything down.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopFollowing := a.Notifications.Follow(ctx, a.Session)
	defer stopFollowing()

	a.Dispatcher.Start(ctx)
	go a.Session.WatchExpiry(ctx, a.Config.Session.ExpiryCheck)
	go a.Initialize(ctx)

	channelDone := make(chan error, 1)
	go func() { channelDone <- a.Channel.Run(ctx) }()

	e := api.NewRouter(api.Dependencies{
		Session:       a.Session,
		Notifications: a.Notifications,
		History:       a.history(),
		Marketplace:   a.Marketplace,
		Channel:       a.Channel,
		Pingers:       a.Pingers(),
		Log:           logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.Config.Port).Msg("local api listening")
		if err := e.Start(":" + a.Config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("local api: %w", err)
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("local api shutdown")
	}
	if err := <-channelDone; err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Msg("channel manager stopped with error")
	}
	a.Dispatcher.Wait()
	a.Close(shutdownCtx)

	a.log.Info().Msg("agent stopped")
	return runErr
}

// history avoids handing a typed nil to the handler.
func (a *App) history() handler.NotificationHistory {
	if a.Archive == nil {
		return nil
	}
	return a.Archive
}

// Pingers returns readiness checks for the configured stores.
func (a *App) Pingers() map[string]handler.Pinger {
	p := make(map[string]handler.Pinger)
	if a.redis != nil {
		p["redis"] = handler.RedisPinger(a.redis)
	}
	if a.mongo != nil {
		p["mongodb"] = handler.MongoPinger(a.mongo)
	}
	return p
}

// Close releases the store connections. It is safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
		a.redis = nil
	}
	if a.mongo != nil {
		if err := mongostore.Disconnect(ctx, a.mongo); err != nil {
			a.log.Warn().Err(err).Msg("mongo disconnect")
		}
		a.mongo = nil
	}
}

// countingReceiver feeds push outcomes into the metrics.
type countingReceiver struct {
	next service.PushReceiver
}

func (r countingReceiver) ReceivePush(ctx context.Context, n domain.Notification) bool {
	accepted := r.next.ReceivePush(ctx, n)
	metrics.ObservePush(accepted)
	return accepted
}

// countingHandler counts frames before routing them.
type countingHandler struct {
	next queue.MessageHandler
}

func (h countingHandler) Handle(ctx context.Context, msg domain.ChannelMessage) error {
	metrics.ObserveFrame(msg.Kind)
	return h.next.Handle(ctx, msg)
}

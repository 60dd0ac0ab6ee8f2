package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/relay/internal/auth"
	"github.com/goevery/relay/internal/handler"
	"github.com/goevery/relay/internal/persistence/mongodb"
	"github.com/goevery/relay/internal/presence"
	"github.com/goevery/relay/internal/relay"
	"github.com/goevery/relay/internal/server"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	logger   *zap.Logger
	settings Settings

	service          *relay.Service
	heartbeatMonitor *relay.HeartbeatMonitor
	websocketServer  *server.WebSocketServer
	restServer       *server.RESTServer

	mongoClient *mongo.Client
	redisClient *redis.Client
	mirror      *presence.Mirror
}

func NewApp(ctx context.Context, logger *zap.Logger, settings Settings) (*App, error) {
	app := &App{
		logger:   logger,
		settings: settings,
	}

	var observer relay.PresenceObserver
	var presenceLookup server.PresenceLookup
	if settings.RedisAddr != "" {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})

		err := app.redisClient.Ping(ctx).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		nodeId := settings.NodeId
		if nodeId == "" {
			nodeId = defaultNodeId()
		}

		app.mirror = presence.NewMirror(
			logger,
			presence.NewRedisStore(app.redisClient, ""),
			nodeId,
			settings.PresenceTTL(),
			1024,
		)
		observer = app.mirror
		presenceLookup = app.mirror

		logger.Info("presence mirror enabled", zap.String("nodeId", nodeId))
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, trimList(settings.APIKeys), settings.JWTAudience)
	userIdValidator := handler.NewUserIdValidator()

	app.service = relay.NewService(logger, relay.NewRegistry(), observer)
	app.heartbeatMonitor = relay.NewHeartbeatMonitor(logger, app.service, settings.HeartbeatInterval)

	var sendMessageHandler *handler.SendMessageHandler
	var historyHandler *handler.HistoryHandler
	if settings.MongoURI != "" {
		client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		app.mongoClient = client

		persistenceEngine := mongodb.NewPersistenceEngine(client, settings.MongoDatabase)

		err = persistenceEngine.Setup(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to setup persistence engine: %w", err)
		}

		sendMessageHandler = handler.NewSendMessageHandler(userIdValidator, persistenceEngine, app.service)
		historyHandler = handler.NewHistoryHandler(userIdValidator, persistenceEngine)

		logger.Info("message persistence enabled", zap.String("database", settings.MongoDatabase))
	}

	router := server.NewRouter(
		logger,
		handler.NewMessageHandler(userIdValidator, app.service),
		handler.NewCallSignalHandler(userIdValidator, app.service),
		handler.NewTypingHandler(userIdValidator, app.service),
	)

	originChecker := server.NewOriginChecker(trimList(settings.AllowedOrigins))
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
		HandshakeTimeout:  10 * time.Second,
	}

	app.websocketServer = server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		authenticator,
		userIdValidator,
		app.service,
		router,
		server.WebSocketOptions{
			WriteWait:      settings.WriteTimeout,
			QueueSize:      settings.SendQueueSize,
			MaxMessageSize: settings.MaxMessageSize,
			InboundRate:    settings.InboundRate,
			InboundBurst:   settings.InboundBurst,
		},
	)
	app.restServer = server.NewRESTServer(
		logger,
		authenticator,
		app.service,
		handler.NewPushHandler(userIdValidator, app.service),
		sendMessageHandler,
		historyHandler,
		presenceLookup,
	)

	return app, nil
}

func (a *App) run(ctx context.Context) error {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	if a.mirror != nil {
		a.mirror.Start()
	}

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter()
	if a.settings.BasePath != "" {
		router = router.PathPrefix(a.settings.BasePath).Subrouter()
	}

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(notifyCtx)

	group.Go(func() error {
		a.logger.Info("starting http server",
			zap.String("address", address))

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		return a.heartbeatMonitor.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		a.logger.Info("stopping http server")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCtxCancel()

		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		a.logger.Info("http server stopped")

		return nil
	})

	err := group.Wait()

	a.shutdown()

	return err
}

func (a *App) shutdown() {
	a.service.Close()

	if a.mirror != nil {
		a.mirror.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.mongoClient != nil {
		err := a.mongoClient.Disconnect(ctx)
		if err != nil {
			a.logger.Warn("failed to disconnect from mongodb", zap.Error(err))
		}
	}

	if a.redisClient != nil {
		err := a.redisClient.Close()
		if err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
}

func defaultNodeId() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "relay"
	}

	return hostname + "-" + gonanoid.Must(8)
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		bootLogger, _ := zap.NewDevelopment()
		bootLogger.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	app, err := NewApp(ctx, logger, settings)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}

	err = app.run(ctx)
	if err != nil {
		logger.Fatal("relay stopped with error", zap.Error(err))
	}
}

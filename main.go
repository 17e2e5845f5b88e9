package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"dm-service/internal/config"
	"dm-service/internal/db"
	grpcclient "dm-service/internal/grpc"
	"dm-service/internal/handlers"
	"dm-service/internal/media"
	"dm-service/internal/messaging"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config.load.fail", "err", err)
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracing.init.fail", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var (
		messages repositories.MessageRepository
		blocks   repositories.BlockRepository
		users    repositories.UserDirectory
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("storage.memory", "reason", "STORAGE_DRIVER=memory, data is lost on restart")
		messages = repositories.NewMemoryMessageRepo(time.Now)
		blocks = repositories.NewMemoryBlockRepo()
		users = repositories.NewMemoryUserRepo(time.Now)
	default:
		database, err := db.Connect(ctx, cfg.DBDSN, log)
		if err != nil {
			log.Error("db.connect.fail", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		messages = repositories.NewMessageRepo(database)
		blocks = repositories.NewBlockRepo(database)
		users = repositories.NewUserRepo(database)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditor := telemetry.NewAuditEmitter(publisher, "audit.dm", cfg.ServiceName, cfg.Environment, log)
	log.Info("rabbitmq.mode", "mode", rabbitmq.PublisherMode(publisher))

	authConn, err := grpc.NewClient(cfg.AuthGRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		log.Error("auth.grpc.dial.fail", "addr", cfg.AuthGRPCAddr, "err", err)
		os.Exit(1)
	}
	defer authConn.Close()
	authClient := grpcclient.NewAuthClient(authConn)

	store, err := media.NewLocalStorage(cfg.MediaDir, cfg.MediaMaxBytes)
	if err != nil {
		log.Error("media.init.fail", "dir", cfg.MediaDir, "err", err)
		os.Exit(1)
	}

	hub := ws.NewHub(log)
	gateway := messaging.NewGateway(messages, blocks, users, presence.NewTypingTracker(nil), hub, log,
		messaging.WithAuditor(auditor),
	)

	chatHandler := handlers.NewChatHandler(gateway, store, log)
	wsHandler := ws.NewHandler(hub, gateway, authClient, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName), middleware.RequestID(), observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	router.Static(media.PublicPrefix, cfg.MediaDir)
	router.GET("/ws", wsHandler.Handle)

	api := router.Group("/", middleware.AuthMiddleware(authClient))
	chatHandler.RegisterRoutes(api)
	handlers.RegisterDebugRoutes(api, auditor, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http.listen", "addr", srv.Addr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http.serve.fail", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http.shutdown.fail", "err", err)
	}
	log.Info("http.stopped")
}

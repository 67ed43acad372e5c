package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/ponyo877/lounge/server/adaptor"
	"github.com/ponyo877/lounge/server/config"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/ponyo877/lounge/server/logger"
	"github.com/ponyo877/lounge/server/notifier"
	"github.com/ponyo877/lounge/server/repository"
	"github.com/ponyo877/lounge/server/usecase"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()
	repo, closeStore, err := repository.Open(ctx, repository.Config{
		Driver:    cfg.Store.Driver,
		SQLiteDSN: cfg.Store.SQLiteDSN,
		MongoURI:  cfg.Store.MongoURI,
		MongoDB:   cfg.Store.MongoDB,
	})
	if err != nil {
		lg.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	feed := newFeed(ctx, cfg, lg)

	registry := domain.NewRegistry()
	rooms := domain.NewRoomStore(domain.HistoryLimit, nil)
	hub := adaptor.NewHub(lg)
	workers := usecase.NewWorkers(cfg.Persist.Workers, cfg.Persist.QueueSize, lg)

	var observer usecase.Observer
	if feed != nil {
		observer = feed
	}
	broadcaster := usecase.NewBroadcaster(hub, registry, observer)
	direct := usecase.NewDirectResolver(rooms, registry, broadcaster, lg,
		usecase.WithConversationStore(repo, workers, cfg.Persist.Timeout))
	handler := usecase.NewSessionHandler(registry, rooms, broadcaster, direct, lg)

	gin.SetMode(gin.ReleaseMode)
	router := adaptor.NewRouter(adaptor.RouterConfig{
		Adaptor: adaptor.NewAdaptor(hub, handler, adaptor.Options{
			SendQueue:      cfg.WS.SendQueue,
			WriteWait:      cfg.WS.WriteWait,
			PongWait:       cfg.WS.PongWait,
			MaxMessageSize: cfg.WS.MaxMessageSize,
			AllowedOrigins: cfg.WS.AllowedOrigins,
		}, lg),
		Presence:     registry,
		Rooms:        rooms,
		Delivery:     hub,
		Store:        repo,
		StoreTimeout: cfg.Persist.Timeout,
		Logger:       lg,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("HTTP server is running", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	admin := adaptor.NewAdminServer()
	lis, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
	if err != nil {
		lg.Fatal("failed to listen", zap.String("addr", cfg.Admin.GRPCAddr), zap.Error(err))
	}
	go func() {
		lg.Info("gRPC admin server is running", zap.String("addr", cfg.Admin.GRPCAddr))
		if err := admin.Serve(lis); err != nil {
			lg.Error("failed to serve grpc", zap.Error(err))
		}
	}()

	shutdownCtx, forceShutdown := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer forceShutdown()
	wait := gfshutdown.GracefulShutdown(shutdownCtx, cfg.Shutdown, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			admin.SetServing(false)
			hub.CloseAll()
			return srv.Shutdown(ctx)
		},
		"grpc": func(ctx context.Context) error {
			return admin.Shutdown(ctx)
		},
		"store": func(ctx context.Context) error {
			return errors.Join(workers.Close(ctx), closeStore(ctx))
		},
		"feed": func(ctx context.Context) error {
			if feed == nil {
				return nil
			}
			return feed.Close(ctx)
		},
	})
	exitCode := <-wait
	lg.Info("Shutdown completed", zap.Int("exit_code", exitCode))
	if exitCode != 0 {
		_ = lg.Sync()
		os.Exit(exitCode)
	}
}

// newFeed connects the configured event feed sinks. Unreachable sinks are
// logged and skipped.
func newFeed(ctx context.Context, cfg *config.Config, lg *zap.Logger) *notifier.Dispatcher {
	var sinks []notifier.Sink
	if cfg.Redis.Addr != "" {
		p, err := notifier.NewRedisPresence(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Warn("Redis presence disabled", zap.Error(err))
		} else {
			sinks = append(sinks, p)
		}
	}
	if cfg.NATS.URL != "" {
		p, err := notifier.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Prefix)
		if err != nil {
			lg.Warn("NATS feed disabled", zap.Error(err))
		} else {
			sinks = append(sinks, p)
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return notifier.NewDispatcher(1024, lg, sinks...)
}

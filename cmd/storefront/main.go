package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/flowershop/gateway"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/discovery"
	grpcsrv "github.com/example/flowershop/pkg/grpc"
	"github.com/example/flowershop/pkg/notify"
	"github.com/example/flowershop/pkg/order"
	"github.com/example/flowershop/pkg/repository"
	"github.com/example/flowershop/pkg/user"
	"github.com/example/flowershop/pkg/worker"
	"go.uber.org/zap"
)

const sweeperElection = "order-sweeper"

func main() {
	configPath := os.Getenv("FLOWERSHOP_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("http", cfg.Server.Addr()),
		zap.String("grpc", cfg.GRPC.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoRepo.Close(context.Background())

	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create MongoDB indexes", zap.Error(err))
	}

	redisRepo := repository.NewRedisRepository(&cfg.Redis, cfg.Order.CacheTTL)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	db, err := repository.NewMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}

	notifications := repository.NewNotificationStore(mongoRepo.Notifications())

	// Notifications
	sinks := notify.Sinks{
		Inbox:       notifications,
		AdminEmails: cfg.Mail.AdminEmails,
		Timeout:     cfg.Mail.Timeout,
	}
	if cfg.Mail.Enabled() {
		sinks.Mailer = notify.NewSMTPMailer(cfg.Mail)
	}
	if cfg.Kafka.Enabled() {
		publisher := notify.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
		sinks.Events = publisher
	}

	system := actor.NewActorSystem()
	dispatcher, err := notify.StartDispatcher(system, sinks, logger)
	if err != nil {
		logger.Fatal("Failed to start notifications", zap.Error(err))
	}

	// Services
	orders, err := order.NewService(cfg.Order,
		repository.NewOrderStore(mongoRepo.Orders(), cfg.Order.Timezone),
		redisRepo, redisRepo, dispatcher, logger.Named("order"))
	if err != nil {
		logger.Fatal("Failed to create order service", zap.Error(err))
	}

	users := user.NewService(cfg.Auth,
		repository.NewUserStore(db), redisRepo, repository.NewBankingStore(db), logger.Named("user"))
	if err := users.EnsureAdmin(ctx, cfg.Auth); err != nil {
		logger.Fatal("Failed to seed admin account", zap.Error(err))
	}

	// Servers
	gw := gateway.NewGateway(cfg, logger, orders, users, notify.NewInbox(notifications))
	rpc := grpcsrv.NewOrderServer(orders, logger.Named("grpc"))

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := rpc.Start(cfg.GRPC.Addr()); err != nil {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()

	// Background sweep, led by one instance when etcd is available
	sweeper := worker.NewExpirySweeper(orders, cfg.Order.SweepInterval, logger.Named("sweeper"))
	sweepDone := make(chan struct{})

	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: grpcsrv.ServiceName,
		Host: cfg.GRPC.Host,
		Port: cfg.GRPC.Port,
	}
	if cfg.Etcd.Enabled() {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd",
				zap.String("name", instance.Name),
				zap.String("address", instance.Addr()))
		}
	}

	go func() {
		defer close(sweepDone)
		if sd == nil {
			sweeper.Run(ctx)
			return
		}
		if err := sd.RunAsLeader(ctx, sweeperElection, cfg.Server.Name, sweeper.Run); err != nil {
			logger.Error("Sweeper election stopped", zap.Error(err))
		}
	}()

	logger.Info("Storefront started successfully")

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	rpc.Stop()
	<-sweepDone

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	dispatcher.Stop()
	system.Shutdown()

	logger.Info("Storefront stopped")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"imshaby_bot/internal/buildhook"
	"imshaby_bot/internal/config"
	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/identity"
	"imshaby_bot/internal/imsha"
	"imshaby_bot/internal/logging"
	"imshaby_bot/internal/notifier"
	"imshaby_bot/internal/session"
	"imshaby_bot/internal/store"
	"imshaby_bot/internal/telegram"
	"imshaby_bot/internal/token"
	"imshaby_bot/internal/web"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	redisPingTimeout        = 5 * time.Second
	cronJobTimeout          = 2 * time.Minute
	webShutdownTimeout      = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
		"app_env":  cfg.AppEnv,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	sessionStore := session.NewStore(redisClient, time.Duration(cfg.SessionTTLHours)*time.Hour)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), redisPingTimeout)
	if err := sessionStore.Ping(pingCtx); err != nil {
		cancelPing()
		logger.WithError(err).Error("redis connection error")
		fmt.Fprintf(os.Stderr, "redis connection error: %v\n", err)
		os.Exit(1)
	}
	cancelPing()

	logger.WithField("event", "redis_connect").Info("connected to redis")

	userRepository := domain.NewUserRepository(mongoManager.Users())
	statsProvider := store.NewStatsProvider(mongoManager.Users())
	identityClient := identity.NewClient(cfg, logger)
	imshaClient := imsha.NewClient(cfg, logger)
	tokenManager := token.NewManager(identityClient, userRepository, logger)

	router, err := telegram.NewRouter(cfg, telegram.Dependencies{
		Sessions: sessionStore,
		Users:    userRepository,
		Tokens:   tokenManager,
		Identity: identityClient,
		Schedule: imshaClient,
		Stats:    statsProvider,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("router setup error")
		fmt.Fprintf(os.Stderr, "router setup error: %v\n", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg, router.Handle, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	parishNotifier := notifier.New(tgClient.Sender(), imshaClient, userRepository, logger)
	rebuildQueue := buildhook.NewQueue()
	dispatcher := buildhook.NewDispatcher(cfg, rebuildQueue, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ScheduleNotify, func() {
		jobCtx, cancelJob := context.WithTimeout(context.Background(), cronJobTimeout)
		defer cancelJob()
		if err := parishNotifier.CheckParishes(jobCtx); err != nil {
			logger.WithField("event", "notify_job_failed").WithError(err).Error("parish expiry scan failed")
		}
	}); err != nil {
		logger.WithError(err).Error("invalid notify schedule")
		fmt.Fprintf(os.Stderr, "invalid notify schedule: %v\n", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.ScheduleBuild, func() {
		jobCtx, cancelJob := context.WithTimeout(context.Background(), cronJobTimeout)
		defer cancelJob()
		if err := dispatcher.DrainQueue(jobCtx); err != nil {
			logger.WithField("event", "build_job_failed").WithError(err).Error("rebuild queue drain failed")
		}
	}); err != nil {
		logger.WithError(err).Error("invalid build schedule")
		fmt.Fprintf(os.Stderr, "invalid build schedule: %v\n", err)
		os.Exit(1)
	}
	scheduler.Start()

	var webhook http.Handler
	if !cfg.IsDevelopment() {
		webhook = tgClient.WebhookHandler()
	}

	webServer := web.NewServer(cfg.HTTPPort, cfg.WebhookPath, web.Deps{
		Mongo:      mongoManager,
		Redis:      sessionStore,
		Webhook:    webhook,
		Notifier:   parishNotifier,
		Dispatcher: dispatcher,
		Queue:      rebuildQueue,
	}, logger)

	webDone := make(chan struct{})
	go func() {
		if err := webServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("web server error")
		}
		close(webDone)
	}()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		if cfg.IsDevelopment() {
			tgClient.Start(telegramCtx)
		} else if err := tgClient.StartWebhook(telegramCtx); err != nil {
			logger.WithError(err).Error("webhook startup error")
		}
		close(tgDone)
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	cronStop := scheduler.Stop()
	<-cronStop.Done()
	logger.WithField("event", "cron_stopped").Info("scheduler stopped")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), webShutdownTimeout)
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("web server shutdown error")
	}
	cancelShutdown()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	if err := redisClient.Close(); err != nil {
		logger.WithError(err).Error("redis close error")
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(closeCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelClose()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

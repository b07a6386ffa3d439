package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/api"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/export"
	"staybook/internal/google"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/notify"
	"staybook/internal/pricing"
	"staybook/internal/repository"
	"staybook/internal/service"
	"staybook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	syncPurgeSchedule  = "0 30 4 * * *"
	syncRetention      = 7 * 24 * time.Hour
	sheetsCacheRefresh = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	locker := initLocker(cfg, redisClient, logger)

	weekend, err := cfg.Booking.Weekend()
	if err != nil {
		return err
	}
	calculator := pricing.NewCalculator(pricing.Policy{
		Weekend:                weekend,
		WeeklyThresholdNights:  cfg.Booking.WeeklyThresholdNights,
		MonthlyThresholdNights: cfg.Booking.MonthlyThresholdNights,
		Strict:                 cfg.StrictPricing(),
	})

	eventBus := events.NewEventBus(logging.Component(logger, "events"))
	notifier, err := initNotifier(cfg, eventBus, logger)
	if err != nil {
		return err
	}

	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, logger); sheetsService != nil {
		go sheetsService.StartCacheRefresh(ctx, sheetsCacheRefresh)

		retryPolicy := worker.RetryPolicy{
			MaxRetries:   cfg.Google.SyncMaxRetries,
			InitialDelay: time.Duration(cfg.Google.SyncRetryDelaySeconds) * time.Second,
			MaxDelay:     time.Duration(cfg.Google.SyncMaxDelaySeconds) * time.Second,
		}
		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, retryPolicy, logging.Component(logger, "sheets-worker"))
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	bookingService := service.NewBookingService(db, calculator, locker, eventBus, syncWorker,
		cfg.Booking.PaymentWindow(), logging.Component(logger, "booking-service"))
	homestayService := service.NewHomestayService(db, calculator, eventBus, logging.Component(logger, "homestay-service"))
	exporter := export.NewExporter(db, cfg.Exports.Path, logging.Component(logger, "export"))

	scheduler, err := initScheduler(cfg, db, bookingService, notifier, logger)
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, homestayService, exporter, db, logging.Component(logger, "http"))
	return serve(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if len(cfg.Homestays) > 0 {
		if err := db.SyncHomestays(ctx, cfg.Homestays); err != nil {
			db.Close()
			return nil, fmt.Errorf("sync homestays: %w", err)
		}
		logger.Info().Int("count", len(cfg.Homestays)).Msg("homestays synced from config")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		// блокировки переживут недоступность Redis через failover
		logger.Warn().Err(err).Msg("redis ping failed, locks will fall back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.HomestayLocker {
	wait := time.Duration(cfg.Locking.WaitTimeoutMS) * time.Millisecond
	memory := repository.NewMemoryLocker(wait)

	if cfg.Locking.Backend != "redis" || redisClient == nil {
		logger.Info().Msg("using in-process homestay locks")
		return memory
	}

	ttl := time.Duration(cfg.Locking.TTLSeconds) * time.Second
	primary := repository.NewRedisLocker(redisClient, ttl, wait)
	logger.Info().Dur("ttl", ttl).Dur("wait", wait).Msg("using redis homestay locks")
	return repository.NewFailoverLocker(primary, memory, logging.Component(logger, "locker"))
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID,
		logging.Component(logger, "sheets"))
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		email, _ := google.GetServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("service_account", email).Msg("google sheets not reachable, share the spreadsheet with the service account")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) (*notify.TelegramNotifier, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return nil, err
	}
	botAPI.Debug = cfg.Telegram.Debug

	notifier := notify.NewTelegramNotifier(botAPI, cfg.Telegram.NotifyChatIDs, cfg.Booking.Currency,
		logging.Component(logger, "notify"))
	notifier.Attach(bus)
	logger.Info().Str("bot", botAPI.Self.UserName).Int("chats", len(cfg.Telegram.NotifyChatIDs)).Msg("telegram notifications enabled")
	return notifier, nil
}

func initScheduler(
	cfg *config.Config,
	db *database.DB,
	bookings *service.BookingService,
	notifier *notify.TelegramNotifier,
	logger *zerolog.Logger,
) (*worker.Scheduler, error) {
	scheduler := worker.NewScheduler(logging.Component(logger, "scheduler"))

	if cfg.Sweeper.Enabled {
		if err := scheduler.Register("expiry-sweep", cfg.Sweeper.Schedule, worker.ExpirySweep(bookings.ExpirePending)); err != nil {
			return nil, err
		}
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
		if err := scheduler.Register("backup", cfg.Backup.Schedule, backupService.Run); err != nil {
			return nil, err
		}
	}

	if notifier != nil {
		if err := scheduler.Register("arrivals-digest", cfg.Telegram.DigestSchedule, notifier.ArrivalsDigest(db, nil)); err != nil {
			return nil, err
		}
	}

	if err := scheduler.Register("sync-queue-purge", syncPurgeSchedule,
		worker.SyncQueuePurge(db.PurgeCompletedSyncTasks, syncRetention)); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("env", cfg.App.Environment).Msg("staybook started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("staybook stopped")
	return nil
}

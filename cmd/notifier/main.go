package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/central-university-dev/go-forum-notifier/internal/common/metrics"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/central-university-dev/go-forum-notifier/internal/database"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/cache"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/clients"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/consumer"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/handler"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/notify"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/service"
	"github.com/central-university-dev/go-forum-notifier/pkg"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
)

func gracefulShutdown(
	ctx context.Context,
	server *http.Server,
	eventConsumer *consumer.Consumer,
	digestService *service.DigestService,
	stopCh <-chan struct{},
	appLogger *slog.Logger,
) {
	<-stopCh
	appLogger.Info("Получен сигнал завершения")

	if digestService != nil {
		digestService.Stop()
	}

	if err := eventConsumer.Close(); err != nil {
		appLogger.Error("Ошибка при остановке консьюмера Kafka",
			"error", err,
		)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Ошибка при остановке HTTP сервера",
			"error", err,
		)
	}

	appLogger.Info("Сервер успешно остановлен")
}

func startHTTPServer(server *http.Server, port int, stopCh chan<- struct{}, appLogger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLogger.Info("Получен системный сигнал",
			"signal", sig.String(),
		)
		close(stopCh)
	}()

	go func() {
		appLogger.Info("Запуск HTTP сервера API предпочтений",
			"port", port,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Ошибка при запуске HTTP сервера",
				"error", err,
			)
			close(stopCh)
		}
	}()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка запуска сервиса: %v\n", err)
		os.Exit(1)
	}
}

//nolint:funlen // Длина функции обусловлена необходимостью последовательной инициализации всех компонентов.
func run() error {
	appLogger := pkg.NewLogger(os.Stdout)

	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при подключении к базе данных",
			"error", err,
		)

		return fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	defer db.Close()

	txManager := txs.NewTxManager(db.Pool, appLogger)

	repoFactory := repository.NewFactory(db, cfg, appLogger)

	prefRepo, err := repoFactory.CreatePreferenceRepository()
	if err != nil {
		appLogger.Error("Ошибка при создании репозитория предпочтений",
			"error", err,
		)

		return err
	}

	digestRepo, err := repoFactory.CreateDigestRepository()
	if err != nil {
		appLogger.Error("Ошибка при создании репозитория дайджестов",
			"error", err,
		)

		return err
	}

	forumClient := clients.NewForumClient("", cfg, appLogger)
	platformClient := clients.NewPlatformClient("", cfg, appLogger)

	var courseCache service.CourseCache

	redisCache, err := cache.NewRedisCourseCache(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, cfg.RedisCacheTTL, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при подключении к Redis",
			"error", err,
		)

		appLogger.Warn("Продолжаем без кэша названий курсов")
	} else {
		courseCache = redisCache

		defer redisCache.Close()
	}

	notifierFactory := notify.NewNotifierFactory(cfg, appLogger)

	emailNotifier, err := notifierFactory.CreateNotifier()
	if err != nil {
		appLogger.Error("Ошибка при создании нотификатора",
			"error", err,
		)

		return err
	}

	notifierService := service.NewNotifierService(
		forumClient,
		platformClient,
		courseCache,
		prefRepo,
		digestRepo,
		emailNotifier,
		txManager,
		cfg,
		appLogger,
	)

	var digestService *service.DigestService

	if cfg.DigestSchedulerEnabled {
		digestService = service.NewDigestService(
			digestRepo,
			platformClient,
			courseCache,
			emailNotifier,
			txManager,
			cfg,
			appLogger,
		)
		digestService.Start(ctx)
		appLogger.Info("Планировщик дайджестов успешно запущен")
	} else {
		appLogger.Info("Планировщик дайджестов отключён в конфигурации")
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")

	eventConsumer := consumer.NewConsumer(
		brokers,
		cfg.ConsumerGroupID,
		cfg.TopicForumEvents,
		cfg.TopicDeadLetterQueue,
		notifierService,
		appLogger,
	)
	eventConsumer.Start(ctx)

	metricsServer := metrics.NewMetricsServer(cfg.MetricsPort, appLogger)

	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			appLogger.Error("Ошибка при запуске сервера метрик",
				"error", err,
			)
		}
	}()

	prefService := service.NewPreferenceService(prefRepo, appLogger)
	prefHandler := handler.NewPreferenceHandler(prefService, appLogger)
	httpServer := handler.NewServer(ctx, cfg, prefHandler, appLogger)

	stopCh := make(chan struct{})

	startHTTPServer(httpServer, cfg.ServerPort, stopCh, appLogger)

	gracefulShutdown(ctx, httpServer, eventConsumer, digestService, stopCh, appLogger)

	return nil
}

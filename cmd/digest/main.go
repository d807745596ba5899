package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/central-university-dev/go-forum-notifier/internal/database"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/cache"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/clients"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/notify"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/service"
	"github.com/central-university-dev/go-forum-notifier/pkg"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
)

// Одноразовая отправка дайджестов: запускается по расписанию извне
// (cron, CI) с флагом --digest=daily или --digest=weekly.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка отправки дайджестов: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cadenceFlag := flag.String("digest", "", "периодичность дайджеста: daily или weekly")
	flag.Parse()

	cadence := models.DigestCadence(*cadenceFlag)
	if !cadence.IsValid() {
		flag.Usage()

		return fmt.Errorf("некорректное значение флага --digest: %q", *cadenceFlag)
	}

	appLogger := pkg.NewLogger(os.Stdout)

	cfg := config.LoadConfig()

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	defer db.Close()

	txManager := txs.NewTxManager(db.Pool, appLogger)

	repoFactory := repository.NewFactory(db, cfg, appLogger)

	digestRepo, err := repoFactory.CreateDigestRepository()
	if err != nil {
		return err
	}

	platformClient := clients.NewPlatformClient("", cfg, appLogger)

	var courseCache service.CourseCache

	redisCache, err := cache.NewRedisCourseCache(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, cfg.RedisCacheTTL, appLogger)
	if err != nil {
		appLogger.Warn("Redis недоступен, продолжаем без кэша названий курсов",
			"error", err,
		)
	} else {
		courseCache = redisCache

		defer redisCache.Close()
	}

	notifierFactory := notify.NewNotifierFactory(cfg, appLogger)

	emailNotifier, err := notifierFactory.CreateNotifier()
	if err != nil {
		return err
	}

	digestService := service.NewDigestService(
		digestRepo,
		platformClient,
		courseCache,
		emailNotifier,
		txManager,
		cfg,
		appLogger,
	)

	sent, err := digestService.Flush(ctx, cadence)
	if err != nil {
		return err
	}

	fmt.Printf("Отправлено дайджестов (%s): %d\n", cadence, sent)

	return nil
}

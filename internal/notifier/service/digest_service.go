package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/common/metrics"
	"github.com/central-university-dev/go-forum-notifier/internal/common/textutil"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/clients"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/notify"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository"
	"github.com/go-co-op/gocron"
)

// DigestService отправляет накопленные дайджесты и сбрасывает их после
// успешной отправки.
type DigestService struct {
	digestRepo     repository.DigestRepository
	platformClient clients.PlatformGetter
	courseCache    CourseCache
	emailNotifier  notify.EmailNotifier
	txManager      Transactor
	config         *config.Config
	logger         *slog.Logger
	scheduler      *gocron.Scheduler
}

func NewDigestService(
	digestRepo repository.DigestRepository,
	platformClient clients.PlatformGetter,
	courseCache CourseCache,
	emailNotifier notify.EmailNotifier,
	txManager Transactor,
	cfg *config.Config,
	logger *slog.Logger,
) *DigestService {
	return &DigestService{
		digestRepo:     digestRepo,
		platformClient: platformClient,
		courseCache:    courseCache,
		emailNotifier:  emailNotifier,
		txManager:      txManager,
		config:         cfg,
		logger:         logger,
		scheduler:      gocron.NewScheduler(time.UTC),
	}
}

// Start настраивает периодический сброс дайджестов: дневной каждый день и
// недельный в выбранный день недели.
func (s *DigestService) Start(ctx context.Context) {
	s.logger.Info("Запуск планировщика дайджестов",
		"dailyTime", s.config.DigestDailyTime,
		"weeklyTime", s.config.DigestWeeklyTime,
		"weeklyDay", s.config.DigestWeeklyDay,
	)

	_, err := s.scheduler.Every(1).Day().At(s.config.DigestDailyTime).Do(func() {
		if _, err := s.Flush(ctx, models.CadenceDaily); err != nil {
			s.logger.Error("Ошибка при отправке дневных дайджестов",
				"error", err,
			)
		}
	})
	if err != nil {
		s.logger.Error("Ошибка при настройке дневного дайджеста",
			"error", err,
		)
	}

	weekly := s.scheduler.Every(1).Week().At(s.config.DigestWeeklyTime)

	switch strings.ToLower(s.config.DigestWeeklyDay) {
	case "tuesday":
		weekly = weekly.Tuesday()
	case "wednesday":
		weekly = weekly.Wednesday()
	case "thursday":
		weekly = weekly.Thursday()
	case "friday":
		weekly = weekly.Friday()
	case "saturday":
		weekly = weekly.Saturday()
	case "sunday":
		weekly = weekly.Sunday()
	default:
		weekly = weekly.Monday()
	}

	_, err = weekly.Do(func() {
		if _, err := s.Flush(ctx, models.CadenceWeekly); err != nil {
			s.logger.Error("Ошибка при отправке недельных дайджестов",
				"error", err,
			)
		}
	})
	if err != nil {
		s.logger.Error("Ошибка при настройке недельного дайджеста",
			"error", err,
		)
	}

	s.scheduler.StartAsync()
}

func (s *DigestService) Stop() {
	s.logger.Info("Остановка планировщика дайджестов")
	s.scheduler.Stop()
}

// Flush отправляет все дайджесты заданной периодичности, у которых есть
// накопленные записи и истёк интервал с момента последней отправки.
// Возвращает число успешно отправленных дайджестов.
func (s *DigestService) Flush(ctx context.Context, cadence models.DigestCadence) (int, error) {
	if !cadence.IsValid() {
		return 0, &customerrors.ErrUnknownDigestCadence{Cadence: string(cadence)}
	}

	olderThan := time.Now().Add(-cadence.Interval())

	start := time.Now()

	digests, err := s.digestRepo.FindDue(ctx, cadence.Preference(), olderThan)
	if err != nil {
		metrics.RecordDatabaseQuery("SELECT", "error", time.Since(start))

		return 0, fmt.Errorf("ошибка при поиске дайджестов к отправке: %w", err)
	}

	metrics.RecordDatabaseQuery("SELECT", "success", time.Since(start))

	if len(digests) == 0 {
		s.logger.Info("Нет дайджестов к отправке",
			"cadence", cadence,
		)

		return 0, nil
	}

	s.logger.Info("Отправка дайджестов",
		"cadence", cadence,
		"total", len(digests),
	)

	workers := s.config.FlushWorkers
	if workers <= 0 {
		workers = 4
	}

	digestCh := make(chan *models.NotificationDigest)
	wg := sync.WaitGroup{}

	var sent atomic.Int64

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for digest := range digestCh {
				delivered, err := s.flushOne(ctx, cadence, digest)
				if err != nil {
					metrics.RecordDigestSent(string(cadence), "error")

					s.logger.Error("Ошибка при отправке дайджеста",
						"digestID", digest.ID,
						"userID", digest.UserID,
						"courseID", digest.CourseID,
						"error", err,
					)

					continue
				}

				if delivered {
					metrics.RecordDigestSent(string(cadence), "success")
					sent.Add(1)
				}
			}
		}()
	}

	for _, digest := range digests {
		digestCh <- digest
	}

	close(digestCh)

	wg.Wait()

	s.logger.Info("Отправка дайджестов завершена",
		"cadence", cadence,
		"sent", sent.Load(),
	)

	return int(sent.Load()), nil
}

// flushOne собирает письмо по одному дайджесту и атомарно сбрасывает его
// после успешной отправки.
func (s *DigestService) flushOne(ctx context.Context, cadence models.DigestCadence, digest *models.NotificationDigest) (bool, error) {
	profile, err := s.platformClient.GetUserProfile(ctx, digest.UserID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrUserNotFound{}) {
			s.logger.Warn("Получатель дайджеста не найден в платформе, отправка пропущена",
				"userID", digest.UserID,
				"courseID", digest.CourseID,
			)

			return false, nil
		}

		return false, fmt.Errorf("ошибка при получении профиля пользователя: %w", err)
	}

	courseName, err := s.resolveCourseName(ctx, digest.CourseID)
	if err != nil {
		return false, fmt.Errorf("ошибка при получении названия курса %s: %w", digest.CourseID, err)
	}

	items := make([]map[string]any, 0, len(digest.Items))

	for _, item := range digest.Items {
		items = append(items, map[string]any{
			"title":          item.Title,
			"body":           textutil.Simplify(item.Body),
			"url":            item.URL,
			"authorUsername": item.AuthorUsername,
			"objectType":     string(item.ObjectType),
		})
	}

	notification := &models.EmailNotification{
		Recipient: models.Recipient{
			UserID:   profile.ID,
			Email:    profile.Email,
			Username: profile.Username,
		},
		Language:   profile.Language,
		Template:   models.TemplateDigest,
		CourseID:   digest.CourseID,
		CourseName: courseName,
		Subject:    fmt.Sprintf("Дайджест форума курса %s", courseName),
		Context: map[string]any{
			"cadence":       string(cadence),
			"items":         items,
			"managementUrl": s.buildManagementURL(digest.CourseID),
		},
	}

	if err := s.emailNotifier.SendEmail(ctx, notification); err != nil {
		return false, fmt.Errorf("ошибка при отправке дайджеста: %w", err)
	}

	// Сбрасываются только записи из снимка FindDue: событие, добавленное
	// конкурентной аккумуляцией после снимка, в письмо не попало и должно
	// дождаться следующей отправки.
	sentEventIDs := make([]string, 0, len(digest.Items))
	for _, item := range digest.Items {
		sentEventIDs = append(sentEventIDs, item.EventID)
	}

	sentAt := time.Now()

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return s.digestRepo.MarkSent(ctx, digest.ID, sentAt, sentEventIDs)
	})
	if err != nil {
		metrics.RecordDatabaseQuery("UPDATE", "error", time.Since(sentAt))

		return true, fmt.Errorf("ошибка при сбросе дайджеста после отправки: %w", err)
	}

	metrics.RecordDatabaseQuery("UPDATE", "success", time.Since(sentAt))

	return true, nil
}

func (s *DigestService) resolveCourseName(ctx context.Context, courseID string) (string, error) {
	if s.courseCache != nil {
		name, found, err := s.courseCache.GetCourseName(ctx, courseID)
		if err != nil {
			s.logger.Warn("Ошибка при чтении названия курса из кэша",
				"courseID", courseID,
				"error", err,
			)
		} else if found {
			return name, nil
		}
	}

	name, err := s.platformClient.GetCourseName(ctx, courseID)
	if err != nil {
		return "", err
	}

	if s.courseCache != nil {
		if err := s.courseCache.SetCourseName(ctx, courseID, name); err != nil {
			s.logger.Warn("Ошибка при сохранении названия курса в кэше",
				"courseID", courseID,
				"error", err,
			)
		}
	}

	return name, nil
}

// buildManagementURL строит ссылку на страницу управления подпиской.
func (s *DigestService) buildManagementURL(courseID string) string {
	base := strings.TrimSuffix(s.config.LMSBaseURL, "/")

	return fmt.Sprintf("%s/courses/%s/instructor#view-forum_notifier", base, courseID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/common/metrics"
	"github.com/central-university-dev/go-forum-notifier/internal/common/textutil"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/clients"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/notify"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository"
)

type Transactor interface {
	WithTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error
}

type CourseCache interface {
	GetCourseName(ctx context.Context, courseID string) (string, bool, error)
	SetCourseName(ctx context.Context, courseID, name string) error
}

// NotifierService обрабатывает события форума: рассылает немедленные письма
// подписчикам треда и персоналу курса и накапливает события в дайджесты.
type NotifierService struct {
	forumClient    clients.ThreadSubscriberGetter
	platformClient clients.PlatformGetter
	courseCache    CourseCache
	prefRepo       repository.PreferenceRepository
	digestRepo     repository.DigestRepository
	emailNotifier  notify.EmailNotifier
	txManager      Transactor
	config         *config.Config
	logger         *slog.Logger
}

func NewNotifierService(
	forumClient clients.ThreadSubscriberGetter,
	platformClient clients.PlatformGetter,
	courseCache CourseCache,
	prefRepo repository.PreferenceRepository,
	digestRepo repository.DigestRepository,
	emailNotifier notify.EmailNotifier,
	txManager Transactor,
	cfg *config.Config,
	logger *slog.Logger,
) *NotifierService {
	return &NotifierService{
		forumClient:    forumClient,
		platformClient: platformClient,
		courseCache:    courseCache,
		prefRepo:       prefRepo,
		digestRepo:     digestRepo,
		emailNotifier:  emailNotifier,
		txManager:      txManager,
		config:         cfg,
		logger:         logger,
	}
}

// HandleForumEvent обрабатывает одно событие форума. Накопление дайджестов
// выполняется для каждого валидного события, даже если немедленная рассылка
// сорвалась; ошибка рассылки при этом возвращается вызывающей стороне.
func (s *NotifierService) HandleForumEvent(ctx context.Context, event *models.ForumEvent) error {
	if !event.ObjectType.IsValid() {
		metrics.RecordForumEvent(string(event.ObjectType), "invalid")

		return &customerrors.ErrInvalidForumObjectType{ObjectType: string(event.ObjectType)}
	}

	s.logger.Info("Обработка события форума",
		"eventID", event.EventID,
		"objectType", event.ObjectType,
		"courseID", event.CourseID,
		"threadID", event.ThreadID,
	)

	dispatchErr := s.dispatchToRecipients(ctx, event)
	if dispatchErr != nil {
		s.logger.Error("Ошибка немедленной рассылки, накопление дайджестов продолжается",
			"eventID", event.EventID,
			"courseID", event.CourseID,
			"error", dispatchErr,
		)
	}

	if err := s.accumulateDigests(ctx, event); err != nil {
		metrics.RecordForumEvent(string(event.ObjectType), "error")

		return err
	}

	if dispatchErr != nil {
		metrics.RecordForumEvent(string(event.ObjectType), "error")

		return dispatchErr
	}

	metrics.RecordForumEvent(string(event.ObjectType), "success")

	return nil
}

// dispatchToRecipients выполняет немедленную рассылку: сбор получателей,
// название курса и фан-аут писем. Ошибка получения названия курса фатальна
// для рассылки, отсутствие отдельного получателя в платформе приводит
// только к пропуску его письма.
func (s *NotifierService) dispatchToRecipients(ctx context.Context, event *models.ForumEvent) error {
	recipients, err := s.resolveRecipients(ctx, event)
	if err != nil {
		return err
	}

	courseName, err := s.resolveCourseName(ctx, event.CourseID)
	if err != nil {
		return fmt.Errorf("ошибка при получении названия курса %s: %w", event.CourseID, err)
	}

	s.dispatchImmediate(ctx, event, recipients, courseName)

	return nil
}

// resolveRecipients собирает получателей немедленных писем: подписчики треда
// плюс персонал курса с предпочтением "все посты", пропущенные через фильтр
// предпочтений.
func (s *NotifierService) resolveRecipients(ctx context.Context, event *models.ForumEvent) ([]int64, error) {
	start := time.Now()

	subscribers, err := s.forumClient.GetThreadSubscribers(ctx, event.SubscriptionLookupID())
	if err != nil {
		metrics.RecordSubscriberLookup("error", time.Since(start))

		return nil, fmt.Errorf("ошибка при получении подписчиков треда: %w", err)
	}

	metrics.RecordSubscriberLookup("success", time.Since(start))

	staff, err := s.prefRepo.FindUsersByPreference(ctx, event.CourseID, []models.PreferenceOption{models.PreferenceAllPosts})
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске персонала курса: %w", err)
	}

	subscriberSet := make(map[int64]struct{}, len(subscribers))
	for _, userID := range subscribers {
		subscriberSet[userID] = struct{}{}
	}

	candidates := make([]int64, 0, len(subscribers)+len(staff))
	candidates = append(candidates, subscribers...)

	for userID := range staff {
		if _, ok := subscriberSet[userID]; !ok {
			candidates = append(candidates, userID)
		}
	}

	prefs, err := s.prefRepo.FindUsersByPreference(ctx, event.CourseID, []models.PreferenceOption{
		models.PreferenceNone,
		models.PreferenceAllPosts,
		models.PreferenceOnlyFollowing,
		models.PreferenceDailyDigest,
		models.PreferenceWeeklyDigest,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске предпочтений курса: %w", err)
	}

	recipients := make([]int64, 0, len(candidates))

	for _, userID := range candidates {
		_, isSubscriber := subscriberSet[userID]
		if s.shouldNotify(userID, isSubscriber, prefs) {
			recipients = append(recipients, userID)
		}
	}

	return recipients, nil
}

// shouldNotify решает, получит ли кандидат немедленное письмо. Подписчики
// треда по умолчанию не фильтруются, остальные кандидаты проходят проверку
// сохранённого предпочтения; отсутствие записи трактуется как согласие.
func (s *NotifierService) shouldNotify(userID int64, isSubscriber bool, prefs map[int64]models.PreferenceOption) bool {
	if isSubscriber && !s.config.GateThreadSubscribers {
		return true
	}

	pref, ok := prefs[userID]
	if !ok {
		return true
	}

	switch pref {
	case models.PreferenceAllPosts, models.PreferenceOnlyFollowing:
		return true
	case models.PreferenceNone, models.PreferenceDailyDigest, models.PreferenceWeeklyDigest:
		return false
	default:
		s.logger.Warn("Неизвестное значение предпочтения, уведомление подавлено",
			"userID", userID,
			"preference", int(pref),
		)

		return false
	}
}

func (s *NotifierService) dispatchImmediate(ctx context.Context, event *models.ForumEvent, recipients []int64, courseName string) {
	if len(recipients) == 0 {
		return
	}

	workers := s.config.NotifyWorkers
	if workers <= 0 {
		workers = 4
	}

	userCh := make(chan int64)
	wg := sync.WaitGroup{}

	for i := 0; i < workers; i++ {
		workerID := i + 1

		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			for userID := range userCh {
				if err := s.sendImmediate(ctx, event, userID, courseName); err != nil {
					s.logger.Error("Ошибка при отправке немедленного уведомления",
						"worker", workerID,
						"userID", userID,
						"eventID", event.EventID,
						"error", err,
					)
				}
			}
		}(workerID)
	}

	for _, userID := range recipients {
		userCh <- userID
	}

	close(userCh)

	wg.Wait()
}

func (s *NotifierService) sendImmediate(ctx context.Context, event *models.ForumEvent, userID int64, courseName string) error {
	profile, err := s.platformClient.GetUserProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrUserNotFound{}) {
			s.logger.Warn("Получатель не найден в платформе, письмо пропущено",
				"userID", userID,
				"eventID", event.EventID,
			)

			metrics.RecordEmailDispatch("skipped")

			return nil
		}

		metrics.RecordEmailDispatch("error")

		return fmt.Errorf("ошибка при получении профиля пользователя: %w", err)
	}

	notification := &models.EmailNotification{
		Recipient: models.Recipient{
			UserID:   profile.ID,
			Email:    profile.Email,
			Username: profile.Username,
		},
		Language:   profile.Language,
		Template:   models.TemplateImmediate,
		CourseID:   event.CourseID,
		CourseName: courseName,
		Subject:    fmt.Sprintf("Новая активность на форуме курса %s", courseName),
		Context: map[string]any{
			"threadTitle":    event.Title,
			"threadBody":     textutil.Simplify(event.Body),
			"threadUrl":      s.buildPostURL(event),
			"authorId":       event.AuthorID,
			"authorUsername": event.AuthorUsername,
			"objectType":     string(event.ObjectType),
		},
	}

	if err := s.emailNotifier.SendEmail(ctx, notification); err != nil {
		metrics.RecordEmailDispatch("error")

		return err
	}

	metrics.RecordEmailDispatch("success")

	return nil
}

// accumulateDigests добавляет событие в дайджесты всех пользователей курса,
// выбравших дневную или недельную рассылку. Накопление не зависит от исхода
// немедленной рассылки.
func (s *NotifierService) accumulateDigests(ctx context.Context, event *models.ForumEvent) error {
	digestUsers, err := s.prefRepo.FindUsersByPreference(ctx, event.CourseID, []models.PreferenceOption{
		models.PreferenceDailyDigest,
		models.PreferenceWeeklyDigest,
	})
	if err != nil {
		return fmt.Errorf("ошибка при поиске получателей дайджеста: %w", err)
	}

	item := models.NewDigestItem(event)

	for userID, pref := range digestUsers {
		userID, pref := userID, pref

		start := time.Now()

		err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			return s.digestRepo.Append(ctx, userID, event.CourseID, pref, item)
		})
		if err != nil {
			metrics.RecordDatabaseQuery("UPSERT", "error", time.Since(start))
			s.logger.Error("Ошибка при накоплении события в дайджест",
				"userID", userID,
				"courseID", event.CourseID,
				"eventID", event.EventID,
				"error", err,
			)

			continue
		}

		metrics.RecordDatabaseQuery("UPSERT", "success", time.Since(start))
		metrics.RecordDigestItem(pref.String())
	}

	return nil
}

func (s *NotifierService) resolveCourseName(ctx context.Context, courseID string) (string, error) {
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

// buildPostURL строит каноническую ссылку на пост в обсуждениях курса.
func (s *NotifierService) buildPostURL(event *models.ForumEvent) string {
	base := strings.TrimSuffix(s.config.LMSBaseURL, "/")

	return fmt.Sprintf("%s/discussions/%s/posts/%s", base, event.CourseID, event.PostID())
}

package repository

import (
	"context"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
)

// PreferenceRepository работает с предпочтениями уведомлений. Строка
// предпочтения уникальна для пары (пользователь, курс).
type PreferenceRepository interface {
	Get(ctx context.Context, userID int64, courseID string) (*models.NotificationPreference, error)

	Upsert(ctx context.Context, preference *models.NotificationPreference) error

	// FindUsersByPreference возвращает пользователей курса с одним из
	// указанных предпочтений. Выборка идёт по индексу (course_id, preference).
	FindUsersByPreference(
		ctx context.Context,
		courseID string,
		preferences []models.PreferenceOption,
	) (map[int64]models.PreferenceOption, error)
}

// DigestRepository работает с накопленными дайджестами. Append и MarkSent
// конкурируют за одну строку, поэтому вызываются внутри транзакции
// с блокировкой строки.
type DigestRepository interface {
	FindByUserAndCourse(ctx context.Context, userID int64, courseID string) (*models.NotificationDigest, error)

	// Append добавляет запись в накопленный дайджест пользователя,
	// создавая строку при первом обращении. Повторное событие
	// (совпадающий eventId) не добавляется.
	Append(ctx context.Context, userID int64, courseID string, digestType models.PreferenceOption, item models.DigestItem) error

	// FindDue возвращает дайджесты указанного типа с непустым списком
	// записей, которые ни разу не отправлялись или отправлялись не
	// позднее границы olderThan.
	FindDue(ctx context.Context, digestType models.PreferenceOption, olderThan time.Time) ([]*models.NotificationDigest, error)

	// MarkSent проставляет время отправки и удаляет из дайджеста только
	// записи с перечисленными eventId. Записи, добавленные конкурентным
	// Append после снимка FindDue, остаются ждать следующей отправки.
	MarkSent(ctx context.Context, digestID int64, sentAt time.Time, sentEventIDs []string) error
}

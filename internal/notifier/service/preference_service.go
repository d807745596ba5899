package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository"
)

// PreferenceService управляет предпочтениями уведомлений пользователей.
type PreferenceService struct {
	prefRepo repository.PreferenceRepository
	logger   *slog.Logger
}

func NewPreferenceService(prefRepo repository.PreferenceRepository, logger *slog.Logger) *PreferenceService {
	return &PreferenceService{
		prefRepo: prefRepo,
		logger:   logger,
	}
}

// Get возвращает сохранённое предпочтение. Отсутствие записи означает,
// что пользователь не настраивал уведомления для курса.
func (s *PreferenceService) Get(ctx context.Context, userID int64, courseID string) (*models.NotificationPreference, error) {
	pref, err := s.prefRepo.Get(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrPreferenceNotFound{}) {
			return &models.NotificationPreference{
				UserID:     userID,
				CourseID:   courseID,
				Preference: models.PreferenceNone,
			}, nil
		}

		return nil, fmt.Errorf("ошибка при получении предпочтения: %w", err)
	}

	return pref, nil
}

// Update сохраняет новое значение предпочтения пользователя для курса.
func (s *PreferenceService) Update(ctx context.Context, userID int64, courseID string, value int) (*models.NotificationPreference, error) {
	option := models.PreferenceOption(value)
	if !option.IsValid() {
		return nil, &customerrors.ErrInvalidPreferenceValue{Value: value}
	}

	pref := &models.NotificationPreference{
		UserID:     userID,
		CourseID:   courseID,
		Preference: option,
	}

	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("ошибка при сохранении предпочтения: %w", err)
	}

	s.logger.Info("Предпочтение обновлено",
		"userID", userID,
		"courseID", courseID,
		"preference", option.String(),
	)

	return pref, nil
}

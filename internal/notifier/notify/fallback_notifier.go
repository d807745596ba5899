package notify

import (
	"context"
	"log/slog"

	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
)

type FallbackEmailNotifier struct {
	primary   EmailNotifier
	secondary EmailNotifier
	logger    *slog.Logger
}

func NewFallbackEmailNotifier(primary, secondary EmailNotifier, logger *slog.Logger) *FallbackEmailNotifier {
	return &FallbackEmailNotifier{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (n *FallbackEmailNotifier) SendEmail(ctx context.Context, notification *models.EmailNotification) error {
	err := n.primary.SendEmail(ctx, notification)
	if err == nil {
		return nil
	}

	n.logger.Warn("Основной транспорт недоступен, переключаемся на резервный",
		"primaryError", err,
		"userID", notification.Recipient.UserID,
	)

	fallbackErr := n.secondary.SendEmail(ctx, notification)
	if fallbackErr != nil {
		return err
	}

	n.logger.Info("Письмо успешно отправлено через резервный транспорт",
		"userID", notification.Recipient.UserID,
	)

	return nil
}

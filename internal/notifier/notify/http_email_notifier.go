package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/central-university-dev/go-forum-notifier/internal/common/httputil"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/go-resty/resty/v2"
)

type HTTPEmailNotifier struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

func NewHTTPEmailNotifier(baseURL string, cfg *config.Config, logger *slog.Logger) *HTTPEmailNotifier {
	if baseURL == "" {
		baseURL = "http://email_gateway:8082"
	}

	client := httputil.CreateResilientHTTPClient(cfg, logger, "email_gateway")

	return &HTTPEmailNotifier{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (n *HTTPEmailNotifier) SendEmail(ctx context.Context, notification *models.EmailNotification) error {
	n.logger.Info("Отправка письма через email-шлюз",
		"userID", notification.Recipient.UserID,
		"template", notification.Template,
		"courseID", notification.CourseID,
	)

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notification).
		Post(n.baseURL + "/emails")
	if err != nil {
		n.logger.Error("Ошибка при отправке письма через email-шлюз",
			"error", err,
		)

		return fmt.Errorf("ошибка при отправке письма: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("email-шлюз вернул статус: %d", resp.StatusCode())
	}

	n.logger.Info("Письмо успешно отправлено")

	return nil
}

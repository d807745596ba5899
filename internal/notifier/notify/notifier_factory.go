package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
)

type NotifierType string

const (
	HTTPNotifier  NotifierType = "HTTP"
	KafkaNotifier NotifierType = "KAFKA"
)

type EmailNotifier interface {
	SendEmail(ctx context.Context, notification *models.EmailNotification) error
}

type NotifierFactory struct {
	config *config.Config
	logger *slog.Logger
}

func NewNotifierFactory(config *config.Config, logger *slog.Logger) *NotifierFactory {
	return &NotifierFactory{
		config: config,
		logger: logger,
	}
}

// CreateNotifier собирает транспорт по конфигурации и, если включён резервный
// транспорт, оборачивает основной в FallbackEmailNotifier.
func (f *NotifierFactory) CreateNotifier() (EmailNotifier, error) {
	primary, err := f.createByType(f.config.EmailTransport)
	if err != nil {
		return nil, err
	}

	if !f.config.FallbackEnabled {
		return primary, nil
	}

	secondary, err := f.createByType(f.config.FallbackTransport)
	if err != nil {
		return nil, err
	}

	return NewFallbackEmailNotifier(primary, secondary, f.logger), nil
}

func (f *NotifierFactory) createByType(transport string) (EmailNotifier, error) {
	notifierType := NotifierType(strings.ToUpper(transport))

	f.logger.Info("Создание нотификатора",
		"type", notifierType,
	)

	switch notifierType {
	case HTTPNotifier:
		return NewHTTPEmailNotifier(f.config.EmailGatewayURL, f.config, f.logger), nil
	case KafkaNotifier:
		brokers := strings.Split(f.config.KafkaBrokers, ",")
		return NewKafkaEmailNotifier(brokers, f.config.TopicEmailMessages, f.config.TopicDeadLetterQueue, f.logger), nil
	default:
		return nil, &customerrors.ErrUnknownNotifierType{Type: transport}
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

type KafkaEmailNotifier struct {
	producer    *kafka.Writer
	dlqProducer *kafka.Writer
	logger      *slog.Logger
	emailTopic  string
	dlqTopic    string
}

func NewKafkaEmailNotifier(brokers []string, emailTopic, dlqTopic string, logger *slog.Logger) *KafkaEmailNotifier {
	producer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        emailTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	dlqProducer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	return &KafkaEmailNotifier{
		producer:    producer,
		dlqProducer: dlqProducer,
		logger:      logger,
		emailTopic:  emailTopic,
		dlqTopic:    dlqTopic,
	}
}

func (n *KafkaEmailNotifier) SendEmail(ctx context.Context, notification *models.EmailNotification) error {
	n.logger.Info("Отправка письма в Kafka",
		"userID", notification.Recipient.UserID,
		"template", notification.Template,
		"topic", n.emailTopic,
	)

	value, err := json.Marshal(notification)
	if err != nil {
		n.logger.Error("Ошибка при сериализации сообщения",
			"error", err,
		)

		return fmt.Errorf("ошибка при сериализации сообщения: %w", err)
	}

	err = n.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", notification.Recipient.UserID)),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		n.logger.Error("Ошибка при отправке сообщения в Kafka",
			"error", err,
		)

		return fmt.Errorf("ошибка при отправке сообщения в Kafka: %w", err)
	}

	n.logger.Info("Письмо успешно отправлено в Kafka")

	return nil
}

func (n *KafkaEmailNotifier) SendToDLQ(ctx context.Context, message []byte, errMsg string) error {
	n.logger.Info("Отправка сообщения в DLQ",
		"error", errMsg,
		"topic", n.dlqTopic,
	)

	err := n.dlqProducer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("error"),
		Value: message,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(errMsg)},
			{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		},
		Time: time.Now(),
	})
	if err != nil {
		n.logger.Error("Ошибка при отправке сообщения в DLQ",
			"error", err,
		)

		return fmt.Errorf("ошибка при отправке сообщения в DLQ: %w", err)
	}

	n.logger.Info("Сообщение успешно отправлено в DLQ")

	return nil
}

func (n *KafkaEmailNotifier) Close() error {
	if err := n.producer.Close(); err != nil {
		return err
	}

	return n.dlqProducer.Close()
}

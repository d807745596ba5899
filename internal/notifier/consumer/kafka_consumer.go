package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

// ForumEventMessage описывает формат события форума в топике Kafka.
type ForumEventMessage struct {
	EventID        string `json:"eventId"`
	ThreadID       string `json:"threadId"`
	DiscussionID   string `json:"discussionId"`
	CourseID       string `json:"courseId"`
	Body           string `json:"body"`
	Title          string `json:"title,omitempty"`
	URL            string `json:"url,omitempty"`
	AuthorID       int64  `json:"authorId"`
	AuthorUsername string `json:"authorUsername"`
	AuthorEmail    string `json:"authorEmail"`
	ObjectType     string `json:"objectType"`
}

type EventHandler interface {
	HandleForumEvent(ctx context.Context, event *models.ForumEvent) error
}

type dlqPublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	processAttempts   = 3
	processRetryDelay = time.Second
)

type Consumer struct {
	reader       *kafka.Reader
	dlqWriter    dlqPublisher
	eventHandler EventHandler
	logger       *slog.Logger
	eventTopic   string
	dlqTopic     string
	retryDelay   time.Duration
}

func NewConsumer(
	brokers []string,
	groupID string,
	eventTopic string,
	dlqTopic string,
	eventHandler EventHandler,
	logger *slog.Logger,
) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          eventTopic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: 1 * time.Second,
		Logger:         kafka.LoggerFunc(logger.Debug),
		ErrorLogger:    kafka.LoggerFunc(logger.Error),
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	return &Consumer{
		reader:       reader,
		dlqWriter:    dlqWriter,
		eventHandler: eventHandler,
		logger:       logger,
		eventTopic:   eventTopic,
		dlqTopic:     dlqTopic,
		retryDelay:   processRetryDelay,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("Запуск потребления событий форума из Kafka",
		"topic", c.eventTopic,
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Остановка потребления событий форума из Kafka")
				return
			default:
				msg, err := c.reader.ReadMessage(ctx)
				if err != nil {
					c.logger.Error("Ошибка при чтении сообщения из Kafka",
						"error", err,
					)

					continue
				}

				c.logger.Info("Получено событие форума из Kafka",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)

				if err := c.processMessage(ctx, &msg); err != nil {
					c.logger.Error("Ошибка при обработке события форума",
						"error", err,
					)
				}
			}
		}
	}()
}

func (c *Consumer) processMessage(ctx context.Context, msg *kafka.Message) error {
	var eventMessage ForumEventMessage

	if err := json.Unmarshal(msg.Value, &eventMessage); err != nil {
		c.logger.Error("Ошибка при десериализации события",
			"error", err,
		)

		if sendErr := c.sendToDLQ(ctx, msg.Value, fmt.Sprintf("Ошибка десериализации: %s", err)); sendErr != nil {
			c.logger.Error("Ошибка при отправке сообщения в DLQ",
				"error", sendErr,
			)
		}

		return fmt.Errorf("ошибка при десериализации события: %w", err)
	}

	objectType := models.ForumObjectType(eventMessage.ObjectType)
	if !objectType.IsValid() {
		newErr := &customerrors.ErrInvalidForumObjectType{ObjectType: eventMessage.ObjectType}

		c.logger.Error("Событие с неизвестным типом объекта",
			"objectType", eventMessage.ObjectType,
		)

		if sendErr := c.sendToDLQ(ctx, msg.Value, newErr.Error()); sendErr != nil {
			c.logger.Error("Ошибка при отправке сообщения в DLQ",
				"error", sendErr,
			)
		}

		return newErr
	}

	event := &models.ForumEvent{
		EventID:        eventMessage.EventID,
		ThreadID:       eventMessage.ThreadID,
		DiscussionID:   eventMessage.DiscussionID,
		CourseID:       eventMessage.CourseID,
		Body:           eventMessage.Body,
		Title:          eventMessage.Title,
		URL:            eventMessage.URL,
		AuthorID:       eventMessage.AuthorID,
		AuthorUsername: eventMessage.AuthorUsername,
		AuthorEmail:    eventMessage.AuthorEmail,
		ObjectType:     objectType,
	}

	// Оффсет группы коммитится независимо от исхода обработки, поэтому
	// событие после исчерпания попыток уходит в DLQ, а не теряется.
	var lastErr error

	for attempt := 1; attempt <= processAttempts; attempt++ {
		lastErr = c.eventHandler.HandleForumEvent(ctx, event)
		if lastErr == nil {
			c.logger.Info("Событие форума успешно обработано")

			return nil
		}

		c.logger.Error("Ошибка при обработке события форума",
			"attempt", attempt,
			"eventID", event.EventID,
			"error", lastErr,
		)

		if attempt < processAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
	}

	if sendErr := c.sendToDLQ(ctx, msg.Value, lastErr.Error()); sendErr != nil {
		c.logger.Error("Ошибка при отправке сообщения в DLQ",
			"error", sendErr,
		)
	}

	return fmt.Errorf("ошибка при обработке события форума: %w", lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, message []byte, errMsg string) error {
	c.logger.Info("Отправка сообщения в DLQ",
		"error", errMsg,
		"topic", c.dlqTopic,
	)

	err := c.dlqWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte("error"),
		Value: message,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(errMsg)},
			{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		},
		Time: time.Now(),
	})
	if err != nil {
		c.logger.Error("Ошибка при отправке сообщения в DLQ",
			"error", err,
		)

		return fmt.Errorf("ошибка при отправке сообщения в DLQ: %w", err)
	}

	c.logger.Info("Сообщение успешно отправлено в DLQ")

	return nil
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return err
	}

	return c.dlqWriter.Close()
}

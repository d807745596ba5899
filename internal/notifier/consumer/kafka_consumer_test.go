package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) HandleForumEvent(ctx context.Context, event *models.ForumEvent) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("платформа недоступна")
	}

	return nil
}

type capturingDLQ struct {
	messages []kafka.Message
}

func (d *capturingDLQ) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	d.messages = append(d.messages, msgs...)
	return nil
}

func (d *capturingDLQ) Close() error {
	return nil
}

func newTestConsumer(handler EventHandler, dlq dlqPublisher) *Consumer {
	return &Consumer{
		dlqWriter:    dlq,
		eventHandler: handler,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		eventTopic:   "forum-events",
		dlqTopic:     "forum-events-dlq",
		retryDelay:   0,
	}
}

func eventPayload() []byte {
	return []byte(`{
		"eventId": "evt-1",
		"threadId": "T1",
		"discussionId": "D1",
		"courseId": "course-v1:TU+Go+2026",
		"body": "Новый вопрос",
		"title": "Вопрос",
		"authorId": 9,
		"authorUsername": "author",
		"objectType": "thread"
	}`)
}

func TestProcessMessage_TransientFailureIsRetried(t *testing.T) {
	// Arrange
	handler := &flakyHandler{failures: 2}
	dlq := &capturingDLQ{}
	c := newTestConsumer(handler, dlq)

	msg := &kafka.Message{Value: eventPayload()}

	// Act
	err := c.processMessage(context.Background(), msg)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, handler.calls)
	assert.Empty(t, dlq.messages, "Обработанное после повтора событие не должно попадать в DLQ")
}

func TestProcessMessage_ExhaustedRetriesGoToDLQ(t *testing.T) {
	// Arrange
	handler := &flakyHandler{failures: processAttempts + 1}
	dlq := &capturingDLQ{}
	c := newTestConsumer(handler, dlq)

	msg := &kafka.Message{Value: eventPayload()}

	// Act
	err := c.processMessage(context.Background(), msg)

	// Assert: оффсет коммитится независимо от исхода, поэтому событие после
	// исчерпания попыток сохраняется в DLQ, а не теряется.
	require.Error(t, err)
	assert.Equal(t, processAttempts, handler.calls)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, eventPayload(), dlq.messages[0].Value)
}

func TestProcessMessage_InvalidObjectTypeGoesToDLQ(t *testing.T) {
	// Arrange
	handler := &flakyHandler{}
	dlq := &capturingDLQ{}
	c := newTestConsumer(handler, dlq)

	msg := &kafka.Message{Value: []byte(`{"eventId": "evt-1", "objectType": "vote"}`)}

	// Act
	err := c.processMessage(context.Background(), msg)

	// Assert
	require.Error(t, err)
	assert.Zero(t, handler.calls, "Событие с неизвестным типом не должно доходить до обработчика")
	assert.Len(t, dlq.messages, 1)
}

func TestProcessMessage_MalformedPayloadGoesToDLQ(t *testing.T) {
	// Arrange
	handler := &flakyHandler{}
	dlq := &capturingDLQ{}
	c := newTestConsumer(handler, dlq)

	msg := &kafka.Message{Value: []byte("{не json")}

	// Act
	err := c.processMessage(context.Background(), msg)

	// Assert
	require.Error(t, err)
	assert.Zero(t, handler.calls)
	assert.Len(t, dlq.messages, 1)
}

package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmailNotifier struct {
	mock.Mock
}

func (m *MockEmailNotifier) SendEmail(ctx context.Context, notification *models.EmailNotification) error {
	return m.Called(ctx, notification).Error(0)
}

func testNotification() *models.EmailNotification {
	return &models.EmailNotification{
		Recipient: models.Recipient{
			UserID:   1,
			Email:    "student@example.com",
			Username: "student",
		},
		Template: models.TemplateImmediate,
		CourseID: "course-v1:TU+Go+2026",
	}
}

func TestFallbackEmailNotifier_PrimarySuccess(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	primaryMock := new(MockEmailNotifier)
	secondaryMock := new(MockEmailNotifier)

	fallbackNotifier := notify.NewFallbackEmailNotifier(primaryMock, secondaryMock, logger)

	notification := testNotification()

	primaryMock.On("SendEmail", mock.Anything, notification).Return(nil)

	// Act
	err := fallbackNotifier.SendEmail(context.Background(), notification)

	// Assert
	require.NoError(t, err)
	primaryMock.AssertExpectations(t)
	secondaryMock.AssertNotCalled(t, "SendEmail")
}

func TestFallbackEmailNotifier_PrimaryFailsSecondarySuccess(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	primaryMock := new(MockEmailNotifier)
	secondaryMock := new(MockEmailNotifier)

	fallbackNotifier := notify.NewFallbackEmailNotifier(primaryMock, secondaryMock, logger)

	notification := testNotification()

	primaryError := errors.New("primary transport failed")

	primaryMock.On("SendEmail", mock.Anything, notification).Return(primaryError)
	secondaryMock.On("SendEmail", mock.Anything, notification).Return(nil)

	// Act
	err := fallbackNotifier.SendEmail(context.Background(), notification)

	// Assert
	require.NoError(t, err)
	primaryMock.AssertExpectations(t)
	secondaryMock.AssertExpectations(t)
}

func TestFallbackEmailNotifier_BothFail(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	primaryMock := new(MockEmailNotifier)
	secondaryMock := new(MockEmailNotifier)

	fallbackNotifier := notify.NewFallbackEmailNotifier(primaryMock, secondaryMock, logger)

	notification := testNotification()

	primaryError := errors.New("primary transport failed")
	secondaryError := errors.New("secondary transport failed")

	primaryMock.On("SendEmail", mock.Anything, notification).Return(primaryError)
	secondaryMock.On("SendEmail", mock.Anything, notification).Return(secondaryError)

	// Act
	err := fallbackNotifier.SendEmail(context.Background(), notification)

	// Assert
	require.Error(t, err)
	assert.Equal(t, primaryError, err)
	primaryMock.AssertExpectations(t)
	secondaryMock.AssertExpectations(t)
}

package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockForumClient struct {
	mock.Mock
}

func (m *MockForumClient) GetThreadSubscribers(ctx context.Context, threadID string) ([]int64, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]int64), args.Error(1)
}

type MockPlatformClient struct {
	mock.Mock
}

func (m *MockPlatformClient) GetCourseName(ctx context.Context, courseID string) (string, error) {
	args := m.Called(ctx, courseID)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformClient) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type MockPreferenceRepo struct {
	mock.Mock
}

func (m *MockPreferenceRepo) Get(ctx context.Context, userID int64, courseID string) (*models.NotificationPreference, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.NotificationPreference), args.Error(1)
}

func (m *MockPreferenceRepo) Upsert(ctx context.Context, preference *models.NotificationPreference) error {
	return m.Called(ctx, preference).Error(0)
}

func (m *MockPreferenceRepo) FindUsersByPreference(
	ctx context.Context,
	courseID string,
	preferences []models.PreferenceOption,
) (map[int64]models.PreferenceOption, error) {
	args := m.Called(ctx, courseID, preferences)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[int64]models.PreferenceOption), args.Error(1)
}

type MockDigestRepo struct {
	mock.Mock
}

func (m *MockDigestRepo) FindByUserAndCourse(ctx context.Context, userID int64, courseID string) (*models.NotificationDigest, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.NotificationDigest), args.Error(1)
}

func (m *MockDigestRepo) Append(
	ctx context.Context,
	userID int64,
	courseID string,
	digestType models.PreferenceOption,
	item models.DigestItem,
) error {
	return m.Called(ctx, userID, courseID, digestType, item).Error(0)
}

func (m *MockDigestRepo) FindDue(
	ctx context.Context,
	digestType models.PreferenceOption,
	olderThan time.Time,
) ([]*models.NotificationDigest, error) {
	args := m.Called(ctx, digestType, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NotificationDigest), args.Error(1)
}

func (m *MockDigestRepo) MarkSent(ctx context.Context, digestID int64, sentAt time.Time, sentEventIDs []string) error {
	return m.Called(ctx, digestID, sentAt, sentEventIDs).Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, notification *models.EmailNotification) error {
	return m.Called(ctx, notification).Error(0)
}

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	args := m.Called(ctx, txFunc)
	if args.Error(0) != nil {
		return args.Error(0)
	}

	return txFunc(ctx)
}

func testServiceConfig() *config.Config {
	return &config.Config{
		LMSBaseURL:    "http://lms.local/",
		NotifyWorkers: 1,
		FlushWorkers:  1,
	}
}

func allPreferences() []models.PreferenceOption {
	return []models.PreferenceOption{
		models.PreferenceNone,
		models.PreferenceAllPosts,
		models.PreferenceOnlyFollowing,
		models.PreferenceDailyDigest,
		models.PreferenceWeeklyDigest,
	}
}

func newNotifierService(
	forumClient *MockForumClient,
	platformClient *MockPlatformClient,
	prefRepo *MockPreferenceRepo,
	digestRepo *MockDigestRepo,
	emailSender *MockEmailSender,
	txManager *MockTransactor,
) *service.NotifierService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return service.NewNotifierService(
		forumClient,
		platformClient,
		nil,
		prefRepo,
		digestRepo,
		emailSender,
		txManager,
		testServiceConfig(),
		logger,
	)
}

func threadEvent() *models.ForumEvent {
	return &models.ForumEvent{
		EventID:        "evt-1",
		ThreadID:       "T1",
		DiscussionID:   "D1",
		CourseID:       "course-v1:TU+Go+2026",
		Body:           "Новый вопрос по горутинам",
		Title:          "Вопрос про каналы",
		AuthorID:       9,
		AuthorUsername: "author",
		ObjectType:     models.ForumObjectThread,
	}
}

func TestHandleForumEvent_InvalidObjectType(t *testing.T) {
	// Arrange
	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()
	event.ObjectType = "vote"

	// Act
	err := svc.HandleForumEvent(context.Background(), event)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, &customerrors.ErrInvalidForumObjectType{})
	forumClient.AssertNotCalled(t, "GetThreadSubscribers")
	emailSender.AssertNotCalled(t, "SendEmail")
}

func TestHandleForumEvent_SubscriberReceivesImmediate(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{1}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)
	platformClient.On("GetUserProfile", mock.Anything, int64(1)).Return(&models.UserProfile{
		ID:       1,
		Username: "student",
		Email:    "student@example.com",
		Language: "ru",
	}, nil)

	emailSender.On("SendEmail", mock.Anything, mock.MatchedBy(func(n *models.EmailNotification) bool {
		return n.Recipient.UserID == 1 &&
			n.Template == models.TemplateImmediate &&
			n.CourseName == "Программирование на Go" &&
			n.Context["threadUrl"] == "http://lms.local/discussions/course-v1:TU+Go+2026/posts/T1"
	})).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	emailSender.AssertExpectations(t)
}

func TestHandleForumEvent_ResponseLooksUpParentDiscussion(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()
	event.ObjectType = models.ForumObjectResponse
	event.Title = ""

	// Подписчики ответа наследуются от родительского обсуждения.
	forumClient.On("GetThreadSubscribers", mock.Anything, "D1").Return([]int64{1}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)
	platformClient.On("GetUserProfile", mock.Anything, int64(1)).Return(&models.UserProfile{
		ID: 1, Username: "student", Email: "student@example.com",
	}, nil)

	// Без заголовка каноническая ссылка указывает на родительское обсуждение.
	emailSender.On("SendEmail", mock.Anything, mock.MatchedBy(func(n *models.EmailNotification) bool {
		url, _ := n.Context["threadUrl"].(string)
		return url == "http://lms.local/discussions/course-v1:TU+Go+2026/posts/D1"
	})).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	forumClient.AssertExpectations(t)
	emailSender.AssertExpectations(t)
}

func TestHandleForumEvent_StaffGatedByPreference(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	// Пользователь 2 не подписан на тред; его запись ALL_POSTS добавляет его
	// в кандидаты, а фильтр предпочтений пропускает письмо.
	// Пользователь 3 с NONE в кандидаты персонала не попадает вовсе.
	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{2: models.PreferenceAllPosts}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{
			2: models.PreferenceAllPosts,
			3: models.PreferenceNone,
		}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)
	platformClient.On("GetUserProfile", mock.Anything, int64(2)).Return(&models.UserProfile{
		ID: 2, Username: "staff", Email: "staff@example.com",
	}, nil)

	emailSender.On("SendEmail", mock.Anything, mock.MatchedBy(func(n *models.EmailNotification) bool {
		return n.Recipient.UserID == 2
	})).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	emailSender.AssertExpectations(t)
	emailSender.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestHandleForumEvent_MissingUserSkipped(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{1, 2}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)
	platformClient.On("GetUserProfile", mock.Anything, int64(1)).
		Return(nil, &customerrors.ErrUserNotFound{UserID: 1})
	platformClient.On("GetUserProfile", mock.Anything, int64(2)).Return(&models.UserProfile{
		ID: 2, Username: "student", Email: "student@example.com",
	}, nil)

	emailSender.On("SendEmail", mock.Anything, mock.MatchedBy(func(n *models.EmailNotification) bool {
		return n.Recipient.UserID == 2
	})).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	emailSender.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestHandleForumEvent_CourseNameFailureSkipsDispatchButAccumulates(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{1}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{5: models.PreferenceDailyDigest}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).
		Return("", &customerrors.ErrCourseNotFound{CourseID: event.CourseID})

	txManager.On("WithTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	expectedItem := models.NewDigestItem(event)
	digestRepo.On("Append", mock.Anything, int64(5), event.CourseID, models.PreferenceDailyDigest, expectedItem).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert: рассылка сорвалась и ошибка возвращена, но событие при этом
	// накоплено в дайджест.
	require.Error(t, err)
	assert.ErrorIs(t, err, &customerrors.ErrCourseNotFound{})
	emailSender.AssertNotCalled(t, "SendEmail")
	digestRepo.AssertExpectations(t)
}

func TestHandleForumEvent_SubscriberLookupFailureStillAccumulates(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").
		Return(nil, errors.New("форум недоступен"))
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{6: models.PreferenceWeeklyDigest}, nil)

	txManager.On("WithTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	expectedItem := models.NewDigestItem(event)
	digestRepo.On("Append", mock.Anything, int64(6), event.CourseID, models.PreferenceWeeklyDigest, expectedItem).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.Error(t, err)
	emailSender.AssertNotCalled(t, "SendEmail")
	digestRepo.AssertExpectations(t)
}

func TestHandleForumEvent_AccumulatesDigestsForWholeCourse(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{
			5: models.PreferenceDailyDigest,
			6: models.PreferenceWeeklyDigest,
		}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)

	txManager.On("WithTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	expectedItem := models.NewDigestItem(event)
	digestRepo.On("Append", mock.Anything, int64(5), event.CourseID, models.PreferenceDailyDigest, expectedItem).Return(nil)
	digestRepo.On("Append", mock.Anything, int64(6), event.CourseID, models.PreferenceWeeklyDigest, expectedItem).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	digestRepo.AssertExpectations(t)
}

func TestHandleForumEvent_DigestAppendFailureDoesNotStopSiblings(t *testing.T) {
	// Arrange
	ctx := context.Background()

	forumClient := new(MockForumClient)
	platformClient := new(MockPlatformClient)
	prefRepo := new(MockPreferenceRepo)
	digestRepo := new(MockDigestRepo)
	emailSender := new(MockEmailSender)
	txManager := new(MockTransactor)

	svc := newNotifierService(forumClient, platformClient, prefRepo, digestRepo, emailSender, txManager)

	event := threadEvent()

	forumClient.On("GetThreadSubscribers", mock.Anything, "T1").Return([]int64{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceAllPosts}).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID, allPreferences()).
		Return(map[int64]models.PreferenceOption{}, nil)
	prefRepo.On("FindUsersByPreference", mock.Anything, event.CourseID,
		[]models.PreferenceOption{models.PreferenceDailyDigest, models.PreferenceWeeklyDigest}).
		Return(map[int64]models.PreferenceOption{
			5: models.PreferenceDailyDigest,
			6: models.PreferenceWeeklyDigest,
		}, nil)

	platformClient.On("GetCourseName", mock.Anything, event.CourseID).Return("Программирование на Go", nil)

	txManager.On("WithTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).Return(nil)

	expectedItem := models.NewDigestItem(event)
	digestRepo.On("Append", mock.Anything, int64(5), event.CourseID, models.PreferenceDailyDigest, expectedItem).
		Return(errors.New("база недоступна"))
	digestRepo.On("Append", mock.Anything, int64(6), event.CourseID, models.PreferenceWeeklyDigest, expectedItem).Return(nil)

	// Act
	err := svc.HandleForumEvent(ctx, event)

	// Assert
	require.NoError(t, err)
	digestRepo.AssertExpectations(t)
}

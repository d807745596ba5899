package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/central-university-dev/go-forum-notifier/internal/common/httputil"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/go-resty/resty/v2"
)

type PlatformClient struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

type PlatformGetter interface {
	GetCourseName(ctx context.Context, courseID string) (string, error)
	GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
}

func NewPlatformClient(baseURL string, cfg *config.Config, logger *slog.Logger) PlatformGetter {
	if baseURL == "" {
		baseURL = cfg.PlatformAPIURL
	}

	client := httputil.CreateResilientHTTPClient(cfg, logger, "platform")

	return &PlatformClient{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *PlatformClient) GetCourseName(ctx context.Context, courseID string) (string, error) {
	url := fmt.Sprintf("%s/courses/%s", c.baseURL, courseID)

	var course struct {
		DisplayName string `json:"display_name"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&course).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("ошибка при запросе курса %s: %w", courseID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return "", &customerrors.ErrCourseNotFound{CourseID: courseID}
	}

	if !resp.IsSuccess() {
		return "", fmt.Errorf("API платформы вернул статус: %d", resp.StatusCode())
	}

	return course.DisplayName, nil
}

func (c *PlatformClient) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	url := fmt.Sprintf("%s/users/%d", c.baseURL, userID)

	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Language string `json:"language"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе пользователя %d: %w", userID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, &customerrors.ErrUserNotFound{UserID: userID}
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("API платформы вернул статус: %d", resp.StatusCode())
	}

	return &models.UserProfile{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Language: user.Language,
	}, nil
}

package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/central-university-dev/go-forum-notifier/internal/common/httputil"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/go-resty/resty/v2"
)

type ForumClient struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

type ThreadSubscriberGetter interface {
	GetThreadSubscribers(ctx context.Context, threadID string) ([]int64, error)
}

func NewForumClient(baseURL string, cfg *config.Config, logger *slog.Logger) ThreadSubscriberGetter {
	if baseURL == "" {
		baseURL = cfg.ForumAPIURL
	}

	client := httputil.CreateResilientHTTPClient(cfg, logger, "forum")

	return &ForumClient{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

type subscriptionsPage struct {
	Collection []struct {
		SubscriberID int64 `json:"subscriber_id"`
	} `json:"collection"`
	Page     int `json:"page"`
	NumPages int `json:"num_pages"`
}

// GetThreadSubscribers обходит все страницы подписок треда и возвращает
// уникальные идентификаторы подписчиков.
func (c *ForumClient) GetThreadSubscribers(ctx context.Context, threadID string) ([]int64, error) {
	url := fmt.Sprintf("%s/threads/%s/subscriptions", c.baseURL, threadID)

	seen := make(map[int64]struct{})

	var subscribers []int64

	page := 1

	for {
		var result subscriptionsPage

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParam("page", fmt.Sprintf("%d", page)).
			SetResult(&result).
			Get(url)
		if err != nil {
			return nil, fmt.Errorf("ошибка при запросе подписок треда %s: %w", threadID, err)
		}

		if !resp.IsSuccess() {
			return nil, fmt.Errorf("API форума вернул статус: %d", resp.StatusCode())
		}

		for _, entry := range result.Collection {
			if _, ok := seen[entry.SubscriberID]; ok {
				continue
			}

			seen[entry.SubscriberID] = struct{}{}

			subscribers = append(subscribers, entry.SubscriberID)
		}

		if result.Page >= result.NumPages {
			break
		}

		page = result.Page + 1
	}

	return subscribers, nil
}

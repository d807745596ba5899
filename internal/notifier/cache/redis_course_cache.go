package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCourseCache хранит отображаемые названия курсов, чтобы не ходить в API
// платформы на каждое событие форума.
type RedisCourseCache struct {
	client     *redis.Client
	ttl        time.Duration
	logger     *slog.Logger
	keyPattern string
}

func NewRedisCourseCache(
	ctx context.Context,
	redisURL, password string,
	db int,
	ttl time.Duration,
	logger *slog.Logger,
) (*RedisCourseCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ошибка при подключении к Redis: %w", err)
	}

	logger.Info("Соединение с Redis для кэша курсов успешно установлено")

	return &RedisCourseCache{
		client:     client,
		ttl:        ttl,
		logger:     logger,
		keyPattern: "course:name:%s",
	}, nil
}

func (c *RedisCourseCache) GetCourseName(ctx context.Context, courseID string) (string, bool, error) {
	key := fmt.Sprintf(c.keyPattern, courseID)

	name, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("ошибка при получении названия курса из Redis: %w", err)
	}

	return name, true, nil
}

func (c *RedisCourseCache) SetCourseName(ctx context.Context, courseID, name string) error {
	key := fmt.Sprintf(c.keyPattern, courseID)

	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка при сохранении названия курса в Redis: %w", err)
	}

	c.logger.Debug("Название курса сохранено в кэше",
		"courseID", courseID,
	)

	return nil
}

func (c *RedisCourseCache) Close() error {
	return c.client.Close()
}

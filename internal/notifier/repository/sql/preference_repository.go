package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/database"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
	"github.com/jackc/pgx/v5"
)

type PreferenceRepository struct {
	db *database.PostgresDB
}

func NewPreferenceRepository(db *database.PostgresDB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) Get(ctx context.Context, userID int64, courseID string) (*models.NotificationPreference, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	row := querier.QueryRow(ctx,
		`SELECT id, user_id, course_id, preference, created_at, updated_at
		FROM forum_notification_preferences
		WHERE user_id = $1 AND course_id = $2`,
		userID, courseID)

	var pref models.NotificationPreference

	var preference int

	err := row.Scan(
		&pref.ID,
		&pref.UserID,
		&pref.CourseID,
		&preference,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrPreferenceNotFound{UserID: userID, CourseID: courseID}
		}

		return nil, fmt.Errorf("ошибка при поиске предпочтения: %w", err)
	}

	pref.Preference = models.PreferenceOption(preference)

	return &pref, nil
}

func (r *PreferenceRepository) Upsert(ctx context.Context, preference *models.NotificationPreference) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	now := time.Now()
	if preference.CreatedAt.IsZero() {
		preference.CreatedAt = now
	}

	preference.UpdatedAt = now

	if preference.Preference == 0 {
		preference.Preference = models.PreferenceNone
	}

	err := querier.QueryRow(ctx,
		`INSERT INTO forum_notification_preferences (user_id, course_id, preference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, course_id) DO UPDATE
		SET preference = EXCLUDED.preference, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		preference.UserID, preference.CourseID, int(preference.Preference), preference.CreatedAt, preference.UpdatedAt,
	).Scan(&preference.ID)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении предпочтения: %w", err)
	}

	return nil
}

func (r *PreferenceRepository) FindUsersByPreference(
	ctx context.Context,
	courseID string,
	preferences []models.PreferenceOption,
) (map[int64]models.PreferenceOption, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	values := make([]int32, 0, len(preferences))
	for _, p := range preferences {
		values = append(values, int32(p))
	}

	rows, err := querier.Query(ctx,
		`SELECT user_id, preference
		FROM forum_notification_preferences
		WHERE course_id = $1 AND preference = ANY($2::smallint[])`,
		courseID, values)
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске предпочтений курса: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]models.PreferenceOption)

	for rows.Next() {
		var userID int64

		var preference int

		if err := rows.Scan(&userID, &preference); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании предпочтения: %w", err)
		}

		result[userID] = models.PreferenceOption(preference)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов запроса предпочтений: %w", err)
	}

	return result, nil
}

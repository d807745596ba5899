package orm

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/central-university-dev/go-forum-notifier/internal/database"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
	"github.com/jackc/pgx/v5"
)

type PreferenceRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewPreferenceRepository(db *database.PostgresDB) *PreferenceRepository {
	return &PreferenceRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PreferenceRepository) Get(ctx context.Context, userID int64, courseID string) (*models.NotificationPreference, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	selectQuery := r.sq.Select("id", "user_id", "course_id", "preference", "created_at", "updated_at").
		From("forum_notification_preferences").
		Where(sq.Eq{"user_id": userID, "course_id": courseID})

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск предпочтения", Cause: err}
	}

	var pref models.NotificationPreference

	var preference int

	err = querier.QueryRow(ctx, query, args...).Scan(
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

		return nil, &customerrors.ErrSQLExecution{Operation: "поиск предпочтения", Cause: err}
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

	insertQuery := r.sq.Insert("forum_notification_preferences").
		Columns("user_id", "course_id", "preference", "created_at", "updated_at").
		Values(preference.UserID, preference.CourseID, int(preference.Preference), preference.CreatedAt, preference.UpdatedAt).
		Suffix(`ON CONFLICT (user_id, course_id) DO UPDATE
			SET preference = EXCLUDED.preference, updated_at = EXCLUDED.updated_at
			RETURNING id`)

	query, args, err := insertQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "сохранение предпочтения", Cause: err}
	}

	if err := querier.QueryRow(ctx, query, args...).Scan(&preference.ID); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сохранение предпочтения", Cause: err}
	}

	return nil
}

func (r *PreferenceRepository) FindUsersByPreference(
	ctx context.Context,
	courseID string,
	preferences []models.PreferenceOption,
) (map[int64]models.PreferenceOption, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	values := make([]int, 0, len(preferences))
	for _, p := range preferences {
		values = append(values, int(p))
	}

	selectQuery := r.sq.Select("user_id", "preference").
		From("forum_notification_preferences").
		Where(sq.Eq{"course_id": courseID, "preference": values})

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск предпочтений курса", Cause: err}
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "поиск предпочтений курса", Cause: err}
	}
	defer rows.Close()

	result := make(map[int64]models.PreferenceOption)

	for rows.Next() {
		var userID int64

		var preference int

		if err := rows.Scan(&userID, &preference); err != nil {
			return nil, &customerrors.ErrSQLScan{Entity: "предпочтения", Cause: err}
		}

		result[userID] = models.PreferenceOption(preference)
	}

	if err := rows.Err(); err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "обработка результатов предпочтений", Cause: err}
	}

	return result, nil
}

package orm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/central-university-dev/go-forum-notifier/internal/database"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
	"github.com/jackc/pgx/v5"
)

type DigestRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewDigestRepository(db *database.PostgresDB) *DigestRepository {
	return &DigestRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DigestRepository) FindByUserAndCourse(ctx context.Context, userID int64, courseID string) (*models.NotificationDigest, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	selectQuery := r.sq.Select("id", "user_id", "course_id", "digest_type", "items", "last_sent", "created_at", "updated_at").
		From("forum_notification_digests").
		Where(sq.Eq{"user_id": userID, "course_id": courseID})

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск дайджеста", Cause: err}
	}

	digest, err := scanDigestRow(querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrDigestNotFound{UserID: userID, CourseID: courseID}
		}

		return nil, err
	}

	return digest, nil
}

func (r *DigestRepository) Append(
	ctx context.Context,
	userID int64,
	courseID string,
	digestType models.PreferenceOption,
	item models.DigestItem,
) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	selectQuery := r.sq.Select("id", "items").
		From("forum_notification_digests").
		Where(sq.Eq{"user_id": userID, "course_id": courseID}).
		Suffix("FOR UPDATE")

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "чтение дайджеста", Cause: err}
	}

	var digestID int64

	var rawItems []byte

	err = querier.QueryRow(ctx, query, args...).Scan(&digestID, &rawItems)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.insertDigest(ctx, querier, userID, courseID, digestType, item)
	case err != nil:
		return &customerrors.ErrSQLExecution{Operation: "чтение дайджеста", Cause: err}
	}

	var items []models.DigestItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return &customerrors.ErrSQLScan{Entity: "записи дайджеста", Cause: err}
	}

	if item.EventID != "" {
		for _, existing := range items {
			if existing.EventID == item.EventID {
				return nil
			}
		}
	}

	items = append(items, item)

	data, err := json.Marshal(items)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сериализация записей дайджеста", Cause: err}
	}

	updateQuery := r.sq.Update("forum_notification_digests").
		Set("items", data).
		Set("digest_type", int(digestType)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": digestID})

	query, args, err = updateQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "добавление записи в дайджест", Cause: err}
	}

	if _, err := querier.Exec(ctx, query, args...); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "добавление записи в дайджест", Cause: err}
	}

	return nil
}

func (r *DigestRepository) insertDigest(
	ctx context.Context,
	querier txs.Querier,
	userID int64,
	courseID string,
	digestType models.PreferenceOption,
	item models.DigestItem,
) error {
	data, err := json.Marshal([]models.DigestItem{item})
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сериализация записей дайджеста", Cause: err}
	}

	now := time.Now()

	// Гонка первых добавлений: проигравшая вставка не должна продублировать
	// уже добавленную запись того же события.
	insertQuery := r.sq.Insert("forum_notification_digests").
		Columns("user_id", "course_id", "digest_type", "items", "created_at", "updated_at").
		Values(userID, courseID, int(digestType), data, now, now).
		Suffix(`ON CONFLICT (user_id, course_id) DO UPDATE
			SET items = forum_notification_digests.items || EXCLUDED.items,
			    digest_type = EXCLUDED.digest_type,
			    updated_at = EXCLUDED.updated_at
			WHERE NOT forum_notification_digests.items @> EXCLUDED.items`)

	query, args, err := insertQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "создание дайджеста", Cause: err}
	}

	if _, err := querier.Exec(ctx, query, args...); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "создание дайджеста", Cause: err}
	}

	return nil
}

func (r *DigestRepository) FindDue(
	ctx context.Context,
	digestType models.PreferenceOption,
	olderThan time.Time,
) ([]*models.NotificationDigest, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	selectQuery := r.sq.Select("id", "user_id", "course_id", "digest_type", "items", "last_sent", "created_at", "updated_at").
		From("forum_notification_digests").
		Where(sq.Eq{"digest_type": int(digestType)}).
		Where(sq.NotEq{"items": "[]"}).
		Where(sq.Or{
			sq.Eq{"last_sent": nil},
			sq.LtOrEq{"last_sent": olderThan},
		}).
		OrderBy("id")

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск дайджестов к отправке", Cause: err}
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "поиск дайджестов к отправке", Cause: err}
	}
	defer rows.Close()

	var digests []*models.NotificationDigest

	for rows.Next() {
		digest, err := scanDigestRow(rows)
		if err != nil {
			return nil, err
		}

		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "обработка результатов дайджестов", Cause: err}
	}

	return digests, nil
}

// MarkSent удаляет только отправленные записи под блокировкой строки:
// Append, закоммиченный между снимком FindDue и сбросом, сохраняется.
func (r *DigestRepository) MarkSent(ctx context.Context, digestID int64, sentAt time.Time, sentEventIDs []string) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	selectQuery := r.sq.Select("items").
		From("forum_notification_digests").
		Where(sq.Eq{"id": digestID}).
		Suffix("FOR UPDATE")

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "чтение дайджеста", Cause: err}
	}

	var rawItems []byte

	if err := querier.QueryRow(ctx, query, args...).Scan(&rawItems); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &customerrors.ErrDigestNotFound{}
		}

		return &customerrors.ErrSQLExecution{Operation: "чтение дайджеста", Cause: err}
	}

	var items []models.DigestItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return &customerrors.ErrSQLScan{Entity: "записи дайджеста", Cause: err}
	}

	sent := make(map[string]struct{}, len(sentEventIDs))
	for _, eventID := range sentEventIDs {
		sent[eventID] = struct{}{}
	}

	remaining := make([]models.DigestItem, 0, len(items))

	for _, item := range items {
		if _, ok := sent[item.EventID]; !ok {
			remaining = append(remaining, item)
		}
	}

	data, err := json.Marshal(remaining)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сериализация записей дайджеста", Cause: err}
	}

	updateQuery := r.sq.Update("forum_notification_digests").
		Set("items", data).
		Set("last_sent", sentAt).
		Set("updated_at", sentAt).
		Where(sq.Eq{"id": digestID})

	query, args, err = updateQuery.ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "сброс дайджеста", Cause: err}
	}

	if _, err := querier.Exec(ctx, query, args...); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сброс дайджеста", Cause: err}
	}

	return nil
}

func scanDigestRow(row pgx.Row) (*models.NotificationDigest, error) {
	var digest models.NotificationDigest

	var digestType int

	var rawItems []byte

	err := row.Scan(
		&digest.ID,
		&digest.UserID,
		&digest.CourseID,
		&digestType,
		&rawItems,
		&digest.LastSent,
		&digest.CreatedAt,
		&digest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		return nil, &customerrors.ErrSQLScan{Entity: "дайджеста", Cause: err}
	}

	digest.DigestType = models.PreferenceOption(digestType)

	if err := json.Unmarshal(rawItems, &digest.Items); err != nil {
		return nil, &customerrors.ErrSQLScan{Entity: "записей дайджеста", Cause: err}
	}

	return &digest, nil
}

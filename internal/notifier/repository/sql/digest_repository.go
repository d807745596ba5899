package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/database"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/models"
	"github.com/central-university-dev/go-forum-notifier/pkg/txs"
	"github.com/jackc/pgx/v5"
)

type DigestRepository struct {
	db *database.PostgresDB
}

func NewDigestRepository(db *database.PostgresDB) *DigestRepository {
	return &DigestRepository{db: db}
}

func (r *DigestRepository) FindByUserAndCourse(ctx context.Context, userID int64, courseID string) (*models.NotificationDigest, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	row := querier.QueryRow(ctx,
		`SELECT id, user_id, course_id, digest_type, items, last_sent, created_at, updated_at
		FROM forum_notification_digests
		WHERE user_id = $1 AND course_id = $2`,
		userID, courseID)

	digest, err := scanDigest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrDigestNotFound{UserID: userID, CourseID: courseID}
		}

		return nil, err
	}

	return digest, nil
}

// Append выполняется под блокировкой строки: аккумуляция и сброс дайджеста
// конкурируют за одну и ту же запись, поэтому вызывающая сторона оборачивает
// Append в транзакцию через TxManager.
func (r *DigestRepository) Append(
	ctx context.Context,
	userID int64,
	courseID string,
	digestType models.PreferenceOption,
	item models.DigestItem,
) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	row := querier.QueryRow(ctx,
		`SELECT id, items FROM forum_notification_digests
		WHERE user_id = $1 AND course_id = $2
		FOR UPDATE`,
		userID, courseID)

	var digestID int64

	var rawItems []byte

	err := row.Scan(&digestID, &rawItems)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.insertDigest(ctx, querier, userID, courseID, digestType, item)
	case err != nil:
		return fmt.Errorf("ошибка при чтении дайджеста: %w", err)
	}

	var items []models.DigestItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return fmt.Errorf("ошибка при десериализации записей дайджеста: %w", err)
	}

	// Повторная доставка события не должна дублировать запись.
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
		return fmt.Errorf("ошибка при сериализации записей дайджеста: %w", err)
	}

	_, err = querier.Exec(ctx,
		`UPDATE forum_notification_digests
		SET items = $1, digest_type = $2, updated_at = $3
		WHERE id = $4`,
		data, int(digestType), time.Now(), digestID)
	if err != nil {
		return fmt.Errorf("ошибка при добавлении записи в дайджест: %w", err)
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
		return fmt.Errorf("ошибка при сериализации записей дайджеста: %w", err)
	}

	now := time.Now()

	// Гонка первых добавлений: проигравшая вставка не должна продублировать
	// уже добавленную запись того же события.
	_, err = querier.Exec(ctx,
		`INSERT INTO forum_notification_digests (user_id, course_id, digest_type, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, course_id) DO UPDATE
		SET items = forum_notification_digests.items || EXCLUDED.items,
		    digest_type = EXCLUDED.digest_type,
		    updated_at = EXCLUDED.updated_at
		WHERE NOT forum_notification_digests.items @> EXCLUDED.items`,
		userID, courseID, int(digestType), data, now, now)
	if err != nil {
		return fmt.Errorf("ошибка при создании дайджеста: %w", err)
	}

	return nil
}

func (r *DigestRepository) FindDue(
	ctx context.Context,
	digestType models.PreferenceOption,
	olderThan time.Time,
) ([]*models.NotificationDigest, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	rows, err := querier.Query(ctx,
		`SELECT id, user_id, course_id, digest_type, items, last_sent, created_at, updated_at
		FROM forum_notification_digests
		WHERE digest_type = $1
		  AND items <> '[]'::jsonb
		  AND (last_sent IS NULL OR last_sent <= $2)
		ORDER BY id`,
		int(digestType), olderThan)
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске дайджестов к отправке: %w", err)
	}
	defer rows.Close()

	var digests []*models.NotificationDigest

	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}

		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов запроса дайджестов: %w", err)
	}

	return digests, nil
}

// MarkSent удаляет только отправленные записи под блокировкой строки:
// Append, закоммиченный между снимком FindDue и сбросом, сохраняется.
func (r *DigestRepository) MarkSent(ctx context.Context, digestID int64, sentAt time.Time, sentEventIDs []string) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	row := querier.QueryRow(ctx,
		`SELECT items FROM forum_notification_digests
		WHERE id = $1
		FOR UPDATE`,
		digestID)

	var rawItems []byte

	if err := row.Scan(&rawItems); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &customerrors.ErrDigestNotFound{}
		}

		return fmt.Errorf("ошибка при чтении дайджеста: %w", err)
	}

	var items []models.DigestItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return fmt.Errorf("ошибка при десериализации записей дайджеста: %w", err)
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
		return fmt.Errorf("ошибка при сериализации записей дайджеста: %w", err)
	}

	_, err = querier.Exec(ctx,
		`UPDATE forum_notification_digests
		SET items = $1, last_sent = $2, updated_at = $2
		WHERE id = $3`,
		data, sentAt, digestID)
	if err != nil {
		return fmt.Errorf("ошибка при сбросе дайджеста: %w", err)
	}

	return nil
}

func scanDigest(row pgx.Row) (*models.NotificationDigest, error) {
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

		return nil, fmt.Errorf("ошибка при сканировании дайджеста: %w", err)
	}

	digest.DigestType = models.PreferenceOption(digestType)

	if err := json.Unmarshal(rawItems, &digest.Items); err != nil {
		return nil, fmt.Errorf("ошибка при десериализации записей дайджеста: %w", err)
	}

	return &digest, nil
}

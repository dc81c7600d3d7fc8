package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type NotificationsStore struct {
	pool *pgxpool.Pool
}

func NewNotificationsStore(pool *pgxpool.Pool) *NotificationsStore {
	return &NotificationsStore{pool: pool}
}

const notificationCols = `id, user_id, type, content, related_id, is_read, created_at`

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n           domain.Notification
		idUUID      pgtype.UUID
		userUUID    pgtype.UUID
		typ         string
		relatedUUID pgtype.UUID
	)
	if err := row.Scan(&idUUID, &userUUID, &typ, &n.Content, &relatedUUID, &n.IsRead, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.ID = uuidOrEmpty(idUUID)
	n.UserID = uuidOrEmpty(userUUID)
	n.Type = domain.NotificationType(typ)
	n.RelatedID = uuidOrEmpty(relatedUUID)
	return n, nil
}

func (s *NotificationsStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT ` + notificationCols + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationsStore) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	const q = `SELECT ` + notificationCols + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Notification{}, readError("get notification", err)
	}
	return n, nil
}

func (s *NotificationsStore) InsertNotification(ctx context.Context, in domain.NewNotification) (domain.Notification, error) {
	const q = `
		INSERT INTO notifications (user_id, type, content, related_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + notificationCols
	n, err := scanNotification(s.pool.QueryRow(ctx, q, in.UserID, string(in.Type), in.Content, nullIfEmpty(in.RelatedID)))
	if err != nil {
		return domain.Notification{}, writeError("insert notification", err)
	}
	return n, nil
}

func (s *NotificationsStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	const q = `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`
	ct, err := s.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return readError("mark notification read", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *NotificationsStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	const q = `UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

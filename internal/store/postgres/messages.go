package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type MessagesStore struct {
	pool *pgxpool.Pool
}

func NewMessagesStore(pool *pgxpool.Pool) *MessagesStore {
	return &MessagesStore{pool: pool}
}

const messageCols = `x.id, x.sender_id, x.receiver_id, x.content, x.media_urls, x.is_read, x.created_at, ` + summaryCols

func scanMessage(row rowScanner) (domain.DirectMessage, error) {
	var (
		m            domain.DirectMessage
		idUUID       pgtype.UUID
		senderUUID   pgtype.UUID
		receiverUUID pgtype.UUID
		media        pgtype.FlatArray[string]
		sender       summaryScan
	)
	dest := append([]any{&idUUID, &senderUUID, &receiverUUID, &m.Content, &media, &m.IsRead, &m.CreatedAt}, sender.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.DirectMessage{}, err
	}
	m.ID = uuidOrEmpty(idUUID)
	m.SenderID = uuidOrEmpty(senderUUID)
	m.ReceiverID = uuidOrEmpty(receiverUUID)
	m.MediaURLs = textArrayOrEmpty(media)
	m.Sender = sender.summary(m.SenderID)
	return m, nil
}

func (s *MessagesStore) ListConversation(ctx context.Context, userID, peerID string) ([]domain.DirectMessage, error) {
	const q = `
		SELECT ` + messageCols + `
		FROM direct_messages x
		LEFT JOIN profiles p ON p.id = x.sender_id
		WHERE (x.sender_id = $1 AND x.receiver_id = $2)
		   OR (x.sender_id = $2 AND x.receiver_id = $1)
		ORDER BY x.created_at ASC
	`
	rows, err := s.pool.Query(ctx, q, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	out := []domain.DirectMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return out, nil
}

func (s *MessagesStore) GetMessage(ctx context.Context, id string) (domain.DirectMessage, error) {
	const q = `
		SELECT ` + messageCols + `
		FROM direct_messages x
		LEFT JOIN profiles p ON p.id = x.sender_id
		WHERE x.id = $1
	`
	m, err := scanMessage(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.DirectMessage{}, readError("get message", err)
	}
	return m, nil
}

func (s *MessagesStore) InsertMessage(ctx context.Context, in domain.NewDirectMessage) (domain.DirectMessage, error) {
	const q = `
		WITH x AS (
			INSERT INTO direct_messages (sender_id, receiver_id, content, media_urls)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT ` + messageCols + `
		FROM x
		LEFT JOIN profiles p ON p.id = x.sender_id
	`
	m, err := scanMessage(s.pool.QueryRow(ctx, q, in.SenderID, in.ReceiverID, in.Content, textArrayParam(in.MediaURLs)))
	if err != nil {
		return domain.DirectMessage{}, writeError("insert message", err)
	}
	return m, nil
}

func (s *MessagesStore) MarkMessageRead(ctx context.Context, id, receiverID string) error {
	const q = `UPDATE direct_messages SET is_read = true WHERE id = $1 AND receiver_id = $2`
	ct, err := s.pool.Exec(ctx, q, id, receiverID)
	if err != nil {
		return readError("mark message read", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MessagesStore) MarkConversationRead(ctx context.Context, senderID, receiverID string) error {
	const q = `
		UPDATE direct_messages
		SET is_read = true
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT is_read
	`
	if _, err := s.pool.Exec(ctx, q, senderID, receiverID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

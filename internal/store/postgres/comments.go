package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type CommentsStore struct {
	pool *pgxpool.Pool
}

func NewCommentsStore(pool *pgxpool.Pool) *CommentsStore {
	return &CommentsStore{pool: pool}
}

const commentCols = `x.id, x.post_id, x.author_id, x.parent_comment_id, x.content, x.created_at, x.updated_at, ` + summaryCols

func scanComment(row rowScanner) (domain.Comment, error) {
	var (
		c          domain.Comment
		idUUID     pgtype.UUID
		postUUID   pgtype.UUID
		authorUUID pgtype.UUID
		parentUUID pgtype.UUID
		updatedAt  pgtype.Timestamptz
		author     summaryScan
	)
	dest := append([]any{&idUUID, &postUUID, &authorUUID, &parentUUID, &c.Content, &c.CreatedAt, &updatedAt}, author.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.Comment{}, err
	}
	c.ID = uuidOrEmpty(idUUID)
	c.PostID = uuidOrEmpty(postUUID)
	c.AuthorID = uuidOrEmpty(authorUUID)
	c.ParentID = uuidOrEmpty(parentUUID)
	c.UpdatedAt = timestamptzPtr(updatedAt)
	c.Author = author.summary(c.AuthorID)
	return c, nil
}

func (s *CommentsStore) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	const q = `
		SELECT ` + commentCols + `
		FROM comments x
		LEFT JOIN profiles p ON p.id = x.author_id
		WHERE x.post_id = $1
		ORDER BY x.created_at ASC
	`
	rows, err := s.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

func (s *CommentsStore) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	const q = `
		SELECT ` + commentCols + `
		FROM comments x
		LEFT JOIN profiles p ON p.id = x.author_id
		WHERE x.id = $1
	`
	c, err := scanComment(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Comment{}, readError("get comment", err)
	}
	return c, nil
}

func (s *CommentsStore) InsertComment(ctx context.Context, in domain.NewComment) (domain.Comment, error) {
	const q = `
		WITH x AS (
			INSERT INTO comments (post_id, author_id, parent_comment_id, content)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT ` + commentCols + `
		FROM x
		LEFT JOIN profiles p ON p.id = x.author_id
	`
	c, err := scanComment(s.pool.QueryRow(ctx, q, in.PostID, in.AuthorID, nullIfEmpty(in.ParentID), in.Content))
	if err != nil {
		return domain.Comment{}, writeError("insert comment", err)
	}
	return c, nil
}

func (s *CommentsStore) DeleteComment(ctx context.Context, id, authorID string) error {
	const q = `DELETE FROM comments WHERE id = $1 AND author_id = $2`
	ct, err := s.pool.Exec(ctx, q, id, authorID)
	if err != nil {
		return readError("delete comment", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

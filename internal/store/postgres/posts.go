package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/domain"
)

type PostsStore struct {
	pool *pgxpool.Pool
}

func NewPostsStore(pool *pgxpool.Pool) *PostsStore {
	return &PostsStore{pool: pool}
}

const postCols = `x.id, x.author_id, x.content, x.media_urls, x.visibility, x.is_published, x.created_at, x.updated_at, ` + summaryCols

func scanPost(row rowScanner) (domain.Post, error) {
	var (
		p          domain.Post
		idUUID     pgtype.UUID
		authorUUID pgtype.UUID
		media      pgtype.FlatArray[string]
		visibility string
		updatedAt  pgtype.Timestamptz
		author     summaryScan
	)
	dest := append([]any{&idUUID, &authorUUID, &p.Content, &media, &visibility, &p.IsPublished, &p.CreatedAt, &updatedAt}, author.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.Post{}, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.AuthorID = uuidOrEmpty(authorUUID)
	p.MediaURLs = textArrayOrEmpty(media)
	p.Visibility = domain.Visibility(visibility)
	p.UpdatedAt = timestamptzPtr(updatedAt)
	p.Author = author.summary(p.AuthorID)
	return p, nil
}

func (s *PostsStore) ListPublished(ctx context.Context) ([]domain.Post, error) {
	const q = `
		SELECT ` + postCols + `
		FROM posts x
		LEFT JOIN profiles p ON p.id = x.author_id
		WHERE x.is_published
		ORDER BY x.created_at DESC
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}

func (s *PostsStore) GetPost(ctx context.Context, id string) (domain.Post, error) {
	const q = `
		SELECT ` + postCols + `
		FROM posts x
		LEFT JOIN profiles p ON p.id = x.author_id
		WHERE x.id = $1
	`
	p, err := scanPost(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Post{}, readError("get post", err)
	}
	return p, nil
}

func (s *PostsStore) InsertPost(ctx context.Context, in domain.NewPost) (domain.Post, error) {
	const q = `
		WITH x AS (
			INSERT INTO posts (author_id, content, visibility, media_urls, is_published)
			VALUES ($1, $2, $3, $4, true)
			RETURNING *
		)
		SELECT ` + postCols + `
		FROM x
		LEFT JOIN profiles p ON p.id = x.author_id
	`
	p, err := scanPost(s.pool.QueryRow(ctx, q, in.AuthorID, in.Content, string(in.Visibility), textArrayParam(in.MediaURLs)))
	if err != nil {
		return domain.Post{}, writeError("insert post", err)
	}
	return p, nil
}

package livesync

import (
	"context"
	"errors"
	"strings"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

const entityComments = "comments"

// Comments mirrors the comment thread of one post, oldest first.
type Comments struct {
	opts   Options
	postID string
	store  CommentsStore
	items  *Collection[domain.Comment]
	live   *liveQuery[domain.Comment]
}

func NewComments(store CommentsStore, postID string, opts Options) (*Comments, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, validation("post_id", "required")
	}

	c := &Comments{
		opts:   opts,
		postID: postID,
		store:  store,
		items:  NewCollection[domain.Comment](),
	}
	c.live = &liveQuery[domain.Comment]{
		entity: entityComments,
		opts:   opts,
		items:  c.items,
		place:  atTail,
		filter: changes.Where(changes.TableComments, changes.Match{"post_id": postID}),
		fetchAll: func(ctx context.Context) ([]domain.Comment, error) {
			return store.ListComments(ctx, postID)
		},
		fetchOne: store.GetComment,
	}
	return c, nil
}

func (c *Comments) PostID() string { return c.postID }

func (c *Comments) Collection() *Collection[domain.Comment] { return c.items }

func (c *Comments) Comments() []domain.Comment { return c.items.Snapshot() }

func (c *Comments) Open(ctx context.Context) error {
	return c.live.open(ctx, "Failed to load comments")
}

func (c *Comments) Refresh(ctx context.Context) error {
	return c.live.load(ctx, "Failed to load comments")
}

func (c *Comments) Close() error { return c.live.close() }

func (c *Comments) Create(ctx context.Context, text string) (domain.Comment, error) {
	return c.Reply(ctx, "", text)
}

// Reply creates a comment under parentID. The thread stays flat; the parent is
// only recorded.
func (c *Comments) Reply(ctx context.Context, parentID, text string) (domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, validation("content", "required")
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	saved, err := c.store.InsertComment(rctx, domain.NewComment{
		PostID:   c.postID,
		AuthorID: c.opts.ActingUserID,
		ParentID: strings.TrimSpace(parentID),
		Content:  text,
	})
	if err != nil {
		err = domain.WriteError("create comment", err)
		c.opts.fail(entityComments, err, "Failed to post comment", "Please try again.")
		return domain.Comment{}, err
	}
	c.live.merge(saved, "write")
	return saved, nil
}

// Delete removes a comment written by the acting user. The local row goes
// only after the store confirms.
func (c *Comments) Delete(ctx context.Context, id string) error {
	if cm, ok := c.items.Get(id); ok && cm.AuthorID != c.opts.ActingUserID {
		return domain.ErrForbidden
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	if err := c.store.DeleteComment(rctx, id, c.opts.ActingUserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.items.Remove(id)
			return err
		}
		err = domain.WriteError("delete comment", err)
		c.opts.fail(entityComments, err, "Failed to delete comment", "Please try again.")
		return err
	}
	c.items.Remove(id)
	return nil
}

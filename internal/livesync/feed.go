package livesync

import (
	"context"
	"errors"
	"strings"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

const entityPosts = "posts"

// Feed mirrors the published posts, newest first.
type Feed struct {
	opts  Options
	store PostsStore
	media MediaStore
	items *Collection[domain.Post]
	live  *liveQuery[domain.Post]
}

func NewFeed(store PostsStore, media MediaStore, opts Options) (*Feed, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	f := &Feed{
		opts:  opts,
		store: store,
		media: media,
		items: NewCollection[domain.Post](),
	}
	f.live = &liveQuery[domain.Post]{
		entity:   entityPosts,
		opts:     opts,
		items:    f.items,
		place:    atHead,
		filter:   changes.Where(changes.TablePosts, changes.Match{"is_published": "true"}),
		fetchAll: store.ListPublished,
		fetchOne: store.GetPost,
	}
	return f, nil
}

func (f *Feed) Collection() *Collection[domain.Post] { return f.items }

func (f *Feed) Posts() []domain.Post { return f.items.Snapshot() }

func (f *Feed) Open(ctx context.Context) error {
	return f.live.open(ctx, "Failed to load posts")
}

func (f *Feed) Refresh(ctx context.Context) error {
	return f.live.load(ctx, "Failed to load posts")
}

func (f *Feed) Close() error { return f.live.close() }

// Create publishes a post. An empty visibility means everyone.
func (f *Feed) Create(ctx context.Context, content string, visibility domain.Visibility, mediaURLs []string) (domain.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Post{}, validation("content", "required")
	}
	if visibility == "" {
		visibility = domain.VisibilityEveryone
	}
	if !visibility.Valid() {
		return domain.Post{}, validation("visibility", "must be everyone or friends")
	}

	rctx, cancel := f.opts.remote(ctx)
	defer cancel()
	saved, err := f.store.InsertPost(rctx, domain.NewPost{
		AuthorID:   f.opts.ActingUserID,
		Content:    content,
		Visibility: visibility,
		MediaURLs:  mediaURLs,
	})
	if err != nil {
		err = domain.WriteError("create post", err)
		f.opts.fail(entityPosts, err, "Failed to create post", "Please try again.")
		return domain.Post{}, err
	}
	f.live.merge(saved, "write")
	f.opts.succeed("Post created", "Your post is live.")
	return saved, nil
}

// CreateWithMedia uploads files and publishes them with the post. If any
// upload fails the post is not created.
func (f *Feed) CreateWithMedia(ctx context.Context, content string, visibility domain.Visibility, files []domain.Upload) (domain.Post, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Post{}, validation("content", "required")
	}
	urls, err := f.upload(ctx, files)
	if err != nil {
		return domain.Post{}, err
	}
	return f.Create(ctx, content, visibility, urls)
}

// UploadMedia stores post media and returns public URLs in input order.
func (f *Feed) UploadMedia(ctx context.Context, files []domain.Upload) ([]string, error) {
	if len(files) == 0 {
		return nil, validation("files", "required")
	}
	return f.upload(ctx, files)
}

func (f *Feed) upload(ctx context.Context, files []domain.Upload) ([]string, error) {
	urls, err := uploadAll(ctx, f.media, f.opts, BucketPostMedia, "posts/", files)
	if errors.Is(err, domain.ErrUpload) {
		f.opts.fail(entityPosts, err, "Upload failed", "Failed to upload media")
	}
	return urls, err
}

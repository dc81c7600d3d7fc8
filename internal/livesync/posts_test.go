package livesync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campusconnect/internal/domain"
)

func TestCommentsCreateAndPush(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	c, err := NewComments(w.store, "p1", w.opts("alice"))
	if err != nil {
		t.Fatalf("NewComments: %v", err)
	}
	defer c.Close()
	if err := c.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	mine, err := c.Create(ctx, "  first!  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if mine.Content != "first!" || mine.Author.Username != "alice" {
		t.Fatalf("unexpected comment %+v", mine)
	}

	if _, err := w.store.InsertComment(ctx, domain.NewComment{PostID: "p2", AuthorID: "bob", Content: "elsewhere"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := w.store.InsertComment(ctx, domain.NewComment{PostID: "p1", AuthorID: "bob", Content: "second"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	eventually(t, "pushed comment", func() bool { return len(c.Comments()) == 2 })

	got := c.Comments()
	if got[0].ID != mine.ID || got[1].Content != "second" {
		t.Fatalf("unexpected thread %+v", got)
	}

	if _, err := c.Create(ctx, " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCommentsDeleteOnlyOwn(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	theirs, err := w.store.InsertComment(ctx, domain.NewComment{PostID: "p1", AuthorID: "bob", Content: "bob's"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	c, err := NewComments(w.store, "p1", Options{ActingUserID: "alice"})
	if err != nil {
		t.Fatalf("NewComments: %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	mine, err := c.Create(ctx, "alice's")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := c.Delete(ctx, theirs.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := c.Delete(ctx, mine.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.Collection().Has(mine.ID) || !c.Collection().Has(theirs.ID) {
		t.Fatalf("unexpected thread %+v", c.Comments())
	}
	if _, err := w.store.GetComment(ctx, mine.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected the comment gone from the store, got %v", err)
	}
}

func TestFeedPrependsNewPosts(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	old, err := w.store.InsertPost(ctx, domain.NewPost{AuthorID: "bob", Content: "old news"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	f, err := NewFeed(w.store, nil, w.opts("alice"))
	if err != nil {
		t.Fatalf("NewFeed: %v", err)
	}
	defer f.Close()
	if err := f.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	mine, err := f.Create(ctx, "hello campus", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if mine.Visibility != domain.VisibilityEveryone {
		t.Fatalf("expected default visibility, got %q", mine.Visibility)
	}

	pushed, err := w.store.InsertPost(ctx, domain.NewPost{AuthorID: "carol", Content: "from carol", Visibility: domain.VisibilityFriends})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	eventually(t, "pushed post", func() bool { return len(f.Posts()) == 3 })

	posts := f.Posts()
	if posts[0].ID != pushed.ID || posts[1].ID != mine.ID || posts[2].ID != old.ID {
		t.Fatalf("unexpected feed order %+v", posts)
	}
	if posts[0].Author.FullName != "Carol Poe" {
		t.Fatalf("expected joined author, got %+v", posts[0].Author)
	}

	if _, err := f.Create(ctx, "x", "public", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for visibility, got %v", err)
	}
}

func TestFeedCreateWithMediaUsesPostPrefix(t *testing.T) {
	w := newWorld(t)
	var gotKey string
	media := &stubMedia{uploadFn: func(_ context.Context, bucket, key string, _ domain.Upload, _ bool) (string, error) {
		if bucket != BucketPostMedia {
			t.Errorf("unexpected bucket %q", bucket)
		}
		gotKey = key
		return "https://cdn/" + bucket + "/" + key, nil
	}}
	now := time.UnixMilli(1700000000123)
	opts := w.opts("alice")
	opts.Now = func() time.Time { return now }
	opts.NewToken = func() string { return "k1" }
	f, err := NewFeed(w.store, media, opts)
	if err != nil {
		t.Fatalf("NewFeed: %v", err)
	}

	post, err := f.CreateWithMedia(context.Background(), "pic", domain.VisibilityFriends, []domain.Upload{{Name: "me.JPG", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("CreateWithMedia: %v", err)
	}
	if gotKey != "posts/alice/1700000000123-k1.jpg" {
		t.Fatalf("unexpected key %q", gotKey)
	}
	if len(post.MediaURLs) != 1 || !strings.HasSuffix(post.MediaURLs[0], gotKey) {
		t.Fatalf("unexpected media %v", post.MediaURLs)
	}
}

func TestProfileUpdateAndAvatar(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	var overwrite bool
	var key string
	media := &stubMedia{uploadFn: func(_ context.Context, bucket, k string, _ domain.Upload, ow bool) (string, error) {
		overwrite, key = ow, k
		return "https://cdn/" + bucket + "/" + k, nil
	}}

	p, err := NewProfile(w.store, media, Options{ActingUserID: "alice"})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if err := p.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	blank := "  "
	if _, err := p.Update(ctx, domain.ProfilePatch{FullName: &blank}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	skills := []string{"go", " go ", "", "sql"}
	bio := " hi "
	updated, err := p.Update(ctx, domain.ProfilePatch{Skills: &skills, Bio: &bio})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if strings.Join(updated.Skills, ",") != "go,sql" || updated.Bio != "hi" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	withAvatar, err := p.UploadAvatar(ctx, domain.Upload{Name: "face.png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if key != "alice/avatar.png" || !overwrite {
		t.Fatalf("unexpected upload key=%q overwrite=%v", key, overwrite)
	}
	if withAvatar.AvatarURL != "https://cdn/profile-pictures/alice/avatar.png" {
		t.Fatalf("unexpected avatar %q", withAvatar.AvatarURL)
	}
	if cur, ok := p.Profile(); !ok || cur.AvatarURL != withAvatar.AvatarURL {
		t.Fatalf("expected the hook to hold the new profile")
	}
}

type stubProfiles struct {
	ProfilesStore
	searchFn func(ctx context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error)
}

func (s *stubProfiles) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error) {
	return s.searchFn(ctx, query, excludeID, limit)
}

func TestSearchProfiles(t *testing.T) {
	called := false
	store := &stubProfiles{searchFn: func(_ context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error) {
		called = true
		if query != "cs" || excludeID != "alice" || limit != 10 {
			t.Fatalf("unexpected search %q %q %d", query, excludeID, limit)
		}
		return []domain.ProfileSummary{{ID: "alice"}, {ID: "carol"}}, nil
	}}
	ctx := context.Background()

	rows, err := SearchProfiles(ctx, store, "alice", " c ")
	if err != nil || len(rows) != 0 || called {
		t.Fatalf("short query must not search: rows=%v err=%v called=%v", rows, err, called)
	}

	rows, err = SearchProfiles(ctx, store, "alice", " cs ")
	if err != nil {
		t.Fatalf("SearchProfiles: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "carol" {
		t.Fatalf("expected only carol, got %+v", rows)
	}
}

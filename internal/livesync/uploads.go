package livesync

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"campusconnect/internal/domain"
)

const (
	BucketChatAttachments = "chat-attachments"
	BucketPostMedia       = "post-media"
	BucketProfilePictures = "profile-pictures"

	maxParallelUploads = 4
)

// mediaKey builds "<prefix><user>/<unix-ms>-<token>.<ext>". The token keeps
// batches started in the same millisecond apart; n > 0 adds "-n" to keep keys
// of one batch apart.
func mediaKey(prefix, userID string, ms int64, token string, n int, ext string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(userID)
	b.WriteString("/")
	fmt.Fprintf(&b, "%d-%s", ms, token)
	if n > 0 {
		fmt.Fprintf(&b, "-%d", n)
	}
	b.WriteString(".")
	b.WriteString(ext)
	return b.String()
}

// uploadAll stores every file and returns the public URLs in input order. It
// fails as a whole when any single upload fails.
func uploadAll(ctx context.Context, media MediaStore, opts Options, bucket, prefix string, files []domain.Upload) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if media == nil {
		return nil, domain.UploadError("upload", fmt.Errorf("no media store configured"))
	}

	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, validation("files", fmt.Sprintf("%q is empty", f.Name))
		}
	}

	ms, token := opts.Now().UnixMilli(), opts.NewToken()
	urls := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, f := range files {
		key := mediaKey(prefix, opts.ActingUserID, ms, token, i, f.Ext())
		g.Go(func() error {
			rctx, cancel := opts.remote(gctx)
			defer cancel()
			url, err := media.Upload(rctx, bucket, key, f, false)
			if err != nil {
				return domain.UploadError("upload "+f.Name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

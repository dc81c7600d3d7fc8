package livesync

import (
	"context"
	"errors"
	"strings"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

const entityMessages = "messages"

// Chat mirrors the direct messages between the acting user and one peer,
// oldest first.
type Chat struct {
	opts   Options
	peerID string
	store  MessagesStore
	media  MediaStore
	items  *Collection[domain.DirectMessage]
	live   *liveQuery[domain.DirectMessage]
}

func NewChat(store MessagesStore, media MediaStore, peerID string, opts Options) (*Chat, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, validation("peer_id", "required")
	}
	if peerID == opts.ActingUserID {
		return nil, validation("peer_id", "cannot chat with yourself")
	}

	c := &Chat{
		opts:   opts,
		peerID: peerID,
		store:  store,
		media:  media,
		items:  NewCollection[domain.DirectMessage](),
	}
	me := opts.ActingUserID
	c.live = &liveQuery[domain.DirectMessage]{
		entity: entityMessages,
		opts:   opts,
		items:  c.items,
		place:  atTail,
		filter: changes.Where(changes.TableMessages, changes.Match{"sender_id": me, "receiver_id": peerID}).
			Or(changes.Match{"sender_id": peerID, "receiver_id": me}),
		fetchAll: func(ctx context.Context) ([]domain.DirectMessage, error) {
			return store.ListConversation(ctx, me, peerID)
		},
		fetchOne: store.GetMessage,
		onPush: func(ctx context.Context, m domain.DirectMessage) {
			if m.SenderID == peerID && !m.IsRead {
				_ = c.MarkAllRead(ctx)
			}
		},
	}
	return c, nil
}

func (c *Chat) PeerID() string { return c.peerID }

func (c *Chat) Collection() *Collection[domain.DirectMessage] { return c.items }

func (c *Chat) Messages() []domain.DirectMessage { return c.items.Snapshot() }

func (c *Chat) Loading() bool { return c.items.Loading() }

// Open subscribes to the conversation, loads it and marks the peer's messages
// as read.
func (c *Chat) Open(ctx context.Context) error {
	if err := c.live.open(ctx, "Failed to load messages"); err != nil {
		return err
	}
	return c.MarkAllRead(ctx)
}

func (c *Chat) Refresh(ctx context.Context) error {
	return c.live.load(ctx, "Failed to load messages")
}

func (c *Chat) Close() error { return c.live.close() }

// Send writes a message with text, media references, or both. The stored row
// is merged locally once the store confirms it.
func (c *Chat) Send(ctx context.Context, text string, mediaURLs []string) (domain.DirectMessage, error) {
	msg := domain.NewDirectMessage{
		SenderID:   c.opts.ActingUserID,
		ReceiverID: c.peerID,
		Content:    strings.TrimSpace(text),
		MediaURLs:  mediaURLs,
	}
	if !msg.HasContent() {
		return domain.DirectMessage{}, validation("content", "message must have text or media")
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	saved, err := c.store.InsertMessage(rctx, msg)
	if err != nil {
		err = domain.WriteError("send message", err)
		c.opts.fail(entityMessages, err, "Failed to send message", "Please try again.")
		return domain.DirectMessage{}, err
	}
	c.live.merge(saved, "write")
	return saved, nil
}

// SendWithAttachments uploads files and sends them with text. If any upload
// fails nothing is sent.
func (c *Chat) SendWithAttachments(ctx context.Context, text string, files []domain.Upload) (domain.DirectMessage, error) {
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return domain.DirectMessage{}, validation("content", "message must have text or media")
	}
	urls, err := uploadAll(ctx, c.media, c.opts, BucketChatAttachments, "", files)
	if err != nil {
		if errors.Is(err, domain.ErrUpload) {
			c.opts.fail(entityMessages, err, "Upload failed", "Failed to upload file")
		}
		return domain.DirectMessage{}, err
	}
	return c.Send(ctx, text, urls)
}

// UploadFile stores one attachment and returns its public URL.
func (c *Chat) UploadFile(ctx context.Context, file domain.Upload) (string, error) {
	urls, err := uploadAll(ctx, c.media, c.opts, BucketChatAttachments, "", []domain.Upload{file})
	if err != nil {
		if errors.Is(err, domain.ErrUpload) {
			c.opts.fail(entityMessages, err, "Upload failed", "Failed to upload file")
		}
		return "", err
	}
	return urls[0], nil
}

// UploadFiles stores attachments for a later Send and returns their public
// URLs in input order.
func (c *Chat) UploadFiles(ctx context.Context, files []domain.Upload) ([]string, error) {
	if len(files) == 0 {
		return nil, validation("files", "required")
	}
	urls, err := uploadAll(ctx, c.media, c.opts, BucketChatAttachments, "", files)
	if err != nil {
		if errors.Is(err, domain.ErrUpload) {
			c.opts.fail(entityMessages, err, "Upload failed", "Failed to upload file")
		}
		return nil, err
	}
	return urls, nil
}

// MarkRead marks one received message as read. Messages the acting user sent,
// and messages already read, are left alone.
func (c *Chat) MarkRead(ctx context.Context, id string) error {
	m, ok := c.items.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	if m.ReceiverID != c.opts.ActingUserID {
		return domain.ErrForbidden
	}
	if m.IsRead {
		return nil
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	if err := c.store.MarkMessageRead(rctx, id, c.opts.ActingUserID); err != nil {
		err = domain.WriteError("mark message read", err)
		c.opts.fail(entityMessages, err, "Failed to update message", "Please try again.")
		return err
	}
	c.items.Update(id, func(m domain.DirectMessage) domain.DirectMessage {
		m.IsRead = true
		return m
	})
	return nil
}

// MarkAllRead marks every unread message from the peer as read.
func (c *Chat) MarkAllRead(ctx context.Context) error {
	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	if err := c.store.MarkConversationRead(rctx, c.peerID, c.opts.ActingUserID); err != nil {
		err = domain.WriteError("mark conversation read", err)
		c.opts.Metrics.Error(entityMessages, errorKind(err))
		c.opts.Logger.Warn("livesync: mark conversation read failed", "peer_id", c.peerID, "err", err)
		return err
	}
	me := c.opts.ActingUserID
	c.items.UpdateAll(func(m domain.DirectMessage) (domain.DirectMessage, bool) {
		if m.IsRead || m.SenderID != c.peerID || m.ReceiverID != me {
			return m, false
		}
		m.IsRead = true
		return m, true
	})
	return nil
}

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"campusconnect/internal/domain"
	"campusconnect/internal/livesync"
	"campusconnect/internal/viewmodel"
)

func (a *api) handleLiveChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	s := newSession(a.logger, "chat")

	chat, err := livesync.NewChat(a.stores.Messages, a.stores.Media, r.PathValue("peerID"), a.hookOptions(userID, s))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.serveLive(w, r, s, liveBinding{
		hook:  chat,
		watch: chat.Collection().Watch,
		snapshot: func() snapshotFrame {
			msgs := chat.Messages()
			return snapshotFrame{
				Type:    "snapshot",
				Loading: chat.Loading(),
				Items:   msgs,
				View: lo.Map(msgs, func(m domain.DirectMessage, _ int) viewmodel.MessageBubble {
					return viewmodel.NewMessageBubble(m, userID)
				}),
			}
		},
		handle: func(ctx context.Context, cmd command) (any, error) {
			switch cmd.Type {
			case "send":
				return chat.Send(ctx, cmd.Text, cmd.MediaURLs)
			case "mark_read":
				return nil, chat.MarkRead(ctx, cmd.ID)
			case "mark_all_read":
				return nil, chat.MarkAllRead(ctx)
			default:
				return nil, errUnknownCommand
			}
		},
	})
}

func (a *api) handleLiveComments(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	s := newSession(a.logger, "comments")

	comments, err := livesync.NewComments(a.stores.Comments, r.PathValue("postID"), a.hookOptions(userID, s))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.serveLive(w, r, s, liveBinding{
		hook:  comments,
		watch: comments.Collection().Watch,
		snapshot: func() snapshotFrame {
			rows, now := comments.Comments(), time.Now()
			return snapshotFrame{
				Type:    "snapshot",
				Loading: comments.Collection().Loading(),
				Items:   rows,
				View: lo.Map(rows, func(c domain.Comment, _ int) viewmodel.CommentRow {
					return viewmodel.NewCommentRow(c, userID, now)
				}),
			}
		},
		handle: func(ctx context.Context, cmd command) (any, error) {
			switch cmd.Type {
			case "create":
				if cmd.ParentID != "" {
					return comments.Reply(ctx, cmd.ParentID, cmd.Text)
				}
				return comments.Create(ctx, cmd.Text)
			case "delete":
				return nil, comments.Delete(ctx, cmd.ID)
			default:
				return nil, errUnknownCommand
			}
		},
	})
}

func (a *api) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	s := newSession(a.logger, "feed")

	feed, err := livesync.NewFeed(a.stores.Posts, a.stores.Media, a.hookOptions(userID, s))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.serveLive(w, r, s, liveBinding{
		hook:  feed,
		watch: feed.Collection().Watch,
		snapshot: func() snapshotFrame {
			posts, now := feed.Posts(), time.Now()
			return snapshotFrame{
				Type:    "snapshot",
				Loading: feed.Collection().Loading(),
				Items:   posts,
				View: lo.Map(posts, func(p domain.Post, _ int) viewmodel.PostCard {
					return viewmodel.NewPostCard(p, userID, now)
				}),
			}
		},
		handle: func(ctx context.Context, cmd command) (any, error) {
			switch cmd.Type {
			case "create":
				return feed.Create(ctx, cmd.Text, domain.Visibility(strings.TrimSpace(cmd.Visibility)), cmd.MediaURLs)
			default:
				return nil, errUnknownCommand
			}
		},
	})
}

func (a *api) handleLiveNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	s := newSession(a.logger, "notifications")

	notifications, err := livesync.NewNotifications(a.stores.Notifications, a.stores.Connections, a.hookOptions(userID, s))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.serveLive(w, r, s, liveBinding{
		hook:  notifications,
		watch: notifications.Collection().Watch,
		snapshot: func() snapshotFrame {
			unread := notifications.UnreadCount()
			items, now := notifications.Notifications(), time.Now()
			return snapshotFrame{
				Type:    "snapshot",
				Loading: notifications.Collection().Loading(),
				Items:   items,
				Unread:  &unread,
				View: lo.Map(items, func(n domain.Notification, _ int) viewmodel.NotificationItem {
					return viewmodel.NewNotificationItem(n, now)
				}),
			}
		},
		handle: func(ctx context.Context, cmd command) (any, error) {
			switch cmd.Type {
			case "mark_read":
				return nil, notifications.MarkRead(ctx, cmd.ID)
			case "mark_all_read":
				return nil, notifications.MarkAllRead(ctx)
			default:
				return nil, errUnknownCommand
			}
		},
	})
}

type connectionsSnapshot struct {
	Connections []domain.ConnectionView `json:"connections"`
	Friends     []domain.Friend         `json:"friends"`
	Incoming    []domain.FriendRequest  `json:"incoming"`
}

func (a *api) handleLiveConnections(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r.Context())
	s := newSession(a.logger, "connections")

	connections, err := livesync.NewConnections(a.stores.Connections, a.stores.Notifications, a.hookOptions(userID, s))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.serveLive(w, r, s, liveBinding{
		hook:  connections,
		watch: connections.Collection().Watch,
		snapshot: func() snapshotFrame {
			friends := connections.Friends()
			return snapshotFrame{
				Type:    "snapshot",
				Loading: connections.Collection().Loading(),
				Items: connectionsSnapshot{
					Connections: connections.Connections(),
					Friends:     friends,
					Incoming:    connections.Incoming(),
				},
				View: lo.Map(friends, func(f domain.Friend, _ int) viewmodel.FriendCard {
					return viewmodel.NewFriendCard(f)
				}),
			}
		},
		handle: func(ctx context.Context, cmd command) (any, error) {
			switch cmd.Type {
			case "request":
				return connections.Request(ctx, cmd.UserID)
			case "accept":
				return connections.Accept(ctx, cmd.ID)
			case "reject":
				return connections.Reject(ctx, cmd.ID)
			case "status":
				state, _, err := connections.Status(ctx, cmd.UserID)
				return state, err
			default:
				return nil, errUnknownCommand
			}
		},
	})
}

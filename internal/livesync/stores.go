package livesync

import (
	"context"

	"campusconnect/internal/domain"
)

// The store contracts below are what the hooks need from the remote store.
// Every read joins the related profile summary in. Missing rows are reported
// as domain.ErrNotFound.

type MessagesStore interface {
	// ListConversation returns both directions of the chat, oldest first.
	ListConversation(ctx context.Context, userID, peerID string) ([]domain.DirectMessage, error)
	GetMessage(ctx context.Context, id string) (domain.DirectMessage, error)
	InsertMessage(ctx context.Context, m domain.NewDirectMessage) (domain.DirectMessage, error)
	// MarkMessageRead only touches a message received by receiverID.
	MarkMessageRead(ctx context.Context, id, receiverID string) error
	// MarkConversationRead marks every unread message from senderID to receiverID.
	MarkConversationRead(ctx context.Context, senderID, receiverID string) error
}

type CommentsStore interface {
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
	GetComment(ctx context.Context, id string) (domain.Comment, error)
	InsertComment(ctx context.Context, c domain.NewComment) (domain.Comment, error)
	// DeleteComment returns domain.ErrNotFound unless authorID wrote the comment.
	DeleteComment(ctx context.Context, id, authorID string) error
}

type PostsStore interface {
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context) ([]domain.Post, error)
	GetPost(ctx context.Context, id string) (domain.Post, error)
	InsertPost(ctx context.Context, p domain.NewPost) (domain.Post, error)
}

type NotificationsStore interface {
	// ListNotifications returns at most limit notifications, newest first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	GetNotification(ctx context.Context, id string) (domain.Notification, error)
	InsertNotification(ctx context.Context, n domain.NewNotification) (domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

type ConnectionsStore interface {
	// FindConnection returns the connection between a and b in either direction.
	FindConnection(ctx context.Context, a, b string) (domain.Connection, error)
	GetConnection(ctx context.Context, id string) (domain.Connection, error)
	// ListConnections returns every connection involving userID, newest first,
	// with the other participant joined in.
	ListConnections(ctx context.Context, userID string) ([]domain.ConnectionView, error)
	GetConnectionView(ctx context.Context, id, viewerID string) (domain.ConnectionView, error)
	// InsertConnection returns domain.ErrDuplicateConnection when the pair is
	// already connected in either direction.
	InsertConnection(ctx context.Context, c domain.NewConnection) (domain.Connection, error)
	// SetConnectionStatus moves a pending connection addressed to receiverID.
	// It returns domain.ErrNotFound when no such pending connection exists.
	SetConnectionStatus(ctx context.Context, id, receiverID string, status domain.ConnectionStatus) (domain.Connection, error)
}

type ProfilesStore interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error)
	// SearchProfiles matches name, username or branch case-insensitively.
	SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error)
}

// MediaStore puts a file in a bucket and returns its public URL.
type MediaStore interface {
	Upload(ctx context.Context, bucket, key string, file domain.Upload, overwrite bool) (string, error)
}

// Stores bundles one backend's implementations of every contract.
type Stores struct {
	Messages      MessagesStore
	Comments      CommentsStore
	Posts         PostsStore
	Notifications NotificationsStore
	Connections   ConnectionsStore
	Profiles      ProfilesStore
	Media         MediaStore
}

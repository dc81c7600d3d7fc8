package domain

import (
	"path"
	"strings"
	"time"
)

type Profile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Branch      string     `json:"branch,omitempty"`
	YearOfStudy string     `json:"year_of_study,omitempty"`
	Skills      []string   `json:"skills,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	AvatarURL   string     `json:"profile_pic_url,omitempty"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p Profile) RecordID() string { return p.ID }

func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:          p.ID,
		FullName:    p.FullName,
		Username:    p.Username,
		AvatarURL:   p.AvatarURL,
		Branch:      p.Branch,
		YearOfStudy: p.YearOfStudy,
		Skills:      p.Skills,
	}
}

// ProfileSummary is the joined author/sender/requester shape carried by every
// record handed to presentation.
type ProfileSummary struct {
	ID          string   `json:"id"`
	FullName    string   `json:"full_name"`
	Username    string   `json:"username"`
	AvatarURL   string   `json:"profile_pic_url,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	YearOfStudy string   `json:"year_of_study,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

const unknownProfileName = "Unknown user"

// UnknownProfile is substituted when a referenced profile cannot be resolved.
func UnknownProfile(id string) ProfileSummary {
	return ProfileSummary{ID: id, FullName: unknownProfileName, Username: "unknown"}
}

func (s ProfileSummary) IsUnknown() bool { return s.FullName == unknownProfileName && s.Username == "unknown" }

// ProfilePatch carries the fields a user may change on their own profile. Nil
// fields are left untouched.
type ProfilePatch struct {
	FullName    *string   `json:"full_name,omitempty"`
	Username    *string   `json:"username,omitempty"`
	Branch      *string   `json:"branch,omitempty"`
	YearOfStudy *string   `json:"year_of_study,omitempty"`
	Skills      *[]string `json:"skills,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	AvatarURL   *string   `json:"profile_pic_url,omitempty"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.FullName == nil && p.Username == nil && p.Branch == nil && p.YearOfStudy == nil &&
		p.Skills == nil && p.Bio == nil && p.AvatarURL == nil
}

type Visibility string

const (
	VisibilityEveryone Visibility = "everyone"
	VisibilityFriends  Visibility = "friends"
)

func (v Visibility) Valid() bool {
	return v == VisibilityEveryone || v == VisibilityFriends
}

type Post struct {
	ID          string         `json:"id"`
	AuthorID    string         `json:"author_id"`
	Content     string         `json:"content"`
	MediaURLs   []string       `json:"media_urls,omitempty"`
	Visibility  Visibility     `json:"visibility"`
	IsPublished bool           `json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	Author      ProfileSummary `json:"author"`
}

func (p Post) RecordID() string { return p.ID }

type NewPost struct {
	AuthorID   string
	Content    string
	Visibility Visibility
	MediaURLs  []string
}

type Comment struct {
	ID        string         `json:"id"`
	PostID    string         `json:"post_id"`
	AuthorID  string         `json:"author_id"`
	ParentID  string         `json:"parent_comment_id,omitempty"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Author    ProfileSummary `json:"author"`
}

func (c Comment) RecordID() string { return c.ID }

type NewComment struct {
	PostID   string
	AuthorID string
	ParentID string
	Content  string
}

type DirectMessage struct {
	ID         string         `json:"id"`
	SenderID   string         `json:"sender_id"`
	ReceiverID string         `json:"receiver_id"`
	Content    string         `json:"content,omitempty"`
	MediaURLs  []string       `json:"media_urls,omitempty"`
	IsRead     bool           `json:"is_read"`
	CreatedAt  time.Time      `json:"created_at"`
	Sender     ProfileSummary `json:"sender"`
}

func (m DirectMessage) RecordID() string { return m.ID }

type NewDirectMessage struct {
	SenderID   string
	ReceiverID string
	Content    string
	MediaURLs  []string
}

// HasContent reports whether the message carries text or at least one media
// reference; a message must have one of the two.
func (m NewDirectMessage) HasContent() bool {
	return strings.TrimSpace(m.Content) != "" || len(m.MediaURLs) > 0
}

type NotificationType string

const (
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	RelatedID string           `json:"related_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`

	// Requester is resolved for friend_request notifications only.
	Requester *ProfileSummary `json:"requester,omitempty"`
}

func (n Notification) RecordID() string { return n.ID }

type NewNotification struct {
	UserID    string
	Type      NotificationType
	Content   string
	RelatedID string
}

// Upload is a file handed to object storage.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

func (u Upload) Ext() string {
	ext := strings.TrimPrefix(path.Ext(u.Name), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}

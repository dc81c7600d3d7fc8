// Package viewmodel derives the display fields presentation needs from synced
// records. Everything here is a pure function of its inputs.
package viewmodel

import (
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"

	"campusconnect/internal/domain"
)

const separator = " • "

// Initials returns the upper-cased first letters of the first two words of
// name, or "?" when name is blank.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	if len(words) > 2 {
		words = words[:2]
	}
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)[0]
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Subtitle joins the non-blank parts with " • ".
func Subtitle(parts ...string) string {
	parts = lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })
	return strings.Join(lo.Filter(parts, func(p string, _ int) bool { return p != "" }), separator)
}

// ProfileSubtitle is "year • branch", falling back to "@username".
func ProfileSubtitle(p domain.ProfileSummary) string {
	if s := Subtitle(p.YearOfStudy, p.Branch); s != "" {
		return s
	}
	if p.Username == "" {
		return ""
	}
	return "@" + p.Username
}

// PresenceLabel is "Active now" for online users and "Last seen ..." otherwise.
func PresenceLabel(online bool, lastSeen *time.Time, now time.Time) string {
	if online {
		return "Active now"
	}
	if lastSeen == nil || lastSeen.IsZero() {
		return "Offline"
	}
	return "Last seen " + RelativeTime(*lastSeen, now)
}

type Author struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Subtitle string `json:"subtitle,omitempty"`
	Avatar   string `json:"avatar_url,omitempty"`
}

func AuthorOf(p domain.ProfileSummary) Author {
	return Author{
		ID:       p.ID,
		Name:     p.FullName,
		Initials: Initials(p.FullName),
		Subtitle: ProfileSubtitle(p),
		Avatar:   p.AvatarURL,
	}
}

type PostCard struct {
	ID         string            `json:"id"`
	Author     Author            `json:"author"`
	Content    string            `json:"content"`
	MediaURLs  []string          `json:"media_urls,omitempty"`
	Visibility domain.Visibility `json:"visibility"`
	Posted     string            `json:"posted"`
	IsMine     bool              `json:"is_mine"`
}

func NewPostCard(p domain.Post, viewerID string, now time.Time) PostCard {
	return PostCard{
		ID:         p.ID,
		Author:     AuthorOf(p.Author),
		Content:    p.Content,
		MediaURLs:  p.MediaURLs,
		Visibility: p.Visibility,
		Posted:     RelativeTime(p.CreatedAt, now),
		IsMine:     p.AuthorID == viewerID,
	}
}

type CommentRow struct {
	ID      string `json:"id"`
	Author  Author `json:"author"`
	Content string `json:"content"`
	Posted  string `json:"posted"`
	IsMine  bool   `json:"is_mine"`
}

func NewCommentRow(c domain.Comment, viewerID string, now time.Time) CommentRow {
	return CommentRow{
		ID:      c.ID,
		Author:  AuthorOf(c.Author),
		Content: c.Content,
		Posted:  RelativeTime(c.CreatedAt, now),
		IsMine:  c.AuthorID == viewerID,
	}
}

type MessageBubble struct {
	ID        string   `json:"id"`
	Content   string   `json:"content,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	IsMine    bool     `json:"is_mine"`
	IsRead    bool     `json:"is_read"`
	Time      string   `json:"time"`
}

func NewMessageBubble(m domain.DirectMessage, viewerID string) MessageBubble {
	return MessageBubble{
		ID:        m.ID,
		Content:   m.Content,
		MediaURLs: m.MediaURLs,
		IsMine:    m.SenderID == viewerID,
		IsRead:    m.IsRead,
		Time:      m.CreatedAt.Format("15:04"),
	}
}

type NotificationItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Unread    bool    `json:"unread"`
	When      string  `json:"when"`
	Requester *Author `json:"requester,omitempty"`

	// Actionable marks friend requests that can be accepted or declined.
	Actionable   bool   `json:"actionable"`
	ConnectionID string `json:"connection_id,omitempty"`
}

func NewNotificationItem(n domain.Notification, now time.Time) NotificationItem {
	item := NotificationItem{
		ID:     n.ID,
		Title:  "Notification",
		Body:   n.Content,
		Unread: !n.IsRead,
		When:   RelativeTime(n.CreatedAt, now),
	}
	switch n.Type {
	case domain.NotificationFriendRequest:
		requester := domain.UnknownProfile("")
		if n.Requester != nil {
			requester = *n.Requester
		}
		a := AuthorOf(requester)
		item.Title = "Friend Request"
		item.Body = requester.FullName + " sent you a friend request"
		item.Requester = &a
		item.Actionable = n.RelatedID != ""
		item.ConnectionID = n.RelatedID
	case domain.NotificationFriendRequestAccepted:
		item.Title = "Friend Request Accepted"
	}
	return item
}

type FriendCard struct {
	Author       Author   `json:"profile"`
	Username     string   `json:"username"`
	Skills       []string `json:"skills,omitempty"`
	ConnectionID string   `json:"connection_id"`
}

func NewFriendCard(f domain.Friend) FriendCard {
	return FriendCard{
		Author:       AuthorOf(f.Profile),
		Username:     f.Profile.Username,
		Skills:       f.Profile.Skills,
		ConnectionID: f.ConnectionID,
	}
}

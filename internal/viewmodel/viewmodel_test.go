package viewmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"campusconnect/internal/domain"
)

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Alice Doe":         "AD",
		"alice":             "A",
		"  ada   lovelace ": "AL",
		"Mary Jane Watson":  "MJ",
		"":                  "?",
		"   ":               "?",
		"élodie durand":     "ÉD",
	}
	for in, want := range cases {
		assert.Equal(t, want, Initials(in), "Initials(%q)", in)
	}
}

func TestSubtitle(t *testing.T) {
	assert.Equal(t, "3rd Year • CSE", Subtitle("3rd Year", "CSE"))
	assert.Equal(t, "CSE", Subtitle("", " CSE "))
	assert.Equal(t, "", Subtitle("", " "))

	assert.Equal(t, "@alice", ProfileSubtitle(domain.ProfileSummary{Username: "alice"}))
	assert.Equal(t, "2nd Year", ProfileSubtitle(domain.ProfileSummary{Username: "alice", YearOfStudy: "2nd Year"}))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "less than a minute ago"},
		{45 * time.Second, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{50 * time.Minute, "about 1 hour ago"},
		{3 * time.Hour, "about 3 hours ago"},
		{30 * time.Hour, "1 day ago"},
		{5 * 24 * time.Hour, "5 days ago"},
		{35 * 24 * time.Hour, "about 1 month ago"},
		{50 * 24 * time.Hour, "about 2 months ago"},
		{120 * 24 * time.Hour, "4 months ago"},
		{13 * 30 * 24 * time.Hour, "about 1 year ago"},
		{500 * 24 * time.Hour, "over 1 year ago"},
		{700 * 24 * time.Hour, "almost 2 years ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RelativeTime(now.Add(-tc.ago), now), "ago=%s", tc.ago)
	}

	assert.Equal(t, "in about 2 hours", RelativeTime(now.Add(2*time.Hour), now))
}

func TestPresenceLabel(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-2 * time.Hour)

	assert.Equal(t, "Active now", PresenceLabel(true, &seen, now))
	assert.Equal(t, "Last seen about 2 hours ago", PresenceLabel(false, &seen, now))
	assert.Equal(t, "Offline", PresenceLabel(false, nil, now))
}

func TestNotificationItem(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	requester := domain.ProfileSummary{ID: "a", FullName: "Alice Doe", Username: "alice"}

	item := NewNotificationItem(domain.Notification{
		ID:        "n1",
		Type:      domain.NotificationFriendRequest,
		RelatedID: "c1",
		CreatedAt: now.Add(-5 * time.Minute),
		Requester: &requester,
	}, now)
	assert.Equal(t, "Friend Request", item.Title)
	assert.Equal(t, "Alice Doe sent you a friend request", item.Body)
	assert.True(t, item.Actionable)
	assert.True(t, item.Unread)
	assert.Equal(t, "AD", item.Requester.Initials)
	assert.Equal(t, "5 minutes ago", item.When)

	missing := NewNotificationItem(domain.Notification{ID: "n2", Type: domain.NotificationFriendRequest, CreatedAt: now}, now)
	assert.Equal(t, "Unknown user sent you a friend request", missing.Body)
	assert.False(t, missing.Actionable)

	accepted := NewNotificationItem(domain.Notification{ID: "n3", Type: domain.NotificationFriendRequestAccepted, Content: "Your friend request has been accepted", IsRead: true, CreatedAt: now}, now)
	assert.Equal(t, "Friend Request Accepted", accepted.Title)
	assert.False(t, accepted.Unread)
	assert.Nil(t, accepted.Requester)
}

func TestCardsMarkViewerContent(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	msg := domain.DirectMessage{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi", CreatedAt: time.Date(2024, 6, 15, 9, 5, 0, 0, time.UTC)}

	assert.True(t, NewMessageBubble(msg, "a").IsMine)
	assert.False(t, NewMessageBubble(msg, "b").IsMine)
	assert.Equal(t, "09:05", NewMessageBubble(msg, "a").Time)

	post := domain.Post{ID: "p1", AuthorID: "a", Author: domain.ProfileSummary{ID: "a", FullName: "Alice Doe"}, CreatedAt: now.Add(-time.Minute)}
	card := NewPostCard(post, "a", now)
	assert.True(t, card.IsMine)
	assert.Equal(t, "AD", card.Author.Initials)
	assert.Equal(t, "1 minute ago", card.Posted)

	friend := NewFriendCard(domain.Friend{ConnectionID: "c1", Profile: domain.ProfileSummary{ID: "b", FullName: "Bob", Username: "bob"}})
	assert.Equal(t, "c1", friend.ConnectionID)
	assert.Equal(t, "@bob", friend.Author.Subtitle)
}

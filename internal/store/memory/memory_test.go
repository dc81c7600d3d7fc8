package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

func newStore(t *testing.T) (*Store, *changes.Hub) {
	t.Helper()
	hub := changes.NewHub(nil)
	t.Cleanup(func() { _ = hub.Close() })
	s := New(hub)
	s.PutProfile(domain.Profile{ID: "alice", FullName: "Alice Doe", Username: "alice", Branch: "CSE"})
	s.PutProfile(domain.Profile{ID: "bob", FullName: "Bob Roe", Username: "bobby", Branch: "ECE"})
	s.PutProfile(domain.Profile{ID: "carol", FullName: "Carol Poe", Username: "carol", Branch: "CSE"})
	return s, hub
}

func TestInsertConnectionIsUniquePerPair(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.InsertConnection(ctx, domain.NewConnection{RequesterID: "alice", ReceiverID: "bob"})
	require.NoError(t, err)

	_, err = s.InsertConnection(ctx, domain.NewConnection{RequesterID: "bob", ReceiverID: "alice"})
	require.ErrorIs(t, err, domain.ErrDuplicateConnection)

	_, err = s.InsertConnection(ctx, domain.NewConnection{RequesterID: "alice", ReceiverID: "alice"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestInsertConnectionConcurrentRequestsCreateOneRow(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.InsertConnection(ctx, domain.NewConnection{RequesterID: pair[0], ReceiverID: pair[1]})
		}()
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else {
			require.ErrorIs(t, err, domain.ErrDuplicateConnection)
		}
	}
	assert.Equal(t, 1, okCount)

	rows, err := s.ListConnections(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSetConnectionStatusOnlyFromPendingByReceiver(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	c, err := s.InsertConnection(ctx, domain.NewConnection{RequesterID: "alice", ReceiverID: "bob"})
	require.NoError(t, err)

	_, err = s.SetConnectionStatus(ctx, c.ID, "alice", domain.ConnectionAccepted)
	require.ErrorIs(t, err, domain.ErrNotFound, "requester must not accept")

	got, err := s.SetConnectionStatus(ctx, c.ID, "bob", domain.ConnectionAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAccepted, got.Status)

	_, err = s.SetConnectionStatus(ctx, c.ID, "bob", domain.ConnectionRejected)
	require.ErrorIs(t, err, domain.ErrNotFound, "accepted is terminal")
}

func TestConnectionViewJoinsCounterpart(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	c, err := s.InsertConnection(ctx, domain.NewConnection{RequesterID: "alice", ReceiverID: "bob"})
	require.NoError(t, err)

	v, err := s.GetConnectionView(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", v.Counterpart.FullName)

	v, err = s.GetConnectionView(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Bob Roe", v.Counterpart.FullName)
}

func TestInsertMessagePublishesAndJoinsSender(t *testing.T) {
	s, hub := newStore(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, changes.Where(changes.TableMessages, changes.Match{"receiver_id": "bob"}))
	require.NoError(t, err)
	defer sub.Close()

	m, err := s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", m.Sender.FullName)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, m.ID, ev.ID)
		assert.Equal(t, "alice", ev.Columns["sender_id"])
	case <-time.After(time.Second):
		t.Fatal("expected insert event")
	}

	_, err = s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "alice", ReceiverID: "bob"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestConversationIsOrderedAndScoped(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	first, err := s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "alice", ReceiverID: "bob", Content: "1"})
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "alice", ReceiverID: "carol", Content: "other chat"})
	require.NoError(t, err)
	second, err := s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "bob", ReceiverID: "alice", Content: "2"})
	require.NoError(t, err)

	rows, err := s.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
	assert.True(t, rows[1].CreatedAt.After(rows[0].CreatedAt))
}

func TestMarkConversationReadOnlyTouchesOneDirection(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	in, err := s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "bob", ReceiverID: "alice", Content: "to alice"})
	require.NoError(t, err)
	out, err := s.InsertMessage(ctx, domain.NewDirectMessage{SenderID: "alice", ReceiverID: "bob", Content: "to bob"})
	require.NoError(t, err)

	require.NoError(t, s.MarkConversationRead(ctx, "bob", "alice"))

	got, err := s.GetMessage(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	got, err = s.GetMessage(ctx, out.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)

	require.ErrorIs(t, s.MarkMessageRead(ctx, out.ID, "alice"), domain.ErrNotFound, "sender cannot mark own message read")
}

func TestListNotificationsNewestFirstWithLimit(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var last domain.Notification
	for i := 0; i < 25; i++ {
		n, err := s.InsertNotification(ctx, domain.NewNotification{UserID: "bob", Type: "other", Content: "x"})
		require.NoError(t, err)
		last = n
	}
	_, err := s.InsertNotification(ctx, domain.NewNotification{UserID: "alice", Type: "other"})
	require.NoError(t, err)

	rows, err := s.ListNotifications(ctx, "bob", 20)
	require.NoError(t, err)
	require.Len(t, rows, 20)
	assert.Equal(t, last.ID, rows[0].ID)
}

func TestSearchProfilesMatchesNameUsernameBranch(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	rows, err := s.SearchProfiles(ctx, "cse", "alice", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "carol", rows[0].ID)

	rows, err = s.SearchProfiles(ctx, "BOBB", "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].ID)
}

func TestUpdateProfileRejectsTakenUsername(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	taken := "bobby"
	_, err := s.UpdateProfile(ctx, "alice", domain.ProfilePatch{Username: &taken})
	require.ErrorIs(t, err, domain.ErrValidation)

	bio := "hello"
	p, err := s.UpdateProfile(ctx, "alice", domain.ProfilePatch{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "Alice Doe", p.FullName)
}

func TestUnknownProfileIsJoinedForMissingAuthor(t *testing.T) {
	s, _ := newStore(t)
	p, err := s.InsertPost(context.Background(), domain.NewPost{AuthorID: "ghost", Content: "boo"})
	require.NoError(t, err)
	assert.True(t, p.Author.IsUnknown())
	assert.Equal(t, "ghost", p.Author.ID)
}

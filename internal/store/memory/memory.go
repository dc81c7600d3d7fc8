// Package memory is an in-process remote store. It honours the same contracts
// as the Postgres store, including the change feed, and backs dev mode and
// tests.
package memory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

type Store struct {
	hub *changes.Hub
	now func() time.Time

	mu            sync.RWMutex
	last          time.Time
	profiles      map[string]domain.Profile
	posts         []domain.Post
	comments      []domain.Comment
	messages      []domain.DirectMessage
	notifications []domain.Notification
	connections   []domain.Connection
}

// New returns an empty store publishing inserts on hub. A nil hub disables
// the change feed.
func New(hub *changes.Hub) *Store {
	return &Store{hub: hub, now: time.Now, profiles: make(map[string]domain.Profile)}
}

// WithClock replaces the time source; timestamps stay strictly increasing.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Hub() *changes.Hub { return s.hub }

// stamp returns a creation time later than every previous one. Caller holds mu.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) publish(table, id string, cols map[string]string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(changes.Event{Table: table, Op: changes.OpInsert, ID: id, Columns: cols})
}

// summary joins a profile; the caller holds mu.
func (s *Store) summary(id string) domain.ProfileSummary {
	p, ok := s.profiles[id]
	if !ok {
		return domain.UnknownProfile(id)
	}
	return p.Summary()
}

// Profiles

// PutProfile creates or replaces a profile. Profiles normally come from the
// auth provider's sign-up hook.
func (s *Store) PutProfile(p domain.Profile) domain.Profile {
	s.mu.Lock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.stamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = p
	s.mu.Unlock()
	return p
}

func (s *Store) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

// UpdateProfile applies patch. An unknown id gets a fresh profile so that dev
// users can set themselves up.
func (s *Store) UpdateProfile(_ context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		p = domain.Profile{ID: id, CreatedAt: s.stamp()}
	}
	if patch.Username != nil && *patch.Username != p.Username {
		for _, other := range s.profiles {
			if other.ID != id && strings.EqualFold(other.Username, *patch.Username) {
				return domain.Profile{}, domain.NewValidationError(map[string]string{"username": "already taken"})
			}
		}
	}
	applyPatch(&p, patch)
	p.UpdatedAt = s.stamp()
	s.profiles[id] = p
	return p, nil
}

func applyPatch(p *domain.Profile, patch domain.ProfilePatch) {
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.Branch != nil {
		p.Branch = *patch.Branch
	}
	if patch.YearOfStudy != nil {
		p.YearOfStudy = *patch.YearOfStudy
	}
	if patch.Skills != nil {
		p.Skills = slices.Clone(*patch.Skills)
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
}

func (s *Store) SearchProfiles(_ context.Context, query, excludeID string, limit int) ([]domain.ProfileSummary, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := lo.Filter(lo.Values(s.profiles), func(p domain.Profile, _ int) bool {
		if p.ID == excludeID {
			return false
		}
		return strings.Contains(strings.ToLower(p.FullName), q) ||
			strings.Contains(strings.ToLower(p.Username), q) ||
			strings.Contains(strings.ToLower(p.Branch), q)
	})
	slices.SortFunc(hits, func(a, b domain.Profile) int {
		return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return lo.Map(hits, func(p domain.Profile, _ int) domain.ProfileSummary { return p.Summary() }), nil
}

// Posts

func (s *Store) ListPublished(_ context.Context) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, 0, len(s.posts))
	for i := len(s.posts) - 1; i >= 0; i-- {
		if s.posts[i].IsPublished {
			out = append(out, s.joinPost(s.posts[i]))
		}
	}
	return out, nil
}

func (s *Store) GetPost(_ context.Context, id string) (domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := lo.Find(s.posts, func(p domain.Post) bool { return p.ID == id })
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return s.joinPost(p), nil
}

func (s *Store) InsertPost(_ context.Context, np domain.NewPost) (domain.Post, error) {
	s.mu.Lock()
	if np.AuthorID == "" || strings.TrimSpace(np.Content) == "" {
		s.mu.Unlock()
		return domain.Post{}, domain.ErrValidation
	}
	vis := np.Visibility
	if vis == "" {
		vis = domain.VisibilityEveryone
	}
	p := domain.Post{
		ID:          uuid.NewString(),
		AuthorID:    np.AuthorID,
		Content:     np.Content,
		MediaURLs:   slices.Clone(np.MediaURLs),
		Visibility:  vis,
		IsPublished: true,
		CreatedAt:   s.stamp(),
	}
	s.posts = append(s.posts, p)
	out := s.joinPost(p)
	s.mu.Unlock()

	s.publish(changes.TablePosts, p.ID, map[string]string{
		"author_id":    p.AuthorID,
		"is_published": strconv.FormatBool(p.IsPublished),
	})
	return out, nil
}

func (s *Store) joinPost(p domain.Post) domain.Post {
	p.Author = s.summary(p.AuthorID)
	return p
}

// Comments

func (s *Store) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := lo.Filter(s.comments, func(c domain.Comment, _ int) bool { return c.PostID == postID })
	return lo.Map(rows, func(c domain.Comment, _ int) domain.Comment { return s.joinComment(c) }), nil
}

func (s *Store) GetComment(_ context.Context, id string) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := lo.Find(s.comments, func(c domain.Comment) bool { return c.ID == id })
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return s.joinComment(c), nil
}

func (s *Store) InsertComment(_ context.Context, nc domain.NewComment) (domain.Comment, error) {
	s.mu.Lock()
	if nc.PostID == "" || nc.AuthorID == "" || strings.TrimSpace(nc.Content) == "" {
		s.mu.Unlock()
		return domain.Comment{}, domain.ErrValidation
	}
	c := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    nc.PostID,
		AuthorID:  nc.AuthorID,
		ParentID:  nc.ParentID,
		Content:   nc.Content,
		CreatedAt: s.stamp(),
	}
	s.comments = append(s.comments, c)
	out := s.joinComment(c)
	s.mu.Unlock()

	s.publish(changes.TableComments, c.ID, map[string]string{"post_id": c.PostID, "author_id": c.AuthorID})
	return out, nil
}

func (s *Store) DeleteComment(_ context.Context, id, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.comments, func(c domain.Comment) bool { return c.ID == id && c.AuthorID == authorID })
	if !ok {
		return domain.ErrNotFound
	}
	s.comments = slices.Delete(s.comments, idx, idx+1)
	return nil
}

func (s *Store) joinComment(c domain.Comment) domain.Comment {
	c.Author = s.summary(c.AuthorID)
	return c
}

// Direct messages

func (s *Store) ListConversation(_ context.Context, userID, peerID string) ([]domain.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := lo.Filter(s.messages, func(m domain.DirectMessage, _ int) bool {
		return (m.SenderID == userID && m.ReceiverID == peerID) || (m.SenderID == peerID && m.ReceiverID == userID)
	})
	return lo.Map(rows, func(m domain.DirectMessage, _ int) domain.DirectMessage { return s.joinMessage(m) }), nil
}

func (s *Store) GetMessage(_ context.Context, id string) (domain.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := lo.Find(s.messages, func(m domain.DirectMessage) bool { return m.ID == id })
	if !ok {
		return domain.DirectMessage{}, domain.ErrNotFound
	}
	return s.joinMessage(m), nil
}

func (s *Store) InsertMessage(_ context.Context, nm domain.NewDirectMessage) (domain.DirectMessage, error) {
	if nm.SenderID == "" || nm.ReceiverID == "" || !nm.HasContent() {
		return domain.DirectMessage{}, domain.ErrValidation
	}
	s.mu.Lock()
	m := domain.DirectMessage{
		ID:         uuid.NewString(),
		SenderID:   nm.SenderID,
		ReceiverID: nm.ReceiverID,
		Content:    nm.Content,
		MediaURLs:  slices.Clone(nm.MediaURLs),
		CreatedAt:  s.stamp(),
	}
	s.messages = append(s.messages, m)
	out := s.joinMessage(m)
	s.mu.Unlock()

	s.publish(changes.TableMessages, m.ID, map[string]string{"sender_id": m.SenderID, "receiver_id": m.ReceiverID})
	return out, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.messages, func(m domain.DirectMessage) bool { return m.ID == id && m.ReceiverID == receiverID })
	if !ok {
		return domain.ErrNotFound
	}
	s.messages[idx].IsRead = true
	return nil
}

func (s *Store) MarkConversationRead(_ context.Context, senderID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID {
			s.messages[i].IsRead = true
		}
	}
	return nil
}

func (s *Store) joinMessage(m domain.DirectMessage) domain.DirectMessage {
	m.Sender = s.summary(m.SenderID)
	return m
}

// Notifications

func (s *Store) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := lo.Find(s.notifications, func(n domain.Notification) bool { return n.ID == id })
	if !ok {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (s *Store) InsertNotification(_ context.Context, nn domain.NewNotification) (domain.Notification, error) {
	if nn.UserID == "" || nn.Type == "" {
		return domain.Notification{}, domain.ErrValidation
	}
	s.mu.Lock()
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    nn.UserID,
		Type:      nn.Type,
		Content:   nn.Content,
		RelatedID: nn.RelatedID,
		CreatedAt: s.stamp(),
	}
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()

	s.publish(changes.TableNotifications, n.ID, map[string]string{"user_id": n.UserID, "type": string(n.Type)})
	return n, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.notifications, func(n domain.Notification) bool { return n.ID == id && n.UserID == userID })
	if !ok {
		return domain.ErrNotFound
	}
	s.notifications[idx].IsRead = true
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.UserID == userID {
			s.notifications[i].IsRead = true
		}
	}
	return nil
}

// Connections

func (s *Store) FindConnection(_ context.Context, a, b string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := lo.Find(s.connections, func(c domain.Connection) bool { return c.Involves(a, b) })
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetConnection(_ context.Context, id string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := lo.Find(s.connections, func(c domain.Connection) bool { return c.ID == id })
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListConnections(_ context.Context, userID string) ([]domain.ConnectionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConnectionView, 0)
	for i := len(s.connections) - 1; i >= 0; i-- {
		c := s.connections[i]
		if c.RequesterID == userID || c.ReceiverID == userID {
			out = append(out, s.viewOf(c, userID))
		}
	}
	return out, nil
}

func (s *Store) GetConnectionView(_ context.Context, id, viewerID string) (domain.ConnectionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := lo.Find(s.connections, func(c domain.Connection) bool { return c.ID == id })
	if !ok {
		return domain.ConnectionView{}, domain.ErrNotFound
	}
	return s.viewOf(c, viewerID), nil
}

// InsertConnection enforces one connection per unordered pair atomically.
func (s *Store) InsertConnection(_ context.Context, nc domain.NewConnection) (domain.Connection, error) {
	if nc.RequesterID == "" || nc.ReceiverID == "" || nc.RequesterID == nc.ReceiverID {
		return domain.Connection{}, domain.ErrValidation
	}
	s.mu.Lock()
	if lo.ContainsBy(s.connections, func(c domain.Connection) bool { return c.Involves(nc.RequesterID, nc.ReceiverID) }) {
		s.mu.Unlock()
		return domain.Connection{}, domain.ErrDuplicateConnection
	}
	now := s.stamp()
	c := domain.Connection{
		ID:          uuid.NewString(),
		RequesterID: nc.RequesterID,
		ReceiverID:  nc.ReceiverID,
		Status:      domain.ConnectionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.connections = append(s.connections, c)
	s.mu.Unlock()

	s.publish(changes.TableConnections, c.ID, map[string]string{"requester_id": c.RequesterID, "receiver_id": c.ReceiverID})
	return c, nil
}

func (s *Store) SetConnectionStatus(_ context.Context, id, receiverID string, status domain.ConnectionStatus) (domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(s.connections, func(c domain.Connection) bool {
		return c.ID == id && c.ReceiverID == receiverID && c.Status == domain.ConnectionPending
	})
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	s.connections[idx].Status = status
	s.connections[idx].UpdatedAt = s.stamp()
	return s.connections[idx], nil
}

func (s *Store) viewOf(c domain.Connection, viewerID string) domain.ConnectionView {
	return domain.ConnectionView{Connection: c, Counterpart: s.summary(c.Other(viewerID))}
}

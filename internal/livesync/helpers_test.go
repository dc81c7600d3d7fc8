package livesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
	"campusconnect/internal/store/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) warnings() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Level == LevelWarning {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) has(title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Title == title {
			return true
		}
	}
	return false
}

type world struct {
	store *memory.Store
	hub   *changes.Hub
	notes *recordingNotifier
}

func newWorld(t *testing.T) *world {
	t.Helper()
	hub := changes.NewHub(nil)
	t.Cleanup(func() { _ = hub.Close() })
	s := memory.New(hub)
	s.PutProfile(domain.Profile{ID: "alice", FullName: "Alice Doe", Username: "alice", Branch: "CSE"})
	s.PutProfile(domain.Profile{ID: "bob", FullName: "Bob Roe", Username: "bob", Branch: "ECE"})
	s.PutProfile(domain.Profile{ID: "carol", FullName: "Carol Poe", Username: "carol", Branch: "CSE"})
	return &world{store: s, hub: hub, notes: &recordingNotifier{}}
}

func (w *world) opts(user string) Options {
	return Options{ActingUserID: user, Feed: w.hub, Notifier: w.notes, Timeout: 2 * time.Second}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type stubMedia struct {
	uploadFn func(ctx context.Context, bucket, key string, file domain.Upload, overwrite bool) (string, error)
}

func (s *stubMedia) Upload(ctx context.Context, bucket, key string, file domain.Upload, overwrite bool) (string, error) {
	return s.uploadFn(ctx, bucket, key, file, overwrite)
}

type stubMessages struct {
	listFn     func(ctx context.Context, userID, peerID string) ([]domain.DirectMessage, error)
	getFn      func(ctx context.Context, id string) (domain.DirectMessage, error)
	insertFn   func(ctx context.Context, m domain.NewDirectMessage) (domain.DirectMessage, error)
	markFn     func(ctx context.Context, id, receiverID string) error
	markConvFn func(ctx context.Context, senderID, receiverID string) error
}

func (s *stubMessages) ListConversation(ctx context.Context, userID, peerID string) ([]domain.DirectMessage, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID, peerID)
}

func (s *stubMessages) GetMessage(ctx context.Context, id string) (domain.DirectMessage, error) {
	if s.getFn == nil {
		return domain.DirectMessage{}, domain.ErrNotFound
	}
	return s.getFn(ctx, id)
}

func (s *stubMessages) InsertMessage(ctx context.Context, m domain.NewDirectMessage) (domain.DirectMessage, error) {
	return s.insertFn(ctx, m)
}

func (s *stubMessages) MarkMessageRead(ctx context.Context, id, receiverID string) error {
	if s.markFn == nil {
		return nil
	}
	return s.markFn(ctx, id, receiverID)
}

func (s *stubMessages) MarkConversationRead(ctx context.Context, senderID, receiverID string) error {
	if s.markConvFn == nil {
		return nil
	}
	return s.markConvFn(ctx, senderID, receiverID)
}

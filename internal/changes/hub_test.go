package changes

import (
	"context"
	"testing"
	"time"
)

func chatFilter(a, b string) Filter {
	return Where(TableMessages, Match{"sender_id": a, "receiver_id": b}).
		Or(Match{"sender_id": b, "receiver_id": a})
}

func TestFilterMatchesEitherDirection(t *testing.T) {
	f := chatFilter("a", "b")

	in := Event{Table: TableMessages, Op: OpInsert, ID: "1", Columns: map[string]string{"sender_id": "b", "receiver_id": "a"}}
	if !f.Matches(in) {
		t.Fatalf("expected reverse direction to match")
	}

	other := Event{Table: TableMessages, Op: OpInsert, ID: "2", Columns: map[string]string{"sender_id": "b", "receiver_id": "c"}}
	if f.Matches(other) {
		t.Fatalf("message to another chat must not match")
	}

	update := in
	update.Op = OpUpdate
	if f.Matches(update) {
		t.Fatalf("only inserts are delivered")
	}

	wrongTable := in
	wrongTable.Table = TableComments
	if f.Matches(wrongTable) {
		t.Fatalf("event on another table must not match")
	}
}

func TestFilterKeyIsStableAndScoped(t *testing.T) {
	if chatFilter("a", "b").Key() != chatFilter("b", "a").Key() {
		t.Fatalf("same pair must produce the same key")
	}
	if chatFilter("a", "b").Key() == chatFilter("a", "c").Key() {
		t.Fatalf("different chats must not share a key")
	}
}

func TestHubDeliversOnlyToMatchingSubscribers(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()

	ab, err := h.Subscribe(ctx, chatFilter("a", "b"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ac, err := h.Subscribe(ctx, chatFilter("a", "c"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	h.Publish(Event{Table: TableMessages, Op: OpInsert, ID: "m1", Columns: map[string]string{"sender_id": "a", "receiver_id": "b"}})

	select {
	case ev := <-ab.Events():
		if ev.ID != "m1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event for a<->b")
	}

	select {
	case ev := <-ac.Events():
		t.Fatalf("a<->c must not receive %+v", ev)
	default:
	}
}

func TestHubCloseSubscriptionIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	sub, err := h.Subscribe(context.Background(), Where(TablePosts, nil))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("expected one subscription, got %d", h.Len())
	}

	_ = sub.Close()
	_ = sub.Close()

	if h.Len() != 0 {
		t.Fatalf("expected no subscriptions, got %d", h.Len())
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected closed channel")
	}
}

func TestHubDropsForLaggingSubscriber(t *testing.T) {
	dropped := 0
	h := &Hub{Buffer: 1, DropFunc: func(Filter) { dropped++ }}
	sub, err := h.Subscribe(context.Background(), Where(TablePosts, nil))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	h.Publish(Event{Table: TablePosts, Op: OpInsert, ID: "1"})
	h.Publish(Event{Table: TablePosts, Op: OpInsert, ID: "2"})

	if dropped != 1 {
		t.Fatalf("expected one drop, got %d", dropped)
	}
}

func TestHubRejectsSubscribeAfterClose(t *testing.T) {
	h := NewHub(nil)
	_ = h.Close()
	if _, err := h.Subscribe(context.Background(), Where(TablePosts, nil)); err != ErrHubClosed {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}

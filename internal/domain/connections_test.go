package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStateOf(t *testing.T) {
	pending := &Connection{RequesterID: "a", ReceiverID: "b", Status: ConnectionPending}

	cases := []struct {
		name string
		conn *Connection
		user string
		want FriendState
	}{
		{"no connection", nil, "a", FriendStateNone},
		{"requester sees outgoing", pending, "a", FriendStatePendingOutgoing},
		{"receiver sees incoming", pending, "b", FriendStatePendingIncoming},
		{"accepted", &Connection{RequesterID: "a", ReceiverID: "b", Status: ConnectionAccepted}, "b", FriendStateAccepted},
		{"rejected", &Connection{RequesterID: "a", ReceiverID: "b", Status: ConnectionRejected}, "a", FriendStateRejected},
	}
	for _, tc := range cases {
		if got := StateOf(tc.conn, tc.user); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestCanTransitionClosure(t *testing.T) {
	all := []FriendState{
		FriendStateNone,
		FriendStatePendingOutgoing,
		FriendStatePendingIncoming,
		FriendStateAccepted,
		FriendStateRejected,
	}

	for _, to := range all {
		want := to == FriendStateAccepted || to == FriendStateRejected
		if got := CanTransition(FriendStatePendingIncoming, to); got != want {
			t.Fatalf("pending_incoming -> %s: got %v want %v", to, got, want)
		}
	}

	for _, from := range []FriendState{FriendStateAccepted, FriendStateRejected} {
		if !from.Terminal() {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s must not reach %s", from, to)
			}
		}
	}

	if !CanTransition(FriendStateNone, FriendStatePendingOutgoing) {
		t.Fatalf("none -> pending_outgoing must be allowed")
	}
}

func TestConnectionInvolvesEitherDirection(t *testing.T) {
	c := Connection{RequesterID: "a", ReceiverID: "b"}
	if !c.Involves("a", "b") || !c.Involves("b", "a") {
		t.Fatalf("expected pair match in both directions")
	}
	if c.Involves("a", "c") {
		t.Fatalf("unexpected match")
	}
	if c.Other("a") != "b" || c.Other("b") != "a" {
		t.Fatalf("unexpected counterpart")
	}
}

func TestOpErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WriteError("insert comment", cause)

	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if errors.Is(err, ErrFetch) {
		t.Fatalf("unexpected ErrFetch match")
	}

	timeout := FetchError("list posts", fmt.Errorf("query: %w", context.DeadlineExceeded))
	if !errors.Is(timeout, ErrTimeout) {
		t.Fatalf("expected deadline to classify as ErrTimeout, got %v", timeout)
	}
}

func TestNewDirectMessageHasContent(t *testing.T) {
	if (NewDirectMessage{Content: "   "}).HasContent() {
		t.Fatalf("blank text without media must not count as content")
	}
	if !(NewDirectMessage{MediaURLs: []string{"u"}}).HasContent() {
		t.Fatalf("media only message must count as content")
	}
}

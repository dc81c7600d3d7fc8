package domain

import "time"

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

type Connection struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	ReceiverID  string           `json:"receiver_id"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (c Connection) RecordID() string { return c.ID }

// Involves reports whether the connection links the unordered pair {a, b}.
func (c Connection) Involves(a, b string) bool {
	return (c.RequesterID == a && c.ReceiverID == b) || (c.RequesterID == b && c.ReceiverID == a)
}

// Other returns the participant that is not userID.
func (c Connection) Other(userID string) string {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// ConnectionView is a connection as seen by one participant, with the other
// participant's profile joined in.
type ConnectionView struct {
	Connection
	Counterpart ProfileSummary `json:"counterpart"`
}

type NewConnection struct {
	RequesterID string
	ReceiverID  string
}

type Friend struct {
	Profile      ProfileSummary `json:"profile"`
	ConnectionID string         `json:"connection_id"`
}

type FriendRequest struct {
	ConnectionID string         `json:"id"`
	Requester    ProfileSummary `json:"requester"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FriendState is the friend-request state of an unordered pair as seen by one
// of its members.
type FriendState string

const (
	FriendStateNone            FriendState = "none"
	FriendStatePendingOutgoing FriendState = "pending_outgoing"
	FriendStatePendingIncoming FriendState = "pending_incoming"
	FriendStateAccepted        FriendState = "accepted"
	FriendStateRejected        FriendState = "rejected"
)

func StateOf(c *Connection, actingUserID string) FriendState {
	if c == nil {
		return FriendStateNone
	}
	switch c.Status {
	case ConnectionAccepted:
		return FriendStateAccepted
	case ConnectionRejected:
		return FriendStateRejected
	case ConnectionPending:
		if c.RequesterID == actingUserID {
			return FriendStatePendingOutgoing
		}
		return FriendStatePendingIncoming
	default:
		return FriendStateNone
	}
}

func (s FriendState) Terminal() bool {
	return s == FriendStateAccepted || s == FriendStateRejected
}

func CanTransition(from, to FriendState) bool {
	switch from {
	case FriendStateNone:
		return to == FriendStatePendingOutgoing
	case FriendStatePendingIncoming:
		return to == FriendStateAccepted || to == FriendStateRejected
	default:
		return false
	}
}

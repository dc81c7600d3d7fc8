package livesync

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

const entityConnections = "connections"

// Connections mirrors every connection involving the acting user and drives
// the friend-request state machine.
type Connections struct {
	opts          Options
	store         ConnectionsStore
	notifications NotificationsStore
	items         *Collection[domain.ConnectionView]
	live          *liveQuery[domain.ConnectionView]
}

func NewConnections(store ConnectionsStore, notifications NotificationsStore, opts Options) (*Connections, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	c := &Connections{
		opts:          opts,
		store:         store,
		notifications: notifications,
		items:         NewCollection[domain.ConnectionView](),
	}
	me := opts.ActingUserID
	c.live = &liveQuery[domain.ConnectionView]{
		entity: entityConnections,
		opts:   opts,
		items:  c.items,
		place:  atHead,
		filter: changes.Where(changes.TableConnections, changes.Match{"requester_id": me}).
			Or(changes.Match{"receiver_id": me}),
		fetchAll: func(ctx context.Context) ([]domain.ConnectionView, error) {
			return store.ListConnections(ctx, me)
		},
		fetchOne: func(ctx context.Context, id string) (domain.ConnectionView, error) {
			return store.GetConnectionView(ctx, id, me)
		},
	}
	return c, nil
}

func (c *Connections) Collection() *Collection[domain.ConnectionView] { return c.items }

func (c *Connections) Connections() []domain.ConnectionView { return c.items.Snapshot() }

func (c *Connections) Open(ctx context.Context) error {
	return c.live.open(ctx, "Failed to load friends")
}

func (c *Connections) Refresh(ctx context.Context) error {
	return c.live.load(ctx, "Failed to load friends")
}

func (c *Connections) Close() error { return c.live.close() }

// Friends lists accepted connections as the other participant's profile.
func (c *Connections) Friends() []domain.Friend {
	accepted := lo.Filter(c.items.Snapshot(), func(v domain.ConnectionView, _ int) bool {
		return v.Status == domain.ConnectionAccepted
	})
	return lo.Map(accepted, func(v domain.ConnectionView, _ int) domain.Friend {
		return domain.Friend{Profile: v.Counterpart, ConnectionID: v.ID}
	})
}

// Incoming lists pending requests addressed to the acting user.
func (c *Connections) Incoming() []domain.FriendRequest {
	me := c.opts.ActingUserID
	pending := lo.Filter(c.items.Snapshot(), func(v domain.ConnectionView, _ int) bool {
		return v.Status == domain.ConnectionPending && v.ReceiverID == me
	})
	return lo.Map(pending, func(v domain.ConnectionView, _ int) domain.FriendRequest {
		return domain.FriendRequest{ConnectionID: v.ID, Requester: v.Counterpart, CreatedAt: v.CreatedAt}
	})
}

// Status reads the current state between the acting user and otherID from
// the store.
func (c *Connections) Status(ctx context.Context, otherID string) (domain.FriendState, *domain.Connection, error) {
	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	return LookupFriendState(rctx, c.store, c.opts.ActingUserID, otherID)
}

// LookupFriendState returns the friend state of the pair and the connection
// behind it, if any.
func LookupFriendState(ctx context.Context, store ConnectionsStore, actingUserID, otherID string) (domain.FriendState, *domain.Connection, error) {
	conn, err := store.FindConnection(ctx, actingUserID, otherID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FriendStateNone, nil, nil
	}
	if err != nil {
		return "", nil, domain.FetchError("find connection", err)
	}
	return domain.StateOf(&conn, actingUserID), &conn, nil
}

// Request sends a friend request to receiverID. At most one connection may
// exist per pair, whoever sent it.
func (c *Connections) Request(ctx context.Context, receiverID string) (domain.ConnectionView, error) {
	me := c.opts.ActingUserID
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return domain.ConnectionView{}, validation("receiver_id", "required")
	}
	if receiverID == me {
		return domain.ConnectionView{}, validation("receiver_id", "cannot send a friend request to yourself")
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()

	state, _, err := LookupFriendState(rctx, c.store, me, receiverID)
	if err != nil {
		c.opts.fail(entityConnections, err, "Error", "Failed to send friend request. Please try again.")
		return domain.ConnectionView{}, err
	}
	if !domain.CanTransition(state, domain.FriendStatePendingOutgoing) {
		return domain.ConnectionView{}, c.duplicate()
	}

	conn, err := c.store.InsertConnection(rctx, domain.NewConnection{RequesterID: me, ReceiverID: receiverID})
	if errors.Is(err, domain.ErrDuplicateConnection) {
		return domain.ConnectionView{}, c.duplicate()
	}
	if err != nil {
		err = domain.WriteError("insert connection", err)
		c.opts.fail(entityConnections, err, "Error", "Failed to send friend request. Please try again.")
		return domain.ConnectionView{}, err
	}

	view := c.view(rctx, conn)
	c.live.merge(view, "write")
	c.notify(rctx, domain.NewNotification{
		UserID:    receiverID,
		Type:      domain.NotificationFriendRequest,
		Content:   "You have a new friend request",
		RelatedID: conn.ID,
	})
	c.opts.succeed("Friend request sent!", "Your friend request has been sent successfully.")
	return view, nil
}

// Accept turns a pending request addressed to the acting user into a
// friendship and tells the requester.
func (c *Connections) Accept(ctx context.Context, id string) (domain.Connection, error) {
	conn, err := c.transition(ctx, id, domain.FriendStateAccepted)
	if err != nil {
		c.reportTransition(err, "Failed to accept friend request. Please try again.")
		return domain.Connection{}, err
	}

	rctx, cancel := c.opts.remote(ctx)
	defer cancel()
	c.notify(rctx, domain.NewNotification{
		UserID:    conn.RequesterID,
		Type:      domain.NotificationFriendRequestAccepted,
		Content:   "Your friend request has been accepted",
		RelatedID: conn.ID,
	})
	c.opts.succeed("Friend request accepted!", "You are now friends.")
	return conn, nil
}

// Reject declines a pending request addressed to the acting user.
func (c *Connections) Reject(ctx context.Context, id string) (domain.Connection, error) {
	conn, err := c.transition(ctx, id, domain.FriendStateRejected)
	if err != nil {
		c.reportTransition(err, "Failed to reject friend request. Please try again.")
		return domain.Connection{}, err
	}
	c.opts.succeed("Friend request rejected", "The friend request has been rejected.")
	return conn, nil
}

func (c *Connections) transition(ctx context.Context, id string, to domain.FriendState) (domain.Connection, error) {
	me := c.opts.ActingUserID
	rctx, cancel := c.opts.remote(ctx)
	defer cancel()

	cur, err := c.store.GetConnection(rctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Connection{}, err
	}
	if err != nil {
		return domain.Connection{}, domain.FetchError("get connection", err)
	}
	if cur.ReceiverID != me || !domain.CanTransition(domain.StateOf(&cur, me), to) {
		return domain.Connection{}, domain.ErrInvalidTransition
	}

	status := domain.ConnectionAccepted
	if to == domain.FriendStateRejected {
		status = domain.ConnectionRejected
	}
	next, err := c.store.SetConnectionStatus(rctx, id, me, status)
	if errors.Is(err, domain.ErrNotFound) {
		// the request was answered or withdrawn meanwhile
		return domain.Connection{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.Connection{}, domain.WriteError("update connection", err)
	}

	if !c.items.Update(id, func(v domain.ConnectionView) domain.ConnectionView {
		v.Connection = next
		return v
	}) {
		c.live.merge(c.view(rctx, next), "write")
	}
	return next, nil
}

func (c *Connections) reportTransition(err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		c.opts.fail(entityConnections, err, "Request no longer pending", "This friend request can no longer be answered.")
	case errors.Is(err, domain.ErrNotFound):
		c.opts.fail(entityConnections, err, "Request not found", "This friend request no longer exists.")
	default:
		c.opts.fail(entityConnections, err, "Error", message)
	}
}

func (c *Connections) duplicate() error {
	c.opts.fail(entityConnections, domain.ErrDuplicateConnection, "Connection exists", "You already have a connection with this user.")
	return domain.ErrDuplicateConnection
}

// view joins the counterpart into a freshly written connection.
func (c *Connections) view(ctx context.Context, conn domain.Connection) domain.ConnectionView {
	v, err := c.store.GetConnectionView(ctx, conn.ID, c.opts.ActingUserID)
	if err != nil {
		c.opts.Logger.Warn("livesync: connection view lookup failed", "connection_id", conn.ID, "err", err)
		return domain.ConnectionView{Connection: conn, Counterpart: domain.UnknownProfile(conn.Other(c.opts.ActingUserID))}
	}
	return v
}

// notify writes a notification for the other participant. The connection
// change already happened, so a failure here is reported but not returned.
func (c *Connections) notify(ctx context.Context, n domain.NewNotification) {
	if c.notifications == nil {
		return
	}
	if _, err := c.notifications.InsertNotification(ctx, n); err != nil {
		err = domain.WriteError("insert notification", err)
		c.opts.fail(entityNotifications, err, "Notification not delivered", "The other user may not be notified right away.")
	}
}

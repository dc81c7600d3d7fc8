package livesync

import (
	"context"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

const (
	entityNotifications = "notifications"

	NotificationsPageSize = 20
	maxParallelLookups    = 8
)

// Notifications mirrors the newest notifications of the acting user. Friend
// request notifications carry the requester's profile.
type Notifications struct {
	opts        Options
	store       NotificationsStore
	connections ConnectionsStore
	items       *Collection[domain.Notification]
	live        *liveQuery[domain.Notification]
}

func NewNotifications(store NotificationsStore, connections ConnectionsStore, opts Options) (*Notifications, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	n := &Notifications{
		opts:        opts,
		store:       store,
		connections: connections,
		items:       NewCollection[domain.Notification](),
	}
	me := opts.ActingUserID
	n.live = &liveQuery[domain.Notification]{
		entity: entityNotifications,
		opts:   opts,
		items:  n.items,
		place:  atHead,
		filter: changes.Where(changes.TableNotifications, changes.Match{"user_id": me}),
		fetchAll: func(ctx context.Context) ([]domain.Notification, error) {
			rows, err := store.ListNotifications(ctx, me, NotificationsPageSize)
			if err != nil {
				return nil, err
			}
			return n.enrich(ctx, rows)
		},
		fetchOne: func(ctx context.Context, id string) (domain.Notification, error) {
			row, err := store.GetNotification(ctx, id)
			if err != nil {
				return domain.Notification{}, err
			}
			rows, err := n.enrich(ctx, []domain.Notification{row})
			if err != nil {
				return domain.Notification{}, err
			}
			return rows[0], nil
		},
	}
	return n, nil
}

func (n *Notifications) Collection() *Collection[domain.Notification] { return n.items }

func (n *Notifications) Notifications() []domain.Notification { return n.items.Snapshot() }

func (n *Notifications) UnreadCount() int {
	return lo.CountBy(n.items.Snapshot(), func(x domain.Notification) bool { return !x.IsRead })
}

func (n *Notifications) Open(ctx context.Context) error {
	return n.live.open(ctx, "Failed to load notifications")
}

func (n *Notifications) Refresh(ctx context.Context) error {
	return n.live.load(ctx, "Failed to load notifications")
}

func (n *Notifications) Close() error { return n.live.close() }

// MarkRead marks one notification as read. Reading never goes back to unread,
// so an already-read notification is not written again.
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	if cur, ok := n.items.Get(id); ok && cur.IsRead {
		return nil
	}

	rctx, cancel := n.opts.remote(ctx)
	defer cancel()
	if err := n.store.MarkNotificationRead(rctx, id, n.opts.ActingUserID); err != nil {
		err = domain.WriteError("mark notification read", err)
		n.opts.fail(entityNotifications, err, "Failed to update notification", "Please try again.")
		return err
	}
	n.items.Update(id, func(x domain.Notification) domain.Notification {
		x.IsRead = true
		return x
	})
	return nil
}

func (n *Notifications) MarkAllRead(ctx context.Context) error {
	rctx, cancel := n.opts.remote(ctx)
	defer cancel()
	if err := n.store.MarkAllNotificationsRead(rctx, n.opts.ActingUserID); err != nil {
		err = domain.WriteError("mark all notifications read", err)
		n.opts.fail(entityNotifications, err, "Failed to update notifications", "Please try again.")
		return err
	}
	n.items.UpdateAll(func(x domain.Notification) (domain.Notification, bool) {
		if x.IsRead {
			return x, false
		}
		x.IsRead = true
		return x, true
	})
	return nil
}

// enrich resolves the requester of every friend request notification. A
// lookup that fails leaves a placeholder profile rather than failing the page.
func (n *Notifications) enrich(ctx context.Context, rows []domain.Notification) ([]domain.Notification, error) {
	out := make([]domain.Notification, len(rows))
	copy(out, rows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i, row := range out {
		if row.Type != domain.NotificationFriendRequest {
			continue
		}
		g.Go(func() error {
			requester := n.requester(gctx, row)
			out[i].Requester = &requester
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *Notifications) requester(ctx context.Context, row domain.Notification) domain.ProfileSummary {
	if row.RelatedID == "" || n.connections == nil {
		return domain.UnknownProfile("")
	}
	view, err := n.connections.GetConnectionView(ctx, row.RelatedID, row.UserID)
	if err != nil {
		n.opts.Logger.Warn("livesync: requester lookup failed", "notification_id", row.ID, "connection_id", row.RelatedID, "err", err)
		return domain.UnknownProfile("")
	}
	if view.Counterpart.ID == "" {
		return domain.UnknownProfile(view.RequesterID)
	}
	return view.Counterpart
}

package livesync

import (
	"context"
	"fmt"
	"sync"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
)

type placement int

const (
	atTail placement = iota
	atHead
)

// liveQuery keeps a Collection in step with one filtered slice of a remote
// table: a bulk fetch on load and a push loop that merges inserted rows.
type liveQuery[T Record] struct {
	entity string
	opts   Options
	items  *Collection[T]
	filter changes.Filter
	place  placement

	fetchAll func(ctx context.Context) ([]T, error)
	fetchOne func(ctx context.Context, id string) (T, error)
	// onPush runs after a pushed row was merged.
	onPush func(ctx context.Context, item T)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// loadMu serialises loads; the collection has a single loading window.
	loadMu sync.Mutex
}

// start subscribes to the change feed. A nil feed leaves the query fetch-only.
func (q *liveQuery[T]) start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil || q.opts.Feed == nil {
		return nil
	}

	sub, err := q.opts.Feed.Subscribe(ctx, q.filter)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.filter.Key(), err)
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.done = make(chan struct{})
	q.opts.Metrics.SubscriptionOpened(q.entity)
	go q.run(loopCtx, sub, q.done)
	return nil
}

func (q *liveQuery[T]) run(ctx context.Context, sub changes.Subscription, done chan struct{}) {
	defer close(done)
	defer q.opts.Metrics.SubscriptionClosed(q.entity)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			q.handle(ctx, ev)
		}
	}
}

func (q *liveQuery[T]) handle(ctx context.Context, ev changes.Event) {
	if q.items.Has(ev.ID) {
		q.opts.Metrics.Duplicate(q.entity)
		return
	}

	rctx, cancel := q.opts.remote(ctx)
	item, err := q.fetchOne(rctx, ev.ID)
	cancel()
	if err != nil {
		q.opts.Metrics.Error(q.entity, errorKind(domain.FetchError("get "+q.entity, err)))
		q.opts.Logger.Warn("livesync: pushed row not loaded", "entity", q.entity, "id", ev.ID, "err", err)
		return
	}

	if !q.merge(item, "push") {
		return
	}
	if q.onPush != nil {
		q.onPush(ctx, item)
	}
}

// merge places item in the collection unless it is already there. source is
// "push" or "write".
func (q *liveQuery[T]) merge(item T, source string) bool {
	var added bool
	if q.place == atHead {
		added = q.items.Prepend(item)
	} else {
		added = q.items.Append(item)
	}
	if added {
		q.opts.Metrics.Merged(q.entity, source)
	} else {
		q.opts.Metrics.Duplicate(q.entity)
	}
	return added
}

// load replaces the collection with a fresh fetch. On failure the collection
// keeps what it had and the caller may retry.
func (q *liveQuery[T]) load(ctx context.Context, title string) error {
	q.loadMu.Lock()
	defer q.loadMu.Unlock()

	q.items.SetLoading(true)
	defer q.items.SetLoading(false)

	rctx, cancel := q.opts.remote(ctx)
	defer cancel()
	rows, err := q.fetchAll(rctx)
	if err != nil {
		err = domain.FetchError("list "+q.entity, err)
		q.opts.fail(q.entity, err, title, "Please try again.")
		return err
	}
	q.items.Replace(rows)
	return nil
}

// open subscribes and then loads, so that rows inserted while the fetch runs
// are not missed.
func (q *liveQuery[T]) open(ctx context.Context, title string) error {
	if err := q.start(ctx); err != nil {
		q.opts.Logger.Warn("livesync: live updates unavailable", "entity", q.entity, "err", err)
	}
	return q.load(ctx, title)
}

func (q *liveQuery[T]) close() error {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusconnect/internal/changes"
)

// ChangeChannel is the NOTIFY channel the schema triggers publish on.
const ChangeChannel = "campus_changes"

// Publisher receives decoded change events. *changes.Hub satisfies it.
type Publisher interface {
	Publish(ev changes.Event)
}

// ChangeListener holds one pooled connection in LISTEN mode and forwards every
// notification to a Publisher, reconnecting with backoff when the connection
// drops.
type ChangeListener struct {
	Pool   *pgxpool.Pool
	Out    Publisher
	Logger *slog.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Run blocks until ctx is cancelled.
func (l *ChangeListener) Run(ctx context.Context) error {
	l.retry(ctx, l.listen, sleep)
	return nil
}

// retry runs attempt until ctx ends. The wait between attempts doubles up to
// MaxBackoff and drops back to MinBackoff once an attempt has attached.
func (l *ChangeListener) retry(ctx context.Context, attempt func(ctx context.Context, attached func()) error, wait func(ctx context.Context, d time.Duration) bool) {
	backoff := l.minBackoff()
	for {
		err := attempt(ctx, func() { backoff = l.minBackoff() })
		if ctx.Err() != nil {
			return
		}
		l.logger().Warn("change listener disconnected", "err", err, "retry_in", backoff)

		if !wait(ctx, backoff) {
			return
		}
		backoff *= 2
		if ceiling := l.maxBackoff(); backoff > ceiling {
			backoff = ceiling
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (l *ChangeListener) listen(ctx context.Context, attached func()) error {
	pooled, err := l.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	// A LISTENing connection must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger().Info("change listener attached", "channel", ChangeChannel)
	attached()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := DecodeChange(n)
		if err != nil {
			l.logger().Warn("change listener: bad payload", "err", err)
			continue
		}
		l.Out.Publish(ev)
	}
}

// DecodeChange parses a trigger payload into an event.
func DecodeChange(n *pgconn.Notification) (changes.Event, error) {
	if n == nil {
		return changes.Event{}, errors.New("nil notification")
	}
	var ev changes.Event
	if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
		return changes.Event{}, fmt.Errorf("decode change: %w", err)
	}
	if ev.Table == "" || ev.ID == "" {
		return changes.Event{}, fmt.Errorf("decode change: missing table or id in %q", n.Payload)
	}
	return ev, nil
}

func (l *ChangeListener) minBackoff() time.Duration {
	if l.MinBackoff > 0 {
		return l.MinBackoff
	}
	return 500 * time.Millisecond
}

func (l *ChangeListener) maxBackoff() time.Duration {
	if l.MaxBackoff > 0 {
		return l.MaxBackoff
	}
	return 30 * time.Second
}

func (l *ChangeListener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

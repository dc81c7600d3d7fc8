// Package natsfeed carries row-change events between processes over NATS.
// One relay process listens to the database and publishes; every server
// subscribes and fans the events out through its local hub.
package natsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"campusconnect/internal/changes"
)

const DefaultPrefix = "campus.changes"

// Subject returns the subject an event on table is published to.
func Subject(prefix, table string) string {
	return prefix + "." + table
}

func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Publisher writes events to NATS. It satisfies postgres.Publisher so the
// change listener can feed it directly.
type Publisher struct {
	Conn   *nats.Conn
	Prefix string
	Logger *slog.Logger
}

func (p *Publisher) Publish(ev changes.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger().Error("natsfeed: encode event", "err", err)
		return
	}
	if err := p.Conn.Publish(Subject(p.prefix(), ev.Table), data); err != nil {
		p.logger().Warn("natsfeed: publish failed", "table", ev.Table, "id", ev.ID, "err", err)
	}
}

func (p *Publisher) prefix() string {
	if p.Prefix == "" {
		return DefaultPrefix
	}
	return p.Prefix
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Bridge subscribes to every table under Prefix and republishes on Hub.
type Bridge struct {
	Conn   *nats.Conn
	Prefix string
	Hub    *changes.Hub
	Logger *slog.Logger
}

// Run blocks until ctx is cancelled, then drains the subscription.
func (b *Bridge) Run(ctx context.Context) error {
	prefix := b.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	sub, err := b.Conn.Subscribe(prefix+".>", b.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", prefix, err)
	}
	b.logger().Info("natsfeed: bridge subscribed", "subject", prefix+".>")

	<-ctx.Done()
	return sub.Drain()
}

func (b *Bridge) handle(msg *nats.Msg) {
	var ev changes.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.logger().Warn("natsfeed: bad event", "subject", msg.Subject, "err", err)
		return
	}
	if ev.Table == "" {
		ev.Table = msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]
	}
	b.Hub.Publish(ev)
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

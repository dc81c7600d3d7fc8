// Package changes models row-change notifications pushed by the remote store
// and the subscriptions that deliver them to sync hooks.
package changes

import (
	"context"
	"sort"
	"strings"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

const (
	TablePosts         = "posts"
	TableComments      = "comments"
	TableMessages      = "direct_messages"
	TableNotifications = "notifications"
	TableConnections   = "connections"
	TableProfiles      = "profiles"
)

// Event announces that a row changed. Columns carries the values a Filter may
// match on; the row itself is re-read by id.
type Event struct {
	Table   string            `json:"table"`
	Op      Op                `json:"op"`
	ID      string            `json:"id"`
	Columns map[string]string `json:"columns,omitempty"`
}

// Match is satisfied when every listed column equals its value.
type Match map[string]string

// Filter selects insert events on one table. An event passes when any Match
// is satisfied; an empty Any matches every row of the table.
type Filter struct {
	Table string
	Any   []Match
}

func Where(table string, m Match) Filter {
	return Filter{Table: table, Any: []Match{m}}
}

func (f Filter) Or(m Match) Filter {
	ms := make([]Match, 0, len(f.Any)+1)
	ms = append(ms, f.Any...)
	ms = append(ms, m)
	return Filter{Table: f.Table, Any: ms}
}

func (f Filter) Matches(ev Event) bool {
	if ev.Table != f.Table || ev.Op != OpInsert {
		return false
	}
	if len(f.Any) == 0 {
		return true
	}
	for _, m := range f.Any {
		if m.matches(ev.Columns) {
			return true
		}
	}
	return false
}

func (m Match) matches(cols map[string]string) bool {
	for k, v := range m {
		if cols[k] != v {
			return false
		}
	}
	return true
}

// Key identifies the filter scope, e.g. "direct_messages:receiver_id=b,sender_id=a|receiver_id=a,sender_id=b".
func (f Filter) Key() string {
	parts := make([]string, 0, len(f.Any))
	for _, m := range f.Any {
		cols := make([]string, 0, len(m))
		for k, v := range m {
			cols = append(cols, k+"="+v)
		}
		sort.Strings(cols)
		parts = append(parts, strings.Join(cols, ","))
	}
	sort.Strings(parts)
	return f.Table + ":" + strings.Join(parts, "|")
}

type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}

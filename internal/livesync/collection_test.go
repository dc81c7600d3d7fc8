package livesync

import (
	"testing"
)

type row struct {
	id   string
	read bool
}

func (r row) RecordID() string { return r.id }

func ids(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.id
	}
	return out
}

func equalIDs(got []row, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCollectionMergeIsIdempotent(t *testing.T) {
	for _, n := range []int{1, 2, 5, 50} {
		c := NewCollection[row]()
		c.Replace([]row{{id: "a"}})
		added := 0
		for i := 0; i < n; i++ {
			if c.Append(row{id: "b"}) {
				added++
			}
		}
		if added != 1 {
			t.Fatalf("n=%d: expected exactly one append to succeed, got %d", n, added)
		}
		if !equalIDs(c.Snapshot(), "a", "b") {
			t.Fatalf("n=%d: unexpected order %v", n, ids(c.Snapshot()))
		}
	}
}

func TestCollectionPrependRejectsKnownID(t *testing.T) {
	c := NewCollection[row]()
	c.Replace([]row{{id: "b"}, {id: "a"}})

	if !c.Prepend(row{id: "c"}) {
		t.Fatalf("expected prepend of new id")
	}
	if c.Prepend(row{id: "a"}) {
		t.Fatalf("prepend of a known id must be refused")
	}
	if !equalIDs(c.Snapshot(), "c", "b", "a") {
		t.Fatalf("unexpected order %v", ids(c.Snapshot()))
	}
}

func TestCollectionReplaceDropsDuplicateRows(t *testing.T) {
	c := NewCollection[row]()
	c.Replace([]row{{id: "a"}, {id: "b"}, {id: "a"}})
	if !equalIDs(c.Snapshot(), "a", "b") {
		t.Fatalf("unexpected rows %v", ids(c.Snapshot()))
	}
}

func TestCollectionReplaceKeepsRowsMergedDuringFetch(t *testing.T) {
	c := NewCollection[row]()
	c.SetLoading(true)
	c.Append(row{id: "late"})
	c.Append(row{id: "b"})
	c.Replace([]row{{id: "a"}, {id: "b"}})
	c.SetLoading(false)

	if !equalIDs(c.Snapshot(), "a", "b", "late") {
		t.Fatalf("unexpected rows %v", ids(c.Snapshot()))
	}
}

func TestCollectionFailedFetchForgetsInflightRows(t *testing.T) {
	c := NewCollection[row]()
	c.SetLoading(true)
	c.Append(row{id: "x"})
	c.SetLoading(false)

	c.SetLoading(true)
	c.Replace([]row{{id: "a"}})
	if !equalIDs(c.Snapshot(), "a") {
		t.Fatalf("rows merged before this fetch must not survive it, got %v", ids(c.Snapshot()))
	}
}

func TestCollectionUpdateAllCountsChanges(t *testing.T) {
	c := NewCollection[row]()
	c.Replace([]row{{id: "a"}, {id: "b", read: true}, {id: "c"}})

	n := c.UpdateAll(func(r row) (row, bool) {
		if r.read {
			return r, false
		}
		r.read = true
		return r, true
	})
	if n != 2 {
		t.Fatalf("expected 2 changes, got %d", n)
	}
	for _, r := range c.Snapshot() {
		if !r.read {
			t.Fatalf("expected every row read, got %+v", r)
		}
	}
}

func TestCollectionRemove(t *testing.T) {
	c := NewCollection[row]()
	c.Replace([]row{{id: "a"}, {id: "b"}})
	if !c.Remove("a") {
		t.Fatalf("expected remove")
	}
	if c.Remove("a") {
		t.Fatalf("second remove must report false")
	}
	if c.Has("a") || c.Len() != 1 {
		t.Fatalf("unexpected rows %v", ids(c.Snapshot()))
	}
	if !c.Append(row{id: "a"}) {
		t.Fatalf("removed id must be appendable again")
	}
}

func TestCollectionWatchCoalesces(t *testing.T) {
	c := NewCollection[row]()
	ch, cancel := c.Watch()
	defer cancel()

	c.Append(row{id: "a"})
	c.Append(row{id: "b"})
	c.Append(row{id: "c"})

	select {
	case <-ch:
	default:
		t.Fatalf("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatalf("signals must coalesce")
	default:
	}

	cancel()
	c.Append(row{id: "d"})
	select {
	case <-ch:
		t.Fatalf("cancelled watcher must not be signalled")
	default:
	}
}

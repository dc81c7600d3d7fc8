package livesync

import (
	"sync"

	"github.com/samber/lo"
)

// Record is anything a Collection can hold: it must carry a stable id.
type Record interface {
	RecordID() string
}

// Collection is an ordered list of records, unique by id, that mirrors a
// remote table slice. It is safe for concurrent use.
//
// Order is the order in which rows were observed, except that Replace installs
// the store's ordering wholesale.
type Collection[T Record] struct {
	mu      sync.RWMutex
	items   []T
	ids     map[string]struct{}
	loading bool

	// rows merged while a fetch is in flight; kept across the Replace that
	// ends the fetch if the fetched page does not contain them.
	inflightHead []T
	inflightTail []T

	watchers map[chan struct{}]struct{}
}

func NewCollection[T Record]() *Collection[T] {
	return &Collection[T]{ids: make(map[string]struct{})}
}

// Replace installs a freshly fetched list.
func (c *Collection[T]) Replace(rows []T) {
	c.mu.Lock()
	fetched := lo.UniqBy(rows, func(r T) string { return r.RecordID() })
	inRows := make(map[string]struct{}, len(fetched))
	for _, r := range fetched {
		inRows[r.RecordID()] = struct{}{}
	}
	missing := func(r T, _ int) bool {
		_, ok := inRows[r.RecordID()]
		return !ok
	}

	items := make([]T, 0, len(fetched)+len(c.inflightHead)+len(c.inflightTail))
	items = append(items, lo.Filter(c.inflightHead, missing)...)
	items = append(items, fetched...)
	items = append(items, lo.Filter(c.inflightTail, missing)...)

	c.items = items
	c.reindex()
	c.inflightHead, c.inflightTail = nil, nil
	c.mu.Unlock()
	c.notify()
}

// Append adds r at the end unless a record with the same id is present.
func (c *Collection[T]) Append(r T) bool {
	c.mu.Lock()
	if c.has(r.RecordID()) {
		c.mu.Unlock()
		return false
	}
	c.items = append(c.items, r)
	c.ids[r.RecordID()] = struct{}{}
	if c.loading {
		c.inflightTail = append(c.inflightTail, r)
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// Prepend adds r at the front unless a record with the same id is present.
func (c *Collection[T]) Prepend(r T) bool {
	c.mu.Lock()
	if c.has(r.RecordID()) {
		c.mu.Unlock()
		return false
	}
	c.items = append([]T{r}, c.items...)
	c.ids[r.RecordID()] = struct{}{}
	if c.loading {
		c.inflightHead = append([]T{r}, c.inflightHead...)
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// Update replaces the record with the given id by fn's result.
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	_, idx, ok := lo.FindIndexOf(c.items, func(r T) bool { return r.RecordID() == id })
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.items[idx] = fn(c.items[idx])
	c.mu.Unlock()
	c.notify()
	return true
}

// UpdateAll applies fn to every record and returns how many it changed.
func (c *Collection[T]) UpdateAll(fn func(T) (T, bool)) int {
	c.mu.Lock()
	n := 0
	for i, r := range c.items {
		if next, changed := fn(r); changed {
			c.items[i] = next
			n++
		}
	}
	c.mu.Unlock()
	if n > 0 {
		c.notify()
	}
	return n
}

func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	if !c.has(id) {
		c.mu.Unlock()
		return false
	}
	keep := func(r T, _ int) bool { return r.RecordID() != id }
	c.items = lo.Filter(c.items, keep)
	c.inflightHead = lo.Filter(c.inflightHead, keep)
	c.inflightTail = lo.Filter(c.inflightTail, keep)
	delete(c.ids, id)
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := lo.Find(c.items, func(r T) bool { return r.RecordID() == id })
	return r, ok
}

func (c *Collection[T]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.has(id)
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Snapshot returns a copy of the records in collection order.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *Collection[T]) SetLoading(loading bool) {
	c.mu.Lock()
	if c.loading == loading {
		c.mu.Unlock()
		return
	}
	c.loading = loading
	c.inflightHead, c.inflightTail = nil, nil
	c.mu.Unlock()
	c.notify()
}

// Watch returns a channel that receives a signal after every change. Signals
// coalesce: a slow reader sees one pending signal, not one per change.
func (c *Collection[T]) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	if c.watchers == nil {
		c.watchers = make(map[chan struct{}]struct{})
	}
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Collection[T]) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Collection[T]) has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *Collection[T]) reindex() {
	c.ids = make(map[string]struct{}, len(c.items))
	for _, r := range c.items {
		c.ids[r.RecordID()] = struct{}{}
	}
}

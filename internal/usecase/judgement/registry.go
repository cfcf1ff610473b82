package judgement

import (
	"sync"

	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

type entry struct {
	ctrl   *rating.Controller
	leases int
}

// registry holds one rating controller per document key. Callers lease a
// controller for the duration of an operation; leased controllers are
// never pruned, so one document never has two controllers.
type registry struct {
	store    rating.Store
	notifier rating.Notifier
	max      int

	mu      sync.Mutex
	entries map[rating.Key]*entry
}

func newRegistry(store rating.Store, notifier rating.Notifier, max int) *registry {
	return &registry{
		store:    store,
		notifier: notifier,
		max:      max,
		entries:  make(map[rating.Key]*entry),
	}
}

// seed leases the controller for key, creating it or refreshing its
// committed value from a search hit. Busy controllers keep their state.
func (r *registry) seed(key rating.Key, committed rating.Value) (*rating.Controller, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if ok {
		e.ctrl.Reseed(committed)
	} else {
		e = r.add(key, rating.NewController(key, r.store, committed, r.notifier))
	}
	return r.lease(e)
}

// get leases the controller for key. A controller created here has not
// seen the stored rating and reports its committed value as unknown.
func (r *registry) get(key rating.Key) (*rating.Controller, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = r.add(key, rating.NewUnseeded(key, r.store, r.notifier))
	}
	return r.lease(e)
}

// lookup returns the controller for key without creating or leasing one.
func (r *registry) lookup(key rating.Key) (*rating.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// lease pins e until the returned release runs. Caller holds r.mu.
func (r *registry) lease(e *entry) (*rating.Controller, func()) {
	e.leases++
	var once sync.Once
	return e.ctrl, func() {
		once.Do(func() {
			r.mu.Lock()
			e.leases--
			r.mu.Unlock()
		})
	}
}

// add registers a new controller. Caller holds r.mu.
func (r *registry) add(key rating.Key, c *rating.Controller) *entry {
	if r.max > 0 && len(r.entries) >= r.max {
		r.prune()
	}
	e := &entry{ctrl: c}
	r.entries[key] = e
	return e
}

// prune drops settled, unleased controllers. Caller holds r.mu.
func (r *registry) prune() {
	for k, e := range r.entries {
		if e.leases > 0 {
			continue
		}
		s := e.ctrl.Snapshot()
		if s.State == rating.Idle && s.Displayed == s.Committed {
			delete(r.entries, k)
		}
	}
}

package rating

import (
	"context"
	"sync"
)

// State is the controller lifecycle state.
type State string

// Controller states.
const (
	Idle       State = "idle"
	Dragging   State = "dragging"
	Committing State = "committing"
)

type event int

const (
	evChange event = iota
	evCommit
	evClear
	evSkip
	evSettle
)

// transitions is the complete state table; undefined pairs leave the state unchanged.
var transitions = map[State]map[event]State{
	Idle: {
		evChange: Dragging,
		evCommit: Committing,
		evClear:  Committing,
		evSkip:   Idle,
	},
	Dragging: {
		evChange: Dragging,
		evCommit: Committing,
		evClear:  Committing,
		evSkip:   Idle,
	},
	Committing: {
		evChange: Committing,
		evCommit: Committing,
		evClear:  Committing,
		evSettle: Idle,
	},
}

// Op is the backend write a controller issues.
type Op string

// Controller write operations.
const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Outcome describes what a Commit or Clear call did.
type Outcome string

// Commit / Clear outcomes.
const (
	// OutcomeCommitted means the request (and any queued follow-up) succeeded.
	OutcomeCommitted Outcome = "committed"
	// OutcomeSkipped means the displayed value already equals the committed one.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeQueued means another request is in flight; the final state will be submitted after it.
	OutcomeQueued Outcome = "queued"
	// OutcomeFailed means the last submitted request failed and the value was rolled back.
	OutcomeFailed Outcome = "failed"
)

// Store persists ratings. Implementations must be safe for concurrent use.
type Store interface {
	UpsertRating(ctx context.Context, key Key, n int) error
	DeleteRating(ctx context.Context, key Key) error
}

// Notification reports a failed write after its rollback was applied.
type Notification struct {
	Key        Key
	Op         Op
	Attempted  Value
	RolledBack Value
	Err        error
}

// Notifier receives write failures. It is called without holding the controller lock.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Snapshot is a consistent view of controller state.
type Snapshot struct {
	State     State `json:"state"`
	Displayed Value `json:"displayed"`
	Committed Value `json:"committed"`
	Queued    bool  `json:"queued"`
	// CommittedKnown is false until the committed value came from a search
	// hit or a successful write; an unknown committed value reads as unset.
	CommittedKnown bool `json:"committed_known"`
}

type intent struct {
	op    Op
	value Value
	// write replaces the store call when set.
	write func(ctx context.Context) error
}

func intentFor(v Value) intent {
	if v.IsSet() {
		return intent{op: OpUpsert, value: v}
	}
	return intent{op: OpDelete, value: Unset}
}

// Controller tracks the optimistic rating of one document.
// At most one write is in flight at a time; writes requested meanwhile
// collapse into a single queued intent that the in-flight caller submits
// once its own request settles.
type Controller struct {
	key      Key
	store    Store
	notifier Notifier

	mu        sync.Mutex
	state     State
	displayed Value
	committed Value
	known     bool
	queued    *intent
}

// NewController creates an Idle controller whose displayed and committed
// values both equal committed. notifier may be nil.
func NewController(key Key, store Store, committed Value, notifier Notifier) *Controller {
	return &Controller{
		key:       key,
		store:     store,
		notifier:  notifier,
		state:     Idle,
		displayed: committed,
		committed: committed,
		known:     true,
	}
}

// NewUnseeded creates an Idle controller for a document whose stored
// rating has not been read. Its committed value reports unset and unknown
// until Reseed or a successful write.
func NewUnseeded(key Key, store Store, notifier Notifier) *Controller {
	c := NewController(key, store, Unset, notifier)
	c.known = false
	return c
}

// Key returns the rating scope.
func (c *Controller) Key() Key { return c.key }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:     c.state,
		Displayed: c.displayed,
		Committed: c.committed,
		Queued:    c.queued != nil,

		CommittedKnown: c.known,
	}
}

// Reseed replaces the committed value when the controller is idle and
// undisturbed. Reports whether the seed was applied.
func (c *Controller) Reseed(committed Value) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.displayed = committed
	c.committed = committed
	c.known = true
	return true
}

// Change moves the displayed value. It never touches the store.
func (c *Controller) Change(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayed = Of(n)
	c.fire(evChange)
}

// Commit submits the displayed value. The call blocks until the write and
// any writes queued behind it settle, unless another write is already in
// flight, in which case it returns OutcomeQueued immediately.
func (c *Controller) Commit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.state == Committing {
		in := intentFor(c.displayed)
		c.queued = &in
		c.mu.Unlock()
		return OutcomeQueued, nil
	}
	if c.displayed == c.committed {
		c.fire(evSkip)
		c.mu.Unlock()
		return OutcomeSkipped, nil
	}
	c.fire(evCommit)
	in := intentFor(c.displayed)
	c.mu.Unlock()

	return c.drain(ctx, in)
}

// Clear optimistically unsets the displayed value and deletes the rating.
func (c *Controller) Clear(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	c.displayed = Unset
	if c.state == Committing {
		c.queued = &intent{op: OpDelete, value: Unset}
		c.mu.Unlock()
		return OutcomeQueued, nil
	}
	c.fire(evClear)
	c.mu.Unlock()

	return c.drain(ctx, intent{op: OpDelete, value: Unset})
}

// Apply writes n through write instead of the store, under the same gate
// as Commit. A dragging or committing controller belongs to a person:
// Apply then returns OutcomeSkipped without writing.
func (c *Controller) Apply(ctx context.Context, n int, write func(ctx context.Context) error) (Outcome, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return OutcomeSkipped, nil
	}
	c.displayed = Of(n)
	c.fire(evCommit)
	c.mu.Unlock()

	return c.drain(ctx, intent{op: OpUpsert, value: Of(n), write: write})
}

// drain submits in, then every intent queued while it was in flight.
// The controller is always back out of Committing when drain returns.
func (c *Controller) drain(ctx context.Context, in intent) (Outcome, error) {
	for {
		err := c.submit(ctx, in)

		c.mu.Lock()
		var note *Notification
		if err != nil {
			// A newer queued intent supersedes the rollback target.
			if c.queued == nil {
				c.displayed = c.committed
			}
			note = &Notification{
				Key: c.key, Op: in.op, Attempted: in.value, RolledBack: c.committed, Err: err,
			}
		} else {
			c.committed = in.value
			c.known = true
		}

		next := c.queued
		c.queued = nil
		if next != nil && next.value == c.committed {
			next = nil
		}
		if next == nil {
			c.fire(evSettle)
			if c.displayed != c.committed {
				c.fire(evChange)
			}
		}
		c.mu.Unlock()

		if note != nil && c.notifier != nil {
			c.notifier.Notify(*note)
		}
		if next == nil {
			if err != nil {
				return OutcomeFailed, err
			}
			return OutcomeCommitted, nil
		}
		in = *next
	}
}

func (c *Controller) submit(ctx context.Context, in intent) error {
	if in.write != nil {
		return in.write(ctx)
	}
	if in.op == OpDelete {
		return c.store.DeleteRating(ctx, c.key)
	}
	n, _ := in.value.Int()
	return c.store.UpsertRating(ctx, c.key, n)
}

// fire applies ev to the state table. Caller holds c.mu.
func (c *Controller) fire(ev event) {
	if next, ok := transitions[c.state][ev]; ok {
		c.state = next
	}
}

// Package display caches compiled per-project display sets.
package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/esre-console/internal/db"
	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
)

// source loads the displays of a project from the backend.
type source interface {
	ListDisplays(ctx context.Context, projectID string) ([]domdisplay.Display, error)
}

// store is the consumer interface for the shared cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// loadTimeout bounds a shared load detached from its first caller.
const loadTimeout = 30 * time.Second

type memoEntry struct {
	set     *domdisplay.Set
	expires time.Time
}

// Repo returns display sets memoized in process and cached in a shared store.
type Repo struct {
	src        source
	store      store
	ttl        time.Duration
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]memoEntry
	// gens counts invalidations per project; a load only publishes its
	// result while the generation it started under is current.
	gens map[string]uint64
}

// New creates a display repository. s may be nil to disable the shared cache.
// cacheTotal is a counter vec with label "result" ("memo"/"hit"/"miss"), passed explicitly.
func New(
	src source,
	s store,
	ttl time.Duration,
	prefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Repo {
	return &Repo{
		src:        src,
		store:      s,
		ttl:        ttl,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
		memo:       make(map[string]memoEntry),
		gens:       make(map[string]uint64),
	}
}

// Get returns the display set for a project. Concurrent callers share one
// load, which outlives a caller that gives up.
func (r *Repo) Get(ctx context.Context, projectID string) (*domdisplay.Set, error) {
	if set, ok := r.fromMemo(projectID); ok {
		r.incCache("memo")
		return set, nil
	}

	gen := r.generation(projectID)
	ch := r.group.DoChan(fmt.Sprintf("%s@%d", projectID, gen), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return r.load(lctx, projectID, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domdisplay.Set), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached set of a project after its displays change.
// Loads already in flight keep serving their callers but are not memoized
// or written back.
func (r *Repo) Invalidate(ctx context.Context, projectID string) {
	r.mu.Lock()
	r.gens[projectID]++
	delete(r.memo, projectID)
	r.mu.Unlock()

	r.deleteStored(ctx, projectID)
}

func (r *Repo) load(ctx context.Context, projectID string, gen uint64) (*domdisplay.Set, error) {
	if set, ok := r.fromStore(ctx, projectID); ok {
		r.incCache("hit")
		r.remember(projectID, gen, set)
		return set, nil
	}
	r.incCache("miss")

	list, err := r.src.ListDisplays(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list displays: %w", err)
	}
	set := domdisplay.FromList(list)

	r.toStore(ctx, projectID, gen, set)
	r.remember(projectID, gen, set)
	return set, nil
}

func (r *Repo) generation(projectID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[projectID]
}

func (r *Repo) current(projectID string, gen uint64) bool {
	return r.generation(projectID) == gen
}

func (r *Repo) fromMemo(projectID string) (*domdisplay.Set, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.memo[projectID]
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && !r.now().Before(e.expires) {
		delete(r.memo, projectID)
		return nil, false
	}
	return e.set, true
}

func (r *Repo) remember(projectID string, gen uint64, set *domdisplay.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[projectID] != gen {
		return
	}
	r.memo[projectID] = memoEntry{set: set, expires: r.now().Add(r.ttl)}
}

func (r *Repo) fromStore(ctx context.Context, projectID string) (*domdisplay.Set, bool) {
	if r.store == nil {
		return nil, false
	}
	data, err := r.store.Get(ctx, r.cacheKey(projectID))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("display cache read failed, falling through",
				zap.String("project", projectID),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var m map[string]domdisplay.Display
	if err := json.Unmarshal(data, &m); err != nil {
		r.logger.Warn("display cache entry corrupted",
			zap.String("project", projectID),
			zap.Error(err),
		)
		return nil, false
	}
	return domdisplay.NewSet(m), true
}

func (r *Repo) toStore(ctx context.Context, projectID string, gen uint64, set *domdisplay.Set) {
	if r.store == nil || !r.current(projectID, gen) {
		return
	}
	data, err := json.Marshal(set.Map())
	if err != nil {
		r.logger.Warn("display cache encode failed", zap.Error(err))
		return
	}
	if err := r.store.SetWithTTL(ctx, r.cacheKey(projectID), data, r.ttl); err != nil {
		r.logger.Warn("display cache write failed",
			zap.String("project", projectID),
			zap.Error(err),
		)
		return
	}
	// An Invalidate between the check and the write leaves a stale entry.
	if !r.current(projectID, gen) {
		r.deleteStored(ctx, projectID)
	}
}

func (r *Repo) deleteStored(ctx context.Context, projectID string) {
	if r.store == nil {
		return
	}
	if err := r.store.Del(ctx, r.cacheKey(projectID)); err != nil {
		r.logger.Warn("display cache delete failed",
			zap.String("project", projectID),
			zap.Error(err),
		)
	}
}

func (r *Repo) incCache(result string) {
	if r.cacheTotal != nil {
		r.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (r *Repo) cacheKey(projectID string) string {
	return r.prefix + "displays:" + projectID
}

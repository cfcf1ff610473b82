package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/domain"
	domusage "github.com/kailas-cloud/esre-console/internal/domain/usage"
)

// Period aliases the domain period for callers of this package.
type Period = domusage.Period

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrJudgeBudgetExceeded.
	ActionReject Action = "reject"
)

// Limits caps judge tokens per UTC day and month. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  Action
}

type counter struct {
	tokens   int64
	requests int64
	start    time.Time
}

// Tracker is an in-memory judge token budget with optional persistence.
// Check never touches the store; Record writes behind to it.
type Tracker struct {
	mu      sync.Mutex
	model   string
	prefix  string
	limits  Limits
	daily   counter
	monthly counter
	store   Store
	now     func() time.Time
	logger  *zap.Logger
}

// NewTracker creates a tracker for one model. prefix namespaces store keys.
func NewTracker(model, prefix string, limits Limits, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{model: model, prefix: prefix, limits: limits, now: time.Now, logger: logger}
	t.rollover()
	return t
}

// WithStore attaches a persistence store and loads the current counters.
func (t *Tracker) WithStore(ctx context.Context, s Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s
	t.rollover()
	now := t.now().UTC()
	if v, err := s.Get(ctx, t.key(domusage.PeriodDay, now)); err == nil {
		t.daily.tokens = v
	} else {
		t.logger.Warn("Failed to load daily judge budget", zap.Error(err))
	}
	if v, err := s.Get(ctx, t.key(domusage.PeriodMonth, now)); err == nil {
		t.monthly.tokens = v
	} else {
		t.logger.Warn("Failed to load monthly judge budget", zap.Error(err))
	}
	t.logger.Info("Judge budget loaded",
		zap.String("model", t.model),
		zap.Int64("daily_used", t.daily.tokens),
		zap.Int64("monthly_used", t.monthly.tokens),
	)
	return t
}

// Model returns the model the budget belongs to.
func (t *Tracker) Model() string { return t.model }

// Check reports whether another judge request may run.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	dailyExceeded := t.limits.Daily > 0 && t.daily.tokens >= t.limits.Daily
	monthlyExceeded := t.limits.Monthly > 0 && t.monthly.tokens >= t.limits.Monthly
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}
	if t.limits.Action == ActionReject {
		return domain.ErrJudgeBudgetExceeded
	}
	t.logger.Warn("Judge token budget exceeded",
		zap.String("model", t.model),
		zap.Int64("daily_used", t.daily.tokens),
		zap.Int64("daily_limit", t.limits.Daily),
		zap.Int64("monthly_used", t.monthly.tokens),
		zap.Int64("monthly_limit", t.limits.Monthly),
	)
	return nil
}

// Record registers the tokens of one judge request.
func (t *Tracker) Record(tokens int64) {
	t.mu.Lock()
	t.rollover()
	t.daily.tokens += tokens
	t.daily.requests++
	t.monthly.tokens += tokens
	t.monthly.requests++
	store := t.store
	now := t.now().UTC()
	t.mu.Unlock()

	if store == nil || tokens == 0 {
		return
	}

	// Write-behind; detached from the caller with its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		key := t.key(p, now)
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			t.logger.Warn("Failed to persist judge budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Used returns the tokens and requests of the current period.
func (t *Tracker) Used(p Period) (tokens, requests int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	c := t.daily
	if p == domusage.PeriodMonth {
		c = t.monthly
	}
	return c.tokens, c.requests
}

// Limit returns the token cap of a period, 0 when unlimited.
func (t *Tracker) Limit(p Period) int64 {
	if p == domusage.PeriodMonth {
		return t.limits.Monthly
	}
	return t.limits.Daily
}

// rollover zeroes counters whose period has ended. Callers hold mu.
func (t *Tracker) rollover() {
	now := t.now()
	if day, _ := domusage.PeriodDay.Bounds(now); day.After(t.daily.start) {
		t.daily = counter{start: day}
	}
	if month, _ := domusage.PeriodMonth.Bounds(now); month.After(t.monthly.start) {
		t.monthly = counter{start: month}
	}
}

// key is {prefix}budget:{model}:daily:2006-01-02 or {prefix}budget:{model}:monthly:2006-01.
func (t *Tracker) key(p Period, now time.Time) string {
	if p == domusage.PeriodMonth {
		return fmt.Sprintf("%sbudget:%s:monthly:%s", t.prefix, t.model, now.Format("2006-01"))
	}
	return fmt.Sprintf("%sbudget:%s:daily:%s", t.prefix, t.model, now.Format("2006-01-02"))
}

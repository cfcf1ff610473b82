package usage

import "context"

// Store persists budget counters. IncrBy may be called repeatedly for one key.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Model() string
	Used(period Period) (tokens, requests int64)
	Limit(period Period) int64
}

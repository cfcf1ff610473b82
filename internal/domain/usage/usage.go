// Package usage describes AI judge token consumption against its budget.
package usage

import (
	"time"

	"github.com/kailas-cloud/esre-console/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "day" and "month"; empty means "day".
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	}
	return "", domain.Validationf("unknown period %q", s)
}

// Bounds returns the UTC period containing t as [start, end).
func (p Period) Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	if p == PeriodMonth {
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Budget is the token cap state of one period. A zero Limit means unlimited.
type Budget struct {
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	Exhausted bool      `json:"exhausted"`
	ResetsAt  time.Time `json:"resets_at"`
}

// NewBudget derives the budget state from a limit and the tokens used.
func NewBudget(limit, used int64, resetsAt time.Time) Budget {
	if limit <= 0 {
		return Budget{Remaining: -1, ResetsAt: resetsAt}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Budget{Limit: limit, Remaining: remaining, Exhausted: remaining == 0, ResetsAt: resetsAt}
}

// Report is the judge usage of one period.
type Report struct {
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Model       string    `json:"model"`
	Requests    int64     `json:"requests"`
	Tokens      int64     `json:"tokens"`
	Budget      Budget    `json:"budget"`
}

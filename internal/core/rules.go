package core

import (
	"github.com/shopspring/decimal"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/ledger"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// Velocity limits. They are fixed for the lifetime of the binary.
const (
	MaxLoadAmountPerDay  = 5000
	MaxLoadAmountPerWeek = 20000
	MaxLoadsPerDay       = 3
)

// Rule reasons reported on rejected decisions.
const (
	ReasonDailyAmount  = "daily_amount_exceeded"
	ReasonWeeklyAmount = "weekly_amount_exceeded"
	ReasonDailyCount   = "daily_count_exceeded"
	ReasonDuplicate    = "duplicate"
)

// Rule checks a request against the customer's accepted loads recorded
// before it. Rules never mutate the history.
type Rule interface {
	Name() string
	Allow(h *ledger.History, req types.LoadRequest) bool
}

// AmountRule caps the accepted amount inside a window, request included.
// Reaching the limit exactly is allowed.
type AmountRule struct {
	Reason string
	Limit  decimal.Decimal
	Window WindowFunc
}

func (r AmountRule) Name() string { return r.Reason }

func (r AmountRule) Allow(h *ledger.History, req types.LoadRequest) bool {
	w := r.Window(req.Time)
	total := h.SumBetween(w.Start, w.End).Add(req.Amount)
	return total.LessThanOrEqual(r.Limit)
}

// CountRule caps how many loads may be accepted inside a window.
// A window already holding Limit accepted loads blocks the next one.
type CountRule struct {
	Reason string
	Limit  int
	Window WindowFunc
}

func (r CountRule) Name() string { return r.Reason }

func (r CountRule) Allow(h *ledger.History, req types.LoadRequest) bool {
	w := r.Window(req.Time)
	return h.CountBetween(w.Start, w.End) < r.Limit
}

// DefaultRules returns the daily amount, weekly amount and daily count rules.
func DefaultRules() []Rule {
	return []Rule{
		AmountRule{Reason: ReasonDailyAmount, Limit: decimal.NewFromInt(MaxLoadAmountPerDay), Window: DayWindow},
		AmountRule{Reason: ReasonWeeklyAmount, Limit: decimal.NewFromInt(MaxLoadAmountPerWeek), Window: WeekWindow},
		CountRule{Reason: ReasonDailyCount, Limit: MaxLoadsPerDay, Window: DayWindow},
	}
}

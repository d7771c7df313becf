package core

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/ledger"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// Observer receives every decision right after it is recorded.
type Observer func(types.Decision)

// Evaluator applies duplicate suppression and the velocity rules to load
// requests in the order they are given. Each evaluator owns its ledger.
// An Evaluator is not safe for concurrent use; see Sharded.
type Evaluator struct {
	ledger    *ledger.Ledger
	rules     []Rule
	observers []Observer
	logger    zerolog.Logger
}

type Option func(*Evaluator)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithObserver registers fn for every decision. Observers shared by a
// Sharded evaluator are called from several goroutines.
func WithObserver(fn Observer) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// NewEvaluator constructs an evaluator with an empty ledger.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		ledger: ledger.New(),
		rules:  DefaultRules(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process evaluates requests in order and returns the outcomes of the
// non-ignored ones, preserving their relative order.
func (e *Evaluator) Process(reqs []types.LoadRequest) []types.LoadOutcome {
	out := make([]types.LoadOutcome, 0, len(reqs))
	for _, req := range reqs {
		if o, ok := e.Evaluate(req).Outcome(); ok {
			out = append(out, o)
		}
	}
	return out
}

// Decide is Process without dropping ignored requests.
func (e *Evaluator) Decide(reqs []types.LoadRequest) []types.Decision {
	out := make([]types.Decision, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, e.Evaluate(req))
	}
	return out
}

// Evaluate decides a single request and records the decision.
func (e *Evaluator) Evaluate(req types.LoadRequest) types.Decision {
	h := e.ledger.History(req.CustomerID)

	if h.Seen(req.ID) {
		dec := types.Decision{Request: req, Verdict: types.VerdictIgnored, Reasons: []string{ReasonDuplicate}}
		e.emit(dec)
		return dec
	}

	// every rule sees the pre-request state; collect all failures
	var failed []string
	for _, r := range e.rules {
		if !r.Allow(h, req) {
			failed = append(failed, r.Name())
		}
	}

	dec := types.Decision{Request: req, Reasons: failed}
	if len(failed) == 0 {
		h.Record(req.ID, ledger.Accepted(req))
		dec.Verdict = types.VerdictAccepted
	} else {
		h.Record(req.ID, ledger.Rejected())
		dec.Verdict = types.VerdictRejected
	}
	e.emit(dec)
	return dec
}

// History returns a copy of the customer's recorded decisions.
func (e *Evaluator) History(customerID string) (map[string]ledger.Entry, bool) {
	h, ok := e.ledger.Peek(customerID)
	if !ok {
		return nil, false
	}
	return h.Snapshot(), true
}

// Customers is the number of distinct customers seen.
func (e *Evaluator) Customers() int {
	return e.ledger.Customers()
}

func (e *Evaluator) emit(dec types.Decision) {
	e.logger.Debug().
		Str("customer_id", dec.Request.CustomerID).
		Str("load_id", dec.Request.ID).
		Str("amount", dec.Request.Amount.StringFixed(2)).
		Time("time", dec.Request.Time).
		Str("verdict", dec.Verdict.String()).
		Str("reason", dec.Reason()).
		Msg("load evaluated")
	for _, fn := range e.observers {
		fn(dec)
	}
}

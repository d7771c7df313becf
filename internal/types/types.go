package types

import (
	"strings"
	"time"
)

import (
	"github.com/shopspring/decimal"
)

// LoadRequest is a single attempt to add funds to a customer's account.
// ID is only unique in combination with CustomerID.
type LoadRequest struct {
	ID         string
	CustomerID string
	Amount     decimal.Decimal
	Time       time.Time
}

// LoadOutcome is the externally visible result for a non-ignored request.
type LoadOutcome struct {
	ID         string
	CustomerID string
	Accepted   bool
}

// Verdict classifies a processed request.
type Verdict uint8

const (
	VerdictAccepted Verdict = iota + 1
	VerdictRejected
	VerdictIgnored
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	case VerdictIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Decision is the evaluator's verdict for one request.
// Reasons lists every failed rule for rejected requests, "duplicate" for ignored ones.
type Decision struct {
	Request LoadRequest
	Verdict Verdict
	Reasons []string
}

// Outcome converts the decision into an outcome; ok is false for ignored requests.
func (d Decision) Outcome() (LoadOutcome, bool) {
	if d.Verdict == VerdictIgnored {
		return LoadOutcome{}, false
	}
	return LoadOutcome{
		ID:         d.Request.ID,
		CustomerID: d.Request.CustomerID,
		Accepted:   d.Verdict == VerdictAccepted,
	}, true
}

// Reason joins the decision reasons for logging and audit records.
func (d Decision) Reason() string {
	if len(d.Reasons) == 0 {
		return d.Verdict.String()
	}
	return strings.Join(d.Reasons, ",")
}

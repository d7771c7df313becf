package ledger

import (
	"time"
)

import (
	"github.com/shopspring/decimal"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// EntryKind tags a ledger entry. The zero value is never stored, so a missing
// key is the only way to express "never seen".
type EntryKind uint8

const (
	EntryAccepted EntryKind = iota + 1
	EntryRejected
)

func (k EntryKind) String() string {
	switch k {
	case EntryAccepted:
		return "accepted"
	case EntryRejected:
		return "rejected"
	default:
		return "invalid"
	}
}

// Entry is a recorded decision. Load is only meaningful for EntryAccepted.
type Entry struct {
	Kind EntryKind
	Load types.LoadRequest
}

// Accepted builds an accepted-load entry.
func Accepted(load types.LoadRequest) Entry {
	return Entry{Kind: EntryAccepted, Load: load}
}

// Rejected builds a rejected marker.
func Rejected() Entry {
	return Entry{Kind: EntryRejected}
}

// History is the decision ledger of a single customer.
type History struct {
	entries  map[string]Entry
	accepted []types.LoadRequest // insertion order, accepted entries only
}

func newHistory() *History {
	return &History{entries: make(map[string]Entry)}
}

// Lookup returns the entry recorded for a request id.
func (h *History) Lookup(id string) (Entry, bool) {
	e, ok := h.entries[id]
	return e, ok
}

// Seen reports whether any decision was recorded for id.
func (h *History) Seen(id string) bool {
	_, ok := h.entries[id]
	return ok
}

// Record stores a decision. Entries are write-once: recording an id twice
// keeps the first entry and reports false.
func (h *History) Record(id string, e Entry) bool {
	if _, ok := h.entries[id]; ok {
		return false
	}
	h.entries[id] = e
	if e.Kind == EntryAccepted {
		h.accepted = append(h.accepted, e.Load)
	}
	return true
}

// SumBetween totals accepted amounts with start <= time < end.
func (h *History) SumBetween(start, end time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range h.accepted {
		if within(l.Time, start, end) {
			sum = sum.Add(l.Amount)
		}
	}
	return sum
}

// CountBetween counts accepted loads with start <= time < end.
func (h *History) CountBetween(start, end time.Time) int {
	n := 0
	for _, l := range h.accepted {
		if within(l.Time, start, end) {
			n++
		}
	}
	return n
}

// Len is the number of recorded decisions, accepted and rejected.
func (h *History) Len() int {
	return len(h.entries)
}

// AcceptedLoads returns a copy of the accepted loads in recording order.
func (h *History) AcceptedLoads() []types.LoadRequest {
	out := make([]types.LoadRequest, len(h.accepted))
	copy(out, h.accepted)
	return out
}

// Snapshot copies every entry keyed by request id.
func (h *History) Snapshot() map[string]Entry {
	out := make(map[string]Entry, len(h.entries))
	for k, v := range h.entries {
		out[k] = v
	}
	return out
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Ledger maps customer ids to their history. Histories are created on first
// access and never removed. A Ledger is not safe for concurrent use.
type Ledger struct {
	customers map[string]*History
}

func New() *Ledger {
	return &Ledger{customers: make(map[string]*History)}
}

// History returns the customer's history, creating an empty one if needed.
func (l *Ledger) History(customerID string) *History {
	h, ok := l.customers[customerID]
	if !ok {
		h = newHistory()
		l.customers[customerID] = h
	}
	return h
}

// Peek returns the customer's history without creating it.
func (l *Ledger) Peek(customerID string) (*History, bool) {
	h, ok := l.customers[customerID]
	return h, ok
}

// Customers is the number of customers seen so far.
func (l *Ledger) Customers() int {
	return len(l.customers)
}

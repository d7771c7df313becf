package ledger

import (
	"testing"
	"time"
)

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

var base = time.Date(2020, 8, 28, 14, 18, 47, 0, time.UTC)

func load(id string, amount string, at time.Time) types.LoadRequest {
	return types.LoadRequest{ID: id, CustomerID: "600", Amount: decimal.RequireFromString(amount), Time: at}
}

func TestLedgerCreatesHistoryLazily(t *testing.T) {
	l := New()
	_, ok := l.Peek("600")
	assert.False(t, ok)

	h := l.History("600")
	require.NotNil(t, h)
	assert.Same(t, h, l.History("600"))
	assert.Equal(t, 1, l.Customers())
}

func TestHistoryRecordIsWriteOnce(t *testing.T) {
	h := New().History("600")

	assert.True(t, h.Record("101", Rejected()))
	assert.False(t, h.Record("101", Accepted(load("101", "10", base))))

	e, ok := h.Lookup("101")
	require.True(t, ok)
	assert.Equal(t, EntryRejected, e.Kind)
	assert.Empty(t, h.AcceptedLoads())
}

func TestHistoryAggregatesAcceptedOnly(t *testing.T) {
	h := New().History("600")
	h.Record("1", Accepted(load("1", "100.10", base)))
	h.Record("2", Rejected())
	h.Record("3", Accepted(load("3", "0.90", base.Add(time.Hour))))

	start := time.Date(2020, 8, 28, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	assert.True(t, decimal.RequireFromString("101").Equal(h.SumBetween(start, end)))
	assert.Equal(t, 2, h.CountBetween(start, end))
	assert.Equal(t, 3, h.Len())
	assert.True(t, h.Seen("2"))
	assert.False(t, h.Seen("4"))
}

func TestHistoryWindowIsHalfOpen(t *testing.T) {
	h := New().History("600")
	start := time.Date(2020, 8, 28, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	h.Record("at-start", Accepted(load("at-start", "1", start)))
	h.Record("at-end", Accepted(load("at-end", "2", end)))

	assert.Equal(t, 1, h.CountBetween(start, end))
	assert.True(t, decimal.NewFromInt(1).Equal(h.SumBetween(start, end)))
}

func TestSnapshotIsACopy(t *testing.T) {
	h := New().History("600")
	h.Record("1", Rejected())

	snap := h.Snapshot()
	delete(snap, "1")
	assert.True(t, h.Seen("1"))
}

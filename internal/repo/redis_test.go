package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/config"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	args := m.Called(a)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func (m *mockClient) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(key, values)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *mockClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockClient) Close() error {
	return m.Called().Error(0)
}

func TestNormalizeAddrs(t *testing.T) {
	addrs := normalizeAddrs(config.RedisCfg{Addr: "127.0.0.1:6379, 127.0.0.2:6379,"})
	assert.Equal(t, []string{"127.0.0.1:6379", "127.0.0.2:6379"}, addrs)
	assert.Empty(t, normalizeAddrs(config.RedisCfg{}))
}

func TestKeyTemplates(t *testing.T) {
	r := &RedisRepo{Prefix: "loads"}
	assert.Equal(t, "loads:audit:{600}", r.KeyAudit("600"))
	assert.Equal(t, "loads:batch:b1", r.KeyBatch("b1"))
}

func TestNewRedisWithoutAddress(t *testing.T) {
	_, err := NewRedis(config.RedisCfg{})
	assert.Error(t, err)
}

func decision(id string, v types.Verdict, reasons ...string) types.Decision {
	return types.Decision{
		Request: types.LoadRequest{
			ID:         id,
			CustomerID: "600",
			Amount:     decimal.RequireFromString("12.50"),
			Time:       time.Date(2020, 8, 28, 14, 18, 47, 0, time.UTC),
		},
		Verdict: v,
		Reasons: reasons,
	}
}

func TestRecordBatch(t *testing.T) {
	cli := &mockClient{}
	cli.On("XAdd", mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Stream == "loads:audit:{600}" && a.MaxLen == 1000 && a.Approx
	})).Return("1-0", nil).Times(3)
	cli.On("HSet", "loads:batch:b1", mock.Anything).Return(5, nil).Once()

	r := New(cli, "loads", WithLogger(zerolog.Nop()), WithMaxLen(1000))
	err := r.RecordBatch(context.Background(), "b1", []types.Decision{
		decision("1", types.VerdictAccepted),
		decision("2", types.VerdictRejected, "daily_amount_exceeded"),
		decision("1", types.VerdictIgnored, "duplicate"),
	})
	require.NoError(t, err)
	cli.AssertExpectations(t)

	first := cli.Calls[0].Arguments.Get(0).(*redis.XAddArgs)
	values := first.Values.(map[string]interface{})
	assert.Equal(t, "12.5", values["amount"])
	assert.Equal(t, "2020-08-28T14:18:47Z", values["time"])
	assert.Equal(t, "accepted", values["verdict"])

	summary := cli.Calls[3].Arguments.Get(1).([]interface{})
	assert.Equal(t, []interface{}{"total", 3, "accepted", 1, "rejected", 1, "ignored", 1}, summary[:8])
}

func TestRecordBatchStopsOnError(t *testing.T) {
	cli := &mockClient{}
	cli.On("XAdd", mock.Anything).Return("", errors.New("boom")).Once()

	r := New(cli, "loads", WithLogger(zerolog.Nop()))
	err := r.RecordBatch(context.Background(), "b1", []types.Decision{
		decision("1", types.VerdictAccepted),
		decision("2", types.VerdictAccepted),
	})
	assert.ErrorContains(t, err, "boom")
	cli.AssertNotCalled(t, "HSet", mock.Anything, mock.Anything)
}

func TestNewPanicsOnNilClient(t *testing.T) {
	assert.Panics(t, func() { New(nil, "loads") })
}

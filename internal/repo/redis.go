package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/config"
	"github.com/simplyvikram/koho-account-load-up/internal/ingest"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

// Key templates
const (
	keyAuditTmpl = "%s:audit:{%s}" // one stream per customer
	keyBatchTmpl = "%s:batch:%s"   // summary hash per batch
)

// Client is the subset of go-redis used by the repo.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisRepo mirrors evaluation decisions into Redis streams for auditing.
// It is write-only; the evaluator never reads its ledger back from Redis.
type RedisRepo struct {
	Prefix         string
	Cli            Client
	maxLen         int64
	logger         zerolog.Logger
	defaultTimeout time.Duration
}

type Option func(*RedisRepo)

func WithDefaultTimeout(d time.Duration) Option {
	return func(r *RedisRepo) { r.defaultTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *RedisRepo) { r.logger = l }
}

func WithMaxLen(n int64) Option {
	return func(r *RedisRepo) { r.maxLen = n }
}

// New wraps an existing client.
func New(cli Client, prefix string, opts ...Option) *RedisRepo {
	if cli == nil {
		panic("repo: nil redis client")
	}
	r := &RedisRepo{
		Prefix:         prefix,
		Cli:            cli,
		logger:         log.Logger,
		defaultTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedis dials Redis (single node or cluster, depending on the number of
// addresses) and verifies the connection.
func NewRedis(cfg config.RedisCfg, opts ...Option) (*RedisRepo, error) {
	addrs := normalizeAddrs(cfg)
	if len(addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}

	cli := redis.NewUniversalClient(buildOptions(cfg, addrs))
	r := New(cli, cfg.Prefix, append([]Option{WithMaxLen(cfg.StreamMaxLen)}, opts...)...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		r.logger.Error().Err(err).Strs("addrs", addrs).Msg("redis ping failed")
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	return r, nil
}

func (r *RedisRepo) withTimeout(ctx context.Context, opTimeout time.Duration) (context.Context, context.CancelFunc) {
	if opTimeout == 0 {
		opTimeout = r.defaultTimeout
	}
	return context.WithTimeout(ctx, opTimeout)
}

func (r *RedisRepo) KeyAudit(customerID string) string {
	return fmt.Sprintf(keyAuditTmpl, r.Prefix, customerID)
}

func (r *RedisRepo) KeyBatch(batchID string) string {
	return fmt.Sprintf(keyBatchTmpl, r.Prefix, batchID)
}

// RecordBatch appends one stream entry per decision and writes a summary
// hash for the batch. Ignored requests are recorded too.
func (r *RedisRepo) RecordBatch(parentCtx context.Context, batchID string, decisions []types.Decision) error {
	counts := map[types.Verdict]int{}
	for _, d := range decisions {
		counts[d.Verdict]++
		if err := r.appendDecision(parentCtx, batchID, d); err != nil {
			return err
		}
	}

	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	err := r.Cli.HSet(ctx, r.KeyBatch(batchID),
		"total", len(decisions),
		"accepted", counts[types.VerdictAccepted],
		"rejected", counts[types.VerdictRejected],
		"ignored", counts[types.VerdictIgnored],
		"recorded_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("write batch summary %s failed: %w", batchID, err)
	}
	r.logger.Debug().Str("batch_id", batchID).Int("decisions", len(decisions)).Msg("audit batch recorded")
	return nil
}

func (r *RedisRepo) appendDecision(parentCtx context.Context, batchID string, d types.Decision) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: r.KeyAudit(d.Request.CustomerID),
		Values: map[string]interface{}{
			"batch_id":    batchID,
			"load_id":     d.Request.ID,
			"customer_id": d.Request.CustomerID,
			"amount":      d.Request.Amount.String(),
			"time":        d.Request.Time.UTC().Format(ingest.TimeLayout),
			"verdict":     d.Verdict.String(),
			"reason":      d.Reason(),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.Cli.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("audit append for customer %s failed: %w", d.Request.CustomerID, err)
	}
	return nil
}

func (r *RedisRepo) Close() error {
	return r.Cli.Close()
}

func normalizeAddrs(cfg config.RedisCfg) []string {
	var out []string
	for _, p := range strings.Split(cfg.Addr, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func buildOptions(cfg config.RedisCfg, addrs []string) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     max(cfg.PoolSize, 10),
		DialTimeout:  durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:  durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout: durationOrDefault(cfg.WriteTimeoutMs, 800),
	}
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}

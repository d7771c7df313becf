package core

import (
	"context"
	"sync"
)

import (
	"golang.org/x/sync/errgroup"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/ledger"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
	"github.com/simplyvikram/koho-account-load-up/internal/util"
)

type shard struct {
	mu   sync.Mutex
	eval *Evaluator
}

// Sharded partitions customers across independent evaluators so different
// customers can be decided in parallel. A customer always maps to the same
// shard, and a shard handles one batch at a time, so each customer's
// requests are still evaluated strictly in input order.
type Sharded struct {
	shards []*shard
}

// NewSharded builds n shards, each with its own ledger. opts apply to every shard.
func NewSharded(n int, opts ...Option) *Sharded {
	if n < 1 {
		n = 1
	}
	s := &Sharded{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{eval: NewEvaluator(opts...)}
	}
	return s
}

// Shards is the number of partitions.
func (s *Sharded) Shards() int {
	return len(s.shards)
}

// Decide evaluates reqs and returns one decision per request in input order.
// If ctx is cancelled mid-batch the decisions already recorded stay recorded
// and ctx.Err() is returned.
func (s *Sharded) Decide(ctx context.Context, reqs []types.LoadRequest) ([]types.Decision, error) {
	buckets := make([][]int, len(s.shards))
	for i, req := range reqs {
		idx := util.ShardIndex(req.CustomerID, len(s.shards))
		buckets[idx] = append(buckets[idx], i)
	}

	out := make([]types.Decision, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, positions := range buckets {
		if len(positions) == 0 {
			continue
		}
		sh := s.shards[i]
		positions := positions
		g.Go(func() error {
			sh.mu.Lock()
			defer sh.mu.Unlock()
			for _, p := range positions {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[p] = sh.eval.Evaluate(reqs[p])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Process is Decide with ignored requests dropped.
func (s *Sharded) Process(ctx context.Context, reqs []types.LoadRequest) ([]types.LoadOutcome, error) {
	decisions, err := s.Decide(ctx, reqs)
	if err != nil {
		return nil, err
	}
	out := make([]types.LoadOutcome, 0, len(decisions))
	for _, d := range decisions {
		if o, ok := d.Outcome(); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// History returns a copy of the customer's recorded decisions.
func (s *Sharded) History(customerID string) (map[string]ledger.Entry, bool) {
	sh := s.shards[util.ShardIndex(customerID, len(s.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.eval.History(customerID)
}

// Customers is the number of distinct customers seen across all shards.
func (s *Sharded) Customers() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += sh.eval.Customers()
		sh.mu.Unlock()
	}
	return n
}

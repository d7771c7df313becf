package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/api"
	"github.com/simplyvikram/koho-account-load-up/internal/config"
	"github.com/simplyvikram/koho-account-load-up/internal/core"
	"github.com/simplyvikram/koho-account-load-up/internal/ingest"
	"github.com/simplyvikram/koho-account-load-up/internal/metrics"
	"github.com/simplyvikram/koho-account-load-up/internal/repo"
)

func processAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("shards") {
		cfg.Engine.Shards = c.Int("shards")
	}
	if c.Bool("skip-malformed") {
		cfg.Features.SkipMalformed = true
	}

	in, closeIn, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	audit, closeAudit, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	metrics.Register(prometheus.DefaultRegisterer)
	path := c.String("output")
	open := func() (io.Writer, func(), error) { return openOutput(path) }
	return processStream(c.Context, cfg, in, open, audit, log.Logger)
}

// outputOpener yields the outcome destination and its close func.
type outputOpener func() (io.Writer, func(), error)

// processStream evaluates every request in `in` and writes the outcomes of
// the non-ignored ones in input order. The output is only opened once the
// whole input has been read, so bad input never clobbers a previous result.
func processStream(ctx context.Context, cfg *config.Config, in io.Reader, open outputOpener, audit api.AuditSink, logger zerolog.Logger) error {
	reqs, err := ingest.ReadAll(in, cfg.Features.SkipMalformed, logger)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	eval := core.NewSharded(cfg.Engine.Shards,
		core.WithLogger(logger),
		core.WithObserver(metrics.ObserveDecision),
	)
	// no partial batches: once started, every recorded decision is written out
	ctx = context.WithoutCancel(ctx)
	decisions, err := eval.Decide(ctx, reqs)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	metrics.ObserveBatch(len(reqs))

	batchID := xid.New().String()
	if audit != nil {
		if err := audit.RecordBatch(ctx, batchID, decisions); err != nil {
			logger.Error().Err(err).Str("batch_id", batchID).Msg("audit write failed")
		}
	}

	out, closeOut, err := open()
	if err != nil {
		return err
	}
	defer closeOut()

	w := ingest.NewWriter(out)
	written := 0
	for _, d := range decisions {
		o, ok := d.Outcome()
		if !ok {
			continue
		}
		if err := w.Write(o); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		written++
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info().
		Str("batch_id", batchID).
		Int("requests", len(reqs)).
		Int("outcomes", written).
		Int("customers", eval.Customers()).
		Msg("input processed")
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Error().Err(err).Str("path", path).Msg("close output")
		}
	}, nil
}

// openAudit connects the Redis audit stream when features.audit enables it.
// A nil sink means auditing is off.
func openAudit(cfg *config.Config) (api.AuditSink, func(), error) {
	if !cfg.Features.AuditEnabled() {
		return nil, func() {}, nil
	}
	rdb, err := repo.NewRedis(cfg.Redis, repo.WithLogger(log.Logger))
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit redis: %w", err)
	}
	return rdb, func() { _ = rdb.Close() }, nil
}

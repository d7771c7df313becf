package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/config"
	"github.com/simplyvikram/koho-account-load-up/internal/identity"
	"github.com/simplyvikram/koho-account-load-up/internal/ingest"
	"github.com/simplyvikram/koho-account-load-up/internal/ledger"
	"github.com/simplyvikram/koho-account-load-up/internal/metrics"
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

const ndjsonContentType = "application/x-ndjson"

// Evaluator is the decision engine behind the API. It must be safe for
// concurrent use (core.Sharded is).
type Evaluator interface {
	Decide(ctx context.Context, reqs []types.LoadRequest) ([]types.Decision, error)
	History(customerID string) (map[string]ledger.Entry, bool)
}

// AuditSink receives every decided batch, ignored requests included.
type AuditSink interface {
	RecordBatch(ctx context.Context, batchID string, decisions []types.Decision) error
}

type Server struct {
	cfg      config.ServerCfg
	eval     Evaluator
	audit    AuditSink
	resolver *identity.Resolver
	limiter  *ClientLimiter
	guard    *FlowGuard
	logger   zerolog.Logger
	srv      *http.Server
}

type ServerOption func(*Server)

func WithAudit(a AuditSink) ServerOption {
	return func(s *Server) { s.audit = a }
}

func WithClientLimiter(l *ClientLimiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

func WithFlowGuard(g *FlowGuard) ServerOption {
	return func(s *Server) { s.guard = g }
}

func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

func NewServer(cfg config.ServerCfg, eval Evaluator, opts ...ServerOption) *Server {
	if eval == nil {
		panic("api: nil evaluator")
	}
	s := &Server{
		cfg:      cfg,
		eval:     eval,
		resolver: identity.NewResolver(cfg.TrustForwarded),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: secondsOr(cfg.ReadHeaderTimeout, 5),
	}
	return s
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Handle("/v1/loads", s.throttle(http.HandlerFunc(s.loadsHandler))).Methods(http.MethodPost)
	r.HandleFunc("/v1/customers/{id}/history", s.historyHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return r
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ---------------- Middleware ----------------

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			caller, err := s.resolver.Resolve(r)
			if err != nil {
				errResp(w, http.StatusBadRequest, err.Error())
				return
			}
			if !s.limiter.Allow(caller.Key()) {
				metrics.Throttled("client")
				retryLater(w, "rate limit exceeded for "+caller.Key())
				return
			}
		}
		if s.guard != nil {
			exit, ok := s.guard.Enter()
			if !ok {
				metrics.Throttled("global")
				retryLater(w, "service is busy")
				return
			}
			defer exit()
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------- Handlers ----------------

func (s *Server) loadsHandler(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	reqs, err := decodeLoads(r.Body)
	if err != nil {
		var pe *ingest.ParseError
		if errors.As(err, &pe) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: pe.Err.Error(), Line: pe.Line})
			return
		}
		errResp(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// a batch runs to completion once evaluation starts: recorded decisions
	// must reach the caller and the audit stream even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	decisions, err := s.eval.Decide(ctx, reqs)
	if err != nil {
		errResp(w, http.StatusServiceUnavailable, "evaluation interrupted: "+err.Error())
		return
	}
	metrics.ObserveBatch(len(reqs))

	batchID := xid.New().String()
	if s.audit != nil {
		// decisions are already recorded in memory; an audit failure must not hide them
		if err := s.audit.RecordBatch(ctx, batchID, decisions); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batchID).Msg("audit write failed")
		}
	}

	resp := LoadsResponse{BatchID: batchID, Outcomes: make([]ingest.OutcomeRecord, 0, len(decisions))}
	outcomes := make([]types.LoadOutcome, 0, len(decisions))
	for _, d := range decisions {
		o, ok := d.Outcome()
		if !ok {
			resp.Ignored++
			continue
		}
		outcomes = append(outcomes, o)
		resp.Outcomes = append(resp.Outcomes, ingest.NewOutcomeRecord(o))
	}
	s.logger.Info().
		Str("batch_id", batchID).
		Int("requests", len(reqs)).
		Int("outcomes", len(outcomes)).
		Int("ignored", resp.Ignored).
		Msg("batch processed")

	w.Header().Set("X-Batch-Id", batchID)
	if strings.Contains(r.Header.Get("Accept"), ndjsonContentType) {
		w.Header().Set("Content-Type", ndjsonContentType)
		w.WriteHeader(http.StatusOK)
		if err := ingest.WriteAll(w, outcomes); err != nil {
			s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("write response failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	entries, ok := s.eval.History(customerID)
	if !ok {
		errResp(w, http.StatusNotFound, "customer not found: "+customerID)
		return
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resp := HistoryResponse{CustomerID: customerID, Entries: make([]HistoryEntry, 0, len(ids))}
	for _, id := range ids {
		e := entries[id]
		he := HistoryEntry{ID: id, Status: e.Kind.String()}
		if e.Kind == ledger.EntryAccepted {
			he.Amount = e.Load.Amount.StringFixed(2)
			he.Time = e.Load.Time.UTC().Format(ingest.TimeLayout)
		}
		resp.Entries = append(resp.Entries, he)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeLoads accepts either a JSON array of load objects or line-delimited JSON.
func decodeLoads(body io.Reader) ([]types.LoadRequest, error) {
	br := bufio.NewReader(body)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}

	if first != '[' {
		return ingest.ReadAll(br, false, zerolog.Nop())
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(br).Decode(&raw); err != nil {
		return nil, err
	}
	reqs := make([]types.LoadRequest, 0, len(raw))
	for i, item := range raw {
		req, err := ingest.DecodeLoad(item)
		if err != nil {
			return nil, &ingest.ParseError{Line: i + 1, Err: err}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errResp(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: msg})
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

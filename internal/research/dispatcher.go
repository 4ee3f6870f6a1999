// Package research orchestrates a research request across the router,
// ledger and demo paths and assembles the structured answer.
//
// Dispatch never fails once the query is valid: any failure on a real
// backend degrades to the canned demo answer, marked unverified.
package research

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/infra/metrics"
)

// Config holds the dispatcher's resolved settings.
type Config struct {
	SessionID       uint64
	Model           string
	DefaultMode     domain.Mode
	FallbackSource  string
	VerificationURL string        // dashboard base, e.g. https://host/session
	ResultTimeout   time.Duration // web3 wait for a miner result
	DemoDelay       time.Duration // artificial latency on the demo path
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SessionID:       124,
		Model:           "meta-llama-3.1-8b-instruct",
		DefaultMode:     domain.ModeAuto,
		FallbackSource:  "https://docs.cortensor.network",
		VerificationURL: "https://dashboard-testnet0.cortensor.network/session",
		ResultTimeout:   60 * time.Second,
		DemoDelay:       1500 * time.Millisecond,
	}
}

// Request is one research question.
type Request struct {
	Query string
	URL   string
	Mode  domain.Mode // empty means the configured default
}

// ValidationError rejects a request before any backend is touched.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }

// Unwrap exposes both the domain class and the specific cause.
func (e *ValidationError) Unwrap() []error { return []error{domain.ErrValidation, e.Err} }

// Dispatcher routes research requests. Wire it once at startup with the
// Set* methods, then share it across requests.
type Dispatcher struct {
	cfg     Config
	router  domain.Completer
	ledger  domain.TaskExecutor
	signer  *ecdsa.PrivateKey
	cache   domain.ResultCache
	history domain.HistoryStore
	log     *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher with only the demo path available.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = domain.ModeAuto
	}
	return &Dispatcher{
		cfg: cfg,
		log: logger.With("component", "dispatch"),
		now: time.Now,
	}
}

// SetRouter enables the router path.
func (d *Dispatcher) SetRouter(c domain.Completer) { d.router = c }

// SetLedger enables session probes, and the web3 path when key is non-nil.
func (d *Dispatcher) SetLedger(l domain.TaskExecutor, key *ecdsa.PrivateKey) {
	d.ledger = l
	d.signer = key
}

// SetCache enables result caching for verified answers.
func (d *Dispatcher) SetCache(c domain.ResultCache) { d.cache = c }

// SetHistory enables recording of every dispatched result.
func (d *Dispatcher) SetHistory(h domain.HistoryStore) { d.history = h }

// Config returns the dispatcher settings.
func (d *Dispatcher) Config() Config { return d.cfg }

// RouterConfigured reports whether the router path can be used.
func (d *Dispatcher) RouterConfigured() bool { return d.router != nil }

// Web3Configured reports whether tasks can be submitted on-chain.
func (d *Dispatcher) Web3Configured() bool { return d.ledger != nil && d.signer != nil }

// Dispatch answers req. The only error it returns is a *ValidationError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (domain.ResearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.ResearchResult{}, &ValidationError{Field: "query", Err: domain.ErrEmptyQuery}
	}
	url := strings.TrimSpace(req.URL)

	requested := req.Mode
	if requested == "" {
		requested = d.cfg.DefaultMode
	}
	mode := Resolve(requested, d.RouterConfigured(), d.Web3Configured())
	start := d.now()
	dispatchID := uuid.NewString()
	log := d.log.With("dispatch_id", dispatchID, "requested", requested, "mode", mode)

	key := CacheKey(mode, url, query)
	if res, ok := d.cached(ctx, log, mode, key); ok {
		res.DispatchID = dispatchID
		res.Query = query // the key folds case
		res.RequestedMode = requested
		res.Timestamp = d.now()
		d.record(ctx, log, res)
		return res, nil
	}

	out := d.run(ctx, log, mode, query, BuildPrompt(query, url))
	res := d.compose(dispatchID, query, url, requested, out)

	metrics.DispatchTotal.WithLabelValues(string(requested), string(out.Path), out.Kind.String()).Inc()
	metrics.DispatchLatency.WithLabelValues(string(out.Attempted)).Observe(d.now().Sub(start).Seconds())

	if out.Kind == OutcomeSuccess && d.cache != nil {
		if err := d.cache.Set(ctx, key, res); err != nil {
			log.Warn("cache store failed", "error", err)
		}
	}
	d.record(ctx, log, res)

	log.Info("research dispatched",
		"outcome", out.Kind.String(),
		"task_id", res.TaskID,
		"duration", d.now().Sub(start))
	return res, nil
}

// run executes the resolved path and converts every failure into a
// degraded outcome.
func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, mode domain.Mode, query, prompt string) (out Outcome) {
	if mode == domain.ModeDemo {
		d.pause(ctx)
		return Demo(SelectDemo(query))
	}

	defer func() {
		if r := recover(); r != nil {
			out = d.degrade(log, mode, query, fmt.Errorf("panic in %s path: %v", mode, r))
		}
	}()

	var err error
	switch mode {
	case domain.ModeRouter:
		out, err = d.viaRouter(ctx, prompt)
	case domain.ModeWeb3:
		out, err = d.viaLedger(ctx, prompt)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}
	if err != nil {
		return d.degrade(log, mode, query, err)
	}
	return out
}

func (d *Dispatcher) viaRouter(ctx context.Context, prompt string) (Outcome, error) {
	comp, err := d.router.Complete(ctx, d.cfg.SessionID, prompt)
	if err != nil {
		return Outcome{}, err
	}
	taskID := comp.TaskID
	if taskID == "" {
		taskID = "0"
	}
	return Success(domain.ModeRouter, Parse(comp.RawOutput), taskID, ""), nil
}

func (d *Dispatcher) viaLedger(ctx context.Context, prompt string) (Outcome, error) {
	exec := d.ledger.ExecuteTask(ctx, d.cfg.SessionID, prompt, d.signer, d.cfg.ResultTimeout)
	if !exec.Success || exec.Result == nil {
		if exec.TxHash == "" {
			return Outcome{}, domain.ErrSubmission
		}
		return Outcome{}, fmt.Errorf("%w: task %d (tx %s)", domain.ErrResultTimeout, exec.TaskID, exec.TxHash)
	}
	taskID := strconv.FormatUint(exec.TaskID, 10)
	return Success(domain.ModeWeb3, Parse(*exec.Result), taskID, exec.TxHash), nil
}

func (d *Dispatcher) degrade(log *slog.Logger, attempted domain.Mode, query string, reason error) Outcome {
	log.Warn("backend failed, falling back to demo", "attempted", attempted, "error", reason)
	return Degraded(attempted, reason, SelectDemo(query))
}

// pause blocks for the demo delay or until ctx ends.
func (d *Dispatcher) pause(ctx context.Context) {
	if d.cfg.DemoDelay <= 0 {
		return
	}
	t := time.NewTimer(d.cfg.DemoDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (d *Dispatcher) compose(dispatchID, query, url string, requested domain.Mode, out Outcome) domain.ResearchResult {
	sources := []string{d.cfg.FallbackSource}
	if url != "" {
		sources = []string{url}
	}

	sessionID := strconv.FormatUint(d.cfg.SessionID, 10)
	taskID := out.TaskID
	if taskID == "" {
		taskID = "0"
	}

	res := domain.ResearchResult{
		DispatchID:    dispatchID,
		Query:         query,
		Summary:       out.Data.Summary,
		BulletPoints:  out.Data.BulletPoints,
		Sources:       sources,
		SessionID:     sessionID,
		TaskID:        taskID,
		TxHash:        out.TxHash,
		Verified:      out.Verified(),
		IsDemo:        !out.Verified(),
		Method:        out.Path,
		RequestedMode: requested,
		Model:         d.cfg.Model,
		Timestamp:     d.now(),
	}
	if res.BulletPoints == nil {
		res.BulletPoints = []string{}
	}
	if out.Kind == OutcomeDegraded && out.Reason != nil {
		res.FallbackReason = out.Reason.Error()
	}
	if res.Verified {
		res.VerificationURL = VerificationURL(d.cfg.VerificationURL, sessionID, taskID)
	}
	return res
}

func (d *Dispatcher) cached(ctx context.Context, log *slog.Logger, mode domain.Mode, key string) (domain.ResearchResult, bool) {
	if d.cache == nil || mode == domain.ModeDemo {
		return domain.ResearchResult{}, false
	}
	res, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		res.Cached = true
		return res, true
	case errors.Is(err, domain.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn("cache lookup failed", "error", err)
	}
	return domain.ResearchResult{}, false
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, res domain.ResearchResult) {
	if d.history == nil {
		return
	}
	if err := d.history.RecordResult(ctx, res); err != nil {
		log.Warn("history record failed", "error", err)
	}
}

// CacheKey fingerprints a request for the result cache.
func CacheKey(mode domain.Mode, url, query string) string {
	sum := sha256.Sum256([]byte(string(mode) + "\x00" + url + "\x00" + strings.ToLower(query)))
	return hex.EncodeToString(sum[:])
}

// VerificationURL links a session (and task, when known) on the dashboard.
func VerificationURL(base, sessionID, taskID string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	if taskID != "" && taskID != "0" {
		return fmt.Sprintf("%s/%s/%s", base, sessionID, taskID)
	}
	return fmt.Sprintf("%s/%s", base, sessionID)
}

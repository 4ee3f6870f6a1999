// Package ledger is the client side of the on-chain session protocol:
// session lookup, task submission, and polling for miner results.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/infra/metrics"
)

// Default deployment (Arbitrum Sepolia, testnet0).
const (
	DefaultRPCURL         = "https://sepolia-rollup.arbitrum.io/rpc"
	DefaultSessionAddress = "0x2e9cC638CF07efdeC82b4beF932Ca4a8Dcd55015"
	DefaultQueueAddress   = "0x9a90B957E106894d598bF3ad912F3b604C085235"
)

// Config configures the ledger client.
type Config struct {
	RPCURL           string
	SessionAddress   common.Address
	QueueAddress     common.Address
	ChainID          int64         // 0 = ask the node
	PollInterval     time.Duration // between getTaskResults calls
	InclusionTimeout time.Duration // max wait for a submit tx to be mined
}

// DefaultConfig returns the testnet deployment with 3s polling.
func DefaultConfig() Config {
	return Config{
		RPCURL:           DefaultRPCURL,
		SessionAddress:   common.HexToAddress(DefaultSessionAddress),
		QueueAddress:     common.HexToAddress(DefaultQueueAddress),
		PollInterval:     3 * time.Second,
		InclusionTimeout: 60 * time.Second,
	}
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// SessionLookupError reports a failed getSession call.
type SessionLookupError struct {
	SessionID uint64
	Err       error
}

func (e *SessionLookupError) Error() string {
	return fmt.Sprintf("get session %d: %v", e.SessionID, e.Err)
}

func (e *SessionLookupError) Unwrap() []error { return []error{domain.ErrSessionLookup, e.Err} }

// SubmissionError reports a failed sign, broadcast or inclusion.
type SubmissionError struct {
	SessionID uint64
	TxHash    string // set when the tx was mined but reverted
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("submit task to session %d (tx %s): %v", e.SessionID, e.TxHash, e.Err)
	}
	return fmt.Sprintf("submit task to session %d: %v", e.SessionID, e.Err)
}

func (e *SubmissionError) Unwrap() []error { return []error{domain.ErrSubmission, e.Err} }

// ─── Result policy ──────────────────────────────────────────────────────────

// ResultPolicy picks the accepted answer among the results recorded for a
// task. It returns false to keep polling.
type ResultPolicy func(results []domain.TaskResult) (string, bool)

// FirstResult accepts the first recorded result, by list order. It does
// no cross-miner validation.
func FirstResult(results []domain.TaskResult) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	return results[0].Result, true
}

// ─── Client ─────────────────────────────────────────────────────────────────

// Client implements the session protocol over a Backend.
type Client struct {
	backend Backend
	cfg     Config
	policy  ResultPolicy
	log     *slog.Logger
}

// NewClient creates a client over backend.
func NewClient(backend Backend, cfg Config, logger *slog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		policy:  FirstResult,
		log:     logger.With("component", "ledger"),
	}
}

// SetResultPolicy replaces the result acceptance policy.
func (c *Client) SetResultPolicy(p ResultPolicy) {
	if p != nil {
		c.policy = p
	}
}

// GetSession reads a session's metadata.
func (c *Client) GetSession(ctx context.Context, sessionID uint64) (domain.Session, error) {
	s, err := c.backend.Session(ctx, sessionID)
	if err != nil {
		return domain.Session{}, &SessionLookupError{SessionID: sessionID, Err: err}
	}
	return s, nil
}

// ActiveSession reads a session and fails with domain.ErrSessionInactive
// when it exists but is not active.
func (c *Client) ActiveSession(ctx context.Context, sessionID uint64) (domain.Session, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !s.Active {
		return s, fmt.Errorf("session %d: %w", sessionID, domain.ErrSessionInactive)
	}
	return s, nil
}

// VerifySession reports whether a session exists and is active. It never
// fails; problems are described in the Error field.
func (c *Client) VerifySession(ctx context.Context, sessionID uint64) domain.SessionCheck {
	check := domain.SessionCheck{ID: sessionID}
	s, err := c.ActiveSession(ctx, sessionID)
	var lookup *SessionLookupError
	switch {
	case errors.Is(err, domain.ErrSessionInactive):
		check.Error = "Session is not active"
		return check
	case errors.As(err, &lookup):
		check.Error = fmt.Sprintf("Failed to get session: %v", lookup.Err)
		return check
	case err != nil:
		check.Error = fmt.Sprintf("Failed to get session: %v", err)
		return check
	}
	model := s.ModelIdentifier
	check.Valid = true
	check.Name = s.Name
	check.Model = &model
	return check
}

// SessionsByOwner lists the sessions created by owner.
func (c *Client) SessionsByOwner(ctx context.Context, owner common.Address) ([]domain.Session, error) {
	sessions, err := c.backend.SessionsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("sessions of %s: %w", owner.Hex(), err)
	}
	return sessions, nil
}

// EphemeralNodes lists the node addresses currently reserved by a session.
func (c *Client) EphemeralNodes(ctx context.Context, sessionID uint64) ([]string, error) {
	nodes, err := c.backend.EphemeralNodes(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ephemeral nodes of session %d: %w", sessionID, err)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Hex()
	}
	return out, nil
}

// TasksBySession lists every task queued in a session.
func (c *Client) TasksBySession(ctx context.Context, sessionID uint64) ([]domain.Task, error) {
	tasks, err := c.backend.TasksBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("tasks of session %d: %w", sessionID, err)
	}
	return tasks, nil
}

// GetTaskResults returns the results recorded so far; possibly none.
func (c *Client) GetTaskResults(ctx context.Context, sessionID, taskID uint64) ([]domain.TaskResult, error) {
	results, err := c.backend.TaskResults(ctx, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("results of task %d/%d: %w", sessionID, taskID, err)
	}
	return results, nil
}

// SubmitTask queues payload in a session and returns the queue-assigned
// task id read from the TaskQueued event. TaskID 0 means the event was
// not found and the id is unknown.
func (c *Client) SubmitTask(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey) (domain.Submission, error) {
	if key == nil {
		metrics.LedgerSubmissions.WithLabelValues("error").Inc()
		return domain.Submission{}, &SubmissionError{SessionID: sessionID, Err: domain.ErrSignerMissing}
	}
	if c.cfg.InclusionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.InclusionTimeout)
		defer cancel()
	}

	receipt, err := c.backend.Submit(ctx, sessionID, payload, key)
	if err != nil {
		metrics.LedgerSubmissions.WithLabelValues("error").Inc()
		serr := &SubmissionError{SessionID: sessionID, Err: err}
		if receipt != nil {
			serr.TxHash = receipt.TxHash.Hex()
		}
		return domain.Submission{}, serr
	}

	sub := domain.Submission{TxHash: receipt.TxHash.Hex()}
	if ev, ok := FindTaskQueued(receipt.Logs, c.cfg.QueueAddress); ok {
		sub.TaskID = ev.TaskID
		metrics.LedgerSubmissions.WithLabelValues("ok").Inc()
	} else {
		metrics.LedgerSubmissions.WithLabelValues("no_event").Inc()
		c.log.Warn("TaskQueued event not found in receipt", "session_id", sessionID, "tx", sub.TxHash)
	}
	return sub, nil
}

// WaitForResult polls for a task's results every interval until the policy
// accepts one or timeout passes. Poll errors are logged and the loop goes
// on. The deadline is only checked between polls, so a call in flight at
// the deadline completes first. ctx cancellation ends the wait early.
func (c *Client) WaitForResult(ctx context.Context, sessionID, taskID uint64, timeout, interval time.Duration) (string, bool) {
	if interval <= 0 {
		interval = c.cfg.PollInterval
	}
	start := time.Now()
	deadline := start.Add(timeout)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for time.Now().Before(deadline) {
		results, err := c.GetTaskResults(ctx, sessionID, taskID)
		switch {
		case err != nil:
			metrics.LedgerPolls.WithLabelValues("error").Inc()
			c.log.Warn("poll task results failed", "session_id", sessionID, "task_id", taskID, "error", err)
		case len(results) == 0:
			metrics.LedgerPolls.WithLabelValues("empty").Inc()
		default:
			if result, ok := c.policy(results); ok {
				metrics.LedgerPolls.WithLabelValues("found").Inc()
				metrics.LedgerWaitLatency.Observe(time.Since(start).Seconds())
				return result, true
			}
			metrics.LedgerPolls.WithLabelValues("empty").Inc()
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
		}
	}
	return "", false
}

// ExecuteTask submits payload and waits up to timeout for a result. It
// never fails: every failure yields Success=false and a nil Result. A
// failed submission is not polled.
func (c *Client) ExecuteTask(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey, timeout time.Duration) domain.Execution {
	sub, err := c.SubmitTask(ctx, sessionID, payload, key)
	if err != nil {
		c.log.Error("execute task: submission failed", "session_id", sessionID, "error", err)
		return domain.Execution{}
	}
	log := c.log.With("session_id", sessionID, "tx", sub.TxHash)

	taskID := sub.TaskID
	if taskID == 0 {
		recovered, err := c.recoverTaskID(ctx, sessionID, payload)
		if err != nil {
			log.Error("execute task: task id unknown", "state", domain.TaskSubmitted, "error", err)
			return domain.Execution{TxHash: sub.TxHash, State: domain.TaskSubmitted}
		}
		taskID = recovered
	}
	log = log.With("task_id", taskID)
	log.Debug("task queued", "state", domain.TaskQueued)

	result, ok := c.WaitForResult(ctx, sessionID, taskID, timeout, c.cfg.PollInterval)
	if !ok {
		log.Warn("execute task: no result before deadline", "state", domain.TaskExpired, "timeout", timeout)
		return domain.Execution{TaskID: taskID, TxHash: sub.TxHash, State: domain.TaskExpired}
	}
	log.Info("task resolved", "state", domain.TaskResolved)
	return domain.Execution{Success: true, Result: &result, TaskID: taskID, TxHash: sub.TxHash, State: domain.TaskResolved}
}

// recoverTaskID finds the newest task in the session whose payload matches.
func (c *Client) recoverTaskID(ctx context.Context, sessionID uint64, payload string) (uint64, error) {
	tasks, err := c.TasksBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].Payload == payload {
			return tasks[i].ID, nil
		}
	}
	return 0, domain.ErrTaskIDUnknown
}

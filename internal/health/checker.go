// Package health runs periodic dependency checks (ledger session, history
// database, result cache) with optional recovery hooks.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/infra/metrics"
)

// DefaultInterval is the period between check rounds.
const DefaultInterval = 60 * time.Second

// checkTimeout bounds a single CheckFn call.
const checkTimeout = 10 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *slog.Logger
}

// NewChecker creates a checker with no checks. Add registers them.
func NewChecker(interval time.Duration, logger *slog.Logger) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{interval: interval, log: logger.With("component", "health")}
}

// Add registers a check. Call before Run.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.CheckFn(cctx)
		cancel()

		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			c.log.Warn("health check failed", "check", check.Name, "error", err)
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Error("health recovery failed", "check", check.Name, "error", rerr)
				}
			}
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// SessionVerifier is satisfied by the ledger client.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID uint64) domain.SessionCheck
}

// SessionCheck fails while the configured session is missing or inactive.
func SessionCheck(v SessionVerifier, sessionID uint64) Check {
	return Check{
		Name: "ledger_session",
		CheckFn: func(ctx context.Context) error {
			res := v.VerifySession(ctx, sessionID)
			if !res.Valid {
				return fmt.Errorf("session %d: %s", sessionID, res.Error)
			}
			return nil
		},
	}
}

// DBCheck pings the history database. SQLite recovers on its own via WAL.
func DBCheck(ping func() error) Check {
	return Check{
		Name: "history_db",
		CheckFn: func(ctx context.Context) error {
			return ping()
		},
	}
}

// CacheCheck pings the result cache.
func CacheCheck(ping func(ctx context.Context) error) Check {
	return Check{
		Name: "result_cache",
		CheckFn: func(ctx context.Context) error {
			if err := ping(ctx); err != nil {
				return errors.Join(errors.New("cache unreachable"), err)
			}
			return nil
		},
	}
}

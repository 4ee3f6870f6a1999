package domain

import (
	"context"
	"crypto/ecdsa"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the research orchestrator depends on them.

// Completion is the raw answer returned by the router service.
type Completion struct {
	RawOutput string `json:"output"`
	TaskID    string `json:"task_id"`
}

// Completer sends a prompt to the HTTP router. Implemented by infra/router.Client.
type Completer interface {
	Complete(ctx context.Context, sessionID uint64, prompt string) (Completion, error)
}

// TaskExecutor drives the on-chain task queue. Implemented by infra/ledger.Client.
type TaskExecutor interface {
	// ExecuteTask submits payload and waits up to timeout for a result.
	// It never fails; all failures collapse into Success=false.
	ExecuteTask(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey, timeout time.Duration) Execution

	// VerifySession probes whether a session exists and is active.
	VerifySession(ctx context.Context, sessionID uint64) SessionCheck
}

// ResultCache stores verified results keyed by request fingerprint.
// Implemented by infra/cache.Redis.
type ResultCache interface {
	Get(ctx context.Context, key string) (ResearchResult, error) // ErrCacheMiss when absent
	Set(ctx context.Context, key string, res ResearchResult) error
}

// HistoryStore appends dispatched results. Implemented by infra/sqlite.DB.
type HistoryStore interface {
	RecordResult(ctx context.Context, res ResearchResult) error
	RecentResults(ctx context.Context, limit int) ([]ResearchResult, error)
}

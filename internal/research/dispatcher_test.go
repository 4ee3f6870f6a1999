package research

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightai/insight/internal/domain"
)

// ─── Stubs ──────────────────────────────────────────────────────────────────

type stubRouter struct {
	mu     sync.Mutex
	calls  int
	out    domain.Completion
	err    error
	panics bool
}

func (s *stubRouter) Complete(ctx context.Context, sessionID uint64, prompt string) (domain.Completion, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("router exploded")
	}
	return s.out, s.err
}

func (s *stubRouter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubLedger struct {
	exec  domain.Execution
	check domain.SessionCheck
	calls int
}

func (s *stubLedger) ExecuteTask(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey, timeout time.Duration) domain.Execution {
	s.calls++
	return s.exec
}

func (s *stubLedger) VerifySession(ctx context.Context, sessionID uint64) domain.SessionCheck {
	return s.check
}

type memCache struct {
	mu    sync.Mutex
	items map[string]domain.ResearchResult
}

func (c *memCache) Get(ctx context.Context, key string) (domain.ResearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.items[key]
	if !ok {
		return domain.ResearchResult{}, domain.ErrCacheMiss
	}
	return res, nil
}

func (c *memCache) Set(ctx context.Context, key string, res domain.ResearchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]domain.ResearchResult)
	}
	c.items[key] = res
	return nil
}

type memHistory struct {
	results []domain.ResearchResult
	err     error
}

func (h *memHistory) RecordResult(ctx context.Context, res domain.ResearchResult) error {
	if h.err != nil {
		return h.err
	}
	h.results = append(h.results, res)
	return nil
}

func (h *memHistory) RecentResults(ctx context.Context, limit int) ([]domain.ResearchResult, error) {
	return h.results, nil
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DemoDelay = 0
	return NewDispatcher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func strPtr(s string) *string { return &s }

// ─── Validation ─────────────────────────────────────────────────────────────

func TestDispatch_RejectsEmptyQuery(t *testing.T) {
	router := &stubRouter{}
	ledger := &stubLedger{}
	d := newTestDispatcher(t)
	d.SetRouter(router)
	d.SetLedger(ledger, testKey(t))

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := d.Dispatch(context.Background(), Request{Query: q})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	}
	assert.Zero(t, router.Calls(), "router must not be called")
	assert.Zero(t, ledger.calls, "ledger must not be called")
}

// ─── Demo path ──────────────────────────────────────────────────────────────

func TestDispatch_NoBackendsServesDemo(t *testing.T) {
	d := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Request{Query: "Tell me about Cortensor"})
	require.NoError(t, err)

	assert.Equal(t, demoCortensor.Summary, res.Summary)
	assert.Equal(t, domain.ModeDemo, res.Method)
	assert.Equal(t, domain.ModeAuto, res.RequestedMode)
	assert.True(t, res.IsDemo)
	assert.False(t, res.Verified)
	assert.Empty(t, res.FallbackReason)
	assert.Empty(t, res.VerificationURL)
	assert.Equal(t, []string{"https://docs.cortensor.network"}, res.Sources)
	assert.Equal(t, "124", res.SessionID)
	assert.Equal(t, "0", res.TaskID)
	assert.NotEmpty(t, res.DispatchID)
	assert.Equal(t, "meta-llama-3.1-8b-instruct", res.Model)
}

func TestDispatch_ExplicitDemoSkipsBackends(t *testing.T) {
	router := &stubRouter{out: domain.Completion{RawOutput: "real"}}
	d := newTestDispatcher(t)
	d.SetRouter(router)

	res, err := d.Dispatch(context.Background(), Request{Query: "weather today", Mode: domain.ModeDemo})
	require.NoError(t, err)
	assert.Equal(t, demoDefault.Summary, res.Summary)
	assert.Zero(t, router.Calls())
}

func TestDispatch_DefaultModeApplies(t *testing.T) {
	router := &stubRouter{out: domain.Completion{RawOutput: "real"}}
	cfg := DefaultConfig()
	cfg.DemoDelay = 0
	cfg.DefaultMode = domain.ModeDemo
	d := NewDispatcher(cfg, nil)
	d.SetRouter(router)

	res, err := d.Dispatch(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDemo, res.Method)
	assert.Equal(t, domain.ModeDemo, res.RequestedMode)
	assert.Zero(t, router.Calls())
}

func TestDispatch_DemoDelayHonorsContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DemoDelay = time.Hour
	d := NewDispatcher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := d.Dispatch(ctx, Request{Query: "q"})
	require.NoError(t, err)
	assert.True(t, res.IsDemo)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// ─── Router path ────────────────────────────────────────────────────────────

func TestDispatch_RouterSuccess(t *testing.T) {
	router := &stubRouter{out: domain.Completion{
		RawOutput: "Decentralized inference is powerful.\n- Point A\n- Point B",
		TaskID:    "42",
	}}
	d := newTestDispatcher(t)
	d.SetRouter(router)

	res, err := d.Dispatch(context.Background(), Request{Query: "q", URL: "https://example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, "Decentralized inference is powerful.", res.Summary)
	assert.Equal(t, []string{"Point A", "Point B"}, res.BulletPoints)
	assert.Equal(t, []string{"https://example.com/a"}, res.Sources)
	assert.Equal(t, domain.ModeRouter, res.Method)
	assert.True(t, res.Verified)
	assert.False(t, res.IsDemo)
	assert.Equal(t, "42", res.TaskID)
	assert.Empty(t, res.TxHash)
	assert.Equal(t, "https://dashboard-testnet0.cortensor.network/session/124/42", res.VerificationURL)
}

func TestDispatch_RouterFailureDegrades(t *testing.T) {
	tests := []struct {
		name   string
		router *stubRouter
	}{
		{"error", &stubRouter{err: errors.New("502 bad gateway")}},
		{"timeout", &stubRouter{err: domain.ErrRouterTimeout}},
		{"panic", &stubRouter{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t)
			d.SetRouter(tt.router)

			res, err := d.Dispatch(context.Background(), Request{Query: "latest AI trends", Mode: domain.ModeRouter})
			require.NoError(t, err)

			assert.Equal(t, demoAI.Summary, res.Summary)
			assert.Equal(t, domain.ModeDemo, res.Method)
			assert.Equal(t, domain.ModeRouter, res.RequestedMode)
			assert.True(t, res.IsDemo)
			assert.False(t, res.Verified)
			assert.NotEmpty(t, res.FallbackReason)
		})
	}
}

// ─── Web3 path ──────────────────────────────────────────────────────────────

func TestDispatch_Web3Success(t *testing.T) {
	ledger := &stubLedger{exec: domain.Execution{
		Success: true,
		Result:  strPtr("First insight. Second insight."),
		TaskID:  7,
		TxHash:  "0xabc",
	}}
	d := newTestDispatcher(t)
	d.SetLedger(ledger, testKey(t))

	res, err := d.Dispatch(context.Background(), Request{Query: "q", Mode: domain.ModeWeb3})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeWeb3, res.Method)
	assert.True(t, res.Verified)
	assert.Equal(t, "First insight.", res.Summary)
	assert.Equal(t, []string{"Second insight"}, res.BulletPoints)
	assert.Equal(t, "7", res.TaskID)
	assert.Equal(t, "0xabc", res.TxHash)
	assert.Equal(t, 1, ledger.calls)
}

func TestDispatch_Web3FailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		exec domain.Execution
		want error
	}{
		{"submission failed", domain.Execution{}, domain.ErrSubmission},
		{"timed out", domain.Execution{TaskID: 3, TxHash: "0xdef"}, domain.ErrResultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t)
			d.SetLedger(&stubLedger{exec: tt.exec}, testKey(t))

			res, err := d.Dispatch(context.Background(), Request{Query: "q", Mode: domain.ModeWeb3})
			require.NoError(t, err)
			assert.True(t, res.IsDemo)
			assert.Contains(t, res.FallbackReason, tt.want.Error())
			assert.Empty(t, res.TxHash)
		})
	}
}

func TestDispatch_Web3WithoutSignerUsesRouter(t *testing.T) {
	router := &stubRouter{out: domain.Completion{RawOutput: "Answer.\n- x"}}
	ledger := &stubLedger{}
	d := newTestDispatcher(t)
	d.SetRouter(router)
	d.SetLedger(ledger, nil)

	res, err := d.Dispatch(context.Background(), Request{Query: "q", Mode: domain.ModeWeb3})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRouter, res.Method)
	assert.Zero(t, ledger.calls)
}

// ─── Cache and history ──────────────────────────────────────────────────────

func TestDispatch_CachesVerifiedResults(t *testing.T) {
	router := &stubRouter{out: domain.Completion{RawOutput: "Answer.\n- x", TaskID: "9"}}
	cache := &memCache{}
	d := newTestDispatcher(t)
	d.SetRouter(router)
	d.SetCache(cache)

	first, err := d.Dispatch(context.Background(), Request{Query: "Same Question"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := d.Dispatch(context.Background(), Request{Query: "same question"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "same question", second.Query)
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.DispatchID, second.DispatchID)
	assert.Equal(t, 1, router.Calls())
}

func TestDispatch_DoesNotCacheDegraded(t *testing.T) {
	router := &stubRouter{err: errors.New("down")}
	cache := &memCache{}
	d := newTestDispatcher(t)
	d.SetRouter(router)
	d.SetCache(cache)

	_, err := d.Dispatch(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, cache.items)
}

func TestDispatch_RecordsHistory(t *testing.T) {
	hist := &memHistory{}
	d := newTestDispatcher(t)
	d.SetHistory(hist)

	res, err := d.Dispatch(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, hist.results, 1)
	assert.Equal(t, res.DispatchID, hist.results[0].DispatchID)
}

func TestDispatch_HistoryFailureIsNotFatal(t *testing.T) {
	d := newTestDispatcher(t)
	d.SetHistory(&memHistory{err: errors.New("disk full")})

	_, err := d.Dispatch(context.Background(), Request{Query: "q"})
	assert.NoError(t, err)
}

// ─── Status ─────────────────────────────────────────────────────────────────

func TestStatus(t *testing.T) {
	d := newTestDispatcher(t)
	st := d.Status(context.Background())
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, []domain.Mode{domain.ModeAuto, domain.ModeDemo}, st.AvailableModes)
	assert.False(t, st.Session.Valid)
	assert.Equal(t, uint64(124), st.Session.ID)
	assert.NotEmpty(t, st.Session.Error)

	model := uint64(3)
	d.SetRouter(&stubRouter{})
	d.SetLedger(&stubLedger{check: domain.SessionCheck{Valid: true, Name: "research", Model: &model}}, testKey(t))
	st = d.Status(context.Background())
	assert.Equal(t, []domain.Mode{domain.ModeAuto, domain.ModeRouter, domain.ModeWeb3, domain.ModeDemo}, st.AvailableModes)
	assert.True(t, st.Session.Valid)
	assert.Equal(t, "research", st.Session.Name)
	assert.Equal(t, uint64(124), st.Session.ID)
}

func TestVerificationURL(t *testing.T) {
	base := "https://dash/session/"
	assert.Equal(t, "https://dash/session/5", VerificationURL(base, "5", "0"))
	assert.Equal(t, "https://dash/session/5", VerificationURL(base, "5", ""))
	assert.Equal(t, "https://dash/session/5/8", VerificationURL(base, "5", "8"))
	assert.Empty(t, VerificationURL("", "5", "8"))
}

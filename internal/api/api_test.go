package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/health"
	"github.com/insightai/insight/internal/research"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedRouter struct {
	out domain.Completion
	err error
}

func (f fixedRouter) Complete(ctx context.Context, sessionID uint64, prompt string) (domain.Completion, error) {
	return f.out, f.err
}

type fakeSessions struct {
	check    domain.SessionCheck
	nodes    []string
	nodesErr error
	tasks    []domain.Task
	tasksErr error

	owned    []domain.Session
	ownedErr error
	owner    common.Address
}

func (f *fakeSessions) VerifySession(ctx context.Context, id uint64) domain.SessionCheck {
	return f.check
}

func (f *fakeSessions) EphemeralNodes(ctx context.Context, id uint64) ([]string, error) {
	return f.nodes, f.nodesErr
}

func (f *fakeSessions) TasksBySession(ctx context.Context, id uint64) ([]domain.Task, error) {
	return f.tasks, f.tasksErr
}

func (f *fakeSessions) SessionsByOwner(ctx context.Context, owner common.Address) ([]domain.Session, error) {
	f.owner = owner
	return f.owned, f.ownedErr
}

type fakeHistory struct {
	results []domain.ResearchResult
	limit   int
}

func (f *fakeHistory) RecentResults(ctx context.Context, limit int) ([]domain.ResearchResult, error) {
	f.limit = limit
	return f.results, nil
}

func (f *fakeHistory) GetResult(ctx context.Context, id string) (domain.ResearchResult, error) {
	for _, r := range f.results {
		if r.DispatchID == id {
			return r, nil
		}
	}
	return domain.ResearchResult{}, domain.ErrResultNotFound
}

func newDispatcher(t *testing.T) *research.Dispatcher {
	t.Helper()
	cfg := research.DefaultConfig()
	cfg.DemoDelay = 0
	return research.NewDispatcher(cfg, quietLogger())
}

func newTestServer(t *testing.T) (*Server, *research.Dispatcher) {
	t.Helper()
	d := newDispatcher(t)
	return NewServer(d, quietLogger()), d
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// ─── POST /research ─────────────────────────────────────────────────────────

func TestResearch_DemoFallback(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "POST", "/research", `{"query":"What is Cortensor?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	var res domain.ResearchResult
	decode(t, w, &res)

	if !res.IsDemo || res.Verified {
		t.Errorf("IsDemo=%v Verified=%v, want demo", res.IsDemo, res.Verified)
	}
	if res.Method != domain.ModeDemo {
		t.Errorf("Method = %s, want demo", res.Method)
	}
	if !strings.Contains(res.Summary, "Cortensor") {
		t.Errorf("Summary = %q, want the cortensor demo entry", res.Summary)
	}
	if len(res.Sources) != 1 || res.Sources[0] != "https://docs.cortensor.network" {
		t.Errorf("Sources = %v", res.Sources)
	}
	if res.Model != "meta-llama-3.1-8b-instruct" {
		t.Errorf("Model = %q", res.Model)
	}
}

func TestResearch_RouterPath(t *testing.T) {
	srv, d := newTestServer(t)
	d.SetRouter(fixedRouter{out: domain.Completion{
		RawOutput: "Summary line.\n- first\n- second",
		TaskID:    "9",
	}})

	w := do(t, srv.Handler(), "POST", "/research", `{"query":"q","url":"https://example.com","mode":"router"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	var res domain.ResearchResult
	decode(t, w, &res)

	if !res.Verified || res.Method != domain.ModeRouter {
		t.Errorf("Verified=%v Method=%s, want router", res.Verified, res.Method)
	}
	if res.TaskID != "9" {
		t.Errorf("TaskID = %q, want 9", res.TaskID)
	}
	if len(res.BulletPoints) != 2 {
		t.Errorf("BulletPoints = %v", res.BulletPoints)
	}
	if res.Sources[0] != "https://example.com" {
		t.Errorf("Sources = %v", res.Sources)
	}
}

func TestResearch_RouterFailureDegrades(t *testing.T) {
	srv, d := newTestServer(t)
	d.SetRouter(fixedRouter{err: errors.New("router down")})

	w := do(t, srv.Handler(), "POST", "/research", `{"query":"tell me about AI"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res domain.ResearchResult
	decode(t, w, &res)
	if res.Verified || !res.IsDemo {
		t.Error("router failure should degrade to an unverified demo answer")
	}
	if res.FallbackReason == "" {
		t.Error("FallbackReason should explain the degradation")
	}
}

func TestResearch_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{"query":`, "Invalid JSON body"},
		{"missing query", `{}`, "Query is required"},
		{"empty query", `{"query":""}`, "Query is required"},
		{"blank query", `{"query":"   "}`, "Query is required"},
		{"numeric query", `{"query":42}`, "Query is required"},
		{"non-string url", `{"query":"q","url":7}`, "url must be a string"},
		{"unknown mode", `{"query":"q","mode":"telepathy"}`, "unknown execution mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", "/research", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var body map[string]string
			decode(t, w, &body)
			if !strings.Contains(body["error"], tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", body["error"], tt.wantErr)
			}
		})
	}
}

// ─── GET /research ──────────────────────────────────────────────────────────

func TestResearchStatus(t *testing.T) {
	srv, d := newTestServer(t)
	d.SetRouter(fixedRouter{})

	w := do(t, srv.Handler(), "GET", "/research", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st research.Status
	decode(t, w, &st)

	if st.Status != "ok" {
		t.Errorf("Status = %q, want ok", st.Status)
	}
	want := []domain.Mode{domain.ModeAuto, domain.ModeRouter, domain.ModeDemo}
	if len(st.AvailableModes) != len(want) {
		t.Fatalf("AvailableModes = %v, want %v", st.AvailableModes, want)
	}
	for i := range want {
		if st.AvailableModes[i] != want[i] {
			t.Errorf("AvailableModes[%d] = %s, want %s", i, st.AvailableModes[i], want[i])
		}
	}
	if st.Session.Valid || st.Session.Error == "" {
		t.Errorf("Session = %+v, want invalid with error when no ledger", st.Session)
	}
}

// ─── GET /research/history ──────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/research/history", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("disabled history: status = %d, want 404", w.Code)
	}

	h := &fakeHistory{results: []domain.ResearchResult{{DispatchID: "a"}, {DispatchID: "b"}}}
	srv.SetHistory(h)
	handler := srv.Handler()

	w = do(t, handler, "GET", "/research/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Results []domain.ResearchResult `json:"results"`
	}
	decode(t, w, &body)
	if len(body.Results) != 2 || h.limit != 5 {
		t.Errorf("results = %d limit = %d, want 2 and 5", len(body.Results), h.limit)
	}

	w = do(t, handler, "GET", "/research/history?limit=-1", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", w.Code)
	}
}

func TestHistoryItem(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/research/history/a", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("disabled history: status = %d, want 404", w.Code)
	}

	srv.SetHistory(&fakeHistory{results: []domain.ResearchResult{{DispatchID: "a", Query: "q"}}})
	h := srv.Handler()

	w = do(t, h, "GET", "/research/history/a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res domain.ResearchResult
	decode(t, w, &res)
	if res.DispatchID != "a" || res.Query != "q" {
		t.Errorf("result = %+v", res)
	}

	w = do(t, h, "GET", "/research/history/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing id: status = %d, want 404", w.Code)
	}
}

// ─── Sessions ───────────────────────────────────────────────────────────────

func TestSessionsByOwner(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/sessions?owner=0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no ledger: status = %d, want 503", w.Code)
	}

	fake := &fakeSessions{owned: []domain.Session{{ID: 124, Name: "research", Active: true}}}
	srv.SetSessions(fake)
	h := srv.Handler()

	w = do(t, h, "GET", "/sessions?owner=0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Owner    string           `json:"owner"`
		Sessions []domain.Session `json:"sessions"`
	}
	decode(t, w, &body)
	if body.Owner != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("Owner = %q, want checksummed address", body.Owner)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].ID != 124 {
		t.Errorf("Sessions = %+v", body.Sessions)
	}
	if fake.owner != common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266") {
		t.Errorf("ledger asked for %s", fake.owner.Hex())
	}

	for _, q := range []string{"", "?owner=", "?owner=0xnothex"} {
		w = do(t, h, "GET", "/sessions"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET /sessions%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestSessionsByOwner_LedgerError(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetSessions(&fakeSessions{ownedErr: errors.New("rpc down")})

	w := do(t, srv.Handler(), "GET", "/sessions?owner=0x0000000000000000000000000000000000000001", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestSession(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/sessions/124", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no ledger: status = %d, want 503", w.Code)
	}

	model := uint64(3)
	srv.SetSessions(&fakeSessions{
		check: domain.SessionCheck{Valid: true, Name: "research", Model: &model},
		nodes: []string{"0xA", "0xB"},
	})
	h := srv.Handler()

	w = do(t, h, "GET", "/sessions/124", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body sessionResponse
	decode(t, w, &body)
	if body.Session.ID != 124 || !body.Session.Valid {
		t.Errorf("Session = %+v", body.Session)
	}
	if len(body.Nodes) != 2 {
		t.Errorf("Nodes = %v", body.Nodes)
	}

	w = do(t, h, "GET", "/sessions/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}
}

func TestSession_InactiveSkipsNodes(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetSessions(&fakeSessions{
		check:    domain.SessionCheck{Error: "Session is not active"},
		nodesErr: errors.New("should not be called"),
	})

	w := do(t, srv.Handler(), "GET", "/sessions/5", "")
	var body sessionResponse
	decode(t, w, &body)
	if body.Session.Error != "Session is not active" {
		t.Errorf("Session.Error = %q", body.Session.Error)
	}
	if body.NodesError != "" || len(body.Nodes) != 0 {
		t.Errorf("nodes should not be queried for an inactive session: %+v", body)
	}
}

func TestSessionTasks_NewestFirst(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetSessions(&fakeSessions{tasks: []domain.Task{{ID: 1}, {ID: 2}, {ID: 3}}})

	w := do(t, srv.Handler(), "GET", "/sessions/124/tasks?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Tasks []domain.Task `json:"tasks"`
	}
	decode(t, w, &body)
	if len(body.Tasks) != 2 || body.Tasks[0].ID != 3 || body.Tasks[1].ID != 2 {
		t.Errorf("Tasks = %+v, want ids [3 2]", body.Tasks)
	}
}

func TestSessionTasks_LedgerError(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetSessions(&fakeSessions{tasksErr: errors.New("rpc down")})

	w := do(t, srv.Handler(), "GET", "/sessions/1/tasks", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

// ─── Health, CORS, metrics ──────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	checker := health.NewChecker(time.Minute, quietLogger())
	checker.Add(health.DBCheck(func() error { return errors.New("locked") }))
	checker.RunOnce(context.Background())
	srv.SetHealth(checker)

	w := do(t, srv.Handler(), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body healthResponse
	decode(t, w, &body)
	if body.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", body.Status)
	}
	if len(body.Checks) != 1 || body.Checks[0].Healthy {
		t.Errorf("Checks = %+v", body.Checks)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetCORSOrigins([]string{"https://app.example"})
	h := srv.Handler()

	req := httptest.NewRequest("OPTIONS", "/research", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for unlisted origin, want empty", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv.Handler(), "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: status = %d, want 404", w.Code)
	}

	srv.EnableMetrics()
	w := do(t, srv.Handler(), "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output should include default Go collectors")
	}
}

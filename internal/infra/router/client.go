// Package router is the HTTP client for the inference router's
// completions API.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/infra/metrics"
)

const (
	// DefaultTimeout is the client-side deadline for one completion.
	DefaultTimeout = 15 * time.Second
	// DefaultServerTimeout is the timeout, in seconds, asked of the router.
	DefaultServerTimeout = 30

	maxResponseBytes = 4 << 20
	maxErrorBody     = 512
)

// ErrTimeout is returned (wrapped) when the client-side deadline elapses.
var ErrTimeout = domain.ErrRouterTimeout

// outputPaths are tried in order; the first non-empty string wins.
var outputPaths = []string{
	"$.output",
	"$.text",
	"$.content",
	"$.choices[0].text",
	"$.choices[0].message.content",
}

// Error is a non-success HTTP response from the router.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("router API error: %d - %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration // client-side hard deadline
	ServerTimeout int           // seconds, sent in the request body
}

// Client calls POST {BaseURL}/api/v1/completions/{sessionID}.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// New creates a router client. BaseURL is required.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, domain.ErrRouterUnconfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ServerTimeout <= 0 {
		cfg.ServerTimeout = DefaultServerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  logger.With("component", "router"),
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client (tests, proxies).
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

type completionRequest struct {
	SessionID uint64 `json:"session_id"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream"`
	Timeout   int    `json:"timeout"`
}

// Complete sends prompt to the router and returns the raw model output.
// The request is aborted once the client timeout passes, whatever the
// router's own timeout is.
func (c *Client) Complete(ctx context.Context, sessionID uint64, prompt string) (domain.Completion, error) {
	body, err := json.Marshal(completionRequest{
		SessionID: sessionID,
		Prompt:    prompt,
		Stream:    false,
		Timeout:   c.cfg.ServerTimeout,
	})
	if err != nil {
		return domain.Completion{}, fmt.Errorf("encode completion request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := c.cfg.BaseURL + "/api/v1/completions/" + strconv.FormatUint(sessionID, 10)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			metrics.RouterRequests.WithLabelValues("timeout").Inc()
			return domain.Completion{}, fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}
		metrics.RouterRequests.WithLabelValues("transport").Inc()
		return domain.Completion{}, fmt.Errorf("router request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.RouterLatency.Observe(time.Since(start).Seconds())
	metrics.RouterRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return domain.Completion{}, fmt.Errorf("%w while reading body", ErrTimeout)
		}
		return domain.Completion{}, fmt.Errorf("read router response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Completion{}, &Error{Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	comp, err := decodeCompletion(raw)
	if err != nil {
		return domain.Completion{}, err
	}
	c.log.Debug("completion received",
		"session_id", sessionID,
		"task_id", comp.TaskID,
		"output_bytes", len(comp.RawOutput),
		"duration", time.Since(start))
	return comp, nil
}

// decodeCompletion extracts the output text and task id from a router
// response, tolerating the field names different router versions use.
func decodeCompletion(raw []byte) (domain.Completion, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return domain.Completion{}, fmt.Errorf("decode router response: %w", err)
	}

	comp := domain.Completion{TaskID: "0"}
	for _, path := range outputPaths {
		v, err := jsonpath.Get(path, doc)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			comp.RawOutput = s
			break
		}
	}

	if v, err := jsonpath.Get("$.task_id", doc); err == nil {
		switch id := v.(type) {
		case json.Number:
			comp.TaskID = id.String()
		case string:
			if _, err := strconv.ParseUint(id, 10, 64); err == nil {
				comp.TaskID = id
			}
		}
	}
	return comp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

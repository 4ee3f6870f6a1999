package daemon

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/insightai/insight/internal/api"
	"github.com/insightai/insight/internal/health"
	"github.com/insightai/insight/internal/infra/cache"
	"github.com/insightai/insight/internal/infra/ledger"
	_ "github.com/insightai/insight/internal/infra/metrics" // Register Prometheus metrics
	"github.com/insightai/insight/internal/infra/router"
	"github.com/insightai/insight/internal/infra/sqlite"
	"github.com/insightai/insight/internal/research"
	"github.com/insightai/insight/internal/security"
)

// Daemon is the Insight runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Log        *slog.Logger
	Dispatcher *research.Dispatcher
	Router     *router.Client
	Ledger     *ledger.Client
	Signer     *security.Signer
	DB         *sqlite.DB
	Cache      *cache.Redis
	Health     *health.Checker
	Server     *api.Server

	evm       *ledger.EVM
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New loads the configuration and creates a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. Optional
// backends (router, signer, history, cache) that are not configured, or
// fail to start, are left out and their mode or feature is unavailable.
func NewWithConfig(cfg Config) (*Daemon, error) {
	logger := NewLogger(cfg.Logging, os.Stderr)
	log := logger.With("component", "daemon")

	rcfg, err := cfg.ResearchSettings()
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		Config:     cfg,
		Log:        logger,
		Dispatcher: research.NewDispatcher(rcfg, logger),
	}

	// Router
	if cfg.Router.URL != "" {
		rc, err := router.New(cfg.RouterSettings(), logger)
		if err != nil {
			return nil, fmt.Errorf("router client: %w", err)
		}
		d.Router = rc
		d.Dispatcher.SetRouter(rc)
	}

	// Ledger + signer
	if cfg.Ledger.RPCURL != "" {
		lcfg, err := cfg.LedgerSettings()
		if err != nil {
			return nil, err
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		evm, err := ledger.Dial(dialCtx, lcfg)
		cancel()
		if err != nil {
			log.Warn("ledger unavailable, web3 mode and session probes disabled", "error", err)
		} else {
			d.evm = evm
			d.Ledger = ledger.NewClient(evm, lcfg, logger)
		}
	}

	signer, err := security.LoadSigner(cfg.Ledger.PrivateKey)
	switch {
	case errors.Is(err, security.ErrNoKey):
		log.Info("no signing key configured, web3 mode disabled")
	case err != nil:
		log.Warn("signing key rejected, web3 mode disabled", "error", err)
	default:
		d.Signer = signer
		log.Info("signing key loaded", "address", signer.AddressHex())
	}

	if d.Ledger != nil {
		d.Dispatcher.SetLedger(d.Ledger, d.signerKey())
	}

	// History
	if cfg.History.Enabled {
		dir := cfg.History.Dir
		if dir == "" {
			dir = insightHome()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open history database: %w", err)
		}
		d.DB = db
		d.Dispatcher.SetHistory(db)
	}

	// Cache
	if cfg.Cache.RedisURL != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.Dial(dialCtx, cfg.Cache.RedisURL, cfg.Cache.Prefix, parseDuration(cfg.Cache.TTL, cache.DefaultTTL))
		cancel()
		if err != nil {
			log.Warn("result cache unavailable", "error", err)
		} else {
			d.Cache = rc
			d.Dispatcher.SetCache(rc)
		}
	}

	// Health checker
	d.Health = health.NewChecker(parseDuration(cfg.Telemetry.HealthInterval, health.DefaultInterval), logger)
	if d.Ledger != nil {
		d.Health.Add(health.SessionCheck(d.Ledger, rcfg.SessionID))
	}
	if d.DB != nil {
		d.Health.Add(health.DBCheck(d.DB.Ping))
	}
	if d.Cache != nil {
		d.Health.Add(health.CacheCheck(d.Cache.Ping))
	}

	// API server
	srv := api.NewServer(d.Dispatcher, logger)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	srv.SetRequestTimeout(parseDuration(cfg.API.RequestTimeout, api.DefaultRequestTimeout))
	srv.SetHealth(d.Health)
	if d.Ledger != nil {
		srv.SetSessions(d.Ledger)
	}
	if d.DB != nil {
		srv.SetHistory(d.DB)
	}
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	log.Info("dispatcher ready",
		"session_id", rcfg.SessionID,
		"default_mode", rcfg.DefaultMode,
		"modes", d.Dispatcher.AvailableModes())
	return d, nil
}

func (d *Daemon) signerKey() *ecdsa.PrivateKey {
	if d.Signer == nil {
		return nil
	}
	return d.Signer.Key
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // web3 waits up to the result timeout
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	fmt.Printf("Insight serving on http://%s\n", addr)
	fmt.Printf("  Modes: %v (default %s)\n", d.Dispatcher.AvailableModes(), d.Dispatcher.Config().DefaultMode)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources. Safe to call more than once.
func (d *Daemon) Close() {
	d.closeOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		if d.evm != nil {
			d.evm.Close()
		}
		if d.Cache != nil {
			_ = d.Cache.Close()
		}
		if d.DB != nil {
			_ = d.DB.Close()
		}
	})
}

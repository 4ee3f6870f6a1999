// Package daemon manages the Insight service lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/infra/ledger"
	"github.com/insightai/insight/internal/infra/router"
	"github.com/insightai/insight/internal/research"
)

// DefaultRouterAPIKey is sent when a router URL is set without a key.
const DefaultRouterAPIKey = "default-dev-token"

// Config holds all service configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Router    RouterConfig    `toml:"router"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Research  ResearchConfig  `toml:"research"`
	History   HistoryConfig   `toml:"history"`
	Cache     CacheConfig     `toml:"cache"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// RouterConfig controls the inference router client. Empty URL disables
// router mode.
type RouterConfig struct {
	URL           string `toml:"url"`
	APIKey        string `toml:"api_key"`
	Timeout       string `toml:"timeout"`
	ServerTimeout int    `toml:"server_timeout"`
}

// LedgerConfig controls the on-chain session client. Empty PrivateKey
// disables web3 mode; session probes still work.
type LedgerConfig struct {
	RPCURL           string `toml:"rpc_url"`
	SessionAddress   string `toml:"session_address"`
	QueueAddress     string `toml:"queue_address"`
	ChainID          int64  `toml:"chain_id"`
	PrivateKey       string `toml:"private_key"` // hex key or path to a key file
	PollInterval     string `toml:"poll_interval"`
	InclusionTimeout string `toml:"inclusion_timeout"`
}

// ResearchConfig controls request dispatch.
type ResearchConfig struct {
	SessionID       uint64 `toml:"session_id"`
	Model           string `toml:"model"`
	DefaultMode     string `toml:"default_mode"`
	UseMock         bool   `toml:"use_mock"`
	FallbackSource  string `toml:"fallback_source"`
	VerificationURL string `toml:"verification_url"`
	ResultTimeout   string `toml:"result_timeout"`
	DemoDelay       string `toml:"demo_delay"`
}

// HistoryConfig controls the sqlite result history.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// CacheConfig controls the Redis result cache. Empty URL disables it.
type CacheConfig struct {
	RedisURL string `toml:"redis_url"`
	Prefix   string `toml:"prefix"`
	TTL      string `toml:"ttl"`
}

// TelemetryConfig controls metrics and health checks.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	HealthInterval string `toml:"health_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	rcfg := research.DefaultConfig()
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			CORSOrigins:    []string{"*"},
			RequestTimeout: "120s",
		},
		Router: RouterConfig{
			Timeout:       router.DefaultTimeout.String(),
			ServerTimeout: router.DefaultServerTimeout,
		},
		Ledger: LedgerConfig{
			RPCURL:           ledger.DefaultRPCURL,
			SessionAddress:   ledger.DefaultSessionAddress,
			QueueAddress:     ledger.DefaultQueueAddress,
			PollInterval:     "3s",
			InclusionTimeout: "60s",
		},
		Research: ResearchConfig{
			SessionID:       rcfg.SessionID,
			Model:           rcfg.Model,
			DefaultMode:     string(domain.ModeAuto),
			FallbackSource:  rcfg.FallbackSource,
			VerificationURL: rcfg.VerificationURL,
			ResultTimeout:   rcfg.ResultTimeout.String(),
			DemoDelay:       rcfg.DemoDelay.String(),
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     insightHome(),
		},
		Cache: CacheConfig{
			TTL: "10m",
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads $INSIGHT_HOME/config.toml over the defaults, then
// applies .env and environment overrides.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := LoadConfigFile(ConfigPath())
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFile decodes path over DefaultConfig. A missing file yields
// the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv layers environment overrides onto cfg. Only variables that are
// set replace file values.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var env Config

	env.Router.URL = getenv("CORTENSOR_ROUTER_URL")
	env.Router.APIKey = getenv("CORTENSOR_API_KEY")
	env.Ledger.RPCURL = getenv("CORTENSOR_RPC_URL")
	env.Ledger.PrivateKey = getenv("CORTENSOR_PRIVATE_KEY")
	env.Cache.RedisURL = getenv("INSIGHT_REDIS_URL")
	env.Logging.Level = getenv("INSIGHT_LOG_LEVEL")

	if v := getenv("CORTENSOR_SESSION_ID"); v != "" {
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("CORTENSOR_SESSION_ID: %w", err)
		}
		env.Research.SessionID = id
	}
	if v := getenv("USE_MOCK"); v != "" {
		mock, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("USE_MOCK: %w", err)
		}
		env.Research.UseMock = mock
	}

	if err := mergo.Merge(cfg, env, mergo.WithOverride); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	return nil
}

// SaveConfig writes cfg to path, creating its directory.
func SaveConfig(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ─── Resolved views ─────────────────────────────────────────────────────────

// ResearchSettings converts the [research] section for the dispatcher.
// USE_MOCK forces demo mode.
func (c Config) ResearchSettings() (research.Config, error) {
	def := research.DefaultConfig()
	mode, err := domain.ParseMode(c.Research.DefaultMode)
	if err != nil {
		return research.Config{}, fmt.Errorf("research.default_mode: %w", err)
	}
	if c.Research.UseMock {
		mode = domain.ModeDemo
	}
	return research.Config{
		SessionID:       c.Research.SessionID,
		Model:           c.Research.Model,
		DefaultMode:     mode,
		FallbackSource:  c.Research.FallbackSource,
		VerificationURL: c.Research.VerificationURL,
		ResultTimeout:   parseDuration(c.Research.ResultTimeout, def.ResultTimeout),
		DemoDelay:       parseDuration(c.Research.DemoDelay, def.DemoDelay),
	}, nil
}

// RouterSettings converts the [router] section. The API key falls back
// to DefaultRouterAPIKey.
func (c Config) RouterSettings() router.Config {
	key := c.Router.APIKey
	if key == "" {
		key = DefaultRouterAPIKey
	}
	return router.Config{
		BaseURL:       c.Router.URL,
		APIKey:        key,
		Timeout:       parseDuration(c.Router.Timeout, router.DefaultTimeout),
		ServerTimeout: c.Router.ServerTimeout,
	}
}

// LedgerSettings converts the [ledger] section.
func (c Config) LedgerSettings() (ledger.Config, error) {
	def := ledger.DefaultConfig()
	lc := ledger.Config{
		RPCURL:           c.Ledger.RPCURL,
		SessionAddress:   def.SessionAddress,
		QueueAddress:     def.QueueAddress,
		ChainID:          c.Ledger.ChainID,
		PollInterval:     parseDuration(c.Ledger.PollInterval, def.PollInterval),
		InclusionTimeout: parseDuration(c.Ledger.InclusionTimeout, def.InclusionTimeout),
	}
	if c.Ledger.SessionAddress != "" {
		addr, err := parseAddress(c.Ledger.SessionAddress)
		if err != nil {
			return lc, fmt.Errorf("ledger.session_address: %w", err)
		}
		lc.SessionAddress = addr
	}
	if c.Ledger.QueueAddress != "" {
		addr, err := parseAddress(c.Ledger.QueueAddress)
		if err != nil {
			return lc, fmt.Errorf("ledger.queue_address: %w", err)
		}
		lc.QueueAddress = addr
	}
	return lc, nil
}

// NewLogger builds the process logger from [logging].
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ─── Paths ──────────────────────────────────────────────────────────────────

// insightHome returns the Insight data directory.
func insightHome() string {
	if env := os.Getenv("INSIGHT_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".insight")
}

// InsightHome is exported for use by other packages.
func InsightHome() string {
	return insightHome()
}

// ConfigPath is the location of config.toml.
func ConfigPath() string {
	return filepath.Join(insightHome(), "config.toml")
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

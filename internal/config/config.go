package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is populated from a JSON file named by GAMEBOOK_CONFIG, grounded on
// the teacher's internal/config.Config (same GAME_CONFIG-env-var-names-a-file
// shape, renamed for this module's domain).
type Config struct {
	Environment string `json:"environment"`
	LogLevel    slog.Level `json:"-"`
	LogLevelStr string `json:"log_level"`

	// BaseDir is the filesystem root for raw/cached content when the engine
	// runs against an FSStore (spec §4.1).
	BaseDir string `json:"base_dir"`
	// RedisURL, when non-empty, puts every cached namespace (state, trace,
	// cached sections and rules) in a RedisStore that also serves as the turn
	// locker, while raw sections/rules are still read from BaseDir; empty
	// means filesystem-only.
	RedisURL string `json:"redis_url"`
	// RedisNamespaceTTL maps a namespace name (e.g. "state", "trace") to a
	// duration string (e.g. "24h"), parsed by TTLFor.
	RedisNamespaceTTL map[string]string `json:"redis_namespace_ttl"`

	// TurnTimeoutStr is parsed into TurnTimeout (30s when unset). Nothing in
	// this module applies TurnTimeout to a turn: RunTurn runs under whatever
	// context its caller passes, and cmd/tui passes context.Background().
	TurnTimeoutStr string        `json:"turn_timeout"`
	TurnTimeout    time.Duration `json:"-"`
}

// Load reads and parses the config file named by GAMEBOOK_CONFIG.
func Load() (*Config, error) {
	configFile := getEnv("GAMEBOOK_CONFIG", "")
	if configFile == "" {
		return nil, fmt.Errorf("GAMEBOOK_CONFIG environment variable is not set")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", configFile, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", configFile, err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelStr)

	if cfg.TurnTimeoutStr != "" {
		d, err := time.ParseDuration(cfg.TurnTimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse turn_timeout %q: %v", cfg.TurnTimeoutStr, err)
		}
		cfg.TurnTimeout = d
	} else {
		cfg.TurnTimeout = 30 * time.Second
	}

	return &cfg, nil
}

// TTLFor parses the configured TTL string for namespace ns, returning 0 (no
// expiry) if unset.
func (c *Config) TTLFor(ns string) (time.Duration, error) {
	raw, ok := c.RedisNamespaceTTL[ns]
	if !ok || raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse redis_namespace_ttl[%s] %q: %v", ns, raw, err)
	}
	return d, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

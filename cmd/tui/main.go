// Command tui is a terminal driver over the turn engine: it runs the
// narrator/rules/decision/trace workflow in-process against a local content
// tree, rather than talking to a remote server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/branchtale/gamebook-engine/internal/config"
	"github.com/branchtale/gamebook-engine/internal/logger"
	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg)

	store, locker, err := buildStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}

	stateTTL := 0
	if ttl, err := cfg.TTLFor(string(cache.NamespaceState)); err == nil && ttl > 0 {
		stateTTL = int(ttl.Seconds())
	}

	eng := engine.New(store, locker, log, stateTTL)

	startSection := 1
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &startSection)
	}
	if startSection <= 0 {
		startSection = 1
	}

	gameID := uuid.NewString()
	sessionID := uuid.NewString()

	initial, err := eng.Start(context.Background(), engine.StartInput{
		GameID: gameID, SessionID: sessionID, SectionNumber: startSection,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tui: start: %v\n", err)
		os.Exit(1)
	}

	m := newModel(eng, initial, log)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}

// buildStore wires a filesystem-backed content store, promoting it to a
// Redis-fronted TTLStore/TurnLocker when cfg.RedisURL is set, matching how
// the engine is configured for a real deployment.
func buildStore(cfg *config.Config) (cache.Store, engine.TurnLocker, error) {
	if cfg.BaseDir == "" {
		return nil, nil, fmt.Errorf("base_dir is required in config")
	}
	fs := cache.NewFSStore(cfg.BaseDir)

	if cfg.RedisURL == "" {
		return fs, nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis_url: %w", err)
	}
	client := redis.NewClient(opts)
	rs := cache.NewRedisStore(client, fs)
	return rs, rs, nil
}

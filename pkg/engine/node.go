// Package engine implements the four-node turn workflow: narrator and
// rules run concurrently, their outputs merge into a decision, and a trace
// node records the turn before the engine evaluates whether to continue.
package engine

import (
	"context"

	"github.com/branchtale/gamebook-engine/pkg/state"
)

// Node is one step of the turn workflow. It receives the merged state so
// far and returns an update; the caller is responsible for tagging and
// merging the result (spec §4, §9). Grounded on the narrow
// interface-per-concern style of the teacher's pkg/scenario/conditionals.go
// (GameStateView), generalized here to a single interface that every node
// kind implements, so the fan-out and runNode drive any node the same way.
type Node interface {
	Run(ctx context.Context, s *state.GameState) (*state.GameState, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, s *state.GameState) (*state.GameState, error)

func (f NodeFunc) Run(ctx context.Context, s *state.GameState) (*state.GameState, error) {
	return f(ctx, s)
}

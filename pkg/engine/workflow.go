package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

// TurnLocker serializes turns per session_id (spec §5: "turns are strictly
// serialized per session_id ... different sessions run independently in
// parallel"). RedisStore satisfies this; an Engine built over a store that
// isn't lock-capable (e.g. a single-process FSStore-only setup) runs with
// no locker and relies on the caller to serialize its own turns.
type TurnLocker interface {
	AcquireTurnLock(ctx context.Context, sessionID, owner string) (bool, error)
	ReleaseTurnLock(ctx context.Context, sessionID, owner string) error
}

// lockPollInterval and lockWaitTimeout bound how long RunTurn waits for a
// contended session's turn lock before giving up, grounded on the teacher's
// worker loop re-queueing a request rather than blocking forever when a
// game lock is held (internal/worker/worker.go processNextRequest).
const (
	lockPollInterval = 25 * time.Millisecond
	lockWaitTimeout  = 10 * time.Second
)

// Engine wires the four nodes into the turn workflow described in spec §4.7:
// start -> (narrator || rules) -> decision -> trace -> end.
type Engine struct {
	store    cache.Store
	narrator *NarratorNode
	rules    *RulesNode
	decision *DecisionNode
	trace    *TraceNode
	locker   TurnLocker
	logger   *slog.Logger

	stateTTLSeconds int
}

// New builds an Engine. locker may be nil, in which case RunTurn performs no
// turn serialization at all, in-process or across processes. stateTTLSeconds <= 0 disables expiry on
// the persisted state snapshot.
func New(store cache.Store, locker TurnLocker, logger *slog.Logger, stateTTLSeconds int) *Engine {
	return &Engine{
		store:           store,
		narrator:        NewNarratorNode(store, logger),
		rules:           NewRulesNode(store, logger),
		decision:        NewDecisionNode(),
		trace:           NewTraceNode(store, logger),
		locker:          locker,
		logger:          logger,
		stateTTLSeconds: stateTTLSeconds,
	}
}

// StartInput is the shape accepted by Start: either a caller-supplied
// GameState's worth of fields, or a bare mapping carrying next_section from
// a prior turn's decision (spec §4.7's "the input carries next_section,
// rename it to section_number" one-shot migration).
type StartInput struct {
	GameID        string
	SessionID     string
	SectionNumber int
	// NextSection, when positive, overrides SectionNumber: it represents a
	// prior turn's decision.next_section being fed back in as this turn's
	// section pointer.
	NextSection int
	PlayerInput string
	Character   *state.Character
}

// Start assigns identifiers (generating session_id/game_id only when the
// caller left them empty), migrates a carried-over next_section into
// section_number, and returns the initial GameState for a turn. Grounded on
// spec §4.7 "start" and the original's workflow_manager.start_workflow.
func (e *Engine) Start(ctx context.Context, in StartInput) (*state.GameState, error) {
	section := in.SectionNumber
	if in.NextSection > 0 {
		section = in.NextSection
	}

	s := state.CreateInitialState(in.GameID, in.SessionID, section)
	s.PlayerInput = in.PlayerInput
	s.Character = in.Character
	s.CreatedAt = nowUTC()
	s.UpdatedAt = s.CreatedAt
	s.Metadata = map[string]any{"node": "start"}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("engine: start: %w", err)
	}

	if err := e.saveState(ctx, s); err != nil {
		e.logger.Warn("start: state save failed", "game_id", s.GameID, "error", err)
	}

	return s, nil
}

// RunTurn advances s by one turn: narrator and rules run concurrently on
// s.SectionNumber, their outputs fan in, decision resolves the next step,
// trace records it, and the final state is persisted before being returned.
// Turns for the same SessionID are serialized via the configured TurnLocker;
// different sessions proceed independently (spec §5).
func (e *Engine) RunTurn(ctx context.Context, s *state.GameState) (final *state.GameState, err error) {
	if s == nil {
		return nil, fmt.Errorf("engine: run turn: nil game state")
	}

	// A panicking node must not take the whole process down with it, just as
	// the teacher's worker loop logs and continues rather than crashing
	// (internal/worker/worker.go Start's recover-free loop body is itself
	// wrapped by processNextRequest's error return; here a node panic is
	// converted the same way a node error is).
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("node panicked mid-turn", "session_id", s.SessionID, "panic", r)
			final, err = e.finishWithError(ctx, s, fmt.Errorf("node panic: %v", r))
		}
	}()

	if e.locker != nil {
		owner := uuid.NewString()
		if err := e.acquireLock(ctx, s.SessionID, owner); err != nil {
			return nil, err
		}
		defer func() {
			if err := e.locker.ReleaseTurnLock(context.WithoutCancel(ctx), s.SessionID, owner); err != nil {
				e.logger.Warn("turn lock release failed", "session_id", s.SessionID, "error", err)
			}
		}()
	}

	merged, err := e.fanOutNarratorRules(ctx, s)
	if err != nil {
		return e.finishWithError(ctx, s, err)
	}
	if verr := merged.Validate(); verr != nil {
		return e.finishWithError(ctx, merged, verr)
	}

	merged, err = e.runNode(ctx, merged, state.TagDecision, e.decision)
	if err != nil {
		return e.finishWithError(ctx, merged, err)
	}

	final = e.runTrace(ctx, merged)
	final.ShouldContinue = final.DeriveShouldContinue()
	final.UpdatedAt = nowUTC()

	if verr := final.Validate(); verr != nil && final.Error == "" {
		final.Error = verr.Error()
		final.ShouldContinue = false
	}

	if err := e.saveState(ctx, final); err != nil {
		e.logger.Warn("run turn: state save failed", "game_id", final.GameID, "error", err)
	}

	if final.Error != "" {
		return final, fmt.Errorf("engine: run turn: %s", final.Error)
	}
	return final, nil
}

// fanOutNarratorRules runs narrator and rules concurrently on the same
// section_number and merges both outputs into s before decision runs (spec
// §4.7, §5: "the narrator and rules outputs are merged before decision
// runs; there is no interleaving visible to decision"). A node that raises
// a hard error (e.g. a storage backend failure, as opposed to the
// recoverable error sub-models the nodes build themselves) is folded into
// an error Narrative/Rules so the other node's output still reaches
// decision (spec §8 scenario 6). If ctx is cancelled before both complete,
// partial sub-models are discarded and the turn fails outright.
func (e *Engine) fanOutNarratorRules(ctx context.Context, s *state.GameState) (*state.GameState, error) {
	type result struct {
		update *state.GameState
		tag    state.Tag
		err    error
	}

	results := make(chan result, 2)

	run := func(tag state.Tag, n Node) {
		// recover here, not just in RunTurn: a panic on this goroutine would
		// otherwise crash the whole process rather than fail one turn.
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("node panicked mid-turn", "node", tag, "panic", r)
				results <- result{tag: tag, err: fmt.Errorf("node panic: %v", r)}
			}
		}()
		update, err := n.Run(ctx, s)
		results <- result{update: update, tag: tag, err: err}
	}

	go run(state.TagNarrator, e.narrator)
	go run(state.TagRules, e.rules)

	merged := s
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				r.update = errorUpdate(s.SectionNumber, r.tag, r.err)
			}
			merged = merged.WithNodeUpdates(r.tag, r.update)
		case <-ctx.Done():
			// Cancelled before both nodes finished: discard whatever has
			// merged so far rather than advancing decision on a partial
			// section's worth of sub-models.
			return nil, ctx.Err()
		}
	}

	return merged, nil
}

// errorUpdate builds the error sub-model a node would have produced itself
// had the failure been recoverable, so a hard error from one of narrator or
// rules doesn't discard the other's successful output.
func errorUpdate(section int, tag state.Tag, err error) *state.GameState {
	switch tag {
	case state.TagRules:
		return &state.GameState{SectionNumber: section, Rules: &state.Rules{
			SectionNumber: section,
			SourceType:    state.SourceError,
			Error:         err.Error(),
		}}
	default:
		return &state.GameState{SectionNumber: section, Narrative: &state.Narrative{
			SectionNumber: section,
			SourceType:    state.SourceError,
			Error:         err.Error(),
		}}
	}
}

// runNode runs a single node and folds its output into s under tag.
func (e *Engine) runNode(ctx context.Context, s *state.GameState, tag state.Tag, n Node) (*state.GameState, error) {
	update, err := n.Run(ctx, s)
	if err != nil {
		return s, err
	}
	return s.WithNodeUpdates(tag, update), nil
}

// runTrace invokes the trace node and folds its result in, logging rather
// than failing the turn on error: trace is the last writer before end.
// TraceNode.Run logs its own persistence failures and does not record them
// on the returned state.
func (e *Engine) runTrace(ctx context.Context, s *state.GameState) *state.GameState {
	update, err := e.trace.Run(ctx, s)
	if err != nil {
		e.logger.Warn("trace node failed", "session_id", s.SessionID, "error", err)
		return s
	}
	return s.WithNodeUpdates(state.TagTrace, update)
}

// finishWithError produces an error state via state.CreateErrorState and
// still attempts trace, "to record the failure when feasible" (spec §4.7
// Failure handling), before persisting and returning it.
func (e *Engine) finishWithError(ctx context.Context, s *state.GameState, cause error) (*state.GameState, error) {
	errState := state.CreateErrorState(cause.Error(), s.GameID, s.SessionID, s.SectionNumber, s)
	errState.ShouldContinue = false
	errState.UpdatedAt = nowUTC()

	final := e.runTrace(ctx, errState)

	if err := e.saveState(ctx, final); err != nil {
		e.logger.Warn("finish with error: state save failed", "game_id", final.GameID, "error", err)
	}

	return final, fmt.Errorf("engine: run turn: %w", cause)
}

// acquireLock polls AcquireTurnLock until it succeeds or lockWaitTimeout
// elapses, grounded on the teacher's game-lock contention handling (a
// blocked caller retries rather than failing on the first contended
// attempt).
func (e *Engine) acquireLock(ctx context.Context, sessionID, owner string) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		ok, err := e.locker.AcquireTurnLock(ctx, sessionID, owner)
		if err != nil {
			return fmt.Errorf("engine: acquire turn lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("engine: turn lock for session %s is held by another turn", sessionID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// saveState persists the latest GameState snapshot under the state
// namespace, keyed by game id, per spec §4.1's per-game state namespace.
func (e *Engine) saveState(ctx context.Context, s *state.GameState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("engine: marshal state: %w", err)
	}

	if ttlStore, ok := e.store.(cache.TTLStore); ok && e.stateTTLSeconds > 0 {
		return ttlStore.SaveCachedTTL(ctx, cache.NamespaceState, s.GameID, data, e.stateTTLSeconds)
	}
	return e.store.SaveCached(ctx, cache.NamespaceState, s.GameID, data)
}

// LoadState retrieves the most recently persisted GameState for gameID, for
// resuming a session across process restarts.
func (e *Engine) LoadState(ctx context.Context, gameID string) (*state.GameState, bool, error) {
	data, ok, err := e.store.GetCached(ctx, cache.NamespaceState, gameID)
	if err != nil {
		return nil, false, fmt.Errorf("engine: load state: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var s state.GameState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("engine: unmarshal state: %w", err)
	}
	return &s, true, nil
}

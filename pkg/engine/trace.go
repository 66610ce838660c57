package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

// TraceNode appends the turn's outcome to the session's Trace and persists
// both the current snapshot and the rolling history, grounded on spec §4.5
// and the original's cache_manager.save_trace (current trace_state.json
// plus a standing history.json).
type TraceNode struct {
	store  cache.Store
	logger *slog.Logger
}

func NewTraceNode(store cache.Store, logger *slog.Logger) *TraceNode {
	return &TraceNode{store: store, logger: logger}
}

var _ Node = (*TraceNode)(nil)

func (n *TraceNode) Run(ctx context.Context, s *state.GameState) (*state.GameState, error) {
	section := s.SectionNumber
	prev := s.Trace
	if prev == nil {
		prev = &state.Trace{GameID: s.GameID, SessionID: s.SessionID, SectionNumber: section, StartTime: nowUTC()}
	}

	action, hasAction := deriveAction(s)

	var next *state.Trace
	if hasAction {
		next = appendAction(prev, action)
	} else {
		cp := *prev
		next = &cp
	}

	next.SectionNumber = section
	next.Character = s.Character
	if s.Error != "" {
		// An error-bearing trace must not also carry current_narrative/
		// current_rules (spec §3 Trace invariant).
		next.Error = s.Error
		next.CurrentNarrative = nil
		next.CurrentRules = nil
	} else {
		next.Error = ""
		next.CurrentNarrative = s.Narrative
		next.CurrentRules = s.Rules
	}

	if err := n.persist(ctx, s.GameID, s.SessionID, next); err != nil {
		n.logger.Warn("trace persistence failed", "session_id", s.SessionID, "error", err)
	}

	return &state.GameState{
		SectionNumber: section,
		Trace:         next.WithTag(state.TagTrace),
	}, nil
}

// appendAction copies the prior trace and appends action, so the prior
// Trace's History slice is never mutated (spec §5, "Trace.history is
// append-only...constructing a new Trace copies the prior history list").
func appendAction(prev *state.Trace, action state.Action) *state.Trace {
	cp := *prev
	cp.History = append(append([]state.Action(nil), prev.History...), action)
	return &cp
}

// deriveAction classifies the turn just completed into an Action, so the
// trace records what actually happened rather than the caller needing to
// supply it explicitly.
func deriveAction(s *state.GameState) (state.Action, bool) {
	switch {
	case s.Error != "":
		return state.Action{
			Timestamp:  nowUTC(),
			Section:    s.SectionNumber,
			ActionType: state.ActionError,
			Details:    map[string]any{"error": s.Error},
		}, true
	case s.Decision != nil && s.Decision.NextSection > 0:
		return state.Action{
			Timestamp:  nowUTC(),
			Section:    s.SectionNumber,
			ActionType: state.ActionSectionChange,
			Details:    map[string]any{"next_section": s.Decision.NextSection},
		}, true
	case s.PlayerInput != "":
		return state.Action{
			Timestamp:  nowUTC(),
			Section:    s.SectionNumber,
			ActionType: state.ActionUserInput,
			Details:    map[string]any{"input": s.PlayerInput},
		}, true
	default:
		return state.Action{}, false
	}
}

func (n *TraceNode) persist(ctx context.Context, gameID, sessionID string, trace *state.Trace) error {
	data, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("engine: marshal trace: %w", err)
	}

	currentKey := fmt.Sprintf("%s/%s", gameID, sessionID)
	if err := n.store.SaveCached(ctx, cache.NamespaceTrace, currentKey, data); err != nil {
		return fmt.Errorf("engine: save current trace: %w", err)
	}

	historyKey := fmt.Sprintf("%s/history/%s", gameID, sessionID)
	if err := n.store.SaveCached(ctx, cache.NamespaceTrace, historyKey, data); err != nil {
		return fmt.Errorf("engine: save rolling trace: %w", err)
	}

	return nil
}

package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

func TestTraceNode_InitializesWhenNoPriorTrace(t *testing.T) {
	store := cache.NewMockStore()
	n := NewTraceNode(store, discardLogger())

	s := &state.GameState{
		GameID: "g1", SessionID: "s1", SectionNumber: 1,
		Narrative: &state.Narrative{SectionNumber: 1, Content: "You arrive.", SourceType: state.SourceProcessed},
		Rules:     &state.Rules{SectionNumber: 1, NextAction: state.NextActionNone, SourceType: state.SourceProcessed},
	}

	update, err := n.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if update.Trace == nil {
		t.Fatalf("expected a trace to be initialized")
	}
	if update.Trace.CurrentNarrative != s.Narrative || update.Trace.CurrentRules != s.Rules {
		t.Errorf("expected current narrative/rules to carry through, got %+v", update.Trace)
	}
	if len(update.Trace.History) != 0 {
		t.Errorf("expected no history entry without player input or a resolved decision, got %+v", update.Trace.History)
	}
}

func TestTraceNode_AppendsWithoutMutatingPriorHistory(t *testing.T) {
	store := cache.NewMockStore()
	n := NewTraceNode(store, discardLogger())

	prev := &state.Trace{GameID: "g1", SessionID: "s1", SectionNumber: 1, StartTime: nowUTC()}

	first, err := n.Run(context.Background(), &state.GameState{
		GameID: "g1", SessionID: "s1", SectionNumber: 1, Trace: prev,
		Decision: &state.Decision{SectionNumber: 1, NextSection: 2, AwaitingAction: state.AwaitingNone},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(prev.History) != 0 {
		t.Fatalf("prior trace's history was mutated: %+v", prev.History)
	}
	if len(first.Trace.History) != 1 || first.Trace.History[0].ActionType != state.ActionSectionChange {
		t.Fatalf("expected one section_change action, got %+v", first.Trace.History)
	}

	second, err := n.Run(context.Background(), &state.GameState{
		GameID: "g1", SessionID: "s1", SectionNumber: 2, Trace: first.Trace,
		PlayerInput: "2",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(first.Trace.History) != 1 {
		t.Fatalf("second Run() mutated the trace it was derived from: %+v", first.Trace.History)
	}
	if len(second.Trace.History) != 2 || second.Trace.History[1].ActionType != state.ActionUserInput {
		t.Fatalf("expected two actions with the second a user_input, got %+v", second.Trace.History)
	}
}

func TestTraceNode_ErrorClearsCurrentNarrativeAndRules(t *testing.T) {
	store := cache.NewMockStore()
	n := NewTraceNode(store, discardLogger())

	s := &state.GameState{
		GameID: "g1", SessionID: "s1", SectionNumber: 3,
		Narrative: &state.Narrative{SectionNumber: 3, Content: "ok", SourceType: state.SourceProcessed},
		Error:     "rules backend unavailable",
	}

	update, err := n.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if update.Trace.CurrentNarrative != nil || update.Trace.CurrentRules != nil {
		t.Errorf("error-bearing trace must not carry current narrative/rules, got %+v", update.Trace)
	}
	if update.Trace.Error != s.Error {
		t.Errorf("trace.error = %q, want %q", update.Trace.Error, s.Error)
	}
	if len(update.Trace.History) != 1 || update.Trace.History[0].ActionType != state.ActionError {
		t.Fatalf("expected one error action, got %+v", update.Trace.History)
	}
	if err := update.Trace.Validate(); err != nil {
		t.Errorf("produced trace violates its own invariants: %v", err)
	}
}

func TestTraceNode_PersistsCurrentAndRollingHistoryKeys(t *testing.T) {
	store := cache.NewMockStore()
	n := NewTraceNode(store, discardLogger())

	_, err := n.Run(context.Background(), &state.GameState{GameID: "g7", SessionID: "s9", SectionNumber: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantCurrent := fmt.Sprintf("%s/%s", "g7", "s9")
	wantHistory := fmt.Sprintf("%s/history/%s", "g7", "s9")

	var sawCurrent, sawHistory bool
	for _, call := range store.SaveCachedCalls {
		if call.Namespace != cache.NamespaceTrace {
			continue
		}
		switch call.Key {
		case wantCurrent:
			sawCurrent = true
		case wantHistory:
			sawHistory = true
		}
	}
	if !sawCurrent || !sawHistory {
		t.Errorf("expected saves to both %q and %q, got %+v", wantCurrent, wantHistory, store.SaveCachedCalls)
	}
}

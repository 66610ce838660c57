package state

import "testing"

func TestMerge_PreservesIdentifiersAcrossEmptyUpdate(t *testing.T) {
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1}
	update := &GameState{SectionNumber: 1}

	got := Merge(prev, update)

	if got.GameID != "g1" || got.SessionID != "s1" {
		t.Fatalf("expected identifiers preserved, got game_id=%q session_id=%q", got.GameID, got.SessionID)
	}
}

func TestMerge_NarrativeOnlyTakenFromNarratorNode(t *testing.T) {
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1}

	wrongSource := &GameState{
		SectionNumber: 1,
		Narrative:     (&Narrative{SectionNumber: 1, Content: "from rules node"}).WithTag(TagRules),
	}
	got := Merge(prev, wrongSource)
	if got.Narrative != nil {
		t.Fatalf("narrative update tagged rules must not be adopted, got %+v", got.Narrative)
	}

	rightSource := &GameState{
		SectionNumber: 1,
		Narrative:     (&Narrative{SectionNumber: 1, Content: "from narrator node"}).WithTag(TagNarrator),
	}
	got = Merge(prev, rightSource)
	if got.Narrative == nil || got.Narrative.Content != "from narrator node" {
		t.Fatalf("expected narrator-tagged update adopted, got %+v", got.Narrative)
	}
}

func TestMerge_DecisionFoldsNonDecisionUpdateIntoExisting(t *testing.T) {
	existing := &Decision{SectionNumber: 1, NextSection: 2, AwaitingAction: AwaitingNone}
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1, Decision: existing}

	update := &GameState{
		SectionNumber: 1,
		Decision:      (&Decision{SectionNumber: 1, AwaitingAction: AwaitingUserInput}).WithTag(TagNarrator),
	}

	got := Merge(prev, update)
	if got.Decision != existing {
		t.Fatalf("a decision update not tagged decision must not replace the existing decision")
	}
}

func TestMerge_DecisionNodeOwnOutputWins(t *testing.T) {
	prev := &GameState{
		GameID: "g1", SessionID: "s1", SectionNumber: 1,
		Decision: &Decision{SectionNumber: 1, AwaitingAction: AwaitingUserInput},
	}
	update := &GameState{
		SectionNumber: 1,
		Decision:      (&Decision{SectionNumber: 1, AwaitingAction: AwaitingNone, NextSection: 2}).WithTag(TagDecision),
	}

	got := Merge(prev, update)
	if got.Decision == nil || got.Decision.NextSection != 2 {
		t.Fatalf("expected decision node's own output to win, got %+v", got.Decision)
	}
}

func TestMerge_PlayerInputSurvivesAnUpdateThatDoesNotTouchIt(t *testing.T) {
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1, PlayerInput: "go north"}
	update := &GameState{SectionNumber: 1}

	got := Merge(prev, update)
	if got.PlayerInput != "go north" {
		t.Fatalf("expected player_input preserved, got %q", got.PlayerInput)
	}
}

func TestMerge_ClearPlayerInputOverridesPreviousValue(t *testing.T) {
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1, PlayerInput: "go north"}
	update := &GameState{SectionNumber: 1, PlayerInput: "", ClearPlayerInput: true}

	got := Merge(prev, update)
	if got.PlayerInput != "" {
		t.Fatalf("expected player_input cleared, got %q", got.PlayerInput)
	}
}

func TestMerge_ErrorKeepsFirstNonEmpty(t *testing.T) {
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1, Error: "first failure"}
	update := &GameState{SectionNumber: 1, Error: "second failure"}

	got := Merge(prev, update)
	if got.Error != "first failure" {
		t.Fatalf("expected first error preserved, got %q", got.Error)
	}
}

func TestMerge_TraceFromOtherNodeOnlyRefreshesSnapshot(t *testing.T) {
	prevTrace := &Trace{GameID: "g1", SessionID: "s1", SectionNumber: 1, History: []Action{{Section: 1, ActionType: ActionSectionChange}}}
	prev := &GameState{GameID: "g1", SessionID: "s1", SectionNumber: 1, Trace: prevTrace}

	narrative := &Narrative{SectionNumber: 1, Content: "new text"}
	update := &GameState{
		SectionNumber: 1,
		Trace:         (&Trace{CurrentNarrative: narrative}).WithTag(TagNarrator),
	}

	got := Merge(prev, update)
	if got.Trace == nil || len(got.Trace.History) != 1 {
		t.Fatalf("expected existing history preserved, got %+v", got.Trace)
	}
	if got.Trace.CurrentNarrative != narrative {
		t.Fatalf("expected current_narrative snapshot refreshed")
	}
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchtale/gamebook-engine/pkg/state"
)

func rulesWithChoices(next state.NextActionType, needsDice, needsInput bool, choices ...state.Choice) *state.Rules {
	return &state.Rules{
		SectionNumber:     1,
		DiceType:          state.DiceChance,
		NeedsDice:         needsDice,
		NeedsUserResponse: needsInput,
		NextAction:        next,
		Choices:           choices,
		SourceType:        state.SourceProcessed,
	}
}

// TestDecisionNode_OrderedResolution exercises end-to-end scenario 4: with
// next_action=user_first and needs_dice=true, the decision awaits user
// input first, then dice, then resolves once both are present.
func TestDecisionNode_OrderedResolution(t *testing.T) {
	rules := rulesWithChoices(state.NextActionUserFirst, true, true,
		state.Choice{Text: "Proceed", Type: state.ChoiceDirect, TargetSection: 2})

	n := NewDecisionNode()

	// Turn 1: no player_input.
	update, err := n.Run(context.Background(), &state.GameState{SectionNumber: 1, Rules: rules})
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingUserInput, update.Decision.AwaitingAction, "turn 1")

	// Turn 2: player_input present, no dice result yet.
	update, err = n.Run(context.Background(), &state.GameState{SectionNumber: 1, Rules: rules, PlayerInput: "1"})
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingDiceRoll, update.Decision.AwaitingAction, "turn 2")

	// Turn 3: both present.
	update, err = n.Run(context.Background(), &state.GameState{
		SectionNumber: 1, Rules: rules, PlayerInput: "1",
		Metadata: map[string]any{MetadataDiceResult: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingNone, update.Decision.AwaitingAction, "turn 3")
	assert.Equal(t, 2, update.Decision.NextSection, "turn 3")
}

// TestDecisionNode_DiceTakesPrecedenceWhenUnordered exercises the Open
// Question decision: with next_action=none and both dice and input needed,
// dice is awaited first.
func TestDecisionNode_DiceTakesPrecedenceWhenUnordered(t *testing.T) {
	rules := rulesWithChoices(state.NextActionNone, true, true,
		state.Choice{Text: "Proceed", Type: state.ChoiceDirect, TargetSection: 2})

	n := NewDecisionNode()
	update, err := n.Run(context.Background(), &state.GameState{SectionNumber: 1, Rules: rules, PlayerInput: "1"})
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingDiceRoll, update.Decision.AwaitingAction,
		"dice should take priority over input when next_action is unordered")
}

// TestDecisionNode_ResolvesDiceChoiceByOutcomeLabel exercises scenario 3: a
// dice-gated branch resolving once the rolled result's outcome bucket
// matches one of the choice's labeled outcomes (spec §4.4 step 6).
func TestDecisionNode_ResolvesDiceChoiceByOutcomeLabel(t *testing.T) {
	rules := rulesWithChoices(state.NextActionDiceFirst, true, false,
		state.Choice{
			Text: "Resolve the combat check", Type: state.ChoiceDice, DiceType: state.DiceCombat,
			DiceResults: map[string]int{"success": 145, "failure": 278},
		})

	n := NewDecisionNode()

	update, err := n.Run(context.Background(), &state.GameState{
		SectionNumber: 1, Rules: rules,
		Metadata: map[string]any{MetadataDiceResult: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 145, update.Decision.NextSection, "a roll of 4 on a combat check succeeds")

	update, err = n.Run(context.Background(), &state.GameState{
		SectionNumber: 1, Rules: rules,
		Metadata: map[string]any{MetadataDiceResult: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 278, update.Decision.NextSection, "a roll of 2 on a combat check fails")
}

// TestResolveChoice_PrefersExactTextOverOrdinal exercises spec §4.4's
// tie-break: "Choice matching prefers exact text match over index". Input
// "2" is both the text of choices[0] and a valid 1-based ordinal pointing
// at choices[1]; the text match must win.
func TestResolveChoice_PrefersExactTextOverOrdinal(t *testing.T) {
	choices := []state.Choice{
		{Text: "2", Type: state.ChoiceDirect, TargetSection: 10},
		{Text: "Retreat", Type: state.ChoiceDirect, TargetSection: 20},
	}

	choice, err := resolveChoice(choices, "2", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 10, choice.TargetSection)
}

func TestDecisionNode_RulesErrorProducesErrorDecision(t *testing.T) {
	n := NewDecisionNode()
	update, err := n.Run(context.Background(), &state.GameState{
		SectionNumber: 1,
		Rules:         &state.Rules{SectionNumber: 1, SourceType: state.SourceError, Error: "extraction failed"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, update.Decision.Error)
	assert.NotEmpty(t, update.Error)
}

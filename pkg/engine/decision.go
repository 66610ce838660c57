package engine

import (
	"context"
	"fmt"

	"github.com/branchtale/gamebook-engine/pkg/state"
	"github.com/branchtale/gamebook-engine/pkg/textnorm"
)

// DecisionNode resolves the merged narrator+rules state into a Decision,
// grounded on spec §4.4 and the original's decision_agent invoke(): ordered
// checks for an explicit next_action, dice-before-input when no order is
// specified, then resolving the player's choice against rules.choices.
//
// Open Question decision: when rules.next_action is unset and both a dice
// roll and user input are needed, dice takes priority (matches the
// original's invoke(), which checks needs_dice before needs_user_response).
type DecisionNode struct{}

func NewDecisionNode() *DecisionNode { return &DecisionNode{} }

var _ Node = (*DecisionNode)(nil)

// MetadataDiceResult is the metadata key under which a dice result, when set
// on the input GameState, satisfies an awaiting_action=dice_roll gate, per
// spec §4.4.
const MetadataDiceResult = "dice_result"

func (d *DecisionNode) Run(_ context.Context, s *state.GameState) (*state.GameState, error) {
	section := s.SectionNumber

	if s.Rules == nil || s.Rules.SourceType == state.SourceError {
		msg := "no rules available for decision"
		if s.Rules != nil && s.Rules.Error != "" {
			msg = s.Rules.Error
		}
		return errorDecision(section, msg), nil
	}
	rules := s.Rules

	diceResult, haveDice := metadataInt(s.Metadata, MetadataDiceResult)
	haveInput := s.PlayerInput != ""

	switch rules.NextAction {
	case state.NextActionUserFirst:
		if !haveInput {
			return awaitingDecision(section, state.AwaitingUserInput, rules.Conditions), nil
		}
		if rules.NeedsDice && !haveDice {
			return awaitingDecision(section, state.AwaitingDiceRoll, rules.Conditions), nil
		}
	case state.NextActionDiceFirst:
		if !haveDice {
			return awaitingDecision(section, state.AwaitingDiceRoll, rules.Conditions), nil
		}
	default:
		if rules.NeedsDice && !haveDice {
			return awaitingDecision(section, state.AwaitingDiceRoll, rules.Conditions), nil
		}
		if rules.NeedsUserResponse && !haveInput {
			return awaitingDecision(section, state.AwaitingUserInput, rules.Conditions), nil
		}
	}

	return d.analyzeDecision(section, rules, s.PlayerInput, diceResult, haveDice), nil
}

// analyzeDecision resolves a choice now that every required input is
// present, grounded on the original's ainvoke() 1-indexed choice
// resolution, generalized to also match by the choice's own text. When a
// choice resolves it clears player_input (Open Question (c)): the merge
// layer treats this as an explicit clear, not a missing update (see
// state.Merge). The error decision returned when resolution fails leaves
// player_input as it was.
func (d *DecisionNode) analyzeDecision(section int, rules *state.Rules, input string, diceResult int, haveDice bool) *state.GameState {
	choice, err := resolveChoice(rules.Choices, input, diceResult, haveDice)
	if err != nil {
		return errorDecision(section, err.Error())
	}

	next, err := resolveNextSection(choice, diceResult, haveDice)
	if err != nil {
		return errorDecision(section, err.Error())
	}

	decision := (&state.Decision{
		SectionNumber:  section,
		NextSection:    next,
		AwaitingAction: state.AwaitingNone,
		Conditions:     choice.Conditions,
		Timestamp:      nowUTC(),
	}).WithTag(state.TagDecision)

	return &state.GameState{
		SectionNumber:    section,
		Decision:         decision,
		PlayerInput:      "",
		ClearPlayerInput: true,
	}
}

// resolveNextSection picks the section a resolved choice leads to, per spec
// §4.4 step 6: a direct target_section wins outright; a dice/mixed choice
// with no target_section instead looks up dice_results[outcome_bucket].
func resolveNextSection(choice state.Choice, diceResult int, haveDice bool) (int, error) {
	if choice.TargetSection > 0 {
		return choice.TargetSection, nil
	}
	if choice.NeedsDice() {
		if !haveDice {
			return 0, fmt.Errorf("choice %q requires a dice result", choice.Text)
		}
		bucket := diceOutcomeBucket(choice.DiceType, diceResult)
		target, ok := choice.DiceResults[bucket]
		if !ok {
			return 0, fmt.Errorf("dice outcome %q has no mapped section for choice %q", bucket, choice.Text)
		}
		return target, nil
	}
	return 0, fmt.Errorf("choice %q has no resolvable next section", choice.Text)
}

// diceOutcomeBucket derives the "success"/"failure" label a rolled value
// maps to, per spec §4.4 step 6 ("bucket is derived from the dice value and
// type"). The original resolved this with an LLM judge; lacking that here,
// a combat check succeeds on the higher half of a d6 (beating an opposed
// roll more often than not) and a chance check succeeds on the lower half
// (the original's "test your luck" convention of rolling under a target).
func diceOutcomeBucket(diceType state.DiceType, value int) string {
	if diceType == state.DiceCombat {
		if value >= 4 {
			return "success"
		}
		return "failure"
	}
	if value <= 3 {
		return "success"
	}
	return "failure"
}

// resolveChoice picks the Choice matching the player's input, preferring an
// exact text match over a 1-indexed ordinal per spec §4.4's tie-break, then
// falling back to a dice choice whose outcome bucket the rolled result
// satisfies.
func resolveChoice(choices []state.Choice, input string, diceResult int, haveDice bool) (state.Choice, error) {
	if len(choices) == 0 {
		return state.Choice{}, fmt.Errorf("no choices available")
	}

	if input != "" {
		for _, c := range choices {
			if textnorm.Equal(c.Text, input) {
				return c, nil
			}
		}
	}

	if idx, ok := ordinal(input); ok {
		if idx < 1 || idx > len(choices) {
			return state.Choice{}, fmt.Errorf("invalid choice index %d", idx)
		}
		return choices[idx-1], nil
	}

	if haveDice {
		for _, c := range choices {
			if !c.NeedsDice() {
				continue
			}
			bucket := diceOutcomeBucket(c.DiceType, diceResult)
			if _, ok := c.DiceResults[bucket]; ok {
				return c, nil
			}
		}
	}

	if len(choices) == 1 {
		return choices[0], nil
	}

	return state.Choice{}, fmt.Errorf("could not resolve a choice from input %q", input)
}

func ordinal(input string) (int, bool) {
	if input == "" {
		return 0, false
	}
	n := 0
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func metadataInt(meta map[string]any, key string) (int, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func awaitingDecision(section int, awaiting state.AwaitingAction, conditions []string) *state.GameState {
	decision := (&state.Decision{
		SectionNumber:  section,
		AwaitingAction: awaiting,
		Conditions:     conditions,
		Timestamp:      nowUTC(),
	}).WithTag(state.TagDecision)
	return &state.GameState{SectionNumber: section, Decision: decision}
}

func errorDecision(section int, msg string) *state.GameState {
	decision := (&state.Decision{
		SectionNumber:  section,
		AwaitingAction: state.AwaitingNone,
		Timestamp:      nowUTC(),
		Error:          msg,
	}).WithTag(state.TagDecision)
	return &state.GameState{SectionNumber: section, Decision: decision, Error: msg}
}

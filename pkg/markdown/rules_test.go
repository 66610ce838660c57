package markdown

import (
	"testing"
	"time"

	"github.com/branchtale/gamebook-engine/pkg/state"
)

func sampleRules() *state.Rules {
	return &state.Rules{
		SectionNumber:     12,
		DiceType:          state.DiceCombat,
		NeedsDice:         true,
		NeedsUserResponse: true,
		NextAction:        state.NextActionDiceFirst,
		Conditions:        []string{"carries a sword"},
		Choices: []state.Choice{
			{
				Text:          "Fight the guard",
				Type:          state.ChoiceDice,
				DiceType:      state.DiceCombat,
				DiceResults:   map[string]int{"success": 145, "failure": 278},
				TargetSection: 15,
			},
			{
				Text:          "Flee north",
				Type:          state.ChoiceDirect,
				TargetSection: 20,
			},
		},
		RulesSummary: "A combat roll is required to proceed.",
		Source:       "analysis",
		SourceType:   state.SourceProcessed,
		LastUpdate:   time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestSerializeRules_RoundTrip(t *testing.T) {
	original := sampleRules()
	doc := SerializeRules(original)

	parsed, ok, err := ParseRules(doc)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if !ok {
		t.Fatal("expected parse to succeed")
	}

	if parsed.SectionNumber != original.SectionNumber {
		t.Errorf("section_number = %d, want %d", parsed.SectionNumber, original.SectionNumber)
	}
	if parsed.DiceType != original.DiceType {
		t.Errorf("dice_type = %q, want %q", parsed.DiceType, original.DiceType)
	}
	if parsed.NeedsDice != original.NeedsDice {
		t.Errorf("needs_dice = %v, want %v", parsed.NeedsDice, original.NeedsDice)
	}
	if parsed.NextAction != original.NextAction {
		t.Errorf("next_action = %q, want %q", parsed.NextAction, original.NextAction)
	}
	if len(parsed.Choices) != len(original.Choices) {
		t.Fatalf("choices count = %d, want %d", len(parsed.Choices), len(original.Choices))
	}
	if parsed.Choices[0].Text != "Fight the guard" || parsed.Choices[0].DiceResults["success"] != 145 {
		t.Errorf("choice[0] = %+v", parsed.Choices[0])
	}
	if parsed.Choices[1].TargetSection != 20 {
		t.Errorf("choice[1].target_section = %d, want 20", parsed.Choices[1].TargetSection)
	}
	if parsed.RulesSummary != original.RulesSummary {
		t.Errorf("rules_summary = %q, want %q", parsed.RulesSummary, original.RulesSummary)
	}

	reserialized := SerializeRules(parsed)
	if reserialized != doc {
		t.Errorf("serialize(parse(serialize(r))) != serialize(r)\ngot:\n%s\nwant:\n%s", reserialized, doc)
	}
}

func TestParseRules_MissingSectionIsCacheMiss(t *testing.T) {
	doc := `# Rules for Section 1

## Metadata
- Needs_Dice: false

## Choices

## Summary

## Error
`
	_, ok, err := ParseRules(doc)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if ok {
		t.Fatal("expected a parse failure (miss) when Analysis section is absent")
	}
}

func TestParseRules_NotARulesDocument(t *testing.T) {
	_, ok, err := ParseRules("just some narrative text")
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if ok {
		t.Fatal("expected miss for non-rules content")
	}
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/markdown"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

// Keyword cues for keyword-directed structural extraction, grounded on the
// original's rules_agent (dice_keywords/combat_keywords/chance_keywords),
// translated to the English section text this module operates on.
var (
	diceKeywords   = []string{"roll the dice", "make a roll", "dice roll"}
	combatKeywords = []string{"combat", "fight", "battle", "defeat", "skill", "stamina"}
	chanceKeywords = []string{"luck", "test your luck", "luck test"}
)

var (
	sectionRefRe  = regexp.MustCompile(`(?i)(?:section|go to)\s+(\d+)`)
	choiceTokenRe = regexp.MustCompile(`\[\[(\d+)\]\]`)
)

// RulesNode produces the Rules for the current section, grounded on spec
// §4.3 and the original's rules_agent: cache check, dedicated rules-file
// preferred over the raw section text, keyword-directed extraction, then
// persist.
type RulesNode struct {
	store  cache.Store
	logger *slog.Logger
}

func NewRulesNode(store cache.Store, logger *slog.Logger) *RulesNode {
	return &RulesNode{store: store, logger: logger}
}

var _ Node = (*RulesNode)(nil)

func (n *RulesNode) Run(ctx context.Context, s *state.GameState) (*state.GameState, error) {
	section := s.SectionNumber
	key := strconv.Itoa(section)

	if cached, ok, err := n.store.GetCached(ctx, cache.NamespaceCachedRules, key); err != nil {
		n.logger.Warn("rules cache read failed, treating as miss", "section", section, "error", err)
	} else if ok {
		if rules, ok, err := markdown.ParseRules(string(cached)); err == nil && ok {
			return &state.GameState{
				SectionNumber: section,
				Rules:         rules.WithTag(state.TagRules),
			}, nil
		}
		n.logger.Warn("rules cache entry failed to parse, re-extracting", "section", section)
	}

	content, err := n.loadContent(ctx, section)
	if err != nil {
		return nil, fmt.Errorf("engine: rules load content for section %d: %w", section, err)
	}
	if content == "" {
		rules := (&state.Rules{
			SectionNumber: section,
			SourceType:    state.SourceError,
			Error:         fmt.Sprintf("no content available to extract rules for section %d", section),
		}).WithTag(state.TagRules)
		return &state.GameState{SectionNumber: section, Rules: rules}, nil
	}

	rules, err := extractRules(section, content)
	if err != nil {
		errRules := (&state.Rules{
			SectionNumber: section,
			SourceType:    state.SourceError,
			Error:         err.Error(),
		}).WithTag(state.TagRules)
		return &state.GameState{SectionNumber: section, Rules: errRules}, nil
	}

	if err := n.store.SaveCached(ctx, cache.NamespaceCachedRules, key, []byte(markdown.SerializeRules(rules))); err != nil {
		n.logger.Warn("rules cache save failed", "section", section, "error", err)
	}

	return &state.GameState{SectionNumber: section, Rules: rules.WithTag(state.TagRules)}, nil
}

// loadContent prefers a dedicated rules file over the narrator's raw
// section text, per spec §4.3 step 2.
func (n *RulesNode) loadContent(ctx context.Context, section int) (string, error) {
	rulesKey := fmt.Sprintf("section_%d_rule.md", section)
	if content, ok, err := n.store.LoadRaw(ctx, cache.NamespaceRules, rulesKey); err != nil {
		return "", err
	} else if ok {
		return content, nil
	}

	sectionKey := strconv.Itoa(section) + ".md"
	content, ok, err := n.store.LoadRaw(ctx, cache.NamespaceSections, sectionKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return content, nil
}

// extractRules performs the keyword-directed structural extraction from
// spec §4.3 step 3: dice cues, candidate next sections, and choice
// classification.
func extractRules(section int, content string) (*state.Rules, error) {
	lower := strings.ToLower(content)

	hasDice := containsAny(lower, diceKeywords)
	hasCombat := containsAny(lower, combatKeywords)
	hasChance := containsAny(lower, chanceKeywords)

	needsDice := hasDice || hasCombat || hasChance
	diceType := state.DiceNone
	if hasCombat {
		diceType = state.DiceCombat
	} else if hasChance {
		diceType = state.DiceChance
	} else if hasDice {
		diceType = state.DiceChance
	}

	nextSections := extractNextSections(content)
	if len(nextSections) == 0 {
		return nil, fmt.Errorf("no next-section references found in section %d content", section)
	}

	choices := buildChoices(nextSections, needsDice, diceType)

	rules := &state.Rules{
		SectionNumber:     section,
		DiceType:          diceType,
		NeedsDice:         needsDice,
		NeedsUserResponse: len(choices) > 0,
		NextAction:        state.NextActionNone,
		Choices:           choices,
		SourceType:        state.SourceProcessed,
		Source:            "analysis",
	}
	if needsDice && len(choices) <= 1 {
		rules.NextAction = state.NextActionDiceFirst
	} else if rules.NeedsUserResponse && needsDice {
		rules.NextAction = state.NextActionUserFirst
	}

	return rules, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// extractNextSections collects every candidate next-section number that
// appears after "section"/"go to" or inside a [[n]] token, de-duplicated:
// first the "section"/"go to" numbers in text order, then the [[n]] token
// numbers in text order.
func extractNextSections(content string) []int {
	seen := make(map[int]bool)
	var out []int

	add := func(raw string) {
		n, err := strconv.Atoi(raw)
		if err != nil || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	for _, m := range sectionRefRe.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	for _, m := range choiceTokenRe.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}

	return out
}

// buildChoices classifies the candidate next sections into Choices per spec
// §3. When the section needs a dice roll, the first two candidates are the
// roll's success/failure outcomes and fold into one dice Choice whose
// dice_results carries both labels (spec §3's "jet de combat" shape: one
// Choice, two labeled outcomes); any further candidates are plain direct
// choices. Without a second candidate, the dice choice only carries the
// success outcome. A section that doesn't need dice gets one direct choice
// per candidate.
func buildChoices(nextSections []int, needsDice bool, diceType state.DiceType) []state.Choice {
	if !needsDice {
		return directChoices(nextSections)
	}
	if len(nextSections) == 0 {
		return nil
	}

	dice := state.Choice{
		Text:        fmt.Sprintf("Resolve the %s check", diceType),
		Type:        state.ChoiceDice,
		DiceType:    diceType,
		DiceResults: map[string]int{"success": nextSections[0]},
	}
	if len(nextSections) >= 2 {
		dice.DiceResults["failure"] = nextSections[1]
		return append([]state.Choice{dice}, directChoices(nextSections[2:])...)
	}
	return []state.Choice{dice}
}

func directChoices(sections []int) []state.Choice {
	choices := make([]state.Choice, 0, len(sections))
	for _, target := range sections {
		choices = append(choices, state.Choice{
			Text:          fmt.Sprintf("Go to section %d", target),
			Type:          state.ChoiceDirect,
			TargetSection: target,
		})
	}
	return choices
}

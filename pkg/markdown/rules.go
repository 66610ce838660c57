package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/branchtale/gamebook-engine/pkg/state"
)

// requiredSections lists the five H2 blocks a cached rules document must
// carry (spec §6): missing any one is a parse failure, i.e. a cache miss.
var requiredSections = []string{"Metadata", "Analysis", "Choices", "Summary", "Error"}

var sectionHeadingRe = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
var titleRe = regexp.MustCompile(`(?m)^#\s+Rules for Section\s+(\d+)\s*$`)

// SerializeRules renders r as the structured cached-rules markdown document
// described in spec §6. The output is designed to round-trip through
// ParseRules exactly.
func SerializeRules(r *state.Rules) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rules for Section %d\n\n", r.SectionNumber)

	b.WriteString("## Metadata\n")
	fmt.Fprintf(&b, "- Needs_Dice: %t\n", r.NeedsDice)
	fmt.Fprintf(&b, "- Dice_Type: %s\n", orNone(string(r.DiceType)))
	fmt.Fprintf(&b, "- Needs_User_Response: %t\n", r.NeedsUserResponse)
	fmt.Fprintf(&b, "- Next_Action: %s\n", orNone(string(r.NextAction)))
	fmt.Fprintf(&b, "- Source_Type: %s\n", orNone(string(r.SourceType)))
	fmt.Fprintf(&b, "- Source: %s\n", orNone(r.Source))
	lastUpdate := r.LastUpdate
	if lastUpdate.IsZero() {
		lastUpdate = time.Unix(0, 0).UTC()
	}
	fmt.Fprintf(&b, "- Last_Update: %s\n\n", lastUpdate.UTC().Format(time.RFC3339))

	b.WriteString("## Analysis\n")
	if len(r.Conditions) > 0 {
		fmt.Fprintf(&b, "- Conditions: %s\n", strings.Join(r.Conditions, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Choices\n")
	for _, c := range r.Choices {
		b.WriteString(serializeChoice(c))
	}
	b.WriteString("\n")

	b.WriteString("## Summary\n")
	if r.RulesSummary != "" {
		b.WriteString(r.RulesSummary)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("## Error\n")
	if r.Error != "" {
		b.WriteString(r.Error)
		b.WriteString("\n")
	}

	return b.String()
}

func serializeChoice(c state.Choice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* %s (Type: %s)\n", c.Text, c.Type)
	if len(c.Conditions) > 0 {
		fmt.Fprintf(&b, "  - Conditions: %s\n", strings.Join(c.Conditions, ", "))
	}
	if c.DiceType != "" && c.DiceType != state.DiceNone {
		fmt.Fprintf(&b, "  - Dice_Type: %s\n", c.DiceType)
	}
	if len(c.DiceResults) > 0 {
		b.WriteString("  - Dice_Results: {")
		keys := make([]string, 0, len(c.DiceResults))
		for k := range c.DiceResults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "'%s': %d", k, c.DiceResults[k])
		}
		b.WriteString("}\n")
	}
	if c.TargetSection > 0 {
		fmt.Fprintf(&b, "  - Target: Section %d\n", c.TargetSection)
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// ParseRules parses a cached-rules document back into a Rules value. It
// returns ok=false (a cache miss, never an error) when the document is
// missing any of the five required H2 sections, per spec §6.
func ParseRules(doc string) (r *state.Rules, ok bool, err error) {
	titleMatch := titleRe.FindStringSubmatch(doc)
	if titleMatch == nil {
		return nil, false, nil
	}
	sectionNumber, err := strconv.Atoi(titleMatch[1])
	if err != nil {
		return nil, false, nil
	}

	blocks := splitSections(doc)
	for _, name := range requiredSections {
		if _, present := blocks[name]; !present {
			return nil, false, nil
		}
	}

	rules := &state.Rules{SectionNumber: sectionNumber}

	meta := parseKVLines(blocks["Metadata"])
	rules.NeedsDice = meta["Needs_Dice"] == "true"
	rules.DiceType = state.DiceType(noneToEmpty(meta["Dice_Type"]))
	rules.NeedsUserResponse = meta["Needs_User_Response"] == "true"
	rules.NextAction = state.NextActionType(noneToEmpty(meta["Next_Action"]))
	rules.SourceType = state.SourceType(noneToEmpty(meta["Source_Type"]))
	rules.Source = noneToEmpty(meta["Source"])
	if ts, err := time.Parse(time.RFC3339, meta["Last_Update"]); err == nil {
		rules.LastUpdate = ts
	}

	analysis := parseKVLines(blocks["Analysis"])
	if cond, ok := analysis["Conditions"]; ok && cond != "" {
		rules.Conditions = splitAndTrim(cond)
	}

	choices, err := parseChoices(blocks["Choices"])
	if err != nil {
		return nil, false, nil
	}
	rules.Choices = choices

	rules.RulesSummary = strings.TrimSpace(blocks["Summary"])
	rules.Error = strings.TrimSpace(blocks["Error"])

	return rules, true, nil
}

// splitSections breaks doc into a map from H2 heading name to its body text
// (the text up to the next H2 heading or end of document).
func splitSections(doc string) map[string]string {
	locs := sectionHeadingRe.FindAllStringSubmatchIndex(doc, -1)
	names := sectionHeadingRe.FindAllStringSubmatch(doc, -1)
	blocks := make(map[string]string, len(locs))
	for i, loc := range locs {
		start := loc[1]
		end := len(doc)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks[names[i][1]] = doc[start:end]
	}
	return blocks
}

var kvLineRe = regexp.MustCompile(`(?m)^-\s+([A-Za-z_]+):\s*(.*)$`)

func parseKVLines(body string) map[string]string {
	out := make(map[string]string)
	for _, m := range kvLineRe.FindAllStringSubmatch(body, -1) {
		out[m[1]] = strings.TrimSpace(m[2])
	}
	return out
}

func noneToEmpty(s string) string {
	if s == "none" {
		return ""
	}
	return s
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	choiceLineRe  = regexp.MustCompile(`(?m)^\*\s+(.*?)\s+\(Type:\s*(\w+)\)\s*$`)
	diceResultsRe = regexp.MustCompile(`'([^']+)':\s*(-?\d+)`)
)

// parseChoices parses the "## Choices" body into a slice of Choice values,
// matching the bullet format from spec §6.
func parseChoices(body string) ([]state.Choice, error) {
	lines := strings.Split(body, "\n")
	var choices []state.Choice
	var cur *state.Choice

	flush := func() {
		if cur != nil {
			choices = append(choices, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		if m := choiceLineRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &state.Choice{Text: m[1], Type: state.ChoiceType(m[2])}
			continue
		}
		if cur == nil {
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- Conditions:"):
			cur.Conditions = splitAndTrim(strings.TrimPrefix(trimmed, "- Conditions:"))
		case strings.HasPrefix(trimmed, "- Dice_Type:"):
			cur.DiceType = state.DiceType(strings.TrimSpace(strings.TrimPrefix(trimmed, "- Dice_Type:")))
		case strings.HasPrefix(trimmed, "- Dice_Results:"):
			results := make(map[string]int)
			for _, m := range diceResultsRe.FindAllStringSubmatch(trimmed, -1) {
				n, err := strconv.Atoi(m[2])
				if err != nil {
					return nil, fmt.Errorf("markdown: bad dice result %q: %w", m[2], err)
				}
				results[m[1]] = n
			}
			cur.DiceResults = results
		case strings.HasPrefix(trimmed, "- Target:"):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "- Target:"))
			rest = strings.TrimPrefix(rest, "Section ")
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return nil, fmt.Errorf("markdown: bad target section %q: %w", rest, err)
			}
			cur.TargetSection = n
		}
	}
	flush()

	return choices, nil
}

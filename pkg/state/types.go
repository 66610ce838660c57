package state

import "time"

// SourceType classifies where a Narrative or Rules value came from.
type SourceType string

const (
	SourceRaw       SourceType = "raw"
	SourceProcessed SourceType = "processed"
	SourceCached    SourceType = "cached"
	SourceError     SourceType = "error"
)

// DiceType classifies the kind of dice check a section requires.
type DiceType string

const (
	DiceNone   DiceType = "none"
	DiceChance DiceType = "chance"
	DiceCombat DiceType = "combat"
)

// NextActionType orders which input the decision node should wait on first
// when a section requires both a player choice and a dice roll.
type NextActionType string

const (
	NextActionNone      NextActionType = "none"
	NextActionUserFirst NextActionType = "user_first"
	NextActionDiceFirst NextActionType = "dice_first"
)

// ChoiceType classifies how a Choice resolves to a next section.
type ChoiceType string

const (
	ChoiceDirect      ChoiceType = "direct"
	ChoiceConditional ChoiceType = "conditional"
	ChoiceDice        ChoiceType = "dice"
	ChoiceMixed       ChoiceType = "mixed"
)

// AwaitingAction names the external input a turn is blocked on.
type AwaitingAction string

const (
	AwaitingNone      AwaitingAction = "none"
	AwaitingUserInput AwaitingAction = "user_input"
	AwaitingDiceRoll  AwaitingAction = "dice_roll"
)

// ActionType classifies a recorded Trace event.
type ActionType string

const (
	ActionUserInput      ActionType = "user_input"
	ActionDiceRoll       ActionType = "dice_roll"
	ActionSectionChange  ActionType = "section_change"
	ActionCharacterUpdate ActionType = "character_update"
	ActionError          ActionType = "error"
)

// Narrative is the formatted text of the current section, owned by the
// narrator node (spec §3, §4.2).
type Narrative struct {
	SectionNumber int        `json:"section_number"`
	Content       string     `json:"content"`
	SourceType    SourceType `json:"source_type"`
	Error         string     `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`

	tag Tag
}

// WithTag returns a copy of n tagged as originating from node t.
func (n *Narrative) WithTag(t Tag) *Narrative {
	if n == nil {
		return nil
	}
	cp := *n
	cp.tag = t
	return &cp
}

// Tag reports which node produced n.
func (n *Narrative) Tag() Tag {
	if n == nil {
		return TagUntagged
	}
	return n.tag
}

// Choice is one option a player may select out of a section's Rules (spec §3).
type Choice struct {
	Text         string            `json:"text"`
	Type         ChoiceType        `json:"type"`
	TargetSection int              `json:"target_section,omitempty"`
	Conditions   []string          `json:"conditions,omitempty"`
	DiceType     DiceType          `json:"dice_type,omitempty"`
	DiceResults  map[string]int    `json:"dice_results,omitempty"`
}

// Validate enforces the type-specific shape rules from spec §3.
func (c Choice) Validate() error {
	switch c.Type {
	case ChoiceDirect:
		if c.TargetSection <= 0 {
			return NewStateError("choice of type direct requires a positive target_section")
		}
		if len(c.Conditions) > 0 {
			return NewStateError("choice of type direct must not carry conditions")
		}
		if c.DiceType != "" && c.DiceType != DiceNone {
			return NewStateError("choice of type direct must not carry a dice type")
		}
	case ChoiceConditional:
		if len(c.Conditions) == 0 {
			return NewStateError("choice of type conditional requires conditions")
		}
		if c.DiceType != "" && c.DiceType != DiceNone {
			return NewStateError("choice of type conditional must not carry a dice type")
		}
	case ChoiceDice:
		if c.DiceType == "" || c.DiceType == DiceNone {
			return NewStateError("choice of type dice requires a dice_type")
		}
		if len(c.DiceResults) == 0 {
			return NewStateError("choice of type dice requires dice_results")
		}
		if len(c.Conditions) > 0 {
			return NewStateError("choice of type dice must not carry conditions")
		}
	case ChoiceMixed:
		if len(c.Conditions) == 0 {
			return NewStateError("choice of type mixed requires conditions")
		}
		if c.DiceType == "" || c.DiceType == DiceNone {
			return NewStateError("choice of type mixed requires a dice_type")
		}
		if len(c.DiceResults) == 0 {
			return NewStateError("choice of type mixed requires dice_results")
		}
	default:
		return NewStateError("unknown choice type %q", c.Type)
	}
	return nil
}

// NeedsDice reports whether resolving this choice requires a dice roll.
func (c Choice) NeedsDice() bool {
	return c.Type == ChoiceDice || c.Type == ChoiceMixed
}

// Rules is the structured rule set extracted for a section, owned by the
// rules node (spec §3, §4.3).
type Rules struct {
	SectionNumber     int        `json:"section_number"`
	DiceType          DiceType   `json:"dice_type"`
	NeedsDice         bool       `json:"needs_dice"`
	NeedsUserResponse bool       `json:"needs_user_response"`
	NextAction        NextActionType `json:"next_action"`
	Conditions        []string   `json:"conditions,omitempty"`
	Choices           []Choice   `json:"choices,omitempty"`
	RulesSummary      string     `json:"rules_summary,omitempty"`
	Error             string     `json:"error,omitempty"`
	Source            string     `json:"source,omitempty"`
	SourceType        SourceType `json:"source_type"`
	LastUpdate        time.Time  `json:"last_update"`

	tag Tag
}

func (r *Rules) WithTag(t Tag) *Rules {
	if r == nil {
		return nil
	}
	cp := *r
	cp.tag = t
	return &cp
}

func (r *Rules) Tag() Tag {
	if r == nil {
		return TagUntagged
	}
	return r.tag
}

// Validate enforces the Rules invariants from spec §3.
func (r *Rules) Validate() error {
	if r == nil {
		return nil
	}
	if r.SourceType == SourceError {
		if r.NeedsDice || r.NeedsUserResponse {
			return NewStateError("error rules must have needs_dice and needs_user_response false")
		}
		return nil
	}
	if r.NeedsDice != (r.DiceType != DiceNone && r.DiceType != "") {
		return NewStateError("needs_dice must agree with dice_type")
	}
	for _, c := range r.Choices {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.NeedsDice() && !r.NeedsDice {
			return NewStateError("a dice/mixed choice requires rules.needs_dice")
		}
	}
	if len(r.Choices) > 0 && !r.NeedsUserResponse {
		return NewStateError("non-empty choices require needs_user_response")
	}
	if r.NextAction == NextActionUserFirst && !r.NeedsUserResponse {
		return NewStateError("next_action=user_first requires needs_user_response")
	}
	if r.NextAction == NextActionDiceFirst && !r.NeedsDice {
		return NewStateError("next_action=dice_first requires needs_dice")
	}
	return nil
}

// Decision is the outcome of the decision node for the current section
// (spec §3, §4.4).
type Decision struct {
	SectionNumber  int            `json:"section_number"`
	NextSection    int            `json:"next_section,omitempty"`
	AwaitingAction AwaitingAction `json:"awaiting_action"`
	Conditions     []string       `json:"conditions,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Error          string         `json:"error,omitempty"`

	tag Tag
}

func (d *Decision) WithTag(t Tag) *Decision {
	if d == nil {
		return nil
	}
	cp := *d
	cp.tag = t
	return &cp
}

func (d *Decision) Tag() Tag {
	if d == nil {
		return TagUntagged
	}
	return d.tag
}

func (d *Decision) Validate() error {
	if d == nil {
		return nil
	}
	if d.NextSection != 0 && d.NextSection <= 0 {
		return NewStateError("decision.next_section must be positive when set")
	}
	return nil
}

// Action is one typed event appended to a Trace's history (spec §3).
type Action struct {
	Timestamp  time.Time      `json:"timestamp"`
	Section    int            `json:"section"`
	ActionType ActionType     `json:"action_type"`
	Details    map[string]any `json:"details,omitempty"`
}

// Validate enforces the type-specific requirements of spec §3.
func (a Action) Validate() error {
	if a.Section <= 0 {
		return NewStateError("action.section must be positive")
	}
	switch a.ActionType {
	case ActionDiceRoll:
		if _, ok := a.Details["roll_result"]; !ok {
			return NewStateError("dice_roll action requires details.roll_result")
		}
	case ActionUserInput:
		if _, ok := a.Details["input"]; !ok {
			return NewStateError("user_input action requires details.input")
		}
	}
	return nil
}

// Trace is the append-only session history, owned by the trace node
// (spec §3, §4.5).
type Trace struct {
	GameID          string      `json:"game_id"`
	SessionID       string      `json:"session_id"`
	SectionNumber   int         `json:"section_number"`
	StartTime       time.Time   `json:"start_time"`
	History         []Action    `json:"history"`
	CurrentNarrative *Narrative `json:"current_narrative,omitempty"`
	CurrentRules    *Rules      `json:"current_rules,omitempty"`
	Character       *Character  `json:"character,omitempty"`
	Error           string      `json:"error,omitempty"`

	tag Tag
}

func (t *Trace) WithTag(tg Tag) *Trace {
	if t == nil {
		return nil
	}
	cp := t.copy()
	cp.tag = tg
	return cp
}

func (t *Trace) Tag() Tag {
	if t == nil {
		return TagUntagged
	}
	return t.tag
}

// copy returns a deep-enough copy of t: History is re-sliced so appends by
// the new value never alias the original's backing array (spec §5, "trace
// history is append-only... constructing a new Trace copies the prior
// history list").
func (t *Trace) copy() *Trace {
	if t == nil {
		return nil
	}
	cp := *t
	cp.History = append([]Action(nil), t.History...)
	return &cp
}

// Validate enforces the Trace invariants from spec §3.
func (t *Trace) Validate() error {
	if t == nil {
		return nil
	}
	hasNarrative := t.CurrentNarrative != nil
	hasRules := t.CurrentRules != nil
	if t.Error != "" {
		if hasNarrative || hasRules {
			return NewStateError("an error-bearing trace must not carry current_narrative/current_rules")
		}
	}
	if hasNarrative != hasRules {
		return NewStateError("current_narrative and current_rules must be both present or both absent")
	}
	for _, a := range t.History {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CharacterStats holds the numeric attributes of a Character (spec §3).
type CharacterStats struct {
	Health       int `json:"health"`
	MaxHealth    int `json:"max_health"`
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Intelligence int `json:"intelligence"`
	Level        int `json:"level"`
	Experience   int `json:"experience"`
}

func (s CharacterStats) Validate() error {
	if s.Health < 0 || s.MaxHealth < 0 || s.Strength < 0 || s.Dexterity < 0 ||
		s.Intelligence < 0 || s.Level < 0 || s.Experience < 0 {
		return NewStateError("character stats must be non-negative")
	}
	if s.Health > s.MaxHealth {
		return NewStateError("character health must not exceed max_health")
	}
	return nil
}

// Item is a single inventory entry.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

// Inventory holds a character's carried items and gold (spec §3).
type Inventory struct {
	Items    map[string]Item `json:"items,omitempty"`
	Capacity int             `json:"capacity"`
	Gold     int             `json:"gold"`
}

func (inv Inventory) Validate() error {
	if inv.Gold < 0 {
		return NewStateError("inventory gold must be non-negative")
	}
	if inv.Capacity > 0 && len(inv.Items) > inv.Capacity {
		return NewStateError("inventory item count must not exceed capacity")
	}
	return nil
}

// Character is the player character sheet threaded through GameState
// (spec §3).
type Character struct {
	Stats     CharacterStats `json:"stats"`
	Inventory Inventory      `json:"inventory"`
}

func (c *Character) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Stats.Validate(); err != nil {
		return err
	}
	return c.Inventory.Validate()
}

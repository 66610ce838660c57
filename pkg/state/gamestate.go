package state

import "time"

// GameState is the immutable snapshot threaded through a turn of the
// workflow. Each node reads a narrow view of the prior state and returns an
// update tagged with its own Tag; the workflow merges updates into a new
// GameState rather than mutating one in place (spec §3, §5).
type GameState struct {
	GameID        string    `json:"game_id"`
	SessionID     string    `json:"session_id"`
	SectionNumber int       `json:"section_number"`
	PlayerInput   string    `json:"player_input,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Narrative *Narrative `json:"narrative,omitempty"`
	Rules     *Rules     `json:"rules,omitempty"`
	Decision  *Decision  `json:"decision,omitempty"`
	Trace     *Trace     `json:"trace,omitempty"`
	Character *Character `json:"character,omitempty"`

	Error string `json:"error,omitempty"`

	// Metadata carries engine-assigned bookkeeping (e.g. which node last
	// updated the state) and fans in via last-value-wins, like the original's
	// metadata field.
	Metadata map[string]any `json:"metadata,omitempty"`
	// ShouldContinue mirrors DeriveShouldContinue(): the engine stamps it onto
	// the state after each turn so a caller replaying persisted state doesn't
	// need to re-derive it from decision.
	ShouldContinue bool `json:"should_continue"`

	// ClearPlayerInput, when set on an update passed to Merge, forces
	// PlayerInput to the update's value (including "") instead of the usual
	// last-non-empty-wins rule. Never persisted; a node sets it on its own
	// returned update and Merge consumes it immediately.
	ClearPlayerInput bool `json:"-"`
}

// Validate enforces the cross-field invariants from spec §3: every sub-model
// present must agree with GameState.SectionNumber, and an error state must
// not also claim a resolved decision.
func (s *GameState) Validate() error {
	if s == nil {
		return NewStateError("nil game state")
	}
	if s.GameID == "" {
		return NewStateError("game_id is required")
	}
	if s.SessionID == "" {
		return NewStateError("session_id is required")
	}
	if s.SectionNumber <= 0 {
		return NewStateError("section_number must be positive")
	}
	if s.Narrative != nil && s.Narrative.SectionNumber != s.SectionNumber {
		return NewStateError("narrative.section_number %d does not match game state section %d",
			s.Narrative.SectionNumber, s.SectionNumber)
	}
	if s.Rules != nil && s.Rules.SectionNumber != s.SectionNumber {
		return NewStateError("rules.section_number %d does not match game state section %d",
			s.Rules.SectionNumber, s.SectionNumber)
	}
	if s.Decision != nil && s.Decision.SectionNumber != s.SectionNumber {
		return NewStateError("decision.section_number %d does not match game state section %d",
			s.Decision.SectionNumber, s.SectionNumber)
	}
	if s.Trace != nil && s.Trace.SectionNumber != s.SectionNumber {
		return NewStateError("trace.section_number %d does not match game state section %d",
			s.Trace.SectionNumber, s.SectionNumber)
	}
	if err := s.Rules.Validate(); err != nil {
		return err
	}
	if err := s.Decision.Validate(); err != nil {
		return err
	}
	if err := s.Trace.Validate(); err != nil {
		return err
	}
	if err := s.Character.Validate(); err != nil {
		return err
	}
	if s.Error != "" && s.Decision != nil && s.Decision.AwaitingAction == AwaitingNone && s.Decision.NextSection != 0 {
		return NewStateError("an error state must not also carry a resolved decision")
	}
	return nil
}

// DeriveShouldContinue reports whether the workflow may advance to the next
// turn without waiting on external input (spec §4.6/§5): true only when a
// decision has resolved to a next section and the state carries no error.
// The engine stamps the result onto GameState.ShouldContinue after each
// turn; this method is the pure computation behind that stamp.
func (s *GameState) DeriveShouldContinue() bool {
	if s == nil || s.Error != "" || s.Decision == nil {
		return false
	}
	return s.Decision.AwaitingAction == AwaitingNone && s.Decision.NextSection > 0
}

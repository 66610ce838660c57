package state

// Merge combines the prior GameState with a node's update into a new
// GameState. It mirrors the original implementation's per-field reducers
// (spec §9): narrative/rules are taken only when tagged from their owning
// node, decision/trace/character fan in via a last-value-wins or
// take-from-node rule depending on who produced them, and game_id/session_id
// are preserved once set rather than clobbered by an empty update.
// player_input is the one field where an update may need to overwrite a
// present value with "" (the decision node clearing a consumed input); that
// update sets ClearPlayerInput to distinguish "explicitly cleared" from
// "node didn't touch this field".
func Merge(prev *GameState, update *GameState) *GameState {
	if prev == nil {
		prev = &GameState{}
	}
	if update == nil {
		return prev
	}

	out := *prev

	out.GameID = keepIfNotEmpty(prev.GameID, update.GameID)
	out.SessionID = keepIfNotEmpty(prev.SessionID, update.SessionID)
	if update.ClearPlayerInput {
		out.PlayerInput = update.PlayerInput
	} else {
		out.PlayerInput = takeLastValue(prev.PlayerInput, update.PlayerInput)
	}

	if update.SectionNumber > 0 {
		out.SectionNumber = update.SectionNumber
	}

	out.Narrative = takeFromNode(prev.Narrative, update.Narrative, TagNarrator)
	out.Rules = takeFromNode(prev.Rules, update.Rules, TagRules)

	out.Decision = mergeDecision(prev.Decision, update.Decision)
	out.Trace = mergeTrace(prev.Trace, update.Trace)
	out.Character = mergeCharacter(prev.Character, update.Character)
	out.Error = mergeError(prev.Error, update.Error)
	out.Metadata = takeLastMetadata(prev.Metadata, update.Metadata)
	out.ShouldContinue = update.ShouldContinue

	if !update.UpdatedAt.IsZero() {
		out.UpdatedAt = update.UpdatedAt
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = update.CreatedAt
	}

	return &out
}

// keepIfNotEmpty returns b unless it is empty, in which case a is kept
// (grounded on the original's keep_if_not_empty: game_id/session_id must
// survive a node update that doesn't carry them).
func keepIfNotEmpty(a, b string) string {
	if b != "" {
		return b
	}
	return a
}

// takeLastValue always prefers b, the newer value, falling back to a only
// when b is the zero value (grounded on the original's take_last_value,
// used for fields every node may legitimately overwrite).
func takeLastValue(a, b string) string {
	if b != "" {
		return b
	}
	return a
}

// takeFromNode keeps prev unless update was produced by the given node
// (grounded on the original's take_from_node closure: narrative belongs to
// the narrator node, rules to the rules node, and a value produced by any
// other node — or untagged — must not overwrite it).
func takeFromNode[T interface{ Tag() Tag }](prev, update T, want Tag) T {
	var zero T
	if any(update) == any(zero) {
		return prev
	}
	if update.Tag() != want {
		return prev
	}
	return update
}

// mergeDecision takes the decision node's own output outright; an update
// from any other node leaves an existing decision unchanged (the update is
// dropped) and is only taken when there is no existing decision, matching
// the original's merge() special-casing of node_decision versus other
// sources.
func mergeDecision(prev, update *Decision) *Decision {
	if update == nil {
		return prev
	}
	if update.Tag() == TagDecision {
		return update
	}
	if prev == nil {
		return update
	}
	return prev
}

// mergeTrace never appends history itself: the trace node owns history
// accumulation, so a trace update produced by the trace node (or any update
// when there is no prior trace) replaces the trace in full, while updates
// tagged from narrator/rules/decision only refresh the
// current_narrative/current_rules/character/error snapshot fields.
func mergeTrace(prev, update *Trace) *Trace {
	if update == nil {
		return prev
	}
	if update.Tag() == TagTrace || prev == nil {
		return update
	}
	cp := prev.copy()
	if update.CurrentNarrative != nil {
		cp.CurrentNarrative = update.CurrentNarrative
	}
	if update.CurrentRules != nil {
		cp.CurrentRules = update.CurrentRules
	}
	if update.Character != nil {
		cp.Character = update.Character
	}
	if update.Error != "" {
		cp.Error = update.Error
	}
	return cp
}

// mergeCharacter takes the newest non-nil value regardless of source, per
// the original's merge() default branch. No node in pkg/engine sets
// GameState.Character; it is only supplied through Engine.Start.
func mergeCharacter(prev, update *Character) *Character {
	if update != nil {
		return update
	}
	return prev
}

// takeLastMetadata prefers the newer metadata map, matching the original's
// take_last_value reducer for metadata: a node that doesn't set metadata
// leaves the prior map untouched.
func takeLastMetadata(prev, update map[string]any) map[string]any {
	if update != nil {
		return update
	}
	return prev
}

// mergeError keeps the first non-empty error encountered rather than
// letting a later, unrelated update silently clear it (grounded on the
// original's validate_error, which picks the first non-None error out of a
// fan-in list).
func mergeError(prev, update string) string {
	if prev != "" {
		return prev
	}
	return update
}

package state

import "github.com/google/uuid"

// CreateInitialState builds a fresh GameState at the given section, assigning
// a new game id and/or session id only when the caller left them blank
// (grounded on the original's create_empty_state, adapted to the
// id-merge-without-clobber rule used by the workflow's Start, spec §4.7).
func CreateInitialState(gameID, sessionID string, sectionNumber int) *GameState {
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if sectionNumber <= 0 {
		sectionNumber = 1
	}
	return &GameState{
		GameID:        gameID,
		SessionID:     sessionID,
		SectionNumber: sectionNumber,
	}
}

// CreateErrorState builds a GameState carrying errMsg (grounded on the
// original's create_error_state). With a current state, it returns a copy of
// current, sub-models included, with Error set and the given non-empty ids
// applied; without one, it returns a fresh initial state carrying only the
// error.
func CreateErrorState(errMsg, gameID, sessionID string, sectionNumber int, current *GameState) *GameState {
	if current != nil {
		cp := *current
		cp.Error = errMsg
		if gameID != "" {
			cp.GameID = gameID
		}
		if sessionID != "" {
			cp.SessionID = sessionID
		}
		return &cp
	}
	s := CreateInitialState(gameID, sessionID, sectionNumber)
	s.Error = errMsg
	return s
}

// WithUpdates returns a new GameState formed by merging update into s,
// without attributing update's sub-models to any particular node (grounded
// on the original's with_updates).
func (s *GameState) WithUpdates(update *GameState) *GameState {
	return Merge(s, update)
}

// WithNodeUpdates returns a new GameState formed by merging update into s,
// tagging every sub-model update carries as originating from the given node
// (grounded on the original's with_node_updates, which sets __from_node__ on
// each updated model before delegating to with_updates).
func (s *GameState) WithNodeUpdates(node Tag, update *GameState) *GameState {
	if update == nil {
		return s
	}
	tagged := *update
	tagged.Narrative = update.Narrative.WithTag(node)
	tagged.Rules = update.Rules.WithTag(node)
	tagged.Decision = update.Decision.WithTag(node)
	tagged.Trace = update.Trace.WithTag(node)
	return Merge(s, &tagged)
}

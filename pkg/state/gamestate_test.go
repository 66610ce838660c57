package state

import "testing"

func TestGameState_Validate(t *testing.T) {
	tests := []struct {
		name      string
		gameState *GameState
		wantErr   bool
	}{
		{
			name: "valid minimal state",
			gameState: &GameState{
				GameID:        "game-1",
				SessionID:     "session-1",
				SectionNumber: 1,
			},
			wantErr: false,
		},
		{
			name: "missing game id",
			gameState: &GameState{
				SessionID:     "session-1",
				SectionNumber: 1,
			},
			wantErr: true,
		},
		{
			name: "non-positive section number",
			gameState: &GameState{
				GameID:        "game-1",
				SessionID:     "session-1",
				SectionNumber: 0,
			},
			wantErr: true,
		},
		{
			name: "narrative section mismatch",
			gameState: &GameState{
				GameID:        "game-1",
				SessionID:     "session-1",
				SectionNumber: 2,
				Narrative:     &Narrative{SectionNumber: 1},
			},
			wantErr: true,
		},
		{
			name: "rules section mismatch",
			gameState: &GameState{
				GameID:        "game-1",
				SessionID:     "session-1",
				SectionNumber: 2,
				Rules:         &Rules{SectionNumber: 3, SourceType: SourceRaw},
			},
			wantErr: true,
		},
		{
			name: "error state with resolved decision",
			gameState: &GameState{
				GameID:        "game-1",
				SessionID:     "session-1",
				SectionNumber: 1,
				Error:         "boom",
				Decision: &Decision{
					SectionNumber:  1,
					AwaitingAction: AwaitingNone,
					NextSection:    2,
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gameState.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGameState_DeriveShouldContinue(t *testing.T) {
	tests := []struct {
		name      string
		gameState *GameState
		want      bool
	}{
		{
			name:      "nil state",
			gameState: nil,
			want:      false,
		},
		{
			name: "no decision yet",
			gameState: &GameState{
				GameID: "g", SessionID: "s", SectionNumber: 1,
			},
			want: false,
		},
		{
			name: "awaiting user input",
			gameState: &GameState{
				GameID: "g", SessionID: "s", SectionNumber: 1,
				Decision: &Decision{SectionNumber: 1, AwaitingAction: AwaitingUserInput},
			},
			want: false,
		},
		{
			name: "resolved with next section",
			gameState: &GameState{
				GameID: "g", SessionID: "s", SectionNumber: 1,
				Decision: &Decision{SectionNumber: 1, AwaitingAction: AwaitingNone, NextSection: 2},
			},
			want: true,
		},
		{
			name: "resolved but error present",
			gameState: &GameState{
				GameID: "g", SessionID: "s", SectionNumber: 1,
				Error:    "boom",
				Decision: &Decision{SectionNumber: 1, AwaitingAction: AwaitingNone, NextSection: 2},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gameState.DeriveShouldContinue(); got != tt.want {
				t.Errorf("DeriveShouldContinue() = %v, want %v", got, tt.want)
			}
		})
	}
}

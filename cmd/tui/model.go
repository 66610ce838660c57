package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/branchtale/gamebook-engine/pkg/engine"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

const placeholderText = "Type your response and press Enter. Ctrl+C to quit, Ctrl+T to copy the trace."

var (
	narratorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")) // green
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // teal
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// model is the bubbletea program driving one turn loop over engine.Engine,
// grounded on the teacher's viewport+textarea console layout, generalized
// from a remote chat transcript to the narrator/rules/decision turn cycle.
type model struct {
	eng    *engine.Engine
	state  *state.GameState
	logger *slog.Logger

	viewport viewport.Model
	input    textarea.Model

	ready       bool
	width       int
	height      int
	awaiting    bool // a turn is running
	err         error
	showQuit    bool
	copyMessage string
}

func newModel(eng *engine.Engine, initial *state.GameState, log *slog.Logger) model {
	ta := textarea.New()
	ta.Placeholder = placeholderText
	ta.Focus()
	ta.CharLimit = 2000
	ta.SetHeight(3)

	return model{eng: eng, state: initial, logger: log, input: ta}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

type turnResultMsg struct {
	state *state.GameState
	err   error
}

func runTurnCmd(eng *engine.Engine, s *state.GameState) tea.Cmd {
	return func() tea.Msg {
		final, err := eng.RunTurn(context.Background(), s)
		return turnResultMsg{state: final, err: err}
	}
}

// advanceCmd resolves an auto-continuing decision (should_continue=true, no
// player action needed) into the next section's turn.
func advanceCmd(eng *engine.Engine, s *state.GameState) tea.Cmd {
	return func() tea.Msg {
		next, err := eng.Start(context.Background(), engine.StartInput{
			GameID: s.GameID, SessionID: s.SessionID, NextSection: s.Decision.NextSection,
		})
		if err != nil {
			return turnResultMsg{state: s, err: err}
		}
		final, err := eng.RunTurn(context.Background(), next)
		return turnResultMsg{state: final, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := lipgloss.Height(m.headerView())
		inputHeight := 5
		vpHeight := msg.Height - headerHeight - inputHeight
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.SetWidth(msg.Width)
		m.writeContent()

	case tea.KeyMsg:
		if m.showQuit {
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			default:
				m.showQuit = false
				return m, nil
			}
		}
		switch msg.String() {
		case "ctrl+c":
			m.showQuit = true
			return m, nil
		case "ctrl+t":
			m.copyMessage = copyTrace(m.state)
			return m, nil
		case "enter":
			if m.awaiting {
				return m, nil
			}
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				return m, nil
			}

			awaitingDice := m.state.Decision != nil && m.state.Decision.AwaitingAction == state.AwaitingDiceRoll
			if awaitingDice {
				roll, err := strconv.Atoi(input)
				if err != nil {
					m.err = fmt.Errorf("enter a whole number for the dice result")
					return m, nil
				}
				if m.state.Metadata == nil {
					m.state.Metadata = make(map[string]any)
				}
				m.state.Metadata[engine.MetadataDiceResult] = roll
			} else {
				m.state.PlayerInput = input
			}

			m.input.Reset()
			m.awaiting = true
			m.err = nil
			return m, runTurnCmd(m.eng, m.state)
		}

	case turnResultMsg:
		m.awaiting = false
		if msg.state != nil {
			m.state = msg.state
		}
		if msg.err != nil {
			m.err = msg.err
		}
		m.writeContent()
		m.viewport.GotoBottom()
		if m.state != nil && m.state.ShouldContinue && m.state.Decision != nil {
			return m, advanceCmd(m.eng, m.state)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return "initializing...\n"
	}
	if m.showQuit {
		return modalStyle.Render("Quit the game? (y/n)")
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	if m.awaiting {
		b.WriteString(dimStyle.Render("...") + "\n")
	}
	if m.copyMessage != "" {
		b.WriteString(dimStyle.Render(m.copyMessage) + "\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func (m model) headerView() string {
	section := 0
	if m.state != nil {
		section = m.state.SectionNumber
	}
	return titleStyle.Render(fmt.Sprintf("Section %d", section)) + "\n" + dimStyle.Render(strings.Repeat("-", m.width)) + "\n"
}

// writeContent renders the current narrative and, when the decision node is
// awaiting input, its prompt text, word-wrapped to the viewport width.
func (m *model) writeContent() {
	if m.state == nil {
		return
	}
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	if n := m.state.Narrative; n != nil {
		if n.Error != "" {
			b.WriteString(errorStyle.Render(n.Error))
		} else {
			b.WriteString(narratorStyle.Render(wordwrap.String(n.Content, width)))
		}
		b.WriteString("\n\n")
	}
	if d := m.state.Decision; d != nil {
		switch d.AwaitingAction {
		case state.AwaitingUserInput:
			b.WriteString(promptStyle.Render("What do you do?"))
			b.WriteString("\n")
		case state.AwaitingDiceRoll:
			b.WriteString(promptStyle.Render("Roll the dice and enter the result."))
			b.WriteString("\n")
		}
		if d.Error != "" {
			b.WriteString(errorStyle.Render(d.Error) + "\n")
		}
	}
	if m.state.Error != "" {
		b.WriteString(errorStyle.Render(m.state.Error) + "\n")
	}

	m.viewport.SetContent(b.String())
}

// copyTrace serializes the session's action history to the clipboard,
// mirroring the teacher console's clipboard export of chat transcripts.
func copyTrace(s *state.GameState) string {
	if s == nil || s.Trace == nil {
		return "nothing to copy"
	}
	var b strings.Builder
	for _, a := range s.Trace.History {
		fmt.Fprintf(&b, "[%s] section %d: %s %v\n", a.Timestamp.Format("15:04:05"), a.Section, a.ActionType, a.Details)
	}
	if err := clipboard.WriteAll(b.String()); err != nil {
		return "copy failed: " + err.Error()
	}
	return "trace copied to clipboard"
}

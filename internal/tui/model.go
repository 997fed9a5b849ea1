// Package tui provides the Bubble Tea n-back game interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/nbackt/internal/model"
	"github.com/verte-zerg/nbackt/internal/session"
)

const flashDuration = 400 * time.Millisecond

// Engine is the session surface the UI drives.
type Engine interface {
	Start(ctx context.Context) error
	Reset()
	CheckMatch() bool
	SetMode(mode model.Mode) error
	State() session.State
	Subscribe() (string, <-chan session.State)
	Unsubscribe(id string) bool
}

type flash int

const (
	flashNone flash = iota
	flashHit
	flashMiss
)

type stateMsg struct {
	state session.State
}

type closedMsg struct{}

type flashDoneMsg struct {
	seq int
}

// Model implements the Bubble Tea game UI.
type Model struct {
	engine  Engine
	subID   string
	updates <-chan session.State

	state session.State
	// highscore at the start of the current round
	startHighscore int

	keys keyMap
	help help.Model

	width  int
	height int

	flash    flash
	flashSeq int
	err      error
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cellStyle       = lipgloss.NewStyle().Width(7).Height(3).Background(lipgloss.Color("#3A3A3A"))
	activeCellStyle = cellStyle.Background(lipgloss.Color("#52C41A"))
	soundStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true).Padding(1, 3).Border(lipgloss.RoundedBorder())
	buttonStyle     = lipgloss.NewStyle().Padding(1, 6).Bold(true).Foreground(lipgloss.Color("#F0F0F0")).Background(lipgloss.Color("#6F42C1"))
	hitStyle        = buttonStyle.Background(lipgloss.Color("#52C41A"))
	missStyle       = buttonStyle.Background(lipgloss.Color("#FF4D4F"))
	panelStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#8C8C8C")).Padding(1, 3)
)

// NewModel constructs a game TUI model subscribed to the engine.
func NewModel(engine Engine) *Model {
	id, updates := engine.Subscribe()
	st := engine.State()
	return &Model{
		engine:         engine,
		subID:          id,
		updates:        updates,
		state:          st,
		startHighscore: st.Highscore,
		keys:           newKeyMap(),
		help:           help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForState(m.updates)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case stateMsg:
		m.applyState(msg.state)
		return m, waitForState(m.updates)
	case closedMsg:
		return m, tea.Quit
	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = flashNone
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.state.Phase {
	case session.PhaseRunning:
		content = m.renderRound()
	case session.PhaseFinished:
		content = m.renderResult()
	default:
		content = m.renderHome()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) applyState(st session.State) {
	if st.Phase == session.PhaseRunning && st.RoundID != m.state.RoundID {
		m.startHighscore = st.Highscore
		m.flash = flashNone
	}
	if st.Phase == session.PhaseIdle {
		m.startHighscore = st.Highscore
	}
	m.state = st
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.engine.Unsubscribe(m.subID)
		return tea.Quit
	}
	switch m.state.Phase {
	case session.PhaseRunning:
		switch {
		case key.Matches(msg, m.keys.Match):
			return m.pressMatch()
		case key.Matches(msg, m.keys.Home):
			m.engine.Reset()
		}
	case session.PhaseFinished:
		switch {
		case key.Matches(msg, m.keys.Start):
			m.start()
		case key.Matches(msg, m.keys.Home):
			m.engine.Reset()
		}
	default:
		switch {
		case key.Matches(msg, m.keys.Start):
			m.start()
		case key.Matches(msg, m.keys.NextMode):
			m.selectMode(nextMode(m.state.Config.Mode))
		case key.Matches(msg, m.keys.Visual):
			m.selectMode(model.ModeVisual)
		case key.Matches(msg, m.keys.Audio):
			m.selectMode(model.ModeAudio)
		case key.Matches(msg, m.keys.AudioVisual):
			m.selectMode(model.ModeAudioVisual)
		}
	}
	return nil
}

func (m *Model) start() {
	m.err = nil
	if err := m.engine.Start(context.Background()); err != nil {
		m.err = fmt.Errorf("failed to start round: %w", err)
	}
}

func (m *Model) selectMode(mode model.Mode) {
	m.err = nil
	if err := m.engine.SetMode(mode); err != nil {
		m.err = fmt.Errorf("failed to change mode: %w", err)
		return
	}
	m.state.Config.Mode = mode
}

func (m *Model) pressMatch() tea.Cmd {
	hit := m.engine.CheckMatch()
	m.flashSeq++
	if hit {
		m.flash = flashHit
	} else {
		m.flash = flashMiss
	}
	seq := m.flashSeq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashDoneMsg{seq: seq}
	})
}

func waitForState(updates <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg{state: st}
	}
}

func nextMode(mode model.Mode) model.Mode {
	for i, candidate := range model.Modes {
		if candidate == mode {
			return model.Modes[(i+1)%len(model.Modes)]
		}
	}
	return model.Modes[0]
}

func (m *Model) renderHome() string {
	cfg := m.state.Config
	lines := []string{titleStyle.Render("N-Back"), ""}
	for i, mode := range model.Modes {
		label := fmt.Sprintf("  %d  %s", i+1, mode.Label())
		if mode == cfg.Mode {
			label = selectedStyle.Render(fmt.Sprintf("> %d  %s", i+1, mode.Label()))
		}
		lines = append(lines, label)
	}
	lines = append(lines,
		"",
		labelStyle.Render(fmt.Sprintf("%d-back · %d stimuli · every %s", cfg.NBack, cfg.Length, cfg.Interval)),
		labelStyle.Render("Highscore ")+valueStyle.Render(fmt.Sprintf("%d", m.state.Highscore)),
	)
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderRound() string {
	st := m.state
	cfg := st.Config
	header := titleStyle.Render(fmt.Sprintf("%s · %d-back", cfg.Mode.Label(), cfg.NBack))
	status := strings.Join([]string{
		labelStyle.Render("Stimulus ") + valueStyle.Render(fmt.Sprintf("%d/%d", st.Index+1, cfg.Length)),
		labelStyle.Render("Score ") + valueStyle.Render(fmt.Sprintf("%d", st.Score)),
		labelStyle.Render("Highscore ") + valueStyle.Render(fmt.Sprintf("%d", st.Highscore)),
	}, "   ")

	parts := []string{header, status, ""}
	if cfg.Mode.Shows() {
		parts = append(parts, renderGrid(st.Value))
	}
	if cfg.Mode.Speaks() {
		parts = append(parts, soundStyle.Render(fmt.Sprintf("♪ %d", st.Index+1)))
	}
	parts = append(parts, "", m.renderButton())
	return lipgloss.JoinVertical(lipgloss.Center, parts...)
}

func (m *Model) renderButton() string {
	switch m.flash {
	case flashHit:
		return hitStyle.Render("MATCH")
	case flashMiss:
		return missStyle.Render("MATCH")
	default:
		return buttonStyle.Render("MATCH")
	}
}

// renderGrid draws the 3x3 board with the cell for active (1..9) lit.
func renderGrid(active int) string {
	rows := make([]string, 0, 5)
	for r := 0; r < 3; r++ {
		cells := make([]string, 0, 5)
		for c := 0; c < 3; c++ {
			if c > 0 {
				cells = append(cells, " ")
			}
			style := cellStyle
			if r*3+c+1 == active {
				style = activeCellStyle
			}
			cells = append(cells, style.Render(""))
		}
		if r > 0 {
			rows = append(rows, "")
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderResult() string {
	lines := resultLines(m.state, m.startHighscore)
	return panelStyle.Render(strings.Join(centerLines(lines), "\n"))
}

func (m *Model) renderFooter() string {
	var bindings []key.Binding
	switch m.state.Phase {
	case session.PhaseRunning:
		bindings = []key.Binding{m.keys.Match, m.keys.Home, m.keys.Quit}
	case session.PhaseFinished:
		bindings = []key.Binding{m.keys.Start, m.keys.Home, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Start, m.keys.NextMode, m.keys.Quit}
	}
	return footerStyle.Render(m.help.ShortHelpView(bindings))
}

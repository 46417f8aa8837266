// Package ui is the terminal shell of the translator: language selectors,
// the microphone control and the two transcript panels.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loqalabs/talkez/internal/language"
	"github.com/loqalabs/talkez/internal/notify"
	"github.com/loqalabs/talkez/internal/orchestrator"
)

const (
	maxToasts    = 3
	toastTTL     = 4 * time.Second
	defaultWidth = 80
	panelHeight  = 8
)

// Controller is the set of session actions the shell triggers.
type Controller interface {
	ToggleListening() error
	SwapLanguages() error
	SpeakTranslation() error
	SetSourceLanguage(code string) error
	SetTargetLanguage(code string) error
}

// StateMsg carries a new session state into the program.
type StateMsg orchestrator.State

// NoticeMsg carries a toast into the program.
type NoticeMsg notify.Notice

type (
	actionErrMsg struct{ err error }
	actionOKMsg  struct{}
)

// toastExpiredMsg retires the toasts posted at or before at.
type toastExpiredMsg struct{ at time.Time }

// Model is the bubbletea model of the shell.
type Model struct {
	ctrl    Controller
	states  <-chan orchestrator.State
	notices <-chan notify.Notice

	state   orchestrator.State
	toasts  []notify.Notice
	lastErr error

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int
}

// New builds the shell. states and notices feed the model; either may be nil.
func New(ctrl Controller, initial orchestrator.State, states <-chan orchestrator.State, notices <-chan notify.Notice) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = statusStyle
	return Model{
		ctrl:    ctrl,
		states:  states,
		notices: notices,
		state:   initial,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: spin,
		width:   defaultWidth,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states), waitForNotice(m.notices))
}

func waitForState(ch <-chan orchestrator.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg(state)
	}
}

func waitForNotice(ch <-chan notify.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg(n)
	}
}

// action runs fn off the update loop; actions block on the orchestrator.
func action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionErrMsg{err: err}
		}
		return actionOKMsg{}
	}
}

func expireToast(at time.Time) tea.Cmd {
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{at: at}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case StateMsg:
		m.state = orchestrator.State(msg)
		return m, waitForState(m.states)
	case NoticeMsg:
		n := notify.Notice(msg)
		if n.Time.IsZero() {
			n.Time = time.Now()
		}
		m.toasts = append(m.toasts, n)
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		return m, tea.Batch(waitForNotice(m.notices), expireToast(n.Time))
	case toastExpiredMsg:
		kept := m.toasts[:0:0]
		for _, t := range m.toasts {
			if t.Time.After(msg.at) {
				kept = append(kept, t)
			}
		}
		m.toasts = kept
		return m, nil
	case actionErrMsg:
		m.lastErr = msg.err
		return m, nil
	case actionOKMsg:
		m.lastErr = nil
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if !m.state.Supported {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Toggle):
		if m.state.Translating {
			return m, nil
		}
		return m, action(m.ctrl.ToggleListening)
	case key.Matches(msg, m.keys.Speak):
		if m.state.Speaking {
			return m, nil
		}
		return m, action(m.ctrl.SpeakTranslation)
	case key.Matches(msg, m.keys.Swap):
		return m, action(m.ctrl.SwapLanguages)
	case key.Matches(msg, m.keys.SourcePrev):
		return m, m.selectSource(-1)
	case key.Matches(msg, m.keys.SourceNext):
		return m, m.selectSource(1)
	case key.Matches(msg, m.keys.TargetPrev):
		return m, m.selectTarget(-1)
	case key.Matches(msg, m.keys.TargetNext):
		return m, m.selectTarget(1)
	}
	return m, nil
}

func (m Model) selectSource(step int) tea.Cmd {
	code := language.Cycle(m.state.Source, step)
	return action(func() error { return m.ctrl.SetSourceLanguage(code) })
}

func (m Model) selectTarget(step int) tea.Cmd {
	code := language.Cycle(m.state.Target, step)
	return action(func() error { return m.ctrl.SetTargetLanguage(code) })
}

func (m Model) View() string {
	header := lipgloss.JoinVertical(lipgloss.Left,
		bannerStyle.Render("TalkEz"),
		taglineStyle.Render("You speak, we translate."),
	)
	if !m.state.Supported {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", m.unsupportedView(), "", m.help.View(m.keys))
	}

	sections := []string{header, "", m.selectorsView(), "", m.micView(), "", m.panelsView()}
	if status := m.statusLine(); status != "" {
		sections = append(sections, "", status)
	}
	if toasts := m.toastsView(); toasts != "" {
		sections = append(sections, "", toasts)
	}
	sections = append(sections, "", m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) unsupportedView() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		errorTitleStyle.Render("Speech Recognition Not Supported"),
		"",
		valueStyle.Render("No speech recognizer is available on this system."),
		subtleStyle.Render("Set stt.mode to mock, exec or bus in the configuration and restart."),
	)
	return unsupportedStyle.Render(body)
}

func (m Model) selectorsView() string {
	return fmt.Sprintf("%s %s   %s   %s %s",
		labelStyle.Render("Source"), valueStyle.Render(describe(m.state.Source)),
		subtleStyle.Render("⇄"),
		labelStyle.Render("Target"), valueStyle.Render(describe(m.state.Target)),
	)
}

func (m Model) micView() string {
	source := language.Label(m.state.Source)
	target := language.Label(m.state.Target)

	var button, prompt, hint string
	switch {
	case m.state.Listening:
		button = micLiveStyle.Render("● REC")
		prompt = fmt.Sprintf("Listening... Speak in %s", source)
		hint = "Tap again to stop recording."
	case m.state.Translating:
		button = micOffStyle.Render("🎤 MIC")
		prompt = fmt.Sprintf("Press to speak in %s", source)
		hint = fmt.Sprintf("We'll translate your speech to %s.", target)
	default:
		button = micIdleStyle.Render("🎤 MIC")
		prompt = fmt.Sprintf("Press to speak in %s", source)
		hint = fmt.Sprintf("We'll translate your speech to %s.", target)
	}
	text := lipgloss.JoinVertical(lipgloss.Left, valueStyle.Bold(true).Render(prompt), subtleStyle.Render(hint))
	return lipgloss.JoinHorizontal(lipgloss.Center, button, "  ", text)
}

func (m Model) panels() (Panel, Panel) {
	width := m.width / 2
	srcOpt, _ := language.Lookup(m.state.Source)
	tgtOpt, _ := language.Lookup(m.state.Target)
	original := Panel{
		Title:       language.Label(m.state.Source) + " (Original)",
		Flag:        srcOpt.Flag,
		Content:     m.state.Transcript,
		Placeholder: fmt.Sprintf("Your speech in %s will appear here...", language.Label(m.state.Source)),
		Loading:     m.state.Listening && m.state.Transcript == "",
		Width:       width,
		Height:      panelHeight,
	}
	translated := Panel{
		Title:       language.Label(m.state.Target) + " (Translation)",
		Flag:        tgtOpt.Flag,
		Content:     m.state.Translation,
		Placeholder: fmt.Sprintf("Translation in %s will appear here...", language.Label(m.state.Target)),
		Loading:     m.state.Translating,
		ShowSpeak:   true,
		Speaking:    m.state.Speaking,
		Width:       width,
		Height:      panelHeight,
	}
	return original, translated
}

func (m Model) panelsView() string {
	original, translated := m.panels()
	frame := m.spinner.View()
	return lipgloss.JoinHorizontal(lipgloss.Top, original.Render(frame), translated.Render(frame))
}

func (m Model) statusLine() string {
	var parts []string
	if m.state.Translating {
		parts = append(parts, "Translating...")
	}
	if m.state.Speaking {
		parts = append(parts, "Speaking translation...")
	}
	if len(parts) == 0 {
		return ""
	}
	return statusStyle.Render(m.spinner.View() + " " + strings.Join(parts, " "))
}

func (m Model) toastsView() string {
	lines := make([]string, 0, len(m.toasts)+1)
	for _, t := range m.toasts {
		lines = append(lines, toastStyle(string(t.Level)).Render("• "+t.Message))
	}
	if m.lastErr != nil {
		lines = append(lines, toastStyle("error").Render("• "+m.lastErr.Error()))
	}
	return strings.Join(lines, "\n")
}

func describe(code string) string {
	opt, ok := language.Lookup(code)
	if !ok {
		return code
	}
	return opt.Flag + " " + opt.Label
}

package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil
	case tickMsg:
		m.pump.Tick(m.ctx)
		return m, m.tick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, m.app.Console.Update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "tab":
		return m.setFocus((m.focus + 1) % focusCount)
	case "shift+tab":
		return m.setFocus((m.focus + focusCount - 1) % focusCount)
	}

	switch m.focus {
	case FocusStack:
		switch msg.String() {
		case "up", "k":
			m.app.MoveSelection(m.ctx, -1)
		case "down", "j":
			m.app.MoveSelection(m.ctx, 1)
		}
		return m, nil
	case FocusLocals:
		m.app.Locals.Scroll(msg.String())
		return m, nil
	case FocusRegisters:
		m.app.Registers.Scroll(msg.String())
		return m, nil
	case FocusDisassembly:
		m.app.Disassembly.Scroll(msg.String())
		return m, nil
	case FocusOutput:
		m.app.Console.ScrollOutput(msg.String())
		return m, nil
	}

	switch msg.String() {
	case "enter":
		m.app.Console.Submit(m.ctx, m.debugger)
		return m, nil
	case "up":
		m.app.Console.HistoryUp()
		return m, nil
	case "down":
		m.app.Console.HistoryDown()
		return m, nil
	case "pgup", "pgdown":
		m.app.Console.ScrollOutput(msg.String())
		return m, nil
	}
	return m, m.app.Console.Update(msg)
}

// setFocus 只有控制台获得焦点时输入框接收字符
func (m Model) setFocus(focus Focus) (tea.Model, tea.Cmd) {
	m.focus = focus
	if focus == FocusConsole {
		return m, m.app.Console.Focus()
	}
	m.app.Console.Blur()
	return m, nil
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View 布局：上方局部变量和寄存器，左侧栈，中间源码、输出和命令输入，右侧反汇编
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return Layout(m.app, m.focus, m.width, m.height)
}

// Layout 按终端大小渲染整个界面
func Layout(app *App, focus Focus, width, height int) string {
	statusBar := renderStatusBar(app.Status(), width)
	bodyHeight := max(height-1, 8)

	topHeight := max(bodyHeight/4, 4)
	mainHeight := bodyHeight - topHeight

	half := width / 2
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		pane(app.Locals.Title(), app.Locals, half, topHeight, focus == FocusLocals),
		pane(app.Registers.Title(), app.Registers, width-half, topHeight, focus == FocusRegisters),
	)

	stackWidth := max(width/5, 16)
	disassemblyWidth := max(width/4, 20)
	centreWidth := max(width-stackWidth-disassemblyWidth, 20)

	outputHeight := max(mainHeight/3, 4)
	inputHeight := 3
	codeHeight := max(mainHeight-outputHeight-inputHeight, 4)

	centre := lipgloss.JoinVertical(lipgloss.Left,
		pane(app.Code.Title(), app.Code, centreWidth, codeHeight, false),
		pane("Output", renderFunc(app.Console.RenderOutput), centreWidth, outputHeight, focus == FocusOutput),
		inputPane(app.Console, centreWidth, focus == FocusConsole),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		pane(app.Stack.Title(), app.Stack, stackWidth, mainHeight, focus == FocusStack),
		centre,
		pane("Disassembly", app.Disassembly, disassemblyWidth, mainHeight, focus == FocusDisassembly),
	)
	return lipgloss.JoinVertical(lipgloss.Left, top, body, statusBar)
}

// renderer 可以渲染到固定大小区域的视图
type renderer interface {
	Render(width, height int) string
}

type renderFunc func(width, height int) string

func (f renderFunc) Render(width, height int) string {
	return f(width, height)
}

// pane 带边框和标题的面板，内容应当已经按面板大小裁剪好，多出的部分截断
func pane(title string, content renderer, width, height int, focused bool) string {
	innerWidth := max(width-2, 1)
	innerHeight := max(height-3, 0)
	body := content.Render(innerWidth, innerHeight)
	style := paneStyle
	if focused {
		style = focusedPaneStyle
	}
	text := titleStyle.Render(clip(title, innerWidth))
	if body != "" {
		text += "\n" + body
	}
	return style.
		Width(innerWidth).
		Height(innerHeight + 1).
		MaxWidth(width).
		MaxHeight(height).
		Render(text)
}

func inputPane(console *Console, width int, focused bool) string {
	style := paneStyle
	if focused {
		style = focusedPaneStyle
	}
	innerWidth := max(width-2, 1)
	return style.Width(innerWidth).MaxWidth(width).Render(console.RenderInput(innerWidth))
}

func renderStatusBar(status Status, width int) string {
	left := status.State.String()
	if status.Description != "" {
		left = fmt.Sprintf("%s: %s", left, status.Description)
	}
	right := "tab focus | pgup/pgdown scroll | ctrl+c quit"
	if status.PID > 0 {
		right = fmt.Sprintf("%s pid %d | %s", status.Backend, status.PID, right)
	}
	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return statusBarStyle.Render(left + strings.Repeat(" ", padding) + right)
}

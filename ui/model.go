package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/pump"
	"github.com/sirupsen/logrus"
)

// Run 启动终端界面，直到用户退出
func Run(ctx context.Context, model Model) error {
	program := tea.NewProgram(
		model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// Focus 接收方向键的面板，tab按下面的顺序切换
type Focus int

const (
	FocusConsole Focus = iota
	FocusStack
	FocusLocals
	FocusRegisters
	FocusDisassembly
	FocusOutput
	focusCount
)

// tickMsg 定时驱动事件泵
type tickMsg time.Time

// Model 实现Bubble Tea的Model接口
// 所有Update都在同一个协程中执行，事件泵也只在这里运行
type Model struct {
	ctx      context.Context
	app      *App
	pump     *pump.Pump
	debugger debugger.Debugger
	interval time.Duration

	focus  Focus
	width  int
	height int
	ready  bool
}

func NewModel(ctx context.Context, d debugger.Debugger, app *App, p *pump.Pump, interval time.Duration) Model {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return Model{
		ctx:      ctx,
		app:      app,
		pump:     p,
		debugger: d,
		interval: interval,
		focus:    FocusConsole,
	}
}

func (m Model) App() *App {
	return m.app
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// quit 结束调试会话，杀掉被调试进程
func (m Model) quit() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	if err := m.debugger.Terminate(ctx); err != nil {
		logrus.Errorf("[Model] terminate fail, err = %v", err)
	}
	return m, tea.Quit
}

// Package ui 终端界面：栈、源码、反汇编、局部变量、寄存器和命令控制台
package ui

import (
	"context"
	"fmt"

	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/sirupsen/logrus"
)

// FrameSnapshot 切换栈帧时一次取出的所有数据，取完以后一起应用到四个视图
type FrameSnapshot struct {
	Frame        *debugger.Frame
	Source       *SourceFile
	Line         int
	Instructions []*debugger.Instruction
	Locals       []*debugger.Value
	Registers    []*debugger.Value
}

// Status 状态栏内容
type Status struct {
	State       constants.ProcessState
	Description string
	PID         int
	Backend     constants.BackendType
}

// App 界面上下文，持有所有视图，事件泵通过它更新界面
type App struct {
	debugger debugger.Debugger
	cache    *SourceCache

	Stack       *StackView
	Code        *CodeView
	Disassembly *DisassemblyView
	Locals      *ValueView
	Registers   *ValueView
	Console     *Console

	status Status
}

func NewApp(d debugger.Debugger, maxOutputEntries int) *App {
	return &App{
		debugger:    d,
		cache:       NewSourceCache(),
		Stack:       NewStackView(),
		Code:        NewCodeView(),
		Disassembly: NewDisassemblyView(),
		Locals:      NewValueView(KindLocals),
		Registers:   NewValueView(KindRegisters),
		Console:     NewConsole(maxOutputEntries),
		status:      Status{State: constants.StateInvalid},
	}
}

// SetProcess 启动成功以后记录进程信息
func (a *App) SetProcess(backend constants.BackendType, info *debugger.ProcessInfo) {
	a.status.Backend = backend
	if info == nil {
		return
	}
	a.status.PID = info.PID
	for _, bp := range info.Breakpoints {
		a.Console.Append(constants.OriginEngine, bp)
	}
}

func (a *App) Status() Status {
	return a.status
}

func (a *App) ShowStack(thread *debugger.Thread, frames []*debugger.Frame) {
	a.Stack.SetFrames(thread, frames)
}

// SelectFrame 选中一帧，先取出全部数据再同时更新四个视图，index为-1时清空
func (a *App) SelectFrame(ctx context.Context, index int) {
	frames := a.Stack.Frames()
	if index < 0 || index >= len(frames) {
		a.Stack.selected = -1
		a.applySnapshot(nil)
		return
	}
	a.Stack.selected = index
	a.applySnapshot(a.fetchSnapshot(ctx, frames[index]))
}

// MoveSelection 在栈视图中上下移动选择
func (a *App) MoveSelection(ctx context.Context, delta int) {
	frames := a.Stack.Frames()
	if len(frames) == 0 {
		return
	}
	index := a.Stack.Selected() + delta
	if index < 0 {
		index = 0
	}
	if index >= len(frames) {
		index = len(frames) - 1
	}
	if index == a.Stack.Selected() {
		return
	}
	a.SelectFrame(ctx, index)
}

func (a *App) fetchSnapshot(ctx context.Context, frame *debugger.Frame) *FrameSnapshot {
	snapshot := &FrameSnapshot{Frame: frame}
	snapshot.Source = a.cache.Load(frame.File)
	snapshot.Line = sourceLine(frame, snapshot.Source)

	var err error
	if snapshot.Instructions, err = a.debugger.Disassemble(ctx, frame); err != nil {
		a.fetchFail("disassemble", frame, err)
		snapshot.Instructions = nil
	}
	if snapshot.Locals, err = a.debugger.Locals(ctx, frame); err != nil {
		a.fetchFail("locals", frame, err)
		snapshot.Locals = nil
	}
	if snapshot.Registers, err = a.debugger.Registers(ctx, frame); err != nil {
		a.fetchFail("registers", frame, err)
		snapshot.Registers = nil
	}
	return snapshot
}

func (a *App) fetchFail(part string, frame *debugger.Frame, err error) {
	logrus.Errorf("[App] fetch %s of frame %s fail, err = %v", part, frame.ID, err)
	a.Console.Append(constants.OriginEngineError, fmt.Sprintf("%s: %v", part, err))
}

func (a *App) applySnapshot(snapshot *FrameSnapshot) {
	a.Code.SetFrame(snapshot)
	a.Disassembly.SetFrame(snapshot)
	a.Locals.SetFrame(snapshot)
	a.Registers.SetFrame(snapshot)
}

func (a *App) SetStatus(state constants.ProcessState, description string) {
	a.status.State = state
	a.status.Description = description
}

func (a *App) AppendOutput(origin constants.OutputOrigin, text string) {
	a.Console.Append(origin, text)
}

func (a *App) InvalidateSourceCache() {
	a.cache.Invalidate()
}

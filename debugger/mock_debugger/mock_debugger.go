// Package mock_debugger 一个脚本化的内存调试引擎，用于测试事件泵和界面
package mock_debugger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fansqz/debugview/constants"
	. "github.com/fansqz/debugview/debugger"
	e "github.com/fansqz/debugview/error"
)

// 可以注入错误和统计调用次数的操作
const (
	OpLaunch      = "launch"
	OpThreads     = "threads"
	OpFrames      = "frames"
	OpLocals      = "locals"
	OpRegisters   = "registers"
	OpDisassemble = "disassemble"
	OpCommand     = "command"
	OpTerminate   = "terminate"
)

type MockDebugger struct {
	lock sync.Mutex

	events *EventQueue
	stdout *OutputBuffer
	stderr *OutputBuffer
	// endlessStdout 不为空时ReadStdout永远返回数据
	endlessStdout string

	processInfo *ProcessInfo
	threads     []*Thread
	frames      map[int][]*Frame
	locals      map[FrameID][]*Value
	registers   map[FrameID][]*Value
	disassembly map[FrameID][]*Instruction
	results     map[string]*CommandResult

	failures map[string]error
	calls    map[string]int
	commands []string

	launchOption *LaunchOption
	terminated   bool
}

func NewMockDebugger() *MockDebugger {
	return &MockDebugger{
		events:      NewEventQueue(),
		stdout:      NewOutputBuffer(),
		stderr:      NewOutputBuffer(),
		processInfo: &ProcessInfo{PID: 4242},
		frames:      map[int][]*Frame{},
		locals:      map[FrameID][]*Value{},
		registers:   map[FrameID][]*Value{},
		disassembly: map[FrameID][]*Instruction{},
		results:     map[string]*CommandResult{},
		failures:    map[string]error{},
		calls:       map[string]int{},
	}
}

// Push 推入一个引擎事件
func (m *MockDebugger) Push(events ...*Event) {
	for _, event := range events {
		m.events.Push(event)
	}
}

// WriteStdout 模拟被调试程序的标准输出
func (m *MockDebugger) WriteStdout(s string) {
	m.stdout.WriteString(s)
}

// WriteStderr 模拟被调试程序的标准错误
func (m *MockDebugger) WriteStderr(s string) {
	m.stderr.WriteString(s)
}

// SetEndlessStdout 之后每次读取标准输出都返回chunk，用于验证读取次数有上限
func (m *MockDebugger) SetEndlessStdout(chunk string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.endlessStdout = chunk
}

// SetThreads 设置线程列表
func (m *MockDebugger) SetThreads(threads ...*Thread) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.threads = threads
}

func (m *MockDebugger) SetFrames(threadID int, frames ...*Frame) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.frames[threadID] = frames
}

func (m *MockDebugger) SetLocals(id FrameID, values ...*Value) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.locals[id] = values
}

func (m *MockDebugger) SetRegisters(id FrameID, values ...*Value) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.registers[id] = values
}

func (m *MockDebugger) SetDisassembly(id FrameID, instructions ...*Instruction) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.disassembly[id] = instructions
}

// SetCommandResult 设置命令的执行结果，没有设置的命令原样返回命令文本
func (m *MockDebugger) SetCommandResult(command string, result *CommandResult) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.results[command] = result
}

// Fail 让某个操作返回错误，err为nil时恢复
func (m *MockDebugger) Fail(op string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls 某个操作被调用的次数
func (m *MockDebugger) Calls(op string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[op]
}

// Commands 收到的所有命令
func (m *MockDebugger) Commands() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string{}, m.commands...)
}

// Terminated 是否调用过Terminate
func (m *MockDebugger) Terminated() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.terminated
}

// LaunchOption 最近一次Launch的参数
func (m *MockDebugger) LaunchOption() *LaunchOption {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.launchOption
}

// call 记录一次调用，返回注入的错误
func (m *MockDebugger) call(op string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls[op]++
	return m.failures[op]
}

func (m *MockDebugger) Launch(ctx context.Context, option *LaunchOption) (*ProcessInfo, error) {
	if option == nil || option.ExecFile == "" {
		return nil, e.ErrNoExecutable
	}
	if err := m.call(OpLaunch); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
	}
	m.lock.Lock()
	m.launchOption = option
	info := *m.processInfo
	for _, bp := range option.Breakpoints {
		info.Breakpoints = append(info.Breakpoints, "Breakpoint: "+bp)
	}
	m.lock.Unlock()
	m.Push(NewStateEvent(constants.StateLaunching))
	return &info, nil
}

func (m *MockDebugger) NextEvent() (*Event, bool) {
	return m.events.Pop()
}

func (m *MockDebugger) ReadStdout(max int) string {
	m.lock.Lock()
	endless := m.endlessStdout
	m.lock.Unlock()
	if endless != "" {
		if len(endless) > max {
			return endless[:max]
		}
		return endless
	}
	return m.stdout.Read(max)
}

func (m *MockDebugger) ReadStderr(max int) string {
	return m.stderr.Read(max)
}

func (m *MockDebugger) HandleCommand(ctx context.Context, command string) *CommandResult {
	m.lock.Lock()
	m.commands = append(m.commands, command)
	m.lock.Unlock()
	if err := m.call(OpCommand); err != nil {
		return NewCommandFailure(err.Error())
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if result, ok := m.results[command]; ok {
		return result
	}
	return NewCommandSuccess(strings.TrimSpace(command))
}

func (m *MockDebugger) Threads(ctx context.Context) ([]*Thread, error) {
	if err := m.call(OpThreads); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]*Thread{}, m.threads...), nil
}

func (m *MockDebugger) Frames(ctx context.Context, threadID int) ([]*Frame, error) {
	if err := m.call(OpFrames); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	frames, ok := m.frames[threadID]
	if !ok {
		return nil, e.ErrThreadNotFound
	}
	answer := make([]*Frame, 0, len(frames))
	for _, f := range frames {
		frame := *f
		answer = append(answer, &frame)
	}
	return answer, nil
}

func (m *MockDebugger) Locals(ctx context.Context, frame *Frame) ([]*Value, error) {
	if err := m.call(OpLocals); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.locals[frame.ID], nil
}

func (m *MockDebugger) Registers(ctx context.Context, frame *Frame) ([]*Value, error) {
	if err := m.call(OpRegisters); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.registers[frame.ID], nil
}

func (m *MockDebugger) Disassemble(ctx context.Context, frame *Frame) ([]*Instruction, error) {
	if err := m.call(OpDisassemble); err != nil {
		return nil, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	instructions, ok := m.disassembly[frame.ID]
	if !ok {
		return nil, e.ErrDisassembleNotSupport
	}
	return instructions, nil
}

func (m *MockDebugger) Terminate(ctx context.Context) error {
	if err := m.call(OpTerminate); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.terminated = true
	return nil
}

package debugger

import (
	"fmt"
	"time"

	"github.com/fansqz/debugview/constants"
)

// LaunchOption 启动调试的参数
type LaunchOption struct {
	// ExecFile 被调试的可执行文件
	ExecFile string
	// Args 传递给被调试程序的参数
	Args []string
	// WorkPath 被调试程序的工作目录
	WorkPath string
	// Breakpoints 启动前设置的断点，按函数名设置
	Breakpoints []string
	// RequestTimeout 单个引擎请求的超时时间
	RequestTimeout time.Duration
}

// ProcessInfo 启动成功以后的进程信息
type ProcessInfo struct {
	PID int
	// Breakpoints 引擎确认过的断点描述
	Breakpoints []string
}

// FrameID 栈帧标识，(线程, 栈帧序号)
type FrameID struct {
	Thread int `json:"thread"`
	Index  int `json:"index"`
}

func (f FrameID) String() string {
	return fmt.Sprintf("%d#%d", f.Thread, f.Index)
}

// Thread 线程
type Thread struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Frame 栈帧，引擎所有，界面只在展示期间持有一份拷贝
type Frame struct {
	ID       FrameID `json:"id"`
	PC       uint64  `json:"pc"`
	Function string  `json:"function"`
	// File 源文件的完整路径，没有调试信息时为空
	File string `json:"file"`
	Line int    `json:"line"`
	// Ref 引擎内部对该栈帧的引用，比如dap的frameId
	Ref int `json:"ref"`
}

// Location 形如 main:12 的位置描述
func (f *Frame) Location() string {
	if f.Line <= 0 {
		return f.Function
	}
	return fmt.Sprintf("%s:%d", f.Function, f.Line)
}

// Value 变量或寄存器的值，每次停止都会重建
type Value struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	// Changed 与上一次停止相比值发生了变化
	Changed  bool     `json:"changed"`
	Children []*Value `json:"children"`
}

// Instruction 反汇编出的一条指令
type Instruction struct {
	Address uint64 `json:"address"`
	// Symbol 形如 main+4
	Symbol string `json:"symbol"`
	Text   string `json:"text"`
}

func (i *Instruction) String() string {
	if i.Symbol == "" {
		return fmt.Sprintf("0x%x: %s", i.Address, i.Text)
	}
	return fmt.Sprintf("0x%x <%s>: %s", i.Address, i.Symbol, i.Text)
}

// Event 调试引擎产生的事件
type Event struct {
	Broadcaster constants.BroadcasterType `json:"broadcaster"`
	// State 进程事件的新状态，非进程事件为StateInvalid
	State constants.ProcessState `json:"state"`
	// ThreadID 停止事件中引起停止的线程，0表示未知
	ThreadID    int    `json:"threadId"`
	ExitCode    int    `json:"exitCode"`
	Description string `json:"description"`
	// Text 非进程事件携带的文本
	Text string `json:"text"`
}

// NewStateEvent 创建进程状态事件
func NewStateEvent(state constants.ProcessState) *Event {
	return &Event{
		Broadcaster: constants.BroadcasterProcess,
		State:       state,
	}
}

// NewStoppedEvent 创建停止事件
func NewStoppedEvent(threadID int, description string) *Event {
	return &Event{
		Broadcaster: constants.BroadcasterProcess,
		State:       constants.StateStopped,
		ThreadID:    threadID,
		Description: description,
	}
}

// NewExitedEvent 创建退出事件
func NewExitedEvent(code int, description string) *Event {
	return &Event{
		Broadcaster: constants.BroadcasterProcess,
		State:       constants.StateExited,
		ExitCode:    code,
		Description: description,
	}
}

// NewEngineOutputEvent 创建引擎输出事件
func NewEngineOutputEvent(text string) *Event {
	return &Event{
		Broadcaster: constants.BroadcasterEngine,
		State:       constants.StateInvalid,
		Text:        text,
	}
}

// IsProcessEvent 是否是进程状态事件
func (e *Event) IsProcessEvent() bool {
	return e.Broadcaster == constants.BroadcasterProcess
}

// CommandResult 命令解释器的执行结果
type CommandResult struct {
	Succeeded bool
	Output    string
	Error     string
}

// NewCommandSuccess 命令执行成功
func NewCommandSuccess(output string) *CommandResult {
	return &CommandResult{Succeeded: true, Output: output}
}

// NewCommandFailure 命令执行失败
func NewCommandFailure(message string) *CommandResult {
	return &CommandResult{Succeeded: false, Error: message}
}

package constants

// ProcessState 被调试进程的状态，由调试引擎驱动，本工具只观察不设置
type ProcessState string

const (
	StateInvalid   ProcessState = "invalid"
	StateConnected ProcessState = "connected"
	StateAttaching ProcessState = "attaching"
	StateLaunching ProcessState = "launching"
	StateRunning   ProcessState = "running"
	StateStopped   ProcessState = "stopped"
	StateCrashed   ProcessState = "crashed"
	StateDetached  ProcessState = "detached"
	StateExited    ProcessState = "exited"
	StateUnloaded  ProcessState = "unloaded"
)

// IsTerminal 进程进入该状态以后，会话不会再有有意义的更新
func (s ProcessState) IsTerminal() bool {
	switch s {
	case StateExited, StateCrashed, StateDetached, StateUnloaded:
		return true
	}
	return false
}

// IsInformational 仅用于展示的状态，不需要重建任何视图
func (s ProcessState) IsInformational() bool {
	switch s {
	case StateRunning, StateLaunching, StateAttaching, StateConnected:
		return true
	}
	return false
}

func (s ProcessState) String() string {
	if s == "" {
		return string(StateInvalid)
	}
	return string(s)
}

// BroadcasterType 事件的来源
type BroadcasterType string

const (
	// BroadcasterProcess 进程状态变化事件
	BroadcasterProcess BroadcasterType = "process"
	// BroadcasterEngine 调试引擎自身的输出（控制台文本、诊断信息）
	BroadcasterEngine BroadcasterType = "engine"
)

// ViewID 界面中的各个视图
type ViewID string

const (
	ViewStack       ViewID = "stack"
	ViewCode        ViewID = "code"
	ViewDisassembly ViewID = "disassembly"
	ViewLocals      ViewID = "locals"
	ViewRegisters   ViewID = "registers"
	ViewOutput      ViewID = "output"
	ViewStatus      ViewID = "status"
)

// FrameViews 跟随当前栈帧刷新的视图
var FrameViews = []ViewID{ViewCode, ViewDisassembly, ViewLocals, ViewRegisters}

// OutputOrigin 输出面板中文本的来源，不同来源使用不同颜色
type OutputOrigin string

const (
	// OriginCommand 用户输入的命令回显
	OriginCommand OutputOrigin = "command"
	// OriginEngine 调试引擎的正常输出
	OriginEngine OutputOrigin = "engine"
	// OriginEngineError 调试引擎的错误输出
	OriginEngineError OutputOrigin = "engine-error"
	// OriginProgram 被调试程序的stdout/stderr
	OriginProgram OutputOrigin = "program"
	// OriginStatus 会话状态提示
	OriginStatus OutputOrigin = "status"
)

// BackendType 调试引擎类型
type BackendType string

const (
	// BackendDAP 任意实现了Debug Adapter Protocol的引擎，默认lldb-dap
	BackendDAP BackendType = "dap"
	// BackendGDB gdb的MI接口
	BackendGDB BackendType = "gdb"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	BreakpointStopped StoppedReasonType = "breakpoint"
	StepStopped       StoppedReasonType = "step"
	SignalStopped     StoppedReasonType = "signal"
	PauseStopped      StoppedReasonType = "pause"
	UnknownStopped    StoppedReasonType = "unknown"
)

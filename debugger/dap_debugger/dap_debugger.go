// Package dap_debugger 通过Debug Adapter Protocol驱动调试引擎，默认使用lldb-dap
package dap_debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fansqz/debugview/constants"
	. "github.com/fansqz/debugview/debugger"
	e "github.com/fansqz/debugview/error"
	"github.com/fansqz/debugview/utils"
	"github.com/fansqz/debugview/utils/gosync"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

const (
	OptionTimeout = time.Second * 10
	// ExitTimeout 断开连接以后等待适配器退出的时间
	ExitTimeout = 3 * time.Second
)

// DefaultCommand 默认的调试适配器
var DefaultCommand = []string{"lldb-dap"}

// Option dap引擎的参数
type Option struct {
	// Command 适配器的启动命令，为空时使用DefaultCommand
	Command []string
	// AdapterID initialize请求中的adapterID
	AdapterID string
	// LaunchArguments 合并到launch请求参数中的适配器私有参数，比如dlv的mode
	LaunchArguments map[string]interface{}
	// MaxValueDepth 展开变量children的最大深度
	MaxValueDepth int
	// MaxChildren 每个变量最多展开的children数量
	MaxChildren int
	// DisassemblyWindow 反汇编的指令条数
	DisassemblyWindow int
}

// adapterStarter 启动适配器，返回适配器的输出和输入
type adapterStarter func(command []string) (io.Reader, io.WriteCloser, func() error, error)

type DAPDebugger struct {
	option       *Option
	launchOption *LaunchOption

	client       *Client
	startAdapter adapterStarter
	// waitAdapter 等待适配器进程退出
	waitAdapter func() error

	capabilities dap.Capabilities

	// 调试的状态管理
	StatusManager *utils.StatusManager

	// 计算变量和寄存器是否变化
	tracker *ValueTracker

	events *EventQueue
	stdout *OutputBuffer
	stderr *OutputBuffer

	initialized     chan struct{}
	initializedOnce sync.Once
	pid             atomic.Int64
	// 最近一次读取局部变量的栈帧，命令在这个栈帧上下文中执行
	currentFrameRef atomic.Int64
}

func NewDAPDebugger(option *Option) *DAPDebugger {
	if option == nil {
		option = &Option{}
	}
	if option.MaxValueDepth <= 0 {
		option.MaxValueDepth = 3
	}
	if option.MaxChildren <= 0 {
		option.MaxChildren = 64
	}
	if option.DisassemblyWindow <= 0 {
		option.DisassemblyWindow = 64
	}
	if option.AdapterID == "" {
		option.AdapterID = "lldb-dap"
	}
	return &DAPDebugger{
		option:        option,
		startAdapter:  startAdapterProcess,
		StatusManager: utils.NewStatusManager(),
		tracker:       NewValueTracker(),
		events:        NewEventQueue(),
		stdout:        NewOutputBuffer(),
		stderr:        NewOutputBuffer(),
		initialized:   make(chan struct{}),
	}
}

// startAdapterProcess 启动适配器进程，通过stdio通信
func startAdapterProcess(command []string) (io.Reader, io.WriteCloser, func() error, error) {
	cmd := exec.Command(command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	// 适配器自身的日志写到日志文件
	cmd.Stderr = logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	if err = cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	logrus.Infof("[DAPDebugger] started %v, pid = %d", command, cmd.Process.Pid)
	wait := func() error {
		killer := utils.NewTimeoutManager("dap adapter exit")
		killer.Start(context.Background(), ExitTimeout, func() {
			_ = cmd.Process.Kill()
		})
		defer killer.Cancel()
		return cmd.Wait()
	}
	return stdout, stdin, wait, nil
}

// Launch 启动适配器，按照 initialize -> launch -> initialized -> 断点 -> configurationDone 的顺序启动程序
func (d *DAPDebugger) Launch(ctx context.Context, option *LaunchOption) (*ProcessInfo, error) {
	if option == nil || option.ExecFile == "" {
		return nil, e.ErrNoExecutable
	}
	d.launchOption = option
	command := d.option.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	r, w, wait, err := d.startAdapter(command)
	if err != nil {
		logrus.Errorf("[DAPDebugger] Launch fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
	}
	d.waitAdapter = wait
	d.client = NewClient(r, w, d.onEvent)

	initialize := &dap.InitializeRequest{Request: newRequest("initialize")}
	initialize.Arguments = dap.InitializeRequestArguments{
		ClientID:             "debugview",
		ClientName:           "debugview",
		AdapterID:            d.option.AdapterID,
		Locale:               "en-US",
		LinesStartAt1:        true,
		ColumnsStartAt1:      true,
		PathFormat:           "path",
		SupportsVariableType: true,
	}
	response, err := d.send(ctx, initialize)
	if err != nil {
		return nil, d.launchFail(err)
	}
	if r, ok := response.(*dap.InitializeResponse); ok {
		d.capabilities = r.Body
	}

	arguments, err := d.launchArguments(option)
	if err != nil {
		return nil, d.launchFail(err)
	}
	// launch的响应可能在configurationDone之后才返回，所以异步发送
	launchResult := make(chan error, 1)
	gosync.Go(ctx, func(ctx context.Context) {
		request := &dap.LaunchRequest{Request: newRequest("launch"), Arguments: arguments}
		_, err := d.client.Send(ctx, request)
		launchResult <- err
	})

	timeout := d.requestTimeout()
	select {
	case <-d.initialized:
	case err = <-launchResult:
		if err != nil {
			return nil, d.launchFail(err)
		}
		// 有的适配器先返回launch响应，再发送initialized事件
		select {
		case <-d.initialized:
		case <-time.After(timeout):
			return nil, d.launchFail(fmt.Errorf("wait initialized: %w", e.ErrRequestTimeout))
		}
		launchResult <- nil
	case <-time.After(timeout):
		return nil, d.launchFail(fmt.Errorf("wait initialized: %w", e.ErrRequestTimeout))
	}

	info := &ProcessInfo{}
	info.Breakpoints = d.setFunctionBreakpoints(ctx, option.Breakpoints)

	if d.capabilities.SupportsConfigurationDoneRequest {
		request := &dap.ConfigurationDoneRequest{Request: newRequest("configurationDone")}
		if _, err = d.send(ctx, request); err != nil {
			return nil, d.launchFail(err)
		}
	}
	select {
	case err = <-launchResult:
		if err != nil {
			return nil, d.launchFail(err)
		}
	case <-time.After(timeout):
		return nil, d.launchFail(fmt.Errorf("launch: %w", e.ErrRequestTimeout))
	}
	info.PID = int(d.pid.Load())
	logrus.Infof("[DAPDebugger] Launch %s, pid = %d", option.ExecFile, info.PID)
	return info, nil
}

func (d *DAPDebugger) launchArguments(option *LaunchOption) (json.RawMessage, error) {
	arguments := map[string]interface{}{
		"program":     option.ExecFile,
		"args":        option.Args,
		"stopOnEntry": false,
	}
	if option.Args == nil {
		arguments["args"] = []string{}
	}
	if option.WorkPath != "" {
		arguments["cwd"] = option.WorkPath
	}
	for k, v := range d.option.LaunchArguments {
		arguments[k] = v
	}
	return json.Marshal(arguments)
}

// setFunctionBreakpoints 设置初始的函数断点，返回确认过的断点描述
func (d *DAPDebugger) setFunctionBreakpoints(ctx context.Context, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	if !d.capabilities.SupportsFunctionBreakpoints {
		d.events.Push(NewEngineOutputEvent("adapter does not support function breakpoints"))
		return nil
	}
	request := &dap.SetFunctionBreakpointsRequest{Request: newRequest("setFunctionBreakpoints")}
	for _, name := range names {
		request.Arguments.Breakpoints = append(request.Arguments.Breakpoints, dap.FunctionBreakpoint{Name: name})
	}
	response, err := d.send(ctx, request)
	if err != nil {
		// 断点设置失败不影响启动
		logrus.Warnf("[DAPDebugger] setFunctionBreakpoints fail, err = %v", err)
		d.events.Push(NewEngineOutputEvent(fmt.Sprintf("breakpoints: %v", err)))
		return nil
	}
	r, ok := response.(*dap.SetFunctionBreakpointsResponse)
	if !ok {
		return nil
	}
	var answer []string
	for i, bp := range r.Body.Breakpoints {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if !bp.Verified {
			d.events.Push(NewEngineOutputEvent(fmt.Sprintf("breakpoint %s not verified: %s", name, bp.Message)))
			continue
		}
		location := name
		if bp.Source != nil && bp.Source.Path != "" {
			location = fmt.Sprintf("%s at %s:%d", name, bp.Source.Path, bp.Line)
		}
		answer = append(answer, fmt.Sprintf("Breakpoint %d: %s", bp.Id, location))
	}
	return answer
}

func (d *DAPDebugger) launchFail(err error) error {
	logrus.Errorf("[DAPDebugger] Launch fail, err = %v", err)
	_ = d.Terminate(context.Background())
	return fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
}

func (d *DAPDebugger) NextEvent() (*Event, bool) {
	return d.events.Pop()
}

func (d *DAPDebugger) ReadStdout(max int) string {
	return d.stdout.Read(max)
}

func (d *DAPDebugger) ReadStderr(max int) string {
	return d.stderr.Read(max)
}

// HandleCommand 通过repl上下文的evaluate请求执行命令
func (d *DAPDebugger) HandleCommand(ctx context.Context, command string) *CommandResult {
	if d.client == nil {
		return NewCommandFailure(e.ErrDebuggerIsClosed.Error())
	}
	request := &dap.EvaluateRequest{Request: newRequest("evaluate")}
	request.Arguments = dap.EvaluateArguments{
		Expression: command,
		Context:    "repl",
		FrameId:    int(d.currentFrameRef.Load()),
	}
	response, err := d.send(ctx, request)
	if err != nil {
		if response != nil {
			return NewCommandFailure(ResponseMessage(response))
		}
		return NewCommandFailure(err.Error())
	}
	if r, ok := response.(*dap.EvaluateResponse); ok {
		return NewCommandSuccess(r.Body.Result)
	}
	return NewCommandSuccess("")
}

func (d *DAPDebugger) Threads(ctx context.Context) ([]*Thread, error) {
	response, err := d.send(ctx, &dap.ThreadsRequest{Request: newRequest("threads")})
	if err != nil {
		logrus.Errorf("[DAPDebugger] Threads fail, err = %v", err)
		return nil, err
	}
	r, _ := response.(*dap.ThreadsResponse)
	if r == nil {
		return []*Thread{}, nil
	}
	answer := make([]*Thread, 0, len(r.Body.Threads))
	for _, t := range r.Body.Threads {
		answer = append(answer, &Thread{ID: t.Id, Name: t.Name})
	}
	return answer, nil
}

func (d *DAPDebugger) Frames(ctx context.Context, threadID int) ([]*Frame, error) {
	if !d.StatusManager.Is(constants.StateStopped) {
		return nil, e.ErrProcessNotStopped
	}
	request := &dap.StackTraceRequest{Request: newRequest("stackTrace")}
	request.Arguments = dap.StackTraceArguments{ThreadId: threadID}
	response, err := d.send(ctx, request)
	if err != nil {
		logrus.Errorf("[DAPDebugger] Frames fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrThreadNotFound, err)
	}
	r, _ := response.(*dap.StackTraceResponse)
	if r == nil {
		return []*Frame{}, nil
	}
	answer := make([]*Frame, 0, len(r.Body.StackFrames))
	for i, f := range r.Body.StackFrames {
		frame := &Frame{
			ID:       FrameID{Thread: threadID, Index: i},
			PC:       parseAddress(f.InstructionPointerReference),
			Function: f.Name,
			Line:     f.Line,
			Ref:      f.Id,
		}
		if f.Source != nil {
			frame.File = f.Source.Path
		}
		if frame.File == "" {
			frame.Line = 0
		}
		answer = append(answer, frame)
	}
	return answer, nil
}

// Locals 读取除寄存器和全局变量以外的所有作用域
func (d *DAPDebugger) Locals(ctx context.Context, frame *Frame) ([]*Value, error) {
	d.currentFrameRef.Store(int64(frame.Ref))
	scopes, err := d.scopes(ctx, frame)
	if err != nil {
		return nil, err
	}
	answer := make([]*Value, 0, 16)
	for _, scope := range scopes {
		if isRegisterScope(scope) || isGlobalScope(scope) {
			continue
		}
		values, err := d.variables(ctx, scope.VariablesReference, 1)
		if err != nil {
			return nil, err
		}
		answer = append(answer, values...)
	}
	d.tracker.Mark(fmt.Sprintf("locals/%d/%s", frame.ID.Index, frame.Function), answer)
	return answer, nil
}

// Registers 读取寄存器作用域，lldb会把寄存器分组，每组是一个有children的节点
func (d *DAPDebugger) Registers(ctx context.Context, frame *Frame) ([]*Value, error) {
	scopes, err := d.scopes(ctx, frame)
	if err != nil {
		return nil, err
	}
	answer := make([]*Value, 0, 32)
	for _, scope := range scopes {
		if !isRegisterScope(scope) {
			continue
		}
		values, err := d.variables(ctx, scope.VariablesReference, 1)
		if err != nil {
			return nil, err
		}
		answer = append(answer, values...)
	}
	d.tracker.Mark(fmt.Sprintf("registers/%d", frame.ID.Index), answer)
	return answer, nil
}

func (d *DAPDebugger) scopes(ctx context.Context, frame *Frame) ([]dap.Scope, error) {
	if !d.StatusManager.Is(constants.StateStopped) {
		return nil, e.ErrProcessNotStopped
	}
	request := &dap.ScopesRequest{Request: newRequest("scopes")}
	request.Arguments = dap.ScopesArguments{FrameId: frame.Ref}
	response, err := d.send(ctx, request)
	if err != nil {
		logrus.Errorf("[DAPDebugger] scopes fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrFrameNotFound, err)
	}
	r, _ := response.(*dap.ScopesResponse)
	if r == nil {
		return nil, nil
	}
	return r.Body.Scopes, nil
}

// variables 读取变量，递归展开children直到MaxValueDepth
func (d *DAPDebugger) variables(ctx context.Context, reference int, depth int) ([]*Value, error) {
	request := &dap.VariablesRequest{Request: newRequest("variables")}
	request.Arguments = dap.VariablesArguments{VariablesReference: reference}
	if d.capabilities.SupportsVariablePaging {
		request.Arguments.Count = d.option.MaxChildren
	}
	response, err := d.send(ctx, request)
	if err != nil {
		logrus.Errorf("[DAPDebugger] variables fail, err = %v", err)
		return nil, err
	}
	r, _ := response.(*dap.VariablesResponse)
	if r == nil {
		return []*Value{}, nil
	}
	variables := r.Body.Variables
	if len(variables) > d.option.MaxChildren {
		variables = variables[:d.option.MaxChildren]
	}
	answer := make([]*Value, 0, len(variables))
	for _, v := range variables {
		value := &Value{Name: v.Name, Type: v.Type, Value: v.Value}
		if v.VariablesReference > 0 && depth < d.option.MaxValueDepth {
			children, err := d.variables(ctx, v.VariablesReference, depth+1)
			if err != nil {
				logrus.Warnf("[DAPDebugger] read children of %s fail, err = %v", v.Name, err)
			} else {
				value.Children = children
			}
		}
		answer = append(answer, value)
	}
	return answer, nil
}

func isRegisterScope(scope dap.Scope) bool {
	return scope.PresentationHint == "registers" || strings.EqualFold(scope.Name, "registers")
}

func isGlobalScope(scope dap.Scope) bool {
	return strings.EqualFold(scope.Name, "globals")
}

// Disassemble 反汇编pc附近的指令，pc位于窗口中间
func (d *DAPDebugger) Disassemble(ctx context.Context, frame *Frame) ([]*Instruction, error) {
	if !d.capabilities.SupportsDisassembleRequest || frame.PC == 0 {
		return nil, e.ErrDisassembleNotSupport
	}
	request := &dap.DisassembleRequest{Request: newRequest("disassemble")}
	request.Arguments = dap.DisassembleArguments{
		MemoryReference:   fmt.Sprintf("0x%x", frame.PC),
		InstructionOffset: -d.option.DisassemblyWindow / 2,
		InstructionCount:  d.option.DisassemblyWindow,
		ResolveSymbols:    true,
	}
	response, err := d.send(ctx, request)
	if err != nil {
		logrus.Errorf("[DAPDebugger] Disassemble fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrDisassembleNotSupport, err)
	}
	r, _ := response.(*dap.DisassembleResponse)
	if r == nil {
		return []*Instruction{}, nil
	}
	answer := make([]*Instruction, 0, len(r.Body.Instructions))
	for _, ins := range r.Body.Instructions {
		answer = append(answer, &Instruction{
			Address: parseAddress(ins.Address),
			Symbol:  ins.Symbol,
			Text:    ins.Instruction,
		})
	}
	return answer, nil
}

// Terminate 断开连接并杀死被调试程序，然后等待适配器退出
func (d *DAPDebugger) Terminate(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	select {
	case <-d.client.Done():
	default:
		request := &dap.DisconnectRequest{Request: newRequest("disconnect")}
		request.Arguments = &dap.DisconnectArguments{TerminateDebuggee: true}
		ctx, cancel := context.WithTimeout(ctx, ExitTimeout)
		if _, err := d.client.Send(ctx, request); err != nil {
			logrus.Warnf("[DAPDebugger] disconnect fail, err = %v", err)
		}
		cancel()
	}
	_ = d.client.Close()
	if d.waitAdapter != nil {
		if err := d.waitAdapter(); err != nil {
			logrus.Infof("[DAPDebugger] adapter exited, err = %v", err)
		}
		d.waitAdapter = nil
	}
	logrus.Infof("[DAPDebugger] Terminate")
	return nil
}

// onEvent 把适配器事件转换成进程事件
func (d *DAPDebugger) onEvent(message dap.EventMessage) {
	switch event := message.(type) {
	case *dap.InitializedEvent:
		d.initializedOnce.Do(func() { close(d.initialized) })
		d.pushStateEvent(NewStateEvent(constants.StateConnected))
	case *dap.ProcessEvent:
		d.pid.Store(int64(event.Body.SystemProcessId))
		d.tracker.Reset()
		state := constants.StateLaunching
		if strings.HasPrefix(event.Body.StartMethod, "attach") {
			state = constants.StateAttaching
		}
		ev := NewStateEvent(state)
		ev.Description = fmt.Sprintf("%s pid %d", event.Body.Name, event.Body.SystemProcessId)
		d.pushStateEvent(ev)
	case *dap.ContinuedEvent:
		if !d.StatusManager.Is(constants.StateRunning) {
			d.pushStateEvent(NewStateEvent(constants.StateRunning))
		}
	case *dap.StoppedEvent:
		d.tracker.NextStop()
		description := event.Body.Reason
		if event.Body.Description != "" {
			description = event.Body.Description
		}
		if event.Body.Text != "" {
			description = fmt.Sprintf("%s: %s", description, event.Body.Text)
		}
		d.pushStateEvent(NewStoppedEvent(event.Body.ThreadId, description))
	case *dap.ExitedEvent:
		d.pushStateEvent(NewExitedEvent(event.Body.ExitCode, ""))
	case *dap.TerminatedEvent:
		// 没有exited事件就结束了，说明调试器和进程分离
		d.pushStateEvent(NewStateEvent(constants.StateDetached))
	case *dap.OutputEvent:
		switch event.Body.Category {
		case "stdout":
			d.stdout.WriteString(event.Body.Output)
		case "stderr":
			d.stderr.WriteString(event.Body.Output)
		case "telemetry":
		default:
			d.events.Push(NewEngineOutputEvent(event.Body.Output))
		}
	default:
		logrus.Debugf("[DAPDebugger] ignore event %s", message.GetEvent().Event)
	}
}

// pushStateEvent 推入进程事件，会话终止以后不再推入任何进程事件
func (d *DAPDebugger) pushStateEvent(event *Event) {
	if d.StatusManager.IsTerminal() {
		return
	}
	if event.State.IsTerminal() && !d.StatusManager.MarkTerminal() {
		return
	}
	d.StatusManager.Set(event.State)
	d.events.Push(event)
}

func (d *DAPDebugger) requestTimeout() time.Duration {
	if d.launchOption != nil && d.launchOption.RequestTimeout > 0 {
		return d.launchOption.RequestTimeout
	}
	return OptionTimeout
}

func (d *DAPDebugger) send(ctx context.Context, request dap.RequestMessage) (dap.ResponseMessage, error) {
	if d.client == nil {
		return nil, e.ErrDebuggerIsClosed
	}
	ctx, cancel := context.WithTimeout(ctx, d.requestTimeout())
	defer cancel()
	return d.client.Send(ctx, request)
}

func newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{
			Type: "request",
		},
		Command: command,
	}
}

// parseAddress 解析0x开头的地址，失败返回0
func parseAddress(address string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(address), 0, 64)
	if err != nil {
		return 0
	}
	return n
}

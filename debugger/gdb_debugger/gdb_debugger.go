package gdb_debugger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/fansqz/debugview/constants"
	. "github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/debugger/gdb_debugger/gdb"
	e "github.com/fansqz/debugview/error"
	"github.com/fansqz/debugview/utils"
	"github.com/fansqz/debugview/utils/gosync"
	"github.com/sirupsen/logrus"
)

const (
	OptionTimeout = time.Second * 10
)

// gdb在进程分离时只会在控制台输出这样一行
var detachedPattern = regexp.MustCompile(`\[Inferior \d+ \(process \d+\) detached\]`)

// Option gdb引擎的参数
type Option struct {
	// Command gdb的启动命令，为空时使用gdb.DefaultCommand
	Command []string
	// MaxValueDepth 展开变量children的最大深度
	MaxValueDepth int
	// MaxChildren 每个变量最多展开的children数量
	MaxChildren int
	// DisassemblyWindow 反汇编的指令条数
	DisassemblyWindow int
}

type GDBDebugger struct {
	option       *Option
	launchOption *LaunchOption

	// gdb实例
	GDB *gdb.Gdb
	// newGdb 启动gdb，测试时替换成假的会话
	newGdb func(command []string, onNotification gdb.NotificationCallback) (*gdb.Gdb, error)

	// 变量对象名称管理
	ReferenceUtil *ReferenceUtil

	// 调试的状态管理
	StatusManager *utils.StatusManager

	// gdb输出工具，用于处理gdb输出
	GdbOutputUtil *GDBOutputUtil

	// 计算局部变量和寄存器是否变化
	tracker *ValueTracker

	events *EventQueue
	// 被调试程序使用伪终端，stdout和stderr合并在一起
	stdout *OutputBuffer
	stderr *OutputBuffer

	registerLock  sync.Mutex
	registerNames []string
}

func NewGDBDebugger(option *Option) *GDBDebugger {
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
	return &GDBDebugger{
		option:        option,
		newGdb:        gdb.NewCmd,
		StatusManager: utils.NewStatusManager(),
		GdbOutputUtil: NewGDBOutputUtil(),
		ReferenceUtil: NewReferenceUtil(),
		tracker:       NewValueTracker(),
		events:        NewEventQueue(),
		stdout:        NewOutputBuffer(),
		stderr:        NewOutputBuffer(),
	}
}

// Launch 启动gdb，加载目标程序，设置初始断点并运行
func (g *GDBDebugger) Launch(ctx context.Context, option *LaunchOption) (*ProcessInfo, error) {
	if option == nil || option.ExecFile == "" {
		return nil, e.ErrNoExecutable
	}
	g.launchOption = option
	gd, err := g.newGdb(g.option.Command, g.gdbNotificationCallback)
	if err != nil {
		logrus.Errorf("[GDBDebugger] Launch fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
	}
	g.GDB = gd
	// 启动协程读取用户程序输出
	gosync.Go(context.Background(), g.processUserOutput)
	gosync.Go(context.Background(), g.watchGdbExit)

	// 异步模式下程序运行时依然可以发送命令
	if _, err = g.send(ctx, "gdb-set", "mi-async", "on"); err != nil {
		return nil, g.launchFail(err)
	}
	if _, err = g.checkedSend(ctx, "file-exec-and-symbols", option.ExecFile); err != nil {
		return nil, g.launchFail(err)
	}
	if option.WorkPath != "" {
		if _, err = g.checkedSend(ctx, "environment-cd", option.WorkPath); err != nil {
			return nil, g.launchFail(err)
		}
	}
	if len(option.Args) != 0 {
		// gdb把参数拼接起来交给shell解析，每个参数都需要按shell的规则转义
		args := make([]string, 0, len(option.Args))
		for _, arg := range option.Args {
			args = append(args, shellescape.Quote(arg))
		}
		if _, err = g.checkedSend(ctx, "exec-arguments", args...); err != nil {
			return nil, g.launchFail(err)
		}
	}
	info := &ProcessInfo{}
	for _, bp := range option.Breakpoints {
		m, err := g.checkedSend(ctx, "break-insert", bp)
		if err != nil {
			// 断点设置失败不影响启动
			logrus.Warnf("[GDBDebugger] break-insert %s fail, err = %v", bp, err)
			g.events.Push(NewEngineOutputEvent(fmt.Sprintf("breakpoint %s: %v", bp, err)))
			continue
		}
		if number, location, ok := g.GdbOutputUtil.ParseAddBreakpointOutput(m); ok {
			info.Breakpoints = append(info.Breakpoints, fmt.Sprintf("Breakpoint %s: %s", number, location))
		}
	}
	if _, err = g.checkedSend(ctx, "exec-run"); err != nil {
		return nil, g.launchFail(err)
	}
	if m, err := g.send(ctx, "list-thread-groups"); err == nil {
		info.PID = g.GdbOutputUtil.ParseThreadGroupPid(m)
	}
	logrus.Infof("[GDBDebugger] Launch %s, pid = %d", option.ExecFile, info.PID)
	return info, nil
}

func (g *GDBDebugger) launchFail(err error) error {
	logrus.Errorf("[GDBDebugger] Launch fail, err = %v", err)
	_ = g.GDB.Exit()
	return fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
}

// processUserOutput 循环读取用户程序的输出，伪终端会把\n转换成\r\n
func (g *GDBDebugger) processUserOutput(ctx context.Context) {
	b := make([]byte, 4096)
	// 上一次读取以\r结尾，可能和下一次开头的\n是一对
	carriageReturn := false
	for {
		n, err := g.GDB.Read(b)
		if n > 0 {
			text := string(b[0:n])
			if carriageReturn {
				text = "\r" + text
				carriageReturn = false
			}
			if strings.HasSuffix(text, "\r") {
				text = text[:len(text)-1]
				carriageReturn = true
			}
			g.stdout.WriteString(strings.ReplaceAll(text, "\r\n", "\n"))
		}
		if err != nil {
			return
		}
	}
}

// watchGdbExit gdb意外退出时会话以分离结束
func (g *GDBDebugger) watchGdbExit(ctx context.Context) {
	<-g.GDB.Done()
	g.pushStateEvent(NewStateEvent(constants.StateDetached))
}

func (g *GDBDebugger) NextEvent() (*Event, bool) {
	return g.events.Pop()
}

func (g *GDBDebugger) ReadStdout(max int) string {
	return g.stdout.Read(max)
}

func (g *GDBDebugger) ReadStderr(max int) string {
	return g.stderr.Read(max)
}

// HandleCommand 通过 -interpreter-exec console 执行用户输入的命令
func (g *GDBDebugger) HandleCommand(ctx context.Context, command string) *CommandResult {
	if g.GDB == nil {
		return NewCommandFailure(e.ErrDebuggerIsClosed.Error())
	}
	m, err := g.send(ctx, "interpreter-exec", "console", command)
	if err != nil {
		return NewCommandFailure(err.Error())
	}
	switch g.GdbOutputUtil.GetStringFromMap(m, "class") {
	case "error":
		return NewCommandFailure(gdb.ErrorMessage(m))
	case "connected":
		// target remote 之类的命令连接到了新的目标
		g.pushStateEvent(NewStateEvent(constants.StateConnected))
	}
	return NewCommandSuccess(g.GdbOutputUtil.GetStringFromMap(m, "console"))
}

func (g *GDBDebugger) Threads(ctx context.Context) ([]*Thread, error) {
	m, err := g.checkedSend(ctx, "thread-info")
	if err != nil {
		logrus.Errorf("[GDBDebugger] Threads fail, err = %v", err)
		return nil, err
	}
	threads, _ := g.GdbOutputUtil.ParseThreadsOutput(m)
	return threads, nil
}

func (g *GDBDebugger) Frames(ctx context.Context, threadID int) ([]*Frame, error) {
	if !g.StatusManager.Is(constants.StateStopped) {
		return nil, e.ErrProcessNotStopped
	}
	m, err := g.checkedSend(ctx, "stack-list-frames", "--thread", strconv.Itoa(threadID))
	if err != nil {
		logrus.Errorf("[GDBDebugger] Frames fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrThreadNotFound, err)
	}
	return g.GdbOutputUtil.ParseStackTraceOutput(m, threadID), nil
}

// Locals 先用 -stack-list-variables 得到变量名，再为每个变量创建变量对象读取值和children
func (g *GDBDebugger) Locals(ctx context.Context, frame *Frame) ([]*Value, error) {
	if !g.StatusManager.Is(constants.StateStopped) {
		return nil, e.ErrProcessNotStopped
	}
	g.deleteLeftoverVars(ctx)
	thread, level := strconv.Itoa(frame.ID.Thread), strconv.Itoa(frame.ID.Index)
	m, err := g.checkedSend(ctx, "stack-list-variables",
		"--thread", thread, "--frame", level, "--simple-values")
	if err != nil {
		logrus.Errorf("[GDBDebugger] Locals fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrFrameNotFound, err)
	}
	names := g.GdbOutputUtil.ParseFrameVariablesOutput(m)
	answer := make([]*Value, 0, len(names))
	for _, name := range names {
		value, err := g.readVariable(ctx, thread, level, name)
		if err != nil {
			// 未初始化的变量可能读取失败，展示错误信息
			logrus.Warnf("[GDBDebugger] read variable %s fail, err = %v", name, err)
			answer = append(answer, &Value{Name: name, Value: fmt.Sprintf("<%v>", err)})
			continue
		}
		answer = append(answer, value)
	}
	g.tracker.Mark(fmt.Sprintf("locals/%d/%s", frame.ID.Index, frame.Function), answer)
	return answer, nil
}

// readVariable 创建变量对象，递归读取children以后删除
func (g *GDBDebugger) readVariable(ctx context.Context, thread, level, expression string) (*Value, error) {
	varName := g.ReferenceUtil.CreateVarName()
	m, err := g.checkedSend(ctx, "var-create", "--thread", thread, "--frame", level, varName, "*", expression)
	if err != nil {
		g.ReferenceUtil.Release(varName)
		if msg := gdb.ErrorMessage(m); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	defer g.DeleteVar(ctx, varName)
	object, ok := g.GdbOutputUtil.ParseVarCreate(m, expression)
	if !ok {
		return nil, fmt.Errorf("var-create %s: unexpected result", expression)
	}
	object.Name = varName
	g.fillChildren(ctx, object, 1)
	return object.Value, nil
}

// fillChildren 读取变量对象的children，最多展开MaxValueDepth层
func (g *GDBDebugger) fillChildren(ctx context.Context, object *VarObject, depth int) {
	if object.NumChild == 0 || depth > g.option.MaxValueDepth {
		return
	}
	m, err := g.checkedSend(ctx, "var-list-children", "--all-values", object.Name,
		"0", strconv.Itoa(g.option.MaxChildren))
	if err != nil {
		logrus.Warnf("[GDBDebugger] var-list-children %s fail, err = %v", object.Name, err)
		return
	}
	for _, child := range g.GdbOutputUtil.ParseVariablesOutput(m) {
		// c++的访问修饰符是一层伪节点，直接展开到当前层
		if isAccessSpecifier(child) {
			g.fillChildren(ctx, child, depth)
			object.Value.Children = append(object.Value.Children, child.Value.Children...)
			continue
		}
		g.fillChildren(ctx, child, depth+1)
		object.Value.Children = append(object.Value.Children, child.Value)
	}
}

func isAccessSpecifier(object *VarObject) bool {
	if object.Value.Type != "" {
		return false
	}
	switch object.Value.Name {
	case "public", "private", "protected":
		return true
	}
	return false
}

// DeleteVar 删除变量对象，避免gdb在之后的每次停止时更新它
func (g *GDBDebugger) DeleteVar(ctx context.Context, name string) {
	if _, err := g.send(ctx, "var-delete", name); err != nil {
		logrus.Warnf("[GDBDebugger] var-delete %s fail, err = %v", name, err)
		return
	}
	g.ReferenceUtil.Release(name)
}

// deleteLeftoverVars 删除之前没有删除成功的变量对象，比如读取时超时
func (g *GDBDebugger) deleteLeftoverVars(ctx context.Context) {
	for _, name := range g.ReferenceUtil.Live() {
		g.DeleteVar(ctx, name)
	}
}

func (g *GDBDebugger) Registers(ctx context.Context, frame *Frame) ([]*Value, error) {
	if !g.StatusManager.Is(constants.StateStopped) {
		return nil, e.ErrProcessNotStopped
	}
	names, err := g.getRegisterNames(ctx)
	if err != nil {
		return nil, err
	}
	changed := map[int]bool{}
	if m, err := g.send(ctx, "data-list-changed-registers"); err == nil {
		changed = g.GdbOutputUtil.ParseChangedRegisters(m)
	}
	m, err := g.checkedSend(ctx, "data-list-register-values", "--thread", strconv.Itoa(frame.ID.Thread),
		"--frame", strconv.Itoa(frame.ID.Index), "x")
	if err != nil {
		logrus.Errorf("[GDBDebugger] Registers fail, err = %v", err)
		return nil, err
	}
	answer := g.GdbOutputUtil.ParseRegisterValues(m, names, changed)
	g.tracker.Mark(fmt.Sprintf("registers/%d", frame.ID.Index), answer)
	return answer, nil
}

// getRegisterNames 寄存器名称在一次会话中不会变化，只读取一次
func (g *GDBDebugger) getRegisterNames(ctx context.Context) ([]string, error) {
	g.registerLock.Lock()
	defer g.registerLock.Unlock()
	if g.registerNames != nil {
		return g.registerNames, nil
	}
	m, err := g.checkedSend(ctx, "data-list-register-names")
	if err != nil {
		logrus.Errorf("[GDBDebugger] getRegisterNames fail, err = %v", err)
		return nil, err
	}
	g.registerNames = g.GdbOutputUtil.ParseRegisterNames(m)
	return g.registerNames, nil
}

// Disassemble 反汇编pc所在的函数，没有符号信息时反汇编pc之后的一段内存
func (g *GDBDebugger) Disassemble(ctx context.Context, frame *Frame) ([]*Instruction, error) {
	if frame.PC == 0 {
		return nil, e.ErrDisassembleNotSupport
	}
	pc := fmt.Sprintf("0x%x", frame.PC)
	m, err := g.checkedSend(ctx, "data-disassemble", "-a", pc, "--", "0")
	if err != nil {
		end := fmt.Sprintf("0x%x", frame.PC+uint64(g.option.DisassemblyWindow*4))
		m, err = g.checkedSend(ctx, "data-disassemble", "-s", pc, "-e", end, "--", "0")
	}
	if err != nil {
		logrus.Errorf("[GDBDebugger] Disassemble fail, err = %v", err)
		return nil, fmt.Errorf("%w: %v", e.ErrDisassembleNotSupport, err)
	}
	return windowAround(g.GdbOutputUtil.ParseDisassembleOutput(m), frame.PC, g.option.DisassemblyWindow), nil
}

// windowAround 函数很大时只保留pc附近的size条指令
func windowAround(instructions []*Instruction, pc uint64, size int) []*Instruction {
	if len(instructions) <= size {
		return instructions
	}
	index := 0
	for i, ins := range instructions {
		if ins.Address == pc {
			index = i
			break
		}
	}
	start := index - size/2
	if start < 0 {
		start = 0
	}
	if start+size > len(instructions) {
		start = len(instructions) - size
	}
	return instructions[start : start+size]
}

// Terminate 让gdb退出，gdb会杀死它启动的进程
func (g *GDBDebugger) Terminate(ctx context.Context) error {
	if g.GDB == nil {
		return nil
	}
	logrus.Infof("[GDBDebugger] Terminate")
	return g.GDB.Exit()
}

// gdbNotificationCallback 处理gdb异步记录的回调，在gdb读协程中执行
func (g *GDBDebugger) gdbNotificationCallback(m map[string]interface{}) {
	typ := g.GdbOutputUtil.GetStringFromMap(m, "type")
	class := g.GdbOutputUtil.GetStringFromMap(m, "class")
	payload := g.GdbOutputUtil.GetInterfaceFromMap(m, "payload")
	switch typ {
	case gdb.TypeExec:
		switch class {
		case "stopped":
			g.processStoppedData(payload)
		case "running":
			// all-stop模式下每个线程都会报告一次running
			if !g.StatusManager.Is(constants.StateRunning) {
				g.pushStateEvent(NewStateEvent(constants.StateRunning))
			}
		}
	case gdb.TypeNotify:
		switch class {
		case "thread-group-started":
			g.tracker.Reset()
			g.ReferenceUtil.Reset()
			g.StatusManager.Reset()
			event := NewStateEvent(constants.StateLaunching)
			event.Description = "pid " + g.GdbOutputUtil.GetStringFromMap(payload, "pid")
			g.pushStateEvent(event)
		case "thread-group-exited":
			// *stopped,reason="exited" 已经报告过时忽略
			code := g.GdbOutputUtil.ParseExitCode(g.GdbOutputUtil.GetStringFromMap(payload, "exit-code"))
			g.pushStateEvent(NewExitedEvent(code, ""))
		}
	case gdb.TypeConsole:
		text := g.GdbOutputUtil.GetStringFromMap(m, "payload")
		if detachedPattern.MatchString(text) {
			g.pushStateEvent(NewStateEvent(constants.StateDetached))
		}
		if captured, _ := m["captured"].(bool); !captured {
			g.events.Push(NewEngineOutputEvent(text))
		}
	case gdb.TypeTarget:
		g.stdout.WriteString(g.GdbOutputUtil.GetStringFromMap(m, "payload"))
	case gdb.TypeLog:
		logrus.Debugf("[GDBDebugger] gdb log: %s", g.GdbOutputUtil.GetStringFromMap(m, "payload"))
	}
}

// processStoppedData 处理gdb返回的stopped数据
func (g *GDBDebugger) processStoppedData(m interface{}) {
	event := g.GdbOutputUtil.ParseStoppedEventOutput(m)
	if event.State == constants.StateStopped {
		g.tracker.NextStop()
	}
	g.pushStateEvent(event)
}

// pushStateEvent 推入进程事件，会话终止以后不再推入任何进程事件
func (g *GDBDebugger) pushStateEvent(event *Event) {
	if g.StatusManager.IsTerminal() {
		return
	}
	if event.State.IsTerminal() {
		if !g.StatusManager.MarkTerminal() {
			return
		}
	}
	g.StatusManager.Set(event.State)
	g.events.Push(event)
}

func (g *GDBDebugger) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := OptionTimeout
	if g.launchOption != nil && g.launchOption.RequestTimeout > 0 {
		timeout = g.launchOption.RequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (g *GDBDebugger) send(ctx context.Context, operation string, args ...string) (map[string]interface{}, error) {
	if g.GDB == nil {
		return nil, e.ErrDebuggerIsClosed
	}
	ctx, cancel := g.requestContext(ctx)
	defer cancel()
	return g.GDB.Send(ctx, operation, args...)
}

func (g *GDBDebugger) checkedSend(ctx context.Context, operation string, args ...string) (map[string]interface{}, error) {
	if g.GDB == nil {
		return nil, e.ErrDebuggerIsClosed
	}
	ctx, cancel := g.requestContext(ctx)
	defer cancel()
	return g.GDB.CheckedSend(ctx, operation, args...)
}

// Package pump 定时从调试引擎取出事件，把进程状态变化分发给各个视图
package pump

import (
	"context"
	"fmt"

	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/utils"
	"github.com/sirupsen/logrus"
)

// Views 事件泵需要的视图操作，由界面实现
type Views interface {
	// ShowStack 用线程的栈帧重建栈视图
	ShowStack(thread *debugger.Thread, frames []*debugger.Frame)
	// SelectFrame 选中栈视图中的一帧，代码、反汇编、局部变量和寄存器视图一起切换到该帧
	SelectFrame(ctx context.Context, index int)
	// SetStatus 更新状态栏
	SetStatus(state constants.ProcessState, description string)
	// AppendOutput 向输出面板追加文本
	AppendOutput(origin constants.OutputOrigin, text string)
	// InvalidateSourceCache 进程重启时丢弃缓存的源文件
	InvalidateSourceCache()
}

// Config 每次tick的处理上限
type Config struct {
	// MaxEventsPerTick 每次最多处理的事件数
	MaxEventsPerTick int
	// MaxDrainChunks 每次每个输出流最多读取的次数
	MaxDrainChunks int
	// DrainChunkSize 每次读取的最大字节数
	DrainChunkSize int
}

func DefaultConfig() Config {
	return Config{
		MaxEventsPerTick: 64,
		MaxDrainChunks:   16,
		DrainChunkSize:   1024,
	}
}

// Pump 事件泵，只在界面线程中调用
type Pump struct {
	debugger debugger.Debugger
	views    Views
	config   Config
	// 会话状态和终止标记
	status *utils.StatusManager
}

func New(d debugger.Debugger, views Views, config Config) *Pump {
	defaults := DefaultConfig()
	if config.MaxEventsPerTick <= 0 {
		config.MaxEventsPerTick = defaults.MaxEventsPerTick
	}
	if config.MaxDrainChunks <= 0 {
		config.MaxDrainChunks = defaults.MaxDrainChunks
	}
	if config.DrainChunkSize <= 0 {
		config.DrainChunkSize = defaults.DrainChunkSize
	}
	return &Pump{
		debugger: d,
		views:    views,
		config:   config,
		status:   utils.NewStatusManager(),
	}
}

// State 最近一次处理的进程状态
func (p *Pump) State() constants.ProcessState {
	return p.status.Get()
}

// Terminal 会话是否已经终止
func (p *Pump) Terminal() bool {
	return p.status.IsTerminal()
}

// Tick 处理最多MaxEventsPerTick个事件，然后读取被调试程序的输出，返回处理的事件数
func (p *Pump) Tick(ctx context.Context) int {
	count := 0
	for ; count < p.config.MaxEventsPerTick; count++ {
		event, ok := p.debugger.NextEvent()
		if !ok {
			break
		}
		p.dispatch(ctx, event)
	}
	p.drain(p.debugger.ReadStdout)
	p.drain(p.debugger.ReadStderr)
	return count
}

// drain 分块读取输出直到读到空字符串，读取次数不超过MaxDrainChunks
func (p *Pump) drain(read func(max int) string) {
	for i := 0; i < p.config.MaxDrainChunks; i++ {
		chunk := read(p.config.DrainChunkSize)
		if chunk == "" {
			return
		}
		p.views.AppendOutput(constants.OriginProgram, chunk)
	}
}

func (p *Pump) dispatch(ctx context.Context, event *debugger.Event) {
	if !event.IsProcessEvent() {
		if event.Text != "" {
			p.views.AppendOutput(constants.OriginEngine, event.Text)
		}
		return
	}
	old := p.status.Get()
	views := ViewsToRefresh(old, event.State)
	if views.Empty() {
		logrus.Infof("[Pump] ignore process event %s after %s, description = %s", event.State, old, event.Description)
		return
	}
	logrus.Infof("[Pump] process state %s -> %s", old, event.State)
	if event.State == constants.StateLaunching || event.State == constants.StateAttaching {
		// 进程重新启动
		p.status.Reset()
		p.views.InvalidateSourceCache()
	}
	p.status.Set(event.State)
	if views.Contains(constants.ViewStack) {
		p.refreshStack(ctx, event)
	}
	if views.Contains(constants.ViewOutput) && p.status.MarkTerminal() {
		p.views.AppendOutput(constants.OriginStatus, terminalMessage(event))
	}
	if views.Contains(constants.ViewStatus) {
		p.views.SetStatus(event.State, event.Description)
	}
}

// refreshStack 用停止线程的栈帧重建栈视图并选中第0帧
func (p *Pump) refreshStack(ctx context.Context, event *debugger.Event) {
	threads, err := p.debugger.Threads(ctx)
	if err != nil {
		p.views.AppendOutput(constants.OriginEngineError, fmt.Sprintf("threads: %v", err))
		p.views.ShowStack(nil, nil)
		p.views.SelectFrame(ctx, -1)
		return
	}
	thread := stoppedThread(threads, event.ThreadID)
	if thread == nil {
		p.views.ShowStack(nil, nil)
		p.views.SelectFrame(ctx, -1)
		return
	}
	frames, err := p.debugger.Frames(ctx, thread.ID)
	if err != nil {
		p.views.AppendOutput(constants.OriginEngineError, fmt.Sprintf("frames: %v", err))
		frames = nil
	}
	p.views.ShowStack(thread, frames)
	if len(frames) == 0 {
		p.views.SelectFrame(ctx, -1)
		return
	}
	p.views.SelectFrame(ctx, 0)
}

// stoppedThread 优先选择引擎报告的停止线程，否则选择第一个线程
func stoppedThread(threads []*debugger.Thread, threadID int) *debugger.Thread {
	if len(threads) == 0 {
		return nil
	}
	for _, t := range threads {
		if threadID != 0 && t.ID == threadID {
			return t
		}
	}
	return threads[0]
}

func terminalMessage(event *debugger.Event) string {
	var message string
	switch event.State {
	case constants.StateExited:
		message = fmt.Sprintf("Process exited with status %d", event.ExitCode)
	case constants.StateCrashed:
		message = "Process crashed"
	case constants.StateDetached:
		message = "Process detached"
	default:
		message = fmt.Sprintf("Process %s", event.State)
	}
	if event.Description != "" {
		message = fmt.Sprintf("%s: %s", message, event.Description)
	}
	return message + "\n"
}
